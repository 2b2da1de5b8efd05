// Package loader brings external datasets into the session as temporary
// relations and caches loads keyed by file identity.
package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"addrmatch/internal/engine"
)

// quoteSQLString escapes a value for inclusion in a single-quoted SQL string
// literal, such as a file path handed to read_csv_auto or COPY.
func quoteSQLString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// LoadCSV reads the file at path into a temporary relation named name,
// letting the engine sniff the delimiter, header, and column types.
func LoadCSV(ctx context.Context, s engine.Session, name, path string) (engine.Relation, error) {
	if _, err := os.Stat(path); err != nil {
		return engine.Relation{}, fmt.Errorf("load %s: %w", name, err)
	}
	query := fmt.Sprintf("SELECT * FROM read_csv_auto(%s)", quoteSQLString(path))
	if err := s.CreateTempTableAs(ctx, name, query); err != nil {
		return engine.Relation{}, err
	}
	return engine.NewRelation(name), nil
}

// WriteCSV copies a relation out to a CSV file with a header row.
func WriteCSV(ctx context.Context, s engine.Session, rel engine.Relation, path string) error {
	return s.Exec(ctx, fmt.Sprintf(
		"COPY (SELECT * FROM %s) TO %s (HEADER, DELIMITER ',')",
		rel.Name, quoteSQLString(path)))
}
