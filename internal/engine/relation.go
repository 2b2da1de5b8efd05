package engine

import (
	"context"
	"fmt"
)

// Relation is a handle to a named relation (table, view, or temporary
// relation) visible on the session.
type Relation struct {
	Name string
}

// NewRelation wraps a relation name in a handle.
func NewRelation(name string) Relation { return Relation{Name: name} }

// Columns reports the relation's declared columns via DESCRIBE.
func (r Relation) Columns(ctx context.Context, s Session) ([]Column, error) {
	res, err := s.Query(ctx, fmt.Sprintf("DESCRIBE SELECT * FROM %s", r.Name))
	if err != nil {
		return nil, err
	}
	nameIdx := res.Index("column_name")
	typeIdx := res.Index("column_type")
	if nameIdx < 0 || typeIdx < 0 {
		return nil, fmt.Errorf("unexpected DESCRIBE shape for relation %s: columns %v", r.Name, res.Columns)
	}
	cols := make([]Column, 0, len(res.Rows))
	for _, row := range res.Rows {
		cols = append(cols, Column{
			Name: AsString(row[nameIdx]),
			Type: AsString(row[typeIdx]),
		})
	}
	return cols, nil
}

// Count reports the relation's row count.
func (r Relation) Count(ctx context.Context, s Session) (int64, error) {
	res, err := s.Query(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", r.Name))
	if err != nil {
		return 0, err
	}
	if len(res.Rows) != 1 || len(res.Rows[0]) != 1 {
		return 0, fmt.Errorf("unexpected COUNT shape for relation %s", r.Name)
	}
	return AsInt64(res.Rows[0][0])
}
