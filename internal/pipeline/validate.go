package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"addrmatch/internal/domain"
	"addrmatch/internal/engine"
)

// ValidateSchema checks that a relation's declared columns satisfy the
// required specs. Every missing column and type mismatch is collected into a
// single SchemaError, so a caller sees the full picture at once.
func ValidateSchema(label string, cols []engine.Column, required []domain.ColumnSpec) error {
	byName := make(map[string]string, len(cols))
	for _, c := range cols {
		byName[strings.ToLower(c.Name)] = c.Type
	}

	var missing, mismatched []string
	for _, spec := range required {
		typ, ok := byName[strings.ToLower(spec.Name)]
		if !ok {
			missing = append(missing, spec.Name)
			continue
		}
		if spec.Type != "" && !strings.EqualFold(typ, spec.Type) {
			mismatched = append(mismatched, fmt.Sprintf("%s is %s, want %s", spec.Name, typ, spec.Type))
		}
	}
	if len(missing) == 0 && len(mismatched) == 0 {
		return nil
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(missing, ", "))
	}
	if len(mismatched) > 0 {
		parts = append(parts, "type mismatches: "+strings.Join(mismatched, "; "))
	}
	return domain.ErrSchema("relation %q: %s", label, strings.Join(parts, "; "))
}

// ValidateRelations validates several bound relations against one required
// schema before any stage executes. Problems across all relations are
// reported in a single error, in relation-name order.
func ValidateRelations(ctx context.Context, s engine.Session, rels map[string]engine.Relation, required []domain.ColumnSpec) error {
	names := make([]string, 0, len(rels))
	for name := range rels {
		names = append(names, name)
	}
	sort.Strings(names)

	var problems []string
	for _, name := range names {
		cols, err := rels[name].Columns(ctx, s)
		if err != nil {
			return fmt.Errorf("describe relation %q: %w", name, err)
		}
		if err := ValidateSchema(name, cols, required); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return domain.ErrSchema("%s", strings.Join(problems, "; "))
	}
	return nil
}
