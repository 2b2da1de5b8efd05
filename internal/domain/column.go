package domain

// ColumnSpec names a column a relation must expose before matching stages may
// run against it. Type is optional; when empty only presence is checked.
type ColumnSpec struct {
	Name string
	Type string
}

// RequiredMatchColumns is the schema every fuzzy and canonical relation must
// satisfy: downstream join conditions assume these columns unconditionally.
func RequiredMatchColumns() []ColumnSpec {
	return []ColumnSpec{
		{Name: "unique_id"},
		{Name: "original_address_concat"},
		{Name: "postcode"},
		{Name: "address_row_id"},
	}
}
