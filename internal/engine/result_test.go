package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultIndex(t *testing.T) {
	res := &Result{Columns: []string{"unique_id", "postcode"}}
	assert.Equal(t, 0, res.Index("unique_id"))
	assert.Equal(t, 1, res.Index("postcode"))
	assert.Equal(t, -1, res.Index("missing"))
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
	}{
		{"int64", int64(42), 42},
		{"int32", int32(7), 7},
		{"int", 9, 9},
		{"float64", float64(3), 3},
		{"string", "100", 100},
		{"bytes", []byte("100"), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AsInt64(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := AsInt64(struct{}{})
	assert.Error(t, err)
}

func TestAsString(t *testing.T) {
	assert.Equal(t, "SW1A 2AA", AsString("SW1A 2AA"))
	assert.Equal(t, "SW1A 2AA", AsString([]byte("SW1A 2AA")))
	assert.Equal(t, "", AsString(nil))
}

func TestSQLLiteral(t *testing.T) {
	assert.Equal(t, "NULL", sqlLiteral(nil))
	assert.Equal(t, "'O''NEILL COURT'", sqlLiteral("O'NEILL COURT"))
	assert.Equal(t, "TRUE", sqlLiteral(true))
	assert.Equal(t, "42", sqlLiteral(int64(42)))
}
