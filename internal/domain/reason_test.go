package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchReasonRoundTrip(t *testing.T) {
	for _, r := range MatchReasons() {
		parsed, err := ParseMatchReason(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
}

func TestMatchReasonSQLLiteral(t *testing.T) {
	assert.Equal(t, "'EXACT'", ReasonExact.SQLLiteral())
	assert.Equal(t, "'TRIE'", ReasonTrie.SQLLiteral())
	assert.Equal(t, "'UNMATCHED'", ReasonUnmatched.SQLLiteral())
}

func TestParseMatchReasonUnknown(t *testing.T) {
	_, err := ParseMatchReason("SPLINK")
	assert.Error(t, err)
}
