package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"addrmatch/internal/engine"
	"addrmatch/internal/engine/enginetest"
)

func TestPostcodeGroup(t *testing.T) {
	assert.Equal(t, "SW1A2A", postcodeGroup("SW1A2AA"))
	assert.Equal(t, "A", postcodeGroup("A"))
	assert.Equal(t, "", postcodeGroup(""))
}

func TestTrieCandidateQueryExcludesClaimedCanonicalIDs(t *testing.T) {
	sc := stageContext{
		Unresolved: engine.NewRelation("unres"),
		Canonical:  engine.NewRelation("canon"),
		Matched:    []engine.Relation{engine.NewRelation("m0")},
	}
	q := trieCandidateQuery(sc)
	assert.Contains(t, q, "FROM canon AS c")
	assert.Contains(t, q, "FROM unres")
	assert.Contains(t, q, "NOT IN")
	assert.Contains(t, q, "FROM m0")
}

func TestTrieSetupRegistersSuffixMatches(t *testing.T) {
	s := enginetest.NewSession()
	s.RespondRows("FROM canon AS c",
		[]string{"address_row_id", "postcode", "original_address_concat"},
		[][]any{
			{int64(10), "SW1A2AA", "10 DOWNING STREET LONDON"},
			{int64(9), "SW1A2AA", "9 DOWNING STREET LONDON"},
		})
	s.RespondRows("original_address_concat FROM unres",
		[]string{"address_row_id", "postcode", "original_address_concat"},
		[][]any{
			// extra leading tokens, longest suffix wins
			{int64(1), "SW1A2AA", "FLAT A 10 DOWNING STREET LONDON"},
			// ambiguous: both canonical rows continue below DOWNING
			{int64(2), "SW1A2AA", "DOWNING STREET LONDON"},
			// no trie for this postcode group
			{int64(3), "EC1A1BB", "10 DOWNING STREET LONDON"},
		})

	sc := stageContext{
		Unresolved: engine.NewRelation("unres"),
		Canonical:  engine.NewRelation("canon"),
	}
	require.NoError(t, trieSetup(sc)(context.Background(), s))

	require.Contains(t, s.Registered, trieMatchesName)
	assert.Equal(t, [][]any{{int64(1), int64(10)}}, s.Registered[trieMatchesName])
}

func TestTrieSetupNearMissPostcodeSharesBucket(t *testing.T) {
	s := enginetest.NewSession()
	s.RespondRows("FROM canon AS c",
		[]string{"address_row_id", "postcode", "original_address_concat"},
		[][]any{{int64(7), "SW1A2AA", "10 DOWNING STREET LONDON"}})
	s.RespondRows("original_address_concat FROM unres",
		[]string{"address_row_id", "postcode", "original_address_concat"},
		// final postcode character differs; the group is the same
		[][]any{{int64(4), "SW1A2AB", "10 DOWNING STREET LONDON"}})

	sc := stageContext{
		Unresolved: engine.NewRelation("unres"),
		Canonical:  engine.NewRelation("canon"),
	}
	require.NoError(t, trieSetup(sc)(context.Background(), s))
	assert.Equal(t, [][]any{{int64(4), int64(7)}}, s.Registered[trieMatchesName])
}

func TestBuildTriePipelineResolvesTrieMatchesBinding(t *testing.T) {
	s := enginetest.NewSession()
	s.RespondRows("FROM canon AS c",
		[]string{"address_row_id", "postcode", "original_address_concat"}, nil)
	s.RespondRows("original_address_concat FROM unres",
		[]string{"address_row_id", "postcode", "original_address_concat"}, nil)

	sc := stageContext{
		Unresolved: engine.NewRelation("unres"),
		Canonical:  engine.NewRelation("canon"),
	}
	p, err := buildTriePipeline(context.Background(), s, sc)
	require.NoError(t, err)

	sql, err := p.Preview()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM trie_matches AS m")
	assert.Contains(t, sql, "JOIN canon AS canon")
	assert.Contains(t, sql, "FROM unres AS fuzzy")
	assert.Contains(t, sql, "'TRIE'")
}
