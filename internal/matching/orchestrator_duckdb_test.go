package matching

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"addrmatch/internal/cleaning"
	"addrmatch/internal/domain"
	"addrmatch/internal/engine"
	"addrmatch/internal/pipeline"
)

func openDuckDB(t *testing.T) *engine.DB {
	t.Helper()
	db, err := engine.Open(context.Background(), "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func registerAddresses(t *testing.T, db *engine.DB, name string, rows [][]any) engine.Relation {
	t.Helper()
	cols := []engine.Column{
		{Name: "unique_id", Type: "BIGINT"},
		{Name: "address_concat", Type: "VARCHAR"},
		{Name: "postcode", Type: "VARCHAR"},
	}
	require.NoError(t, db.RegisterRows(context.Background(), name, cols, rows))
	return engine.NewRelation(name)
}

// Runs the whole flow against an in-memory engine: raw relations in, cleaning
// pipelines, exact + trie pass, annotated output out.
func TestRunPassEndToEndOnDuckDB(t *testing.T) {
	ctx := context.Background()
	db := openDuckDB(t)

	fuzzyRaw := registerAddresses(t, db, "fuzzy_raw", [][]any{
		{int64(101), "10 downing street london", "sw1a 2aa"},
		{int64(102), "  9 Downing Street London ", "SW1A2AA"},
		{int64(103), "Flat A, 11 Downing Street London", "SW1A 2AA"},
		{int64(104), "UNKNOWN HOUSE", "ZZ9 9ZZ"},
	})
	canonicalRaw := registerAddresses(t, db, "canonical_raw", [][]any{
		{int64(1), "9 DOWNING STREET LONDON", "SW1A 2AA"},
		{int64(2), "10 DOWNING STREET LONDON", "SW1A 2AA"},
		{int64(3), "11 DOWNING STREET LONDON", "SW1A 2AA"},
	})

	fuzzy, err := cleaning.Clean(ctx, db, fuzzyRaw, "fuzzy_clean", pipeline.RunOptions{})
	require.NoError(t, err)
	canonical, err := cleaning.Clean(ctx, db, canonicalRaw, "canonical_clean", pipeline.RunOptions{})
	require.NoError(t, err)

	res, err := RunDeterministicMatchPass(ctx, db, fuzzy, canonical, PassOptions{
		EnabledStages: []StageName{StageTrie},
		RunID:         "duckdb-e2e",
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, StageOutcome{Stage: StageExactMatches, CandidatesIn: 4, Matched: 2}, res.Outcomes[0])
	assert.Equal(t, StageOutcome{Stage: StageTrie, CandidatesIn: 2, Matched: 1}, res.Outcomes[1])

	total, err := res.Output.Count(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total, "every input row comes back exactly once")

	got, err := db.Query(ctx,
		"SELECT unique_id, resolved_canonical_id, match_reason FROM "+res.Output.Name+" ORDER BY unique_id")
	require.NoError(t, err)
	require.Len(t, got.Rows, 4)

	type annotation struct {
		resolved any
		reason   string
	}
	byID := make(map[int64]annotation, len(got.Rows))
	for _, row := range got.Rows {
		id, err := engine.AsInt64(row[0])
		require.NoError(t, err)
		byID[id] = annotation{resolved: row[1], reason: engine.AsString(row[2])}
	}

	requireResolved := func(fuzzyID, canonicalID int64, reason domain.MatchReason) {
		t.Helper()
		a := byID[fuzzyID]
		assert.Equal(t, reason.String(), a.reason, "fuzzy %d", fuzzyID)
		resolved, err := engine.AsInt64(a.resolved)
		require.NoError(t, err, "fuzzy %d", fuzzyID)
		assert.Equal(t, canonicalID, resolved, "fuzzy %d", fuzzyID)
	}

	requireResolved(101, 2, domain.ReasonExact)
	requireResolved(102, 1, domain.ReasonExact) // whitespace + postcode spacing cleaned away
	requireResolved(103, 3, domain.ReasonTrie)  // extra leading tokens, longest suffix

	unmatched := byID[104]
	assert.Equal(t, domain.ReasonUnmatched.String(), unmatched.reason)
	assert.Nil(t, unmatched.resolved)
}
