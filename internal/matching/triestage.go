package matching

import (
	"context"
	"fmt"
	"strings"

	"addrmatch/internal/domain"
	"addrmatch/internal/engine"
	"addrmatch/internal/pipeline"
	"addrmatch/internal/trie"
)

// trieMatchesName is the relation the trie setup hook registers its lookup
// results under, keyed by fuzzy address_row_id.
const trieMatchesName = "trie_matches"

// postcodeGroup drops the final character of a postcode so that near-miss
// postcodes within the same sector still share a trie bucket.
func postcodeGroup(postcode string) string {
	if len(postcode) <= 1 {
		return postcode
	}
	return postcode[:len(postcode)-1]
}

// trieCandidateQuery selects the canonical rows worth inserting into tries:
// rows whose postcode group appears among the unresolved records, minus any
// canonical ids an earlier stage already claimed.
func trieCandidateQuery(sc stageContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT c.address_row_id, c.postcode, c.original_address_concat
FROM %s AS c
WHERE LEFT(c.postcode, LENGTH(c.postcode) - 1) IN (
    SELECT DISTINCT LEFT(postcode, LENGTH(postcode) - 1) FROM %s
)`, sc.Canonical.Name, sc.Unresolved.Name)
	for _, m := range sc.Matched {
		fmt.Fprintf(&b, `
    AND c.unique_id NOT IN (
        SELECT resolved_canonical_id FROM %s WHERE resolved_canonical_id IS NOT NULL
    )`, m.Name)
	}
	return b.String()
}

// trieSetup returns the hook that builds per-postcode-group tries over the
// candidate canonical rows, resolves each unresolved fuzzy row by suffix
// lookup, and registers the (fuzzy row, canonical row) pairs with the engine.
func trieSetup(sc stageContext) pipeline.SetupFunc {
	return func(ctx context.Context, s engine.Session) error {
		cand, err := s.Query(ctx, trieCandidateQuery(sc))
		if err != nil {
			return err
		}
		iRow := cand.Index("address_row_id")
		iPC := cand.Index("postcode")
		iAddr := cand.Index("original_address_concat")
		if iRow < 0 || iPC < 0 || iAddr < 0 {
			return domain.ErrConfiguration(
				"trie candidate query for %s returned unexpected columns %v",
				sc.Canonical.Name, cand.Columns)
		}

		tries := make(map[string]*trie.Trie)
		for _, row := range cand.Rows {
			rowID, err := engine.AsInt64(row[iRow])
			if err != nil {
				return domain.ErrConfiguration("canonical address_row_id: %v", err)
			}
			group := postcodeGroup(engine.AsString(row[iPC]))
			t, ok := tries[group]
			if !ok {
				t = trie.New()
				tries[group] = t
			}
			t.Insert(rowID, strings.Fields(engine.AsString(row[iAddr])))
		}

		unresolved, err := s.Query(ctx, fmt.Sprintf(
			"SELECT address_row_id, postcode, original_address_concat FROM %s",
			sc.Unresolved.Name))
		if err != nil {
			return err
		}
		var matches [][]any
		for _, row := range unresolved.Rows {
			t, ok := tries[postcodeGroup(engine.AsString(row[1]))]
			if !ok {
				continue
			}
			canonicalRowID, ok := t.Lookup(strings.Fields(engine.AsString(row[2])))
			if !ok {
				continue
			}
			fuzzyRowID, err := engine.AsInt64(row[0])
			if err != nil {
				return domain.ErrConfiguration("fuzzy address_row_id: %v", err)
			}
			matches = append(matches, []any{fuzzyRowID, canonicalRowID})
		}

		return s.RegisterRows(ctx, trieMatchesName, []engine.Column{
			{Name: "address_row_id", Type: "BIGINT"},
			{Name: "canonical_row_id", Type: "BIGINT"},
		}, matches)
	}
}

func trieAnnotateFragments() []pipeline.Fragment {
	// Lookup results carry internal canonical row ids; join back onto the
	// canonical relation to recover the public unique_id.
	joinBack := pipeline.Fragment{
		Name: "trie_match_candidates",
		Template: `SELECT
    m.address_row_id,
    canon.unique_id AS canonical_unique_id
FROM {trie_matches} AS m
JOIN {canonical_addresses} AS canon
    ON m.canonical_row_id = canon.address_row_id`,
	}
	annotate := pipeline.Fragment{
		Name: "annotated_trie_matches",
		Template: fmt.Sprintf(`SELECT
    fuzzy.address_row_id,
    fuzzy.unique_id,
    m.canonical_unique_id AS resolved_canonical_id,
    CASE
        WHEN m.canonical_unique_id IS NOT NULL THEN %s
        ELSE %s
    END AS match_reason
FROM {fuzzy_addresses} AS fuzzy
LEFT JOIN {trie_match_candidates} AS m
    ON fuzzy.address_row_id = m.address_row_id`,
			domain.ReasonTrie.SQLLiteral(), domain.ReasonUnmatched.SQLLiteral()),
	}
	return []pipeline.Fragment{joinBack, annotate}
}

// trieMatchPlan describes the trie stage's fragments for explain mode. The
// trie build itself happens in Go before the fragments render, so only the
// SQL side of the stage appears here.
func trieMatchPlan() []pipeline.Fragment {
	return trieAnnotateFragments()
}

// buildTriePipeline assembles the trie resolution pipeline: a setup hook that
// builds and probes the tries in-process, then SQL fragments that join the
// registered lookup results back onto the fuzzy and canonical relations.
func buildTriePipeline(ctx context.Context, s engine.Session, sc stageContext) (*pipeline.Pipeline, error) {
	p := pipeline.New(s, sc.Unresolved,
		pipeline.WithName(string(StageTrie)),
		pipeline.WithRelation(bindFuzzy, sc.Unresolved),
		pipeline.WithRelation(bindCanonical, sc.Canonical),
		pipeline.WithRelation(trieMatchesName, engine.NewRelation(trieMatchesName)),
	)

	stage, err := pipeline.NewStage("trie_resolution",
		trieAnnotateFragments(),
		pipeline.WithDescription("resolve remaining fuzzy rows by token suffix trie per postcode group"),
		pipeline.WithSetup(trieSetup(sc)),
	)
	if err != nil {
		return nil, err
	}
	if err := p.AddStage(ctx, stage); err != nil {
		return nil, err
	}
	return p, nil
}
