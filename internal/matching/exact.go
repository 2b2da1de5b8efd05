package matching

import (
	"context"
	"fmt"

	"addrmatch/internal/domain"
	"addrmatch/internal/engine"
	"addrmatch/internal/pipeline"
)

// Binding names shared by every stage pipeline.
const (
	bindFuzzy     = "fuzzy_addresses"
	bindCanonical = "canonical_addresses"
)

// postcodeFilterMode controls how the canonical search space is restricted
// to the postcodes present in the unresolved set.
type postcodeFilterMode int

const (
	// filterExactPostcode keeps canonical rows whose full postcode appears
	// among the unresolved records.
	filterExactPostcode postcodeFilterMode = iota
	// filterPostcodeGroup keeps canonical rows whose postcode minus its
	// final character appears among the unresolved records, widening the
	// net for near-miss postcodes.
	filterPostcodeGroup
)

// restrictCanonicalFragment narrows the canonical relation to postcodes that
// can possibly match the stage input before any join work happens.
func restrictCanonicalFragment(mode postcodeFilterMode) pipeline.Fragment {
	var template string
	switch mode {
	case filterPostcodeGroup:
		template = `SELECT
    c.*,
    LEFT(c.postcode, LENGTH(c.postcode) - 1) AS postcode_group
FROM {canonical_addresses} AS c
WHERE LEFT(c.postcode, LENGTH(c.postcode) - 1) IN (
    SELECT DISTINCT LEFT(postcode, LENGTH(postcode) - 1) FROM {input}
)`
	default:
		template = `SELECT c.*
FROM {canonical_addresses} AS c
WHERE c.postcode IN (SELECT DISTINCT postcode FROM {input})`
	}
	return pipeline.Fragment{Name: "canonical_addresses_restricted", Template: template}
}

func restrictCanonicalStage(mode postcodeFilterMode) (pipeline.Stage, error) {
	return pipeline.NewStage("restrict_canonical",
		[]pipeline.Fragment{restrictCanonicalFragment(mode)},
		pipeline.WithDescription("restrict canonical search space to candidate postcodes"),
	)
}

// exactMatchPlan describes the exact stage's fragments for explain mode.
func exactMatchPlan() []pipeline.Fragment {
	return append(
		[]pipeline.Fragment{restrictCanonicalFragment(filterExactPostcode)},
		exactMatchFragments()...)
}

func exactMatchFragments() []pipeline.Fragment {
	// Canonical duplicates on the join key are broken deterministically by
	// lowest unique_id before the join, so a fuzzy row can never fan out.
	dedupe := pipeline.Fragment{
		Name: "canonical_deduped",
		Template: `SELECT unique_id AS canonical_unique_id, original_address_concat, postcode
FROM (
    SELECT
        c.unique_id,
        c.original_address_concat,
        c.postcode,
        ROW_NUMBER() OVER (
            PARTITION BY c.original_address_concat, c.postcode
            ORDER BY c.unique_id
        ) AS rn
    FROM {canonical_addresses_restricted} AS c
)
WHERE rn = 1`,
	}
	annotate := pipeline.Fragment{
		Name: "annotated_exact_matches",
		Template: fmt.Sprintf(`SELECT
    fuzzy.address_row_id,
    fuzzy.unique_id,
    canon.canonical_unique_id AS resolved_canonical_id,
    CASE
        WHEN canon.canonical_unique_id IS NOT NULL THEN %s
        ELSE %s
    END AS match_reason
FROM {fuzzy_addresses} AS fuzzy
LEFT JOIN {canonical_deduped} AS canon
    ON fuzzy.original_address_concat = canon.original_address_concat
    AND fuzzy.postcode = canon.postcode`,
			domain.ReasonExact.SQLLiteral(), domain.ReasonUnmatched.SQLLiteral()),
	}
	return []pipeline.Fragment{dedupe, annotate}
}

// buildExactMatchPipeline assembles the always-on exact matching pipeline:
// restrict canonical to the unresolved postcodes, dedupe the join key, then
// left-join fuzzy rows onto the surviving canonical rows.
func buildExactMatchPipeline(ctx context.Context, s engine.Session, sc stageContext) (*pipeline.Pipeline, error) {
	p := pipeline.New(s, sc.Unresolved,
		pipeline.WithName(string(StageExactMatches)),
		pipeline.WithRelation(bindFuzzy, sc.Unresolved),
		pipeline.WithRelation(bindCanonical, sc.Canonical),
	)

	restrict, err := restrictCanonicalStage(filterExactPostcode)
	if err != nil {
		return nil, err
	}
	if err := p.AddStage(ctx, restrict); err != nil {
		return nil, err
	}

	match, err := pipeline.NewStage("exact_match",
		exactMatchFragments(),
		pipeline.WithDescription("annotate fuzzy rows with exact matches on cleaned address and postcode"),
		pipeline.WithDependsOn("restrict_canonical"),
	)
	if err != nil {
		return nil, err
	}
	if err := p.AddStage(ctx, match); err != nil {
		return nil, err
	}
	return p, nil
}
