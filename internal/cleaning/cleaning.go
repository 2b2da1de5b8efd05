// Package cleaning prepares raw address relations for matching. Input
// relations carry unique_id, address_concat and postcode; the cleaned output
// satisfies the schema the matching stages require.
package cleaning

import (
	"context"

	"addrmatch/internal/engine"
	"addrmatch/internal/pipeline"
)

// ukPostcodeRegex matches a UK postcode with optional internal whitespace,
// capturing the outward and inward codes separately.
const ukPostcodeRegex = `^([A-Z]{1,2}[0-9][A-Z0-9]?|GIR)\s*([0-9][A-Z]{2})$`

// mustStage wraps NewStage for the static stage definitions below, which
// cannot fail outside of programmer error.
func mustStage(name string, frags []pipeline.Fragment, opts ...pipeline.StageOption) pipeline.Stage {
	s, err := pipeline.NewStage(name, frags, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// TrimWhitespace strips leading and trailing whitespace from the address and
// postcode columns.
func TrimWhitespace() pipeline.Stage {
	return mustStage("trim_whitespace", []pipeline.Fragment{{
		Name: "trimmed",
		Template: `SELECT
    * EXCLUDE (address_concat, postcode),
    TRIM(address_concat) AS address_concat,
    TRIM(postcode) AS postcode
FROM {input}`,
	}})
}

// UpperCase folds the address and postcode columns to upper case.
func UpperCase() pipeline.Stage {
	return mustStage("upper_case", []pipeline.Fragment{{
		Name: "uppercased",
		Template: `SELECT
    * EXCLUDE (address_concat, postcode),
    UPPER(address_concat) AS address_concat,
    UPPER(postcode) AS postcode
FROM {input}`,
	}})
}

// CanonicalisePostcode rewrites any recognisable UK postcode into its
// canonical "OUTWARD INWARD" spacing. Unrecognisable values pass through
// unchanged rather than failing the pipeline.
func CanonicalisePostcode() pipeline.Stage {
	return mustStage("canonicalise_postcode", []pipeline.Fragment{{
		Name: "canonical_postcode",
		Template: `SELECT
    * EXCLUDE (postcode),
    REGEXP_REPLACE(postcode, '` + ukPostcodeRegex + `', '\1 \2') AS postcode
FROM {input}`,
	}})
}

// CleanAddressFirstPass applies the cheap lexical fixes: commas and periods
// become spaces, apostrophes are dropped, forward slashes become dashes, and
// runs of whitespace collapse to a single space.
func CleanAddressFirstPass() pipeline.Stage {
	return mustStage("clean_address_first_pass", []pipeline.Fragment{{
		Name: "first_pass",
		Template: `SELECT
    * EXCLUDE (address_concat),
    TRIM(REGEXP_REPLACE(
        REGEXP_REPLACE(
            REGEXP_REPLACE(
                REGEXP_REPLACE(address_concat, '[,.]', ' ', 'g'),
                '''', '', 'g'),
            '/', '-', 'g'),
        '\s+', ' ', 'g')) AS address_concat
FROM {input}`,
	}}, pipeline.WithCheckpoint())
}

// DeriveMatchColumns produces the columns every matching stage depends on:
// the cleaned concatenated address, its token array, and a dense synthetic
// row id ordered by unique_id so repeated runs derive identical ids.
func DeriveMatchColumns() pipeline.Stage {
	return mustStage("derive_match_columns", []pipeline.Fragment{{
		Name: "derived",
		Template: `SELECT
    * EXCLUDE (address_concat),
    address_concat AS original_address_concat,
    STRING_SPLIT(address_concat, ' ') AS address_tokens,
    ROW_NUMBER() OVER (ORDER BY unique_id) AS address_row_id
FROM {input}`,
	}})
}

// Stages returns the full cleaning sequence in application order.
func Stages() []pipeline.Stage {
	return []pipeline.Stage{
		TrimWhitespace(),
		UpperCase(),
		CanonicalisePostcode(),
		CleanAddressFirstPass(),
		DeriveMatchColumns(),
	}
}

// Clean runs the cleaning sequence over rel and materialises the result as a
// temporary relation named into. The regex pass is checkpointed so the window
// and split work downstream reads a materialised segment rather than
// re-evaluating the regex chain.
func Clean(ctx context.Context, s engine.Session, rel engine.Relation, into string, opts pipeline.RunOptions) (engine.Relation, error) {
	p := pipeline.New(s, rel, pipeline.WithName("cleaning"))
	for _, stage := range Stages() {
		if err := p.AddStage(ctx, stage); err != nil {
			return engine.Relation{}, err
		}
	}
	return p.RunInto(ctx, into, opts)
}
