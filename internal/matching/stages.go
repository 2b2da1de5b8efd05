// Package matching implements the deterministic match orchestrator and its
// stages: exact matching on cleaned address + postcode, and trie-based
// suffix resolution bucketed by postcode group.
package matching

import (
	"context"
	"strings"

	"addrmatch/internal/domain"
	"addrmatch/internal/engine"
	"addrmatch/internal/pipeline"
)

// StageName identifies a deterministic matching stage.
type StageName string

const (
	// StageExactMatches is always on and runs first.
	StageExactMatches StageName = "exact_matches"
	// StageTrie resolves remaining records by trie suffix lookup.
	StageTrie StageName = "trie"
)

// stageContext carries the per-invocation relations a stage builds its
// pipeline around.
type stageContext struct {
	// Unresolved holds the fuzzy records no earlier stage resolved.
	Unresolved engine.Relation
	// Canonical is the full canonical search space.
	Canonical engine.Relation
	// Matched holds the narrow match relations accumulated by earlier
	// stages, in stage order. Empty on the first stage.
	Matched []engine.Relation
}

type stageSpec struct {
	name        StageName
	description string
	alwaysOn    bool
	// build constructs the per-stage pipeline. Only called with a
	// non-empty unresolved set.
	build func(ctx context.Context, s engine.Session, sc stageContext) (*pipeline.Pipeline, error)
	// plan describes the stage's fragments without touching the engine.
	plan func() []pipeline.Fragment
}

var stageRegistry = map[StageName]stageSpec{
	StageExactMatches: {
		name:        StageExactMatches,
		description: "Annotate fuzzy addresses with exact hash-join matches on original_address_concat + postcode",
		alwaysOn:    true,
		build:       buildExactMatchPipeline,
		plan:        exactMatchPlan,
	},
	StageTrie: {
		name:        StageTrie,
		description: "Build per-postcode-group token tries over unmatched canonical addresses and resolve remaining fuzzy rows by longest suffix",
		build:       buildTriePipeline,
		plan:        trieMatchPlan,
	},
}

// alwaysOnStages returns the stages that run on every pass, in order.
func alwaysOnStages() []StageName {
	return []StageName{StageExactMatches}
}

// AvailableStageNames lists the optional stages that can be enabled via
// PassOptions. Always-on stages are excluded.
func AvailableStageNames() []StageName {
	return []StageName{StageTrie}
}

// StageDescription returns the human description of a registered stage, or ""
// for unknown names.
func StageDescription(name StageName) string {
	return stageRegistry[name].description
}

// normaliseEnabledStages validates the optional stage list while preserving
// order. Unknown names, duplicates, and re-specification of always-on stages
// are all rejected before any execution.
func normaliseEnabledStages(enabled []StageName) ([]StageName, error) {
	out := make([]StageName, 0, len(enabled))
	seen := make(map[StageName]struct{}, len(enabled))
	for _, name := range enabled {
		spec, ok := stageRegistry[name]
		if !ok {
			valid := make([]string, 0, len(stageRegistry))
			for _, s := range AvailableStageNames() {
				valid = append(valid, string(s))
			}
			return nil, domain.ErrConfiguration(
				"unknown matching stage %q; available stages: %s", name, strings.Join(valid, ", "))
		}
		if spec.alwaysOn {
			return nil, domain.ErrConfiguration(
				"stage %q is always enabled and should not be specified", name)
		}
		if _, dup := seen[name]; dup {
			return nil, domain.ErrConfiguration("duplicate matching stage %q", name)
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}
