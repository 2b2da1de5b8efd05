package matching

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"addrmatch/internal/domain"
	"addrmatch/internal/engine"
	"addrmatch/internal/pipeline"
)

// FinalRelationName is the temporary relation the pass writes its annotated
// output to.
const FinalRelationName = "deterministic_matches"

// PassOptions configures a deterministic match pass.
type PassOptions struct {
	// EnabledStages lists optional stages to run after the always-on exact
	// stage, in order. See AvailableStageNames.
	EnabledStages []StageName
	// Explain skips all execution and returns the stage plans instead.
	Explain bool
	// RunID tags log lines for this pass; a fresh id is generated when empty.
	// It never influences relation names or composed query text.
	RunID string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Run is forwarded to each stage pipeline.
	Run pipeline.RunOptions
}

// StagePlan describes one stage of a pass without executing it.
type StagePlan struct {
	Name        StageName
	Description string
	Fragments   []pipeline.Fragment
}

// StageOutcome reports what one executed stage did.
type StageOutcome struct {
	Stage StageName
	// CandidatesIn counts the unresolved rows the stage received.
	CandidatesIn int64
	// Matched counts the rows the stage resolved.
	Matched int64
}

// PassResult is the outcome of a deterministic match pass. In explain mode
// only Plan is populated; otherwise Output names the annotated relation and
// Outcomes covers every stage that executed.
type PassResult struct {
	Output   engine.Relation
	Outcomes []StageOutcome
	Plan     []StagePlan
}

// RunDeterministicMatchPass matches fuzzy records against the canonical
// relation, one stage at a time. Each stage only sees rows no earlier stage
// resolved, so the first stage to claim a row wins. Both input relations must
// carry the required match columns; validation failures abort before any
// stage runs. A stage failure aborts the pass and no annotated output is
// produced. All intermediate relations are session-scoped temporaries.
func RunDeterministicMatchPass(ctx context.Context, s engine.Session, fuzzy, canonical engine.Relation, opts PassOptions) (*PassResult, error) {
	enabled, err := normaliseEnabledStages(opts.EnabledStages)
	if err != nil {
		return nil, err
	}
	ordered := append(alwaysOnStages(), enabled...)

	if opts.Explain {
		plans := make([]StagePlan, 0, len(ordered))
		for _, name := range ordered {
			spec := stageRegistry[name]
			plans = append(plans, StagePlan{
				Name:        spec.name,
				Description: spec.description,
				Fragments:   spec.plan(),
			})
		}
		return &PassResult{Plan: plans}, nil
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log = log.With("run_id", runID)

	if err := pipeline.ValidateRelations(ctx, s, map[string]engine.Relation{
		bindFuzzy:     fuzzy,
		bindCanonical: canonical,
	}, domain.RequiredMatchColumns()); err != nil {
		return nil, err
	}

	var matched []engine.Relation
	var outcomes []StageOutcome
	for i, name := range ordered {
		unresolved := fuzzy
		if len(matched) > 0 {
			relName := fmt.Sprintf("det_unresolved_%d", i)
			if err := s.CreateTempTableAs(ctx, relName, unresolvedQuery(fuzzy, matched)); err != nil {
				return nil, err
			}
			unresolved = engine.NewRelation(relName)
		}
		remaining, err := unresolved.Count(ctx, s)
		if err != nil {
			return nil, err
		}
		if remaining == 0 {
			log.Info("all records resolved, skipping remaining stages", "next_stage", string(name))
			break
		}

		p, err := stageRegistry[name].build(ctx, s, stageContext{
			Unresolved: unresolved,
			Canonical:  canonical,
			Matched:    matched,
		})
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
		annotated, err := p.RunInto(ctx, fmt.Sprintf("det_stage_%d_%s", i, name), opts.Run)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}

		// Keep only the narrow projection of resolved rows. Stages run on
		// disjoint unresolved subsets, so a row id appears in at most one
		// match relation.
		matchRel := fmt.Sprintf("det_matched_%d_%s", i, name)
		if err := s.CreateTempTableAs(ctx, matchRel, fmt.Sprintf(
			"SELECT address_row_id, resolved_canonical_id, match_reason FROM %s WHERE match_reason <> %s",
			annotated.Name, domain.ReasonUnmatched.SQLLiteral())); err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
		m := engine.NewRelation(matchRel)
		hits, err := m.Count(ctx, s)
		if err != nil {
			return nil, err
		}
		matched = append(matched, m)
		outcomes = append(outcomes, StageOutcome{Stage: name, CandidatesIn: remaining, Matched: hits})
		log.Info("matching stage complete", "stage", string(name), "candidates", remaining, "matched", hits)
	}

	if err := s.CreateTempTableAs(ctx, FinalRelationName, finaliseQuery(fuzzy, matched)); err != nil {
		return nil, err
	}
	return &PassResult{Output: engine.NewRelation(FinalRelationName), Outcomes: outcomes}, nil
}

// matchUnionSQL concatenates the narrow match relations.
func matchUnionSQL(matched []engine.Relation) string {
	parts := make([]string, len(matched))
	for i, m := range matched {
		parts[i] = fmt.Sprintf("SELECT address_row_id, resolved_canonical_id, match_reason FROM %s", m.Name)
	}
	return strings.Join(parts, "\nUNION ALL\n")
}

// unresolvedQuery selects the fuzzy rows no stage so far has resolved.
func unresolvedQuery(fuzzy engine.Relation, matched []engine.Relation) string {
	return fmt.Sprintf(`SELECT f.*
FROM %s AS f
ANTI JOIN (
%s
) AS resolved USING (address_row_id)`, fuzzy.Name, matchUnionSQL(matched))
}

// finaliseQuery joins the accumulated matches back onto the original input,
// so every input row comes back exactly once, annotated with its resolved
// canonical id or an explicit unmatched marker.
func finaliseQuery(fuzzy engine.Relation, matched []engine.Relation) string {
	if len(matched) == 0 {
		return fmt.Sprintf(`SELECT
    f.*,
    NULL AS resolved_canonical_id,
    %s AS match_reason
FROM %s AS f`, domain.ReasonUnmatched.SQLLiteral(), fuzzy.Name)
	}
	return fmt.Sprintf(`SELECT
    f.*,
    m.resolved_canonical_id,
    COALESCE(m.match_reason, %s) AS match_reason
FROM %s AS f
LEFT JOIN (
%s
) AS m USING (address_row_id)`, domain.ReasonUnmatched.SQLLiteral(), fuzzy.Name, matchUnionSQL(matched))
}
