package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"addrmatch/internal/domain"
	"addrmatch/internal/engine"
)

type state int

const (
	stateBuilding state = iota
	stateComposed
)

type entry struct {
	sql   string
	alias string
}

// Checkpoint records a materialised segment: the composed query text up to
// the checkpoint and the temporary relation it was stored under.
type Checkpoint struct {
	SQL      string
	Relation string
}

// Pipeline accumulates stages into a single linear plan and composes them
// into one nested query, optionally split into materialised segments at
// checkpoints. A pipeline is one-shot: once its final query has been
// composed, any further use fails with a PipelineSpentError. Temporary
// relations created at checkpoints are scoped to the session and dropped at
// connection teardown, not by the pipeline.
type Pipeline struct {
	session engine.Session
	log     *slog.Logger
	name    string

	queue       []entry
	state       state
	checkpoints []Checkpoint

	stageIdx   int
	current    string            // alias of the running output
	bindings   map[string]string // bound relation name -> relation
	outputs    map[string]string // designated output fragment name -> alias
	stageNames map[string]struct{}
	aliases    map[string]struct{}
}

// Option configures a pipeline.
type Option func(*Pipeline)

// WithName sets the pipeline name used in checkpoint relation names and log
// lines.
func WithName(name string) Option {
	return func(p *Pipeline) { p.name = name }
}

// WithLogger attaches a logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithRelation makes rel resolvable from every stage's fragments under name.
func WithRelation(name string, rel engine.Relation) Option {
	return func(p *Pipeline) { p.bindings[name] = rel.Name }
}

// New creates a pipeline reading from the source relation. The queue is
// seeded with a synthetic entry selecting from the source, so it is never
// empty once any stage has been added.
func New(session engine.Session, source engine.Relation, opts ...Option) *Pipeline {
	p := &Pipeline{
		session:    session,
		log:        slog.Default(),
		name:       source.Name,
		bindings:   make(map[string]string),
		outputs:    make(map[string]string),
		stageNames: make(map[string]struct{}),
		aliases:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.seed(fmt.Sprintf("seed_%s", slug(source.Name)), fmt.Sprintf("SELECT * FROM %s", source.Name))
	return p
}

func (p *Pipeline) seed(alias, sql string) {
	p.queue = append(p.queue, entry{sql: sql, alias: alias})
	p.aliases[alias] = struct{}{}
	p.current = alias
}

// Spent reports whether the pipeline has produced its composed query.
func (p *Pipeline) Spent() bool { return p.state == stateComposed }

// OutputAlias returns the alias of the current running output.
func (p *Pipeline) OutputAlias() string { return p.current }

// Enqueue appends a rendered query under alias. Aliases must be unique
// within the pipeline.
func (p *Pipeline) Enqueue(sql, alias string) error {
	if p.state == stateComposed {
		return domain.ErrPipelineSpent("pipeline %q has already been composed", p.name)
	}
	if _, dup := p.aliases[alias]; dup {
		return domain.ErrConfiguration("pipeline %q: duplicate alias %q", p.name, alias)
	}
	p.queue = append(p.queue, entry{sql: sql, alias: alias})
	p.aliases[alias] = struct{}{}
	return nil
}

// AddStage runs the stage's setup hooks exactly once, renders its fragments
// into globally unique aliases, and enqueues them. Every fragment reference
// is resolved at this point; an unresolved reference fails here, before any
// engine work is spent on the stage. If the stage is a checkpoint, the plan
// so far is materialised immediately.
func (p *Pipeline) AddStage(ctx context.Context, stage Stage) error {
	if p.state == stateComposed {
		return domain.ErrPipelineSpent("pipeline %q has already been composed", p.name)
	}
	for _, dep := range stage.Meta.DependsOn {
		if _, ok := p.stageNames[dep]; !ok {
			return domain.ErrConfiguration(
				"stage %q depends on stage %q, which is not part of pipeline %q", stage.Name, dep, p.name)
		}
	}
	if _, dup := p.stageNames[stage.Name]; dup {
		return domain.ErrConfiguration("pipeline %q already contains stage %q", p.name, stage.Name)
	}

	for _, fn := range stage.Setup {
		if err := fn(ctx, p.session); err != nil {
			return fmt.Errorf("stage %q setup: %w", stage.Name, err)
		}
	}
	for name, rel := range stage.Binds {
		p.bindings[name] = rel.Name
	}

	rendered, outAlias, err := p.renderStage(stage, p.stageIdx)
	if err != nil {
		return err
	}
	for _, e := range rendered {
		if err := p.Enqueue(e.sql, e.alias); err != nil {
			return err
		}
	}
	p.current = outAlias
	p.outputs[stage.OutputFragment()] = outAlias
	p.stageNames[stage.Name] = struct{}{}
	p.stageIdx++

	p.log.Debug("stage added", "pipeline", p.name, "stage", stage.Name, "output_alias", outAlias)

	if stage.Checkpoint {
		return p.materialiseCheckpoint(ctx)
	}
	return nil
}

// renderStage allocates a fresh globally unique alias per fragment and
// substitutes every reference. The resolution table covers, in precedence
// order: fragments defined earlier in the same stage, the reserved input
// slot, designated outputs of earlier stages, and bound relations.
func (p *Pipeline) renderStage(stage Stage, stageIdx int) ([]entry, string, error) {
	resolve := make(map[string]string, len(p.bindings)+len(p.outputs)+len(stage.Fragments)+1)
	for name, rel := range p.bindings {
		resolve[name] = rel
	}
	for name, alias := range p.outputs {
		resolve[name] = alias
	}
	resolve[InputRef] = p.current

	rendered := make([]entry, 0, len(stage.Fragments))
	fragAliases := make(map[string]string, len(stage.Fragments))
	for _, frag := range stage.Fragments {
		alias := fmt.Sprintf("s%d_%s__%s", stageIdx, slug(stage.Name), slug(frag.Name))
		sql, missing := frag.render(resolve)
		if len(missing) > 0 {
			return nil, "", domain.ErrConfiguration(
				"stage %q fragment %q references unresolved names: %s",
				stage.Name, frag.Name, strings.Join(missing, ", "))
		}
		rendered = append(rendered, entry{sql: sql, alias: alias})
		fragAliases[frag.Name] = alias
		resolve[frag.Name] = alias
	}
	return rendered, fragAliases[stage.OutputFragment()], nil
}

// composeFrom builds a WITH chain over the given queue entries, the final
// sub-query selecting from the last alias.
func composeFrom(items []entry) (string, error) {
	if len(items) == 0 {
		return "", domain.ErrConfiguration("cannot compose an empty pipeline")
	}
	parts := make([]string, len(items))
	for i, e := range items {
		parts[i] = fmt.Sprintf("%s AS (\n%s\n)", e.alias, e.sql)
	}
	return fmt.Sprintf("WITH\n%s\n\nSELECT * FROM %s", strings.Join(parts, ",\n\n"), items[len(items)-1].alias), nil
}

// Compose builds one nested query expressing the entire current queue. When
// markSpent is true (the normal path) the pipeline transitions to its
// terminal state and any further use fails; checkpoint composition passes
// false so it does not consume the one-shot guarantee.
func (p *Pipeline) Compose(markSpent bool) (string, error) {
	if p.state == stateComposed {
		return "", domain.ErrPipelineSpent("pipeline %q has already been composed", p.name)
	}
	sql, err := composeFrom(p.queue)
	if err != nil {
		return "", err
	}
	if markSpent {
		p.state = stateComposed
	}
	return sql, nil
}

// Preview returns the composed query text without consuming the pipeline.
// Intended for plan display only; execution paths go through Run.
func (p *Pipeline) Preview() (string, error) {
	return p.Compose(false)
}

// Checkpoints returns the materialised segments produced so far.
func (p *Pipeline) Checkpoints() []Checkpoint { return p.checkpoints }

// materialiseCheckpoint compiles everything enqueued so far into one query,
// stores its result under a deterministic temporary relation name, and
// re-seeds the queue reading from that relation.
func (p *Pipeline) materialiseCheckpoint(ctx context.Context) error {
	sql, err := p.Compose(false)
	if err != nil {
		return err
	}
	seg := fmt.Sprintf("__seg_%s_%d", slug(p.name), len(p.checkpoints))
	if err := p.session.CreateTempTableAs(ctx, seg, sql); err != nil {
		return err
	}
	p.checkpoints = append(p.checkpoints, Checkpoint{SQL: sql, Relation: seg})
	p.log.Debug("checkpoint materialised", "pipeline", p.name, "relation", seg)

	p.queue = p.queue[:0]
	p.seed(fmt.Sprintf("seed_%s_ckpt%d", slug(p.name), len(p.checkpoints)), fmt.Sprintf("SELECT * FROM %s", seg))
	return nil
}

// Run composes the pipeline and executes it, returning the full result. The
// debug options support an incremental mode materialising each fragment one
// at a time and a preview mode showing each cumulative sub-query; both
// display intermediate row samples.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*engine.Result, error) {
	if opts.DebugIncremental {
		if err := p.debugIncremental(ctx, opts); err != nil {
			return nil, err
		}
		if _, err := p.Compose(true); err != nil {
			return nil, err
		}
		return p.session.Query(ctx, fmt.Sprintf("SELECT * FROM %s", p.current))
	}
	if opts.DebugMode {
		if err := p.debugPreview(ctx, opts); err != nil {
			return nil, err
		}
	}
	sql, err := p.Compose(true)
	if err != nil {
		return nil, err
	}
	p.printSegments(opts, sql)
	return p.session.Query(ctx, sql)
}

// RunInto composes the pipeline and materialises its result as a named
// temporary relation instead of draining rows to the caller.
func (p *Pipeline) RunInto(ctx context.Context, name string, opts RunOptions) (engine.Relation, error) {
	if opts.DebugIncremental {
		if err := p.debugIncremental(ctx, opts); err != nil {
			return engine.Relation{}, err
		}
		if _, err := p.Compose(true); err != nil {
			return engine.Relation{}, err
		}
		if err := p.session.CreateTempTableAs(ctx, name, fmt.Sprintf("SELECT * FROM %s", p.current)); err != nil {
			return engine.Relation{}, err
		}
		return engine.NewRelation(name), nil
	}
	if opts.DebugMode {
		if err := p.debugPreview(ctx, opts); err != nil {
			return engine.Relation{}, err
		}
	}
	sql, err := p.Compose(true)
	if err != nil {
		return engine.Relation{}, err
	}
	p.printSegments(opts, sql)
	if err := p.session.CreateTempTableAs(ctx, name, sql); err != nil {
		return engine.Relation{}, err
	}
	return engine.NewRelation(name), nil
}
