package pipeline

import (
	"context"

	"addrmatch/internal/domain"
	"addrmatch/internal/engine"
)

// SetupFunc is a side-effecting hook run once when a stage is added to a
// pipeline, before its fragments are rendered. Stages use hooks to prepare
// external relations (for example, registering trie lookup results) that
// their fragments then reference by bound name.
type SetupFunc func(ctx context.Context, s engine.Session) error

// StageMeta carries human-facing stage metadata.
type StageMeta struct {
	Description string
	Tags        []string
	// DependsOn names stages that must already be part of the pipeline.
	DependsOn []string
}

// Stage is a named, ordered group of fragments representing one logical
// pipeline step. A Stage is a pure factory value: constructing one performs
// no engine calls; only adding it to a Pipeline does. Stage factories must be
// deterministic pure functions of their arguments so the same logical stage
// can be reused across pipelines safely.
type Stage struct {
	Name      string
	Fragments []Fragment
	Meta      StageMeta
	// Output designates which fragment's alias becomes the stage output.
	// Empty means the last fragment.
	Output string
	// Checkpoint materialises everything enqueued so far immediately after
	// this stage, bounding composed-query depth and creating a named
	// inspection point.
	Checkpoint bool
	// Binds maps template reference names to external relation handles.
	Binds map[string]engine.Relation
	Setup []SetupFunc
}

// StageOption configures optional stage fields.
type StageOption func(*Stage)

// WithDescription sets the human description.
func WithDescription(d string) StageOption {
	return func(s *Stage) { s.Meta.Description = d }
}

// WithTags sets the stage tags.
func WithTags(tags ...string) StageOption {
	return func(s *Stage) { s.Meta.Tags = tags }
}

// WithDependsOn declares stages that must precede this one in a pipeline.
func WithDependsOn(names ...string) StageOption {
	return func(s *Stage) { s.Meta.DependsOn = names }
}

// WithOutput designates the named fragment as the stage output.
func WithOutput(fragment string) StageOption {
	return func(s *Stage) { s.Output = fragment }
}

// WithCheckpoint marks the stage as a materialisation checkpoint.
func WithCheckpoint() StageOption {
	return func(s *Stage) { s.Checkpoint = true }
}

// WithBinding makes rel resolvable from this stage's fragments under name.
func WithBinding(name string, rel engine.Relation) StageOption {
	return func(s *Stage) {
		if s.Binds == nil {
			s.Binds = make(map[string]engine.Relation)
		}
		s.Binds[name] = rel
	}
}

// WithSetup appends a setup hook.
func WithSetup(fn SetupFunc) StageOption {
	return func(s *Stage) { s.Setup = append(s.Setup, fn) }
}

// NewStage constructs a stage, validating that it has at least one fragment,
// that fragment names are distinct, and that the designated output (if any)
// names one of its fragments.
func NewStage(name string, fragments []Fragment, opts ...StageOption) (Stage, error) {
	if name == "" {
		return Stage{}, domain.ErrConfiguration("stage name must not be empty")
	}
	if len(fragments) == 0 {
		return Stage{}, domain.ErrConfiguration("stage %q has no fragments", name)
	}
	seen := make(map[string]struct{}, len(fragments))
	for _, f := range fragments {
		if f.Name == "" {
			return Stage{}, domain.ErrConfiguration("stage %q has a fragment with an empty name", name)
		}
		if _, dup := seen[f.Name]; dup {
			return Stage{}, domain.ErrConfiguration("stage %q has duplicate fragment name %q", name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	s := Stage{Name: name, Fragments: fragments}
	for _, opt := range opts {
		opt(&s)
	}
	if s.Output != "" {
		if _, ok := seen[s.Output]; !ok {
			return Stage{}, domain.ErrConfiguration(
				"stage %q designates output fragment %q, which it does not define", name, s.Output)
		}
	}
	return s, nil
}

// OutputFragment returns the name of the fragment whose alias becomes the
// stage output.
func (s Stage) OutputFragment() string {
	if s.Output != "" {
		return s.Output
	}
	return s.Fragments[len(s.Fragments)-1].Name
}
