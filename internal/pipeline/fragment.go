// Package pipeline implements the fragment/stage model and the one-shot
// pipeline builder that composes stages into a single executable query.
package pipeline

import (
	"regexp"
	"sort"
	"strings"
)

// refPattern matches {name} placeholders in fragment templates.
var refPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// InputRef is the reserved placeholder name resolved to the alias of the
// previous pipeline output.
const InputRef = "input"

// Fragment is one atomically named unit of query text. The template may
// reference {input} and, via {name}, fragments defined earlier in the same
// stage, relations bound into the pipeline, and designated outputs of earlier
// stages. References are resolved when the owning stage is added to a
// pipeline; an unresolved reference is a build-time configuration error,
// never an execution-time engine error.
type Fragment struct {
	Name     string
	Template string
}

// NewFragment constructs an immutable fragment value.
func NewFragment(name, template string) Fragment {
	return Fragment{Name: name, Template: template}
}

// Refs returns the sorted set of placeholder names the template consumes.
func (f Fragment) Refs() []string {
	seen := make(map[string]struct{})
	for _, m := range refPattern.FindAllStringSubmatch(f.Template, -1) {
		seen[m[1]] = struct{}{}
	}
	refs := make([]string, 0, len(seen))
	for r := range seen {
		refs = append(refs, r)
	}
	sort.Strings(refs)
	return refs
}

// render substitutes every placeholder using the resolution table, returning
// the rendered text and any names the table could not resolve.
func (f Fragment) render(resolve map[string]string) (string, []string) {
	var missing []string
	rendered := refPattern.ReplaceAllStringFunc(f.Template, func(m string) string {
		name := m[1 : len(m)-1]
		if alias, ok := resolve[name]; ok {
			return alias
		}
		missing = append(missing, name)
		return m
	})
	sort.Strings(missing)
	return rendered, dedupe(missing)
}

func dedupe(in []string) []string {
	out := in[:0]
	var prev string
	for i, s := range in {
		if i == 0 || s != prev {
			out = append(out, s)
		}
		prev = s
	}
	return out
}

var slugPattern = regexp.MustCompile(`[^a-z0-9_]+`)

// slug normalises a name for use inside a generated alias.
func slug(s string) string {
	return slugPattern.ReplaceAllString(strings.ToLower(s), "_")
}
