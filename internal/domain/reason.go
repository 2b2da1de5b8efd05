package domain

import "fmt"

// MatchReason records which deterministic stage resolved a record, or that
// none did. It is a closed set shared between the orchestrator and every
// stage, so no stage hand-writes reason literals into SQL text.
type MatchReason int

const (
	// ReasonUnmatched is the terminal fallback reason carried by rows no
	// stage resolved.
	ReasonUnmatched MatchReason = iota
	// ReasonExact marks rows resolved by the exact-match stage.
	ReasonExact
	// ReasonTrie marks rows resolved by trie suffix resolution.
	ReasonTrie
)

var reasonNames = map[MatchReason]string{
	ReasonUnmatched: "UNMATCHED",
	ReasonExact:     "EXACT",
	ReasonTrie:      "TRIE",
}

func (r MatchReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("MatchReason(%d)", int(r))
}

// SQLLiteral returns the reason as a single-quoted SQL string literal.
func (r MatchReason) SQLLiteral() string {
	return "'" + r.String() + "'"
}

// MatchReasons returns every reason in declaration order.
func MatchReasons() []MatchReason {
	return []MatchReason{ReasonUnmatched, ReasonExact, ReasonTrie}
}

// ParseMatchReason maps the string form back to a MatchReason.
func ParseMatchReason(s string) (MatchReason, error) {
	for r, name := range reasonNames {
		if name == s {
			return r, nil
		}
	}
	return ReasonUnmatched, fmt.Errorf("unknown match reason %q", s)
}
