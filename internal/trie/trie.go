// Package trie implements the address-token suffix trie used by the trie
// resolution stage. Canonical token sequences are inserted last-token-first,
// so a lookup walking a fuzzy address backwards finds the canonical address
// with the longest shared suffix.
package trie

// Trie is a token-level suffix trie mapping canonical address token sequences
// to canonical row ids. It is built once per postcode bucket per stage
// invocation and discarded after use. Not safe for concurrent mutation.
type Trie struct {
	root *node
	size int
}

type node struct {
	children map[string]*node
	// terminal id for a canonical sequence ending at this node; first
	// insertion wins when duplicate sequences collide.
	id       int64
	terminal bool
	// number of terminals in this subtree, maintained on insert so lookups
	// can detect unique completions without walking the subtree.
	subtreeIDs int
	// the one id below this node; only meaningful when subtreeIDs == 1.
	soleID int64
}

// New returns an empty trie.
func New() *Trie {
	return &Trie{root: newNode()}
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Len reports the number of canonical sequences stored.
func (t *Trie) Len() int { return t.size }

// Insert stores a canonical token sequence under id. Tokens are walked from
// the last token to the first. If an identical sequence was inserted before,
// the earlier id is kept.
func (t *Trie) Insert(id int64, tokens []string) {
	if len(tokens) == 0 {
		return
	}
	path := make([]*node, 0, len(tokens)+1)
	cur := t.root
	path = append(path, cur)
	for i := len(tokens) - 1; i >= 0; i-- {
		next, ok := cur.children[tokens[i]]
		if !ok {
			next = newNode()
			cur.children[tokens[i]] = next
		}
		cur = next
		path = append(path, cur)
	}
	if cur.terminal {
		return // first-wins on duplicate sequences
	}
	cur.terminal = true
	cur.id = id
	t.size++
	for _, n := range path {
		n.subtreeIDs++
		n.soleID = id
	}
}

// Lookup resolves a fuzzy token sequence against the trie. Walking the query
// tokens last-token-first, it returns the deepest terminal passed, i.e. the
// canonical address forming the longest suffix of the query. If the walk
// consumes every query token without passing a terminal and exactly one
// canonical sequence continues below the final node, that unique completion
// is returned. A broken path or an ambiguous completion yields no match.
func (t *Trie) Lookup(tokens []string) (int64, bool) {
	if len(tokens) == 0 {
		return 0, false
	}
	cur := t.root
	var best int64
	found := false
	for i := len(tokens) - 1; i >= 0; i-- {
		next, ok := cur.children[tokens[i]]
		if !ok {
			return best, found
		}
		cur = next
		if cur.terminal {
			best, found = cur.id, true
		}
	}
	if !found && cur.subtreeIDs == 1 {
		return cur.soleID, true
	}
	return best, found
}
