package grammar

import (
	"fmt"

	"irc16/pkg/ir"
)

// Tracer observes every rewrite Reduce performs.
type Tracer func(step int, r Rule, pos int)

type config struct {
	maxRewrites int
	trace       Tracer
}

// Option configures Reduce.
type Option func(*config)

// WithMaxRewrites caps the number of rewrites. Zero or less selects the
// default of (len(tokens)+1) * table.Len().
func WithMaxRewrites(n int) Option {
	return func(c *config) {
		c.maxRewrites = n
	}
}

// WithTrace installs a rewrite observer.
func WithTrace(fn Tracer) Option {
	return func(c *config) {
		c.trace = fn
	}
}

// index lists, for every kind, the rules that could match a sequence
// starting with that kind, in table order.
type index struct {
	byFirst  map[ir.Kind][]int
	inverted []int
}

func (t *Table) index() *index {
	idx := &index{byFirst: map[ir.Kind][]int{}}
	for i, r := range t.rules {
		if r.Invert[0] {
			idx.inverted = append(idx.inverted, i)
		} else {
			idx.byFirst[r.Context[0]] = append(idx.byFirst[r.Context[0]], i)
		}
	}
	if len(idx.inverted) == 0 {
		return idx
	}
	// Merge so every candidate list stays in ascending rule order.
	for kind, direct := range idx.byFirst {
		merged := make([]int, 0, len(direct)+len(idx.inverted))
		i, j := 0, 0
		for i < len(direct) || j < len(idx.inverted) {
			if j == len(idx.inverted) || (i < len(direct) && direct[i] < idx.inverted[j]) {
				merged = append(merged, direct[i])
				i++
			} else {
				merged = append(merged, idx.inverted[j])
				j++
			}
		}
		idx.byFirst[kind] = merged
	}
	return idx
}

func (idx *index) candidates(kind ir.Kind) []int {
	if list, ok := idx.byFirst[kind]; ok {
		return list
	}
	return idx.inverted
}

func (r *Rule) matches(seq []ir.Node, at int) bool {
	if at+len(r.Context) > len(seq) {
		return false
	}
	for i, want := range r.Context {
		if (seq[at+i].Kind() == want) == r.Invert[i] {
			return false
		}
	}
	return true
}

// rewrite replaces the match of r at seq[at:] with one synthetic node.
func (r *Rule) rewrite(seq []ir.Node, at int) []ir.Node {
	n := len(r.Context)
	node := &ir.Synthetic{Type: r.Output, DebugLabel: r.Description}

	out := make([]ir.Node, 0, len(seq)-n+1)
	out = append(out, seq[:at]...)
	placed := false
	for i := 0; i < n; i++ {
		el := seq[at+i]
		switch r.Dispositions[i] {
		case Replace:
			if !placed {
				node.Pos = el.Position()
				out = append(out, node)
				placed = true
			}
			node.Children = append(node.Children, el)
		case Keep:
			out = append(out, el)
		}
	}
	return append(out, seq[at+n:]...)
}

// Reduce rewrites tokens with table until no rule matches and returns the
// remaining sequence. Each step applies the match with the greatest
// priority; ties go to the leftmost start position and then to the lowest
// rule index.
func Reduce(tokens []ir.Token, table *Table, opts ...Option) ([]ir.Node, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	limit := cfg.maxRewrites
	if limit <= 0 {
		limit = (len(tokens) + 1) * table.Len()
	}

	seq := make([]ir.Node, len(tokens))
	for i, tok := range tokens {
		seq[i] = ir.NewLeaf(tok)
	}

	idx := table.index()
	for step := 0; ; step++ {
		best, at := -1, -1
		for p, node := range seq {
			for _, ri := range idx.candidates(node.Kind()) {
				r := &table.rules[ri]
				if best >= 0 && r.Priority <= table.rules[best].Priority {
					continue
				}
				if r.matches(seq, p) {
					best, at = ri, p
				}
			}
		}
		if best < 0 {
			return seq, nil
		}
		if step >= limit {
			return nil, fmt.Errorf("%w: %s", ErrNonTerminating, f("no fixed point after %v rewrites", limit))
		}

		r := &table.rules[best]
		seq = r.rewrite(seq, at)
		if cfg.trace != nil {
			cfg.trace(step, *r, at)
		}
	}
}
