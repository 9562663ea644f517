package ir

import (
	"fmt"
	"strings"
)

// Node is an element of the sequence the grammar rewrites: either a scanned
// token or a synthetic node built by a rule.
type Node interface {
	Kind() Kind
	Position() Pos
	String() string
}

// Leaf wraps a scanned token. Its text is program data.
type Leaf struct {
	Token
}

// NewLeaf wraps tok.
func NewLeaf(tok Token) *Leaf {
	return &Leaf{Token: tok}
}

func (l *Leaf) Kind() Kind     { return l.Type }
func (l *Leaf) Position() Pos  { return l.Pos }
func (l *Leaf) String() string { return fmt.Sprintf("%v %q", l.Type, l.Text) }

// Synthetic is a node produced by a grammar rule. DebugLabel carries the
// producing rule's description and is only for dumps.
type Synthetic struct {
	Type       Kind
	Children   []Node
	DebugLabel string
	Pos        Pos
}

func (s *Synthetic) Kind() Kind    { return s.Type }
func (s *Synthetic) Position() Pos { return s.Pos }

func (s *Synthetic) String() string {
	if s.DebugLabel == "" {
		return s.Type.String()
	}
	return fmt.Sprintf("%v (%s)", s.Type, s.DebugLabel)
}

// Children returns the children of n, or nil for a leaf.
func Children(n Node) []Node {
	if s, ok := n.(*Synthetic); ok {
		return s.Children
	}
	return nil
}

// Leaves returns every leaf under n in source order.
func Leaves(n Node) []*Leaf {
	var out []*Leaf
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case *Leaf:
			out = append(out, n)
		case *Synthetic:
			for _, c := range n.Children {
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

// Source reconstructs an approximation of the text n was reduced from.
func Source(n Node) string {
	var sb strings.Builder
	var prev Kind
	for i, l := range Leaves(n) {
		if i > 0 && prev != LPAREN && l.Type != RPAREN && l.Type != COLON && l.Type != SEMICOLON {
			sb.WriteByte(' ')
		}
		if l.Type == STRING {
			sb.WriteString(fmt.Sprintf("%q", l.Text))
		} else {
			sb.WriteString(l.Text)
		}
		prev = l.Type
	}
	return sb.String()
}

// Format renders the forest as an indented tree, one node per line.
func Format(roots []Node) string {
	var sb strings.Builder
	var walk func(Node, int)
	walk = func(n Node, depth int) {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(n.String())
		sb.WriteByte('\n')
		for _, c := range Children(n) {
			walk(c, depth+1)
		}
	}
	for _, n := range roots {
		walk(n, 0)
	}
	return sb.String()
}
