package compiler

import (
	"fmt"
	"strings"

	"irc16/pkg/ir"
)

// declaration is the parsed form of a VariableDeclaration node.
type declaration struct {
	name     string
	anon     bool
	static   bool
	constant bool
	init     ir.Node
	pos      ir.Pos
}

func parseDeclaration(n ir.Node) declaration {
	d := declaration{anon: true, pos: n.Position()}
	children := ir.Children(n)
	for i, c := range children {
		switch c.Kind() {
		case ir.STATIC:
			d.static = true
		case ir.CONST:
			d.constant = true
		case ir.IDENTIFIER:
			d.name = c.(*ir.Leaf).Text
			d.anon = false
			d.pos = c.Position()
		case ir.ASSIGN:
			if i+1 < len(children) {
				d.init = children[i+1]
			}
		}
	}
	return d
}

// scopeDelta returns +1 for nodes that open a frame and -1 for nodes that
// close one.
func scopeDelta(n ir.Node) int {
	switch n.Kind() {
	case ir.ScopeBegin, ir.IrqBegin:
		return 1
	case ir.ScopeEnd, ir.IrqEnd:
		return -1
	}
	return 0
}

// frameSizes returns the bytes of stack each scope reserves, indexed by the
// order in which the scopes open.
func frameSizes(roots []ir.Node) []int {
	var sizes, open []int
	for _, n := range roots {
		switch scopeDelta(n) {
		case 1:
			sizes = append(sizes, 0)
			open = append(open, len(sizes)-1)
			continue
		case -1:
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
			continue
		}
		if n.Kind() != ir.VariableDeclaration || len(open) == 0 {
			continue
		}
		if !parseDeclaration(n).static {
			sizes[open[len(open)-1]] += 2
		}
	}
	return sizes
}

// staticCell is one 2-byte cell of the data block. An empty value reserves
// the cell without initializing it.
type staticCell struct {
	name   string
	value  string
	offset int
}

type staticLayout struct {
	cells    []staticCell
	cellOf   map[ir.Node]int  // declaration -> index in cells
	consumed map[ir.Node]bool // top-level assignments folded into the data block
}

// literalValue returns the assembler text of a numeric literal, possibly
// parenthesised or negated.
func literalValue(n ir.Node) (string, bool) {
	switch n.Kind() {
	case ir.Expr:
		children := ir.Children(n)
		if len(children) != 1 {
			return "", false
		}
		return literalValue(children[0])
	case ir.Group:
		for _, c := range ir.Children(n) {
			if c.Kind() == ir.Expr {
				return literalValue(c)
			}
		}
	case ir.Literal:
		children := ir.Children(n)
		if len(children) == 1 && children[0].Kind() == ir.NUMBER {
			return children[0].(*ir.Leaf).Text, true
		}
	case ir.Negate:
		children := ir.Children(n)
		v, ok := literalValue(children[len(children)-1])
		if !ok {
			return "", false
		}
		if strings.HasPrefix(v, "-") {
			return v[1:], true
		}
		return "-" + v, true
	}
	return "", false
}

// assignee returns the identifier an assignment node writes.
func assignee(n ir.Node) (*ir.Leaf, ir.Node) {
	var name *ir.Leaf
	var value ir.Node
	for _, c := range ir.Children(n) {
		switch c.Kind() {
		case ir.IDENTIFIER:
			name = c.(*ir.Leaf)
		case ir.Expr:
			value = c
		}
	}
	return name, value
}

// topLevelAssignment finds the first assignment to name that sits outside
// every scope.
func topLevelAssignment(roots []ir.Node, name string) ir.Node {
	depth := 0
	for _, n := range roots {
		depth = max(depth+scopeDelta(n), 0)
		if depth != 0 || n.Kind() != ir.VariableAssignment {
			continue
		}
		if id, _ := assignee(n); id != nil && id.Text == name {
			return n
		}
	}
	return nil
}

func staticInitializerError(name string, init ir.Node) error {
	return ErrAt{
		Pos: init.Position(),
		Err: fmt.Errorf("%w: %s", ErrStaticInitializer, f("'%v' = %v", name, ir.Source(init))),
	}
}

// staticData lays out the data block. Declarations outside every scope and
// declarations marked static get a cell each, in source order.
func staticData(roots []ir.Node) (*staticLayout, error) {
	layout := &staticLayout{
		cellOf:   map[ir.Node]int{},
		consumed: map[ir.Node]bool{},
	}

	depth := 0
	for i, n := range roots {
		depth = max(depth+scopeDelta(n), 0)
		if n.Kind() != ir.VariableDeclaration {
			continue
		}
		d := parseDeclaration(n)
		if !d.static && depth != 0 {
			continue
		}

		cell := staticCell{name: d.name, offset: 2 * len(layout.cells)}
		switch {
		case d.init != nil:
			v, ok := literalValue(d.init)
			if !ok || !inRange(v) {
				return nil, staticInitializerError(d.name, d.init)
			}
			cell.value = v
		case depth == 0 && !d.anon:
			a := topLevelAssignment(roots[i+1:], d.name)
			if a == nil {
				break
			}
			_, value := assignee(a)
			if value == nil {
				break
			}
			v, ok := literalValue(value)
			if !ok || !inRange(v) {
				return nil, staticInitializerError(d.name, value)
			}
			cell.value = v
			layout.consumed[a] = true
		}
		layout.cellOf[n] = len(layout.cells)
		layout.cells = append(layout.cells, cell)
	}
	return layout, nil
}
