package compiler

import (
	"fmt"
	"strconv"

	"irc16/pkg/ir"
)

type binaryInstr struct {
	op          string
	commutative bool
	logical     bool     // operands are normalized to 0 or 1 first
	compare     []string // conditional moves that set r1 after cmp r0, r1
}

var binaryInstrs = map[ir.Kind]binaryInstr{
	ir.Multiply:   {op: "mul", commutative: true},
	ir.Divide:     {op: "div"},
	ir.Modulo:     {op: "mod"},
	ir.Add:        {op: "add", commutative: true},
	ir.Subtract:   {op: "sub"},
	ir.ShiftLeft:  {op: "shl"},
	ir.ShiftRight: {op: "shr"},
	ir.BitAnd:     {op: "and", commutative: true},
	ir.BitXor:     {op: "xor", commutative: true},
	ir.BitOr:      {op: "or", commutative: true},
	ir.LogicalAnd: {op: "and", commutative: true, logical: true},
	ir.LogicalOr:  {op: "or", commutative: true, logical: true},

	ir.Equal:        {compare: []string{"moveq r1, $1"}},
	ir.NotEqual:     {compare: []string{"movne r1, $1"}},
	ir.LessEqual:    {compare: []string{"movle r1, $1"}},
	ir.GreaterEqual: {compare: []string{"movge r1, $1"}},
	ir.LessThan:     {compare: []string{"movle r1, $1", "moveq r1, $0"}},
	ir.GreaterThan:  {compare: []string{"movge r1, $1", "moveq r1, $0"}},
}

// inRange reports whether text is a number the assembler accepts as an
// immediate or displacement.
func inRange(text string) bool {
	v, err := strconv.ParseInt(text, 0, 32)
	return err == nil && v >= -32768 && v <= 0xFFFF
}

func number(l *ir.Leaf) error {
	if !inRange(l.Text) {
		return ErrAt{Pos: l.Pos, Err: fmt.Errorf("%w: %s", ErrNumberRange, l.Text)}
	}
	return nil
}

func malformed(n ir.Node) error {
	return ErrAt{Pos: n.Position(), Err: fmt.Errorf("%w: %s", ErrUnknownNode, ir.Source(n))}
}

// operands splits a binary node into its left and right expressions.
func operands(n ir.Node) (ir.Node, ir.Node, bool) {
	children := ir.Children(n)
	if len(children) != 2 {
		return nil, nil, false
	}
	left := child(children[0], ir.Expr)
	right := children[1]
	if left == nil || right.Kind() != ir.Expr {
		return nil, nil, false
	}
	return left, right, true
}

// clobberFree reports whether evaluating n leaves r0 untouched.
func (cg *Compilation) clobberFree(n ir.Node) bool {
	switch n.Kind() {
	case ir.Expr, ir.Group, ir.Negate, ir.Complement, ir.LogicalNot, ir.Dereference:
		e := child(n, ir.Expr)
		if n.Kind() == ir.Expr {
			children := ir.Children(n)
			if len(children) != 1 {
				return false
			}
			e = children[0]
		}
		return e != nil && cg.clobberFree(e)
	case ir.Literal:
		return true
	case ir.VarRef:
		name := leaf(n, ir.IDENTIFIER)
		if name == nil {
			return false
		}
		id, ok := cg.scopes.Lookup(name.Text)
		return ok && id.Storage == Stack && id.Level == cg.scopes.Depth()
	case ir.ArgRef:
		return cg.scopes.Depth() > 0 && cg.scopes.RoutineLevel() == cg.scopes.Depth()
	}
	return false
}

// genExpr evaluates n into r1. r0 is scratch.
func (cg *Compilation) genExpr(n ir.Node) error {
	switch n.Kind() {
	case ir.Expr:
		children := ir.Children(n)
		if len(children) != 1 {
			return malformed(n)
		}
		return cg.genExpr(children[0])

	case ir.Group:
		e := child(n, ir.Expr)
		if e == nil {
			return malformed(n)
		}
		return cg.genExpr(e)

	case ir.Literal:
		value := leaf(n, ir.NUMBER)
		if value == nil {
			return malformed(n)
		}
		if err := number(value); err != nil {
			return err
		}
		cg.line("    mov r1, $%s", value.Text)

	case ir.VarRef:
		name := leaf(n, ir.IDENTIFIER)
		if name == nil {
			return malformed(n)
		}
		id, err := cg.lookup(name)
		if err != nil {
			return err
		}
		cg.load("r1", id)

	case ir.ArgRef:
		return cg.genArg(n)

	case ir.Negate, ir.Complement, ir.LogicalNot, ir.Dereference:
		e := child(n, ir.Expr)
		if e == nil {
			return malformed(n)
		}
		if err := cg.genExpr(e); err != nil {
			return err
		}
		cg.genUnary(n.Kind())

	default:
		instr, ok := binaryInstrs[n.Kind()]
		if !ok {
			return malformed(n)
		}
		return cg.genBinary(n, instr)
	}
	return nil
}

func (cg *Compilation) genUnary(kind ir.Kind) {
	switch kind {
	case ir.Negate:
		cg.line("    neg r1")
	case ir.Complement:
		cg.line("    not r1")
	case ir.LogicalNot:
		cg.line("    cmp r1, $0")
		cg.line("    mov r1, $0")
		cg.line("    moveq r1, $1")
	case ir.Dereference:
		cg.line("    mov r1, [r1]")
	}
}

func (cg *Compilation) normalize(reg string) {
	cg.line("    cmp %s, $0", reg)
	cg.line("    mov %s, $0", reg)
	cg.line("    movne %s, $1", reg)
}

func (cg *Compilation) genBinary(n ir.Node, instr binaryInstr) error {
	left, right, ok := operands(n)
	if !ok {
		return malformed(n)
	}

	if err := cg.genExpr(left); err != nil {
		return err
	}
	if cg.clobberFree(right) {
		cg.line("    mov r0, r1")
		if err := cg.genExpr(right); err != nil {
			return err
		}
	} else {
		cg.line("    push r1")
		if err := cg.genExpr(right); err != nil {
			return err
		}
		cg.line("    pop r0")
	}

	switch {
	case instr.compare != nil:
		cg.line("    cmp r0, r1")
		cg.line("    mov r1, $0")
		for _, mov := range instr.compare {
			cg.line("    %s", mov)
		}
	case instr.commutative:
		if instr.logical {
			cg.normalize("r0")
			cg.normalize("r1")
		}
		cg.line("    %s r1, r0", instr.op)
	default:
		cg.line("    %s r0, r1", instr.op)
		cg.line("    mov r1, r0")
	}
	return nil
}

// genArg loads argument N of the enclosing routine. The last argument
// pushed is arg 0, just above the return address.
func (cg *Compilation) genArg(n ir.Node) error {
	index := leaf(n, ir.NUMBER)
	if index == nil {
		return malformed(n)
	}
	slot, err := strconv.ParseInt(index.Text, 0, 16)
	if err != nil || slot < 0 || 4+2*slot > 0xFFFF {
		return ErrAt{Pos: index.Pos, Err: fmt.Errorf("%w: %s", ErrUnknownNode, f("arg %v", index.Text))}
	}
	routine := cg.scopes.RoutineLevel()
	if cg.scopes.Depth() == 0 || cg.scopes.FrameKindAt(routine) == FrameIrq {
		return ErrAt{Pos: n.Position(), Err: ErrArgOutsideRoutine}
	}
	base := cg.hops(routine)
	cg.line("    mov r1, %s", memory(base, 4+2*int(slot)))
	return nil
}
