package grammar

import (
	"irc16/pkg/ir"
)

// Priorities of the builtin table, highest first.
const (
	prioComment   = 250
	prioFixed     = 240 // statements and declarations without expressions
	prioArg       = 230
	prioWrap      = 220
	prioOperand   = 210
	prioMarker    = 200
	prioGroup     = 190
	prioUnary     = 180
	prioBind      = 160
	prioBinary    = 150
	prioStatement = 100
)

func rule(out ir.Kind, prio int, desc string, ctx ...ir.Kind) Rule {
	return Rule{
		Context:      ctx,
		Invert:       make([]bool, len(ctx)),
		Dispositions: make([]Disposition, len(ctx)),
		Output:       out,
		Priority:     prio,
		Description:  desc,
	}
}

func (r Rule) with(d Disposition, idx ...int) Rule {
	ds := append([]Disposition(nil), r.Dispositions...)
	for _, i := range idx {
		ds[i] = d
	}
	r.Dispositions = ds
	return r
}

func (r Rule) keep(idx ...int) Rule {
	return r.with(Keep, idx...)
}

func (r Rule) invert(idx ...int) Rule {
	inv := append([]bool(nil), r.Invert...)
	for _, i := range idx {
		inv[i] = true
	}
	r.Invert = inv
	return r
}

// statement builds a rule whose semicolons are dropped.
func statement(out ir.Kind, prio int, desc string, ctx ...ir.Kind) Rule {
	r := rule(out, prio, desc, ctx...)
	for i, k := range ctx {
		if k == ir.SEMICOLON {
			r = r.with(Discard, i)
		}
	}
	return r
}

type binaryOp struct {
	token ir.Kind // operator token, or its binary marker
	left  ir.Kind // node holding the bound left operand
	node  ir.Kind
	desc  string
}

// binaryLevels lists binary operators by precedence, tightest first.
var binaryLevels = [][]binaryOp{
	{
		{ir.BinaryStar, ir.MultiplyLeft, ir.Multiply, "*"},
		{ir.SLASH, ir.DivideLeft, ir.Divide, "/"},
		{ir.PERCENT, ir.ModuloLeft, ir.Modulo, "%"},
	},
	{
		{ir.PLUS, ir.AddLeft, ir.Add, "+"},
		{ir.BinaryMinus, ir.SubtractLeft, ir.Subtract, "-"},
	},
	{
		{ir.SHL_OP, ir.ShiftLeftLeft, ir.ShiftLeft, "<<"},
		{ir.SHR_OP, ir.ShiftRightLeft, ir.ShiftRight, ">>"},
	},
	{
		{ir.LESS, ir.LessThanLeft, ir.LessThan, "<"},
		{ir.LESS_EQ, ir.LessEqualLeft, ir.LessEqual, "<="},
		{ir.GREATER, ir.GreaterThanLeft, ir.GreaterThan, ">"},
		{ir.GREATER_EQ, ir.GreaterEqualLeft, ir.GreaterEqual, ">="},
	},
	{
		{ir.EQUALS, ir.EqualLeft, ir.Equal, "=="},
		{ir.NOT_EQ, ir.NotEqualLeft, ir.NotEqual, "!="},
	},
	{{ir.AND, ir.BitAndLeft, ir.BitAnd, "&"}},
	{{ir.CARET, ir.BitXorLeft, ir.BitXor, "^"}},
	{{ir.PIPE, ir.BitOrLeft, ir.BitOr, "|"}},
	{{ir.AND_LOGICAL, ir.LogicalAndLeft, ir.LogicalAnd, "&&"}},
	{{ir.OR_LOGICAL, ir.LogicalOrLeft, ir.LogicalOr, "||"}},
}

// expressionStarts are the kinds that may directly precede an expression.
var expressionStarts = []ir.Kind{
	ir.ASSIGN, ir.IF, ir.GOTO, ir.RETURN, ir.CALL, ir.PUSH, ir.LPAREN,
}

var unaryOps = []struct {
	token ir.Kind
	node  ir.Kind
	desc  string
}{
	{ir.MINUS, ir.Negate, "unary -"},
	{ir.TILDE, ir.Complement, "unary ~"},
	{ir.NOT, ir.LogicalNot, "unary !"},
	{ir.STAR, ir.Dereference, "unary *"},
}

// declarationPrefixes are the modifier spellings accepted before a name.
var declarationPrefixes = [][]ir.Kind{
	{ir.VAR},
	{ir.STATIC, ir.VAR},
	{ir.CONST, ir.VAR},
	{ir.CONST, ir.STATIC, ir.VAR},
	{ir.STATIC, ir.CONST, ir.VAR},
}

func concat(parts ...[]ir.Kind) []ir.Kind {
	var out []ir.Kind
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func k(kinds ...ir.Kind) []ir.Kind {
	return kinds
}

// builtinRules returns the rows of the IR grammar.
//
// A binary operator first binds its left operand into an <Op>Left node and
// then takes its right operand. Binding is only allowed after the start of
// an expression or after a looser operator that has already bound its own
// left operand, so an operand next to an unfinished parenthesised group is
// never taken by the wrong operator. Equal precedence binds left to right
// because the bound operator is not a looser one.
func builtinRules() []Rule {
	var rows []Rule

	rows = append(rows, statement(ir.CommentStatement, prioComment, "comment", ir.COMMENT))

	rows = append(rows,
		rule(ir.ScopeBegin, prioFixed, "{", ir.LBRACE),
		rule(ir.ScopeEnd, prioFixed, "}", ir.RBRACE),
		rule(ir.IrqBegin, prioFixed, "irq", ir.IRQ),
		rule(ir.IrqEnd, prioFixed, "endirq", ir.ENDIRQ),
		rule(ir.LabelDefinition, prioFixed, "label:", ir.LABEL, ir.COLON),
		statement(ir.Goto, prioFixed, "goto label", ir.GOTO, ir.LABEL, ir.SEMICOLON),
		statement(ir.CallLabel, prioFixed, "call label", ir.CALL, ir.LABEL, ir.SEMICOLON),
		statement(ir.Return, prioFixed, "return", ir.RETURN, ir.SEMICOLON),
		statement(ir.CallFreeArg, prioFixed, "free", ir.FREE, ir.NUMBER, ir.SEMICOLON),
		statement(ir.InlineAsm, prioFixed, "asm", ir.ASM, ir.STRING, ir.SEMICOLON),
		statement(ir.VariableDeclaration, prioFixed, "var;", ir.VAR, ir.SEMICOLON),
	)
	for _, prefix := range declarationPrefixes {
		rows = append(rows, statement(ir.VariableDeclaration, prioFixed, "declaration",
			concat(prefix, k(ir.IDENTIFIER, ir.SEMICOLON))...))
	}

	rows = append(rows, rule(ir.ArgRef, prioArg, "arg N", ir.ARG, ir.NUMBER))

	wrapped := []ir.Kind{ir.Literal, ir.VarRef, ir.ArgRef, ir.Group}
	for _, u := range unaryOps {
		wrapped = append(wrapped, u.node)
	}
	for _, level := range binaryLevels {
		for _, op := range level {
			wrapped = append(wrapped, op.node)
		}
	}
	for _, kind := range wrapped {
		rows = append(rows, rule(ir.Expr, prioWrap, "expr", kind))
	}

	rows = append(rows,
		rule(ir.Literal, prioOperand, "number", ir.NUMBER),
		rule(ir.VarRef, prioOperand, "identifier", ir.IDENTIFIER, ir.ASSIGN).invert(1).keep(1),
	)

	rows = append(rows,
		rule(ir.BinaryMinus, prioMarker, "binary -", ir.Expr, ir.MINUS).keep(0),
		rule(ir.BinaryMinus, prioMarker, "binary -", ir.RPAREN, ir.MINUS).keep(0),
		rule(ir.BinaryStar, prioMarker, "binary *", ir.Expr, ir.STAR).keep(0),
		rule(ir.BinaryStar, prioMarker, "binary *", ir.RPAREN, ir.STAR).keep(0),
	)

	rows = append(rows, rule(ir.Group, prioGroup, "( )", ir.LPAREN, ir.Expr, ir.RPAREN))

	for _, u := range unaryOps {
		rows = append(rows, rule(u.node, prioUnary, u.desc, u.token, ir.Expr))
	}

	for i, level := range binaryLevels {
		before := append([]ir.Kind(nil), expressionStarts...)
		for _, looser := range binaryLevels[i+1:] {
			for _, op := range looser {
				before = append(before, op.left)
			}
		}
		for _, op := range level {
			for _, prev := range before {
				rows = append(rows, rule(op.left, prioBind, "left "+op.desc, prev, ir.Expr, op.token).keep(0))
			}
		}
	}
	for _, level := range binaryLevels {
		for _, op := range level {
			rows = append(rows, rule(op.node, prioBinary, op.desc, op.left, ir.Expr))
		}
	}

	rows = append(rows,
		statement(ir.VariableAssignment, prioStatement, "x = e",
			ir.IDENTIFIER, ir.ASSIGN, ir.Expr, ir.SEMICOLON),
		statement(ir.DerefVariableAssignment, prioStatement, "*p = e",
			ir.STAR, ir.IDENTIFIER, ir.ASSIGN, ir.Expr, ir.SEMICOLON),
		statement(ir.If, prioStatement, "if e label",
			ir.IF, ir.Expr, ir.LABEL, ir.SEMICOLON),
		statement(ir.Goto, prioStatement, "goto e",
			ir.GOTO, ir.Expr, ir.SEMICOLON),
		statement(ir.CallPushArg, prioStatement, "push e",
			ir.PUSH, ir.Expr, ir.SEMICOLON),
		statement(ir.CallExpression, prioStatement, "call e",
			ir.CALL, ir.Expr, ir.SEMICOLON),
		statement(ir.Return, prioStatement, "return e",
			ir.RETURN, ir.Expr, ir.SEMICOLON),
	)
	for _, prefix := range declarationPrefixes {
		rows = append(rows, statement(ir.VariableDeclaration, prioStatement, "declaration = e",
			concat(prefix, k(ir.IDENTIFIER, ir.ASSIGN, ir.Expr, ir.SEMICOLON))...))
	}

	return append(rows, Sentinel)
}

// Builtin returns a fresh copy of the IR grammar.
func Builtin() *Table {
	t, err := NewTable(builtinRules()...)
	if err != nil {
		panic(err)
	}
	return t
}
