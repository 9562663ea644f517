package ir

import "fmt"

// Kind identifies both the category of a lexed token and the category of a
// synthetic node produced by the grammar. Rules match on Kind alone, so the
// two families share one enumeration.
type Kind int

const (
	Invalid Kind = iota // zero value; never produced by the scanner

	// Literals
	IDENTIFIER // variable name
	NUMBER     // decimal or hex integer literal, or a character literal
	LABEL      // .name
	STRING     // "..." (inline assembly text)
	COMMENT    // // ... to end of line

	// Keywords
	VAR
	STATIC
	CONST
	IF
	GOTO
	RETURN
	CALL
	PUSH
	FREE
	ASM
	IRQ
	ENDIRQ
	ARG

	// Punctuation
	SEMICOLON // ;
	COLON     // :
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }

	// Operators
	ASSIGN      // =
	PLUS        // +
	MINUS       // -
	STAR        // *
	SLASH       // /
	PERCENT     // %
	AND         // &
	PIPE        // |
	CARET       // ^
	TILDE       // ~
	NOT         // !
	SHL_OP      // <<
	SHR_OP      // >>
	EQUALS      // ==
	NOT_EQ      // !=
	LESS        // <
	LESS_EQ     // <=
	GREATER     // >
	GREATER_EQ  // >=
	AND_LOGICAL // &&
	OR_LOGICAL  // ||

	// Expression nodes. Every expression is wrapped in an Expr node whose
	// single child is one of the operation kinds below.
	Expr
	Literal
	VarRef
	ArgRef
	Group
	Negate
	Complement
	LogicalNot
	Dereference
	BinaryMinus // MINUS known to follow an operand
	BinaryStar  // STAR known to follow an operand
	Multiply
	Divide
	Modulo
	Add
	Subtract
	ShiftLeft
	ShiftRight
	LessThan
	LessEqual
	GreaterThan
	GreaterEqual
	Equal
	NotEqual
	BitAnd
	BitXor
	BitOr
	LogicalAnd
	LogicalOr

	// Binary operators whose left operand has been bound. The matching
	// operation kind above is built from one of these and a right operand.
	MultiplyLeft
	DivideLeft
	ModuloLeft
	AddLeft
	SubtractLeft
	ShiftLeftLeft
	ShiftRightLeft
	LessThanLeft
	LessEqualLeft
	GreaterThanLeft
	GreaterEqualLeft
	EqualLeft
	NotEqualLeft
	BitAndLeft
	BitXorLeft
	BitOrLeft
	LogicalAndLeft
	LogicalOrLeft

	// Statement nodes
	VariableDeclaration
	VariableAssignment
	DerefVariableAssignment
	If
	Goto
	CallPushArg
	CallFreeArg
	CallLabel
	CallExpression
	InlineAsm
	LabelDefinition
	ScopeBegin
	ScopeEnd
	IrqBegin
	IrqEnd
	Return
	CommentStatement

	kindCount
)

// kindNames is indexed by Kind. Grammar extensions refer to kinds by these
// names.
var kindNames = [...]string{
	Invalid:                 "Invalid",
	IDENTIFIER:              "IDENTIFIER",
	NUMBER:                  "NUMBER",
	LABEL:                   "LABEL",
	STRING:                  "STRING",
	COMMENT:                 "COMMENT",
	VAR:                     "VAR",
	STATIC:                  "STATIC",
	CONST:                   "CONST",
	IF:                      "IF",
	GOTO:                    "GOTO",
	RETURN:                  "RETURN",
	CALL:                    "CALL",
	PUSH:                    "PUSH",
	FREE:                    "FREE",
	ASM:                     "ASM",
	IRQ:                     "IRQ",
	ENDIRQ:                  "ENDIRQ",
	ARG:                     "ARG",
	SEMICOLON:               "SEMICOLON",
	COLON:                   "COLON",
	LPAREN:                  "LPAREN",
	RPAREN:                  "RPAREN",
	LBRACE:                  "LBRACE",
	RBRACE:                  "RBRACE",
	ASSIGN:                  "ASSIGN",
	PLUS:                    "PLUS",
	MINUS:                   "MINUS",
	STAR:                    "STAR",
	SLASH:                   "SLASH",
	PERCENT:                 "PERCENT",
	AND:                     "AND",
	PIPE:                    "PIPE",
	CARET:                   "CARET",
	TILDE:                   "TILDE",
	NOT:                     "NOT",
	SHL_OP:                  "SHL_OP",
	SHR_OP:                  "SHR_OP",
	EQUALS:                  "EQUALS",
	NOT_EQ:                  "NOT_EQ",
	LESS:                    "LESS",
	LESS_EQ:                 "LESS_EQ",
	GREATER:                 "GREATER",
	GREATER_EQ:              "GREATER_EQ",
	AND_LOGICAL:             "AND_LOGICAL",
	OR_LOGICAL:              "OR_LOGICAL",
	Expr:                    "Expr",
	Literal:                 "Literal",
	VarRef:                  "VarRef",
	ArgRef:                  "ArgRef",
	Group:                   "Group",
	Negate:                  "Negate",
	Complement:              "Complement",
	LogicalNot:              "LogicalNot",
	Dereference:             "Dereference",
	BinaryMinus:             "BinaryMinus",
	BinaryStar:              "BinaryStar",
	Multiply:                "Multiply",
	Divide:                  "Divide",
	Modulo:                  "Modulo",
	Add:                     "Add",
	Subtract:                "Subtract",
	ShiftLeft:               "ShiftLeft",
	ShiftRight:              "ShiftRight",
	LessThan:                "LessThan",
	LessEqual:               "LessEqual",
	GreaterThan:             "GreaterThan",
	GreaterEqual:            "GreaterEqual",
	Equal:                   "Equal",
	NotEqual:                "NotEqual",
	BitAnd:                  "BitAnd",
	BitXor:                  "BitXor",
	BitOr:                   "BitOr",
	LogicalAnd:              "LogicalAnd",
	LogicalOr:               "LogicalOr",
	MultiplyLeft:            "MultiplyLeft",
	DivideLeft:              "DivideLeft",
	ModuloLeft:              "ModuloLeft",
	AddLeft:                 "AddLeft",
	SubtractLeft:            "SubtractLeft",
	ShiftLeftLeft:           "ShiftLeftLeft",
	ShiftRightLeft:          "ShiftRightLeft",
	LessThanLeft:            "LessThanLeft",
	LessEqualLeft:           "LessEqualLeft",
	GreaterThanLeft:         "GreaterThanLeft",
	GreaterEqualLeft:        "GreaterEqualLeft",
	EqualLeft:               "EqualLeft",
	NotEqualLeft:            "NotEqualLeft",
	BitAndLeft:              "BitAndLeft",
	BitXorLeft:              "BitXorLeft",
	BitOrLeft:               "BitOrLeft",
	LogicalAndLeft:          "LogicalAndLeft",
	LogicalOrLeft:           "LogicalOrLeft",
	VariableDeclaration:     "VariableDeclaration",
	VariableAssignment:      "VariableAssignment",
	DerefVariableAssignment: "DerefVariableAssignment",
	If:                      "If",
	Goto:                    "Goto",
	CallPushArg:             "CallPushArg",
	CallFreeArg:             "CallFreeArg",
	CallLabel:               "CallLabel",
	CallExpression:          "CallExpression",
	InlineAsm:               "InlineAsm",
	LabelDefinition:         "LabelDefinition",
	ScopeBegin:              "ScopeBegin",
	ScopeEnd:                "ScopeEnd",
	IrqBegin:                "IrqBegin",
	IrqEnd:                  "IrqEnd",
	Return:                  "Return",
	CommentStatement:        "CommentStatement",
}

// A missing entry in kindNames fails to compile here.
var _ = kindNames[kindCount-1]

var kindByName map[string]Kind

func init() {
	kindByName = make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		kindByName[name] = Kind(k)
	}
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k names a real token or node kind.
func (k Kind) Valid() bool {
	return k > Invalid && k < kindCount
}

// IsToken reports whether k is produced by the scanner.
func (k Kind) IsToken() bool {
	return k > Invalid && k < Expr
}

// IsStatement reports whether k is a top-level statement kind the code
// generator knows how to emit.
func (k Kind) IsStatement() bool {
	return k >= VariableDeclaration && k < kindCount
}

// ParseKind looks a kind up by its String() name.
func ParseKind(name string) (Kind, bool) {
	k, ok := kindByName[name]
	if !ok || k == Invalid {
		return Invalid, false
	}
	return k, true
}

// Pos is a best-effort source position.
type Pos struct {
	Offset int // 0-based byte offset
	Line   int // 1-based
	Column int // 1-based, in runes
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a single lexical unit produced by Lex.
type Token struct {
	Type Kind
	Text string // the matched source text; unquoted for STRING, trimmed for COMMENT
	Len  int    // length of the matched source in bytes
	Pos  Pos
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  %v", t.Type, t.Text, t.Pos)
}
