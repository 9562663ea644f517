// Package asm reads the assembly dialect emitted by the compiler. It splits
// lines into labels, mnemonics and operands and checks every instruction
// against the operand shapes the assembler accepts. Encoding is left to the
// downstream toolchain.
package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Kind is a bit set of operand categories.
type Kind int

const (
	Reg   Kind = 1 << iota // r0..r3, fp, sp
	Imm                    // $number or $.label
	Mem                    // [base], [base + n], [base - n]
	Label                  // .name
)

func (k Kind) String() string {
	var names []string
	for _, n := range []struct {
		k    Kind
		name string
	}{{Reg, "reg"}, {Imm, "imm"}, {Mem, "mem"}, {Label, "label"}} {
		if k&n.k != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

var registers = map[string]bool{
	"r0": true,
	"r1": true,
	"r2": true,
	"r3": true,
	"fp": true,
	"sp": true,
}

type form []Kind

var (
	zeroOperand = []form{{}}
	aluShape    = []form{{Reg, Reg | Imm}}
	branchShape = []form{{Label}}
)

// shapes lists the accepted operand forms of every mnemonic.
var shapes = map[string][]form{
	"hlt":  zeroOperand,
	"nop":  zeroOperand,
	"ret":  zeroOperand,
	"iret": zeroOperand,
	"cli":  zeroOperand,
	"sti":  zeroOperand,

	"push": {{Reg | Imm}},
	"pop":  {{Reg}},
	"not":  {{Reg}},
	"neg":  {{Reg}},

	"jmp":   {{Label | Reg}},
	"call":  {{Label | Reg}},
	"rjmp":  branchShape,
	"rcall": branchShape,
	"jz":    branchShape,
	"jnz":   branchShape,
	"rjz":   branchShape,
	"rjnz":  branchShape,

	"mov": {{Reg, Reg | Imm | Mem}, {Mem, Reg}},

	"add": aluShape,
	"sub": aluShape,
	"mul": aluShape,
	"div": aluShape,
	"mod": aluShape,
	"and": aluShape,
	"or":  aluShape,
	"xor": aluShape,
	"shl": aluShape,
	"shr": aluShape,
	"cmp": aluShape,

	"moveq": aluShape,
	"movne": aluShape,
	"movlt": aluShape,
	"movle": aluShape,
	"movgt": aluShape,
	"movge": aluShape,
}

// Operand is one parsed instruction operand.
type Operand struct {
	Kind   Kind
	Text   string
	Base   string // register or label; empty for a numeric immediate
	Offset int    // immediate value or memory displacement
}

// Line is one parsed source line.
type Line struct {
	Labels   []string
	Mnemonic string
	Operands []Operand
}

// IsDirective reports whether the line holds an assembler directive.
func (l Line) IsDirective() bool {
	return strings.HasPrefix(l.Mnemonic, ".")
}

// IsRegister reports whether word names a machine register.
func IsRegister(word string) bool {
	return registers[strings.ToLower(word)]
}

func stripComments(line string) string {
	if semicolon := strings.Index(line, ";"); semicolon >= 0 {
		return line[:semicolon]
	}
	return line
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

// isLabel reports whether s is a .name label reference.
func isLabel(s string) bool {
	return strings.HasPrefix(s, ".") && isIdentifier(s[1:])
}

func parseNumber(s string) (int, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, ErrOperand(s)
	}
	if v < -32768 || v > 0xFFFF {
		return 0, fmt.Errorf("%w: %s", ErrImmediateRange, s)
	}
	return int(v), nil
}

// splitOperands splits on commas outside brackets.
func splitOperands(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" || len(out) > 0 {
		out = append(out, rest)
	}
	return out
}

func parseMemory(text string) (Operand, error) {
	op := Operand{Kind: Mem, Text: text}
	inner := strings.TrimSpace(text[1 : len(text)-1])

	base, disp := inner, ""
	if i := strings.IndexAny(inner, "+-"); i > 0 {
		base = strings.TrimSpace(inner[:i])
		disp = strings.ReplaceAll(inner[i:], " ", "")
	}
	switch {
	case IsRegister(base):
		op.Base = strings.ToLower(base)
	case isLabel(base):
		op.Base = base
	default:
		return op, ErrOperand(text)
	}
	if disp != "" {
		disp = strings.TrimPrefix(disp, "+")
		n, err := parseNumber(disp)
		if err != nil {
			return op, err
		}
		op.Offset = n
	}
	return op, nil
}

func parseOperand(text string) (Operand, error) {
	switch {
	case text == "":
		return Operand{}, ErrOperand(text)
	case IsRegister(text):
		return Operand{Kind: Reg, Text: text, Base: strings.ToLower(text)}, nil
	case strings.HasPrefix(text, "$"):
		value := text[1:]
		if isLabel(value) {
			return Operand{Kind: Imm, Text: text, Base: value}, nil
		}
		n, err := parseNumber(value)
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: Imm, Text: text, Offset: n}, nil
	case strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]"):
		return parseMemory(text)
	case isLabel(text):
		return Operand{Kind: Label, Text: text, Base: text}, nil
	}
	return Operand{}, ErrOperand(text)
}

// ParseLine splits raw into labels, a lower-cased mnemonic and operands.
func ParseLine(raw string) (Line, error) {
	var p Line

	line := strings.TrimSpace(stripComments(raw))
	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}
		before := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(before, " \t[$") {
			break
		}
		if !isLabel(before) {
			return p, fmt.Errorf("%w: %s", ErrLabelInvalid, before)
		}
		p.Labels = append(p.Labels, before)
		line = strings.TrimSpace(line[colon+1:])
	}
	if line == "" {
		return p, nil
	}

	mnemonic, rest := line, ""
	if space := strings.IndexFunc(line, unicode.IsSpace); space >= 0 {
		mnemonic, rest = line[:space], line[space:]
	}
	p.Mnemonic = strings.ToLower(mnemonic)

	for _, text := range splitOperands(rest) {
		if strings.HasPrefix(p.Mnemonic, ".") {
			p.Operands = append(p.Operands, Operand{Text: text})
			continue
		}
		op, err := parseOperand(text)
		if err != nil {
			return p, err
		}
		p.Operands = append(p.Operands, op)
	}
	return p, nil
}

func checkDirective(p Line) error {
	switch p.Mnemonic {
	case ".code":
		if len(p.Operands) != 0 {
			return ErrDirectiveArguments
		}
	case ".data":
		if len(p.Operands) != 1 {
			return ErrDirectiveArguments
		}
		if isLabel(p.Operands[0].Text) {
			return nil
		}
		if _, err := parseNumber(p.Operands[0].Text); err != nil {
			return err
		}
	case ".reserve", ".address":
		if len(p.Operands) != 1 {
			return ErrDirectiveArguments
		}
		n, err := parseNumber(p.Operands[0].Text)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: %s", ErrImmediateRange, p.Operands[0].Text)
		}
	default:
		return fmt.Errorf("%w: %s", ErrOpcodeInvalid, p.Mnemonic)
	}
	return nil
}

func checkShape(p Line) error {
	forms, ok := shapes[p.Mnemonic]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOpcodeInvalid, p.Mnemonic)
	}

	counted := false
	for _, form := range forms {
		if len(form) != len(p.Operands) {
			continue
		}
		counted = true
		match := true
		for i, want := range form {
			if p.Operands[i].Kind&want == 0 {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}
	if !counted {
		return fmt.Errorf("%w: %s takes %d", ErrOperandCount, p.Mnemonic, len(forms[0]))
	}
	got := make([]string, len(p.Operands))
	for i, op := range p.Operands {
		got[i] = op.Kind.String()
	}
	return fmt.Errorf("%w: %s %s", ErrOperandShape, p.Mnemonic, strings.Join(got, ", "))
}

func check(p Line) error {
	switch {
	case p.Mnemonic == "":
		return nil
	case p.IsDirective():
		return checkDirective(p)
	}
	return checkShape(p)
}

// CheckLine validates a single line of assembly.
func CheckLine(raw string) error {
	p, err := ParseLine(raw)
	if err != nil {
		return err
	}
	return check(p)
}

// Check validates a whole listing. Labels must be unique.
func Check(code string) error {
	defined := map[string]int{}
	for i, raw := range strings.Split(code, "\n") {
		lineNo := i + 1
		p, err := ParseLine(raw)
		if err == nil {
			err = check(p)
		}
		if err != nil {
			return ErrSyntax{LineNo: lineNo, Line: strings.TrimSpace(raw), Err: err}
		}
		for _, label := range p.Labels {
			if first, ok := defined[label]; ok {
				return ErrSyntax{LineNo: lineNo, Line: strings.TrimSpace(raw),
					Err: fmt.Errorf("%w: %s (line %d)", ErrLabelDuplicate, label, first)}
			}
			defined[label] = lineNo
		}
	}
	return nil
}
