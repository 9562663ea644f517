package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"irc16/pkg/asm"
	"irc16/pkg/ir"
)

func isWordStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isWordPart(r rune) bool {
	return isWordStart(r) || unicode.IsDigit(r)
}

// substitute replaces identifier operands of one assembly line with their
// memory operands. The mnemonic, registers, labels and immediates are left
// alone, as is anything after a comment marker.
func (cg *Compilation) substitute(line string) (string, error) {
	code, comment := line, ""
	if i := strings.IndexByte(line, ';'); i >= 0 {
		code, comment = line[:i], line[i:]
	}

	var sb strings.Builder
	seenMnemonic := false
	for i := 0; i < len(code); {
		r, size := utf8.DecodeRuneInString(code[i:])
		if !isWordStart(r) {
			sb.WriteString(code[i : i+size])
			i += size
			continue
		}
		j := i + size
		for j < len(code) {
			r, size := utf8.DecodeRuneInString(code[j:])
			if !isWordPart(r) {
				break
			}
			j += size
		}
		word := code[i:j]
		prev, _ := utf8.DecodeLastRuneInString(code[:i])
		isLabel := j < len(code) && code[j] == ':'

		switch {
		case prev == '.' || prev == '$' || unicode.IsDigit(prev) || isLabel:
			sb.WriteString(word)
		case !seenMnemonic:
			seenMnemonic = true
			sb.WriteString(word)
		case asm.IsRegister(word):
			sb.WriteString(word)
		default:
			id, ok := cg.scopes.Lookup(word)
			if !ok {
				sb.WriteString(word)
				break
			}
			operand, err := cg.operand(id)
			if err != nil {
				return "", err
			}
			sb.WriteString(operand)
		}
		i = j
	}
	return sb.String() + comment, nil
}

// operand returns id as a single memory operand.
func (cg *Compilation) operand(id *Identifier) (string, error) {
	if id.Storage == Static {
		return memory(StaticLabel, id.Offset), nil
	}
	if id.Level != cg.scopes.Depth() {
		return "", fmt.Errorf("%w: %s", ErrOuterFrameOperand, id.Name)
	}
	return memory("fp", id.Offset), nil
}

func (cg *Compilation) genInlineAsm(text *ir.Leaf) error {
	for _, raw := range strings.Split(text.Text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		line, err := cg.substitute(raw)
		if err != nil {
			return ErrAt{Pos: text.Pos, Err: fmt.Errorf("%w: %w", ErrInlineAsm, err)}
		}
		if err := asm.CheckLine(line); err != nil {
			return ErrAt{Pos: text.Pos, Err: fmt.Errorf("%w: %w", ErrInlineAsm, err)}
		}
		cg.line("    %s", line)
	}
	return nil
}
