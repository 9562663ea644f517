package ir

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"irc16/pkg/translate"
)

var f = translate.From

// keywords maps source text to its keyword Kind.
var keywords = map[string]Kind{
	"var":    VAR,
	"static": STATIC,
	"const":  CONST,
	"if":     IF,
	"goto":   GOTO,
	"return": RETURN,
	"call":   CALL,
	"push":   PUSH,
	"free":   FREE,
	"asm":    ASM,
	"irq":    IRQ,
	"endirq": ENDIRQ,
	"arg":    ARG,
}

// ErrSyntax reports a scanner failure at a source position.
type ErrSyntax struct {
	Pos Pos
	Msg string
}

func (err ErrSyntax) Error() string {
	return f("%v: %v", err.Pos, err.Msg)
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src    string
	pos    int // byte offset of the next rune
	line   int
	column int
}

func newLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1, column: 1}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return r
}

func (l *Lexer) peek2() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	_, size := utf8.DecodeRuneInString(l.src[l.pos:])
	if l.pos+size >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos+size:])
	return r
}

func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return r
}

func (l *Lexer) here() Pos {
	return Pos{Offset: l.pos, Line: l.line, Column: l.column}
}

func (l *Lexer) errorf(at Pos, format string, args ...any) error {
	return ErrSyntax{Pos: at, Msg: f(format, args...)}
}

func (l *Lexer) token(kind Kind, text string, start Pos) Token {
	return Token{Type: kind, Text: text, Len: l.pos - start.Offset, Pos: start}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment(start Pos) error {
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return l.errorf(start, "unterminated block comment")
}

func (l *Lexer) scanIdent() Token {
	start := l.here()
	for l.pos < len(l.src) && isIdentPart(l.peek()) {
		l.advance()
	}
	text := l.src[start.Offset:l.pos]
	kind := IDENTIFIER
	if kw, ok := keywords[text]; ok {
		kind = kw
	}
	return l.token(kind, text, start)
}

// scanLabel collects .name; the dot is part of the label text.
func (l *Lexer) scanLabel() Token {
	start := l.here()
	l.advance() // .
	for l.pos < len(l.src) && isIdentPart(l.peek()) {
		l.advance()
	}
	return l.token(LABEL, l.src[start.Offset:l.pos], start)
}

// scanNumber collects a decimal or 0x-prefixed hex literal.
func (l *Lexer) scanNumber() (Token, error) {
	start := l.here()
	if l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X') {
		l.advance()
		l.advance()
		digits := 0
		for l.pos < len(l.src) && strings.ContainsRune("0123456789abcdefABCDEF", l.peek()) {
			l.advance()
			digits++
		}
		if digits == 0 {
			return Token{}, l.errorf(start, "hex literal without digits")
		}
	} else {
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}
	if isIdentStart(l.peek()) {
		return Token{}, l.errorf(start, "malformed number %q", l.src[start.Offset:l.pos+1])
	}
	return l.token(NUMBER, l.src[start.Offset:l.pos], start), nil
}

func unescape(r rune) (rune, bool) {
	switch r {
	case 'n':
		return '\n', true
	case 'r':
		return '\r', true
	case 't':
		return '\t', true
	case '0':
		return 0, true
	case '\\':
		return '\\', true
	case '\'':
		return '\'', true
	case '"':
		return '"', true
	}
	return 0, false
}

// scanChar turns 'c' into a NUMBER token holding its code point.
func (l *Lexer) scanChar() (Token, error) {
	start := l.here()
	l.advance() // '

	r := l.advance()
	switch r {
	case '\'':
		return Token{}, l.errorf(start, "empty character literal")
	case 0, '\n':
		return Token{}, l.errorf(start, "unterminated character literal")
	case '\\':
		next := l.advance()
		esc, ok := unescape(next)
		if !ok {
			return Token{}, l.errorf(start, "unknown escape sequence \\%c", next)
		}
		r = esc
	}

	if l.peek() != '\'' {
		return Token{}, l.errorf(start, "unterminated character literal")
	}
	l.advance()

	return l.token(NUMBER, fmt.Sprintf("%d", r), start), nil
}

// scanString collects "..." for inline assembly; the token text is unquoted.
func (l *Lexer) scanString() (Token, error) {
	start := l.here()
	l.advance() // "
	var sb strings.Builder

	for {
		r := l.peek()
		switch r {
		case 0:
			if l.pos >= len(l.src) {
				return Token{}, l.errorf(start, "unterminated string literal")
			}
		case '"':
			l.advance()
			return l.token(STRING, sb.String(), start), nil
		case '\\':
			l.advance()
			next := l.advance()
			esc, ok := unescape(next)
			if !ok {
				return Token{}, l.errorf(start, "unknown escape sequence \\%c", next)
			}
			sb.WriteRune(esc)
			continue
		}
		sb.WriteRune(l.advance())
	}
}

var punctuation = map[string]Kind{
	";":  SEMICOLON,
	":":  COLON,
	"(":  LPAREN,
	")":  RPAREN,
	"{":  LBRACE,
	"}":  RBRACE,
	"=":  ASSIGN,
	"+":  PLUS,
	"-":  MINUS,
	"*":  STAR,
	"/":  SLASH,
	"%":  PERCENT,
	"&":  AND,
	"|":  PIPE,
	"^":  CARET,
	"~":  TILDE,
	"!":  NOT,
	"<<": SHL_OP,
	">>": SHR_OP,
	"==": EQUALS,
	"!=": NOT_EQ,
	"<":  LESS,
	"<=": LESS_EQ,
	">":  GREATER,
	">=": GREATER_EQ,
	"&&": AND_LOGICAL,
	"||": OR_LOGICAL,
}

// nextToken returns the next token, or ok == false at end of input.
func (l *Lexer) nextToken() (tok Token, ok bool, err error) {
	for {
		for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
			l.advance()
		}
		if l.pos >= len(l.src) {
			return Token{}, false, nil
		}
		if l.peek() == '/' && l.peek2() == '*' {
			start := l.here()
			l.advance()
			l.advance()
			if err := l.skipBlockComment(start); err != nil {
				return Token{}, false, err
			}
			continue
		}
		break
	}

	ch := l.peek()
	start := l.here()

	switch {
	case ch == '/' && l.peek2() == '/':
		for l.pos < len(l.src) && l.peek() != '\n' {
			l.advance()
		}
		text := strings.TrimSpace(strings.TrimPrefix(l.src[start.Offset:l.pos], "//"))
		return l.token(COMMENT, text, start), true, nil
	case isIdentStart(ch):
		return l.scanIdent(), true, nil
	case unicode.IsDigit(ch):
		tok, err := l.scanNumber()
		return tok, err == nil, err
	case ch == '.' && isIdentStart(l.peek2()):
		return l.scanLabel(), true, nil
	case ch == '"':
		tok, err := l.scanString()
		return tok, err == nil, err
	case ch == '\'':
		tok, err := l.scanChar()
		return tok, err == nil, err
	}

	// Longest match first: every two-rune operator starts with a rune that
	// is also a one-rune operator or is rejected below.
	if next := l.peek2(); next != 0 {
		if kind, found := punctuation[string([]rune{ch, next})]; found {
			l.advance()
			l.advance()
			return l.token(kind, l.src[start.Offset:l.pos], start), true, nil
		}
	}
	if kind, found := punctuation[string(ch)]; found {
		l.advance()
		return l.token(kind, l.src[start.Offset:l.pos], start), true, nil
	}

	return Token{}, false, l.errorf(start, "unexpected character %q", ch)
}

// Lex tokenises src. It stops at the first illegal character or
// unterminated literal.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, ok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		if !ok {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}
