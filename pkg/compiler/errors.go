package compiler

import (
	"errors"

	"irc16/pkg/ir"
	"irc16/pkg/translate"
)

var f = translate.From

var (
	ErrScopeOverflow      = errors.New(f("scope nesting too deep"))
	ErrIdentifierOverflow = errors.New(f("too many identifiers in scope"))
	ErrStaticInitializer  = errors.New(f("static initializer is not a 16-bit numeric literal"))
	ErrRedeclared         = errors.New(f("identifier redeclared"))
	ErrUnknownIdentifier  = errors.New(f("unknown identifier"))
	ErrUnknownNode        = errors.New(f("unrecognized construct"))
	ErrScopeUnbalanced    = errors.New(f("scope end without a matching begin"))
	ErrScopeMismatch      = errors.New(f("scope end does not match its begin"))
	ErrScopeOpen          = errors.New(f("scope still open at end of input"))
	ErrConstAssign        = errors.New(f("assignment to initialized const"))
	ErrInlineAsm          = errors.New(f("invalid inline assembly"))
	ErrArgOutsideRoutine  = errors.New(f("argument reference outside a routine"))
	ErrOuterFrameOperand  = errors.New(f("enclosing frame variable cannot be an inline assembly operand"))
	ErrNumberRange        = errors.New(f("number out of 16-bit range"))
)

// ErrIdentifierMissing names an identifier that is not declared in any
// visible scope.
type ErrIdentifierMissing string

func (err ErrIdentifierMissing) Error() string {
	return f("unknown identifier '%v'", string(err))
}

func (err ErrIdentifierMissing) Unwrap() error {
	return ErrUnknownIdentifier
}

// ErrAt attaches a source position to an error.
type ErrAt struct {
	Pos ir.Pos
	Err error
}

func (err ErrAt) Error() string {
	return f("%v: %v", err.Pos, err.Err)
}

func (err ErrAt) Unwrap() error {
	return err.Err
}

// isFatal reports whether err must abort the whole compilation.
func isFatal(err error) bool {
	for _, fatal := range []error{
		ErrScopeOverflow,
		ErrIdentifierOverflow,
		ErrStaticInitializer,
		ErrRedeclared,
	} {
		if errors.Is(err, fatal) {
			return true
		}
	}
	return false
}
