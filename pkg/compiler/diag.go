package compiler

import (
	"errors"
	"fmt"

	"irc16/pkg/ir"
)

type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Warning {
		return f("warning")
	}
	return f("error")
}

// Diagnostic is one problem found while compiling.
type Diagnostic struct {
	Severity Severity
	Pos      ir.Pos
	Err      error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%v: %v: %v", d.Pos, d.Severity, d.Err)
}

// Output is the result of a compilation that was not aborted.
type Output struct {
	Assembly    string
	Diagnostics []Diagnostic
	Fingerprint string
}

// Failed reports whether any diagnostic is an error. Assembly of a failed
// compilation contains placeholders and must not be assembled.
func (o *Output) Failed() bool {
	for _, d := range o.Diagnostics {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Err joins the error diagnostics, or returns nil.
func (o *Output) Err() error {
	var errs []error
	for _, d := range o.Diagnostics {
		if d.Severity == Error {
			errs = append(errs, ErrAt{Pos: d.Pos, Err: d.Err})
		}
	}
	return errors.Join(errs...)
}
