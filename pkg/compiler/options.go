package compiler

import (
	"log"

	"irc16/pkg/grammar"
)

// Flags selects optional output features.
type Flags uint

const (
	KeepComments            Flags = 1 << iota // copy // comments into the listing
	AddVarNames                               // annotate loads, stores and data cells with the identifier
	AddAstComments                            // precede each statement with its source form
	AddPreamble                               // emit the call .main / hlt entry trampoline
	PositionIndependentCode                   // use relative jumps and calls
)

// Has reports whether every flag in want is set.
func (fl Flags) Has(want Flags) bool {
	return fl&want == want
}

// Options configures one compilation.
type Options struct {
	Flags Flags

	// Grammar is the rule table used to reduce the token stream. Nil
	// selects grammar.Builtin().
	Grammar *grammar.Table

	// MaxRewrites caps the reduction engine. Zero selects its default.
	MaxRewrites int

	// Logger receives one line per diagnostic when set.
	Logger *log.Logger

	// Trace observes every grammar rewrite.
	Trace grammar.Tracer

	// Filename prefixes diagnostic positions.
	Filename string
}

func (o Options) table() *grammar.Table {
	if o.Grammar == nil {
		return grammar.Builtin()
	}
	return o.Grammar
}
