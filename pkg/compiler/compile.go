package compiler

import (
	"irc16/pkg/grammar"
	"irc16/pkg/ir"
)

// statementEnds are the tokens after which a new statement may start.
var statementEnds = map[ir.Kind]bool{
	ir.SEMICOLON: true,
	ir.LBRACE:    true,
	ir.RBRACE:    true,
	ir.COLON:     true,
	ir.IRQ:       true,
	ir.ENDIRQ:    true,
}

// hoistComments moves comments that sit inside a statement to just after
// it, so a kept comment never splits a statement.
func hoistComments(tokens []ir.Token) []ir.Token {
	out := make([]ir.Token, 0, len(tokens))
	var pending []ir.Token
	boundary := true
	for _, tok := range tokens {
		if tok.Type == ir.COMMENT {
			if boundary {
				out = append(out, tok)
			} else {
				pending = append(pending, tok)
			}
			continue
		}
		out = append(out, tok)
		boundary = statementEnds[tok.Type]
		if boundary {
			out = append(out, pending...)
			pending = pending[:0]
		}
	}
	return append(out, pending...)
}

// Parse scans src and reduces it with the configured grammar.
func Parse(src string, opts Options) ([]ir.Node, error) {
	tokens, err := ir.Lex(src)
	if err != nil {
		return nil, err
	}

	if opts.Flags.Has(KeepComments) {
		tokens = hoistComments(tokens)
	} else {
		kept := tokens[:0]
		for _, tok := range tokens {
			if tok.Type != ir.COMMENT {
				kept = append(kept, tok)
			}
		}
		tokens = kept
	}

	var reduceOpts []grammar.Option
	if opts.MaxRewrites > 0 {
		reduceOpts = append(reduceOpts, grammar.WithMaxRewrites(opts.MaxRewrites))
	}
	if opts.Trace != nil {
		reduceOpts = append(reduceOpts, grammar.WithTrace(opts.Trace))
	}
	return grammar.Reduce(tokens, opts.table(), reduceOpts...)
}

// Compile lowers IR source to assembly. A non-nil error means the
// compilation was aborted; otherwise the Output carries the listing and
// every diagnostic, and Output.Failed tells whether it may be assembled.
func Compile(src string, opts Options) (*Output, error) {
	opts.Grammar = opts.table()

	roots, err := Parse(src, opts)
	if err != nil {
		return nil, err
	}
	return Generate(roots, opts)
}
