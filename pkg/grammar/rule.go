// Package grammar holds the rule tables that drive the token-rewriting
// reducer, and the reducer itself.
package grammar

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"irc16/pkg/ir"
	"irc16/pkg/translate"
)

var f = translate.From

var (
	ErrMalformedRule  = errors.New(f("malformed grammar rule"))
	ErrNonTerminating = errors.New(f("grammar did not terminate"))
)

// MaxContext is the longest context a rule may match.
const MaxContext = 8

// Disposition says what happens to a matched element when its rule fires.
type Disposition int

const (
	Replace Disposition = iota // becomes a child of the new node
	Discard                    // dropped from the sequence
	Keep                       // left in place, unchanged
)

var dispositionNames = [...]string{
	Replace: "replace",
	Discard: "discard",
	Keep:    "keep",
}

func (d Disposition) String() string {
	if d >= 0 && int(d) < len(dispositionNames) {
		return dispositionNames[d]
	}
	return fmt.Sprintf("Disposition(%d)", int(d))
}

// ParseDisposition is the inverse of Disposition.String.
func ParseDisposition(name string) (Disposition, bool) {
	for d, n := range dispositionNames {
		if n == name {
			return Disposition(d), true
		}
	}
	return Replace, false
}

// Rule rewrites a run of nodes whose kinds match Context into a single node
// of kind Output. Invert[i] turns position i into a "not this kind" test.
type Rule struct {
	Context      []ir.Kind
	Invert       []bool
	Dispositions []Disposition
	Output       ir.Kind
	Priority     int
	Description  string
}

// Sentinel terminates a literal rule table.
var Sentinel = Rule{}

func (r Rule) isSentinel() bool {
	return len(r.Context) == 0
}

// ErrRule wraps a validation failure with the offending row.
type ErrRule struct {
	Index int
	Rule  Rule
	Err   error
}

func (err ErrRule) Error() string {
	return f("rule %d (%s): %v", err.Index, err.Rule.Description, err.Err)
}

func (err ErrRule) Unwrap() error {
	return err.Err
}

// normalize fills in omitted Invert and Dispositions slices.
func (r Rule) normalize() Rule {
	if r.Invert == nil {
		r.Invert = make([]bool, len(r.Context))
	}
	if r.Dispositions == nil {
		r.Dispositions = make([]Disposition, len(r.Context))
	}
	return r
}

func (r Rule) validate() error {
	n := len(r.Context)
	switch {
	case n < 1 || n > MaxContext:
		return fmt.Errorf("%w: %s", ErrMalformedRule, f("context length %v", n))
	case len(r.Invert) != n:
		return fmt.Errorf("%w: %s", ErrMalformedRule, f("invert length %v, context length %v", len(r.Invert), n))
	case len(r.Dispositions) != n:
		return fmt.Errorf("%w: %s", ErrMalformedRule, f("disposition length %v, context length %v", len(r.Dispositions), n))
	case !r.Output.Valid():
		return fmt.Errorf("%w: %s", ErrMalformedRule, f("invalid output kind %v", r.Output))
	}

	replaced := false
	for i, k := range r.Context {
		if !k.Valid() {
			return fmt.Errorf("%w: %s", ErrMalformedRule, f("invalid context kind at %v", i))
		}
		switch r.Dispositions[i] {
		case Replace:
			replaced = true
		case Discard, Keep:
		default:
			return fmt.Errorf("%w: %s", ErrMalformedRule, f("unknown disposition %v", r.Dispositions[i]))
		}
	}
	if !replaced {
		return fmt.Errorf("%w: %s", ErrMalformedRule, f("no replace entry"))
	}
	return nil
}

// String is the canonical row encoding used by Fingerprint.
func (r Rule) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%v %d", r.Output, r.Priority)
	for i, k := range r.Context {
		sb.WriteByte(' ')
		if r.Invert[i] {
			sb.WriteByte('!')
		}
		sb.WriteString(k.String())
		if d := r.Dispositions[i]; d != Replace {
			sb.WriteByte('/')
			sb.WriteString(d.String())
		}
	}
	return sb.String()
}

// Table is an ordered, validated list of rules. Row order is significant:
// it breaks priority ties between rules matching at the same position.
type Table struct {
	rules []Rule
}

// NewTable validates rows up to the first Sentinel.
func NewTable(rows ...Rule) (*Table, error) {
	t := &Table{}
	if err := t.Extend(rows...); err != nil {
		return nil, err
	}
	return t, nil
}

// Extend appends rows up to the first Sentinel. On error the table is left
// unchanged.
func (t *Table) Extend(rows ...Rule) error {
	added := make([]Rule, 0, len(rows))
	for _, row := range rows {
		if row.isSentinel() {
			break
		}
		row = row.normalize()
		if err := row.validate(); err != nil {
			return ErrRule{Index: len(t.rules) + len(added), Rule: row, Err: err}
		}
		added = append(added, row)
	}
	t.rules = append(t.rules, added...)
	return nil
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}

// Rule returns rule i.
func (t *Table) Rule(i int) Rule {
	return t.rules[i]
}

// Rules returns a copy of the rows.
func (t *Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Fingerprint identifies the table contents. Descriptions are not part of
// the digest.
func (t *Table) Fingerprint() string {
	h, _ := blake2b.New256(nil)
	for _, r := range t.rules {
		h.Write([]byte(r.String()))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
