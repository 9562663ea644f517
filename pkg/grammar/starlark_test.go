package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irc16/pkg/ir"
)

func TestLoadStarlark(t *testing.T) {
	assert := assert.New(t)

	src := `
# Treat a bare label as a value.
rule(
    context = ["PUSH", "LABEL", "SEMICOLON"],
    output = "CallPushArg",
    priority = 240,
    description = "push label",
    dispositions = ["replace", "replace", "discard"],
)

for kind in ["IRQ", "ENDIRQ"]:
    rule(context = [kind, "SEMICOLON"], output = "CommentStatement", priority = 245,
         invert = [False, True], dispositions = ["replace", "keep"])
`
	rules, err := LoadStarlark("ext.star", src)
	require.NoError(t, err)
	require.Len(t, rules, 3)

	r := rules[0]
	assert.Equal([]ir.Kind{ir.PUSH, ir.LABEL, ir.SEMICOLON}, r.Context)
	assert.Equal([]bool{false, false, false}, r.Invert)
	assert.Equal([]Disposition{Replace, Replace, Discard}, r.Dispositions)
	assert.Equal(ir.CallPushArg, r.Output)
	assert.Equal(240, r.Priority)
	assert.Equal("push label", r.Description)

	assert.Equal([]ir.Kind{ir.ENDIRQ, ir.SEMICOLON}, rules[2].Context)
	assert.Equal([]bool{false, true}, rules[2].Invert)

	table := Builtin()
	require.NoError(t, table.Extend(rules...))

	tokens, err := ir.Lex("push .handler;")
	require.NoError(t, err)
	nodes, err := Reduce(tokens, table)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(ir.CallPushArg, nodes[0].Kind())
	assert.Equal("push .handler", ir.Source(nodes[0]))
}

func TestLoadStarlarkErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		err  error
	}{
		{"Unknown kind", `rule(context = ["WIDGET"], output = "Expr", priority = 1)`, ErrExtension},
		{"Unknown output", `rule(context = ["NUMBER"], output = "Widget", priority = 1)`, ErrExtension},
		{"Unknown disposition", `rule(context = ["NUMBER"], output = "Expr", priority = 1, dispositions = ["copy"])`, ErrExtension},
		{"Bad invert", `rule(context = ["NUMBER"], output = "Expr", priority = 1, invert = ["yes"])`, ErrExtension},
		{"No replace", `rule(context = ["NUMBER"], output = "Expr", priority = 1, dispositions = ["keep"])`, ErrMalformedRule},
		{"Length mismatch", `rule(context = ["NUMBER"], output = "Expr", priority = 1, invert = [True, False])`, ErrMalformedRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadStarlark("bad.star", tt.src)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err := LoadStarlark("syntax.star", "rule(")
	assert.Error(t, err)

	_, err = LoadStarlark("args.star", `rule(output = "Expr", priority = 1)`)
	assert.Error(t, err)
}
