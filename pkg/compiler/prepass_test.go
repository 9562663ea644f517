package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irc16/pkg/ir"
)

func parse(t *testing.T, src string) []ir.Node {
	t.Helper()
	roots, err := Parse(src, Options{})
	require.NoError(t, err)
	return roots
}

func TestFrameSizes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []int
	}{
		{"None", "var a;", nil},
		{"Empty", "{ }", []int{0}},
		{"Locals", "{ var a; var b; var; }", []int{6}},
		{"StaticInside", "{ static var s; var a; }", []int{2}},
		{"Nested", "{ var a; { var b; var c; } var d; } irq var e; endirq", []int{4, 4, 2}},
		{"Unbalanced", "} { var a; }", []int{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, frameSizes(parse(t, tt.src)))
		})
	}
}

func TestLiteralValue(t *testing.T) {
	tests := []struct {
		src  string
		want string
		ok   bool
	}{
		{"5", "5", true},
		{"0x1F", "0x1F", true},
		{"(7)", "7", true},
		{"-3", "-3", true},
		{"-(-3)", "3", true},
		{"'A'", "65", true},
		{"1 + 2", "", false},
		{"y", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			roots := parse(t, "x = "+tt.src+";")
			require.Len(t, roots, 1)
			_, value := assignee(roots[0])
			require.NotNil(t, value)

			got, ok := literalValue(value)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaticData(t *testing.T) {
	roots := parse(t, `
var a;
var b = 3;
{
    static var c = -4;
    var d;
    a = 9;
}
var;
a = 7;
a = 8;
`)
	layout, err := staticData(roots)
	require.NoError(t, err)

	want := []staticCell{
		{name: "a", value: "7", offset: 0},
		{name: "b", value: "3", offset: 2},
		{name: "c", value: "-4", offset: 4},
		{name: "", value: "", offset: 6},
	}
	if diff := cmp.Diff(want, layout.cells, cmp.AllowUnexported(staticCell{})); diff != "" {
		t.Errorf("static cells mismatch (-want +got):\n%s", diff)
	}

	consumed := 0
	for n := range layout.consumed {
		consumed++
		assert.Equal(t, "a = 7", ir.Source(n))
	}
	assert.Equal(t, 1, consumed)
}

func TestStaticDataErrors(t *testing.T) {
	for _, src := range []string{
		"var x; x = y + 1;",
		"static var x = (1 + 2);",
		"{ static var x = arg 0; }",
		"var x = 99999;",
		"var x; x = -40000;",
		"static var x = -0x10000;",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := staticData(parse(t, src))
			assert.ErrorIs(t, err, ErrStaticInitializer)
		})
	}

	// Assignments inside a scope are code, not initializers.
	layout, err := staticData(parse(t, "var x; { x = y + 1; }"))
	require.NoError(t, err)
	assert.Equal(t, "", layout.cells[0].value)

	// A static inside a scope takes only its own initializer.
	layout, err = staticData(parse(t, "{ static var s; } s = 4;"))
	require.NoError(t, err)
	require.Len(t, layout.cells, 1)
	assert.Equal(t, "", layout.cells[0].value)
	assert.Empty(t, layout.consumed)

	layout, err = staticData(parse(t, "var lo = -32768; var hi = 0xFFFF;"))
	require.NoError(t, err)
	assert.Equal(t, "-32768", layout.cells[0].value)
	assert.Equal(t, "0xFFFF", layout.cells[1].value)
}
