package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irc16/pkg/asm"
	"irc16/pkg/grammar"
)

// assertContains checks if the generated code contains the expected substring.
func assertContains(t *testing.T, code, expected string) {
	t.Helper()
	if !strings.Contains(code, expected) {
		t.Errorf("Expected code to contain %q, but it didn't.\nCode:\n%s", expected, code)
	}
}

func assertNotContains(t *testing.T, code, unexpected string) {
	t.Helper()
	if strings.Contains(code, unexpected) {
		t.Errorf("Expected code NOT to contain %q, but it did.\nCode:\n%s", unexpected, code)
	}
}

// compile compiles src, fails on any error diagnostic and checks that the
// listing is valid assembler input.
func compile(t *testing.T, src string, flags Flags) *Output {
	t.Helper()
	out, err := Compile(src, Options{Flags: flags})
	require.NoError(t, err)
	require.False(t, out.Failed(), "diagnostics: %v", out.Diagnostics)
	require.NoError(t, asm.Check(out.Assembly))
	return out
}

func lines(s ...string) string {
	return strings.Join(s, "\n") + "\n"
}

func TestCompile_TopLevelStatic(t *testing.T) {
	out := compile(t, "var x; x = 5;", 0)

	assertContains(t, out.Assembly, lines(
		"; static data",
		".__static:",
		"    .data 5",
	))
	assertNotContains(t, out.Assembly, "mov")
	assert.Empty(t, out.Diagnostics)
}

func TestCompile_Header(t *testing.T) {
	out := compile(t, "", 0)

	fp := grammar.Builtin().Fingerprint()
	assert.Equal(t, fp, out.Fingerprint)
	assert.Equal(t, lines(
		"; irc16 grammar "+fp,
		".code",
		"; static data",
		".__static:",
	), out.Assembly)

	out = compile(t, "", AddPreamble)
	assertContains(t, out.Assembly, lines(".code", "    call .main", "    hlt"))
}

func TestCompile_ScopeLocals(t *testing.T) {
	out := compile(t, "{ var a; var b; a = 1; b = a + 2; }", 0)

	assertContains(t, out.Assembly, lines(
		"    push fp",
		"    mov fp, sp",
		"    sub sp, $4",
		"    mov r1, $1",
		"    mov [fp - 2], r1",
		"    mov r1, [fp - 2]",
		"    mov r0, r1",
		"    mov r1, $2",
		"    add r1, r0",
		"    mov [fp - 4], r1",
	))
}

func TestCompile_ConstantConditionNotFolded(t *testing.T) {
	out := compile(t, "if 0 .skip; .skip:", 0)

	assertContains(t, out.Assembly, lines(
		"    mov r1, $0",
		"    cmp r1, $0",
		"    jnz .skip",
		".skip:",
	))
}

func TestCompile_UnknownIdentifiers(t *testing.T) {
	src := "{\n var a;\n a = y;\n a = 1;\n z = 2;\n}"
	out, err := Compile(src, Options{})
	require.NoError(t, err)
	require.True(t, out.Failed())
	require.Len(t, out.Diagnostics, 2)

	first := out.Diagnostics[0]
	assert.Equal(t, Error, first.Severity)
	assert.Equal(t, 3, first.Pos.Line)
	assert.Equal(t, 6, first.Pos.Column)
	assert.Equal(t, ErrIdentifierMissing("y"), first.Err)

	second := out.Diagnostics[1]
	assert.Equal(t, 5, second.Pos.Line)
	assert.ErrorIs(t, second.Err, ErrUnknownIdentifier)
	assert.Contains(t, second.String(), "'z'")

	assertContains(t, out.Assembly, "    ; error: 3:6: unknown identifier 'y'\n")
	assertContains(t, out.Assembly, "    ; error: 5:2: unknown identifier 'z'\n")
	// The statement between the two errors is still compiled.
	assertContains(t, out.Assembly, lines("    mov r1, $1", "    mov [fp - 2], r1"))

	assert.ErrorIs(t, out.Err(), ErrUnknownIdentifier)
	require.NoError(t, asm.Check(out.Assembly))
}

func TestCompile_StaticLayout(t *testing.T) {
	src := `
var a;
var b = 3;
{
    static var c = 4;
    var d;
    d = c;
}
static var e;
var;
a = 7;
b = a;
`
	out := compile(t, src, AddVarNames)

	assertContains(t, out.Assembly, lines(
		".__static:",
		"    .data 7    ; a",
		"    .data 3    ; b",
		"    .data 4    ; c",
		"    .reserve 2    ; e",
		"    .reserve 2",
	))

	// d = c
	assertContains(t, out.Assembly, lines(
		"    sub sp, $2",
		"    mov r0, $.__static",
		"    add r0, $4",
		"    mov r1, [r0]    ; c",
		"    mov [fp - 2], r1    ; d",
	))

	// b = a
	assertContains(t, out.Assembly, lines(
		"    mov r0, $.__static",
		"    mov r1, [r0]    ; a",
		"    mov r0, $.__static",
		"    add r0, $2",
		"    mov [r0], r1    ; b",
	))

	// Every static declaration owns exactly one 2-byte cell.
	data := out.Assembly[strings.Index(out.Assembly, ".__static:"):]
	cells := strings.Count(data, ".data ") + strings.Count(data, ".reserve 2")
	assert.Equal(t, 5, cells)
}

func TestCompile_Fatal(t *testing.T) {
	tests := []struct {
		name string
		src  string
		err  error
	}{
		{"ScopeOverflow", strings.Repeat("{\n", 16) + strings.Repeat("}\n", 16), ErrScopeOverflow},
		{"StaticInitializer", "var x;\nx = y + 1;", ErrStaticInitializer},
		{"Redeclared", "{ var a; var a; }", ErrRedeclared},
		{"RedeclaredStatic", "var a; static var a;", ErrRedeclared},
		{"StaticOutOfRange", "var g = 99999;", ErrStaticInitializer},
		{"StaticAssignmentOutOfRange", "var g;\ng = -40000;", ErrStaticInitializer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Compile(tt.src, Options{})
			assert.Nil(t, out)
			assert.ErrorIs(t, err, tt.err)

			var at ErrAt
			assert.True(t, errors.As(err, &at))
			assert.NotZero(t, at.Pos.Line)
		})
	}

	t.Run("IdentifierOverflow", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString("{\n")
		for i := 0; i <= MaxIdentifiers; i++ {
			fmt.Fprintf(&sb, "var v%d;\n", i)
		}
		sb.WriteString("}\n")

		out, err := Compile(sb.String(), Options{})
		assert.Nil(t, out)
		assert.ErrorIs(t, err, ErrIdentifierOverflow)
	})
}

func TestCompile_NumberRange(t *testing.T) {
	for _, src := range []string{
		"{ var a; a = 70000; }",
		"{ free 70000; }",
		"{ var a = 1 + 0x10000; }",
	} {
		t.Run(src, func(t *testing.T) {
			out, err := Compile(src, Options{})
			require.NoError(t, err)
			require.True(t, out.Failed())
			require.Len(t, out.Diagnostics, 1)
			assert.ErrorIs(t, out.Diagnostics[0].Err, ErrNumberRange)
			assertContains(t, out.Assembly, "    ; error: ")
			require.NoError(t, asm.Check(out.Assembly))
		})
	}

	out := compile(t, "var g = -32768; { var a; a = 0xFFFF; a = -32768; free 2; }", 0)
	assertContains(t, out.Assembly, "    .data -32768\n")
	assertContains(t, out.Assembly, "    mov r1, $0xFFFF\n")
	assertContains(t, out.Assembly, lines("    mov r1, $32768", "    neg r1"))
	assertContains(t, out.Assembly, "    add sp, $2\n")
}

func TestCompile_FailedDeclarationKeepsSlot(t *testing.T) {
	out, err := Compile("{ var a = y; var b; b = 1; }", Options{})
	require.NoError(t, err)
	require.True(t, out.Failed())
	require.Len(t, out.Diagnostics, 1)
	assert.ErrorIs(t, out.Diagnostics[0].Err, ErrUnknownIdentifier)

	assertContains(t, out.Assembly, "    sub sp, $4\n")
	assertContains(t, out.Assembly, lines("    mov r1, $1", "    mov [fp - 4], r1"))
	assertNotContains(t, out.Assembly, "[fp - 2]")
}

func TestCompile_MaxDepth(t *testing.T) {
	src := strings.Repeat("{\n", MaxScopeDepth-1) + strings.Repeat("}\n", MaxScopeDepth-1)
	out := compile(t, src, 0)
	assert.Equal(t, MaxScopeDepth-1, strings.Count(out.Assembly, "    push fp\n"))
	// The outermost scope is a routine body and is left with a return.
	assert.Equal(t, MaxScopeDepth-2, strings.Count(out.Assembly, "    pop fp\n"))
}

func TestCompile_Shadowing(t *testing.T) {
	out := compile(t, "var a;\n{\n var a;\n a = 1;\n}", 0)

	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, Warning, out.Diagnostics[0].Severity)
	assert.Equal(t, 3, out.Diagnostics[0].Pos.Line)
	assertContains(t, out.Assembly, "    mov [fp - 2], r1\n")
}

func TestCompile_PositionIndependent(t *testing.T) {
	out := compile(t, "call .f; goto .l; if 1 .l; .l: call .l;", AddPreamble|PositionIndependentCode)

	assertContains(t, out.Assembly, "    rcall .main\n")
	assertContains(t, out.Assembly, "    rcall .f\n")
	assertContains(t, out.Assembly, "    rjmp .l\n")
	assertContains(t, out.Assembly, "    rjnz .l\n")
	assertNotContains(t, out.Assembly, "    call .")
	assertNotContains(t, out.Assembly, "    jmp .")
}

func TestCompile_Calls(t *testing.T) {
	out := compile(t, "var f; push 3; push f; call .f; free 4; call f;", 0)

	assertContains(t, out.Assembly, lines(
		"    mov r1, $3",
		"    push r1",
		"    mov r0, $.__static",
		"    mov r1, [r0]",
		"    push r1",
		"    call .f",
		"    add sp, $4",
		"    mov r0, $.__static",
		"    mov r1, [r0]",
		"    call r1",
	))
}

func TestCompile_Goto(t *testing.T) {
	out := compile(t, ".top: goto .top; { var t; goto t; }", 0)

	assertContains(t, out.Assembly, lines(".top:", "    jmp .top"))
	assertContains(t, out.Assembly, lines("    mov r1, [fp - 2]", "    jmp r1"))
}

func TestCompile_Irq(t *testing.T) {
	out := compile(t, "irq\nvar t;\nt = 1;\nreturn;\nendirq\n", 0)

	exit := lines(
		"    mov sp, fp",
		"    pop fp",
		"    pop r2",
		"    pop r1",
		"    pop r0",
		"    sti",
		"    iret",
	)
	assertContains(t, out.Assembly, lines(
		"    cli",
		"    push r0",
		"    push r1",
		"    push r2",
		"    push fp",
		"    mov fp, sp",
		"    sub sp, $2",
		"    mov r1, $1",
		"    mov [fp - 2], r1",
	)+exit+exit)
	assertNotContains(t, out.Assembly, "    ret\n")
}

func TestCompile_NestedReturn(t *testing.T) {
	out := compile(t, "{ var a; { var b; b = a; return b; } }", 0)

	assertContains(t, out.Assembly, lines(
		"    mov r0, fp",
		"    mov r0, [r0]",
		"    mov r1, [r0 - 2]",
		"    mov [fp - 2], r1",
		"    mov r1, [fp - 2]",
		"    mov sp, fp",
		"    pop fp",
		"    mov sp, fp",
		"    pop fp",
		"    ret",
		// inner scope end
		"    mov sp, fp",
		"    pop fp",
	))
	assert.True(t, strings.HasSuffix(out.Assembly, lines(
		"    pop fp",
		"; static data",
		".__static:",
	)))
}

func TestCompile_TopLevelReturn(t *testing.T) {
	out := compile(t, "return 2;", 0)
	assertContains(t, out.Assembly, lines("    mov r1, $2", "    ret"))
}

func TestCompile_Arguments(t *testing.T) {
	out := compile(t, "{ return arg 1 + arg 0; }", 0)
	assertContains(t, out.Assembly, lines(
		"    mov r1, [fp + 6]",
		"    mov r0, r1",
		"    mov r1, [fp + 4]",
		"    add r1, r0",
		"    mov sp, fp",
		"    pop fp",
		"    ret",
	))

	out = compile(t, "{ { return arg 0; } }", 0)
	assertContains(t, out.Assembly, lines(
		"    mov r0, fp",
		"    mov r0, [r0]",
		"    mov r1, [r0 + 4]",
	))

	bad, err := Compile("return arg 0; irq return arg 0; endirq", Options{})
	require.NoError(t, err)
	require.Len(t, bad.Diagnostics, 2)
	for _, d := range bad.Diagnostics {
		assert.ErrorIs(t, d.Err, ErrArgOutsideRoutine)
	}
}

func TestCompile_Expressions(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{"a - 3", []string{
			"    mov r1, [fp - 2]",
			"    mov r0, r1",
			"    mov r1, $3",
			"    sub r0, r1",
			"    mov r1, r0",
		}},
		{"a - (a * 2)", []string{
			"    mov r1, [fp - 2]",
			"    push r1",
			"    mov r1, [fp - 2]",
			"    mov r0, r1",
			"    mov r1, $2",
			"    mul r1, r0",
			"    pop r0",
			"    sub r0, r1",
			"    mov r1, r0",
		}},
		{"a < 3", []string{
			"    cmp r0, r1",
			"    mov r1, $0",
			"    movle r1, $1",
			"    moveq r1, $0",
		}},
		{"a >= 3", []string{
			"    cmp r0, r1",
			"    mov r1, $0",
			"    movge r1, $1",
			"    mov [fp - 2], r1",
		}},
		{"a != 3", []string{"    movne r1, $1"}},
		{"a && 3", []string{
			"    cmp r0, $0",
			"    mov r0, $0",
			"    movne r0, $1",
			"    cmp r1, $0",
			"    mov r1, $0",
			"    movne r1, $1",
			"    and r1, r0",
		}},
		{"a >> 1", []string{"    shr r0, r1"}},
		{"a ^ 1", []string{"    xor r1, r0"}},
		{"-a", []string{"    mov r1, [fp - 2]", "    neg r1"}},
		{"~a", []string{"    not r1"}},
		{"!a", []string{
			"    cmp r1, $0",
			"    mov r1, $0",
			"    moveq r1, $1",
		}},
		{"*a", []string{"    mov r1, [fp - 2]", "    mov r1, [r1]"}},
		{"a + -a", []string{
			"    mov r0, r1",
			"    mov r1, [fp - 2]",
			"    neg r1",
			"    add r1, r0",
		}},
		{"a + g", []string{
			"    push r1",
			"    mov r0, $.__static",
			"    mov r1, [r0]",
			"    pop r0",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			out := compile(t, "var g; { var a; a = "+tt.expr+"; }", 0)
			assertContains(t, out.Assembly, lines(tt.want...))
		})
	}
}

func TestCompile_DerefAssignment(t *testing.T) {
	out := compile(t, "{ var p; *p = 5; }", 0)
	assertContains(t, out.Assembly, lines(
		"    mov r1, $5",
		"    mov r0, [fp - 2]",
		"    mov [r0], r1",
	))
}

func TestCompile_InlineAsm(t *testing.T) {
	src := `var g; var h; { var l; asm "mov l, r1\nadd r1, $0x10 ; bump\n\n.spin: mov h, r1"; }`
	out := compile(t, src, 0)
	assertContains(t, out.Assembly, lines(
		"    mov [fp - 2], r1",
		"    add r1, $0x10 ; bump",
		"    .spin: mov [.__static + 2], r1",
	))

	out, err := Compile(`asm "frob r1"; { var a; { asm "mov a, r1"; } }`, Options{})
	require.NoError(t, err)
	require.Len(t, out.Diagnostics, 2)
	assert.ErrorIs(t, out.Diagnostics[0].Err, ErrInlineAsm)
	assert.ErrorIs(t, out.Diagnostics[0].Err, asm.ErrOpcodeInvalid)
	assert.ErrorIs(t, out.Diagnostics[1].Err, ErrOuterFrameOperand)
}

func TestCompile_InlineAsmUnicodeIdentifier(t *testing.T) {
	out := compile(t, `var zähler; { var größe; asm "mov größe, r1\nmov zähler, r1"; }`, 0)
	assertContains(t, out.Assembly, lines(
		"    mov [fp - 2], r1",
		"    mov [.__static], r1",
	))
}

func TestCompile_Const(t *testing.T) {
	out, err := Compile("{ const var c = 1; c = 2; }", Options{})
	require.NoError(t, err)
	require.Len(t, out.Diagnostics, 1)
	assert.ErrorIs(t, out.Diagnostics[0].Err, ErrConstAssign)

	out, err = Compile("{ const var c; c = 1; c = 2; }", Options{})
	require.NoError(t, err)
	require.Len(t, out.Diagnostics, 2)
	assert.Equal(t, Warning, out.Diagnostics[0].Severity)
	assert.ErrorIs(t, out.Diagnostics[1].Err, ErrConstAssign)

	// A top-level initializer counts as the value of a static const.
	out, err = Compile("const var k; k = 4; { var a; a = k; }", Options{})
	require.NoError(t, err)
	assert.Empty(t, out.Diagnostics)
}

func TestCompile_ScopeErrors(t *testing.T) {
	out, err := Compile("}", Options{})
	require.NoError(t, err)
	require.Len(t, out.Diagnostics, 1)
	assert.ErrorIs(t, out.Diagnostics[0].Err, ErrScopeUnbalanced)

	out, err = Compile("irq }", Options{})
	require.NoError(t, err)
	require.Len(t, out.Diagnostics, 1)
	assert.ErrorIs(t, out.Diagnostics[0].Err, ErrScopeMismatch)

	out, err = Compile("{ var a;", Options{})
	require.NoError(t, err)
	require.Len(t, out.Diagnostics, 1)
	assert.ErrorIs(t, out.Diagnostics[0].Err, ErrScopeOpen)
	assert.True(t, out.Failed())
}

func TestCompile_UnrecognizedRun(t *testing.T) {
	out, err := Compile("var y; x = ; y = 1; push .l;", Options{})
	require.NoError(t, err)
	require.Len(t, out.Diagnostics, 2)
	for _, d := range out.Diagnostics {
		assert.ErrorIs(t, d.Err, ErrUnknownNode)
	}
	assert.Equal(t, 8, out.Diagnostics[0].Pos.Column)
	assertContains(t, out.Assembly, "    .data 1\n")
	require.NoError(t, asm.Check(out.Assembly))
}

func TestCompile_Comments(t *testing.T) {
	src := "// entry\n{ var a; a = 1 + 2; }"

	out := compile(t, src, 0)
	assertNotContains(t, out.Assembly, "entry")

	out = compile(t, src, KeepComments|AddAstComments)
	assertContains(t, out.Assembly, "; entry\n")
	assertContains(t, out.Assembly, lines(
		"    ; a = 1 + 2",
		"    mov r1, $1",
	))
	assertContains(t, out.Assembly, "    ; var a\n")
}

func TestCompile_CommentInsideStatement(t *testing.T) {
	src := "{\n var a;\n a = 1 + // carry\n 2;\n if a // check\n .done;\n.done:\n}"
	plain := compile(t, src, 0)
	kept := compile(t, src, KeepComments)

	assertContains(t, kept.Assembly, lines(
		"    add r1, r0",
		"    mov [fp - 2], r1",
		"; carry",
	))
	assertContains(t, kept.Assembly, lines("    jnz .done", "; check", ".done:"))

	stripped := strings.Replace(kept.Assembly, "; carry\n", "", 1)
	stripped = strings.Replace(stripped, "; check\n", "", 1)
	assert.Equal(t, plain.Assembly, stripped)
}

func TestCompile_Logger(t *testing.T) {
	var buf bytes.Buffer
	opts := Options{Logger: log.New(&buf, "", 0), Filename: "prog.ir"}

	_, err := Compile("\n  y = 1;", opts)
	require.NoError(t, err)
	assert.Equal(t, "prog.ir:2:3: error: unknown identifier 'y'\n", buf.String())
}

func TestCompile_GrammarErrors(t *testing.T) {
	_, err := Compile("x = 1 + 2 + 3;", Options{MaxRewrites: 2})
	assert.ErrorIs(t, err, grammar.ErrNonTerminating)

	_, err = Compile(`asm "unterminated`, Options{})
	assert.Error(t, err)
}

func TestCompile_Extension(t *testing.T) {
	rules, err := grammar.LoadStarlark("ext.star", `
rule(context = ["PUSH", "LABEL", "SEMICOLON"], output = "CallPushArg", priority = 240,
     description = "push label", dispositions = ["replace", "replace", "discard"])
`)
	require.NoError(t, err)
	table := grammar.Builtin()
	require.NoError(t, table.Extend(rules...))

	var steps int
	out, err := Compile("push .handler;", Options{
		Grammar: table,
		Trace:   func(int, grammar.Rule, int) { steps++ },
	})
	require.NoError(t, err)
	assert.Empty(t, out.Diagnostics)
	assert.Equal(t, 1, steps)
	assert.Equal(t, table.Fingerprint(), out.Fingerprint)
	assertContains(t, out.Assembly, lines("    mov r1, $.handler", "    push r1"))
	require.NoError(t, asm.Check(out.Assembly))
}

func TestCompile_Deterministic(t *testing.T) {
	src := "var s = 2; { var a = s * 3; if a > 4 && s .done; a = a - 1; .done: return a; }"
	first := compile(t, src, AddVarNames|AddAstComments)
	for i := 0; i < 3; i++ {
		again := compile(t, src, AddVarNames|AddAstComments)
		assert.Equal(t, first.Assembly, again.Assembly)
	}
}
