package main

import (
	"strings"
	"testing"

	"irc16/pkg/asm"
	"irc16/pkg/compiler"
)

const fibSource = `
// Recursive fibonacci. Arguments are pushed by the caller and released
// with free after the call; results come back in r1.
var result;
var limit = 6;
var ticks;

.main:
{
    push limit;
    call .fib;
    free 2;
    asm "mov result, r1";
    return result;
}

.fib:
{
    var n = arg 0;
    var a;
    if n < 2 .fib_base;
    push n - 1;
    call .fib;
    free 2;
    asm "mov a, r1";
    push n - 2;
    call .fib;
    free 2;
    asm "mov r0, a\nadd r1, r0";
    return;
.fib_base:
    return n;
}

.tick:
irq
    ticks = ticks + 1;
endirq
`

func TestCompilerAndAssembler(t *testing.T) {
	// 1. Compile
	out, err := compiler.Compile(fibSource, compiler.Options{
		Flags: compiler.AddPreamble | compiler.AddVarNames,
	})
	if err != nil {
		t.Fatalf("Compilation aborted: %v", err)
	}
	if out.Failed() {
		t.Fatalf("Compilation failed: %v", out.Err())
	}

	t.Logf("Generated Assembly:\n%s", out.Assembly)

	// 2. The listing must be accepted by the assembler front end
	if err := asm.Check(out.Assembly); err != nil {
		t.Fatalf("Assembly check failed: %v", err)
	}

	// 3. Spot checks
	for _, want := range []string{
		"    call .main\n    hlt\n",
		"    mov [.__static], r1\n",
		"    mov r0, [fp - 4]\n    add r1, r0\n",
		"    mov r1, [fp + 4]\n    mov [fp - 2], r1    ; n\n",
		"    sub sp, $4\n",
		"    cli\n",
		"    .reserve 2    ; result\n    .data 6    ; limit\n    .reserve 2    ; ticks\n",
	} {
		if !strings.Contains(out.Assembly, want) {
			t.Errorf("Expected assembly to contain %q", want)
		}
	}

	if got := strings.Count(out.Assembly, "    push fp\n"); got != 3 {
		t.Errorf("Expected 3 frames, got %d", got)
	}
}

func TestAllFlagCombinations(t *testing.T) {
	all := compiler.KeepComments | compiler.AddVarNames | compiler.AddAstComments |
		compiler.AddPreamble | compiler.PositionIndependentCode
	for flags := compiler.Flags(0); flags <= all; flags++ {
		out, err := compiler.Compile(fibSource, compiler.Options{Flags: flags})
		if err != nil {
			t.Fatalf("flags %05b: %v", flags, err)
		}
		if out.Failed() {
			t.Fatalf("flags %05b: %v", flags, out.Err())
		}
		if err := asm.Check(out.Assembly); err != nil {
			t.Errorf("flags %05b: %v", flags, err)
		}
	}
}
