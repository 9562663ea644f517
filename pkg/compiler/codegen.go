package compiler

import (
	"errors"
	"fmt"
	"strings"

	"irc16/pkg/ir"
)

// StaticLabel addresses the shared data block.
const StaticLabel = ".__static"

// Compilation holds the state of one code generation run.
type Compilation struct {
	opts       Options
	scopes     *ScopeStack
	sizes      []int
	scopeIndex int
	statics    *staticLayout

	out   strings.Builder
	stmt  strings.Builder // code of the statement being emitted
	diags []Diagnostic
}

func newCompilation(opts Options) *Compilation {
	return &Compilation{
		opts:   opts,
		scopes: NewScopeStack(),
	}
}

func (cg *Compilation) line(format string, args ...any) {
	fmt.Fprintf(&cg.stmt, format+"\n", args...)
}

func (cg *Compilation) comment(format string, args ...any) {
	cg.line("    ; "+format, args...)
}

// access emits an instruction that reads or writes id.
func (cg *Compilation) access(id *Identifier, format string, args ...any) {
	if cg.opts.Flags.Has(AddVarNames) {
		format += "    ; " + id.Name
	}
	cg.line(format, args...)
}

func (cg *Compilation) mnemonic(absolute, relative string) string {
	if cg.opts.Flags.Has(PositionIndependentCode) {
		return relative
	}
	return absolute
}

func (cg *Compilation) warn(pos ir.Pos, err error) {
	cg.report(Diagnostic{Severity: Warning, Pos: pos, Err: err})
}

func (cg *Compilation) report(d Diagnostic) {
	cg.diags = append(cg.diags, d)
	if cg.opts.Logger != nil {
		if cg.opts.Filename != "" {
			cg.opts.Logger.Printf("%s:%v", cg.opts.Filename, d)
		} else {
			cg.opts.Logger.Print(d)
		}
	}
}

// fail records a recoverable error for the statement at pos and leaves a
// placeholder where its code would have been.
func (cg *Compilation) fail(pos ir.Pos, err error) {
	var at ErrAt
	if errors.As(err, &at) {
		pos, err = at.Pos, at.Err
	}
	cg.report(Diagnostic{Severity: Error, Pos: pos, Err: err})
	cg.stmt.Reset()
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	fmt.Fprintf(&cg.out, "    ; error: %v: %s\n", pos, msg)
}

func (cg *Compilation) commit() {
	cg.out.WriteString(cg.stmt.String())
	cg.stmt.Reset()
}

// memory formats a base-relative memory operand.
func memory(base string, offset int) string {
	switch {
	case offset < 0:
		return fmt.Sprintf("[%s - %d]", base, -offset)
	case offset > 0:
		return fmt.Sprintf("[%s + %d]", base, offset)
	}
	return "[" + base + "]"
}

// hops emits the walk from the current frame to the frame at level and
// returns the register that holds its frame pointer.
func (cg *Compilation) hops(level int) string {
	n := cg.scopes.Depth() - level
	if n == 0 {
		return "fp"
	}
	cg.line("    mov r0, fp")
	for range n {
		cg.line("    mov r0, [r0]")
	}
	return "r0"
}

// address emits code that makes id addressable and returns its operand.
// r0 is clobbered unless id lives in the current frame.
func (cg *Compilation) address(id *Identifier) string {
	if id.Storage == Static {
		cg.line("    mov r0, $%s", StaticLabel)
		if id.Offset != 0 {
			cg.line("    add r0, $%d", id.Offset)
		}
		return "[r0]"
	}
	return memory(cg.hops(id.Level), id.Offset)
}

func (cg *Compilation) load(reg string, id *Identifier) {
	cg.access(id, "    mov %s, %s", reg, cg.address(id))
}

func (cg *Compilation) store(id *Identifier) {
	cg.access(id, "    mov %s, r1", cg.address(id))
}

func (cg *Compilation) lookup(leaf *ir.Leaf) (*Identifier, error) {
	id, ok := cg.scopes.Lookup(leaf.Text)
	if !ok {
		return nil, ErrAt{Pos: leaf.Pos, Err: ErrIdentifierMissing(leaf.Text)}
	}
	return id, nil
}

// child returns the first child of n with kind k.
func child(n ir.Node, k ir.Kind) ir.Node {
	for _, c := range ir.Children(n) {
		if c.Kind() == k {
			return c
		}
	}
	return nil
}

func leaf(n ir.Node, k ir.Kind) *ir.Leaf {
	if l, ok := child(n, k).(*ir.Leaf); ok {
		return l
	}
	return nil
}

func (cg *Compilation) enter(kind FrameKind) error {
	if err := cg.scopes.Enter(kind); err != nil {
		return err
	}
	size := 0
	if cg.scopeIndex < len(cg.sizes) {
		size = cg.sizes[cg.scopeIndex]
	}
	cg.scopeIndex++

	if kind == FrameIrq {
		cg.line("    cli")
		cg.line("    push r0")
		cg.line("    push r1")
		cg.line("    push r2")
	}
	cg.line("    push fp")
	cg.line("    mov fp, sp")
	if size > 0 {
		cg.line("    sub sp, $%d", size)
	}
	return nil
}

func (cg *Compilation) leaveFrame() {
	cg.line("    mov sp, fp")
	cg.line("    pop fp")
}

func (cg *Compilation) leaveIrq() {
	cg.leaveFrame()
	cg.line("    pop r2")
	cg.line("    pop r1")
	cg.line("    pop r0")
	cg.line("    sti")
	cg.line("    iret")
}

func (cg *Compilation) exit(want FrameKind) error {
	depth := cg.scopes.Depth()
	got, err := cg.scopes.Exit()
	if err != nil {
		return err
	}
	switch {
	case got != want:
		return fmt.Errorf("%w: %s", ErrScopeMismatch, f("%v closed by %v end", got, want))
	case got == FrameIrq:
		cg.leaveIrq()
	case depth > 1:
		cg.leaveFrame()
	}
	return nil
}

func (cg *Compilation) genReturn(n ir.Node) error {
	if e := child(n, ir.Expr); e != nil {
		if err := cg.genExpr(e); err != nil {
			return err
		}
	}
	if cg.scopes.Depth() == 0 {
		cg.line("    ret")
		return nil
	}

	routine := cg.scopes.RoutineLevel()
	for level := cg.scopes.Depth(); level > routine; level-- {
		cg.leaveFrame()
	}
	if cg.scopes.FrameKindAt(routine) == FrameIrq {
		cg.leaveIrq()
		return nil
	}
	cg.leaveFrame()
	cg.line("    ret")
	return nil
}

func (cg *Compilation) genDeclaration(n ir.Node) error {
	d := parseDeclaration(n)

	if idx, ok := cg.statics.cellOf[n]; ok {
		cell := cg.statics.cells[idx]
		_, err := cg.declare(d, Identifier{
			Name:        d.name,
			Storage:     Static,
			Offset:      cell.offset,
			Const:       d.constant,
			Anon:        d.anon,
			Initialized: cell.value != "",
			Pos:         d.pos,
		})
		return err
	}

	// A failed initializer still takes its slot so later offsets match
	// the reserved frame.
	var initErr error
	if d.init != nil {
		initErr = cg.genExpr(d.init)
	}
	id := Identifier{
		Name:        d.name,
		Storage:     Stack,
		Const:       d.constant,
		Anon:        d.anon,
		Initialized: d.init != nil,
		Pos:         d.pos,
	}
	declared, err := cg.declare(d, id)
	if err != nil {
		return err
	}
	if initErr != nil {
		return initErr
	}
	if d.init != nil {
		cg.store(declared)
	}
	return nil
}

func (cg *Compilation) declare(d declaration, id Identifier) (*Identifier, error) {
	if !d.anon {
		if outer, ok := cg.scopes.Shadows(d.name); ok {
			cg.warn(d.pos, errors.New(f("'%v' shadows the declaration at %v", d.name, outer.Pos)))
		}
	}
	declared, err := cg.scopes.Declare(id)
	if err != nil {
		return nil, ErrAt{Pos: d.pos, Err: err}
	}
	if d.constant && !id.Initialized {
		cg.warn(d.pos, errors.New(f("const '%v' declared without a value", d.name)))
	}
	return declared, nil
}

func (cg *Compilation) genAssignment(n ir.Node) error {
	if cg.statics.consumed[n] {
		return nil
	}
	name, value := assignee(n)
	if name == nil || value == nil {
		return ErrUnknownNode
	}
	id, err := cg.lookup(name)
	if err != nil {
		return err
	}
	if id.Const && id.Initialized {
		return ErrAt{Pos: name.Pos, Err: fmt.Errorf("%w: %s", ErrConstAssign, name.Text)}
	}
	if err := cg.genExpr(value); err != nil {
		return err
	}
	cg.store(id)
	id.Initialized = true
	return nil
}

func (cg *Compilation) genDerefAssignment(n ir.Node) error {
	name, value := assignee(n)
	if name == nil || value == nil {
		return ErrUnknownNode
	}
	id, err := cg.lookup(name)
	if err != nil {
		return err
	}
	if err := cg.genExpr(value); err != nil {
		return err
	}
	cg.load("r0", id)
	cg.line("    mov [r0], r1")
	return nil
}

// genOperand evaluates the Expr or label child of n into r1.
func (cg *Compilation) genOperand(n ir.Node) error {
	if e := child(n, ir.Expr); e != nil {
		return cg.genExpr(e)
	}
	if l := leaf(n, ir.LABEL); l != nil {
		cg.line("    mov r1, $%s", l.Text)
		return nil
	}
	return ErrUnknownNode
}

func (cg *Compilation) genStmt(n ir.Node) error {
	if cg.opts.Flags.Has(AddAstComments) && n.Kind() != ir.CommentStatement {
		cg.comment("%s", ir.Source(n))
	}

	switch n.Kind() {
	case ir.VariableDeclaration:
		return cg.genDeclaration(n)

	case ir.VariableAssignment:
		return cg.genAssignment(n)

	case ir.DerefVariableAssignment:
		return cg.genDerefAssignment(n)

	case ir.If:
		target := leaf(n, ir.LABEL)
		cond := child(n, ir.Expr)
		if target == nil || cond == nil {
			return ErrUnknownNode
		}
		if err := cg.genExpr(cond); err != nil {
			return err
		}
		cg.line("    cmp r1, $0")
		cg.line("    %s %s", cg.mnemonic("jnz", "rjnz"), target.Text)

	case ir.Goto:
		if target := leaf(n, ir.LABEL); target != nil {
			cg.line("    %s %s", cg.mnemonic("jmp", "rjmp"), target.Text)
			return nil
		}
		if err := cg.genOperand(n); err != nil {
			return err
		}
		cg.line("    jmp r1")

	case ir.CallPushArg:
		if err := cg.genOperand(n); err != nil {
			return err
		}
		cg.line("    push r1")

	case ir.CallFreeArg:
		count := leaf(n, ir.NUMBER)
		if count == nil {
			return ErrUnknownNode
		}
		if err := number(count); err != nil {
			return err
		}
		cg.line("    add sp, $%s", count.Text)

	case ir.CallLabel:
		target := leaf(n, ir.LABEL)
		if target == nil {
			return ErrUnknownNode
		}
		cg.line("    %s %s", cg.mnemonic("call", "rcall"), target.Text)

	case ir.CallExpression:
		if err := cg.genOperand(n); err != nil {
			return err
		}
		cg.line("    call r1")

	case ir.InlineAsm:
		text := leaf(n, ir.STRING)
		if text == nil {
			return ErrUnknownNode
		}
		return cg.genInlineAsm(text)

	case ir.LabelDefinition:
		label := leaf(n, ir.LABEL)
		if label == nil {
			return ErrUnknownNode
		}
		cg.line("%s:", label.Text)

	case ir.ScopeBegin:
		return cg.enter(FrameScope)

	case ir.ScopeEnd:
		return cg.exit(FrameScope)

	case ir.IrqBegin:
		return cg.enter(FrameIrq)

	case ir.IrqEnd:
		return cg.exit(FrameIrq)

	case ir.Return:
		return cg.genReturn(n)

	case ir.CommentStatement:
		if text := leaf(n, ir.COMMENT); text != nil && cg.opts.Flags.Has(KeepComments) {
			cg.line("; %s", text.Text)
		}

	default:
		return ErrUnknownNode
	}
	return nil
}

func (cg *Compilation) header(fingerprint string) {
	fmt.Fprintf(&cg.out, "; irc16 grammar %s\n", fingerprint)
	cg.out.WriteString(".code\n")
	if cg.opts.Flags.Has(AddPreamble) {
		fmt.Fprintf(&cg.out, "    %s .main\n", cg.mnemonic("call", "rcall"))
		cg.out.WriteString("    hlt\n")
	}
}

func (cg *Compilation) dataSection() {
	cg.out.WriteString("; static data\n")
	fmt.Fprintf(&cg.out, "%s:\n", StaticLabel)
	for _, cell := range cg.statics.cells {
		text := "    .reserve 2"
		if cell.value != "" {
			text = "    .data " + cell.value
		}
		if cg.opts.Flags.Has(AddVarNames) && cell.name != "" {
			text += "    ; " + cell.name
		}
		cg.out.WriteString(text + "\n")
	}
}

// unrecognized reports a run of roots that did not reduce to statements.
func (cg *Compilation) unrecognized(run []ir.Node) {
	parts := make([]string, len(run))
	for i, n := range run {
		parts[i] = ir.Source(n)
	}
	cg.fail(run[0].Position(), fmt.Errorf("%w: %s", ErrUnknownNode, strings.Join(parts, " ")))
}

// Generate lowers a reduced forest to assembly text. A fatal error aborts
// with no output; other problems are reported as diagnostics of the
// returned Output.
func Generate(roots []ir.Node, opts Options) (*Output, error) {
	cg := newCompilation(opts)

	cg.sizes = frameSizes(roots)
	statics, err := staticData(roots)
	if err != nil {
		return nil, err
	}
	cg.statics = statics

	fingerprint := opts.table().Fingerprint()
	cg.header(fingerprint)

	var run []ir.Node
	for _, n := range roots {
		if !n.Kind().IsStatement() {
			run = append(run, n)
			continue
		}
		if len(run) > 0 {
			cg.unrecognized(run)
			run = nil
		}

		if err := cg.genStmt(n); err != nil {
			if isFatal(err) {
				var at ErrAt
				if !errors.As(err, &at) {
					err = ErrAt{Pos: n.Position(), Err: err}
				}
				return nil, err
			}
			cg.fail(n.Position(), err)
			continue
		}
		cg.commit()
	}
	if len(run) > 0 {
		cg.unrecognized(run)
	}

	if depth := cg.scopes.Depth(); depth > 0 {
		pos := ir.Pos{}
		if len(roots) > 0 {
			pos = roots[len(roots)-1].Position()
		}
		cg.report(Diagnostic{
			Severity: Error,
			Pos:      pos,
			Err:      fmt.Errorf("%w: %s", ErrScopeOpen, f("%d unclosed", depth)),
		})
	}

	cg.dataSection()

	return &Output{
		Assembly:    cg.out.String(),
		Diagnostics: cg.diags,
		Fingerprint: fingerprint,
	}, nil
}
