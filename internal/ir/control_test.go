package ir

import (
	"testing"

	"elang/internal/bridge"
	"elang/internal/diag"
)

func TestStmtDefTypeChecks(t *testing.T) {
	f := newFixture(t)
	m := f.m
	fn := f.beginFunc("main", m.I32())

	f.wantCode(m.StmtDef("x", m.I32(), f.f64(1.5)), diag.SemaTypeMismatch)
	f.must(m.StmtDef("w", m.F64(), f.i32(3)))
	if sym := m.ValueSymbol("w", false); sym == nil || sym.Type.Elem() != m.F64() {
		t.Fatalf("widened definition should be stored as f64")
	}

	f.must(m.StmtDef("y", nil, f.i32(1)))
	f.wantCode(m.StmtDef("y", nil, f.i32(2)), diag.SemaRedefinition)
	f.must(m.StmtBlock(func() error {
		return m.StmtDef("y", nil, f.i32(2))
	}))

	f.must(m.StmtDef("z", m.I64(), nil))
	f.must(m.StmtReturn(f.ref("y")))
	f.endFunc(fn)
	if got := f.run(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

// The call to the bodiless noop stays in this function, so it is only
// verified, never run.
func TestStmtDefRejectsVoidBindings(t *testing.T) {
	f := newFixture(t)
	m := f.m
	if m.EnclosingFunc() != nil {
		t.Fatalf("module scope has no enclosing function")
	}
	fn := f.beginFunc("proc", m.Void())
	if got := m.EnclosingFunc(); got != fn {
		t.Fatalf("enclosing function = %v, want proc", got)
	}

	noop, err := m.DeclareFunc("noop", m.Void(), nil, false)
	f.must(err)
	callNoop := func() (*Value, error) { return m.Call(noop, nil) }
	f.wantCode(m.StmtDef("v", nil, callNoop), diag.SemaVoidBinding)
	f.wantCode(m.StmtDef("d", m.Void(), nil), diag.SemaVoidBinding)
	f.endFunc(fn)
	f.verify()
	if m.EnclosingFunc() != nil {
		t.Fatalf("popping the function scope must clear the enclosing function")
	}
}

func TestStmtAssignAndReturn(t *testing.T) {
	f := newFixture(t)
	m := f.m
	fn := f.beginFunc("main", m.I64())
	f.must(m.StmtDef("acc", m.I64(), nil))
	f.must(m.StmtAssign(f.ref("acc"), f.i32(40)))
	f.wantCode(m.StmtAssign(f.i32(1), f.i32(2)), diag.SemaNotAddressable)
	f.wantCode(m.StmtAssign(f.ref("acc"), f.f64(2)), diag.SemaTypeMismatch)
	f.wantCode(m.StmtReturn(nil), diag.SemaReturnMismatch)
	f.wantCode(m.StmtReturn(f.f64(1)), diag.SemaReturnMismatch)
	f.must(m.StmtReturn(f.binop(bridge.OpAdd, f.ref("acc"), func() (*Value, error) { return m.Int(2, 64) })))
	f.endFunc(fn)
	if got := f.run(); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestStmtReturnInVoidFunction(t *testing.T) {
	f := newFixture(t)
	m := f.m
	f.wantCode(m.StmtReturn(nil), diag.SemaNoFunction)
	fn := f.beginFunc("proc", m.Void())
	f.wantCode(m.StmtReturn(f.i32(1)), diag.SemaReturnMismatch)
	f.must(m.StmtReturn(nil))
	f.endFunc(fn)
	f.verify()
}

func TestStmtBranchTerminatesEveryBlock(t *testing.T) {
	f := newFixture(t)
	m := f.m
	fn := f.beginFunc("main", m.I32())
	f.must(m.StmtDef("r", nil, f.i32(0)))
	cond := f.binop(bridge.OpLt, f.i32(1), f.i32(2))

	// one arm returns, the other falls through
	f.must(m.StmtBranch(cond, func() error {
		return m.StmtAssign(f.ref("r"), f.i32(5))
	}, func() error {
		return m.StmtReturn(f.i32(9))
	}))
	// nested branch without an else arm
	f.must(m.StmtBranch(cond, func() error {
		return m.StmtBranch(cond, f.inc("r", 1), nil)
	}, nil))
	f.wantCode(m.StmtBranch(f.i32(1), nil, nil), diag.SemaTypeMismatch)
	f.must(m.StmtReturn(f.ref("r")))
	f.endFunc(fn)
	if got := f.run(); got != 6 {
		t.Fatalf("expected 6, got %d", got)
	}
}

func TestStmtLoopNesting(t *testing.T) {
	f := newFixture(t)
	m := f.m
	fn := f.beginFunc("main", m.I32())
	f.must(m.StmtDef("count", nil, f.i32(0)))

	var outerBreak, innerBreak, afterInner *Block
	outer := func() error {
		outerBreak = m.breakTarget
		inner := func() error {
			innerBreak = m.breakTarget
			if err := m.StmtBranch(f.binop(bridge.OpEq, f.ref("j"), f.i32(2)), m.StmtBreak, nil); err != nil {
				return err
			}
			return f.inc("count", 1)()
		}
		if err := m.StmtLoop(
			func() error { return m.StmtDef("j", nil, f.i32(0)) },
			f.binop(bridge.OpLt, f.ref("j"), f.i32(10)),
			f.inc("j", 1),
			inner,
		); err != nil {
			return err
		}
		afterInner = m.breakTarget
		if err := m.StmtBranch(f.binop(bridge.OpEq, f.ref("i"), f.i32(1)), m.StmtContinue, nil); err != nil {
			return err
		}
		return f.inc("count", 100)()
	}
	f.must(m.StmtLoop(
		func() error { return m.StmtDef("i", nil, f.i32(0)) },
		f.binop(bridge.OpLt, f.ref("i"), f.i32(3)),
		f.inc("i", 1),
		outer,
	))
	if outerBreak == nil || innerBreak == nil || innerBreak == outerBreak {
		t.Fatalf("inner loop must target its own end block")
	}
	if afterInner != outerBreak {
		t.Fatalf("outer targets must be restored after the inner loop")
	}
	if m.InLoop() {
		t.Fatalf("targets must be cleared after the outermost loop")
	}
	if m.ValueSymbol("i", true) != nil {
		t.Fatalf("loop variables live in the loop scope")
	}
	f.wantCode(m.StmtBreak(), diag.SemaBreakOutsideLoop)
	f.wantCode(m.StmtContinue(), diag.SemaContinueOutside)

	f.must(m.StmtReturn(f.ref("count")))
	f.endFunc(fn)
	// two inner iterations per outer pass, +100 on passes 0 and 2
	if got := f.run(); got != 206 {
		t.Fatalf("expected 206, got %d", got)
	}
}

func TestStmtLoopRestoresStateOnFailure(t *testing.T) {
	f := newFixture(t)
	m := f.m
	f.beginFunc("main", m.I32())
	scope := m.Scope()
	err := m.StmtLoop(nil, nil, nil, func() error { return m.StmtDef("x", nil, nil) })
	f.wantCode(err, diag.SemaError)
	if m.InLoop() || m.Scope() != scope {
		t.Fatalf("failed loop must restore targets and scope")
	}
}

func TestExprBranchRejectsMixedTypes(t *testing.T) {
	f := newFixture(t)
	m := f.m
	f.beginFunc("main", m.I32())
	cond := f.binop(bridge.OpGt, f.i32(3), f.i32(2))
	_, err := m.ExprBranch(cond, f.i32(1), f.f64(2))
	f.wantCode(err, diag.SemaTypeMismatch)
	_, err = m.ExprBranch(f.i32(1), f.i32(1), f.i32(2))
	f.wantCode(err, diag.SemaTypeMismatch)
}

func TestExprBranchNested(t *testing.T) {
	f := newFixture(t)
	m := f.m
	fn := f.beginFunc("main", m.I32())
	cond := f.binop(bridge.OpGt, f.i32(3), f.i32(2))
	inner := func() (*Value, error) {
		return m.ExprBranch(f.binop(bridge.OpEq, f.i32(1), f.i32(1)), f.i32(7), f.i32(8))
	}
	v, err := m.ExprBranch(cond, inner, f.i32(9))
	f.must(err)
	if v.Type() != m.I32() {
		t.Fatalf("phi should have type i32, got %s", v.Type())
	}
	f.must(m.StmtReturn(func() (*Value, error) { return v, nil }))
	f.endFunc(fn)
	if got := f.run(); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestEnsureTailRet(t *testing.T) {
	f := newFixture(t)
	m := f.m
	main := f.beginFunc("main", m.I32())
	f.endFunc(main)
	proc := f.beginFunc("proc", m.Void())
	f.endFunc(proc)
	done := f.beginFunc("done", m.I32())
	f.must(m.StmtReturn(f.i32(3)))
	f.endFunc(done)
	if got := f.run(); got != 0 {
		t.Fatalf("synthesized return should yield the default value, got %d", got)
	}
}

func TestBinaryRejectsMixedOperands(t *testing.T) {
	f := newFixture(t)
	m := f.m
	f.beginFunc("main", m.I32())
	a, err := m.Int(1, 32)
	f.must(err)
	b, err := m.Int(1, 64)
	f.must(err)
	_, err = m.Add(a, b)
	f.wantCode(err, diag.SemaTypeMismatch)
	_, err = m.And(a, a)
	f.wantCode(err, diag.SemaTypeMismatch)
	_, err = m.Not(a)
	f.wantCode(err, diag.SemaTypeMismatch)
	lt, err := m.Lt(a, a)
	f.must(err)
	if !lt.Type().IsBool() {
		t.Fatalf("comparisons yield bool")
	}
	_, err = m.Binary(bridge.OpNeg, a, a)
	f.wantCode(err, diag.SemaError)
}

func TestCallChecksArguments(t *testing.T) {
	f := newFixture(t)
	m := f.m
	f.must(f.c.LoadDefaultModules())
	f.must(m.Use(CStdModule))
	twice, err := m.DeclareFunc("twice", m.I64(), []*Type{m.I64()}, false)
	f.must(err)
	m.PushScope(twice)
	entry, err := m.CreateBlock("entry")
	f.must(err)
	f.must(m.SetActiveBlock(entry))
	arg, err := m.FuncArg(twice, 0)
	f.must(err)
	sum, err := m.Add(arg, arg)
	f.must(err)
	_, err = m.Ret(sum)
	f.must(err)
	f.must(m.PopScope())

	fn := f.beginFunc("main", m.I64())
	_, err = m.Call(twice, nil)
	f.wantCode(err, diag.SemaArgumentCount)
	_, err = m.Call(twice, []*Value{m.Float(1)})
	f.wantCode(err, diag.SemaTypeMismatch)
	_, err = m.CallNamed("missing", nil)
	f.wantCode(err, diag.SemaUnresolvedSymbol)

	format, err := m.String("n=%d\n")
	f.must(err)
	seven, err := m.Int(7, 32)
	f.must(err)
	_, err = m.CallNamed("printf", []*Value{format, seven})
	f.must(err)
	// i32 widens to the i64 parameter
	res, err := m.Call(twice, []*Value{seven})
	f.must(err)
	f.must(m.StmtReturn(func() (*Value, error) { return res, nil }))
	f.endFunc(fn)
	if got := f.run(); got != 14 {
		t.Fatalf("expected 14, got %d", got)
	}
	if f.out.String() != "n=7\n" {
		t.Fatalf("unexpected output %q", f.out.String())
	}
}

func TestMakeAndDrop(t *testing.T) {
	f := newFixture(t)
	m := f.m
	fn := f.beginFunc("main", m.I64())
	_, err := m.Make(m.I64())
	f.wantCode(err, diag.SemaUnresolvedSymbol)

	f.must(f.c.LoadDefaultModules())
	f.must(m.Use(CStdModule))
	p, err := m.Make(m.I64())
	f.must(err)
	if p.Type().Elem() != m.I64() {
		t.Fatalf("make should yield *i64, got %s", p.Type())
	}
	v, err := m.Int(42, 64)
	f.must(err)
	_, err = m.Store(p, v)
	f.must(err)
	loaded, err := m.Load(p)
	f.must(err)

	n, err := m.Int(4, 32)
	f.must(err)
	arr, err := m.MakeN(m.I32(), n)
	f.must(err)
	f.must(m.Drop(arr))
	f.must(m.Drop(p))
	f.must(m.StmtReturn(func() (*Value, error) { return loaded, nil }))
	f.endFunc(fn)
	if got := f.run(); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}
