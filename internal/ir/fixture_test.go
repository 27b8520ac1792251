package ir

import (
	"bytes"
	"errors"
	"testing"

	"elang/internal/bridge"
	"elang/internal/bridge/llvm"
	"elang/internal/diag"
)

type fixture struct {
	t   *testing.T
	b   *llvm.Bridge
	c   *Context
	m   *Module
	out *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	out := &bytes.Buffer{}
	b := llvm.New(llvm.Options{Stdout: out, OutDir: t.TempDir()})
	c := NewContext(b)
	m, err := c.NewModule("test")
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	return &fixture{t: t, b: b, c: c, m: m, out: out}
}

func (f *fixture) must(err error) {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("unexpected error: %v", err)
	}
}

func (f *fixture) wantCode(err error, code diag.Code) {
	f.t.Helper()
	if err == nil {
		f.t.Fatalf("expected %s, got success", code.ID())
	}
	var de *diag.Error
	if !errors.As(err, &de) || de.Code != code {
		f.t.Fatalf("expected %s, got %v", code.ID(), err)
	}
}

// beginFunc declares name, enters its scope and activates an entry block.
func (f *fixture) beginFunc(name string, ret *Type, args ...*Type) *Value {
	f.t.Helper()
	fn, err := f.m.DeclareFunc(name, ret, args, false)
	f.must(err)
	f.m.PushScope(fn)
	entry, err := f.m.CreateBlock("entry")
	f.must(err)
	f.must(f.m.SetActiveBlock(entry))
	return fn
}

func (f *fixture) endFunc(fn *Value) {
	f.t.Helper()
	f.must(f.m.EnsureTailRet(fn))
	f.must(f.m.PopScope())
}

func (f *fixture) verify() {
	f.t.Helper()
	if err := f.b.Verify(f.m.Handle()); err != nil {
		f.t.Fatalf("verify: %v\n%s", err, f.m.Dump())
	}
}

func (f *fixture) run() int64 {
	f.t.Helper()
	f.verify()
	res, err := f.c.JIT(f.m)
	if err != nil {
		f.t.Fatalf("jit: %v\n%s", err, f.m.Dump())
	}
	return res
}

func (f *fixture) i32(v uint64) ExprFn {
	return func() (*Value, error) { return f.m.Int(v, 32) }
}

func (f *fixture) f64(v float64) ExprFn {
	return func() (*Value, error) { return f.m.Float(v), nil }
}

// ref yields the storage slot bound to name.
func (f *fixture) ref(name string) ExprFn {
	return func() (*Value, error) { return f.m.ResolveValue(name) }
}

func (f *fixture) binop(op bridge.Op, lhs, rhs ExprFn) ExprFn {
	return func() (*Value, error) {
		a, err := lhs()
		if err != nil {
			return nil, err
		}
		if a, err = f.m.PtrVal(a); err != nil {
			return nil, err
		}
		b, err := rhs()
		if err != nil {
			return nil, err
		}
		if b, err = f.m.PtrVal(b); err != nil {
			return nil, err
		}
		return f.m.Binary(op, a, b)
	}
}

// inc assigns name = name + by.
func (f *fixture) inc(name string, by uint64) StmtFn {
	return func() error {
		return f.m.StmtAssign(f.ref(name), f.binop(bridge.OpAdd, f.ref(name), f.i32(by)))
	}
}
