package ir

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"elang/internal/bridge/llvm"
	"elang/internal/diag"
	"elang/internal/trace"
)

func TestLoadRejectsDuplicateWithoutBuilding(t *testing.T) {
	f := newFixture(t)
	f.must(f.c.Add(f.m))
	called := false
	_, err := f.c.Load("test", func(c *Context) (*Module, error) {
		called = true
		return c.NewModule("test")
	})
	f.wantCode(err, diag.ModDuplicateModule)
	if called {
		t.Fatalf("build must not run for a loaded name")
	}
	f.wantCode(f.c.Add(f.m), diag.ModDuplicateModule)
}

func TestLoadFailureIsRecorded(t *testing.T) {
	tests := []struct {
		name  string
		build BuildFunc
		code  diag.Code
	}{
		{
			name: "coded",
			build: func(c *Context) (*Module, error) {
				m, err := c.NewModule("coded")
				if err != nil {
					return nil, err
				}
				_, err = m.ResolveType("Missing")
				return m, err
			},
			code: diag.SemaUnresolvedType,
		},
		{
			name: "plain",
			build: func(c *Context) (*Module, error) {
				m, err := c.NewModule("plain")
				if err != nil {
					return nil, err
				}
				return m, errors.New("boom")
			},
			code: diag.ModBuildFailed,
		},
		{
			name:  "nil",
			build: func(*Context) (*Module, error) { return nil, nil },
			code:  diag.ModBuildFailed,
		},
		{
			name: "renamed",
			build: func(c *Context) (*Module, error) {
				return c.NewModule("other")
			},
			code: diag.ModBuildFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			m, err := f.c.Load(tt.name, tt.build)
			f.wantCode(err, tt.code)
			if m != nil || f.c.Module(tt.name) != nil {
				t.Fatalf("failed module must not be registered")
			}
			items := f.c.Diagnostics().Items()
			if len(items) != 1 || items[0].Code != tt.code || items[0].Module != tt.name {
				t.Fatalf("unexpected diagnostics %+v", items)
			}
		})
	}
}

func TestLoadFailureUnregistersAddedModule(t *testing.T) {
	f := newFixture(t)
	addThenFail := func(c *Context) (*Module, error) {
		m, err := c.NewModule("leaky")
		if err != nil {
			return nil, err
		}
		if err := c.Add(m); err != nil {
			return nil, err
		}
		return m, errors.New("late failure")
	}
	_, err := f.c.Load("leaky", addThenFail)
	f.wantCode(err, diag.ModBuildFailed)
	if f.c.Module("leaky") != nil || len(f.c.Modules()) != 0 {
		t.Fatalf("failed module still registered: %v", f.c.Modules())
	}

	m, err := f.c.Load("leaky", func(c *Context) (*Module, error) { return c.NewModule("leaky") })
	f.must(err)
	if f.c.Module("leaky") != m {
		t.Fatalf("retry must register the new module")
	}
	if got := f.c.Modules(); len(got) != 1 || got[0] != "leaky" {
		t.Fatalf("modules = %v", got)
	}
}

func TestLoadOrderAndClose(t *testing.T) {
	f := newFixture(t)
	f.must(f.c.LoadDefaultModules())
	_, err := f.c.Load("app", func(c *Context) (*Module, error) {
		m, err := c.NewModule("app")
		if err != nil {
			return nil, err
		}
		return m, m.Use(CoreModule)
	})
	f.must(err)
	got := f.c.Modules()
	want := []string{CStdModule, CoreModule, "app"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("modules %v, want %v", got, want)
	}
	got[0] = "mutated"
	if f.c.Modules()[0] != CStdModule {
		t.Fatalf("Modules must return a copy")
	}
	f.c.Close()
	if len(f.c.Modules()) != 0 || f.c.Module("app") != nil {
		t.Fatalf("Close should forget every module")
	}
}

func TestDefaultModulesContents(t *testing.T) {
	f := newFixture(t)
	f.must(f.c.LoadDefaultModules())
	f.wantCode(f.c.LoadDefaultModules(), diag.ModDuplicateModule)

	cstd := f.c.Module(CStdModule)
	for _, d := range cstdDecls {
		if cstd.Scopes().LookupValue(cstd.Exports(), d.name, false) == nil {
			t.Fatalf("cstd should export %s", d.name)
		}
	}

	core := f.c.Module(CoreModule)
	for _, name := range []string{"i8", "u64", "f32", "bool", "$cstr", "Object", "TypeInfo", "String"} {
		if core.Scopes().LookupType(core.Exports(), name, false) == nil {
			t.Fatalf("core should export type %s", name)
		}
	}
	if core.Scopes().LookupValue(core.Exports(), "print", false) == nil {
		t.Fatalf("core should export print")
	}
	u32, err := core.ResolveType("u32")
	f.must(err)
	if u32 != core.I32() {
		t.Fatalf("u32 shares the i32 representation")
	}
	str, err := core.ResolveType("String")
	f.must(err)
	st := str.Struct()
	if st.MemberAt(0).Name != "base" || st.Member("len").Type != core.I64() {
		t.Fatalf("unexpected String layout")
	}
	if fn := st.Member("toUpper").Value; fn == nil || core.FuncArgCount(fn) != 1 {
		t.Fatalf("methods take self")
	}
}

func TestPrintWritesToStdout(t *testing.T) {
	f := newFixture(t)
	f.must(f.c.LoadDefaultModules())
	f.must(f.m.Use(CoreModule))
	fn := f.beginFunc("main", f.m.I32())
	msg, err := f.m.String("hello")
	f.must(err)
	_, err = f.m.CallNamed("print", []*Value{msg})
	f.must(err)
	f.endFunc(fn)
	f.run()
	if f.out.String() != "hello" {
		t.Fatalf("unexpected output %q", f.out.String())
	}
}

func TestAOTWritesModule(t *testing.T) {
	f := newFixture(t)
	fn := f.beginFunc("main", f.m.I32())
	f.must(f.m.StmtReturn(f.i32(3)))
	f.endFunc(fn)
	path, err := f.c.AOT(f.m)
	f.must(err)
	data, err := os.ReadFile(path)
	f.must(err)
	if !bytes.Contains(data, []byte("@main")) {
		t.Fatalf("emitted module lacks main:\n%s", data)
	}
}

func TestBackendFailuresAreWrapped(t *testing.T) {
	f := newFixture(t)
	blk, err := func() (*Block, error) {
		fn, err := f.m.DeclareFunc("main", f.m.I32(), nil, false)
		if err != nil {
			return nil, err
		}
		return f.m.CreateBlockIn(fn, "entry")
	}()
	f.must(err)
	if blk == nil {
		t.Fatalf("expected a block")
	}
	// the entry block has no terminator
	f.wantCode(f.c.Verify(f.m), diag.BackendVerify)
	_, err = f.c.AOT(f.m)
	f.wantCode(err, diag.BackendAOT)
	_, err = f.c.JIT(f.m)
	f.wantCode(err, diag.BackendJIT)
}

func TestTracerSeesLoadsAndErrors(t *testing.T) {
	ring := trace.NewRingTracer(0, trace.LevelDetail)
	b := llvm.New(llvm.Options{OutDir: t.TempDir()})
	c := NewContext(b, WithTracer(ring), WithTracer(nil))
	if c.Tracer() != ring {
		t.Fatalf("nil tracer must not replace the configured one")
	}
	if err := c.LoadDefaultModules(); err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err := c.Load("bad", func(c *Context) (*Module, error) {
		m, err := c.NewModule("bad")
		if err != nil {
			return nil, err
		}
		return m, m.Use("ghost")
	})
	if diag.CodeOf(err) != diag.ModNotFound {
		t.Fatalf("expected %s, got %v", diag.ModNotFound.ID(), err)
	}

	var begins, failed, errs int
	for _, ev := range ring.Snapshot() {
		switch {
		case ev.Kind == trace.KindSpanBegin && ev.Name == "load" && ev.Module != "":
			begins++
		case ev.Kind == trace.KindSpanEnd && ev.Extra["status"] == "failed":
			failed++
		case ev.Kind == trace.KindError:
			errs++
		}
	}
	if begins != 3 || failed != 1 || errs == 0 {
		t.Fatalf("begins=%d failed=%d errors=%d", begins, failed, errs)
	}
}

func TestModuleTraceSpanIsLoadSpan(t *testing.T) {
	ring := trace.NewRingTracer(0, trace.LevelDetail)
	c := NewContext(llvm.New(llvm.Options{OutDir: t.TempDir()}), WithTracer(ring))
	defer c.Close()

	m, err := c.Load("traced", func(c *Context) (*Module, error) {
		return c.NewModule("traced")
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.TraceSpan() == 0 {
		t.Fatalf("module loaded under a tracer must carry its load span")
	}
	var load uint64
	for _, ev := range ring.Snapshot() {
		if ev.Kind == trace.KindSpanBegin && ev.Name == "load" && ev.Module == "traced" {
			load = ev.SpanID
		}
	}
	if load != m.TraceSpan() {
		t.Fatalf("TraceSpan() = %d, load span = %d", m.TraceSpan(), load)
	}

	free, err := c.NewModule("free")
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	defer free.drop()
	if free.TraceSpan() != 0 {
		t.Fatalf("module created outside Load has span %d", free.TraceSpan())
	}
}
