package driver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "elang/internal/ast"
	"elang/internal/bridge/llvm"
	"elang/internal/diag"
	"elang/internal/ir"
	"elang/internal/testkit"
)

func newContext(t *testing.T) *ir.Context {
	t.Helper()
	b := llvm.New(llvm.Options{Stdout: &bytes.Buffer{}, OutDir: t.TempDir()})
	c := ir.NewContext(b)
	if err := c.LoadDefaultModules(); err != nil {
		t.Fatalf("default modules: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func fn(name string, body ...*Stmt) *Decl {
	return Func(name, Type("i32"), nil, Block(body...))
}

func imports(targets ...string) []*Import {
	out := make([]*Import, 0, len(targets))
	for _, target := range targets {
		out = append(out, &Import{Target: target})
	}
	return out
}

func hasCode(bag *diag.Bag, module string, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Module == module && d.Code == code {
			return true
		}
	}
	return false
}

func TestBuildOrdersDependenciesFirst(t *testing.T) {
	dir := t.TempDir()
	testkit.WriteModules(t, dir,
		&Module{Name: "app", Imports: imports("./lib"), Decls: []*Decl{
			fn("main", Return(Binary("+", Call("two"), Int(40)))),
		}},
		&Module{Name: "lib", Imports: imports("./base"), Decls: []*Decl{
			fn("two", Return(Binary("+", Call("one"), Call("one")))),
		}},
		&Module{Name: "base", Decls: []*Decl{fn("one", Return(Int(1)))}},
	)

	c := newContext(t)
	res, err := Build(context.Background(), c, []string{dir}, Options{Root: dir})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.HasErrors() {
		t.Fatalf("unexpected diagnostics %v", res.Bag.Items())
	}
	order := res.Order()
	want := []string{"base", "lib", "app"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if err := testkit.CheckLoadOrder(c); err != nil {
		t.Fatalf("load order: %v", err)
	}
	if err := testkit.CheckTerminators(c, order...); err != nil {
		t.Fatalf("terminators: %v", err)
	}
	got, err := c.JIT(res.Module("app").Module)
	if err != nil {
		t.Fatalf("jit: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestBuildFailureSkipsDependents(t *testing.T) {
	dir := t.TempDir()
	testkit.WriteModules(t, dir,
		&Module{Name: "bad", Decls: []*Decl{fn("broken", Return(Ident("nowhere")))}},
		&Module{Name: "user", Imports: imports("bad"), Decls: []*Decl{fn("main", Return(Int(0)))}},
		&Module{Name: "top", Imports: imports("./user"), Decls: []*Decl{fn("entry", Return(Int(0)))}},
		testkit.ReturnConst("ok", 3),
	)

	var events []ModuleEvent
	c := newContext(t)
	res, err := Build(context.Background(), c, []string{dir}, Options{
		Observer: func(ev ModuleEvent) { events = append(events, ev) },
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !res.HasErrors() {
		t.Fatalf("expected errors")
	}
	if !hasCode(res.Bag, "bad", diag.SemaUnresolvedSymbol) {
		t.Fatalf("missing lowering error: %v", res.Bag.Items())
	}
	for _, name := range []string{"user", "top"} {
		if !hasCode(res.Bag, name, diag.ModDependencyFailed) {
			t.Fatalf("%s must report the failed dependency: %v", name, res.Bag.Items())
		}
		if mr := res.Module(name); !mr.Broken || mr.Module != nil {
			t.Fatalf("%s must be skipped", name)
		}
		if c.Module(name) != nil {
			t.Fatalf("%s must not be loaded", name)
		}
	}
	if res.Module("ok").Module == nil {
		t.Fatalf("unrelated module must still build")
	}

	skipped := 0
	for _, ev := range events {
		if ev.Phase == PhaseBuild && ev.Status == PhaseSkipped {
			skipped++
		}
	}
	if skipped != 2 {
		t.Fatalf("expected 2 skipped modules, got %d", skipped)
	}
}

func TestBuildGraphErrors(t *testing.T) {
	dir := t.TempDir()
	testkit.WriteModules(t, dir,
		&Module{Name: "a", Imports: imports("b")},
		&Module{Name: "b", Imports: imports("a")},
		&Module{Name: "lonely", Imports: imports("ghost")},
		&Module{Name: "escape", Imports: imports("../../outside")},
		testkit.ReturnConst("fine", 0),
	)
	testkit.WriteModules(t, filepath.Join(dir, "sub"), &Module{Name: "fine"})

	c := newContext(t)
	res, err := Build(context.Background(), c, []string{dir}, Options{Root: dir})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tests := []struct {
		module string
		code   diag.Code
	}{
		{"a", diag.ProjImportCycle},
		{"b", diag.ProjImportCycle},
		{"lonely", diag.ProjUnresolvedImport},
		{"escape", diag.ProjUnresolvedImport},
		{"fine", diag.ProjDuplicateName},
	}
	for _, tt := range tests {
		if !hasCode(res.Bag, tt.module, tt.code) {
			t.Fatalf("expected %s for %s, got %v", tt.code.ID(), tt.module, res.Bag.Items())
		}
	}
	for _, name := range []string{"a", "b", "lonely", "escape"} {
		if !res.Module(name).Broken {
			t.Fatalf("%s must be broken", name)
		}
	}
	// the first declaration of a duplicated module wins
	if fine := res.Module("fine"); fine.Module == nil || filepath.Dir(fine.Path) != dir {
		t.Fatalf("expected the top-level fine to build, got %+v", fine)
	}
}

func TestBuildDecodeFailure(t *testing.T) {
	dir := t.TempDir()
	testkit.WriteRaw(t, dir, "junk"+Ext, []byte{0xc1, 0x00})
	testkit.WriteModules(t, dir, &Module{Name: "app", Imports: imports("./junk")})

	c := newContext(t)
	res, err := Build(context.Background(), c, []string{dir}, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !hasCode(res.Bag, "junk", diag.ProjDecodeAST) {
		t.Fatalf("expected decode error, got %v", res.Bag.Items())
	}
	if !hasCode(res.Bag, "app", diag.ModDependencyFailed) {
		t.Fatalf("expected dependency failure, got %v", res.Bag.Items())
	}
	for _, d := range res.Bag.Items() {
		if d.Module == "app" && len(d.Notes) == 0 {
			t.Fatalf("dependency failure must carry the root cause")
		}
	}
}

func TestBuildStopsEarly(t *testing.T) {
	c := newContext(t)
	_, err := Build(context.Background(), c, []string{t.TempDir()}, Options{})
	if diag.CodeOf(err) != diag.ProjNoSources {
		t.Fatalf("expected %s, got %v", diag.ProjNoSources.ID(), err)
	}

	_, err = Build(context.Background(), c, []string{filepath.Join(t.TempDir(), "missing")}, Options{})
	if diag.CodeOf(err) != diag.ProjLoadFile {
		t.Fatalf("expected %s, got %v", diag.ProjLoadFile.ID(), err)
	}

	dir := t.TempDir()
	testkit.WriteModules(t, dir, testkit.ReturnConst("main", 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Build(ctx, c, []string{dir}, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if c.Module("main") != nil {
		t.Fatalf("cancelled build must not load modules")
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	paths := testkit.WriteModules(t, dir, &Module{Name: "a"})
	paths = append(paths, testkit.WriteModules(t, filepath.Join(dir, "nested"), &Module{Name: "b"})...)
	testkit.WriteModules(t, filepath.Join(dir, ".cache"), &Module{Name: "hidden"})
	testkit.WriteRaw(t, dir, "notes.txt", []byte("x"))

	files, err := Discover(dir, paths[0])
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 2 || files[0] != paths[0] || files[1] != paths[1] {
		t.Fatalf("files = %v, want %v", files, paths)
	}

	if _, err := Discover(filepath.Join(dir, "notes.txt")); err == nil {
		t.Fatalf("expected error for a non-AST file")
	}
}

func TestDecodeEventsPerFile(t *testing.T) {
	dir := t.TempDir()
	paths := testkit.WriteModules(t, dir, &Module{Name: "x"}, &Module{Name: "y"}, &Module{Name: "z"})
	if err := os.Remove(paths[2]); err != nil {
		t.Fatalf("remove: %v", err)
	}

	counts := map[PhaseStatus]int{}
	results, err := DecodeFiles(context.Background(), paths, 0, 2, func(ev ModuleEvent) {
		counts[ev.Status]++
	})
	if err != nil {
		t.Fatalf("DecodeFiles: %v", err)
	}
	if counts[PhaseStart] != 3 || counts[PhaseEnd] != 2 || counts[PhaseFailed] != 1 {
		t.Fatalf("unexpected event counts %v", counts)
	}
	if results[0].Module.Name != "x" || results[1].Module.Name != "y" {
		t.Fatalf("results must keep file order")
	}
	if results[2].Module != nil || results[2].Name() != "z" {
		t.Fatalf("missing file must fail with its stem as name")
	}
	if items := results[2].Bag.Items(); len(items) != 1 || items[0].Code != diag.ProjLoadFile {
		t.Fatalf("unexpected diagnostics %v", items)
	}
}
