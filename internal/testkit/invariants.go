package testkit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"fortio.org/safecast"

	"elang/internal/ast"
	"elang/internal/ir"
)

// CheckTerminators runs the backend verifier over the named modules of c,
// or over every module when names is empty:
// 1) every block ends with exactly one terminator
// 2) nothing was appended after a terminator
func CheckTerminators(c *ir.Context, names ...string) error {
	if c == nil {
		return fmt.Errorf("nil context")
	}
	if len(names) == 0 {
		names = c.Modules()
	}
	var errs []error
	for _, name := range names {
		m := c.Module(name)
		if m == nil {
			errs = append(errs, fmt.Errorf("module %q is not loaded", name))
			continue
		}
		if err := c.Verify(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CheckLoadOrder verifies that every dependency of a loaded module was
// loaded before it.
func CheckLoadOrder(c *ir.Context) error {
	if c == nil {
		return fmt.Errorf("nil context")
	}
	order := c.Modules()
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	for i, name := range order {
		for _, dep := range c.Module(name).Dependencies() {
			at, ok := pos[dep]
			if !ok {
				return fmt.Errorf("module %q depends on unloaded %q", name, dep)
			}
			if at >= i {
				return fmt.Errorf("module %q (#%d) loaded before its dependency %q (#%d)", name, i, dep, at)
			}
		}
	}
	return nil
}

// WriteModules encodes mods into dir as <name>.east files and returns the
// written paths in argument order.
func WriteModules(t testing.TB, dir string, mods ...*ast.Module) []string {
	t.Helper()
	paths := make([]string, 0, len(mods))
	for _, m := range mods {
		path := filepath.Join(dir, m.Name+ast.Ext)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
		}
		if err := ast.WriteFile(path, m); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		paths = append(paths, path)
	}
	return paths
}

// WriteRaw stores data under dir/name, for inputs that must not decode.
func WriteRaw(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ReturnConst builds a module whose main returns v.
func ReturnConst(name string, v int) *ast.Module {
	n, err := safecast.Conv[uint64](v)
	if err != nil {
		panic(fmt.Errorf("ReturnConst: %w", err))
	}
	return &ast.Module{Name: name, Decls: []*ast.Decl{
		ast.Func("main", ast.Type("i32"), nil, ast.Block(ast.Return(ast.IntN(n, 32)))),
	}}
}
