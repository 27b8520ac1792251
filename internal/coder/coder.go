// Package coder lowers an ast.Module into an ir.Module through the builder
// protocol of package ir.
package coder

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"elang/internal/ast"
	"elang/internal/diag"
	"elang/internal/ir"
	"elang/internal/trace"
)

// Build returns the function that Context.Load calls to construct src.
//
// The lowering runs in passes: imports, struct layouts, function signatures,
// module-level lets, function bodies, exports. Every pass sees the symbols of
// the previous ones, so declarations may appear in any order.
func Build(ctx context.Context, src *ast.Module) ir.BuildFunc {
	return func(c *ir.Context) (*ir.Module, error) {
		m, err := c.NewModule(src.Name)
		if err != nil {
			return nil, err
		}
		cd := &coder{
			ctx:     ctx,
			src:     src,
			m:       m,
			tracer:  c.Tracer(),
			structs: make(map[string]*ast.Decl),
			laid:    make(map[string]bool),
			funcs:   make(map[*ast.Decl]*ir.Value),
		}
		return m, cd.run()
	}
}

type coder struct {
	ctx    context.Context
	src    *ast.Module
	m      *ir.Module
	tracer trace.Tracer

	structs map[string]*ast.Decl
	laid    map[string]bool
	funcs   map[*ast.Decl]*ir.Value
}

func (c *coder) run() error {
	passes := []struct {
		name string
		fn   func() error
	}{
		{"imports", c.imports},
		{"structs", c.declareStructs},
		{"signatures", c.declareFuncs},
		{"lets", c.declareLets},
		{"bodies", c.lowerBodies},
		{"exports", c.exports},
	}
	for _, p := range passes {
		if err := c.ctx.Err(); err != nil {
			return err
		}
		span := trace.BeginIn(c.tracer, trace.ScopeNode, c.src.Name, p.name, c.m.TraceSpan())
		err := p.fn()
		if err != nil {
			span.WithExtra("status", "failed").End(err.Error())
			return err
		}
		span.End("")
	}
	return nil
}

// imports uses the prelude modules when they are loaded, then every
// dependency the module names.
func (c *coder) imports() error {
	named := make(map[string]bool, len(c.src.Imports))
	for _, imp := range c.src.Imports {
		named[ImportName(imp)] = true
	}
	ctx := c.m.Context()
	for _, pre := range []string{ir.CStdModule, ir.CoreModule} {
		if named[pre] || pre == c.src.Name || ctx.Module(pre) == nil {
			continue
		}
		if err := c.m.Use(pre); err != nil {
			return err
		}
	}
	for _, imp := range c.src.Imports {
		if err := c.m.Use(ImportName(imp)); err != nil {
			return err
		}
	}
	return nil
}

// exports publishes the names listed by export declarations, or every
// top-level declaration when the module lists none.
func (c *coder) exports() error {
	names := c.src.Exports()
	if len(names) == 0 {
		for _, d := range c.src.Decls {
			if d.Kind != ast.DeclExport && d.Name != "" {
				names = append(names, d.Name)
			}
		}
	}
	for _, name := range names {
		if err := c.m.Export(name); err != nil {
			return err
		}
	}
	return nil
}

// typeOf resolves a type reference. A nil reference and the name "void"
// denote the void type.
func (c *coder) typeOf(ref *ast.TypeRef) (*ir.Type, error) {
	if ref == nil {
		return c.m.Void(), nil
	}
	var t *ir.Type
	if ref.Name == "void" {
		t = c.m.Void()
	} else {
		var err error
		if t, err = c.m.ResolveType(ref.Name); err != nil {
			return nil, err
		}
	}
	for range ref.Ptr {
		if t.IsVoid() {
			return nil, diag.Errorf(diag.SemaVoidBinding, "pointer to void in %s", ref)
		}
		var err error
		if t, err = t.PointerType(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ImportName is the module an import refers to: its explicit name, or the
// last element of its target without extension.
func ImportName(imp *ast.Import) string {
	if imp.Name != "" {
		return imp.Name
	}
	return strings.TrimSuffix(path.Base(filepath.ToSlash(imp.Target)), ast.Ext)
}
