package coder

import (
	"fmt"

	"fortio.org/safecast"

	"elang/internal/ast"
	"elang/internal/diag"
	"elang/internal/ir"
)

// declareStructs registers every struct name first, then lays out members so
// fields and bases may refer to structs declared later in the file.
func (c *coder) declareStructs() error {
	for _, d := range c.src.Decls {
		if d.Kind != ast.DeclStruct {
			continue
		}
		st, err := c.m.Struct(d.Name)
		if err != nil {
			return err
		}
		if err := c.m.AddTypeSymbol(d.Name, st.Type); err != nil {
			return err
		}
		c.structs[d.Name] = d
	}
	for _, d := range c.src.Decls {
		if d.Kind == ast.DeclStruct {
			if err := c.layout(d, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// layout fills the members of d after its base. visiting detects inheritance
// cycles.
func (c *coder) layout(d *ast.Decl, visiting map[string]bool) error {
	if c.laid[d.Name] {
		return nil
	}
	if visiting[d.Name] {
		return diag.Errorf(diag.SemaError, "struct %s inherits from itself", d.Name)
	}
	t, err := c.m.ResolveType(d.Name)
	if err != nil {
		return err
	}
	st := t.Struct()
	if d.Base != "" {
		if base, ok := c.structs[d.Base]; ok {
			if visiting == nil {
				visiting = make(map[string]bool)
			}
			visiting[d.Name] = true
			if err := c.layout(base, visiting); err != nil {
				return err
			}
		}
		if err := st.Extends(d.Base); err != nil {
			return err
		}
	}
	for _, f := range d.Fields {
		var ft *ir.Type
		if f.Type != nil {
			if ft, err = c.typeOf(f.Type); err != nil {
				return err
			}
		}
		var fv *ir.Value
		if f.Init != nil {
			if fv, err = c.constant(f.Init); err != nil {
				return err
			}
			if ft != nil && !ir.EqualsType(fv.Type(), ft) {
				return diag.Errorf(diag.SemaTypeMismatch, "field %s.%s: initializer is %s, want %s", d.Name, f.Name, fv.Type(), ft)
			}
		}
		if _, err := st.AddMember(f.Name, ft, fv); err != nil {
			return err
		}
	}
	c.laid[d.Name] = true
	return nil
}

// declareFuncs declares the signature of every function and extern.
func (c *coder) declareFuncs() error {
	for _, d := range c.src.Decls {
		if d.Kind != ast.DeclFunc && d.Kind != ast.DeclExtern {
			continue
		}
		ret, err := c.typeOf(d.Ret)
		if err != nil {
			return err
		}
		args := make([]*ir.Type, 0, len(d.Params))
		for _, p := range d.Params {
			t, err := c.typeOf(p.Type)
			if err != nil {
				return err
			}
			if t.IsVoid() {
				return diag.Errorf(diag.SemaVoidBinding, "func %s: parameter %s is void", d.Name, p.Name)
			}
			args = append(args, t)
		}
		fn, err := c.m.DeclareFunc(d.Name, ret, args, d.Kind == ast.DeclExtern && d.Variadic)
		if err != nil {
			return err
		}
		if err := c.m.AddValueSymbol(d.Name, fn); err != nil {
			return err
		}
		c.funcs[d] = fn
	}
	return nil
}

// declareLets binds module-level lets. Their initializers must be literals:
// there is no function to evaluate anything else in.
func (c *coder) declareLets() error {
	for _, d := range c.src.Decls {
		if d.Kind != ast.DeclLet {
			continue
		}
		v, err := c.constant(d.Init)
		if err != nil {
			return err
		}
		if d.Type != nil {
			t, err := c.typeOf(d.Type)
			if err != nil {
				return err
			}
			if !ir.EqualsType(v.Type(), t) {
				return diag.Errorf(diag.SemaTypeMismatch, "let %s: initializer is %s, want %s", d.Name, v.Type(), t)
			}
		}
		if err := c.m.AddValueSymbol(d.Name, v); err != nil {
			return err
		}
	}
	return nil
}

// constant lowers a literal outside any function.
func (c *coder) constant(e *ast.Expr) (*ir.Value, error) {
	switch e.Kind {
	case ast.ExprInt, ast.ExprFloat, ast.ExprBool, ast.ExprString:
		return c.literal(e)
	default:
		return nil, diag.Errorf(diag.SemaError, "%s expression is not a constant", e.Kind)
	}
}

// lowerBodies lowers every function body in declaration order.
func (c *coder) lowerBodies() error {
	for _, d := range c.src.Decls {
		if d.Kind != ast.DeclFunc {
			continue
		}
		if err := c.ctx.Err(); err != nil {
			return err
		}
		if err := c.function(d, c.funcs[d]); err != nil {
			return fmt.Errorf("func %s: %w", d.Name, err)
		}
	}
	return nil
}

func (c *coder) function(d *ast.Decl, fn *ir.Value) error {
	c.m.PushScope(fn)
	entry, err := c.m.CreateBlock("entry")
	if err != nil {
		return err
	}
	if err := c.m.SetActiveBlock(entry); err != nil {
		return err
	}
	for i, p := range d.Params {
		idx, err := safecast.Conv[uint32](i)
		if err != nil {
			return err
		}
		arg, err := c.m.FuncArg(fn, idx)
		if err != nil {
			return err
		}
		// parameters get a stack slot so the body can assign to them
		if err := c.m.StmtDef(p.Name, arg.Type(), func() (*ir.Value, error) { return arg, nil }); err != nil {
			return err
		}
	}
	if err := c.stmts(d.Body.List); err != nil {
		return err
	}
	if err := c.m.EnsureTailRet(fn); err != nil {
		return err
	}
	if err := c.m.SetActiveBlock(nil); err != nil {
		return err
	}
	return c.m.PopScope()
}
