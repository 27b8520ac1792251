package ast

import (
	"fmt"

	"elang/internal/diag"
)

// Validate checks that every node carries the fields its kind requires.
// It does not resolve names; that is the coder's job.
func Validate(m *Module) error {
	if m.Name == "" {
		return diag.Errorf(diag.ProjDecodeAST, "module has no name")
	}
	v := &validator{}
	for i, imp := range m.Imports {
		if imp == nil || imp.Target == "" {
			v.failf("import #%d has no target", i)
		}
	}
	for i, d := range m.Decls {
		v.decl(i, d)
	}
	if v.err != nil {
		return diag.Wrap(diag.ProjDecodeAST, v.err, "module %s", m.Name)
	}
	return nil
}

type validator struct {
	err error
}

func (v *validator) failf(format string, args ...any) {
	if v.err == nil {
		v.err = fmt.Errorf(format, args...)
	}
}

func (v *validator) decl(i int, d *Decl) {
	if d == nil {
		v.failf("declaration #%d is nil", i)
		return
	}
	switch d.Kind {
	case DeclFunc, DeclExtern:
		if d.Name == "" {
			v.failf("%s #%d has no name", d.Kind, i)
		}
		for _, p := range d.Params {
			if p == nil || p.Type == nil {
				v.failf("%s %s: parameter without type", d.Kind, d.Name)
			}
		}
		if d.Kind == DeclFunc {
			if d.Body == nil || d.Body.Kind != StmtBlock {
				v.failf("func %s: body must be a block", d.Name)
				return
			}
			v.stmt(d.Body)
		}
	case DeclStruct:
		if d.Name == "" {
			v.failf("struct #%d has no name", i)
		}
		for _, f := range d.Fields {
			if f == nil || f.Name == "" || (f.Type == nil && f.Init == nil) {
				v.failf("struct %s: malformed field", d.Name)
				continue
			}
			v.expr(f.Init)
		}
	case DeclLet:
		if d.Name == "" || d.Init == nil {
			v.failf("let #%d needs a name and an initializer", i)
			return
		}
		v.expr(d.Init)
	case DeclExport:
		if len(d.Names) == 0 {
			v.failf("export #%d lists no names", i)
		}
	default:
		v.failf("declaration #%d has unknown kind %d", i, d.Kind)
	}
}

func (v *validator) stmt(s *Stmt) {
	if s == nil {
		return
	}
	switch s.Kind {
	case StmtBlock:
		for _, sub := range s.List {
			if sub == nil {
				v.failf("nil statement in block")
				continue
			}
			v.stmt(sub)
		}
	case StmtLet:
		if s.Name == "" || (s.Type == nil && s.Value == nil) {
			v.failf("let needs a name and a type or value")
		}
		v.expr(s.Value)
	case StmtAssign:
		if s.Target == nil || s.Value == nil {
			v.failf("assignment needs a target and a value")
		}
		v.expr(s.Target)
		v.expr(s.Value)
	case StmtReturn:
		v.expr(s.Value)
	case StmtIf:
		if s.Cond == nil || s.Then == nil {
			v.failf("if needs a condition and a body")
		}
		v.expr(s.Cond)
		v.stmt(s.Then)
		v.stmt(s.Else)
	case StmtLoop:
		if s.Body == nil {
			v.failf("loop needs a body")
		}
		v.stmt(s.Init)
		v.expr(s.Cond)
		v.stmt(s.Step)
		v.stmt(s.Body)
	case StmtBreak, StmtContinue:
	case StmtExpr, StmtDrop:
		if s.Value == nil {
			v.failf("%s needs a value", s.Kind)
		}
		v.expr(s.Value)
	default:
		v.failf("statement has unknown kind %d", s.Kind)
	}
}

func (v *validator) expr(e *Expr) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ExprInt:
		switch e.Bits {
		case 0, 8, 16, 32, 64:
		default:
			v.failf("integer literal with %d bits", e.Bits)
		}
	case ExprFloat, ExprBool, ExprString:
	case ExprIdent:
		if e.Name == "" {
			v.failf("identifier without a name")
		}
	case ExprUnary:
		if e.Op == "" || e.X == nil {
			v.failf("unary expression needs an operator and an operand")
		}
		v.expr(e.X)
	case ExprBinary:
		if e.Op == "" || e.X == nil || e.Y == nil {
			v.failf("binary expression needs an operator and two operands")
		}
		v.expr(e.X)
		v.expr(e.Y)
	case ExprCall:
		if e.Name == "" {
			v.failf("call without a callee")
		}
		for _, a := range e.Args {
			if a == nil {
				v.failf("call %s: nil argument", e.Name)
				continue
			}
			v.expr(a)
		}
	case ExprTernary:
		if e.Cond == nil || e.X == nil || e.Y == nil {
			v.failf("ternary needs three operands")
		}
		v.expr(e.Cond)
		v.expr(e.X)
		v.expr(e.Y)
	case ExprMake:
		if e.Type == nil {
			v.failf("make without a type")
		}
		v.expr(e.Count)
	case ExprCast:
		if e.Type == nil || e.X == nil {
			v.failf("cast needs a type and an operand")
		}
		v.expr(e.X)
	default:
		v.failf("expression has unknown kind %d", e.Kind)
	}
}
