package coder

import (
	"elang/internal/ast"
	"elang/internal/diag"
	"elang/internal/ir"
)

// stmts lowers list into the active block. Statements after a terminator
// are unreachable and are not lowered.
func (c *coder) stmts(list []*ast.Stmt) error {
	for _, s := range list {
		if c.m.IsTerminated(nil) {
			return nil
		}
		if err := c.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *coder) stmt(s *ast.Stmt) error {
	m := c.m
	switch s.Kind {
	case ast.StmtBlock:
		return m.StmtBlock(func() error { return c.stmts(s.List) })

	case ast.StmtLet:
		var t *ir.Type
		if s.Type != nil {
			var err error
			if t, err = c.typeOf(s.Type); err != nil {
				return err
			}
		}
		return m.StmtDef(s.Name, t, c.optExpr(s.Value))

	case ast.StmtAssign:
		return m.StmtAssign(c.exprFn(s.Target), c.exprFn(s.Value))

	case ast.StmtReturn:
		return m.StmtReturn(c.optExpr(s.Value))

	case ast.StmtIf:
		var onFalse ir.StmtFn
		if s.Else != nil {
			onFalse = c.stmtFn(s.Else)
		}
		return m.StmtBranch(c.exprFn(s.Cond), c.stmtFn(s.Then), onFalse)

	case ast.StmtLoop:
		var init, step ir.StmtFn
		if s.Init != nil {
			init = c.stmtFn(s.Init)
		}
		if s.Step != nil {
			step = c.stmtFn(s.Step)
		}
		return m.StmtLoop(init, c.optExpr(s.Cond), step, c.stmtFn(s.Body))

	case ast.StmtBreak:
		return m.StmtBreak()

	case ast.StmtContinue:
		return m.StmtContinue()

	case ast.StmtExpr:
		_, err := c.expr(s.Value)
		return err

	case ast.StmtDrop:
		v, err := c.expr(s.Value)
		if err != nil {
			return err
		}
		return m.Drop(v)

	default:
		return diag.Errorf(diag.SemaError, "unsupported statement %s", s.Kind)
	}
}

func (c *coder) stmtFn(s *ast.Stmt) ir.StmtFn {
	return func() error { return c.stmt(s) }
}

func (c *coder) exprFn(e *ast.Expr) ir.ExprFn {
	return func() (*ir.Value, error) { return c.expr(e) }
}

// optExpr is exprFn for optional operands; a nil expression stays absent.
func (c *coder) optExpr(e *ast.Expr) ir.ExprFn {
	if e == nil {
		return nil
	}
	return c.exprFn(e)
}
