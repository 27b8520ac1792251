package coder

import (
	"elang/internal/ast"
	"elang/internal/bridge"
	"elang/internal/diag"
	"elang/internal/ir"
)

var unaryOps = map[string]bridge.Op{
	"-": bridge.OpNeg,
	"!": bridge.OpNot,
	"~": bridge.OpFlip,
}

var binaryOps = map[string]bridge.Op{
	"+":  bridge.OpAdd,
	"-":  bridge.OpSub,
	"*":  bridge.OpMul,
	"/":  bridge.OpDiv,
	"%":  bridge.OpMod,
	"==": bridge.OpEq,
	"!=": bridge.OpNe,
	">":  bridge.OpGt,
	">=": bridge.OpGe,
	"<":  bridge.OpLt,
	"<=": bridge.OpLe,
	"&&": bridge.OpAnd,
	"||": bridge.OpOr,
	"&":  bridge.OpBitAnd,
	"|":  bridge.OpBitOr,
	"^":  bridge.OpBitXor,
	"<<": bridge.OpShl,
	">>": bridge.OpShr,
}

// expr lowers e. Identifiers yield their storage slot; consumers that need
// the stored value dereference it.
func (c *coder) expr(e *ast.Expr) (*ir.Value, error) {
	m := c.m
	switch e.Kind {
	case ast.ExprInt, ast.ExprFloat, ast.ExprBool, ast.ExprString:
		return c.literal(e)

	case ast.ExprIdent:
		return m.ResolveValue(e.Name)

	case ast.ExprUnary:
		op, ok := unaryOps[e.Op]
		if !ok {
			return nil, diag.Errorf(diag.SemaError, "unknown unary operator %q", e.Op)
		}
		x, err := c.rvalue(e.X)
		if err != nil {
			return nil, err
		}
		return m.Unary(op, x)

	case ast.ExprBinary:
		op, ok := binaryOps[e.Op]
		if !ok {
			return nil, diag.Errorf(diag.SemaError, "unknown binary operator %q", e.Op)
		}
		x, err := c.rvalue(e.X)
		if err != nil {
			return nil, err
		}
		y, err := c.rvalue(e.Y)
		if err != nil {
			return nil, err
		}
		if x, y, err = c.unify(x, y); err != nil {
			return nil, err
		}
		return m.Binary(op, x, y)

	case ast.ExprCall:
		args := make([]*ir.Value, 0, len(e.Args))
		for _, a := range e.Args {
			v, err := c.rvalue(a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		return m.CallNamed(e.Name, args)

	case ast.ExprTernary:
		return m.ExprBranch(c.exprFn(e.Cond), c.exprFn(e.X), c.exprFn(e.Y))

	case ast.ExprMake:
		t, err := c.typeOf(e.Type)
		if err != nil {
			return nil, err
		}
		if e.Count == nil {
			return m.Make(t)
		}
		n, err := c.rvalue(e.Count)
		if err != nil {
			return nil, err
		}
		return m.MakeN(t, n)

	case ast.ExprCast:
		t, err := c.typeOf(e.Type)
		if err != nil {
			return nil, err
		}
		x, err := c.rvalue(e.X)
		if err != nil {
			return nil, err
		}
		if x.Type().IsPointer() && t.IsPointer() {
			return m.Bitcast(x, t)
		}
		return m.Coerce(x, t)

	default:
		return nil, diag.Errorf(diag.SemaError, "unsupported expression %s", e.Kind)
	}
}

// rvalue lowers e and loads it when it names a storage slot.
func (c *coder) rvalue(e *ast.Expr) (*ir.Value, error) {
	v, err := c.expr(e)
	if err != nil {
		return nil, err
	}
	return c.m.PtrVal(v)
}

// unify widens the narrower operand when one converts losslessly into the
// other's type. Anything else is left to the operator's type check.
func (c *coder) unify(x, y *ir.Value) (*ir.Value, *ir.Value, error) {
	if ir.EqualsType(x.Type(), y.Type()) {
		return x, y, nil
	}
	var err error
	switch {
	case c.m.CanLosslesslyCast(x.Type(), y.Type()):
		x, err = c.m.Coerce(x, y.Type())
	case c.m.CanLosslesslyCast(y.Type(), x.Type()):
		y, err = c.m.Coerce(y, x.Type())
	}
	return x, y, err
}

func (c *coder) literal(e *ast.Expr) (*ir.Value, error) {
	m := c.m
	switch e.Kind {
	case ast.ExprInt:
		bits := uint32(e.Bits)
		if bits == 0 {
			bits = 32
		}
		return m.Int(e.Int, bits)
	case ast.ExprFloat:
		return m.Float(e.Float), nil
	case ast.ExprBool:
		return m.BoolValue(e.Bool), nil
	case ast.ExprString:
		return m.String(e.Str)
	default:
		return nil, diag.Errorf(diag.SemaError, "%s is not a literal", e.Kind)
	}
}
