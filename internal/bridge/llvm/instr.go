package llvm

import (
	"errors"
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"elang/internal/bridge"
)

// Alloc reserves a stack slot for typ in the active block.
func (b *Bridge) Alloc(typ bridge.Handle, name string) (bridge.Handle, error) {
	t, kind, err := b.typeOf(typ)
	if err != nil {
		return bridge.NoHandle, err
	}
	if kind == bridge.KindVoid || kind == bridge.KindLabel {
		return bridge.NoHandle, fmt.Errorf("cannot allocate %s", kind)
	}
	if kind == bridge.KindFunc {
		t = types.NewPointer(t)
	}
	blk, err := b.cursor()
	if err != nil {
		return bridge.NoHandle, err
	}
	inst := blk.NewAlloca(t)
	inst.SetName(b.localName(blk.Parent, name))
	return b.local(blk, inst), nil
}

func (b *Bridge) Load(ptr bridge.Handle) (bridge.Handle, error) {
	pv, err := b.valueOf(ptr)
	if err != nil {
		return bridge.NoHandle, err
	}
	pt, ok := pv.Type().(*types.PointerType)
	if !ok {
		return bridge.NoHandle, fmt.Errorf("load from non-pointer %s", pv.Type())
	}
	blk, err := b.cursor()
	if err != nil {
		return bridge.NoHandle, err
	}
	return b.local(blk, blk.NewLoad(pt.ElemType, pv)), nil
}

// Store writes val through ptr. The pointee type must match val's type.
func (b *Bridge) Store(ptr, val bridge.Handle) (bridge.Handle, error) {
	pv, err := b.valueOf(ptr)
	if err != nil {
		return bridge.NoHandle, err
	}
	vv, err := b.valueOf(val)
	if err != nil {
		return bridge.NoHandle, err
	}
	pt, ok := pv.Type().(*types.PointerType)
	if !ok {
		return bridge.NoHandle, fmt.Errorf("store to non-pointer %s", pv.Type())
	}
	want, err := b.handleOfType(pt.ElemType)
	if err != nil {
		return bridge.NoHandle, err
	}
	got := b.ValueType(val)
	if fn, ok := vv.(*ir.Func); ok {
		got, err = b.handleOfType(fn.Type())
		if err != nil {
			return bridge.NoHandle, err
		}
	}
	if want != got {
		return bridge.NoHandle, fmt.Errorf("cannot store %s into %s slot", b.TypeName(got), b.TypeName(want))
	}
	blk, err := b.cursor()
	if err != nil {
		return bridge.NoHandle, err
	}
	return b.handleForInst(blk.NewStore(vv, pv)), nil
}

func (b *Bridge) Bitcast(v, typ bridge.Handle) (bridge.Handle, error) {
	x, err := b.valueOf(v)
	if err != nil {
		return bridge.NoHandle, err
	}
	t, _, err := b.typeOf(typ)
	if err != nil {
		return bridge.NoHandle, err
	}
	blk, err := b.cursor()
	if err != nil {
		return bridge.NoHandle, err
	}
	return b.local(blk, blk.NewBitCast(x, t)), nil
}

// Coerce converts v to typ with the widening instruction that matches the two
// kinds. Identity coercions return v itself.
func (b *Bridge) Coerce(v, typ bridge.Handle) (bridge.Handle, error) {
	from := b.ValueType(v)
	if from == typ {
		return v, nil
	}
	x, err := b.valueOf(v)
	if err != nil {
		return bridge.NoHandle, err
	}
	t, tk, err := b.typeOf(typ)
	if err != nil {
		return bridge.NoHandle, err
	}
	fk := b.TypeKind(from)
	blk, err := b.cursor()
	if err != nil {
		return bridge.NoHandle, err
	}
	var out value.Value
	switch {
	case fk == bridge.KindBool && tk.IsInteger():
		out = blk.NewZExt(x, t)
	case fk.IsInteger() && tk.IsInteger():
		if intBits(fk) < intBits(tk) {
			out = blk.NewSExt(x, t)
		} else {
			out = blk.NewTrunc(x, t)
		}
	case fk.IsInteger() && tk.IsFloat():
		out = blk.NewSIToFP(x, t)
	case fk == bridge.KindF32 && tk == bridge.KindF64:
		out = blk.NewFPExt(x, t)
	case fk == bridge.KindF64 && tk == bridge.KindF32:
		out = blk.NewFPTrunc(x, t)
	case fk.IsPointer() && tk.IsPointer():
		out = blk.NewBitCast(x, t)
	default:
		return bridge.NoHandle, fmt.Errorf("cannot convert %s to %s", b.TypeName(from), b.TypeName(typ))
	}
	return b.local(blk, out), nil
}

// PtrVal dereferences a storage slot; any other value is returned unchanged.
func (b *Bridge) PtrVal(v bridge.Handle) (bridge.Handle, error) {
	x, err := b.valueOf(v)
	if err != nil {
		return bridge.NoHandle, err
	}
	if _, ok := x.(*ir.InstAlloca); !ok {
		return v, nil
	}
	return b.Load(v)
}

// PtrRef returns the storage slot a value lives in: the slot itself, or the
// source of a load.
func (b *Bridge) PtrRef(v bridge.Handle) (bridge.Handle, error) {
	x, err := b.valueOf(v)
	if err != nil {
		return bridge.NoHandle, err
	}
	switch x := x.(type) {
	case *ir.InstAlloca:
		return v, nil
	case *ir.InstLoad:
		return b.handleForValue(x.Src), nil
	case *ir.Global:
		return v, nil
	}
	return bridge.NoHandle, fmt.Errorf("value of type %s is not addressable", x.Type())
}

// Unary emits neg, not or flip.
func (b *Bridge) Unary(op bridge.Op, a bridge.Handle) (bridge.Handle, error) {
	x, err := b.valueOf(a)
	if err != nil {
		return bridge.NoHandle, err
	}
	kind := b.TypeKind(b.ValueType(a))
	blk, err := b.cursor()
	if err != nil {
		return bridge.NoHandle, err
	}
	var out value.Value
	switch {
	case op == bridge.OpNeg && kind.IsInteger():
		out = blk.NewSub(constant.NewInt(x.Type().(*types.IntType), 0), x)
	case op == bridge.OpNeg && kind.IsFloat():
		out = blk.NewFNeg(x)
	case op == bridge.OpNot && kind == bridge.KindBool:
		out = blk.NewXor(x, constant.NewBool(true))
	case op == bridge.OpFlip && kind.IsInteger():
		out = blk.NewXor(x, constant.NewInt(x.Type().(*types.IntType), -1))
	default:
		return bridge.NoHandle, fmt.Errorf("operator %s does not apply to %s", op, kind)
	}
	return b.local(blk, out), nil
}

var intPreds = map[bridge.Op]enum.IPred{
	bridge.OpEq: enum.IPredEQ,
	bridge.OpNe: enum.IPredNE,
	bridge.OpGt: enum.IPredSGT,
	bridge.OpGe: enum.IPredSGE,
	bridge.OpLt: enum.IPredSLT,
	bridge.OpLe: enum.IPredSLE,
}

var floatPreds = map[bridge.Op]enum.FPred{
	bridge.OpEq: enum.FPredOEQ,
	bridge.OpNe: enum.FPredONE,
	bridge.OpGt: enum.FPredOGT,
	bridge.OpGe: enum.FPredOGE,
	bridge.OpLt: enum.FPredOLT,
	bridge.OpLe: enum.FPredOLE,
}

// Binary emits an arithmetic, comparison, logical or bitwise instruction.
// Both operands must have the same type.
func (b *Bridge) Binary(op bridge.Op, lhs, rhs bridge.Handle) (bridge.Handle, error) {
	x, err := b.valueOf(lhs)
	if err != nil {
		return bridge.NoHandle, err
	}
	y, err := b.valueOf(rhs)
	if err != nil {
		return bridge.NoHandle, err
	}
	lt, rt := b.ValueType(lhs), b.ValueType(rhs)
	if lt != rt {
		return bridge.NoHandle, fmt.Errorf("operator %s: operand types %s and %s differ", op, b.TypeName(lt), b.TypeName(rt))
	}
	kind := b.TypeKind(lt)
	blk, err := b.cursor()
	if err != nil {
		return bridge.NoHandle, err
	}
	var out value.Value
	switch {
	case op.IsComparison() && (kind.IsInteger() || kind == bridge.KindBool || (kind.IsPointer() && (op == bridge.OpEq || op == bridge.OpNe))):
		out = blk.NewICmp(intPreds[op], x, y)
	case op.IsComparison() && kind.IsFloat():
		out = blk.NewFCmp(floatPreds[op], x, y)
	case kind.IsInteger():
		out = intBinary(blk, op, x, y)
	case kind.IsFloat():
		out = floatBinary(blk, op, x, y)
	case kind == bridge.KindBool:
		switch op {
		case bridge.OpAnd, bridge.OpBitAnd:
			out = blk.NewAnd(x, y)
		case bridge.OpOr, bridge.OpBitOr:
			out = blk.NewOr(x, y)
		case bridge.OpBitXor:
			out = blk.NewXor(x, y)
		}
	}
	if out == nil {
		return bridge.NoHandle, fmt.Errorf("operator %s does not apply to %s", op, kind)
	}
	return b.local(blk, out), nil
}

func intBinary(blk *ir.Block, op bridge.Op, x, y value.Value) value.Value {
	switch op {
	case bridge.OpAdd:
		return blk.NewAdd(x, y)
	case bridge.OpSub:
		return blk.NewSub(x, y)
	case bridge.OpMul:
		return blk.NewMul(x, y)
	case bridge.OpDiv:
		return blk.NewSDiv(x, y)
	case bridge.OpMod:
		return blk.NewSRem(x, y)
	case bridge.OpBitAnd:
		return blk.NewAnd(x, y)
	case bridge.OpBitOr:
		return blk.NewOr(x, y)
	case bridge.OpBitXor:
		return blk.NewXor(x, y)
	case bridge.OpShl:
		return blk.NewShl(x, y)
	case bridge.OpShr:
		return blk.NewAShr(x, y)
	}
	return nil
}

func floatBinary(blk *ir.Block, op bridge.Op, x, y value.Value) value.Value {
	switch op {
	case bridge.OpAdd:
		return blk.NewFAdd(x, y)
	case bridge.OpSub:
		return blk.NewFSub(x, y)
	case bridge.OpMul:
		return blk.NewFMul(x, y)
	case bridge.OpDiv:
		return blk.NewFDiv(x, y)
	case bridge.OpMod:
		return blk.NewFRem(x, y)
	}
	return nil
}

func (b *Bridge) Jump(target bridge.Handle) (bridge.Handle, error) {
	tb, err := b.blockOf(target)
	if err != nil {
		return bridge.NoHandle, err
	}
	blk, err := b.cursor()
	if err != nil {
		return bridge.NoHandle, err
	}
	return b.handleForInst(blk.NewBr(tb)), nil
}

func (b *Bridge) JumpCond(cond, ifTrue, ifFalse bridge.Handle) (bridge.Handle, error) {
	c, err := b.valueOf(cond)
	if err != nil {
		return bridge.NoHandle, err
	}
	if b.ValueType(cond) != b.prims[primBool] {
		return bridge.NoHandle, fmt.Errorf("branch condition has type %s, want bool", b.TypeName(b.ValueType(cond)))
	}
	tb, err := b.blockOf(ifTrue)
	if err != nil {
		return bridge.NoHandle, err
	}
	fb, err := b.blockOf(ifFalse)
	if err != nil {
		return bridge.NoHandle, err
	}
	blk, err := b.cursor()
	if err != nil {
		return bridge.NoHandle, err
	}
	return b.handleForInst(blk.NewCondBr(c, tb, fb)), nil
}

// Phi merges incoming values at the start of the active block.
func (b *Bridge) Phi(typ bridge.Handle, incomings []bridge.Incoming) (bridge.Handle, error) {
	if len(incomings) == 0 {
		return bridge.NoHandle, errors.New("phi needs at least one incoming edge")
	}
	incs := make([]*ir.Incoming, 0, len(incomings))
	for i, in := range incomings {
		if b.ValueType(in.Value) != typ {
			return bridge.NoHandle, fmt.Errorf("phi edge %d has type %s, want %s", i, b.TypeName(b.ValueType(in.Value)), b.TypeName(typ))
		}
		x, err := b.valueOf(in.Value)
		if err != nil {
			return bridge.NoHandle, err
		}
		pred, err := b.blockOf(in.Block)
		if err != nil {
			return bridge.NoHandle, err
		}
		incs = append(incs, ir.NewIncoming(x, pred))
	}
	blk, err := b.cursor()
	if err != nil {
		return bridge.NoHandle, err
	}
	return b.local(blk, blk.NewPhi(incs...)), nil
}

// Call emits a call. A callee defined in another module is declared in the
// calling module first.
func (b *Bridge) Call(fn bridge.Handle, args []bridge.Handle) (bridge.Handle, error) {
	callee, err := b.valueOf(fn)
	if err != nil {
		return bridge.NoHandle, err
	}
	blk, err := b.cursor()
	if err != nil {
		return bridge.NoHandle, err
	}
	var sig *types.FuncType
	switch c := callee.(type) {
	case *ir.Func:
		sig = c.Sig
		if blk.Parent != nil && c.Parent != blk.Parent.Parent {
			callee = b.externIn(blk.Parent.Parent, c)
		}
	default:
		pt, ok := callee.Type().(*types.PointerType)
		if !ok {
			return bridge.NoHandle, fmt.Errorf("value of type %s is not callable", callee.Type())
		}
		if sig, ok = pt.ElemType.(*types.FuncType); !ok {
			return bridge.NoHandle, fmt.Errorf("value of type %s is not callable", callee.Type())
		}
	}
	if len(args) < len(sig.Params) || (!sig.Variadic && len(args) != len(sig.Params)) {
		return bridge.NoHandle, fmt.Errorf("call expects %d arguments, got %d", len(sig.Params), len(args))
	}
	vals := make([]value.Value, 0, len(args))
	for i, a := range args {
		x, err := b.valueOf(a)
		if err != nil {
			return bridge.NoHandle, fmt.Errorf("argument %d: %w", i, err)
		}
		if i < len(sig.Params) {
			want, err := b.handleOfType(sig.Params[i])
			if err != nil {
				return bridge.NoHandle, err
			}
			if got := b.ValueType(a); got != want {
				return bridge.NoHandle, fmt.Errorf("argument %d has type %s, want %s", i, b.TypeName(got), b.TypeName(want))
			}
		}
		vals = append(vals, x)
	}
	return b.local(blk, blk.NewCall(callee, vals...)), nil
}

// externIn returns a declaration of f inside m, creating it on first use.
func (b *Bridge) externIn(m *ir.Module, f *ir.Func) *ir.Func {
	ms, ok := b.moduleIndex[m]
	if !ok {
		return f
	}
	name := f.Name()
	if decl, ok := ms.funcs[name]; ok {
		return decl
	}
	params := make([]*ir.Param, 0, len(f.Sig.Params))
	for _, pt := range f.Sig.Params {
		params = append(params, ir.NewParam("", pt))
	}
	decl := m.NewFunc(name, f.Sig.RetType, params...)
	decl.Sig.Variadic = f.Sig.Variadic
	ms.funcs[name] = decl
	b.handleForValue(decl)
	return decl
}

// Ret terminates the active block. NoHandle returns void.
func (b *Bridge) Ret(v bridge.Handle) (bridge.Handle, error) {
	blk, err := b.cursor()
	if err != nil {
		return bridge.NoHandle, err
	}
	retType := types.Type(types.Void)
	if blk.Parent != nil {
		retType = blk.Parent.Sig.RetType
	}
	if v == bridge.NoHandle {
		if !retType.Equal(types.Void) {
			return bridge.NoHandle, fmt.Errorf("missing return value of type %s", retType)
		}
		return b.handleForInst(blk.NewRet(nil)), nil
	}
	x, err := b.valueOf(v)
	if err != nil {
		return bridge.NoHandle, err
	}
	if !x.Type().Equal(retType) {
		return bridge.NoHandle, fmt.Errorf("return value has type %s, want %s", x.Type(), retType)
	}
	return b.handleForInst(blk.NewRet(x)), nil
}
