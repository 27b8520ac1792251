package ir

import (
	"fmt"

	"fortio.org/safecast"

	"elang/internal/bridge"
	"elang/internal/diag"
)

// Alloc reserves a stack slot for t. The result is a pointer to t, or to a
// function pointer when t is a function type.
func (m *Module) Alloc(name string, t *Type) (*Value, error) {
	if t == nil || t.IsVoid() {
		return nil, m.errorf(diag.SemaVoidBinding, "cannot allocate %q of type void", name)
	}
	slot := t
	if t.IsFunc() {
		p, err := t.PointerType()
		if err != nil {
			return nil, err
		}
		slot = p
	}
	pt, err := slot.PointerType()
	if err != nil {
		return nil, err
	}
	h, err := m.b.Alloc(t.handle, name)
	if err != nil {
		return nil, m.backend(err, "alloc %q", name)
	}
	return m.ValueOf(pt, h), nil
}

// AllocInit allocates a slot and stores init into it when init is non-nil.
func (m *Module) AllocInit(name string, t *Type, init *Value) (*Value, error) {
	slot, err := m.Alloc(name, t)
	if err != nil {
		return nil, err
	}
	if init != nil {
		if _, err := m.Store(slot, init); err != nil {
			return nil, err
		}
	}
	return slot, nil
}

func (m *Module) Load(ptr *Value) (*Value, error) {
	if !ptr.typ.IsPointer() {
		return nil, m.errorf(diag.SemaTypeMismatch, "cannot load from %s", ptr.typ.name)
	}
	h, err := m.b.Load(ptr.handle)
	if err != nil {
		return nil, m.backend(err, "load")
	}
	return m.ValueOf(m.Type(m.b.ValueType(h)), h), nil
}

// Store writes val through ptr and returns the store instruction.
func (m *Module) Store(ptr, val *Value) (bridge.Handle, error) {
	if !ptr.typ.IsPointer() {
		return bridge.NoHandle, m.errorf(diag.SemaNotAddressable, "cannot store through %s", ptr.typ.name)
	}
	if elem := ptr.typ.Elem(); elem != nil && !EqualsType(elem, val.typ) && !(elem.IsPointer() && val.typ.IsFunc()) {
		return bridge.NoHandle, m.errorf(diag.SemaTypeMismatch, "cannot store %s into %s", val.typ.name, ptr.typ.name)
	}
	h, err := m.b.Store(ptr.handle, val.handle)
	if err != nil {
		return bridge.NoHandle, m.backend(err, "store")
	}
	return h, nil
}

// Bitcast reinterprets v as t.
func (m *Module) Bitcast(v *Value, t *Type) (*Value, error) {
	h, err := m.b.Bitcast(v.handle, t.handle)
	if err != nil {
		return nil, m.backend(err, "bitcast %s to %s", v.typ.name, t.name)
	}
	return m.ValueOf(t, h), nil
}

// Coerce converts v to t. Values already of type t are returned as is.
func (m *Module) Coerce(v *Value, t *Type) (*Value, error) {
	if EqualsType(v.typ, t) {
		return v, nil
	}
	h, err := m.b.Coerce(v.handle, t.handle)
	if err != nil {
		return nil, m.backend(err, "convert %s to %s", v.typ.name, t.name)
	}
	return m.ValueOf(t, h), nil
}

// convert coerces v to t when the conversion loses nothing and fails with
// code otherwise.
func (m *Module) convert(v *Value, t *Type, code diag.Code, what string) (*Value, error) {
	if EqualsType(v.typ, t) {
		return v, nil
	}
	if !m.CanLosslesslyCast(v.typ, t) {
		return nil, m.errorf(code, "%s: cannot use %s as %s", what, v.typ.name, t.name)
	}
	return m.Coerce(v, t)
}

// PtrVal dereferences a storage slot; other values pass through.
func (m *Module) PtrVal(v *Value) (*Value, error) {
	h, err := m.b.PtrVal(v.handle)
	if err != nil {
		return nil, m.backend(err, "dereference")
	}
	if h == v.handle {
		return v, nil
	}
	return m.Value(h), nil
}

// PtrRef returns the slot a value was loaded from.
func (m *Module) PtrRef(v *Value) (*Value, error) {
	h, err := m.b.PtrRef(v.handle)
	if err != nil {
		return nil, m.errorf(diag.SemaNotAddressable, "%v", err)
	}
	if h == v.handle {
		return v, nil
	}
	return m.Value(h), nil
}

func (m *Module) unary(op bridge.Op, a *Value) (*Value, error) {
	switch {
	case op == bridge.OpNot && !a.typ.IsBool():
		return nil, m.errorf(diag.SemaTypeMismatch, "%s needs a bool operand, got %s", op, a.typ.name)
	case op == bridge.OpFlip && !a.typ.IsInteger():
		return nil, m.errorf(diag.SemaTypeMismatch, "%s needs an integer operand, got %s", op, a.typ.name)
	}
	h, err := m.b.Unary(op, a.handle)
	if err != nil {
		return nil, m.backend(err, "%s", op)
	}
	return m.Value(h), nil
}

func (m *Module) binary(op bridge.Op, a, b *Value) (*Value, error) {
	if !EqualsType(a.typ, b.typ) {
		return nil, m.errorf(diag.SemaTypeMismatch, "%s operands differ: %s and %s", op, a.typ.name, b.typ.name)
	}
	if op.IsLogical() && !a.typ.IsBool() {
		return nil, m.errorf(diag.SemaTypeMismatch, "%s needs bool operands, got %s", op, a.typ.name)
	}
	h, err := m.b.Binary(op, a.handle, b.handle)
	if err != nil {
		return nil, m.backend(err, "%s", op)
	}
	return m.Value(h), nil
}

func (m *Module) Neg(a *Value) (*Value, error)       { return m.unary(bridge.OpNeg, a) }
func (m *Module) Not(a *Value) (*Value, error)       { return m.unary(bridge.OpNot, a) }
func (m *Module) Flip(a *Value) (*Value, error)      { return m.unary(bridge.OpFlip, a) }
func (m *Module) Add(a, b *Value) (*Value, error)    { return m.binary(bridge.OpAdd, a, b) }
func (m *Module) Sub(a, b *Value) (*Value, error)    { return m.binary(bridge.OpSub, a, b) }
func (m *Module) Mul(a, b *Value) (*Value, error)    { return m.binary(bridge.OpMul, a, b) }
func (m *Module) Div(a, b *Value) (*Value, error)    { return m.binary(bridge.OpDiv, a, b) }
func (m *Module) Mod(a, b *Value) (*Value, error)    { return m.binary(bridge.OpMod, a, b) }
func (m *Module) Eq(a, b *Value) (*Value, error)     { return m.binary(bridge.OpEq, a, b) }
func (m *Module) Ne(a, b *Value) (*Value, error)     { return m.binary(bridge.OpNe, a, b) }
func (m *Module) Gt(a, b *Value) (*Value, error)     { return m.binary(bridge.OpGt, a, b) }
func (m *Module) Ge(a, b *Value) (*Value, error)     { return m.binary(bridge.OpGe, a, b) }
func (m *Module) Lt(a, b *Value) (*Value, error)     { return m.binary(bridge.OpLt, a, b) }
func (m *Module) Le(a, b *Value) (*Value, error)     { return m.binary(bridge.OpLe, a, b) }
func (m *Module) And(a, b *Value) (*Value, error)    { return m.binary(bridge.OpAnd, a, b) }
func (m *Module) Or(a, b *Value) (*Value, error)     { return m.binary(bridge.OpOr, a, b) }
func (m *Module) BitAnd(a, b *Value) (*Value, error) { return m.binary(bridge.OpBitAnd, a, b) }
func (m *Module) BitOr(a, b *Value) (*Value, error)  { return m.binary(bridge.OpBitOr, a, b) }
func (m *Module) BitXor(a, b *Value) (*Value, error) { return m.binary(bridge.OpBitXor, a, b) }
func (m *Module) Shl(a, b *Value) (*Value, error)    { return m.binary(bridge.OpShl, a, b) }
func (m *Module) Shr(a, b *Value) (*Value, error)    { return m.binary(bridge.OpShr, a, b) }

// Unary applies op to a. It exists for callers that dispatch on bridge.Op.
func (m *Module) Unary(op bridge.Op, a *Value) (*Value, error) {
	if !op.IsUnary() {
		return nil, m.errorf(diag.SemaError, "%s is not a unary operator", op)
	}
	return m.unary(op, a)
}

// Binary applies op to a and b.
func (m *Module) Binary(op bridge.Op, a, b *Value) (*Value, error) {
	if op.IsUnary() || op == bridge.OpInvalid {
		return nil, m.errorf(diag.SemaError, "%s is not a binary operator", op)
	}
	return m.binary(op, a, b)
}

// Jump terminates the active block with a branch to target.
func (m *Module) Jump(target *Block) (bridge.Handle, error) {
	h, err := m.b.Jump(target.handle)
	if err != nil {
		return bridge.NoHandle, m.backend(err, "jump to %s", target.name)
	}
	return h, nil
}

// JumpCond terminates the active block with a two-way branch on cond.
func (m *Module) JumpCond(cond *Value, ifTrue, ifFalse *Block) (bridge.Handle, error) {
	if !cond.typ.IsBool() {
		return bridge.NoHandle, m.errorf(diag.SemaTypeMismatch, "condition must be bool, got %s", cond.typ.name)
	}
	h, err := m.b.JumpCond(cond.handle, ifTrue.handle, ifFalse.handle)
	if err != nil {
		return bridge.NoHandle, m.backend(err, "conditional jump")
	}
	return h, nil
}

// Phi merges values arriving from predecessor blocks.
func (m *Module) Phi(t *Type, incomings []Incoming) (*Value, error) {
	edges := make([]bridge.Incoming, 0, len(incomings))
	for _, in := range incomings {
		if !EqualsType(in.Value.typ, t) {
			return nil, m.errorf(diag.SemaTypeMismatch, "phi of %s gets %s from %s", t.name, in.Value.typ.name, in.Block.name)
		}
		edges = append(edges, bridge.Incoming{Value: in.Value.handle, Block: in.Block.handle})
	}
	h, err := m.b.Phi(t.handle, edges)
	if err != nil {
		return nil, m.backend(err, "phi")
	}
	return m.ValueOf(t, h), nil
}

// Call invokes fn. Fixed arguments are widened to the parameter types when
// the conversion is lossless.
func (m *Module) Call(fn *Value, args []*Value) (*Value, error) {
	ft, err := m.funcType(fn)
	if err != nil {
		return nil, err
	}
	count := m.b.FuncArgCount(ft.handle)
	n, err := safecast.Conv[uint32](len(args))
	if err != nil {
		return nil, m.errorf(diag.SemaArgumentCount, "too many arguments: %v", err)
	}
	if n < count || (!m.b.FuncVariadic(ft.handle) && n != count) {
		return nil, m.errorf(diag.SemaArgumentCount, "call expects %d arguments, got %d", count, n)
	}
	handles := make([]bridge.Handle, 0, len(args))
	for i := uint32(0); i < n; i++ {
		a := args[i]
		if i < count {
			want := m.Type(m.b.FuncArgType(ft.handle, i))
			conv, err := m.convert(a, want, diag.SemaTypeMismatch, fmt.Sprintf("argument %d", i))
			if err != nil {
				return nil, err
			}
			a = conv
		}
		handles = append(handles, a.handle)
	}
	h, err := m.b.Call(fn.handle, handles)
	if err != nil {
		return nil, m.backend(err, "call")
	}
	return m.ValueOf(m.Type(m.b.FuncRetType(ft.handle)), h), nil
}

// CallNamed resolves name through the symbol tables and calls it.
func (m *Module) CallNamed(name string, args []*Value) (*Value, error) {
	sym := m.ValueSymbol(name, true)
	if sym == nil {
		return nil, m.errorf(diag.SemaUnresolvedSymbol, "unknown function %q", name)
	}
	if sym.Value == nil {
		return nil, m.errorf(diag.SemaNotCallable, "%q has no value", name)
	}
	fn, err := m.PtrVal(sym.Value)
	if err != nil {
		return nil, err
	}
	return m.Call(fn, args)
}

// Ret terminates the active block with a return. A nil v returns void.
func (m *Module) Ret(v *Value) (bridge.Handle, error) {
	h := bridge.NoHandle
	if v != nil {
		h = v.handle
	}
	ins, err := m.b.Ret(h)
	if err != nil {
		return bridge.NoHandle, m.backend(err, "return")
	}
	return ins, nil
}
