package llvm

import (
	"fmt"
	"strconv"

	"fortio.org/safecast"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"elang/internal/bridge"
)

// internConst returns the canonical handle of a constant, keyed by its type
// handle and literal spelling.
func (b *Bridge) internConst(c constant.Constant) bridge.Handle {
	th, err := b.handleOfType(c.Type())
	if err != nil {
		return b.handleForValue(c)
	}
	key := strconv.FormatUint(uint64(th), 10) + ":" + c.Ident()
	if h, ok := b.constIndex[key]; ok {
		return h
	}
	h := b.handleForValue(c)
	b.constIndex[key] = h
	return h
}

// Int returns an integer constant of the given bit width.
func (b *Bridge) Int(v uint64, bits uint32) (bridge.Handle, error) {
	var t *types.IntType
	switch bits {
	case 1:
		return b.BoolConst(v != 0), nil
	case 8:
		t = types.I8
	case 16:
		t = types.I16
	case 32:
		t = types.I32
	case 64:
		t = types.I64
	default:
		return bridge.NoHandle, fmt.Errorf("unsupported integer width %d", bits)
	}
	return b.internConst(constant.NewInt(t, int64(v))), nil
}

// Float returns an f64 constant.
func (b *Bridge) Float(v float64) bridge.Handle {
	return b.internConst(constant.NewFloat(types.Double, v))
}

// BoolConst returns the i1 constant for v.
func (b *Bridge) BoolConst(v bool) bridge.Handle {
	return b.internConst(constant.NewBool(v))
}

// String stores s as a NUL-terminated private global of module and returns a
// bytes-typed pointer to its first character.
func (b *Bridge) String(module bridge.Handle, s string) (bridge.Handle, error) {
	ms, err := b.moduleOf(module)
	if err != nil {
		return bridge.NoHandle, err
	}
	if h, ok := ms.strings[s]; ok {
		return h, nil
	}
	data := constant.NewCharArrayFromString(s + "\x00")
	g := ms.m.NewGlobalDef(ms.uniqueGlobalName(".str"), data)
	g.Immutable = true
	zero := constant.NewInt(types.I64, 0)
	ptr := constant.NewGetElementPtr(data.Typ, g, zero, zero)
	h := b.handleForValue(ptr)
	ms.strings[s] = h
	return h, nil
}

// DeclareFunc declares (or returns the existing) function name of type typ in
// module.
func (b *Bridge) DeclareFunc(module bridge.Handle, name string, typ bridge.Handle) (bridge.Handle, error) {
	ms, err := b.moduleOf(module)
	if err != nil {
		return bridge.NoHandle, err
	}
	ft, err := b.funcTypeOf(typ)
	if err != nil {
		return bridge.NoHandle, err
	}
	if f, ok := ms.funcs[name]; ok {
		if existing, err := b.handleOfType(f.Sig); err != nil || existing != typ {
			return bridge.NoHandle, fmt.Errorf("function %q redeclared with a different signature", name)
		}
		return b.handleForValue(f), nil
	}
	params := make([]*ir.Param, 0, len(ft.Params))
	for _, pt := range ft.Params {
		params = append(params, ir.NewParam("", pt))
	}
	f := ms.m.NewFunc(name, ft.RetType, params...)
	f.Sig.Variadic = ft.Variadic
	ms.funcs[name] = f
	return b.handleForValue(f), nil
}

func (b *Bridge) funcTypeOf(typ bridge.Handle) (*types.FuncType, error) {
	t, _, err := b.typeOf(typ)
	if err != nil {
		return nil, err
	}
	if pt, ok := t.(*types.PointerType); ok {
		t = pt.ElemType
	}
	ft, ok := t.(*types.FuncType)
	if !ok {
		return nil, fmt.Errorf("%s is not a function type", b.TypeName(typ))
	}
	return ft, nil
}

// ValueType returns the type handle of a value, or NoHandle when unknown.
func (b *Bridge) ValueType(v bridge.Handle) bridge.Handle {
	val, err := b.valueOf(v)
	if err != nil {
		return bridge.NoHandle
	}
	var t types.Type
	switch val := val.(type) {
	case *ir.Func:
		t = val.Sig
	case *ir.Block:
		return b.prims[primLabel]
	default:
		t = val.Type()
	}
	h, err := b.handleOfType(t)
	if err != nil {
		return bridge.NoHandle
	}
	return h
}

// SetValueName names a local value or function. Local names are made unique
// inside their function.
func (b *Bridge) SetValueName(v bridge.Handle, name string) {
	val, err := b.valueOf(v)
	if err != nil {
		return
	}
	named, ok := val.(value.Named)
	if !ok {
		return
	}
	if f := b.funcOf(val); f != nil {
		name = b.localName(f, name)
	}
	named.SetName(name)
}

func (b *Bridge) FuncRetType(fnType bridge.Handle) bridge.Handle {
	ft, err := b.funcTypeOf(fnType)
	if err != nil {
		return bridge.NoHandle
	}
	h, err := b.handleOfType(ft.RetType)
	if err != nil {
		return bridge.NoHandle
	}
	return h
}

// FuncVariadic reports whether the function type accepts extra arguments.
func (b *Bridge) FuncVariadic(fnType bridge.Handle) bool {
	ft, err := b.funcTypeOf(fnType)
	return err == nil && ft.Variadic
}

func (b *Bridge) FuncArgCount(fnType bridge.Handle) uint32 {
	ft, err := b.funcTypeOf(fnType)
	if err != nil {
		return 0
	}
	n, err := safecast.Conv[uint32](len(ft.Params))
	if err != nil {
		return 0
	}
	return n
}

func (b *Bridge) FuncArgType(fnType bridge.Handle, index uint32) bridge.Handle {
	ft, err := b.funcTypeOf(fnType)
	if err != nil || int(index) >= len(ft.Params) {
		return bridge.NoHandle
	}
	h, err := b.handleOfType(ft.Params[index])
	if err != nil {
		return bridge.NoHandle
	}
	return h
}

// FuncArg returns the index-th parameter of a function value.
func (b *Bridge) FuncArg(fn bridge.Handle, index uint32) (bridge.Handle, error) {
	val, err := b.valueOf(fn)
	if err != nil {
		return bridge.NoHandle, err
	}
	f, ok := val.(*ir.Func)
	if !ok {
		return bridge.NoHandle, fmt.Errorf("value %d is not a function", fn)
	}
	if int(index) >= len(f.Params) {
		return bridge.NoHandle, fmt.Errorf("function %s has no parameter %d", f.Name(), index)
	}
	p := f.Params[index]
	b.owner[p] = f
	return b.handleForValue(p), nil
}

func (b *Bridge) funcOf(v value.Value) *ir.Func {
	if blk, ok := v.(*ir.Block); ok {
		return blk.Parent
	}
	return b.owner[v]
}
