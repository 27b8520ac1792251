package llvm

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"

	"elang/internal/bridge"
)

type prim uint8

const (
	primVoid prim = iota
	primI8
	primI16
	primI32
	primI64
	primF32
	primF64
	primBool
	primBytes
	primLabel
	primCount
)

func (b *Bridge) initPrimitives() {
	b.prims[primVoid] = b.internType("void", types.Void, bridge.KindVoid, "void")
	b.prims[primI8] = b.internType("i8", types.I8, bridge.KindI8, "i8")
	b.prims[primI16] = b.internType("i16", types.I16, bridge.KindI16, "i16")
	b.prims[primI32] = b.internType("i32", types.I32, bridge.KindI32, "i32")
	b.prims[primI64] = b.internType("i64", types.I64, bridge.KindI64, "i64")
	b.prims[primF32] = b.internType("f32", types.Float, bridge.KindF32, "f32")
	b.prims[primF64] = b.internType("f64", types.Double, bridge.KindF64, "f64")
	b.prims[primBool] = b.internType("bool", types.I1, bridge.KindBool, "bool")
	b.prims[primLabel] = b.internType("label", types.Label, bridge.KindLabel, "label")
	// bytes is i8*, so Pointer(I8()) resolves to the same handle.
	b.prims[primBytes] = b.internType(pointerKey(b.prims[primI8]), types.I8Ptr, bridge.KindBytes, "bytes")
}

func (b *Bridge) internType(key string, t types.Type, kind bridge.Kind, name string) bridge.Handle {
	if h, ok := b.typeIndex[key]; ok {
		return h
	}
	h := b.push(entry{kind: entryType, typ: t, tkind: kind, name: name})
	b.typeIndex[key] = h
	return h
}

func pointerKey(elem bridge.Handle) string { return "ptr:" + strconv.FormatUint(uint64(elem), 10) }

func funcKey(ret bridge.Handle, params []bridge.Handle, variadic bool) string {
	var sb strings.Builder
	sb.WriteString("fn:")
	sb.WriteString(strconv.FormatUint(uint64(ret), 10))
	sb.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(p), 10))
	}
	if variadic {
		sb.WriteString(",...")
	}
	sb.WriteByte(')')
	return sb.String()
}

func (b *Bridge) Void() bridge.Handle  { return b.prims[primVoid] }
func (b *Bridge) I8() bridge.Handle    { return b.prims[primI8] }
func (b *Bridge) I16() bridge.Handle   { return b.prims[primI16] }
func (b *Bridge) I32() bridge.Handle   { return b.prims[primI32] }
func (b *Bridge) I64() bridge.Handle   { return b.prims[primI64] }
func (b *Bridge) F32() bridge.Handle   { return b.prims[primF32] }
func (b *Bridge) F64() bridge.Handle   { return b.prims[primF64] }
func (b *Bridge) Bool() bridge.Handle  { return b.prims[primBool] }
func (b *Bridge) Bytes() bridge.Handle { return b.prims[primBytes] }

// Pointer returns the canonical pointer type to elem.
func (b *Bridge) Pointer(elem bridge.Handle) (bridge.Handle, error) {
	et, kind, err := b.typeOf(elem)
	if err != nil {
		return bridge.NoHandle, err
	}
	if kind == bridge.KindVoid || kind == bridge.KindLabel {
		return bridge.NoHandle, fmt.Errorf("cannot form a pointer to %s", kind)
	}
	key := pointerKey(elem)
	if h, ok := b.typeIndex[key]; ok {
		return h, nil
	}
	return b.internType(key, types.NewPointer(et), bridge.KindPointer, b.TypeName(elem)+"*"), nil
}

// Func returns the canonical function type.
func (b *Bridge) Func(ret bridge.Handle, params []bridge.Handle, variadic bool) (bridge.Handle, error) {
	rt, _, err := b.typeOf(ret)
	if err != nil {
		return bridge.NoHandle, fmt.Errorf("return type: %w", err)
	}
	key := funcKey(ret, params, variadic)
	if h, ok := b.typeIndex[key]; ok {
		return h, nil
	}
	pts := make([]types.Type, 0, len(params))
	names := make([]string, 0, len(params)+1)
	for i, p := range params {
		pt, kind, err := b.typeOf(p)
		if err != nil {
			return bridge.NoHandle, fmt.Errorf("parameter %d: %w", i, err)
		}
		if kind == bridge.KindVoid {
			return bridge.NoHandle, fmt.Errorf("parameter %d has void type", i)
		}
		pts = append(pts, pt)
		names = append(names, b.TypeName(p))
	}
	if variadic {
		names = append(names, "...")
	}
	ft := types.NewFunc(rt, pts...)
	ft.Variadic = variadic
	name := b.TypeName(ret) + "(" + strings.Join(names, ", ") + ")"
	return b.internType(key, ft, bridge.KindFunc, name), nil
}

// Struct creates a new opaque named struct type owned by module. Each call
// yields a distinct type.
func (b *Bridge) Struct(module bridge.Handle, name string) (bridge.Handle, error) {
	ms, err := b.moduleOf(module)
	if err != nil {
		return bridge.NoHandle, err
	}
	st := types.NewStruct()
	st.Opaque = true
	ms.m.NewTypeDef(ms.uniqueTypeName(name), st)
	h := b.push(entry{kind: entryType, typ: st, tkind: bridge.KindStruct, name: name, mod: ms})
	b.structIndex[st] = h
	return h, nil
}

// SetStructBody replaces the field list of a struct created by Struct.
// Function-typed fields are stored as function pointers.
func (b *Bridge) SetStructBody(typ bridge.Handle, fields []bridge.Handle) error {
	t, kind, err := b.typeOf(typ)
	if err != nil {
		return err
	}
	st, ok := t.(*types.StructType)
	if !ok || kind != bridge.KindStruct {
		return fmt.Errorf("%s is not a struct type", b.TypeName(typ))
	}
	fts := make([]types.Type, 0, len(fields))
	for i, f := range fields {
		ft, fkind, err := b.typeOf(f)
		if err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
		if fkind == bridge.KindFunc {
			ft = types.NewPointer(ft)
		}
		fts = append(fts, ft)
	}
	st.Fields = fts
	st.Opaque = false
	return nil
}

// TypeKind classifies a type handle.
func (b *Bridge) TypeKind(typ bridge.Handle) bridge.Kind {
	_, kind, err := b.typeOf(typ)
	if err != nil {
		return bridge.KindInvalid
	}
	return kind
}

// TypeName returns the display name recorded for a type handle.
func (b *Bridge) TypeName(typ bridge.Handle) string {
	e := b.get(typ)
	if e == nil || e.kind != entryType {
		return "<invalid>"
	}
	return e.name
}

// CanLosslesslyCast reports whether every value of from is representable in to.
func (b *Bridge) CanLosslesslyCast(from, to bridge.Handle) bool {
	if from == to {
		return true
	}
	fk, tk := b.TypeKind(from), b.TypeKind(to)
	switch {
	case fk == bridge.KindBool && tk.IsInteger():
		return true
	case fk.IsInteger() && tk.IsInteger():
		return intBits(fk) < intBits(tk)
	case fk == bridge.KindF32 && tk == bridge.KindF64:
		return true
	case fk.IsInteger() && tk == bridge.KindF32:
		return intBits(fk) <= 16
	case fk.IsInteger() && tk == bridge.KindF64:
		return intBits(fk) <= 32
	case fk == bridge.KindPointer && tk == bridge.KindBytes:
		return true
	}
	return false
}

func intBits(k bridge.Kind) int {
	switch k {
	case bridge.KindBool:
		return 1
	case bridge.KindI8:
		return 8
	case bridge.KindI16:
		return 16
	case bridge.KindI32:
		return 32
	case bridge.KindI64:
		return 64
	}
	return 0
}

// DefaultValue returns the zero constant of a type.
func (b *Bridge) DefaultValue(typ bridge.Handle) (bridge.Handle, error) {
	t, kind, err := b.typeOf(typ)
	if err != nil {
		return bridge.NoHandle, err
	}
	switch {
	case kind.IsInteger():
		bits, err := safecast.Conv[uint32](intBits(kind))
		if err != nil {
			return bridge.NoHandle, err
		}
		return b.Int(0, bits)
	case kind == bridge.KindBool:
		return b.BoolConst(false), nil
	case kind == bridge.KindF32:
		return b.internConst(constant.NewFloat(types.Float, 0)), nil
	case kind == bridge.KindF64:
		return b.Float(0), nil
	case kind.IsPointer():
		return b.internConst(constant.NewNull(t.(*types.PointerType))), nil
	case kind == bridge.KindStruct || kind == bridge.KindArray:
		return b.internConst(constant.NewZeroInitializer(t)), nil
	}
	return bridge.NoHandle, fmt.Errorf("type %s has no default value", b.TypeName(typ))
}

// handleOfType maps an llir type back to its canonical handle.
func (b *Bridge) handleOfType(t types.Type) (bridge.Handle, error) {
	switch t := t.(type) {
	case *types.VoidType:
		return b.prims[primVoid], nil
	case *types.LabelType:
		return b.prims[primLabel], nil
	case *types.IntType:
		switch t.BitSize {
		case 1:
			return b.prims[primBool], nil
		case 8:
			return b.prims[primI8], nil
		case 16:
			return b.prims[primI16], nil
		case 32:
			return b.prims[primI32], nil
		case 64:
			return b.prims[primI64], nil
		}
	case *types.FloatType:
		switch t.Kind {
		case types.FloatKindFloat:
			return b.prims[primF32], nil
		case types.FloatKindDouble:
			return b.prims[primF64], nil
		}
	case *types.PointerType:
		elem, err := b.handleOfType(t.ElemType)
		if err != nil {
			return bridge.NoHandle, err
		}
		return b.Pointer(elem)
	case *types.FuncType:
		ret, err := b.handleOfType(t.RetType)
		if err != nil {
			return bridge.NoHandle, err
		}
		params := make([]bridge.Handle, 0, len(t.Params))
		for _, p := range t.Params {
			ph, err := b.handleOfType(p)
			if err != nil {
				return bridge.NoHandle, err
			}
			params = append(params, ph)
		}
		return b.Func(ret, params, t.Variadic)
	case *types.StructType:
		if h, ok := b.structIndex[t]; ok {
			return h, nil
		}
	case *types.ArrayType:
		elem, err := b.handleOfType(t.ElemType)
		if err != nil {
			return bridge.NoHandle, err
		}
		key := fmt.Sprintf("arr:%d:%d", t.Len, elem)
		return b.internType(key, t, bridge.KindArray, fmt.Sprintf("[%d x %s]", t.Len, b.TypeName(elem))), nil
	}
	return bridge.NoHandle, fmt.Errorf("unsupported llvm type %s", t)
}
