package llvm

import (
	"fmt"

	"fortio.org/safecast"
	"github.com/llir/llvm/ir/types"

	"elang/internal/bridge"
)

// Target names the data layout TypeSize and the JIT assume.
const Target = "x86_64 (System V layout)"

const (
	pointerSize  = 8
	pointerAlign = 8
)

// TypeSize returns the allocation size of typ in bytes as an i64 constant.
func (b *Bridge) TypeSize(typ bridge.Handle) (bridge.Handle, error) {
	t, kind, err := b.typeOf(typ)
	if err != nil {
		return bridge.NoHandle, err
	}
	if kind == bridge.KindFunc {
		return b.Int(pointerSize, 64)
	}
	size, _, err := sizeAlign(t)
	if err != nil {
		return bridge.NoHandle, fmt.Errorf("size of %s: %w", b.TypeName(typ), err)
	}
	u, err := safecast.Conv[uint64](size)
	if err != nil {
		return bridge.NoHandle, err
	}
	return b.Int(u, 64)
}

func sizeAlign(t types.Type) (size, align int64, err error) {
	return layoutOf(t, nil)
}

// layoutOf computes size and alignment. open holds the structs whose layout
// is in progress; meeting one again means the struct contains itself.
func layoutOf(t types.Type, open map[*types.StructType]bool) (size, align int64, err error) {
	switch t := t.(type) {
	case *types.IntType:
		switch {
		case t.BitSize <= 8:
			return 1, 1, nil
		case t.BitSize <= 16:
			return 2, 2, nil
		case t.BitSize <= 32:
			return 4, 4, nil
		default:
			return 8, 8, nil
		}
	case *types.FloatType:
		if t.Kind == types.FloatKindFloat {
			return 4, 4, nil
		}
		return 8, 8, nil
	case *types.PointerType, *types.FuncType:
		return pointerSize, pointerAlign, nil
	case *types.ArrayType:
		es, ea, err := layoutOf(t.ElemType, open)
		if err != nil {
			return 0, 0, err
		}
		n, err := safecast.Conv[int64](t.Len)
		if err != nil {
			return 0, 0, err
		}
		return es * n, ea, nil
	case *types.StructType:
		if t.Opaque {
			return 0, 0, fmt.Errorf("struct %s has no body", t.Name())
		}
		_, size, align, err := structLayoutIn(t, open)
		return size, align, err
	}
	return 0, 0, fmt.Errorf("type %s has no size", t)
}

// structLayout computes field offsets with natural alignment.
func structLayout(t *types.StructType) (offsets []int64, size, align int64, err error) {
	return structLayoutIn(t, nil)
}

func structLayoutIn(t *types.StructType, open map[*types.StructType]bool) (offsets []int64, size, align int64, err error) {
	if open[t] {
		return nil, 0, 0, fmt.Errorf("struct %s contains itself", t.Name())
	}
	if open == nil {
		open = make(map[*types.StructType]bool)
	}
	open[t] = true
	defer delete(open, t)

	align = 1
	offsets = make([]int64, 0, len(t.Fields))
	for _, f := range t.Fields {
		fs, fa, err := layoutOf(f, open)
		if err != nil {
			return nil, 0, 0, err
		}
		size = alignTo(size, fa)
		offsets = append(offsets, size)
		size += fs
		if fa > align {
			align = fa
		}
	}
	return offsets, alignTo(size, align), align, nil
}

func alignTo(n, a int64) int64 {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}
