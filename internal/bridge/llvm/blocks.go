package llvm

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"elang/internal/bridge"
)

// CreateBlock appends a new basic block to fn. The name is made unique inside
// the function.
func (b *Bridge) CreateBlock(fn bridge.Handle, name string) (bridge.Handle, error) {
	val, err := b.valueOf(fn)
	if err != nil {
		return bridge.NoHandle, err
	}
	f, ok := val.(*ir.Func)
	if !ok {
		return bridge.NoHandle, fmt.Errorf("value %d is not a function", fn)
	}
	if ms, ok := b.moduleIndex[f.Parent]; ok && ms.dropped {
		return bridge.NoHandle, fmt.Errorf("module %q was dropped", ms.name)
	}
	blk := f.NewBlock(b.localName(f, name))
	return b.handleForBlock(blk), nil
}

func (b *Bridge) ActiveBlock() bridge.Handle {
	if b.active == nil {
		return bridge.NoHandle
	}
	return b.handleForBlock(b.active)
}

// SetActiveBlock moves the insertion cursor. NoHandle clears it.
func (b *Bridge) SetActiveBlock(block bridge.Handle) error {
	if block == bridge.NoHandle {
		b.active = nil
		return nil
	}
	blk, err := b.blockOf(block)
	if err != nil {
		return err
	}
	b.active = blk
	return nil
}

// BlockTail returns the last instruction of block, the terminator when there
// is one, or NoHandle for an empty block.
func (b *Bridge) BlockTail(block bridge.Handle) bridge.Handle {
	blk, err := b.blockOf(block)
	if err != nil {
		return bridge.NoHandle
	}
	if blk.Term != nil {
		return b.handleForInst(blk.Term)
	}
	if n := len(blk.Insts); n > 0 {
		return b.handleForInst(blk.Insts[n-1])
	}
	return bridge.NoHandle
}

// IsTerminator reports whether ins is a jump, conditional jump or return.
func (b *Bridge) IsTerminator(ins bridge.Handle) bool {
	e := b.get(ins)
	if e == nil {
		return false
	}
	var x any
	switch e.kind {
	case entryInst:
		x = e.ins
	case entryValue:
		x = e.val
	default:
		return false
	}
	_, ok := x.(ir.Terminator)
	return ok
}

// cursor returns the active block, refusing emission once it is terminated.
func (b *Bridge) cursor() (*ir.Block, error) {
	blk := b.active
	if blk == nil {
		return nil, ErrNoActiveBlock
	}
	if blk.Term != nil {
		return nil, b.violate(blk, fmt.Errorf("%w: %s", ErrTerminated, b.describeBlock(blk)))
	}
	return blk, nil
}

func (b *Bridge) describeBlock(blk *ir.Block) string {
	if blk.Parent == nil {
		return blockLabel(blk, -1)
	}
	for i, other := range blk.Parent.Blocks {
		if other == blk {
			return blk.Parent.Name() + "/" + blockLabel(blk, i)
		}
	}
	return blk.Parent.Name() + "/" + blockLabel(blk, -1)
}

// local registers a freshly emitted value as owned by the active function.
func (b *Bridge) local(blk *ir.Block, v value.Value) bridge.Handle {
	b.owner[v] = blk.Parent
	return b.handleForValue(v)
}

// asBlock accepts branch targets and phi predecessors, which llir models as
// plain values.
func asBlock(v value.Value) *ir.Block {
	blk, _ := v.(*ir.Block)
	return blk
}
