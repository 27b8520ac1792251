package ir

import (
	"elang/internal/bridge"
	"elang/internal/diag"
)

func (m *Module) block(h bridge.Handle, name string) *Block {
	if !h.IsValid() {
		return nil
	}
	if blk, ok := m.blocks[h]; ok {
		return blk
	}
	blk := &Block{module: m, handle: h, name: name}
	m.blocks[h] = blk
	return blk
}

// CreateBlock appends a block to the function enclosing the current scope.
func (m *Module) CreateBlock(name string) (*Block, error) {
	fn := m.EnclosingFunc()
	if fn == nil {
		return nil, m.errorf(diag.SemaNoFunction, "block %q outside of a function", name)
	}
	return m.CreateBlockIn(fn, name)
}

// CreateBlockIn appends a block to fn.
func (m *Module) CreateBlockIn(fn *Value, name string) (*Block, error) {
	h, err := m.b.CreateBlock(fn.handle, name)
	if err != nil {
		return nil, m.backend(err, "create block %q", name)
	}
	return m.block(h, name), nil
}

// ActiveBlock returns the block instructions are appended to, or nil.
func (m *Module) ActiveBlock() *Block {
	return m.block(m.b.ActiveBlock(), "")
}

// SetActiveBlock moves the cursor to blk. A nil blk clears it.
func (m *Module) SetActiveBlock(blk *Block) error {
	h := bridge.NoHandle
	if blk != nil {
		h = blk.handle
	}
	return m.backend(m.b.SetActiveBlock(h), "activate block")
}

// BlockTail returns the last instruction of blk (the active block when nil).
func (m *Module) BlockTail(blk *Block) bridge.Handle {
	if blk == nil {
		blk = m.ActiveBlock()
		if blk == nil {
			return bridge.NoHandle
		}
	}
	return m.b.BlockTail(blk.handle)
}

// IsTerminator reports whether ins transfers control.
func (m *Module) IsTerminator(ins bridge.Handle) bool {
	return ins.IsValid() && m.b.IsTerminator(ins)
}

// IsTerminated reports whether blk (the active block when nil) already ends
// in a terminator. No block at all counts as terminated: nothing can be
// appended to it.
func (m *Module) IsTerminated(blk *Block) bool {
	if blk == nil && m.ActiveBlock() == nil {
		return true
	}
	return m.IsTerminator(m.BlockTail(blk))
}

// cursor returns the active block or a coded error when none is set.
func (m *Module) cursor() (*Block, error) {
	blk := m.ActiveBlock()
	if blk == nil {
		return nil, m.errorf(diag.SemaNoActiveBlock, "no active block")
	}
	return blk, nil
}
