package ir

import "elang/internal/bridge"

// Value wraps a backend value handle. Like Type, it is canonical per module.
type Value struct {
	module *Module
	typ    *Type
	handle bridge.Handle
}

func (v *Value) Handle() bridge.Handle { return v.handle }
func (v *Value) Type() *Type           { return v.typ }
func (v *Value) Module() *Module       { return v.module }

// SetName names the value in the backend output.
func (v *Value) SetName(name string) {
	v.module.b.SetValueName(v.handle, name)
}

func (v *Value) String() string {
	return "value#" + v.typ.name
}

// Incoming is one phi edge.
type Incoming struct {
	Value *Value
	Block *Block
}

// Block wraps a backend basic block.
type Block struct {
	module *Module
	handle bridge.Handle
	name   string
}

func (b *Block) Handle() bridge.Handle { return b.handle }
func (b *Block) Name() string          { return b.name }
