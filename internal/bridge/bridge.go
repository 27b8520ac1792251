// Package bridge declares the primitive backend surface the IR core is written
// against. A backend hands out opaque handles for types, values, blocks and
// modules; the core never looks inside them and relies only on handle equality.
package bridge

// Handle identifies one backend object (type, value, block, instruction or
// module). Handles for structurally equal types must be equal.
type Handle uint32

// NoHandle marks the absence of a backend object.
const NoHandle Handle = 0

// IsValid reports whether the handle refers to a backend object.
func (h Handle) IsValid() bool { return h != NoHandle }

// Incoming is one phi edge: the value flowing in and the predecessor block it
// arrives from.
type Incoming struct {
	Value Handle
	Block Handle
}

// Bridge is the primitive operation set every backend provides. Fallible
// operations return an error instead of a null handle.
type Bridge interface {
	// Module lifecycle.
	MakeModule(name string) (Handle, error)
	DropModule(module Handle)
	DumpModule(module Handle) string
	JIT(module Handle) (int64, error)
	AOT(module Handle) (string, error)

	// Type constructors.
	Void() Handle
	I8() Handle
	I16() Handle
	I32() Handle
	I64() Handle
	F32() Handle
	F64() Handle
	Bool() Handle
	Bytes() Handle
	Pointer(elem Handle) (Handle, error)
	Func(ret Handle, params []Handle, variadic bool) (Handle, error)
	Struct(module Handle, name string) (Handle, error)
	SetStructBody(typ Handle, fields []Handle) error

	// Type introspection.
	TypeKind(typ Handle) Kind
	TypeName(typ Handle) string
	TypeSize(typ Handle) (Handle, error)
	CanLosslesslyCast(from, to Handle) bool
	DefaultValue(typ Handle) (Handle, error)

	// Values.
	ValueType(v Handle) Handle
	SetValueName(v Handle, name string)
	Int(v uint64, bits uint32) (Handle, error)
	Float(v float64) Handle
	BoolConst(v bool) Handle
	String(module Handle, s string) (Handle, error)
	DeclareFunc(module Handle, name string, typ Handle) (Handle, error)
	FuncRetType(fnType Handle) Handle
	FuncArgCount(fnType Handle) uint32
	FuncArgType(fnType Handle, index uint32) Handle
	FuncVariadic(fnType Handle) bool
	FuncArg(fn Handle, index uint32) (Handle, error)

	// Blocks.
	CreateBlock(fn Handle, name string) (Handle, error)
	ActiveBlock() Handle
	SetActiveBlock(block Handle) error
	BlockTail(block Handle) Handle
	IsTerminator(ins Handle) bool

	// Instructions.
	Alloc(typ Handle, name string) (Handle, error)
	Load(ptr Handle) (Handle, error)
	Store(ptr, val Handle) (Handle, error)
	Bitcast(v, typ Handle) (Handle, error)
	Coerce(v, typ Handle) (Handle, error)
	PtrVal(v Handle) (Handle, error)
	PtrRef(v Handle) (Handle, error)
	Unary(op Op, a Handle) (Handle, error)
	Binary(op Op, a, b Handle) (Handle, error)
	Jump(target Handle) (Handle, error)
	JumpCond(cond, ifTrue, ifFalse Handle) (Handle, error)
	Phi(typ Handle, incomings []Incoming) (Handle, error)
	Call(fn Handle, args []Handle) (Handle, error)
	Ret(v Handle) (Handle, error)
}

// Verifier is implemented by backends that can check the block discipline
// of a finished module.
type Verifier interface {
	Verify(module Handle) error
}
