package bridge

import "fmt"

// Kind classifies a backend type handle.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindI8
	KindI16
	KindI32
	KindI64
	KindF32
	KindF64
	KindBool
	KindBytes
	KindPointer
	KindFunc
	KindArray
	KindStruct
	KindLabel
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindI8:
		return "i8"
	case KindI16:
		return "i16"
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	case KindPointer:
		return "pointer"
	case KindFunc:
		return "func"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindLabel:
		return "label"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// IsInteger reports whether the kind is a signed integer kind.
func (k Kind) IsInteger() bool {
	return k == KindI8 || k == KindI16 || k == KindI32 || k == KindI64
}

// IsFloat reports whether the kind is a floating-point kind.
func (k Kind) IsFloat() bool { return k == KindF32 || k == KindF64 }

// IsPointer reports whether values of the kind are addresses.
func (k Kind) IsPointer() bool { return k == KindPointer || k == KindBytes }

// Op enumerates the arithmetic, comparison, logical and bitwise primitives.
type Op uint8

const (
	OpInvalid Op = iota
	OpNeg
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpNot
	OpAnd
	OpOr
	OpFlip
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
)

var opNames = [...]string{
	OpInvalid: "invalid",
	OpNeg:     "neg",
	OpAdd:     "add",
	OpSub:     "sub",
	OpMul:     "mul",
	OpDiv:     "div",
	OpMod:     "mod",
	OpEq:      "eq",
	OpNe:      "ne",
	OpGt:      "gt",
	OpGe:      "ge",
	OpLt:      "lt",
	OpLe:      "le",
	OpNot:     "not",
	OpAnd:     "and",
	OpOr:      "or",
	OpFlip:    "flip",
	OpBitAnd:  "bitand",
	OpBitOr:   "bitor",
	OpBitXor:  "bitxor",
	OpShl:     "shl",
	OpShr:     "shr",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", op)
}

// IsComparison reports whether the op yields a bool from two operands of the
// same type.
func (op Op) IsComparison() bool { return op >= OpEq && op <= OpLe }

// IsLogical reports whether the op works on bool operands only.
func (op Op) IsLogical() bool { return op == OpNot || op == OpAnd || op == OpOr }

// IsUnary reports whether the op takes a single operand.
func (op Op) IsUnary() bool { return op == OpNeg || op == OpNot || op == OpFlip }
