package ir

import (
	"elang/internal/bridge"
	"elang/internal/diag"
)

// Prim enumerates the primitive types a module memoizes.
type Prim uint8

const (
	PrimVoid Prim = iota
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimF32
	PrimF64
	PrimBool
	PrimBytes
	primCount
)

// Type wraps a backend type handle. A module holds exactly one Type per
// handle, so pointer equality is type equality inside one module.
type Type struct {
	module *Module
	handle bridge.Handle
	name   string
	kind   bridge.Kind
	st     *Struct
	elem   *Type // pointee, for pointer types built through Module.Pointer
	ptr    *Type
}

func (t *Type) Handle() bridge.Handle { return t.handle }
func (t *Type) Name() string          { return t.name }
func (t *Type) Kind() bridge.Kind     { return t.kind }
func (t *Type) Module() *Module       { return t.module }
func (t *Type) String() string        { return t.name }

func (t *Type) IsVoid() bool    { return t.kind == bridge.KindVoid }
func (t *Type) IsI8() bool      { return t.kind == bridge.KindI8 }
func (t *Type) IsI16() bool     { return t.kind == bridge.KindI16 }
func (t *Type) IsI32() bool     { return t.kind == bridge.KindI32 }
func (t *Type) IsI64() bool     { return t.kind == bridge.KindI64 }
func (t *Type) IsF32() bool     { return t.kind == bridge.KindF32 }
func (t *Type) IsF64() bool     { return t.kind == bridge.KindF64 }
func (t *Type) IsBool() bool    { return t.kind == bridge.KindBool }
func (t *Type) IsBytes() bool   { return t.kind == bridge.KindBytes }
func (t *Type) IsFunc() bool    { return t.kind == bridge.KindFunc }
func (t *Type) IsArray() bool   { return t.kind == bridge.KindArray }
func (t *Type) IsStruct() bool  { return t.kind == bridge.KindStruct }
func (t *Type) IsPointer() bool { return t.kind.IsPointer() }
func (t *Type) IsInteger() bool { return t.kind.IsInteger() }
func (t *Type) IsFloat() bool   { return t.kind.IsFloat() }

// Elem returns the pointee of a pointer type, or nil when unknown.
func (t *Type) Elem() *Type {
	if t.kind == bridge.KindBytes && t.elem == nil {
		return t.module.I8()
	}
	return t.elem
}

// Struct returns the struct view of t, or nil when t is not a struct.
func (t *Type) Struct() *Struct { return t.st }

// PointerType returns the memoized pointer-to-t type.
func (t *Type) PointerType() (*Type, error) {
	if t.ptr != nil {
		return t.ptr, nil
	}
	p, err := t.module.Pointer(t)
	if err != nil {
		return nil, err
	}
	t.ptr = p
	return p, nil
}

// Member is one struct field. Value is the optional default, which for
// function members is the implementing function.
type Member struct {
	Name  string
	Type  *Type
	Value *Value
}

// Struct is the member view of a struct type. Members are append-only.
type Struct struct {
	*Type
	members []*Member
	index   map[string]int
}

func newStruct(t *Type) *Struct {
	st := &Struct{Type: t, index: make(map[string]int)}
	t.st = st
	return st
}

// Members returns the members in layout order.
func (s *Struct) Members() []*Member { return s.members }

// Len reports the number of members.
func (s *Struct) Len() int { return len(s.members) }

// Member returns the member called name, or nil.
func (s *Struct) Member(name string) *Member {
	if i, ok := s.index[name]; ok {
		return s.members[i]
	}
	return nil
}

// MemberAt returns the i-th member, or nil when out of range.
func (s *Struct) MemberAt(i int) *Member {
	if i < 0 || i >= len(s.members) {
		return nil
	}
	return s.members[i]
}

// MemberIndex returns the layout index of name.
func (s *Struct) MemberIndex(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// AddMember appends a member and updates the backend body. When t is nil the
// type is taken from v.
func (s *Struct) AddMember(name string, t *Type, v *Value) (*Member, error) {
	if _, ok := s.index[name]; ok {
		return nil, diag.Errorf(diag.SemaDuplicateMember, "struct %s already has a member %q", s.name, name)
	}
	if t == nil {
		if v == nil {
			return nil, diag.Errorf(diag.SemaMemberWithoutType, "member %q of %s needs a type or a value", name, s.name)
		}
		t = v.Type()
	}
	if s.holds(t, make(map[bridge.Handle]bool)) {
		return nil, diag.Errorf(diag.SemaError, "member %q of %s contains %s by value", name, s.name, s.name)
	}
	mem := &Member{Name: name, Type: t, Value: v}
	s.index[name] = len(s.members)
	s.members = append(s.members, mem)
	if err := s.syncBody(); err != nil {
		s.members = s.members[:len(s.members)-1]
		delete(s.index, name)
		return nil, err
	}
	return mem, nil
}

// holds reports whether a value of type t embeds s, directly or through the
// by-value members of nested structs. Pointers end the walk.
func (s *Struct) holds(t *Type, seen map[bridge.Handle]bool) bool {
	st := t.Struct()
	if st == nil {
		return false
	}
	if st.handle == s.handle {
		return true
	}
	if seen[st.handle] {
		return false
	}
	seen[st.handle] = true
	for _, m := range st.members {
		if s.holds(m.Type, seen) {
			return true
		}
	}
	return false
}

func (s *Struct) syncBody() error {
	fields := make([]bridge.Handle, 0, len(s.members))
	for _, m := range s.members {
		fields = append(fields, m.Type.handle)
	}
	if err := s.module.b.SetStructBody(s.handle, fields); err != nil {
		return diag.Wrap(diag.BackendError, err, "struct %s", s.name)
	}
	return nil
}

// Extends resolves base by name through the module's symbol lookup and
// flattens it into s.
func (s *Struct) Extends(name string) error {
	sym := s.module.TypeSymbol(name, true)
	if sym == nil || sym.Type == nil {
		return diag.Errorf(diag.SemaUnresolvedType, "base type %q of %s is not defined", name, s.name)
	}
	base := sym.Type.Struct()
	if base == nil {
		return diag.Errorf(diag.SemaNotAStruct, "base type %q of %s is not a struct", name, s.name)
	}
	return s.ExtendsStruct(base)
}

// ExtendsStruct inserts a "base" member typed as base, then copies every
// member of base except its own "base".
func (s *Struct) ExtendsStruct(base *Struct) error {
	if base == nil {
		return diag.Errorf(diag.SemaNotAStruct, "%s extends a non-struct type", s.name)
	}
	if base.handle == s.handle {
		return diag.Errorf(diag.SemaError, "struct %s cannot extend itself", s.name)
	}
	if _, err := s.AddMember("base", base.Type, nil); err != nil {
		return err
	}
	for _, m := range base.members {
		if m.Name == "base" {
			continue
		}
		if _, err := s.AddMember(m.Name, m.Type, m.Value); err != nil {
			return err
		}
	}
	return nil
}
