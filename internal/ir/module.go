package ir

import (
	"elang/internal/bridge"
	"elang/internal/diag"
	"elang/internal/trace"
)

// Module is one compilation unit: a scope tree, the handle-keyed interning
// tables and the cursor state used by the statement builders. A Module is
// not safe for concurrent use.
type Module struct {
	ctx    *Context
	b      bridge.Bridge
	name   string
	handle bridge.Handle

	scopes  *Scopes
	root    ScopeID
	current ScopeID
	imports ScopeID
	exports ScopeID

	deps     map[string]*Module
	depOrder []string

	types  map[bridge.Handle]*Type
	values map[bridge.Handle]*Value
	blocks map[bridge.Handle]*Block
	prims  [primCount]*Type

	breakTarget    *Block
	continueTarget *Block

	tracer trace.Tracer
	span   uint64
}

func newModule(ctx *Context, name string) (*Module, error) {
	h, err := ctx.b.MakeModule(name)
	if err != nil {
		return nil, diag.Wrap(diag.BackendError, err, "create module %q", name)
	}
	m := &Module{
		ctx:    ctx,
		b:      ctx.b,
		name:   name,
		handle: h,
		scopes: NewScopes(0),
		deps:   make(map[string]*Module),
		types:  make(map[bridge.Handle]*Type),
		values: make(map[bridge.Handle]*Value),
		blocks: make(map[bridge.Handle]*Block),
		tracer: ctx.tracer,
		span:   ctx.loading,
	}
	m.root = m.scopes.AddChild(NoScopeID, nil)
	m.imports = m.scopes.AddChild(m.root, nil)
	m.exports = m.scopes.AddChild(m.root, nil)
	m.current = m.root
	return m, nil
}

func (m *Module) Name() string           { return m.name }
func (m *Module) Handle() bridge.Handle  { return m.handle }
func (m *Module) Context() *Context      { return m.ctx }
func (m *Module) Bridge() bridge.Bridge  { return m.b }
func (m *Module) Scopes() *Scopes        { return m.scopes }
func (m *Module) Root() ScopeID          { return m.root }
func (m *Module) Imports() ScopeID       { return m.imports }
func (m *Module) Exports() ScopeID       { return m.exports }
func (m *Module) Dependencies() []string { return m.depOrder }

// TraceSpan is the ID of the load span the module was created under.
func (m *Module) TraceSpan() uint64 { return m.span }

// errorf builds a coded builder error and reports it to the tracer.
func (m *Module) errorf(code diag.Code, format string, args ...any) *diag.Error {
	err := diag.Errorf(code, format, args...)
	trace.EmitError(m.tracer, trace.ScopeNode, m.name, err, m.span)
	return err
}

// backend wraps a bridge failure.
func (m *Module) backend(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	werr := diag.Wrap(diag.BackendError, err, format, args...)
	trace.EmitError(m.tracer, trace.ScopeNode, m.name, werr, m.span)
	return werr
}

// Type returns the canonical Type for h, creating it on first reference.
func (m *Module) Type(h bridge.Handle) *Type {
	if !h.IsValid() {
		return nil
	}
	if t, ok := m.types[h]; ok {
		return t
	}
	t := &Type{module: m, handle: h, name: m.b.TypeName(h), kind: m.b.TypeKind(h)}
	if t.kind == bridge.KindStruct {
		newStruct(t)
	}
	m.types[h] = t
	return t
}

// Value returns the canonical Value for h, typed by the backend.
func (m *Module) Value(h bridge.Handle) *Value {
	if !h.IsValid() {
		return nil
	}
	if v, ok := m.values[h]; ok {
		return v
	}
	return m.ValueOf(m.Type(m.b.ValueType(h)), h)
}

// ValueOf returns the canonical Value for h, using t on first reference.
func (m *Module) ValueOf(t *Type, h bridge.Handle) *Value {
	if !h.IsValid() {
		return nil
	}
	if v, ok := m.values[h]; ok {
		return v
	}
	v := &Value{module: m, typ: t, handle: h}
	m.values[h] = v
	return v
}

// adoptType canonicalizes a Type owned by another module into m, carrying
// over struct members and pointee information.
func (m *Module) adoptType(t *Type) *Type {
	if t == nil || t.module == m {
		return t
	}
	lt := m.Type(t.handle)
	if t.elem != nil && lt.elem == nil {
		lt.elem = m.adoptType(t.elem)
	}
	if t.st != nil && lt.st != nil && len(lt.st.members) == 0 {
		for _, mem := range t.st.members {
			lt.st.index[mem.Name] = len(lt.st.members)
			lt.st.members = append(lt.st.members, &Member{
				Name:  mem.Name,
				Type:  m.adoptType(mem.Type),
				Value: m.adoptValue(mem.Value),
			})
		}
	}
	return lt
}

func (m *Module) adoptValue(v *Value) *Value {
	if v == nil || v.module == m {
		return v
	}
	return m.ValueOf(m.adoptType(v.typ), v.handle)
}

func (m *Module) prim(p Prim) *Type {
	if t := m.prims[p]; t != nil {
		return t
	}
	var h bridge.Handle
	switch p {
	case PrimVoid:
		h = m.b.Void()
	case PrimI8:
		h = m.b.I8()
	case PrimI16:
		h = m.b.I16()
	case PrimI32:
		h = m.b.I32()
	case PrimI64:
		h = m.b.I64()
	case PrimF32:
		h = m.b.F32()
	case PrimF64:
		h = m.b.F64()
	case PrimBool:
		h = m.b.Bool()
	case PrimBytes:
		h = m.b.Bytes()
	}
	t := m.Type(h)
	m.prims[p] = t
	return t
}

func (m *Module) Void() *Type  { return m.prim(PrimVoid) }
func (m *Module) I8() *Type    { return m.prim(PrimI8) }
func (m *Module) I16() *Type   { return m.prim(PrimI16) }
func (m *Module) I32() *Type   { return m.prim(PrimI32) }
func (m *Module) I64() *Type   { return m.prim(PrimI64) }
func (m *Module) F32() *Type   { return m.prim(PrimF32) }
func (m *Module) F64() *Type   { return m.prim(PrimF64) }
func (m *Module) Bool() *Type  { return m.prim(PrimBool) }
func (m *Module) Bytes() *Type { return m.prim(PrimBytes) }

// Prim returns the memoized primitive type p.
func (m *Module) Prim(p Prim) *Type {
	if p >= primCount {
		return nil
	}
	return m.prim(p)
}

// Func returns the function type ret(args...).
func (m *Module) Func(ret *Type, args []*Type, variadic bool) (*Type, error) {
	if ret == nil {
		ret = m.Void()
	}
	params := make([]bridge.Handle, 0, len(args))
	for _, a := range args {
		params = append(params, a.handle)
	}
	h, err := m.b.Func(ret.handle, params, variadic)
	if err != nil {
		return nil, m.backend(err, "function type")
	}
	return m.Type(h), nil
}

// Pointer returns the pointer-to-of type and records its pointee.
func (m *Module) Pointer(of *Type) (*Type, error) {
	h, err := m.b.Pointer(of.handle)
	if err != nil {
		return nil, m.backend(err, "pointer to %s", of.name)
	}
	p := m.Type(h)
	if p.elem == nil {
		p.elem = m.adoptType(of)
	}
	return p, nil
}

// Struct creates a new named struct type with an empty body.
func (m *Module) Struct(name string) (*Struct, error) {
	h, err := m.b.Struct(m.handle, name)
	if err != nil {
		return nil, m.backend(err, "struct %s", name)
	}
	if err := m.b.SetStructBody(h, nil); err != nil {
		return nil, m.backend(err, "struct %s", name)
	}
	t := m.Type(h)
	t.name = name
	return t.Struct(), nil
}

// Int returns an integer constant; bits selects i8, i16, i32 or i64.
func (m *Module) Int(v uint64, bits uint32) (*Value, error) {
	h, err := m.b.Int(v, bits)
	if err != nil {
		return nil, m.backend(err, "integer constant")
	}
	return m.Value(h), nil
}

// Float returns an f64 constant.
func (m *Module) Float(v float64) *Value {
	return m.Value(m.b.Float(v))
}

// BoolValue returns a bool constant.
func (m *Module) BoolValue(v bool) *Value {
	return m.Value(m.b.BoolConst(v))
}

// String returns a NUL-terminated bytes constant.
func (m *Module) String(s string) (*Value, error) {
	h, err := m.b.String(m.handle, s)
	if err != nil {
		return nil, m.backend(err, "string constant")
	}
	return m.ValueOf(m.Bytes(), h), nil
}

// DeclareFunc declares (or returns the existing) function name with the
// given signature in this module.
func (m *Module) DeclareFunc(name string, ret *Type, args []*Type, variadic bool) (*Value, error) {
	ft, err := m.Func(ret, args, variadic)
	if err != nil {
		return nil, err
	}
	h, err := m.b.DeclareFunc(m.handle, name, ft.handle)
	if err != nil {
		return nil, m.errorf(diag.SemaRedefinition, "function %s: %v", name, err)
	}
	return m.ValueOf(ft, h), nil
}

func (m *Module) funcType(fn *Value) (*Type, error) {
	if fn == nil {
		return nil, m.errorf(diag.SemaNoFunction, "no function")
	}
	t := fn.typ
	if t.IsPointer() && t.elem != nil && t.elem.IsFunc() {
		t = t.elem
	}
	if !t.IsFunc() {
		return nil, m.errorf(diag.SemaNotCallable, "value of type %s is not a function", fn.typ.name)
	}
	return t, nil
}

// FuncRetType returns the declared return type of fn.
func (m *Module) FuncRetType(fn *Value) *Type {
	ft, err := m.funcType(fn)
	if err != nil {
		return nil
	}
	return m.Type(m.b.FuncRetType(ft.handle))
}

// FuncArgCount returns the number of fixed parameters of fn.
func (m *Module) FuncArgCount(fn *Value) uint32 {
	ft, err := m.funcType(fn)
	if err != nil {
		return 0
	}
	return m.b.FuncArgCount(ft.handle)
}

// FuncArgType returns the type of parameter i of fn.
func (m *Module) FuncArgType(fn *Value, i uint32) *Type {
	ft, err := m.funcType(fn)
	if err != nil {
		return nil
	}
	return m.Type(m.b.FuncArgType(ft.handle, i))
}

// FuncArg returns parameter i of fn as a value.
func (m *Module) FuncArg(fn *Value, i uint32) (*Value, error) {
	h, err := m.b.FuncArg(fn.handle, i)
	if err != nil {
		return nil, m.backend(err, "argument %d", i)
	}
	return m.ValueOf(m.FuncArgType(fn, i), h), nil
}

// TypeName returns the backend spelling of t.
func (m *Module) TypeName(t *Type) string { return m.b.TypeName(t.handle) }

// TypeSize returns the byte size of t as an i64 value.
func (m *Module) TypeSize(t *Type) (*Value, error) {
	h, err := m.b.TypeSize(t.handle)
	if err != nil {
		return nil, m.backend(err, "size of %s", t.name)
	}
	return m.Value(h), nil
}

// CanLosslesslyCast reports whether from widens to to without loss.
func (m *Module) CanLosslesslyCast(from, to *Type) bool {
	return m.b.CanLosslesslyCast(from.handle, to.handle)
}

// DefaultValue returns the zero value of t.
func (m *Module) DefaultValue(t *Type) (*Value, error) {
	h, err := m.b.DefaultValue(t.handle)
	if err != nil {
		return nil, m.backend(err, "default of %s", t.name)
	}
	return m.ValueOf(t, h), nil
}

// EqualsType compares types by handle, which also holds across modules.
func EqualsType(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a == b || a.handle == b.handle
}

// EqualsValue compares values by handle.
func EqualsValue(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a == b || a.handle == b.handle
}

// Dump returns the backend text of the module.
func (m *Module) Dump() string { return m.b.DumpModule(m.handle) }

func (m *Module) drop() {
	m.b.DropModule(m.handle)
	m.types = nil
	m.values = nil
	m.blocks = nil
	m.prims = [primCount]*Type{}
}
