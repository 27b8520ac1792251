package ir

// Names of the built-in modules.
const (
	CoreModule = "core"
	CStdModule = "cstd"
)

// LoadDefaultModules builds and registers the cstd and core modules.
func (c *Context) LoadDefaultModules() error {
	if _, err := c.Load(CStdModule, buildCStd); err != nil {
		return err
	}
	if _, err := c.Load(CoreModule, buildCore); err != nil {
		return err
	}
	return nil
}

type externDecl struct {
	name     string
	ret      Prim
	args     []Prim
	variadic bool
}

var cstdDecls = []externDecl{
	{name: "printf", ret: PrimI32, args: []Prim{PrimBytes}, variadic: true},
	{name: "sprintf", ret: PrimI32, args: []Prim{PrimBytes, PrimBytes}, variadic: true},
	{name: "malloc", ret: PrimBytes, args: []Prim{PrimI64}},
	{name: "free", ret: PrimVoid, args: []Prim{PrimBytes}},
	{name: "strlen", ret: PrimI64, args: []Prim{PrimBytes}},
	{name: "puts", ret: PrimI32, args: []Prim{PrimBytes}},
}

func buildCStd(c *Context) (*Module, error) {
	m, err := c.NewModule(CStdModule)
	if err != nil {
		return nil, err
	}
	for _, d := range cstdDecls {
		args := make([]*Type, 0, len(d.args))
		for _, a := range d.args {
			args = append(args, m.Prim(a))
		}
		fn, err := m.DeclareFunc(d.name, m.Prim(d.ret), args, d.variadic)
		if err != nil {
			return m, err
		}
		if err := m.AddValueSymbol(d.name, fn); err != nil {
			return m, err
		}
	}
	return m, m.ExportAll()
}

// coreAliases maps the source-level primitive names to their types. Unsigned
// names share the signed representation of the same width.
var coreAliases = []struct {
	name string
	prim Prim
}{
	{"i8", PrimI8}, {"i16", PrimI16}, {"i32", PrimI32}, {"i64", PrimI64},
	{"u8", PrimI8}, {"u16", PrimI16}, {"u32", PrimI32}, {"u64", PrimI64},
	{"f32", PrimF32}, {"f64", PrimF64},
	{"bool", PrimBool},
	{"$cstr", PrimBytes},
}

func buildCore(c *Context) (*Module, error) {
	m, err := c.NewModule(CoreModule)
	if err != nil {
		return nil, err
	}
	for _, a := range coreAliases {
		if err := m.AddTypeSymbol(a.name, m.Prim(a.prim)); err != nil {
			return m, err
		}
	}

	object, err := m.Struct("Object")
	if err != nil {
		return m, err
	}
	typeInfo, err := m.Struct("TypeInfo")
	if err != nil {
		return m, err
	}
	str, err := m.Struct("String")
	if err != nil {
		return m, err
	}
	for _, st := range []*Struct{object, typeInfo, str} {
		if err := m.AddTypeSymbol(st.Name(), st.Type); err != nil {
			return m, err
		}
	}

	objectPtr, err := object.PointerType()
	if err != nil {
		return m, err
	}
	typeInfoPtr, err := typeInfo.PointerType()
	if err != nil {
		return m, err
	}
	strPtr, err := str.PointerType()
	if err != nil {
		return m, err
	}

	b := &structBuilder{m: m}
	b.method(object, "typeinfo", typeInfoPtr, objectPtr)
	b.method(object, "string", strPtr, objectPtr)
	b.method(object, "hash", m.I64(), objectPtr)

	b.extend(typeInfo, object)
	b.field(typeInfo, "name", m.Bytes())
	b.field(typeInfo, "fields", m.I32())
	b.field(typeInfo, "methods", m.I32())
	b.method(typeInfo, "make", objectPtr, typeInfoPtr)

	b.extend(str, object)
	b.field(str, "data", m.Bytes())
	b.field(str, "len", m.I64())
	b.method(str, "length", m.I64(), strPtr)
	b.method(str, "toUpper", strPtr, strPtr)
	b.method(str, "toLower", strPtr, strPtr)
	if b.err != nil {
		return m, b.err
	}

	printFn, err := m.DeclareFunc("print", m.I32(), []*Type{m.Bytes()}, false)
	if err != nil {
		return m, err
	}
	if err := m.AddValueSymbol("print", printFn); err != nil {
		return m, err
	}
	return m, m.ExportAll()
}

// structBuilder keeps the first error so member lists read top to bottom.
type structBuilder struct {
	m   *Module
	err error
}

func (b *structBuilder) extend(st, base *Struct) {
	if b.err == nil {
		b.err = st.ExtendsStruct(base)
	}
}

func (b *structBuilder) field(st *Struct, name string, t *Type) {
	if b.err == nil {
		_, b.err = st.AddMember(name, t, nil)
	}
}

// method declares "<Struct>.<name>" taking self and stores it as a member.
func (b *structBuilder) method(st *Struct, name string, ret, self *Type) {
	if b.err != nil {
		return
	}
	fn, err := b.m.DeclareFunc(st.Name()+"."+name, ret, []*Type{self}, false)
	if err != nil {
		b.err = err
		return
	}
	_, b.err = st.AddMember(name, nil, fn)
}
