package ir

import (
	"testing"

	"elang/internal/diag"
)

func TestTypeAndValueCanonicalization(t *testing.T) {
	f := newFixture(t)
	m := f.m
	h := f.b.I32()
	if m.Type(h) != m.Type(h) || m.Type(h) != m.I32() {
		t.Fatalf("one Type per handle")
	}
	if m.Type(f.b.I64()) == m.I32() {
		t.Fatalf("distinct handles must not share a Type")
	}
	p1, err := m.I32().PointerType()
	f.must(err)
	p2, err := m.Pointer(m.I32())
	f.must(err)
	if p1 != p2 || p1.Elem() != m.I32() {
		t.Fatalf("pointer types must be canonical and remember their pointee")
	}

	a, err := m.Int(5, 32)
	f.must(err)
	b, err := m.Int(5, 32)
	f.must(err)
	if a != b || m.Value(a.Handle()) != a {
		t.Fatalf("one Value per handle")
	}
	c, err := m.Int(6, 32)
	f.must(err)
	if a == c || EqualsValue(a, c) {
		t.Fatalf("distinct constants must not share a Value")
	}
	if !a.Type().IsI32() || !m.Float(1).Type().IsF64() || !m.BoolValue(true).Type().IsBool() {
		t.Fatalf("constant types are wrong")
	}
	s, err := m.String("hi")
	f.must(err)
	if !s.Type().IsBytes() {
		t.Fatalf("string constants are bytes, got %s", s.Type())
	}
}

func TestPrimitiveCachesArePerModule(t *testing.T) {
	f := newFixture(t)
	other, err := f.c.NewModule("other")
	f.must(err)
	if f.m.I32() == other.I32() {
		t.Fatalf("modules must not share Type objects")
	}
	if !EqualsType(f.m.I32(), other.I32()) {
		t.Fatalf("same backend type compares equal across modules")
	}
	if f.m.I32().Module() != f.m || other.I32().Module() != other {
		t.Fatalf("types belong to the module that created them")
	}
}

func TestFuncIntrospection(t *testing.T) {
	f := newFixture(t)
	m := f.m
	fn, err := m.DeclareFunc("sum", m.I64(), []*Type{m.I32(), m.F64()}, false)
	f.must(err)
	if m.FuncRetType(fn) != m.I64() || m.FuncArgCount(fn) != 2 || m.FuncArgType(fn, 1) != m.F64() {
		t.Fatalf("function introspection mismatch")
	}
	arg, err := m.FuncArg(fn, 0)
	f.must(err)
	if arg.Type() != m.I32() {
		t.Fatalf("argument 0 has type %s", arg.Type())
	}
	again, err := m.DeclareFunc("sum", m.I64(), []*Type{m.I32(), m.F64()}, false)
	f.must(err)
	if again != fn {
		t.Fatalf("redeclaring with the same signature returns the same function")
	}
	_, err = m.DeclareFunc("sum", m.I32(), nil, false)
	f.wantCode(err, diag.SemaRedefinition)
}

func TestStructMembers(t *testing.T) {
	f := newFixture(t)
	st, err := f.m.Struct("Point")
	f.must(err)
	_, err = st.AddMember("x", f.m.I32(), nil)
	f.must(err)
	zero, err := f.m.Int(0, 64)
	f.must(err)
	mem, err := st.AddMember("y", nil, zero)
	f.must(err)
	if mem.Type != f.m.I64() {
		t.Fatalf("member type should be inferred from the value")
	}
	_, err = st.AddMember("x", f.m.I8(), nil)
	f.wantCode(err, diag.SemaDuplicateMember)
	_, err = st.AddMember("z", nil, nil)
	f.wantCode(err, diag.SemaMemberWithoutType)

	if i, ok := st.MemberIndex("y"); !ok || i != 1 {
		t.Fatalf("unexpected index %d", i)
	}
	if st.MemberAt(0).Name != "x" || st.Member("y") != mem || st.MemberAt(5) != nil {
		t.Fatalf("member accessors disagree")
	}
	size, err := f.m.TypeSize(st.Type)
	f.must(err)
	want, err := f.m.Int(16, 64)
	f.must(err)
	if size != want {
		t.Fatalf("Point should be 16 bytes")
	}
}

func TestStructInheritanceFlattening(t *testing.T) {
	f := newFixture(t)
	base, err := f.m.Struct("Base")
	f.must(err)
	f.must(f.m.AddTypeSymbol("Base", base.Type))
	_, err = base.AddMember("a", f.m.I32(), nil)
	f.must(err)
	_, err = base.AddMember("b", f.m.F64(), nil)
	f.must(err)

	derived, err := f.m.Struct("Derived")
	f.must(err)
	f.must(derived.Extends("Base"))
	_, err = derived.AddMember("c", f.m.Bool(), nil)
	f.must(err)

	var names []string
	for _, mem := range derived.Members() {
		names = append(names, mem.Name)
	}
	want := []string{"base", "a", "b", "c"}
	if len(names) != len(want) {
		t.Fatalf("members %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("members %v, want %v", names, want)
		}
	}
	if i, ok := derived.MemberIndex("base"); !ok || i != 0 {
		t.Fatalf("base must be the first member")
	}
	if derived.Member("base").Type != base.Type {
		t.Fatalf("base member has the base type")
	}

	// a grandchild does not inherit the intermediate "base" twice
	leaf, err := f.m.Struct("Leaf")
	f.must(err)
	f.must(leaf.ExtendsStruct(derived))
	if leaf.Len() != 4 || leaf.MemberAt(0).Type != derived.Type {
		t.Fatalf("unexpected leaf layout: %d members", leaf.Len())
	}
}

func TestStructExtendsErrors(t *testing.T) {
	f := newFixture(t)
	st, err := f.m.Struct("S")
	f.must(err)
	f.wantCode(st.Extends("Missing"), diag.SemaUnresolvedType)
	f.must(f.m.AddTypeSymbol("Int", f.m.I32()))
	f.wantCode(st.Extends("Int"), diag.SemaNotAStruct)
}

func TestImportCollisionKeepsLocalSymbol(t *testing.T) {
	f := newFixture(t)
	lib, err := f.c.Load("lib", func(c *Context) (*Module, error) {
		m, err := c.NewModule("lib")
		if err != nil {
			return nil, err
		}
		fn, err := m.DeclareFunc("f", m.I32(), nil, false)
		if err != nil {
			return m, err
		}
		if err := m.AddValueSymbol("f", fn); err != nil {
			return m, err
		}
		return m, m.Export("f")
	})
	f.must(err)

	local, err := f.m.Int(1, 32)
	f.must(err)
	f.must(f.m.AddValueSymbol("f", local))
	f.wantCode(f.m.Use("lib"), diag.ModImportCollision)
	if sym := f.m.ValueSymbol("f", true); sym == nil || sym.Value != local {
		t.Fatalf("local f must not be overwritten")
	}
	if f.m.Scopes().LookupValue(f.m.Imports(), "f", false) != nil {
		t.Fatalf("colliding symbol must not be imported")
	}
	if lib.Scopes().LookupValue(lib.Exports(), "f", false) == nil {
		t.Fatalf("lib should export f")
	}
}

func TestUseImportsExports(t *testing.T) {
	f := newFixture(t)
	f.must(f.c.LoadDefaultModules())
	f.wantCode(f.m.Use("nope"), diag.ModNotFound)
	f.must(f.m.Use(CStdModule))
	f.wantCode(f.m.Use(CStdModule), diag.ModDuplicateDependency)
	f.must(f.m.Use(CoreModule))

	if sym := f.m.ValueSymbol("printf", true); sym == nil || sym.Value.Module() != f.m {
		t.Fatalf("imported values are canonicalized into the importing module")
	}
	str, err := f.m.ResolveType("String")
	f.must(err)
	st := str.Struct()
	if st == nil || st.Member("base") == nil || st.Member("toUpper") == nil {
		t.Fatalf("imported struct keeps its members")
	}
	if got := f.m.Dependencies(); len(got) != 2 || got[0] != CStdModule {
		t.Fatalf("unexpected dependencies %v", got)
	}
	// imports never shadow a local definition made later in a nested scope
	f.m.PushScope(nil)
	one, err := f.m.Int(1, 32)
	f.must(err)
	f.must(f.m.AddValueSymbol("puts", one))
	if f.m.ValueSymbol("puts", true).Value != one {
		t.Fatalf("local symbol should win over the import")
	}
	f.must(f.m.PopScope())
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.wantCode(f.m.Export("ghost"), diag.SemaUnresolvedSymbol)
	st, err := f.m.Struct("Node")
	f.must(err)
	f.must(f.m.AddTypeSymbol("Node", st.Type))
	f.must(f.m.Export("Node"))
	if f.m.Scopes().LookupType(f.m.Exports(), "Node", false) == nil {
		t.Fatalf("Node should be exported")
	}
	f.wantCode(f.m.Export("Node"), diag.SemaRedefinition)
}

func TestStructRejectsContainingItself(t *testing.T) {
	f := newFixture(t)
	m := f.m
	node, err := m.Struct("Node")
	f.must(err)
	_, err = node.AddMember("next", node.Type, nil)
	f.wantCode(err, diag.SemaError)
	if node.Len() != 0 {
		t.Fatalf("rejected member must not stay in the layout")
	}
	ptr, err := node.PointerType()
	f.must(err)
	_, err = node.AddMember("next", ptr, nil)
	f.must(err)

	a, err := m.Struct("A")
	f.must(err)
	b, err := m.Struct("B")
	f.must(err)
	_, err = a.AddMember("b", b.Type, nil)
	f.must(err)
	_, err = b.AddMember("a", a.Type, nil)
	f.wantCode(err, diag.SemaError)

	// A holds B which now holds a pointer back, so sizes stay finite
	bp, err := a.PointerType()
	f.must(err)
	_, err = b.AddMember("up", bp, nil)
	f.must(err)
	if _, err := m.TypeSize(a.Type); err != nil {
		t.Fatalf("size of A: %v", err)
	}
}
