package ir

import (
	"testing"

	"elang/internal/diag"
)

func TestScopeRedefinitionAndShadowing(t *testing.T) {
	f := newFixture(t)
	s := f.m.Scopes()
	root := f.m.Root()
	i32 := f.m.I32()

	f.must(s.AddType(root, "T", i32))
	f.wantCode(s.AddType(root, "T", f.m.I64()), diag.SemaRedefinition)

	child := s.AddChild(root, nil)
	f.must(s.AddType(child, "T", f.m.I64()))
	if got := s.LookupType(child, "T", true); got == nil || got.Type != f.m.I64() {
		t.Fatalf("child lookup should see the shadowing type")
	}
	if got := s.LookupType(root, "T", false); got == nil || got.Type != i32 {
		t.Fatalf("root keeps its own binding")
	}

	v, err := f.m.Int(1, 32)
	f.must(err)
	f.must(s.AddValue(root, "x", v))
	f.wantCode(s.AddValue(root, "x", v), diag.SemaRedefinition)
	f.must(s.AddValue(child, "x", v))
	// the two namespaces are independent
	f.must(s.AddValue(root, "T", v))
}

func TestScopeLookupModes(t *testing.T) {
	f := newFixture(t)
	s := f.m.Scopes()
	root := f.m.Root()
	f.must(s.AddType(root, "Outer", f.m.I8()))
	mid := s.AddChild(root, nil)
	leaf := s.AddChild(mid, nil)

	if s.LookupType(leaf, "Outer", false) != nil {
		t.Fatalf("local lookup must not walk parents")
	}
	if s.LookupType(leaf, "Outer", true) == nil {
		t.Fatalf("lookup should walk to the root")
	}
	if s.Parent(leaf) != mid || s.Parent(root) != NoScopeID {
		t.Fatalf("unexpected parent links")
	}
	if kids := s.Children(mid); len(kids) != 1 || kids[0] != leaf {
		t.Fatalf("unexpected children %v", kids)
	}

	isInt := func(sym *Symbol) bool { return sym.Type.IsInteger() }
	if s.FindType(leaf, isInt, false) != nil {
		t.Fatalf("predicate lookup must respect the local flag")
	}
	if sym := s.FindType(leaf, isInt, true); sym == nil || sym.Name != "Outer" {
		t.Fatalf("predicate lookup should find Outer, got %v", sym)
	}
}

func TestScopeInheritsFunction(t *testing.T) {
	f := newFixture(t)
	fn, err := f.m.DeclareFunc("f", f.m.Void(), nil, false)
	f.must(err)
	s := f.m.Scopes()
	body := s.AddChild(f.m.Root(), fn)
	inner := s.AddChild(body, nil)
	if s.Func(inner) != fn {
		t.Fatalf("child scope should inherit the enclosing function")
	}
	if s.Func(f.m.Root()) != nil {
		t.Fatalf("module scope has no function")
	}
	before := s.Len()
	f.m.PushScope(nil)
	f.must(f.m.PopScope())
	if s.Len() != before+1 {
		t.Fatalf("popped scopes stay in the arena")
	}
}

func TestScopeNamesAreNormalized(t *testing.T) {
	f := newFixture(t)
	s := f.m.Scopes()
	root := f.m.Root()
	f.must(s.AddType(root, "caf\u00e9", f.m.I8()))
	if s.LookupType(root, "cafe\u0301", false) == nil {
		t.Fatalf("decomposed spelling should resolve to the composed name")
	}
	f.wantCode(s.AddType(root, "cafe\u0301", f.m.I8()), diag.SemaRedefinition)
}

func TestPopRootScopeFails(t *testing.T) {
	f := newFixture(t)
	f.wantCode(f.m.PopScope(), diag.SemaError)
}
