package llvm

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/llir/llvm/ir/types"

	"elang/internal/bridge"
)

// must checks a (handle, error) result: must(t)(b.MakeModule("m")).
func must(t *testing.T) func(bridge.Handle, error) bridge.Handle {
	return func(h bridge.Handle, err error) bridge.Handle {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !h.IsValid() {
			t.Fatalf("expected a valid handle")
		}
		return h
	}
}

// newMain declares `i32 main()` in a fresh module and activates its entry.
func newMain(t *testing.T, b *Bridge) (mod, fn bridge.Handle) {
	t.Helper()
	mod = must(t)(b.MakeModule("test"))
	ft := must(t)(b.Func(b.I32(), nil, false))
	fn = must(t)(b.DeclareFunc(mod, "main", ft))
	activate(t, b, must(t)(b.CreateBlock(fn, "entry")))
	return mod, fn
}

func activate(t *testing.T, b *Bridge, blk bridge.Handle) {
	t.Helper()
	if err := b.SetActiveBlock(blk); err != nil {
		t.Fatalf("set active block: %v", err)
	}
}

func TestTypesAreCanonical(t *testing.T) {
	b := New(Options{})
	p1 := must(t)(b.Pointer(b.I32()))
	p2 := must(t)(b.Pointer(b.I32()))
	if p1 != p2 {
		t.Fatalf("pointer types differ: %d vs %d", p1, p2)
	}
	bytesPtr := must(t)(b.Pointer(b.I8()))
	if bytesPtr != b.Bytes() {
		t.Fatalf("i8* should be the bytes type")
	}
	f1 := must(t)(b.Func(b.Void(), []bridge.Handle{b.I32(), b.Bytes()}, true))
	f2 := must(t)(b.Func(b.Void(), []bridge.Handle{b.I32(), b.Bytes()}, true))
	if f1 != f2 {
		t.Fatalf("function types differ")
	}
	if got := b.TypeName(f1); got != "void(i32, bytes, ...)" {
		t.Fatalf("unexpected name %q", got)
	}
	if b.FuncArgCount(f1) != 2 || b.FuncArgType(f1, 1) != b.Bytes() || b.FuncRetType(f1) != b.Void() {
		t.Fatalf("function introspection mismatch")
	}
}

func TestStructsAreDistinct(t *testing.T) {
	b := New(Options{})
	mod := must(t)(b.MakeModule("m"))
	s1 := must(t)(b.Struct(mod, "Point"))
	s2 := must(t)(b.Struct(mod, "Point"))
	if s1 == s2 {
		t.Fatalf("each struct call must yield a new type")
	}
	if err := b.SetStructBody(s1, []bridge.Handle{b.I8(), b.I64(), b.I32()}); err != nil {
		t.Fatalf("set body: %v", err)
	}
	size := must(t)(b.TypeSize(s1))
	want := must(t)(b.Int(24, 64))
	if size != want {
		t.Fatalf("struct size handle %d, want %d", size, want)
	}
}

func TestLayoutRejectsSelfContainment(t *testing.T) {
	node := &types.StructType{TypeName: "Node"}
	node.Fields = []types.Type{types.I32, node}
	if _, _, err := sizeAlign(node); err == nil || !strings.Contains(err.Error(), "contains itself") {
		t.Fatalf("expected a containment error, got %v", err)
	}

	a := &types.StructType{TypeName: "A"}
	b := &types.StructType{TypeName: "B", Fields: []types.Type{types.NewArray(2, a)}}
	a.Fields = []types.Type{b}
	if _, _, err := sizeAlign(a); err == nil {
		t.Fatalf("mutual containment must fail")
	}

	list := &types.StructType{TypeName: "List"}
	list.Fields = []types.Type{types.I64, types.NewPointer(list)}
	size, align, err := sizeAlign(list)
	if err != nil || size != 16 || align != 8 {
		t.Fatalf("self pointer: size=%d align=%d err=%v", size, align, err)
	}

	// the same struct twice side by side is not a cycle
	pair := &types.StructType{TypeName: "Pair", Fields: []types.Type{list, list}}
	if size, _, err := sizeAlign(pair); err != nil || size != 32 {
		t.Fatalf("pair: size=%d err=%v", size, err)
	}
}

func TestLosslessCasts(t *testing.T) {
	b := New(Options{})
	cases := []struct {
		from, to bridge.Handle
		want     bool
	}{
		{b.I8(), b.I32(), true},
		{b.I32(), b.I8(), false},
		{b.I32(), b.F64(), true},
		{b.I64(), b.F64(), false},
		{b.I16(), b.F32(), true},
		{b.F32(), b.F64(), true},
		{b.F64(), b.I32(), false},
		{b.Bool(), b.I64(), true},
	}
	for _, tc := range cases {
		if got := b.CanLosslesslyCast(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v, want %v", b.TypeName(tc.from), b.TypeName(tc.to), got, tc.want)
		}
	}
}

func TestConstantsAreInterned(t *testing.T) {
	b := New(Options{})
	a := must(t)(b.Int(7, 32))
	c := must(t)(b.Int(7, 32))
	if a != c {
		t.Fatalf("equal constants must share a handle")
	}
	if d := must(t)(b.Int(7, 64)); d == a {
		t.Fatalf("constants of different width must differ")
	}
	if _, err := b.Int(1, 12); err == nil {
		t.Fatalf("expected error for unsupported width")
	}
	if b.ValueType(b.BoolConst(true)) != b.Bool() {
		t.Fatalf("bool constant has wrong type")
	}
}

func TestDefaultValues(t *testing.T) {
	b := New(Options{})
	for _, typ := range []bridge.Handle{b.I8(), b.I16(), b.I32(), b.I64()} {
		zero := must(t)(b.DefaultValue(typ))
		if b.ValueType(zero) != typ {
			t.Fatalf("default of %s has type %s", b.TypeName(typ), b.TypeName(b.ValueType(zero)))
		}
	}
	if got := must(t)(b.DefaultValue(b.I64())); got != must(t)(b.Int(0, 64)) {
		t.Fatalf("default i64 must be the interned zero")
	}
	if got := must(t)(b.DefaultValue(b.Bool())); got != b.BoolConst(false) {
		t.Fatalf("default bool must be false")
	}
}

func TestEmissionAfterTerminatorIsRejected(t *testing.T) {
	b := New(Options{})
	mod, _ := newMain(t, b)
	zero := must(t)(b.Int(0, 32))
	ret := must(t)(b.Ret(zero))
	if !b.IsTerminator(ret) {
		t.Fatalf("ret should be a terminator")
	}
	if _, err := b.Ret(zero); !errors.Is(err, ErrTerminated) {
		t.Fatalf("expected ErrTerminated, got %v", err)
	}
	if _, err := b.Binary(bridge.OpAdd, zero, zero); !errors.Is(err, ErrTerminated) {
		t.Fatalf("expected ErrTerminated, got %v", err)
	}
	if len(b.Violations()) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(b.Violations()))
	}
	if err := b.Verify(mod); err == nil {
		t.Fatalf("verify should report violations")
	}
}

func TestVerifyReportsOpenBlocks(t *testing.T) {
	b := New(Options{})
	mod, fn := newMain(t, b)
	must(t)(b.CreateBlock(fn, "dangling"))
	zero := must(t)(b.Int(0, 32))
	must(t)(b.Ret(zero))
	err := b.Verify(mod)
	if err == nil || !strings.Contains(err.Error(), "dangling") {
		t.Fatalf("expected unterminated block report, got %v", err)
	}
}

func TestBinaryRejectsMixedTypes(t *testing.T) {
	b := New(Options{})
	newMain(t, b)
	i := must(t)(b.Int(1, 32))
	f := b.Float(1)
	if _, err := b.Binary(bridge.OpAdd, i, f); err == nil {
		t.Fatalf("expected type error")
	}
	cmp := must(t)(b.Binary(bridge.OpLt, i, i))
	if b.ValueType(cmp) != b.Bool() {
		t.Fatalf("comparison should yield bool")
	}
}

func TestJITRunsLoopWithPhi(t *testing.T) {
	b := New(Options{})
	mod, fn := newMain(t, b)
	slot := must(t)(b.Alloc(b.I32(), "i"))
	zero := must(t)(b.Int(0, 32))
	one := must(t)(b.Int(1, 32))
	ten := must(t)(b.Int(10, 32))
	must(t)(b.Store(slot, zero))
	cond := must(t)(b.CreateBlock(fn, "cond"))
	body := must(t)(b.CreateBlock(fn, "body"))
	end := must(t)(b.CreateBlock(fn, "end"))
	must(t)(b.Jump(cond))

	activate(t, b, cond)
	cur := must(t)(b.Load(slot))
	lt := must(t)(b.Binary(bridge.OpLt, cur, ten))
	must(t)(b.JumpCond(lt, body, end))

	activate(t, b, body)
	cur2 := must(t)(b.Load(slot))
	next := must(t)(b.Binary(bridge.OpAdd, cur2, one))
	must(t)(b.Store(slot, next))
	must(t)(b.Jump(cond))

	activate(t, b, end)
	res := must(t)(b.Phi(b.I32(), []bridge.Incoming{{Value: cur, Block: cond}}))
	must(t)(b.Ret(res))

	got, err := b.JIT(mod)
	if err != nil {
		t.Fatalf("jit: %v", err)
	}
	if got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
}

func TestJITPrintfAndCrossModuleCall(t *testing.T) {
	var out bytes.Buffer
	b := New(Options{Stdout: &out})

	lib := must(t)(b.MakeModule("lib"))
	printfType := must(t)(b.Func(b.I32(), []bridge.Handle{b.Bytes()}, true))
	printf := must(t)(b.DeclareFunc(lib, "printf", printfType))
	greetType := must(t)(b.Func(b.Void(), []bridge.Handle{b.I32()}, false))
	greet := must(t)(b.DeclareFunc(lib, "greet", greetType))
	activate(t, b, must(t)(b.CreateBlock(greet, "entry")))
	format := must(t)(b.String(lib, "hello %s #%d\n"))
	who := must(t)(b.String(lib, "world"))
	arg := must(t)(b.FuncArg(greet, 0))
	must(t)(b.Call(printf, []bridge.Handle{format, who, arg}))
	must(t)(b.Ret(bridge.NoHandle))

	mod, _ := newMain(t, b)
	seven := must(t)(b.Int(7, 32))
	must(t)(b.Call(greet, []bridge.Handle{seven}))
	must(t)(b.Ret(seven))

	if !strings.Contains(b.DumpModule(mod), "declare void @greet(i32") {
		t.Fatalf("expected extern declaration in caller:\n%s", b.DumpModule(mod))
	}
	got, err := b.JIT(mod)
	if err != nil {
		t.Fatalf("jit: %v", err)
	}
	if got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if out.String() != "hello world #7\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestAOTWritesTextualIR(t *testing.T) {
	dir := t.TempDir()
	b := New(Options{OutDir: dir})
	mod, _ := newMain(t, b)
	must(t)(b.Ret(must(t)(b.Int(0, 32))))
	path, err := b.AOT(mod)
	if err != nil {
		t.Fatalf("aot: %v", err)
	}
	if path != filepath.Join(dir, "test.ll") {
		t.Fatalf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "define i32 @main()") {
		t.Fatalf("unexpected output:\n%s", data)
	}
}

func TestFormatC(t *testing.T) {
	got, err := formatC("%5.2f|%-3d|%x|%%|%ld", []any{3.14159, int64(7), int64(255), int64(9)})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if got != " 3.14|7  |ff|%|9" {
		t.Fatalf("unexpected %q", got)
	}
	if _, err := formatC("%d %d", []any{int64(1)}); err == nil {
		t.Fatalf("expected error for missing argument")
	}
}
