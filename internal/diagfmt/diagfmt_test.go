package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"elang/internal/ast"
	"elang/internal/diag"
)

func sampleBag() *diag.Bag {
	bag := diag.NewBag(10)
	bag.Add(diag.NewError(diag.SemaRedefinition, "main", "symbol \"x\" already defined").WithNote("previous definition in the same scope"))
	bag.Add(diag.Diagnostic{Severity: diag.SevWarning, Code: diag.ModInfo, Message: "module cached"})
	return bag
}

func TestPrettyPlain(t *testing.T) {
	var buf bytes.Buffer
	Pretty(&buf, sampleBag(), PrettyOpts{ShowNotes: true})
	out := buf.String()
	for _, want := range []string{
		"main: ERROR SEM3002: symbol \"x\" already defined",
		"  note: previous definition in the same scope",
		"WARNING MOD4000: module cached",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("plain output must not contain escape codes")
	}
}

func TestPrettyTruncatesMessages(t *testing.T) {
	bag := diag.NewBag(1)
	bag.Add(diag.NewError(diag.SemaError, "", strings.Repeat("x", 50)))
	var buf bytes.Buffer
	Pretty(&buf, bag, PrettyOpts{Width: 10})
	if strings.Contains(buf.String(), strings.Repeat("x", 11)) {
		t.Fatalf("message not truncated: %s", buf.String())
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, sampleBag(), JSONOpts{IncludeNotes: true, Max: 1}); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, buf.String())
	}
	if output.Count != 1 {
		t.Fatalf("expected count=1, got %d", output.Count)
	}
	d := output.Diagnostics[0]
	if d.Code != "SEM3002" || d.Module != "main" || len(d.Notes) != 1 {
		t.Fatalf("unexpected diagnostic %+v", d)
	}
}

func sampleModule() *ast.Module {
	return &ast.Module{
		Name:    "demo",
		Imports: []*ast.Import{{Target: "./lib", Name: "lib"}},
		Decls: []*ast.Decl{
			ast.Struct("Point", "", &ast.Field{Name: "x", Type: ast.Type("i32")}),
			ast.Func("main", ast.Type("i32"), []*ast.Param{ast.P("n", ast.PtrTo("i8", 1))}, ast.Block(
				ast.Let("s", nil, ast.Binary("+", ast.Int(1), ast.Call("f", ast.Str("a")))),
				ast.If(ast.Bool(true), ast.Return(ast.Ident("s")), nil),
			)),
			ast.Export("main"),
		},
	}
}

func TestFormatASTPretty(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatASTPretty(&buf, sampleModule()); err != nil {
		t.Fatalf("FormatASTPretty: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Module: demo\n",
		"├─ Imports: 1\n│  └─ Import: ./lib as lib\n",
		"│  └─ Field: x i32\n",
		"Signature: (n *i8) i32",
		"Value: (1 + f(\"a\"))",
		"└─ Decl export: main\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if err := FormatASTPretty(&buf, nil); err == nil {
		t.Fatalf("expected error for nil module")
	}
}

func TestFormatASTJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatASTJSON(&buf, sampleModule()); err != nil {
		t.Fatalf("FormatASTJSON: %v", err)
	}
	var root ASTNodeOutput
	if err := json.Unmarshal(buf.Bytes(), &root); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, buf.String())
	}
	if root.Type != "Module" || root.Text != "demo" || len(root.Children) != 4 {
		t.Fatalf("unexpected root %+v", root)
	}
	fn := root.Children[2]
	if fn.Type != "Decl" || fn.Kind != "func" || fn.Text != "main" {
		t.Fatalf("unexpected function node %+v", fn)
	}
}
