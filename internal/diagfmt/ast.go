package diagfmt

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"elang/internal/ast"
)

type ASTNodeOutput struct {
	Type     string          `json:"type"`
	Kind     string          `json:"kind,omitempty"`
	Text     string          `json:"text,omitempty"`
	Children []ASTNodeOutput `json:"children,omitempty"`
}

type treeNode struct {
	label    string
	children []*treeNode
}

func (n *treeNode) add(children ...*treeNode) *treeNode {
	for _, c := range children {
		if c != nil {
			n.children = append(n.children, c)
		}
	}
	return n
}

func leaf(format string, args ...any) *treeNode {
	return &treeNode{label: fmt.Sprintf(format, args...)}
}

// FormatASTPretty prints m as an indented tree.
func FormatASTPretty(w io.Writer, m *ast.Module) error {
	if m == nil {
		return fmt.Errorf("module not found")
	}
	root := buildModuleTreeNode(m)
	if _, err := fmt.Fprintln(w, root.label); err != nil {
		return err
	}
	return writeTreeChildren(w, root, "")
}

func writeTreeChildren(w io.Writer, n *treeNode, prefix string) error {
	for i, child := range n.children {
		branch, next := "├─ ", "│  "
		if i == len(n.children)-1 {
			branch, next = "└─ ", "   "
		}
		if _, err := fmt.Fprintf(w, "%s%s%s\n", prefix, branch, child.label); err != nil {
			return err
		}
		if err := writeTreeChildren(w, child, prefix+next); err != nil {
			return err
		}
	}
	return nil
}

// FormatASTJSON prints m as nested JSON nodes.
func FormatASTJSON(w io.Writer, m *ast.Module) error {
	if m == nil {
		return fmt.Errorf("module not found")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toJSONNode(buildModuleTreeNode(m)))
}

func toJSONNode(n *treeNode) ASTNodeOutput {
	typ, text, _ := strings.Cut(n.label, ": ")
	kind := ""
	if k, rest, ok := strings.Cut(typ, " "); ok {
		typ, kind = k, rest
	}
	out := ASTNodeOutput{Type: typ, Kind: kind, Text: text}
	for _, c := range n.children {
		out.Children = append(out.Children, toJSONNode(c))
	}
	return out
}

func buildModuleTreeNode(m *ast.Module) *treeNode {
	root := leaf("Module: %s", m.Name)
	if m.Path != "" {
		root.add(leaf("Path: %s", m.Path))
	}
	if len(m.Imports) > 0 {
		imports := leaf("Imports: %d", len(m.Imports))
		for _, imp := range m.Imports {
			label := imp.Target
			if imp.Name != "" && imp.Name != imp.Target {
				label = fmt.Sprintf("%s as %s", imp.Target, imp.Name)
			}
			imports.add(leaf("Import: %s", label))
		}
		root.add(imports)
	}
	for i, d := range m.Decls {
		root.add(buildDeclTreeNode(i, d))
	}
	return root
}

func buildDeclTreeNode(idx int, d *ast.Decl) *treeNode {
	if d == nil {
		return leaf("Decl[%d]: <nil>", idx)
	}
	node := leaf("Decl %s: %s", d.Kind, d.Name)
	switch d.Kind {
	case ast.DeclFunc, ast.DeclExtern:
		params := make([]string, 0, len(d.Params))
		for _, p := range d.Params {
			params = append(params, p.Name+" "+p.Type.String())
		}
		sig := "(" + strings.Join(params, ", ")
		if d.Variadic {
			sig += ", ..."
		}
		sig += ") " + d.Ret.String()
		node.add(leaf("Signature: %s", sig))
		if d.Body != nil {
			node.add(buildStmtTreeNode(d.Body))
		}
	case ast.DeclStruct:
		if d.Base != "" {
			node.add(leaf("Base: %s", d.Base))
		}
		for _, f := range d.Fields {
			field := leaf("Field: %s", f.Name)
			if f.Type != nil {
				field.label += " " + f.Type.String()
			}
			if f.Init != nil {
				field.add(buildExprTreeNode("Init", f.Init))
			}
			node.add(field)
		}
	case ast.DeclLet:
		node.add(leaf("Type: %s", d.Type.String()), buildExprTreeNode("Value", d.Init))
	case ast.DeclExport:
		node.label = fmt.Sprintf("Decl %s: %s", d.Kind, strings.Join(d.Names, ", "))
	}
	return node
}

func buildStmtTreeNode(s *ast.Stmt) *treeNode {
	if s == nil {
		return nil
	}
	node := leaf("Stmt %s", s.Kind)
	if s.Name != "" {
		node.label += ": " + s.Name
	}
	switch s.Kind {
	case ast.StmtBlock:
		for _, child := range s.List {
			node.add(buildStmtTreeNode(child))
		}
	case ast.StmtLet:
		if s.Type != nil {
			node.add(leaf("Type: %s", s.Type.String()))
		}
		node.add(buildExprTreeNode("Value", s.Value))
	case ast.StmtAssign:
		node.add(buildExprTreeNode("Target", s.Target), buildExprTreeNode("Value", s.Value))
	case ast.StmtReturn, ast.StmtExpr, ast.StmtDrop:
		node.add(buildExprTreeNode("Value", s.Value))
	case ast.StmtIf:
		node.add(buildExprTreeNode("Cond", s.Cond), labelled("Then", s.Then), labelled("Else", s.Else))
	case ast.StmtLoop:
		node.add(labelled("Init", s.Init), buildExprTreeNode("Cond", s.Cond), labelled("Step", s.Step), labelled("Body", s.Body))
	}
	return node
}

func labelled(label string, s *ast.Stmt) *treeNode {
	if s == nil {
		return nil
	}
	return leaf("%s", label).add(buildStmtTreeNode(s))
}

func buildExprTreeNode(label string, e *ast.Expr) *treeNode {
	if e == nil {
		return nil
	}
	return leaf("%s: %s", label, formatExprInline(e))
}

// formatExprInline renders e on one line in a prefix-free notation.
func formatExprInline(e *ast.Expr) string {
	if e == nil {
		return "<none>"
	}
	switch e.Kind {
	case ast.ExprInt:
		s := strconv.FormatUint(e.Int, 10)
		if e.Bits != 0 {
			s += "i" + strconv.Itoa(int(e.Bits))
		}
		return s
	case ast.ExprFloat:
		return strconv.FormatFloat(e.Float, 'g', -1, 64)
	case ast.ExprBool:
		return strconv.FormatBool(e.Bool)
	case ast.ExprString:
		return strconv.Quote(e.Str)
	case ast.ExprIdent:
		return e.Name
	case ast.ExprUnary:
		return e.Op + formatExprInline(e.X)
	case ast.ExprBinary:
		return "(" + formatExprInline(e.X) + " " + e.Op + " " + formatExprInline(e.Y) + ")"
	case ast.ExprCall:
		args := make([]string, 0, len(e.Args))
		for _, a := range e.Args {
			args = append(args, formatExprInline(a))
		}
		return e.Name + "(" + strings.Join(args, ", ") + ")"
	case ast.ExprTernary:
		return "(" + formatExprInline(e.Cond) + " ? " + formatExprInline(e.X) + " : " + formatExprInline(e.Y) + ")"
	case ast.ExprMake:
		if e.Count != nil {
			return "make " + e.Type.String() + "[" + formatExprInline(e.Count) + "]"
		}
		return "make " + e.Type.String()
	case ast.ExprCast:
		return e.Type.String() + "(" + formatExprInline(e.X) + ")"
	default:
		return e.Kind.String()
	}
}
