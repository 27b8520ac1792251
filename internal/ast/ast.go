// Package ast defines the syntax tree handed to the IR coder by the external
// parser. Nodes are tagged structs: a Kind selects which payload fields are
// meaningful. The tree is plain data so it round-trips through msgpack.
package ast

// Module is one parsed source unit.
type Module struct {
	Name    string    `msgpack:"name"`
	Path    string    `msgpack:"path,omitempty"`
	Imports []*Import `msgpack:"imports,omitempty"`
	Decls   []*Decl   `msgpack:"decls,omitempty"`
}

// Import names a dependency. Target is either a module name or a path
// starting with "." relative to the importing file.
type Import struct {
	Name   string `msgpack:"name"`
	Target string `msgpack:"target"`
}

// TypeRef names a type by symbol. Ptr counts the pointer indirections.
type TypeRef struct {
	Name string `msgpack:"name"`
	Ptr  uint8  `msgpack:"ptr,omitempty"`
}

type DeclKind uint8

const (
	DeclInvalid DeclKind = iota
	DeclFunc             // function with a body
	DeclExtern           // function declaration without a body
	DeclStruct           // struct with optional base
	DeclLet              // module-level binding of a constant
	DeclExport           // explicit export list
)

// Decl is a top-level declaration.
type Decl struct {
	Kind     DeclKind `msgpack:"kind"`
	Name     string   `msgpack:"name,omitempty"`
	Params   []*Param `msgpack:"params,omitempty"`
	Ret      *TypeRef `msgpack:"ret,omitempty"`
	Variadic bool     `msgpack:"variadic,omitempty"`
	Body     *Stmt    `msgpack:"body,omitempty"`
	Base     string   `msgpack:"base,omitempty"`
	Fields   []*Field `msgpack:"fields,omitempty"`
	Type     *TypeRef `msgpack:"type,omitempty"`
	Init     *Expr    `msgpack:"init,omitempty"`
	Names    []string `msgpack:"names,omitempty"`
}

type Param struct {
	Name string   `msgpack:"name"`
	Type *TypeRef `msgpack:"type"`
}

// Field is a struct member. Either Type or Init is set; a member with only
// an initializer takes its type from it.
type Field struct {
	Name string   `msgpack:"name"`
	Type *TypeRef `msgpack:"type,omitempty"`
	Init *Expr    `msgpack:"init,omitempty"`
}

type StmtKind uint8

const (
	StmtInvalid StmtKind = iota
	StmtBlock
	StmtLet
	StmtAssign
	StmtReturn
	StmtIf
	StmtLoop
	StmtBreak
	StmtContinue
	StmtExpr
	StmtDrop
)

// Stmt is a statement node.
//
//	StmtBlock     List
//	StmtLet       Name, Type and/or Value
//	StmtAssign    Target, Value
//	StmtReturn    optional Value
//	StmtIf        Cond, Then, optional Else
//	StmtLoop      optional Init, Cond, Step; Body
//	StmtExpr      Value
//	StmtDrop      Value
type Stmt struct {
	Kind   StmtKind `msgpack:"kind"`
	List   []*Stmt  `msgpack:"list,omitempty"`
	Name   string   `msgpack:"name,omitempty"`
	Type   *TypeRef `msgpack:"type,omitempty"`
	Target *Expr    `msgpack:"target,omitempty"`
	Value  *Expr    `msgpack:"value,omitempty"`
	Cond   *Expr    `msgpack:"cond,omitempty"`
	Then   *Stmt    `msgpack:"then,omitempty"`
	Else   *Stmt    `msgpack:"else,omitempty"`
	Init   *Stmt    `msgpack:"init,omitempty"`
	Step   *Stmt    `msgpack:"step,omitempty"`
	Body   *Stmt    `msgpack:"body,omitempty"`
}

type ExprKind uint8

const (
	ExprInvalid ExprKind = iota
	ExprInt
	ExprFloat
	ExprBool
	ExprString
	ExprIdent
	ExprUnary
	ExprBinary
	ExprCall
	ExprTernary
	ExprMake
	ExprCast
)

// Expr is an expression node.
//
//	ExprInt       Int, Bits (0 means 32)
//	ExprFloat     Float
//	ExprBool      Bool
//	ExprString    Str
//	ExprIdent     Name
//	ExprUnary     Op, X
//	ExprBinary    Op, X, Y
//	ExprCall      Name, Args
//	ExprTernary   Cond, X, Y
//	ExprMake      Type, optional Count
//	ExprCast      Type, X
type Expr struct {
	Kind  ExprKind `msgpack:"kind"`
	Int   uint64   `msgpack:"int,omitempty"`
	Bits  uint8    `msgpack:"bits,omitempty"`
	Float float64  `msgpack:"float,omitempty"`
	Bool  bool     `msgpack:"bool,omitempty"`
	Str   string   `msgpack:"str,omitempty"`
	Name  string   `msgpack:"name,omitempty"`
	Op    string   `msgpack:"op,omitempty"`
	X     *Expr    `msgpack:"x,omitempty"`
	Y     *Expr    `msgpack:"y,omitempty"`
	Cond  *Expr    `msgpack:"cond,omitempty"`
	Args  []*Expr  `msgpack:"args,omitempty"`
	Type  *TypeRef `msgpack:"type,omitempty"`
	Count *Expr    `msgpack:"count,omitempty"`
}

func (k DeclKind) String() string {
	switch k {
	case DeclFunc:
		return "func"
	case DeclExtern:
		return "extern"
	case DeclStruct:
		return "struct"
	case DeclLet:
		return "let"
	case DeclExport:
		return "export"
	default:
		return "invalid"
	}
}

var stmtKindNames = [...]string{
	StmtInvalid:  "invalid",
	StmtBlock:    "block",
	StmtLet:      "let",
	StmtAssign:   "assign",
	StmtReturn:   "return",
	StmtIf:       "if",
	StmtLoop:     "loop",
	StmtBreak:    "break",
	StmtContinue: "continue",
	StmtExpr:     "expr",
	StmtDrop:     "drop",
}

func (k StmtKind) String() string {
	if int(k) < len(stmtKindNames) {
		return stmtKindNames[k]
	}
	return "invalid"
}

var exprKindNames = [...]string{
	ExprInvalid: "invalid",
	ExprInt:     "int",
	ExprFloat:   "float",
	ExprBool:    "bool",
	ExprString:  "string",
	ExprIdent:   "ident",
	ExprUnary:   "unary",
	ExprBinary:  "binary",
	ExprCall:    "call",
	ExprTernary: "ternary",
	ExprMake:    "make",
	ExprCast:    "cast",
}

func (k ExprKind) String() string {
	if int(k) < len(exprKindNames) {
		return exprKindNames[k]
	}
	return "invalid"
}

// String renders the reference the way it is written in source.
func (t *TypeRef) String() string {
	if t == nil {
		return "void"
	}
	out := make([]byte, 0, len(t.Name)+int(t.Ptr))
	for range t.Ptr {
		out = append(out, '*')
	}
	return string(append(out, t.Name...))
}

// Exports returns the names listed by export declarations.
func (m *Module) Exports() []string {
	var names []string
	for _, d := range m.Decls {
		if d.Kind == DeclExport {
			names = append(names, d.Names...)
		}
	}
	return names
}

// IsRelative reports whether the import target is a path relative to the
// importing file.
func (i *Import) IsRelative() bool {
	return len(i.Target) > 0 && i.Target[0] == '.'
}
