package ast

// Constructors for hand-built trees. Parsers and tests use them instead of
// spelling out the tagged structs.

func Type(name string) *TypeRef { return &TypeRef{Name: name} }

func PtrTo(name string, depth uint8) *TypeRef { return &TypeRef{Name: name, Ptr: depth} }

func Int(v uint64) *Expr                    { return &Expr{Kind: ExprInt, Int: v} }
func IntN(v uint64, bits uint8) *Expr       { return &Expr{Kind: ExprInt, Int: v, Bits: bits} }
func Float(v float64) *Expr                 { return &Expr{Kind: ExprFloat, Float: v} }
func Bool(v bool) *Expr                     { return &Expr{Kind: ExprBool, Bool: v} }
func Str(s string) *Expr                    { return &Expr{Kind: ExprString, Str: s} }
func Ident(name string) *Expr               { return &Expr{Kind: ExprIdent, Name: name} }
func Unary(op string, x *Expr) *Expr        { return &Expr{Kind: ExprUnary, Op: op, X: x} }
func Binary(op string, x, y *Expr) *Expr    { return &Expr{Kind: ExprBinary, Op: op, X: x, Y: y} }
func Call(name string, args ...*Expr) *Expr { return &Expr{Kind: ExprCall, Name: name, Args: args} }
func Ternary(cond, x, y *Expr) *Expr        { return &Expr{Kind: ExprTernary, Cond: cond, X: x, Y: y} }
func Make(t *TypeRef, count *Expr) *Expr    { return &Expr{Kind: ExprMake, Type: t, Count: count} }
func Cast(t *TypeRef, x *Expr) *Expr        { return &Expr{Kind: ExprCast, Type: t, X: x} }

func Block(list ...*Stmt) *Stmt { return &Stmt{Kind: StmtBlock, List: list} }

func Let(name string, t *TypeRef, v *Expr) *Stmt {
	return &Stmt{Kind: StmtLet, Name: name, Type: t, Value: v}
}

func Assign(target, v *Expr) *Stmt { return &Stmt{Kind: StmtAssign, Target: target, Value: v} }
func Return(v *Expr) *Stmt         { return &Stmt{Kind: StmtReturn, Value: v} }
func Break() *Stmt                 { return &Stmt{Kind: StmtBreak} }
func Continue() *Stmt              { return &Stmt{Kind: StmtContinue} }
func Eval(v *Expr) *Stmt           { return &Stmt{Kind: StmtExpr, Value: v} }
func Drop(v *Expr) *Stmt           { return &Stmt{Kind: StmtDrop, Value: v} }

// If builds a branch; els may be nil.
func If(cond *Expr, then, els *Stmt) *Stmt {
	return &Stmt{Kind: StmtIf, Cond: cond, Then: then, Else: els}
}

// Loop builds a loop. init, cond and step may be nil; a nil cond loops until
// a break.
func Loop(init *Stmt, cond *Expr, step *Stmt, body *Stmt) *Stmt {
	return &Stmt{Kind: StmtLoop, Init: init, Cond: cond, Step: step, Body: body}
}

func While(cond *Expr, body *Stmt) *Stmt { return Loop(nil, cond, nil, body) }

func Func(name string, ret *TypeRef, params []*Param, body *Stmt) *Decl {
	return &Decl{Kind: DeclFunc, Name: name, Ret: ret, Params: params, Body: body}
}

func Extern(name string, ret *TypeRef, params []*Param, variadic bool) *Decl {
	return &Decl{Kind: DeclExtern, Name: name, Ret: ret, Params: params, Variadic: variadic}
}

func Struct(name, base string, fields ...*Field) *Decl {
	return &Decl{Kind: DeclStruct, Name: name, Base: base, Fields: fields}
}

func GlobalLet(name string, t *TypeRef, init *Expr) *Decl {
	return &Decl{Kind: DeclLet, Name: name, Type: t, Init: init}
}

func Export(names ...string) *Decl { return &Decl{Kind: DeclExport, Names: names} }

func P(name string, t *TypeRef) *Param { return &Param{Name: name, Type: t} }
