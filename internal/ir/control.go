package ir

import "elang/internal/diag"

// ExprFn lowers an expression and returns its value.
type ExprFn func() (*Value, error)

// StmtFn lowers a statement.
type StmtFn func() error

// TypeFn resolves a type lazily.
type TypeFn func() (*Type, error)

func (m *Module) eval(fn ExprFn, what string) (*Value, error) {
	if fn == nil {
		return nil, m.errorf(diag.SemaError, "%s: missing expression", what)
	}
	v, err := fn()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, m.errorf(diag.SemaError, "%s yields no value", what)
	}
	return v, nil
}

func (m *Module) evalCond(fn ExprFn) (*Value, error) {
	c, err := m.eval(fn, "condition")
	if err != nil {
		return nil, err
	}
	if c, err = m.PtrVal(c); err != nil {
		return nil, err
	}
	if !c.typ.IsBool() {
		return nil, m.errorf(diag.SemaTypeMismatch, "condition must be bool, got %s", c.typ.name)
	}
	return c, nil
}

// jumpUnlessTerminated jumps from the active block to target unless it is terminated.
func (m *Module) jumpUnlessTerminated(target *Block) error {
	if m.IsTerminated(nil) {
		return nil
	}
	_, err := m.Jump(target)
	return err
}

// StmtBlock runs body in a fresh child scope.
func (m *Module) StmtBlock(body StmtFn) (err error) {
	m.PushScope(nil)
	defer func() {
		if perr := m.PopScope(); err == nil {
			err = perr
		}
	}()
	if body == nil {
		return nil
	}
	return body()
}

// StmtDef defines name in the current scope, stored in a fresh slot. The
// initializer is converted to declared when that loses nothing; without an
// initializer the slot holds declared's default value.
func (m *Module) StmtDef(name string, declared *Type, init ExprFn) error {
	if m.scopes.LookupValue(m.current, name, false) != nil {
		return m.errorf(diag.SemaRedefinition, "%q is already defined in this scope", name)
	}
	var (
		v   *Value
		err error
	)
	switch {
	case init != nil:
		if v, err = m.eval(init, "initializer of "+name); err != nil {
			return err
		}
		if v, err = m.PtrVal(v); err != nil {
			return err
		}
	case declared != nil:
		if declared.IsVoid() {
			return m.errorf(diag.SemaVoidBinding, "%q cannot have type void", name)
		}
		if v, err = m.DefaultValue(declared); err != nil {
			return err
		}
	default:
		return m.errorf(diag.SemaError, "%q needs a type or an initializer", name)
	}
	if v.typ.IsVoid() {
		return m.errorf(diag.SemaVoidBinding, "cannot bind %q to a void value", name)
	}
	t := v.typ
	if declared != nil {
		if declared.IsVoid() {
			return m.errorf(diag.SemaVoidBinding, "%q cannot have type void", name)
		}
		if v, err = m.convert(v, declared, diag.SemaTypeMismatch, "definition of "+name); err != nil {
			return err
		}
		t = declared
	}
	slot, err := m.AllocInit(name, t, v)
	if err != nil {
		return err
	}
	return m.AddValueSymbol(name, slot)
}

// StmtAssign stores the value of rhs into the slot of lhs.
func (m *Module) StmtAssign(lhs, rhs ExprFn) error {
	l, err := m.eval(lhs, "assignment target")
	if err != nil {
		return err
	}
	r, err := m.eval(rhs, "assigned value")
	if err != nil {
		return err
	}
	ref, err := m.PtrRef(l)
	if err != nil {
		return err
	}
	val, err := m.PtrVal(r)
	if err != nil {
		return err
	}
	if elem := ref.typ.Elem(); elem != nil {
		if val, err = m.convert(val, elem, diag.SemaTypeMismatch, "assignment"); err != nil {
			return err
		}
	}
	_, err = m.Store(ref, val)
	return err
}

// StmtReturn returns from the enclosing function. A void function takes no
// expression; any other function requires one of a compatible type.
func (m *Module) StmtReturn(expr ExprFn) error {
	fn := m.EnclosingFunc()
	if fn == nil {
		return m.errorf(diag.SemaNoFunction, "return outside of a function")
	}
	ret := m.FuncRetType(fn)
	if ret == nil || ret.IsVoid() {
		if expr != nil {
			return m.errorf(diag.SemaReturnMismatch, "void function cannot return a value")
		}
		_, err := m.Ret(nil)
		return err
	}
	if expr == nil {
		return m.errorf(diag.SemaReturnMismatch, "missing return value of type %s", ret.name)
	}
	v, err := m.eval(expr, "return value")
	if err != nil {
		return err
	}
	if v, err = m.PtrVal(v); err != nil {
		return err
	}
	if v, err = m.convert(v, ret, diag.SemaReturnMismatch, "return"); err != nil {
		return err
	}
	_, err = m.Ret(v)
	return err
}

// StmtBranch lowers if/else. onFalse may be nil. Both arms fall through to a
// common end block, which is active afterwards.
func (m *Module) StmtBranch(cond ExprFn, onTrue, onFalse StmtFn) error {
	c, err := m.evalCond(cond)
	if err != nil {
		return err
	}
	blkTrue, err := m.CreateBlock("branch.true")
	if err != nil {
		return err
	}
	blkFalse, err := m.CreateBlock("branch.false")
	if err != nil {
		return err
	}
	blkEnd, err := m.CreateBlock("branch.end")
	if err != nil {
		return err
	}
	if _, err := m.JumpCond(c, blkTrue, blkFalse); err != nil {
		return err
	}
	if err := m.branchArm(blkTrue, onTrue, blkEnd); err != nil {
		return err
	}
	if err := m.branchArm(blkFalse, onFalse, blkEnd); err != nil {
		return err
	}
	return m.SetActiveBlock(blkEnd)
}

func (m *Module) branchArm(blk *Block, body StmtFn, end *Block) error {
	if err := m.SetActiveBlock(blk); err != nil {
		return err
	}
	if body != nil {
		if err := body(); err != nil {
			return err
		}
	}
	if err := m.jumpUnlessTerminated(end); err != nil {
		return err
	}
	// the body may have moved the cursor and left its entry open
	if !m.IsTerminated(blk) {
		if err := m.SetActiveBlock(blk); err != nil {
			return err
		}
		return m.jumpUnlessTerminated(end)
	}
	return nil
}

// StmtLoop lowers init; while cond { body; step }. cond may be nil for an
// unconditional loop. break targets the end block and continue the step
// block; both targets and the scope are restored on every exit.
func (m *Module) StmtLoop(init StmtFn, cond ExprFn, step, body StmtFn) (err error) {
	m.PushScope(nil)
	prevBreak, prevContinue := m.breakTarget, m.continueTarget
	defer func() {
		m.breakTarget, m.continueTarget = prevBreak, prevContinue
		if perr := m.PopScope(); err == nil {
			err = perr
		}
	}()

	if init != nil {
		if err := init(); err != nil {
			return err
		}
	}
	blkCond, err := m.CreateBlock("loop.cond")
	if err != nil {
		return err
	}
	blkStep, err := m.CreateBlock("loop.step")
	if err != nil {
		return err
	}
	blkBody, err := m.CreateBlock("loop.body")
	if err != nil {
		return err
	}
	blkEnd, err := m.CreateBlock("loop.end")
	if err != nil {
		return err
	}
	if err := m.jumpUnlessTerminated(blkCond); err != nil {
		return err
	}

	if err := m.SetActiveBlock(blkCond); err != nil {
		return err
	}
	if cond != nil {
		c, err := m.evalCond(cond)
		if err != nil {
			return err
		}
		if _, err := m.JumpCond(c, blkBody, blkEnd); err != nil {
			return err
		}
	} else if _, err := m.Jump(blkBody); err != nil {
		return err
	}

	m.breakTarget, m.continueTarget = blkEnd, blkStep
	if err := m.SetActiveBlock(blkBody); err != nil {
		return err
	}
	if body != nil {
		if err := body(); err != nil {
			return err
		}
	}
	if err := m.jumpUnlessTerminated(blkStep); err != nil {
		return err
	}

	if err := m.SetActiveBlock(blkStep); err != nil {
		return err
	}
	if step != nil {
		if err := step(); err != nil {
			return err
		}
	}
	if err := m.jumpUnlessTerminated(blkCond); err != nil {
		return err
	}
	return m.SetActiveBlock(blkEnd)
}

// StmtBreak jumps to the end of the innermost loop.
func (m *Module) StmtBreak() error {
	if m.breakTarget == nil {
		return m.errorf(diag.SemaBreakOutsideLoop, "break outside of a loop")
	}
	_, err := m.Jump(m.breakTarget)
	return err
}

// StmtContinue jumps to the step block of the innermost loop.
func (m *Module) StmtContinue() error {
	if m.continueTarget == nil {
		return m.errorf(diag.SemaContinueOutside, "continue outside of a loop")
	}
	_, err := m.Jump(m.continueTarget)
	return err
}

// InLoop reports whether break and continue have a target.
func (m *Module) InLoop() bool { return m.breakTarget != nil }

// ExprBranch lowers cond ? onTrue : onFalse into a phi. Both arms must yield
// the same type. Each phi edge comes from the block active when its arm
// finished, so arms may contain their own control flow.
func (m *Module) ExprBranch(cond, onTrue, onFalse ExprFn) (*Value, error) {
	blkBegin, err := m.CreateBlock("trinary.begin")
	if err != nil {
		return nil, err
	}
	blkTrue, err := m.CreateBlock("trinary.true")
	if err != nil {
		return nil, err
	}
	blkFalse, err := m.CreateBlock("trinary.false")
	if err != nil {
		return nil, err
	}
	blkEnd, err := m.CreateBlock("trinary.end")
	if err != nil {
		return nil, err
	}
	if _, err := m.Jump(blkBegin); err != nil {
		return nil, err
	}
	if err := m.SetActiveBlock(blkBegin); err != nil {
		return nil, err
	}
	c, err := m.evalCond(cond)
	if err != nil {
		return nil, err
	}
	if _, err := m.JumpCond(c, blkTrue, blkFalse); err != nil {
		return nil, err
	}

	arm := func(blk *Block, fn ExprFn, what string) (*Value, *Block, error) {
		if err := m.SetActiveBlock(blk); err != nil {
			return nil, nil, err
		}
		v, err := m.eval(fn, what)
		if err != nil {
			return nil, nil, err
		}
		if v, err = m.PtrVal(v); err != nil {
			return nil, nil, err
		}
		from := m.ActiveBlock()
		if _, err := m.Jump(blkEnd); err != nil {
			return nil, nil, err
		}
		return v, from, nil
	}
	tv, fromTrue, err := arm(blkTrue, onTrue, "true branch")
	if err != nil {
		return nil, err
	}
	fv, fromFalse, err := arm(blkFalse, onFalse, "false branch")
	if err != nil {
		return nil, err
	}

	if err := m.SetActiveBlock(blkEnd); err != nil {
		return nil, err
	}
	if !EqualsType(tv.typ, fv.typ) {
		return nil, m.errorf(diag.SemaTypeMismatch, "branches differ in type: %s and %s", tv.typ.name, fv.typ.name)
	}
	return m.Phi(tv.typ, []Incoming{
		{Value: tv, Block: fromTrue},
		{Value: fv, Block: fromFalse},
	})
}

// EnsureTailRet terminates the active block of fn with a return when the
// body left it open: ret void, or ret of the return type's default value.
func (m *Module) EnsureTailRet(fn *Value) error {
	if m.ActiveBlock() == nil || m.IsTerminated(nil) {
		return nil
	}
	ret := m.FuncRetType(fn)
	if ret == nil {
		return m.errorf(diag.SemaNotCallable, "value of type %s is not a function", fn.typ.name)
	}
	if ret.IsVoid() {
		_, err := m.Ret(nil)
		return err
	}
	def, err := m.DefaultValue(ret)
	if err != nil {
		return err
	}
	_, err = m.Ret(def)
	return err
}
