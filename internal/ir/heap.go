package ir

import "elang/internal/diag"

// Make allocates one t on the heap through malloc and returns a *t. The
// null check branches to an empty block: allocation failure is not handled.
func (m *Module) Make(t *Type) (*Value, error) {
	size, err := m.TypeSize(t)
	if err != nil {
		return nil, err
	}
	return m.makeSized(t, size, true)
}

// MakeN allocates count consecutive values of t.
func (m *Module) MakeN(t *Type, count *Value) (*Value, error) {
	size, err := m.TypeSize(t)
	if err != nil {
		return nil, err
	}
	n, err := m.PtrVal(count)
	if err != nil {
		return nil, err
	}
	if !n.typ.IsInteger() {
		return nil, m.errorf(diag.SemaTypeMismatch, "element count must be an integer, got %s", n.typ.name)
	}
	if n, err = m.convert(n, size.typ, diag.SemaTypeMismatch, "element count"); err != nil {
		return nil, err
	}
	total, err := m.Mul(size, n)
	if err != nil {
		return nil, err
	}
	return m.makeSized(t, total, false)
}

func (m *Module) makeSized(t *Type, size *Value, nullCheck bool) (*Value, error) {
	raw, err := m.callRuntime("malloc", size)
	if err != nil {
		return nil, err
	}
	if nullCheck {
		null, err := m.DefaultValue(raw.typ)
		if err != nil {
			return nil, err
		}
		cond := func() (*Value, error) { return m.Eq(raw, null) }
		if err := m.StmtBranch(cond, func() error { return nil }, nil); err != nil {
			return nil, err
		}
	}
	pt, err := t.PointerType()
	if err != nil {
		return nil, err
	}
	return m.Bitcast(raw, pt)
}

// Drop releases memory obtained from Make through free.
func (m *Module) Drop(ptr *Value) error {
	p, err := m.PtrVal(ptr)
	if err != nil {
		return err
	}
	if !p.typ.IsPointer() {
		return m.errorf(diag.SemaTypeMismatch, "cannot drop a value of type %s", p.typ.name)
	}
	if !p.typ.IsBytes() {
		if p, err = m.Bitcast(p, m.Bytes()); err != nil {
			return err
		}
	}
	_, err = m.callRuntime("free", p)
	return err
}

func (m *Module) callRuntime(name string, args ...*Value) (*Value, error) {
	if m.ValueSymbol(name, true) == nil {
		return nil, m.errorf(diag.SemaUnresolvedSymbol, "%s is not visible", name).
			WithNote("use the cstd module to allocate on the heap")
	}
	return m.CallNamed(name, args)
}
