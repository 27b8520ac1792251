package ir

import (
	"elang/internal/diag"
	"elang/internal/trace"
)

// AddTypeSymbol binds name to t in the current scope.
func (m *Module) AddTypeSymbol(name string, t *Type) error {
	if err := m.scopes.AddType(m.current, name, t); err != nil {
		trace.EmitError(m.tracer, trace.ScopeNode, m.name, err, m.span)
		return err
	}
	return nil
}

// TypeSymbol resolves name in the current scope (and its ancestors when
// lookup is set), falling back to the imports.
func (m *Module) TypeSymbol(name string, lookup bool) *Symbol {
	if sym := m.scopes.LookupType(m.current, name, lookup); sym != nil {
		return sym
	}
	return m.scopes.LookupType(m.imports, name, false)
}

// AddValueSymbol binds name to v in the current scope.
func (m *Module) AddValueSymbol(name string, v *Value) error {
	if err := m.scopes.AddValue(m.current, name, v); err != nil {
		trace.EmitError(m.tracer, trace.ScopeNode, m.name, err, m.span)
		return err
	}
	return nil
}

// ValueSymbol resolves a value symbol with the rules of TypeSymbol.
func (m *Module) ValueSymbol(name string, lookup bool) *Symbol {
	if sym := m.scopes.LookupValue(m.current, name, lookup); sym != nil {
		return sym
	}
	return m.scopes.LookupValue(m.imports, name, false)
}

// ResolveType returns the type bound to name anywhere visible.
func (m *Module) ResolveType(name string) (*Type, error) {
	sym := m.TypeSymbol(name, true)
	if sym == nil || sym.Type == nil {
		return nil, m.errorf(diag.SemaUnresolvedType, "unknown type %q", name)
	}
	return sym.Type, nil
}

// ResolveValue returns the value bound to name anywhere visible.
func (m *Module) ResolveValue(name string) (*Value, error) {
	sym := m.ValueSymbol(name, true)
	if sym == nil || sym.Value == nil {
		return nil, m.errorf(diag.SemaUnresolvedSymbol, "unknown symbol %q", name)
	}
	return sym.Value, nil
}

// Use declares a dependency on the context module name and copies its
// exports into this module's imports. The first collision with an imported
// or locally visible name aborts; symbols copied before it stay imported.
func (m *Module) Use(name string) error {
	dep := m.ctx.Module(name)
	if dep == nil {
		return m.errorf(diag.ModNotFound, "module %q is not loaded", name)
	}
	if _, ok := m.deps[name]; ok {
		return m.errorf(diag.ModDuplicateDependency, "module %q is already used", name)
	}
	if dep == m {
		return m.errorf(diag.ModDuplicateDependency, "module %q cannot use itself", name)
	}
	m.deps[name] = dep
	m.depOrder = append(m.depOrder, name)

	span := trace.BeginIn(m.tracer, trace.ScopeModule, m.name, "use "+name, m.span)
	defer span.End("")

	for _, sym := range dep.scopes.Types(dep.exports) {
		if m.TypeSymbol(sym.Name, true) != nil {
			return m.errorf(diag.ModImportCollision, "type %q imported from %s collides with an existing name", sym.Name, name)
		}
		if err := m.scopes.AddType(m.imports, sym.Name, m.adoptType(sym.Type)); err != nil {
			return err
		}
	}
	for _, sym := range dep.scopes.Values(dep.exports) {
		if m.ValueSymbol(sym.Name, true) != nil {
			return m.errorf(diag.ModImportCollision, "%q imported from %s collides with an existing name", sym.Name, name)
		}
		if err := m.scopes.AddValue(m.imports, sym.Name, m.adoptValue(sym.Value)); err != nil {
			return err
		}
	}
	return nil
}

// Export publishes the visible type and value symbols called name.
func (m *Module) Export(name string) error {
	tsym := m.scopes.LookupType(m.current, name, true)
	vsym := m.scopes.LookupValue(m.current, name, true)
	if tsym == nil && vsym == nil {
		return m.errorf(diag.SemaUnresolvedSymbol, "cannot export unknown symbol %q", name)
	}
	if tsym != nil {
		if err := m.scopes.AddType(m.exports, tsym.Name, tsym.Type); err != nil {
			return err
		}
	}
	if vsym != nil {
		if err := m.scopes.AddValue(m.exports, vsym.Name, vsym.Value); err != nil {
			return err
		}
	}
	return nil
}

// ExportAll publishes every symbol of the root scope.
func (m *Module) ExportAll() error {
	for _, sym := range m.scopes.Types(m.root) {
		if m.scopes.LookupType(m.exports, sym.Name, false) != nil {
			continue
		}
		if err := m.scopes.AddType(m.exports, sym.Name, sym.Type); err != nil {
			return err
		}
	}
	for _, sym := range m.scopes.Values(m.root) {
		if m.scopes.LookupValue(m.exports, sym.Name, false) != nil {
			continue
		}
		if err := m.scopes.AddValue(m.exports, sym.Name, sym.Value); err != nil {
			return err
		}
	}
	return nil
}

// PushScope enters a child of the current scope. A nil fn keeps the
// enclosing function.
func (m *Module) PushScope(fn *Value) ScopeID {
	m.current = m.scopes.AddChild(m.current, fn)
	return m.current
}

// PopScope returns to the parent of the current scope. The popped scope stays
// in the arena.
func (m *Module) PopScope() error {
	parent := m.scopes.Parent(m.current)
	if !parent.IsValid() {
		return m.errorf(diag.SemaError, "cannot pop the root scope of %s", m.name)
	}
	m.current = parent
	return nil
}

// Scope returns the current scope.
func (m *Module) Scope() ScopeID { return m.current }

// EnclosingFunc returns the function enclosing the current scope, or nil.
func (m *Module) EnclosingFunc() *Value { return m.scopes.Func(m.current) }
