package ir

import (
	"fmt"

	"fortio.org/safecast"
	"golang.org/x/text/unicode/norm"

	"elang/internal/diag"
)

// ScopeID identifies a scope in a module's arena.
type ScopeID uint32

// NoScopeID marks the absence of a scope reference.
const NoScopeID ScopeID = 0

// IsValid reports whether the scope ID refers to an allocated scope.
func (id ScopeID) IsValid() bool { return id != NoScopeID }

// Symbol is a named binding. Type symbols carry only Type; value symbols carry
// Value and its Type.
type Symbol struct {
	Name  string
	Type  *Type
	Value *Value
}

type symbolTable struct {
	index map[string]*Symbol
	order []*Symbol
}

func (t *symbolTable) get(name string) *Symbol {
	return t.index[name]
}

func (t *symbolTable) add(sym *Symbol) bool {
	if t.index == nil {
		t.index = make(map[string]*Symbol)
	}
	if _, ok := t.index[sym.Name]; ok {
		return false
	}
	t.index[sym.Name] = sym
	t.order = append(t.order, sym)
	return true
}

func (t *symbolTable) find(pred func(*Symbol) bool) *Symbol {
	for _, sym := range t.order {
		if pred(sym) {
			return sym
		}
	}
	return nil
}

type scope struct {
	parent   ScopeID
	children []ScopeID
	fn       *Value
	types    symbolTable
	values   symbolTable
}

// Scopes stores every scope of a module in a slice-based arena. Scopes are
// never freed before the module itself is dropped.
type Scopes struct {
	data []scope
}

// NewScopes creates an arena with optional capacity hint.
func NewScopes(capacity uint32) *Scopes {
	if capacity == 0 {
		capacity = 16
	}
	return &Scopes{
		data: make([]scope, 1, capacity+1), // index 0 reserved for NoScopeID
	}
}

// AddChild allocates a scope under parent. A nil fn inherits the parent's
// enclosing function. NoScopeID as parent creates a root.
func (s *Scopes) AddChild(parent ScopeID, fn *Value) ScopeID {
	value, err := safecast.Conv[uint32](len(s.data))
	if err != nil {
		panic(fmt.Errorf("scopes arena overflow: %w", err))
	}
	id := ScopeID(value)
	if p := s.get(parent); p != nil {
		if fn == nil {
			fn = p.fn
		}
		p.children = append(p.children, id)
	}
	s.data = append(s.data, scope{parent: parent, fn: fn})
	return id
}

func (s *Scopes) get(id ScopeID) *scope {
	if !id.IsValid() || int(id) >= len(s.data) {
		return nil
	}
	return &s.data[id]
}

// Len reports total number of scopes excluding the sentinel.
func (s *Scopes) Len() int { return len(s.data) - 1 }

// Parent returns the parent of id, or NoScopeID for a root.
func (s *Scopes) Parent(id ScopeID) ScopeID {
	if sc := s.get(id); sc != nil {
		return sc.parent
	}
	return NoScopeID
}

// Children returns the scopes created under id.
func (s *Scopes) Children(id ScopeID) []ScopeID {
	if sc := s.get(id); sc != nil {
		return sc.children
	}
	return nil
}

// Func returns the function enclosing id, or nil at module level.
func (s *Scopes) Func(id ScopeID) *Value {
	if sc := s.get(id); sc != nil {
		return sc.fn
	}
	return nil
}

// AddType binds name to t in scope id.
func (s *Scopes) AddType(id ScopeID, name string, t *Type) error {
	sc := s.get(id)
	if sc == nil {
		return diag.Errorf(diag.SemaError, "invalid scope %d", id)
	}
	name = norm.NFC.String(name)
	if !sc.types.add(&Symbol{Name: name, Type: t}) {
		return diag.Errorf(diag.SemaRedefinition, "type %q is already defined in this scope", name)
	}
	return nil
}

// AddValue binds name to v in scope id.
func (s *Scopes) AddValue(id ScopeID, name string, v *Value) error {
	sc := s.get(id)
	if sc == nil {
		return diag.Errorf(diag.SemaError, "invalid scope %d", id)
	}
	name = norm.NFC.String(name)
	sym := &Symbol{Name: name, Value: v}
	if v != nil {
		sym.Type = v.Type()
	}
	if !sc.values.add(sym) {
		return diag.Errorf(diag.SemaRedefinition, "%q is already defined in this scope", name)
	}
	return nil
}

// LookupType resolves a type symbol. With lookup set the parent chain is
// walked up to the root; otherwise only id itself is inspected.
func (s *Scopes) LookupType(id ScopeID, name string, lookup bool) *Symbol {
	name = norm.NFC.String(name)
	return s.walk(id, lookup, func(sc *scope) *Symbol { return sc.types.get(name) })
}

// LookupValue resolves a value symbol with the same rules as LookupType.
func (s *Scopes) LookupValue(id ScopeID, name string, lookup bool) *Symbol {
	name = norm.NFC.String(name)
	return s.walk(id, lookup, func(sc *scope) *Symbol { return sc.values.get(name) })
}

// FindType returns the first type symbol satisfying pred.
func (s *Scopes) FindType(id ScopeID, pred func(*Symbol) bool, lookup bool) *Symbol {
	return s.walk(id, lookup, func(sc *scope) *Symbol { return sc.types.find(pred) })
}

// FindValue returns the first value symbol satisfying pred.
func (s *Scopes) FindValue(id ScopeID, pred func(*Symbol) bool, lookup bool) *Symbol {
	return s.walk(id, lookup, func(sc *scope) *Symbol { return sc.values.find(pred) })
}

// Types lists the type symbols of id in definition order.
func (s *Scopes) Types(id ScopeID) []*Symbol {
	if sc := s.get(id); sc != nil {
		return sc.types.order
	}
	return nil
}

// Values lists the value symbols of id in definition order.
func (s *Scopes) Values(id ScopeID) []*Symbol {
	if sc := s.get(id); sc != nil {
		return sc.values.order
	}
	return nil
}

func (s *Scopes) walk(id ScopeID, lookup bool, probe func(*scope) *Symbol) *Symbol {
	for sc := s.get(id); sc != nil; sc = s.get(sc.parent) {
		if sym := probe(sc); sym != nil {
			return sym
		}
		if !lookup {
			break
		}
	}
	return nil
}
