package buildpipeline

import (
	"fmt"

	"elang/internal/diag"
	"elang/internal/driver"
	"elang/internal/ir"
)

// EntryFunc is the function JIT runs.
const EntryFunc = "main"

// ValidateEntrypoint ensures module entry is loaded and defines main itself
// (an imported main does not count) with an integer or void result.
func ValidateEntrypoint(c *ir.Context, entry string) (*ir.Module, error) {
	if c == nil {
		return nil, fmt.Errorf("missing compilation context")
	}
	if entry == "" {
		return nil, diag.Errorf(diag.BackendNoEntry, "no entry module")
	}
	m := c.Module(entry)
	if m == nil {
		return nil, diag.Errorf(diag.BackendNoEntry, "entry module %q was not built", entry)
	}
	sym := m.Scopes().LookupValue(m.Root(), EntryFunc, false)
	if sym == nil || sym.Value == nil {
		return nil, diag.Errorf(diag.BackendNoEntry, "no %s function found in module %q", EntryFunc, entry)
	}
	ret := m.FuncRetType(sym.Value)
	if ret == nil {
		return nil, diag.Errorf(diag.BackendNoEntry, "%s::%s is not a function", entry, EntryFunc)
	}
	if !ret.IsVoid() && !ret.IsInteger() {
		return nil, diag.Errorf(diag.BackendNoEntry, "%s::%s must return an integer, not %s", entry, EntryFunc, ret.Name())
	}
	return m, nil
}

// DefaultEntry picks the entry module when none was requested: the only
// built module that no other built module imports, or "main" when that is
// ambiguous. It returns "" if neither exists.
func DefaultEntry(res *driver.Result) string {
	if res == nil {
		return ""
	}
	imported := make(map[string]bool)
	for _, mr := range res.Modules {
		if mr.Module == nil {
			continue
		}
		for _, imp := range mr.Imports {
			imported[imp] = true
		}
	}
	var roots []string
	for _, name := range res.Order() {
		if !imported[name] {
			roots = append(roots, name)
		}
	}
	if len(roots) == 1 {
		return roots[0]
	}
	if res.Module(EntryFunc) != nil && res.Module(EntryFunc).Module != nil {
		return EntryFunc
	}
	return ""
}
