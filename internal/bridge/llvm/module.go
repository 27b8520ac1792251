package llvm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/llir/llvm/ir"

	"elang/internal/bridge"
)

type moduleState struct {
	handle  bridge.Handle
	name    string
	m       *ir.Module
	dropped bool

	funcs     map[string]*ir.Func
	strings   map[string]bridge.Handle
	typeNames map[string]int
	globals   int
}

func (ms *moduleState) uniqueTypeName(name string) string {
	n := ms.typeNames[name]
	ms.typeNames[name] = n + 1
	if n == 0 {
		return name
	}
	return name + "." + strconv.Itoa(n)
}

func (ms *moduleState) uniqueGlobalName(prefix string) string {
	name := prefix
	if ms.globals > 0 {
		name = prefix + "." + strconv.Itoa(ms.globals)
	}
	ms.globals++
	return name
}

func (b *Bridge) moduleOf(h bridge.Handle) (*moduleState, error) {
	e := b.get(h)
	if e == nil || e.kind != entryModule {
		return nil, fmt.Errorf("handle %d is not a module", h)
	}
	if e.mod.dropped {
		return nil, fmt.Errorf("module %q was dropped", e.mod.name)
	}
	return e.mod, nil
}

// MakeModule creates an empty LLVM module.
func (b *Bridge) MakeModule(name string) (bridge.Handle, error) {
	if name == "" {
		return bridge.NoHandle, errors.New("module name is empty")
	}
	m := ir.NewModule()
	m.SourceFilename = name
	ms := &moduleState{
		name:      name,
		m:         m,
		funcs:     make(map[string]*ir.Func),
		strings:   make(map[string]bridge.Handle),
		typeNames: make(map[string]int),
	}
	ms.handle = b.push(entry{kind: entryModule, mod: ms, name: name})
	b.moduleIndex[m] = ms
	return ms.handle, nil
}

// DropModule releases a module. Handles into it stay allocated but the module
// no longer takes part in JIT linking.
func (b *Bridge) DropModule(module bridge.Handle) {
	ms, err := b.moduleOf(module)
	if err != nil {
		return
	}
	ms.dropped = true
	if b.active != nil && b.active.Parent != nil && b.active.Parent.Parent == ms.m {
		b.active = nil
	}
}

// DumpModule renders the module as LLVM textual IR.
func (b *Bridge) DumpModule(module bridge.Handle) (out string) {
	ms, err := b.moduleOf(module)
	if err != nil {
		return "; " + err.Error() + "\n"
	}
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("; module %q cannot be printed: %v\n", ms.name, r)
		}
	}()
	return ms.m.String()
}

// AOT verifies the module and writes its IR to <OutDir>/<name>.ll.
func (b *Bridge) AOT(module bridge.Handle) (string, error) {
	ms, err := b.moduleOf(module)
	if err != nil {
		return "", err
	}
	if err := b.Verify(module); err != nil {
		return "", err
	}
	dir := b.opts.OutDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, ms.name+".ll")
	if err := os.WriteFile(path, []byte(b.DumpModule(module)), 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Verify reports every block of module without a terminator and every
// terminator-discipline violation recorded against it.
func (b *Bridge) Verify(module bridge.Handle) error {
	ms, err := b.moduleOf(module)
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range ms.m.Funcs {
		for i, blk := range f.Blocks {
			if blk.Term == nil {
				errs = append(errs, fmt.Errorf("function %s: block %s has no terminator", f.Name(), blockLabel(blk, i)))
			}
		}
	}
	for _, v := range b.violations {
		if v.mod == ms {
			errs = append(errs, v.err)
		}
	}
	return errors.Join(errs...)
}

func blockLabel(blk *ir.Block, index int) string {
	if name := blk.Name(); name != "" {
		return name
	}
	return "#" + strconv.Itoa(index)
}
