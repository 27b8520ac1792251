// Package llvm implements bridge.Bridge on top of github.com/llir/llvm.
//
// Every type, value, block and module the backend hands out lives in a
// slice-based arena; the arena index is the bridge.Handle. Types are interned
// structurally so that handle equality is type equality. Instruction emission
// goes through the active block, and the backend refuses to append anything
// after a block's terminator.
package llvm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"fortio.org/safecast"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"elang/internal/bridge"
)

// ErrTerminated is returned when an instruction is emitted into a block that
// already ends in a terminator.
var ErrTerminated = errors.New("block already terminated")

// ErrNoActiveBlock is returned when an instruction is emitted with no active
// block.
var ErrNoActiveBlock = errors.New("no active block")

// Options configure a Bridge.
type Options struct {
	// OutDir receives AOT output. Defaults to the working directory.
	OutDir string
	// Stdout receives output of programs run through JIT. Defaults to os.Stdout.
	Stdout io.Writer
	// MaxSteps bounds the number of instructions a JIT run may execute
	// (0 means 50 million).
	MaxSteps int
}

type entryKind uint8

const (
	entryInvalid entryKind = iota
	entryType
	entryValue
	entryBlock
	entryInst
	entryModule
)

type entry struct {
	kind  entryKind
	typ   types.Type
	tkind bridge.Kind
	name  string
	val   value.Value
	block *ir.Block
	ins   any
	mod   *moduleState
}

// Bridge is the llir-backed backend. It is not safe for concurrent use.
type Bridge struct {
	opts Options

	entries []entry

	typeIndex   map[string]bridge.Handle
	structIndex map[*types.StructType]bridge.Handle
	constIndex  map[string]bridge.Handle
	valueIndex  map[value.Value]bridge.Handle
	blockIndex  map[*ir.Block]bridge.Handle
	instIndex   map[any]bridge.Handle
	moduleIndex map[*ir.Module]*moduleState

	// owner maps locals (instructions, parameters) to their function.
	owner  map[value.Value]*ir.Func
	locals map[*ir.Func]map[string]int

	prims [primCount]bridge.Handle

	active     *ir.Block
	violations []violation
}

type violation struct {
	mod *moduleState
	err error
}

// New creates a backend with the given options.
func New(opts Options) *Bridge {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 50_000_000
	}
	b := &Bridge{
		opts:        opts,
		entries:     make([]entry, 1, 256), // index 0 reserved for NoHandle
		typeIndex:   make(map[string]bridge.Handle, 64),
		structIndex: make(map[*types.StructType]bridge.Handle),
		constIndex:  make(map[string]bridge.Handle, 64),
		valueIndex:  make(map[value.Value]bridge.Handle, 256),
		blockIndex:  make(map[*ir.Block]bridge.Handle, 64),
		instIndex:   make(map[any]bridge.Handle, 64),
		moduleIndex: make(map[*ir.Module]*moduleState),
		owner:       make(map[value.Value]*ir.Func, 256),
		locals:      make(map[*ir.Func]map[string]int),
	}
	b.initPrimitives()
	return b
}

var _ bridge.Bridge = (*Bridge)(nil)

func (b *Bridge) push(e entry) bridge.Handle {
	idx, err := safecast.Conv[uint32](len(b.entries))
	if err != nil {
		panic(fmt.Errorf("llvm bridge: handle arena overflow: %w", err))
	}
	b.entries = append(b.entries, e)
	return bridge.Handle(idx)
}

func (b *Bridge) get(h bridge.Handle) *entry {
	if !h.IsValid() || int(h) >= len(b.entries) {
		return nil
	}
	return &b.entries[h]
}

func (b *Bridge) typeOf(h bridge.Handle) (types.Type, bridge.Kind, error) {
	e := b.get(h)
	if e == nil || e.kind != entryType {
		return nil, bridge.KindInvalid, fmt.Errorf("handle %d is not a type", h)
	}
	return e.typ, e.tkind, nil
}

func (b *Bridge) valueOf(h bridge.Handle) (value.Value, error) {
	e := b.get(h)
	if e == nil {
		return nil, fmt.Errorf("handle %d is not a value", h)
	}
	switch e.kind {
	case entryValue:
		return e.val, nil
	case entryBlock:
		return e.block, nil
	default:
		return nil, fmt.Errorf("handle %d is not a value", h)
	}
}

func (b *Bridge) blockOf(h bridge.Handle) (*ir.Block, error) {
	e := b.get(h)
	if e == nil || e.kind != entryBlock {
		return nil, fmt.Errorf("handle %d is not a block", h)
	}
	return e.block, nil
}

// handleForValue returns the canonical handle for v, allocating one on first
// sight.
func (b *Bridge) handleForValue(v value.Value) bridge.Handle {
	if blk, ok := v.(*ir.Block); ok {
		return b.handleForBlock(blk)
	}
	if h, ok := b.valueIndex[v]; ok {
		return h
	}
	h := b.push(entry{kind: entryValue, val: v})
	b.valueIndex[v] = h
	return h
}

// handleForInst returns the handle of an instruction or terminator. Those that
// produce no value (store, br, ret) get an instruction entry.
func (b *Bridge) handleForInst(ins any) bridge.Handle {
	if v, ok := ins.(value.Value); ok {
		return b.handleForValue(v)
	}
	if h, ok := b.instIndex[ins]; ok {
		return h
	}
	h := b.push(entry{kind: entryInst, ins: ins})
	b.instIndex[ins] = h
	return h
}

func (b *Bridge) handleForBlock(blk *ir.Block) bridge.Handle {
	if h, ok := b.blockIndex[blk]; ok {
		return h
	}
	h := b.push(entry{kind: entryBlock, block: blk})
	b.blockIndex[blk] = h
	return h
}

// Violations returns the terminator-discipline violations recorded so far.
func (b *Bridge) Violations() []error {
	out := make([]error, 0, len(b.violations))
	for _, v := range b.violations {
		out = append(out, v.err)
	}
	return out
}

func (b *Bridge) violate(blk *ir.Block, err error) error {
	var ms *moduleState
	if blk != nil && blk.Parent != nil {
		ms = b.moduleIndex[blk.Parent.Parent]
	}
	b.violations = append(b.violations, violation{mod: ms, err: err})
	return err
}

// localName makes name unique among the named locals of f.
func (b *Bridge) localName(f *ir.Func, name string) string {
	if name == "" {
		return ""
	}
	seen := b.locals[f]
	if seen == nil {
		seen = make(map[string]int)
		b.locals[f] = seen
	}
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	return name + "." + strconv.Itoa(n)
}
