package llvm

import (
	"errors"
	"fmt"
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"elang/internal/bridge"
)

// ErrStepLimit is returned when a JIT run exceeds Options.MaxSteps.
var ErrStepLimit = errors.New("jit: step limit exceeded")

const maxCallDepth = 10_000

// object is one allocation: a stack slot, a heap block or a global. Memory is
// modelled as typed cells keyed by byte offset.
type object struct {
	id    int
	size  int64
	cells map[int64]any
	freed bool
}

// ptr is a runtime address. The zero ptr is null.
type ptr struct {
	obj *object
	off int64
}

func (p ptr) isNull() bool { return p.obj == nil }

type machine struct {
	b       *Bridge
	defs    map[string]*ir.Func
	globals map[*ir.Global]ptr
	nextID  int
	steps   int
	depth   int
}

// JIT links every live module by function name and interprets main of module.
func (b *Bridge) JIT(module bridge.Handle) (int64, error) {
	ms, err := b.moduleOf(module)
	if err != nil {
		return 0, err
	}
	if err := b.Verify(module); err != nil {
		return 0, err
	}
	vm := &machine{
		b:       b,
		defs:    make(map[string]*ir.Func),
		globals: make(map[*ir.Global]ptr),
	}
	vm.link(ms)
	for _, other := range b.entries {
		if other.kind == entryModule && !other.mod.dropped && other.mod != ms {
			vm.link(other.mod)
		}
	}
	main, ok := vm.defs["main"]
	if !ok || main.Parent != ms.m {
		return 0, fmt.Errorf("jit: module %q has no main function", ms.name)
	}
	if len(main.Params) != 0 {
		return 0, errors.New("jit: main must take no parameters")
	}
	res, err := vm.call(main, nil)
	if err != nil {
		return 0, err
	}
	if n, ok := res.(int64); ok {
		return n, nil
	}
	return 0, nil
}

// link registers the function definitions of ms; earlier modules win.
func (vm *machine) link(ms *moduleState) {
	for _, f := range ms.m.Funcs {
		if len(f.Blocks) == 0 {
			continue
		}
		if _, ok := vm.defs[f.Name()]; !ok {
			vm.defs[f.Name()] = f
		}
	}
}

func (vm *machine) alloc(size int64) ptr {
	vm.nextID++
	return ptr{obj: &object{id: vm.nextID, size: size, cells: make(map[int64]any)}}
}

type frame struct {
	regs map[value.Value]any
	prev *ir.Block
}

func (vm *machine) call(f *ir.Func, args []any) (any, error) {
	if len(f.Blocks) == 0 {
		if def, ok := vm.defs[f.Name()]; ok {
			f = def
		} else if shim, ok := shims[f.Name()]; ok {
			return shim(vm, args)
		} else {
			return nil, fmt.Errorf("jit: undefined function %s", f.Name())
		}
	}
	vm.depth++
	defer func() { vm.depth-- }()
	if vm.depth > maxCallDepth {
		return nil, errors.New("jit: call depth exceeded")
	}
	fr := &frame{regs: make(map[value.Value]any, 32)}
	for i, p := range f.Params {
		if i < len(args) {
			fr.regs[p] = args[i]
		}
	}
	blk := f.Blocks[0]
	for {
		next, ret, done, err := vm.runBlock(fr, blk)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name(), err)
		}
		if done {
			return ret, nil
		}
		fr.prev, blk = blk, next
	}
}

func (vm *machine) runBlock(fr *frame, blk *ir.Block) (next *ir.Block, ret any, done bool, err error) {
	// Phis read their inputs on block entry, all at once.
	var phis map[value.Value]any
	for _, inst := range blk.Insts {
		phi, ok := inst.(*ir.InstPhi)
		if !ok {
			break
		}
		if phis == nil {
			phis = make(map[value.Value]any)
		}
		v, err := vm.phi(fr, phi)
		if err != nil {
			return nil, nil, false, err
		}
		phis[phi] = v
	}
	for k, v := range phis {
		fr.regs[k] = v
	}
	for _, inst := range blk.Insts {
		if _, ok := inst.(*ir.InstPhi); ok {
			continue
		}
		vm.steps++
		if vm.steps > vm.b.opts.MaxSteps {
			return nil, nil, false, ErrStepLimit
		}
		if err := vm.exec(fr, inst); err != nil {
			return nil, nil, false, err
		}
	}
	switch term := blk.Term.(type) {
	case *ir.TermRet:
		if term.X == nil {
			return nil, nil, true, nil
		}
		v, err := vm.eval(fr, term.X)
		return nil, v, true, err
	case *ir.TermBr:
		return asBlock(term.Target), nil, false, nil
	case *ir.TermCondBr:
		c, err := vm.eval(fr, term.Cond)
		if err != nil {
			return nil, nil, false, err
		}
		if toInt(c) != 0 {
			return asBlock(term.TargetTrue), nil, false, nil
		}
		return asBlock(term.TargetFalse), nil, false, nil
	case nil:
		return nil, nil, false, errors.New("block without terminator")
	default:
		return nil, nil, false, fmt.Errorf("unsupported terminator %T", term)
	}
}

func (vm *machine) phi(fr *frame, phi *ir.InstPhi) (any, error) {
	for _, inc := range phi.Incs {
		if asBlock(inc.Pred) == fr.prev {
			return vm.eval(fr, inc.X)
		}
	}
	return nil, errors.New("phi has no edge for the incoming block")
}

func (vm *machine) exec(fr *frame, inst ir.Instruction) error {
	var (
		res any
		err error
	)
	switch inst := inst.(type) {
	case *ir.InstAlloca:
		size, _, serr := sizeAlign(inst.ElemType)
		if serr != nil {
			size = pointerSize
		}
		res = vm.alloc(size)
	case *ir.InstLoad:
		res, err = vm.load(fr, inst.Src, inst.Type())
	case *ir.InstStore:
		err = vm.store(fr, inst.Dst, inst.Src)
		return err
	case *ir.InstAdd, *ir.InstSub, *ir.InstMul, *ir.InstSDiv, *ir.InstSRem,
		*ir.InstAnd, *ir.InstOr, *ir.InstXor, *ir.InstShl, *ir.InstAShr:
		res, err = vm.intOp(fr, inst)
	case *ir.InstFAdd, *ir.InstFSub, *ir.InstFMul, *ir.InstFDiv, *ir.InstFRem:
		res, err = vm.floatOp(fr, inst)
	case *ir.InstFNeg:
		var x any
		x, err = vm.eval(fr, inst.X)
		res = roundFloat(-toFloat(x), inst.Type())
	case *ir.InstICmp:
		res, err = vm.icmp(fr, inst)
	case *ir.InstFCmp:
		res, err = vm.fcmp(fr, inst)
	case *ir.InstSExt:
		var x any
		x, err = vm.eval(fr, inst.From)
		n := toInt(x)
		if bitsOf(inst.From.Type()) == 1 && n != 0 {
			n = -1
		}
		res = n
	case *ir.InstZExt:
		var x any
		x, err = vm.eval(fr, inst.From)
		res = zext(toInt(x), bitsOf(inst.From.Type()))
	case *ir.InstTrunc:
		var x any
		x, err = vm.eval(fr, inst.From)
		res = wrap(toInt(x), bitsOf(inst.To))
	case *ir.InstSIToFP:
		var x any
		x, err = vm.eval(fr, inst.From)
		res = roundFloat(float64(toInt(x)), inst.To)
	case *ir.InstFPExt:
		res, err = vm.eval(fr, inst.From)
	case *ir.InstFPTrunc:
		var x any
		x, err = vm.eval(fr, inst.From)
		res = roundFloat(toFloat(x), inst.To)
	case *ir.InstBitCast:
		res, err = vm.eval(fr, inst.From)
	case *ir.InstCall:
		res, err = vm.execCall(fr, inst)
	default:
		return fmt.Errorf("unsupported instruction %T", inst)
	}
	if err != nil {
		return err
	}
	if v, ok := inst.(value.Value); ok {
		fr.regs[v] = res
	}
	return nil
}

func (vm *machine) execCall(fr *frame, inst *ir.InstCall) (any, error) {
	callee, err := vm.eval(fr, inst.Callee)
	if err != nil {
		return nil, err
	}
	f, ok := callee.(*ir.Func)
	if !ok {
		return nil, fmt.Errorf("call through non-function value %v", callee)
	}
	args := make([]any, 0, len(inst.Args))
	for _, a := range inst.Args {
		v, err := vm.eval(fr, a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	res, err := vm.call(f, args)
	if err != nil {
		return nil, err
	}
	if it, ok := inst.Type().(*types.IntType); ok {
		return wrap(toInt(res), int(it.BitSize)), nil
	}
	return res, nil
}

func (vm *machine) intOp(fr *frame, inst ir.Instruction) (any, error) {
	var xv, yv value.Value
	switch inst := inst.(type) {
	case *ir.InstAdd:
		xv, yv = inst.X, inst.Y
	case *ir.InstSub:
		xv, yv = inst.X, inst.Y
	case *ir.InstMul:
		xv, yv = inst.X, inst.Y
	case *ir.InstSDiv:
		xv, yv = inst.X, inst.Y
	case *ir.InstSRem:
		xv, yv = inst.X, inst.Y
	case *ir.InstAnd:
		xv, yv = inst.X, inst.Y
	case *ir.InstOr:
		xv, yv = inst.X, inst.Y
	case *ir.InstXor:
		xv, yv = inst.X, inst.Y
	case *ir.InstShl:
		xv, yv = inst.X, inst.Y
	case *ir.InstAShr:
		xv, yv = inst.X, inst.Y
	}
	xa, err := vm.eval(fr, xv)
	if err != nil {
		return nil, err
	}
	ya, err := vm.eval(fr, yv)
	if err != nil {
		return nil, err
	}
	x, y := toInt(xa), toInt(ya)
	var r int64
	switch inst.(type) {
	case *ir.InstAdd:
		r = x + y
	case *ir.InstSub:
		r = x - y
	case *ir.InstMul:
		r = x * y
	case *ir.InstSDiv:
		if y == 0 {
			return nil, errors.New("integer division by zero")
		}
		r = x / y
	case *ir.InstSRem:
		if y == 0 {
			return nil, errors.New("integer division by zero")
		}
		r = x % y
	case *ir.InstAnd:
		r = x & y
	case *ir.InstOr:
		r = x | y
	case *ir.InstXor:
		r = x ^ y
	case *ir.InstShl:
		r = x << uint64(y&63)
	case *ir.InstAShr:
		r = x >> uint64(y&63)
	}
	return wrap(r, bitsOf(xv.Type())), nil
}

func (vm *machine) floatOp(fr *frame, inst ir.Instruction) (any, error) {
	var xv, yv value.Value
	switch inst := inst.(type) {
	case *ir.InstFAdd:
		xv, yv = inst.X, inst.Y
	case *ir.InstFSub:
		xv, yv = inst.X, inst.Y
	case *ir.InstFMul:
		xv, yv = inst.X, inst.Y
	case *ir.InstFDiv:
		xv, yv = inst.X, inst.Y
	case *ir.InstFRem:
		xv, yv = inst.X, inst.Y
	}
	xa, err := vm.eval(fr, xv)
	if err != nil {
		return nil, err
	}
	ya, err := vm.eval(fr, yv)
	if err != nil {
		return nil, err
	}
	x, y := toFloat(xa), toFloat(ya)
	var r float64
	switch inst.(type) {
	case *ir.InstFAdd:
		r = x + y
	case *ir.InstFSub:
		r = x - y
	case *ir.InstFMul:
		r = x * y
	case *ir.InstFDiv:
		r = x / y
	case *ir.InstFRem:
		r = math.Mod(x, y)
	}
	return roundFloat(r, xv.Type()), nil
}

func (vm *machine) icmp(fr *frame, inst *ir.InstICmp) (any, error) {
	xa, err := vm.eval(fr, inst.X)
	if err != nil {
		return nil, err
	}
	ya, err := vm.eval(fr, inst.Y)
	if err != nil {
		return nil, err
	}
	if xp, ok := xa.(ptr); ok {
		yp, _ := ya.(ptr)
		switch inst.Pred {
		case enum.IPredEQ:
			return boolInt(xp == yp), nil
		case enum.IPredNE:
			return boolInt(xp != yp), nil
		}
		return nil, fmt.Errorf("unsupported pointer comparison %s", inst.Pred)
	}
	x, y := toInt(xa), toInt(ya)
	switch inst.Pred {
	case enum.IPredEQ:
		return boolInt(x == y), nil
	case enum.IPredNE:
		return boolInt(x != y), nil
	case enum.IPredSGT:
		return boolInt(x > y), nil
	case enum.IPredSGE:
		return boolInt(x >= y), nil
	case enum.IPredSLT:
		return boolInt(x < y), nil
	case enum.IPredSLE:
		return boolInt(x <= y), nil
	}
	return nil, fmt.Errorf("unsupported integer predicate %s", inst.Pred)
}

func (vm *machine) fcmp(fr *frame, inst *ir.InstFCmp) (any, error) {
	xa, err := vm.eval(fr, inst.X)
	if err != nil {
		return nil, err
	}
	ya, err := vm.eval(fr, inst.Y)
	if err != nil {
		return nil, err
	}
	x, y := toFloat(xa), toFloat(ya)
	switch inst.Pred {
	case enum.FPredOEQ:
		return boolInt(x == y), nil
	case enum.FPredONE:
		return boolInt(x != y && !math.IsNaN(x) && !math.IsNaN(y)), nil
	case enum.FPredOGT:
		return boolInt(x > y), nil
	case enum.FPredOGE:
		return boolInt(x >= y), nil
	case enum.FPredOLT:
		return boolInt(x < y), nil
	case enum.FPredOLE:
		return boolInt(x <= y), nil
	}
	return nil, fmt.Errorf("unsupported float predicate %s", inst.Pred)
}

func (vm *machine) load(fr *frame, src value.Value, t types.Type) (any, error) {
	pv, err := vm.eval(fr, src)
	if err != nil {
		return nil, err
	}
	p, ok := pv.(ptr)
	if !ok || p.isNull() {
		return nil, errors.New("load through null pointer")
	}
	if p.obj.freed {
		return nil, errors.New("load from freed memory")
	}
	if v, ok := p.obj.cells[p.off]; ok {
		return v, nil
	}
	return zeroOf(t), nil
}

func (vm *machine) store(fr *frame, dst, src value.Value) error {
	pv, err := vm.eval(fr, dst)
	if err != nil {
		return err
	}
	v, err := vm.eval(fr, src)
	if err != nil {
		return err
	}
	p, ok := pv.(ptr)
	if !ok || p.isNull() {
		return errors.New("store through null pointer")
	}
	if p.obj.freed {
		return errors.New("store to freed memory")
	}
	p.obj.cells[p.off] = v
	return nil
}

func (vm *machine) eval(fr *frame, v value.Value) (any, error) {
	switch v := v.(type) {
	case *constant.Int:
		return v.X.Int64(), nil
	case *constant.Float:
		f, _ := v.X.Float64()
		return f, nil
	case *constant.Null:
		return ptr{}, nil
	case *constant.ZeroInitializer:
		return nil, nil
	case *constant.Undef:
		return zeroOf(v.Type()), nil
	case *ir.Func:
		return v, nil
	case *ir.Global:
		return vm.global(v), nil
	case *constant.ExprBitCast:
		return vm.eval(fr, v.From)
	case *constant.ExprGetElementPtr:
		return vm.gep(fr, v)
	}
	if r, ok := fr.regs[v]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("value %s used before definition", v.Ident())
}

// global materializes a global on first use. Character arrays are laid out
// one byte per cell.
func (vm *machine) global(g *ir.Global) ptr {
	if p, ok := vm.globals[g]; ok {
		return p
	}
	size, _, err := sizeAlign(g.ContentType)
	if err != nil {
		size = pointerSize
	}
	p := vm.alloc(size)
	if ca, ok := g.Init.(*constant.CharArray); ok {
		for i, c := range ca.X {
			p.obj.cells[int64(i)] = int64(c)
		}
	}
	vm.globals[g] = p
	return p
}

func (vm *machine) gep(fr *frame, e *constant.ExprGetElementPtr) (any, error) {
	base, err := vm.eval(fr, e.Src)
	if err != nil {
		return nil, err
	}
	p, ok := base.(ptr)
	if !ok {
		return nil, errors.New("getelementptr on non-pointer")
	}
	t := e.ElemType
	for i, idx := range e.Indices {
		iv, err := vm.eval(fr, idx)
		if err != nil {
			return nil, err
		}
		n := toInt(iv)
		if i == 0 {
			size, _, err := sizeAlign(t)
			if err != nil {
				return nil, err
			}
			p.off += n * size
			continue
		}
		switch tt := t.(type) {
		case *types.ArrayType:
			size, _, err := sizeAlign(tt.ElemType)
			if err != nil {
				return nil, err
			}
			p.off += n * size
			t = tt.ElemType
		case *types.StructType:
			offs, _, _, err := structLayout(tt)
			if err != nil {
				return nil, err
			}
			if n < 0 || int(n) >= len(offs) {
				return nil, fmt.Errorf("struct field %d out of range", n)
			}
			p.off += offs[n]
			t = tt.Fields[n]
		default:
			return nil, fmt.Errorf("cannot index into %s", t)
		}
	}
	return p, nil
}

func zeroOf(t types.Type) any {
	switch t.(type) {
	case *types.IntType:
		return int64(0)
	case *types.FloatType:
		return float64(0)
	case *types.PointerType:
		return ptr{}
	}
	return nil
}

func toInt(v any) int64 {
	switch v := v.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case ptr:
		if v.isNull() {
			return 0
		}
		return int64(v.obj.id)<<32 | v.off
	}
	return 0
}

func toFloat(v any) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func bitsOf(t types.Type) int {
	if it, ok := t.(*types.IntType); ok {
		return int(it.BitSize)
	}
	return 64
}

// wrap truncates n to bits and sign-extends the result back to 64 bits.
func wrap(n int64, bits int) int64 {
	switch bits {
	case 1:
		return n & 1
	case 8:
		return int64(int8(n))
	case 16:
		return int64(int16(n))
	case 32:
		return int64(int32(n))
	}
	return n
}

func zext(n int64, bits int) int64 {
	if bits >= 64 {
		return n
	}
	return n & (1<<uint(bits) - 1)
}

func roundFloat(f float64, t types.Type) float64 {
	if ft, ok := t.(*types.FloatType); ok && ft.Kind == types.FloatKindFloat {
		return float64(float32(f))
	}
	return f
}
