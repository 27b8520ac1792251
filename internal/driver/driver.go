// Package driver loads AST files, orders the modules they declare by their
// imports and builds them into an ir.Context.
package driver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"elang/internal/ast"
	"elang/internal/coder"
	"elang/internal/diag"
	"elang/internal/ir"
	"elang/internal/project"
	"elang/internal/project/dag"
	"elang/internal/trace"
)

// Options configures Build.
type Options struct {
	// Root bounds relative imports. Empty means unbounded.
	Root           string
	MaxDiagnostics int
	Jobs           int
	Observer       Observer
}

// ModuleResult describes one module of the build.
type ModuleResult struct {
	Name    string
	Path    string
	AST     *ast.Module
	Module  *ir.Module // nil unless the module was built and verified
	Imports []string
	Bag     *diag.Bag
	Broken  bool
	Elapsed time.Duration
}

// Result aggregates the outcome of Build.
type Result struct {
	Files   []string
	Modules []*ModuleResult // in build order; unbuildable modules last
	Bag     *diag.Bag
	byName  map[string]*ModuleResult
}

// Module returns the result for name, or nil.
func (r *Result) Module(name string) *ModuleResult {
	if r == nil {
		return nil
	}
	return r.byName[name]
}

// Order lists the names of the modules that were built, dependencies first.
func (r *Result) Order() []string {
	var out []string
	for _, m := range r.Modules {
		if m.Module != nil {
			out = append(out, m.Name)
		}
	}
	return out
}

// HasErrors reports whether any module failed.
func (r *Result) HasErrors() bool {
	return r != nil && r.Bag != nil && r.Bag.HasErrors()
}

// Build discovers the AST files under paths, decodes them and loads every
// module into c, dependencies first. A module that fails is reported and
// every module importing it is skipped; unrelated modules still build.
// The returned error is reserved for failures that stop the whole run.
func Build(ctx context.Context, c *ir.Context, paths []string, opts Options) (*Result, error) {
	tracer := trace.FromContext(ctx)
	root := trace.Begin(tracer, trace.ScopeDriver, "driver", trace.SpanFrom(ctx))
	defer root.End("")
	ctx = trace.WithSpan(ctx, root)

	span := trace.Begin(tracer, trace.ScopePass, "discover", root.ID())
	files, err := Discover(paths...)
	span.WithExtra("files", fmt.Sprint(len(files))).End("")
	if err != nil {
		return nil, diag.Wrap(diag.ProjLoadFile, err, "discover sources")
	}
	if len(files) == 0 {
		return nil, diag.Errorf(diag.ProjNoSources, "no %s files found", ast.Ext)
	}
	return BuildFiles(ctx, c, files, opts)
}

// BuildFiles is Build over an explicit file list.
func BuildFiles(ctx context.Context, c *ir.Context, files []string, opts Options) (*Result, error) {
	tracer := trace.FromContext(ctx)
	notify := func(ev ModuleEvent) {
		if opts.Observer != nil {
			opts.Observer(ev)
		}
	}

	files, err := absPaths(files)
	if err != nil {
		return nil, diag.Wrap(diag.ProjLoadFile, err, "resolve sources")
	}
	if opts.Root != "" {
		if opts.Root, err = filepath.Abs(opts.Root); err != nil {
			return nil, diag.Wrap(diag.ProjLoadFile, err, "resolve project root")
		}
	}

	parent := trace.SpanFrom(ctx)
	span := trace.Begin(tracer, trace.ScopePass, "decode", parent)
	decoded, err := DecodeFiles(ctx, files, opts.MaxDiagnostics, opts.Jobs, opts.Observer)
	span.End("")
	if err != nil {
		return nil, err
	}

	span = trace.Begin(tracer, trace.ScopePass, "order", parent)
	p := plan(c, decoded, opts)
	span.WithExtra("modules", fmt.Sprint(len(p.nodes))).End("")

	span = trace.Begin(tracer, trace.ScopePass, "build", parent)
	defer span.End("")
	for _, id := range p.topo.Order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slot := &p.slots[int(id)]
		mr := p.results[slot.Node.Name]
		if !slot.Broken {
			if dep, ok := dag.BrokenDep(p.graph, p.slots, id); ok {
				dag.MarkDependencyFailed(p.idx, p.slots, id, dep)
			}
		}
		if slot.Broken {
			mr.Broken = true
			notify(ModuleEvent{Module: mr.Name, File: mr.Path, Phase: PhaseBuild, Status: PhaseSkipped})
			continue
		}

		notify(ModuleEvent{Module: mr.Name, File: mr.Path, Phase: PhaseBuild, Status: PhaseStart})
		start := time.Now()
		m, err := c.Load(mr.Name, coder.Build(ctx, mr.AST))
		if err == nil {
			notify(ModuleEvent{Module: mr.Name, File: mr.Path, Phase: PhaseVerify, Status: PhaseStart})
			if err = c.Verify(m); err != nil {
				notify(ModuleEvent{Module: mr.Name, File: mr.Path, Phase: PhaseVerify, Status: PhaseFailed, Err: err})
			}
		}
		mr.Elapsed = time.Since(start)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			d := diag.FromError(mr.Name, err)
			slot.Node.Reporter.Report(d)
			slot.Node.FirstErr = &d
			slot.Broken = true
			mr.Broken = true
			notify(ModuleEvent{Module: mr.Name, File: mr.Path, Phase: PhaseBuild, Status: PhaseFailed, Err: err, Elapsed: mr.Elapsed})
			continue
		}
		mr.Module = m
		notify(ModuleEvent{Module: mr.Name, File: mr.Path, Phase: PhaseBuild, Status: PhaseEnd, Elapsed: mr.Elapsed})
	}

	return p.result(files), nil
}

func absPaths(files []string) ([]string, error) {
	out := make([]string, len(files))
	for i, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, err
		}
		out[i] = abs
	}
	return out, nil
}

// buildPlan is the ordered module graph of one run.
type buildPlan struct {
	nodes   []dag.ModuleNode
	results map[string]*ModuleResult
	order   []*ModuleResult // в порядке файлов
	idx     dag.ModuleIndex
	graph   dag.Graph
	slots   []dag.ModuleSlot
	topo    *dag.Topo
}

func plan(c *ir.Context, decoded []DecodeResult, opts Options) *buildPlan {
	p := &buildPlan{results: make(map[string]*ModuleResult, len(decoded))}
	byPath := make(map[string]string, len(decoded))
	for i := range decoded {
		if decoded[i].Module != nil {
			byPath[decoded[i].Path] = decoded[i].Module.Name
		}
	}

	for i := range decoded {
		res := &decoded[i]
		mr := &ModuleResult{Name: res.Name(), Path: res.Path, AST: res.Module, Bag: res.Bag}
		node := dag.ModuleNode{
			Name:     mr.Name,
			Reporter: diag.BagReporter{Bag: res.Bag},
		}
		if res.Module == nil {
			node.Broken = true
			if items := res.Bag.Items(); len(items) > 0 {
				node.FirstErr = &items[0]
			}
		} else {
			node.Imports, node.Broken = resolveImports(c, res, byPath, opts.Root)
			mr.Imports = node.Imports
			if node.Broken {
				items := res.Bag.Items()
				node.FirstErr = &items[len(items)-1]
			}
		}
		if _, dup := p.results[mr.Name]; !dup {
			p.results[mr.Name] = mr
			p.order = append(p.order, mr)
		}
		p.nodes = append(p.nodes, node)
	}

	p.idx = dag.BuildIndex(p.nodes)
	p.graph, p.slots = dag.BuildGraph(p.idx, p.nodes)
	p.topo = dag.ToposortKahn(p.graph)
	dag.ReportCycles(p.idx, p.slots, p.topo)
	for _, id := range p.topo.Cycles {
		if mr := p.results[p.idx.IDToName[int(id)]]; mr != nil {
			mr.Broken = true
		}
	}
	return p
}

// resolveImports fills each import's module name and returns the names of
// the modules res depends on inside this run. Modules already loaded into c
// (the built-in ones among them) are not part of the graph. broken is set
// when a relative target cannot be turned into a path.
func resolveImports(c *ir.Context, res *DecodeResult, byPath map[string]string, root string) (deps []string, broken bool) {
	for _, imp := range res.Module.Imports {
		if imp.IsRelative() {
			target, err := project.ResolveImportPath(root, res.Path, imp.Target, ast.Ext)
			if err != nil {
				res.Bag.Add(diag.NewError(diag.ProjUnresolvedImport, res.Module.Name, err.Error()))
				broken = true
				continue
			}
			if name, ok := byPath[target]; ok && imp.Name == "" {
				imp.Name = name
			}
		}
		name := coder.ImportName(imp)
		if c.Module(name) != nil {
			continue
		}
		deps = append(deps, name)
	}
	return deps, broken
}

func (p *buildPlan) result(files []string) *Result {
	res := &Result{Files: files, Bag: diag.NewBag(0), byName: p.results}
	built := make(map[string]bool, len(p.topo.Order))
	for _, id := range p.topo.Order {
		mr := p.results[p.idx.IDToName[int(id)]]
		if mr == nil {
			continue
		}
		built[mr.Name] = true
		res.Modules = append(res.Modules, mr)
	}
	for _, mr := range p.order {
		if !built[mr.Name] {
			res.Modules = append(res.Modules, mr)
		}
	}
	for _, mr := range res.Modules {
		res.Bag.Merge(mr.Bag)
	}
	// дубликаты модулей пишут в собственный bag, его тоже учитываем
	for _, n := range p.nodes {
		if r, ok := n.Reporter.(diag.BagReporter); ok && p.results[n.Name].Bag != r.Bag {
			res.Bag.Merge(r.Bag)
		}
	}
	res.Bag.Dedup()
	return res
}
