package ir

import (
	"slices"

	"elang/internal/bridge"
	"elang/internal/diag"
	"elang/internal/trace"
)

// BuildFunc constructs a module. It usually calls Context.NewModule, drives
// the builders and returns the finished module.
type BuildFunc func(c *Context) (*Module, error)

// Option configures a Context.
type Option func(*Context)

// WithTracer routes module and builder events to t.
func WithTracer(t trace.Tracer) Option {
	return func(c *Context) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithDiagnostics collects failed loads into bag.
func WithDiagnostics(bag *diag.Bag) Option {
	return func(c *Context) {
		if bag != nil {
			c.diags = bag
		}
	}
}

// Context owns the backend connection and the registry of named modules. It
// is not safe for concurrent use; use one Context per worker.
type Context struct {
	b       bridge.Bridge
	modules map[string]*Module
	order   []string
	tracer  trace.Tracer
	diags   *diag.Bag
	loading uint64
}

// NewContext creates a Context on top of b.
func NewContext(b bridge.Bridge, opts ...Option) *Context {
	c := &Context{
		b:       b,
		modules: make(map[string]*Module),
		tracer:  trace.Nop,
		diags:   diag.NewBag(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) Bridge() bridge.Bridge      { return c.b }
func (c *Context) Tracer() trace.Tracer       { return c.tracer }
func (c *Context) Diagnostics() *diag.Bag     { return c.diags }
func (c *Context) Module(name string) *Module { return c.modules[name] }

// Modules lists registered module names in load order.
func (c *Context) Modules() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// NewModule creates an unregistered module with a backend counterpart.
func (c *Context) NewModule(name string) (*Module, error) {
	return newModule(c, name)
}

// Add registers m under its name.
func (c *Context) Add(m *Module) error {
	if _, ok := c.modules[m.name]; ok {
		return diag.Errorf(diag.ModDuplicateModule, "module %q is already loaded", m.name)
	}
	c.modules[m.name] = m
	c.order = append(c.order, m.name)
	return nil
}

// remove unregisters m if it is the module registered under its name.
func (c *Context) remove(m *Module) {
	if c.modules[m.name] != m {
		return
	}
	delete(c.modules, m.name)
	c.order = slices.DeleteFunc(c.order, func(n string) bool { return n == m.name })
}

// Load builds and registers the module name. A name that is already loaded
// fails without calling build. When build fails the partial module is
// dropped and unregistered if build had added it. The failure is recorded
// in the diagnostics bag.
func (c *Context) Load(name string, build BuildFunc) (*Module, error) {
	if _, ok := c.modules[name]; ok {
		return nil, diag.Errorf(diag.ModDuplicateModule, "module %q is already loaded", name)
	}
	span := trace.BeginIn(c.tracer, trace.ScopeModule, name, "load", 0)
	prev := c.loading
	c.loading = span.ID()
	defer func() { c.loading = prev }()

	m, err := build(c)
	if err == nil && m == nil {
		err = diag.Errorf(diag.ModBuildFailed, "building %q produced no module", name)
	}
	if err == nil && m.name != name {
		err = diag.Errorf(diag.ModBuildFailed, "building %q produced module %q", name, m.name)
	}
	if err == nil && c.modules[name] != m {
		err = c.Add(m)
	}
	if err != nil {
		if m != nil {
			c.remove(m)
			m.drop()
		}
		if diag.CodeOf(err) == diag.UnknownCode {
			err = diag.Wrap(diag.ModBuildFailed, err, "module %q", name)
		}
		c.diags.AddError(name, err)
		span.WithExtra("status", "failed").End(err.Error())
		return nil, err
	}
	span.End("")
	return m, nil
}

// Dump returns the backend text of m.
func (c *Context) Dump(m *Module) string {
	return c.b.DumpModule(m.handle)
}

// Verify checks m with the backend verifier. Backends without one accept
// every module.
func (c *Context) Verify(m *Module) error {
	v, ok := c.b.(bridge.Verifier)
	if !ok {
		return nil
	}
	if err := v.Verify(m.handle); err != nil {
		trace.EmitError(c.tracer, trace.ScopeModule, "verify "+m.name, err, 0)
		return diag.Wrap(diag.BackendVerify, err, "verify %s", m.name)
	}
	return nil
}

// JIT executes m's main function and returns its result.
func (c *Context) JIT(m *Module) (int64, error) {
	span := trace.BeginIn(c.tracer, trace.ScopeModule, m.name, "jit", 0)
	defer span.End("")
	res, err := c.b.JIT(m.handle)
	if err != nil {
		return 0, diag.Wrap(diag.BackendJIT, err, "run %s", m.name)
	}
	return res, nil
}

// AOT emits m ahead of time and returns the written path.
func (c *Context) AOT(m *Module) (string, error) {
	span := trace.BeginIn(c.tracer, trace.ScopeModule, m.name, "aot", 0)
	defer span.End("")
	path, err := c.b.AOT(m.handle)
	if err != nil {
		return "", diag.Wrap(diag.BackendAOT, err, "emit %s", m.name)
	}
	return path, nil
}

// Close drops every registered module from the backend.
func (c *Context) Close() {
	for i := len(c.order) - 1; i >= 0; i-- {
		c.modules[c.order[i]].drop()
	}
	c.modules = make(map[string]*Module)
	c.order = nil
}
