// Package buildpipeline orchestrates the compilation process.
package buildpipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"elang/internal/bridge/llvm"
	"elang/internal/ir"
	"elang/internal/trace"
)

// BuildRequest configures a full run: compile, then JIT or AOT.
type BuildRequest struct {
	CompileRequest
	Backend Backend
	// Entry names the module whose main JIT runs. Optional for AOT; JIT
	// falls back to DefaultEntry.
	Entry string
	// OutDir receives AOT output.
	OutDir string
	// Stdout receives the output of JIT-run programs.
	Stdout io.Writer
	// Dump, when set, receives the backend text of the entry module
	// before it is run or emitted.
	Dump io.Writer
}

// BuildResult captures build artefacts and timings.
type BuildResult struct {
	// Context holds every loaded module; the caller closes it.
	Context  *ir.Context
	Compile  CompileResult
	Outputs  []string
	ExitCode int64
	Timings  Timings
}

// NewContext creates an ir.Context on the LLVM bridge with the built-in
// modules loaded. Its tracer comes from ctx.
func NewContext(ctx context.Context, outDir string, stdout io.Writer) (*ir.Context, error) {
	b := llvm.New(llvm.Options{OutDir: outDir, Stdout: stdout})
	c := ir.NewContext(b, ir.WithTracer(trace.FromContext(ctx)))
	if err := c.LoadDefaultModules(); err != nil {
		return c, fmt.Errorf("failed to load built-in modules: %w", err)
	}
	return c, nil
}

// Build compiles the request into a fresh context and then runs or emits it.
func Build(ctx context.Context, req *BuildRequest) (BuildResult, error) {
	var result BuildResult
	if req == nil {
		return result, fmt.Errorf("missing build request")
	}
	reqCopy := *req
	req = &reqCopy
	if req.Backend == "" {
		req.Backend = BackendJIT
	}
	if req.Backend != BackendJIT && req.Backend != BackendAOT {
		return result, fmt.Errorf("unsupported backend: %s (supported: jit, aot)", req.Backend)
	}
	if req.OutDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}
		req.OutDir = filepath.Join(cwd, "build")
	}
	if req.Stdout == nil {
		req.Stdout = os.Stdout
	}

	c, err := NewContext(ctx, req.OutDir, req.Stdout)
	result.Context = c
	if err != nil {
		return result, err
	}

	compileRes, err := Compile(ctx, c, &req.CompileRequest)
	result.Compile = compileRes
	result.Timings = compileRes.Timings
	if err != nil {
		return result, err
	}

	var entry *ir.Module
	if req.Entry != "" || req.Backend == BackendJIT {
		name := req.Entry
		if name == "" {
			name = DefaultEntry(compileRes.Driver)
		}
		if entry, err = ValidateEntrypoint(c, name); err != nil {
			emitStage(req.Progress, StageBuild, StatusError, err, 0)
			return result, err
		}
	}
	if entry != nil && req.Dump != nil {
		if _, err := io.WriteString(req.Dump, c.Dump(entry)); err != nil {
			return result, fmt.Errorf("failed to dump %s: %w", entry.Name(), err)
		}
	}

	switch req.Backend {
	case BackendJIT:
		runStart := time.Now()
		emitStage(req.Progress, StageRun, StatusWorking, nil, 0)
		code, err := c.JIT(entry)
		result.Timings.Set(StageRun, time.Since(runStart))
		if err != nil {
			emitStage(req.Progress, StageRun, StatusError, err, 0)
			return result, err
		}
		result.ExitCode = code
		emitStage(req.Progress, StageRun, StatusDone, nil, result.Timings.Duration(StageRun))

	case BackendAOT:
		emitStart := time.Now()
		for _, mr := range compileRes.Driver.Modules {
			if mr.Module == nil {
				continue
			}
			file := normalizeProgressFile(mr.Path, req.BaseDir)
			emitModule(req.Progress, file, mr.Name, StageEmit, StatusWorking, nil, 0)
			start := time.Now()
			path, err := c.AOT(mr.Module)
			if err != nil {
				emitModule(req.Progress, file, mr.Name, StageEmit, StatusError, err, 0)
				return result, err
			}
			result.Outputs = append(result.Outputs, path)
			emitModule(req.Progress, file, mr.Name, StageEmit, StatusDone, nil, time.Since(start))
		}
		result.Timings.Set(StageEmit, time.Since(emitStart))
	}
	return result, nil
}
