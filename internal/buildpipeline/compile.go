package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"elang/internal/driver"
	"elang/internal/ir"
)

// ErrDiagnostics is returned when the build reported error diagnostics
// and the request did not allow them. The diagnostics are in the result.
var ErrDiagnostics = errors.New("diagnostics reported errors")

// CompileRequest configures the shared compilation pipeline.
type CompileRequest struct {
	// Paths lists .east files and directories to compile.
	Paths []string
	// Root bounds relative imports; usually the manifest directory.
	Root string
	// BaseDir makes progress file names relative to it.
	BaseDir               string
	MaxDiagnostics        int
	Jobs                  int
	AllowDiagnosticsError bool
	Progress              ProgressSink
}

// CompileResult captures the driver result and stage timings.
type CompileResult struct {
	Driver  *driver.Result
	Timings Timings
}

// Compile decodes, orders and builds every module into c.
func Compile(ctx context.Context, c *ir.Context, req *CompileRequest) (CompileResult, error) {
	var result CompileResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing compile request")
	}
	if len(req.Paths) == 0 {
		return result, fmt.Errorf("missing target path")
	}

	phase := &phaseObserver{sink: req.Progress, baseDir: req.BaseDir}
	if req.Progress != nil {
		files, err := driver.Discover(req.Paths...)
		if err == nil {
			emitQueued(req.Progress, normalizeProgressFiles(files, req.BaseDir))
		}
	}

	res, err := driver.Build(ctx, c, req.Paths, driver.Options{
		Root:           req.Root,
		MaxDiagnostics: req.MaxDiagnostics,
		Jobs:           req.Jobs,
		Observer:       phase.OnModule,
	})
	phase.record(&result.Timings)
	result.Driver = res
	if err != nil {
		emitStage(req.Progress, StageBuild, StatusError, err, 0)
		return result, err
	}
	if res.HasErrors() && !req.AllowDiagnosticsError {
		err = ErrDiagnostics
		emitStage(req.Progress, StageBuild, StatusError, err, 0)
		return result, err
	}
	emitStage(req.Progress, StageBuild, StatusDone, nil, result.Timings.Sum(StageDecode, StageBuild))
	return result, nil
}

// phaseObserver turns driver module events into progress events and keeps
// the wall time of every stage.
type phaseObserver struct {
	sink    ProgressSink
	baseDir string
	first   map[Stage]time.Time
	last    map[Stage]time.Time
}

// OnModule updates the progress UI based on driver module events.
func (p *phaseObserver) OnModule(ev driver.ModuleEvent) {
	stage := stageOf(ev.Phase)
	p.mark(stage)
	if p.sink == nil {
		return
	}
	out := Event{
		File:    normalizeProgressFile(ev.File, p.baseDir),
		Module:  ev.Module,
		Stage:   stage,
		Err:     ev.Err,
		Elapsed: ev.Elapsed,
	}
	switch ev.Status {
	case driver.PhaseStart:
		out.Status = StatusWorking
	case driver.PhaseEnd:
		out.Status = StatusDone
		if stage == StageDecode {
			// декодированный модуль ждёт сборки
			out.Stage, out.Status = StageBuild, StatusQueued
		}
	case driver.PhaseFailed:
		out.Status = StatusError
	case driver.PhaseSkipped:
		out.Status = StatusSkipped
	}
	p.sink.OnEvent(out)
}

func (p *phaseObserver) mark(stage Stage) {
	now := time.Now()
	if p.first == nil {
		p.first = make(map[Stage]time.Time)
		p.last = make(map[Stage]time.Time)
	}
	if _, ok := p.first[stage]; !ok {
		p.first[stage] = now
	}
	p.last[stage] = now
}

func (p *phaseObserver) record(t *Timings) {
	stages := make([]Stage, 0, len(p.first))
	for stage := range p.first {
		stages = append(stages, stage)
	}
	slices.SortFunc(stages, func(a, b Stage) int {
		return p.last[a].Compare(p.last[b])
	})
	for _, stage := range stages {
		t.Set(stage, p.last[stage].Sub(p.first[stage]))
	}
}

func stageOf(ph driver.Phase) Stage {
	switch ph {
	case driver.PhaseDecode:
		return StageDecode
	case driver.PhaseVerify:
		return StageVerify
	default:
		return StageBuild
	}
}

func emitQueued(sink ProgressSink, files []string) {
	if sink == nil {
		return
	}
	for _, file := range files {
		sink.OnEvent(Event{File: file, Stage: StageDecode, Status: StatusQueued})
	}
}

func emitStage(sink ProgressSink, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}

func emitModule(sink ProgressSink, file, module string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{File: file, Module: module, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}
