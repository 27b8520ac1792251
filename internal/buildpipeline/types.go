package buildpipeline

import "time"

// Stage describes a high-level pipeline phase.
type Stage string

const (
	// StageDecode is the AST decoding stage.
	StageDecode Stage = "decode"
	// StageBuild is the IR build stage.
	StageBuild Stage = "build"
	// StageVerify is the backend verification stage.
	StageVerify Stage = "verify"
	// StageEmit is the ahead-of-time output stage.
	StageEmit Stage = "emit"
	// StageRun is the run stage.
	StageRun Stage = "run"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
	// StatusSkipped indicates the task was not run because a dependency failed.
	StatusSkipped Status = "skipped"
)

// Event reports progress for a module file (or for the overall pipeline when
// File is empty). Module is empty until the file has been decoded.
type Event struct {
	File    string
	Module  string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// Backend selects what happens to the built modules.
type Backend string

const (
	// BackendJIT runs the entry module in process.
	BackendJIT Backend = "jit"
	// BackendAOT writes every built module to the output directory.
	BackendAOT Backend = "aot"
)

// Timings records how long each stage took, in the order stages finished.
type Timings struct {
	entries []stageTime
}

type stageTime struct {
	stage Stage
	dur   time.Duration
}

// Set records dur for stage, replacing an earlier value.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	for i := range t.entries {
		if t.entries[i].stage == stage {
			t.entries[i].dur = dur
			return
		}
	}
	t.entries = append(t.entries, stageTime{stage: stage, dur: dur})
}

// Has reports whether stage was recorded.
func (t Timings) Has(stage Stage) bool {
	_, ok := t.lookup(stage)
	return ok
}

// Duration returns the recorded duration for stage, zero if it never ran.
func (t Timings) Duration(stage Stage) time.Duration {
	d, _ := t.lookup(stage)
	return d
}

// Sum adds up the durations of the given stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	var total time.Duration
	for _, stage := range stages {
		total += t.Duration(stage)
	}
	return total
}

// Stages lists the recorded stages in completion order.
func (t Timings) Stages() []Stage {
	out := make([]Stage, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.stage
	}
	return out
}

func (t Timings) lookup(stage Stage) (time.Duration, bool) {
	for _, e := range t.entries {
		if e.stage == stage {
			return e.dur, true
		}
	}
	return 0, false
}
