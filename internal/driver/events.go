package driver

import "time"

// Phase names a per-module driver step.
type Phase string

const (
	PhaseDecode Phase = "decode"
	PhaseBuild  Phase = "build"
	PhaseVerify Phase = "verify"
)

// PhaseStatus reports whether a phase started or finished.
type PhaseStatus int

const (
	// PhaseStart indicates that a module phase has begun.
	PhaseStart PhaseStatus = iota
	PhaseEnd
	PhaseFailed
	// PhaseSkipped marks modules that were not built because an import failed.
	PhaseSkipped
)

// ModuleEvent describes a phase boundary of one module.
type ModuleEvent struct {
	Module  string
	File    string
	Phase   Phase
	Status  PhaseStatus
	Err     error
	Elapsed time.Duration
}

// Observer receives module events emitted during Build. Decode events are
// delivered one at a time even though decoding runs in parallel.
type Observer func(ModuleEvent)
