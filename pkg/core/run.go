package core

import "time"

// RunStatus represents the status of a script creation run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run represents one execution of the creation pipeline.
type Run struct {
	ID          string
	ScriptID    string // empty until the generate step has produced a script
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// StepStatus represents the status of an individual pipeline step.
type StepStatus string

// Step status constants.
const (
	StepStatusPending StepStatus = "pending"
	StepStatusRunning StepStatus = "running"
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// Well-known step names. Derivation and audio steps are parameterized by
// version kind via StepDerive and StepAudio.
const (
	StepGenerate  = "generate"
	StepTranslate = "translate"
	StepPersist   = "persist"
)

// StepDerive names the derivation step for a version kind.
func StepDerive(kind VersionKind) string {
	return "derive:" + string(kind)
}

// StepTranslateKind names the translation step for a derived kind. The
// original script's translation is the bare StepTranslate.
func StepTranslateKind(kind VersionKind) string {
	return "translate:" + string(kind)
}

// StepAudio names the audio synthesis step for a version kind.
func StepAudio(kind VersionKind) string {
	return "audio:" + string(kind)
}

// StepRun represents a single pipeline step within a run.
type StepRun struct {
	ID          string
	RunID       string
	Name        string
	Status      StepStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}
