package model

import "time"

// RunStatus represents the current state of a capture run.
type RunStatus string

const (
	RunStatusWaiting     RunStatus = "waiting"
	RunStatusCollecting  RunStatus = "collecting"
	RunStatusIntegrating RunStatus = "integrating"
	RunStatusPredicting  RunStatus = "predicting"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
	RunStatusCancelled   RunStatus = "cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusComplete, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// Run is one capture attempt for one event.
type Run struct {
	ID        string     `json:"id"`
	Event     Event      `json:"event"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PhaseStatus represents the outcome of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SourceOutcome describes how one source fared during collection.
type SourceOutcome struct {
	Source   SourceKind `json:"source"`
	Status   string     `json:"status"` // ok, failed, missing
	Class    string     `json:"class,omitempty"`
	Attempts int        `json:"attempts"`
	Error    string     `json:"error,omitempty"`
	Rows     int        `json:"rows"`
}

// RunResult is the persisted artifact of a completed run.
type RunResult struct {
	EventID    string           `json:"event_id"`
	Sources    []SourceOutcome  `json:"sources"`
	Records    []MergedRecord   `json:"records"`
	Prediction *Prediction      `json:"prediction,omitempty"`
	Confidence *ConfidenceGrade `json:"confidence,omitempty"`
	Phases     []PhaseResult    `json:"phases"`
}
