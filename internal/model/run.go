package model

import "time"

// RunStatus tracks a pipeline run through its stages.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// PhaseStatus tracks a single pipeline stage within a run.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// Run is a persisted pipeline execution record.
type Run struct {
	ID        string      `json:"id"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary holds the final counts for a completed run.
type RunSummary struct {
	Events         int  `json:"events"`
	Sessions       int  `json:"sessions"`
	Exceptions     int  `json:"exceptions"`
	Anomalies      int  `json:"anomalies"`
	Unresolved     int  `json:"unresolved"`
	AnomalySkipped bool `json:"anomaly_skipped"`
}

// RunArtifacts bundles everything a completed run produced.
type RunArtifacts struct {
	Sessions   []WorkSession     `json:"sessions"`
	Exceptions []ExceptionFlag   `json:"exceptions"`
	Anomalies  []AnomalyFlag     `json:"anomalies"`
	Unresolved []UnresolvedEvent `json:"unresolved"`
}

// RunPhase is a persisted record of one pipeline stage execution.
type RunPhase struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id"`
	Name      string      `json:"name"`
	Status    PhaseStatus `json:"status"`
	Detail    string      `json:"detail,omitempty"`
	StartedAt time.Time   `json:"started_at"`
}
