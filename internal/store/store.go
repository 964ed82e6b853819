// Package store persists pipeline runs and their artifacts. Two backends are
// provided: SQLite for single-machine use and PostgreSQL for shared
// deployments.
package store

import (
	"context"

	"github.com/sells-group/attendance-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// SessionFilter specifies criteria for listing work sessions.
type SessionFilter struct {
	RunID      string `json:"run_id,omitempty"`
	EmployeeID string `json:"employee_id,omitempty"`
	Date       string `json:"date,omitempty"` // YYYY-MM-DD
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// FlagFilter specifies criteria for listing exception or anomaly flags.
type FlagFilter struct {
	RunID     string `json:"run_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for the attendance pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	LatestRun(ctx context.Context) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, status model.PhaseStatus, detail string) error

	// Artifacts
	SaveResults(ctx context.Context, runID string, res model.RunArtifacts) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.WorkSession, error)
	ListExceptions(ctx context.Context, filter FlagFilter) ([]model.ExceptionFlag, error)
	ListAnomalies(ctx context.Context, filter FlagFilter) ([]model.AnomalyFlag, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
