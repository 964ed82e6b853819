package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/attendance-cli/internal/anomaly"
	"github.com/sells-group/attendance-cli/internal/config"
	"github.com/sells-group/attendance-cli/internal/ingest"
	"github.com/sells-group/attendance-cli/internal/model"
	"github.com/sells-group/attendance-cli/internal/rules"
	"github.com/sells-group/attendance-cli/internal/store"
)

// Inputs is the parsed reference and event data one run operates on.
type Inputs struct {
	Employees []model.Employee
	Shifts    []model.Shift
	Events    []model.AttendanceEvent
	Swaps     []model.ShiftSwap
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID     string
	Summary   model.RunSummary
	Artifacts model.RunArtifacts
}

// Pipeline orchestrates the seven stages of a batch run: resolve, normalize,
// assign, impute, build, rules, anomaly. Stages run strictly in order; only
// shift assignment fans out internally per employee.
type Pipeline struct {
	cfg   *config.Config
	store store.Store
}

// New creates a Pipeline with its dependencies.
func New(cfg *config.Config, st store.Store) *Pipeline {
	return &Pipeline{cfg: cfg, store: st}
}

// Run executes the full pipeline over one input batch. Malformed rows are
// diverted, never fatal; the run fails only on invariant violations in the
// reference data or storage errors.
func (p *Pipeline) Run(ctx context.Context, in Inputs) (*Result, error) {
	log := zap.L().With(zap.Int("events", len(in.Events)), zap.Int("employees", len(in.Employees)))
	log.Info("pipeline: starting run")

	run, err := p.store.CreateRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	result := &Result{RunID: run.ID}

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	trackPhase := func(name string, fn func() (model.PhaseStatus, string, error)) error {
		phase, phaseErr := p.store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		start := time.Now()
		status, detail, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if fnErr != nil {
			status = model.PhaseStatusFailed
			detail = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.String("status", string(status)),
				zap.String("detail", detail),
				zap.Int64("duration_ms", duration),
			)
		}

		if phase != nil {
			_ = p.store.CompletePhase(ctx, phase.ID, status, detail)
		}
		return fnErr
	}

	fail := func(err error) (*Result, error) {
		setStatus(model.RunStatusFailed)
		return nil, err
	}

	setStatus(model.RunStatusRunning)

	loc, err := p.cfg.Pipeline.Location()
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: load timezone"))
	}

	// ===== Phase 1: Identity resolution =====
	var resolved []model.AttendanceEvent
	var unresolved []model.UnresolvedEvent
	err = trackPhase("1_resolve", func() (model.PhaseStatus, string, error) {
		dir, dirErr := ingest.NewDirectory(in.Employees)
		if dirErr != nil {
			return "", "", dirErr
		}
		resolved, unresolved = ResolveIdentities(in.Events, dir)
		return model.PhaseStatusComplete,
			fmt.Sprintf("%d resolved, %d unresolved", len(resolved), len(unresolved)), nil
	})
	if err != nil {
		return fail(err)
	}

	// ===== Phase 2: Timestamp normalization =====
	err = trackPhase("2_normalize", func() (model.PhaseStatus, string, error) {
		var dropped []model.UnresolvedEvent
		resolved, dropped = NormalizeTimestamps(resolved, loc)
		unresolved = append(unresolved, dropped...)
		return model.PhaseStatusComplete,
			fmt.Sprintf("%d normalized, %d unparsable", len(resolved), len(dropped)), nil
	})
	if err != nil {
		return fail(err)
	}

	// ===== Phase 3: Shift assignment =====
	var assigned []AssignedEvent
	err = trackPhase("3_assign", func() (model.PhaseStatus, string, error) {
		sched := NewSchedule(in.Shifts, in.Swaps)
		assigned = AssignShifts(ctx, resolved, sched, p.cfg.Pipeline, loc)
		return model.PhaseStatusComplete, fmt.Sprintf("%d events assigned", len(assigned)), nil
	})
	if err != nil {
		return fail(err)
	}

	// ===== Phase 4: Punch imputation =====
	var punched []PunchedGroup
	err = trackPhase("4_impute", func() (model.PhaseStatus, string, error) {
		groups := GroupEvents(assigned)
		punched = ImputePunches(groups, p.cfg.Pipeline)

		imputedCount, unmatchedCount := 0, 0
		for _, g := range punched {
			if g.Imputed {
				imputedCount++
			}
			if g.Unmatched {
				unmatchedCount++
			}
		}
		return model.PhaseStatusComplete,
			fmt.Sprintf("%d groups, %d imputed, %d unmatched", len(punched), imputedCount, unmatchedCount), nil
	})
	if err != nil {
		return fail(err)
	}

	// ===== Phase 5: Session building =====
	var sessions []model.WorkSession
	err = trackPhase("5_sessions", func() (model.PhaseStatus, string, error) {
		sessions = BuildSessions(punched, p.cfg.Pipeline)
		return model.PhaseStatusComplete, fmt.Sprintf("%d sessions built", len(sessions)), nil
	})
	if err != nil {
		return fail(err)
	}

	// ===== Phase 6: Exception rules =====
	var exceptions []model.ExceptionFlag
	err = trackPhase("6_rules", func() (model.PhaseStatus, string, error) {
		engine := rules.NewEngine(rules.ThresholdsFrom(p.cfg.Pipeline))
		for _, s := range sessions {
			exceptions = append(exceptions, engine.Evaluate(s)...)
		}
		exceptions = append(exceptions, rules.DetectDoubleBadge(
			badgeUses(punched),
			time.Duration(p.cfg.Pipeline.DoubleBadgeMinutes)*time.Minute,
		)...)
		return model.PhaseStatusComplete, fmt.Sprintf("%d flags raised", len(exceptions)), nil
	})
	if err != nil {
		return fail(err)
	}

	// ===== Phase 7: Anomaly detection =====
	var anomalies []model.AnomalyFlag
	anomalySkipped := false
	err = trackPhase("7_anomaly", func() (model.PhaseStatus, string, error) {
		anomalies, anomalySkipped = anomaly.NewDetector(p.cfg.Anomaly).Detect(sessions)
		if anomalySkipped {
			return model.PhaseStatusSkipped, "not enough usable sessions", nil
		}
		return model.PhaseStatusComplete, fmt.Sprintf("%d anomalies flagged", len(anomalies)), nil
	})
	if err != nil {
		return fail(err)
	}

	result.Artifacts = model.RunArtifacts{
		Sessions:   sessions,
		Exceptions: exceptions,
		Anomalies:  anomalies,
		Unresolved: unresolved,
	}
	result.Summary = model.RunSummary{
		Events:         len(in.Events),
		Sessions:       len(sessions),
		Exceptions:     len(exceptions),
		Anomalies:      len(anomalies),
		Unresolved:     len(unresolved),
		AnomalySkipped: anomalySkipped,
	}

	if err := p.store.SaveResults(ctx, run.ID, result.Artifacts); err != nil {
		return fail(eris.Wrap(err, "pipeline: save results"))
	}
	if err := p.store.CompleteRun(ctx, run.ID, &result.Summary); err != nil {
		return fail(eris.Wrap(err, "pipeline: complete run"))
	}

	log.Info("pipeline: run complete",
		zap.String("run_id", run.ID),
		zap.Int("sessions", result.Summary.Sessions),
		zap.Int("exceptions", result.Summary.Exceptions),
		zap.Int("anomalies", result.Summary.Anomalies),
		zap.Int("unresolved", result.Summary.Unresolved),
	)
	return result, nil
}

// badgeUses flattens every badge punch into the form the double-badge rule
// consumes, tagged with the session it was grouped into.
func badgeUses(punched []PunchedGroup) []rules.BadgeUse {
	var uses []rules.BadgeUse
	for _, g := range punched {
		sessID := sessionID(g.Key)
		for _, ev := range g.Events {
			if ev.BadgeID == "" {
				continue
			}
			uses = append(uses, rules.BadgeUse{
				BadgeID:    ev.BadgeID,
				EmployeeID: ev.EmployeeID,
				SessionID:  sessID,
				Timestamp:  ev.Timestamp,
			})
		}
	}
	return uses
}
