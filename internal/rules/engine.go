// Package rules implements the deterministic exception rule engine that
// evaluates each work session against a fixed ordered set of compliance
// rules, plus the global double-badge join across all events.
package rules

import (
	"fmt"
	"time"

	"github.com/sells-group/attendance-cli/internal/config"
	"github.com/sells-group/attendance-cli/internal/model"
)

// Thresholds is the immutable rule configuration, injected rather than read
// from scattered defaults.
type Thresholds struct {
	Grace             time.Duration
	MidShift          time.Duration
	MissedPunchMin    time.Duration
	MissedPunchMax    time.Duration
	Overtime          time.Duration
	DoubleBadgeWindow time.Duration
}

// ThresholdsFrom builds rule thresholds from the pipeline configuration.
func ThresholdsFrom(cfg config.PipelineConfig) Thresholds {
	return Thresholds{
		Grace:             time.Duration(cfg.GraceMinutes) * time.Minute,
		MidShift:          time.Duration(cfg.MidShiftMinutes) * time.Minute,
		MissedPunchMin:    time.Duration(cfg.MissedPunchMinHours * float64(time.Hour)),
		MissedPunchMax:    time.Duration(cfg.MissedPunchMaxHours * float64(time.Hour)),
		Overtime:          time.Duration(cfg.OvertimeThresholdHours * float64(time.Hour)),
		DoubleBadgeWindow: time.Duration(cfg.DoubleBadgeMinutes) * time.Minute,
	}
}

// Engine evaluates sessions against the fixed rule set.
type Engine struct {
	th Thresholds
}

// NewEngine creates a rule engine with the given thresholds.
func NewEngine(th Thresholds) *Engine {
	return &Engine{th: th}
}

// Evaluate runs the per-session rules in their fixed order and returns one
// flag per satisfied rule. Rules are independent; none short-circuits the
// others. The global double_badge_use rule is evaluated separately by
// DetectDoubleBadge.
func (e *Engine) Evaluate(s model.WorkSession) []model.ExceptionFlag {
	var flags []model.ExceptionFlag
	add := func(code model.ExceptionCode, severity, explanation string) {
		flags = append(flags, model.ExceptionFlag{
			SessionID:   s.SessionID,
			Code:        code,
			Severity:    severity,
			Explanation: explanation,
		})
	}

	scheduled := !s.OffSchedule()

	// late_checkin
	if scheduled && s.ActualStart != nil && s.ActualStart.After(s.ScheduledStart.Add(e.th.Grace)) {
		late := s.ActualStart.Sub(s.ScheduledStart)
		add(model.CodeLateCheckin, model.SeverityWarning, fmt.Sprintf(
			"checked in at %s for a %s shift — late by %s",
			s.ActualStart.Format("15:04"), s.ScheduledStart.Format("15:04"), model.FormatDuration(late),
		))
	}

	// early_checkout
	if scheduled && !s.Unmatched && s.ActualEnd != nil && s.ActualEnd.Before(s.ScheduledEnd.Add(-e.th.Grace)) {
		early := s.ScheduledEnd.Sub(*s.ActualEnd)
		add(model.CodeEarlyCheckout, model.SeverityWarning, fmt.Sprintf(
			"checked out at %s, %s before scheduled end",
			s.ActualEnd.Format("15:04"), model.FormatDuration(early),
		))
	}

	// missed_punch
	worked := time.Duration(s.WorkedHours * float64(time.Hour))
	if s.Unmatched || worked < e.th.MissedPunchMin || worked > e.th.MissedPunchMax {
		add(model.CodeMissedPunch, model.SeverityWarning, fmt.Sprintf(
			"session duration %s outside plausible bounds",
			model.FormatHours(s.WorkedHours),
		))
	}

	// mid_shift_registration
	if scheduled && s.ActualStart != nil && s.ActualStart.Sub(s.ScheduledStart) > e.th.MidShift {
		add(model.CodeMidShiftRegistration, model.SeverityWarning, fmt.Sprintf(
			"registered %s after shift start",
			model.FormatDuration(s.ActualStart.Sub(s.ScheduledStart)),
		))
	}

	// night_shift_cross is informational and always emitted for such shifts.
	if s.CrossesMidnight() {
		add(model.CodeNightShiftCross, model.SeverityInfo, "night shift spans into next day")
	}

	// excessive_overtime
	if time.Duration(s.OvertimeHours*float64(time.Hour)) > e.th.Overtime {
		add(model.CodeExcessiveOvertime, model.SeverityWarning, fmt.Sprintf(
			"worked %s beyond scheduled shift",
			model.FormatHours(s.OvertimeHours),
		))
	}

	return flags
}
