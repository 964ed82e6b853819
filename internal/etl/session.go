package etl

import (
	"fmt"

	"github.com/sells-group/attendance-cli/internal/config"
	"github.com/sells-group/attendance-cli/internal/model"
)

// adhocShiftKey labels off-schedule session ids, which carry no shift id.
const adhocShiftKey = "adhoc"

// BuildSessions produces one immutable WorkSession per punched group.
// Worked and overtime hours are non-negative by construction: imputation
// guarantees end ≥ start, and unmatched groups yield zero worked hours.
// Off-schedule groups use the observed event span as both the scheduled and
// actual window, with zero overtime since there is no schedule to exceed.
func BuildSessions(groups []PunchedGroup, cfg config.PipelineConfig) []model.WorkSession {
	sessions := make([]model.WorkSession, 0, len(groups))
	for _, g := range groups {
		sessions = append(sessions, buildSession(g))
	}
	return sessions
}

func buildSession(g PunchedGroup) model.WorkSession {
	s := model.WorkSession{
		SessionID:      sessionID(g.Key),
		EmployeeID:     g.Key.EmployeeID,
		ShiftID:        g.Key.ShiftID,
		ScheduledStart: g.ScheduledStart,
		ScheduledEnd:   g.ScheduledEnd,
		ActualStart:    g.Start,
		ActualEnd:      g.End,
		IsImputed:      g.Imputed,
		Unmatched:      g.Unmatched,
		Facility:       g.Facility,
		BadgeID:        g.BadgeID,
		SessionDate:    g.InstanceDate,
	}

	if g.OffSchedule() {
		// Event span doubles as the scheduled window.
		if g.Start != nil {
			s.ScheduledStart = *g.Start
		} else if g.End != nil {
			s.ScheduledStart = *g.End
		}
		if g.End != nil {
			s.ScheduledEnd = *g.End
		} else {
			s.ScheduledEnd = s.ScheduledStart
		}
	}

	if g.Unmatched || g.Start == nil || g.End == nil {
		s.WorkedHours = 0
		s.IsPartial = true
		return s
	}

	s.WorkedHours = g.End.Sub(*g.Start).Hours()
	if !g.OffSchedule() && g.End.After(s.ScheduledEnd) {
		s.OvertimeHours = g.End.Sub(s.ScheduledEnd).Hours()
	}
	if g.Imputed {
		s.IsPartial = true
	}
	return s
}

// sessionID derives a deterministic identifier so identical input always
// produces identical output across runs.
func sessionID(key InstanceKey) string {
	shift := key.ShiftID
	if shift == "" {
		shift = adhocShiftKey
	}
	return fmt.Sprintf("%s|%s|%s", key.EmployeeID, shift, key.Date)
}
