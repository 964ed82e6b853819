package model

import "time"

// WorkSession is the consolidated record for one employee on one shift
// instance. Sessions are never mutated after the builder emits them;
// corrections require a full pipeline re-run.
//
// SessionID is deterministic (employee|shift|date) so that re-running the
// pipeline on identical input yields identical output.
type WorkSession struct {
	SessionID      string     `json:"session_id"`
	EmployeeID     string     `json:"employee_id"`
	ShiftID        string     `json:"shift_id,omitempty"` // empty = off-schedule work
	ScheduledStart time.Time  `json:"scheduled_start"`
	ScheduledEnd   time.Time  `json:"scheduled_end"` // midnight-adjusted for night shifts
	ActualStart    *time.Time `json:"actual_start,omitempty"`
	ActualEnd      *time.Time `json:"actual_end,omitempty"`
	WorkedHours    float64    `json:"worked_hours"`
	OvertimeHours  float64    `json:"overtime_hours"`
	IsPartial      bool       `json:"is_partial"`
	IsImputed      bool       `json:"is_imputed"`
	Unmatched      bool       `json:"unmatched"`
	Facility       string     `json:"facility,omitempty"`
	BadgeID        string     `json:"badge_id,omitempty"`
	SessionDate    time.Time  `json:"session_date"` // the shift's start calendar date
}

// OffSchedule reports whether the session has no matching shift instance.
func (s WorkSession) OffSchedule() bool {
	return s.ShiftID == ""
}

// CrossesMidnight reports whether the scheduled window spans into the next
// calendar day. Always false for off-schedule sessions.
func (s WorkSession) CrossesMidnight() bool {
	if s.OffSchedule() {
		return false
	}
	ys, ds := s.ScheduledStart.Year(), s.ScheduledStart.YearDay()
	ye, de := s.ScheduledEnd.Year(), s.ScheduledEnd.YearDay()
	return ys != ye || ds != de
}

// ScheduledHours returns the length of the scheduled window in hours.
func (s WorkSession) ScheduledHours() float64 {
	return s.ScheduledEnd.Sub(s.ScheduledStart).Hours()
}
