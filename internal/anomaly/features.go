// Package anomaly implements the statistical session scorer: a per-run
// standard scaler plus an isolation forest, with contamination-derived
// thresholding and ranked-feature explanations. The fitted model and scaler
// are run-scoped values created at the start of the stage and discarded at
// the end; nothing is persisted across runs.
package anomaly

import (
	"github.com/sells-group/attendance-cli/internal/model"
)

// Feature indices into a session's feature vector.
const (
	featWorkedHours = iota
	featScheduleDeviation
	featCheckinLatency
	featCheckoutLatency
	featOvertimeHours
	featDayOfWeek
	featCheckinHour
	featIsPartial
	featSessionDuration
	numFeatures
)

// featureNames in vector order.
var featureNames = [numFeatures]string{
	"worked_hours",
	"schedule_deviation",
	"checkin_latency",
	"checkout_latency",
	"overtime_hours",
	"day_of_week",
	"checkin_hour",
	"is_partial",
	"session_duration",
}

// extractFeatures builds the numeric feature vector for one session.
// Latencies are signed minutes: positive checkin_latency means a late
// check-in, positive checkout_latency means an early check-out.
func extractFeatures(s model.WorkSession) []float64 {
	v := make([]float64, numFeatures)

	v[featWorkedHours] = s.WorkedHours
	v[featScheduleDeviation] = s.WorkedHours - s.ScheduledHours()
	if s.ActualStart != nil {
		v[featCheckinLatency] = s.ActualStart.Sub(s.ScheduledStart).Minutes()
		v[featCheckinHour] = float64(s.ActualStart.Hour())
	}
	if s.ActualEnd != nil {
		v[featCheckoutLatency] = s.ScheduledEnd.Sub(*s.ActualEnd).Minutes()
	}
	v[featOvertimeHours] = s.OvertimeHours
	v[featDayOfWeek] = float64(s.SessionDate.Weekday())
	if s.IsPartial {
		v[featIsPartial] = 1
	}
	if s.ActualStart != nil && s.ActualEnd != nil {
		v[featSessionDuration] = s.ActualEnd.Sub(*s.ActualStart).Hours()
	} else {
		v[featSessionDuration] = s.WorkedHours
	}

	return v
}

// featureMatrix extracts feature vectors for all sessions.
func featureMatrix(sessions []model.WorkSession) [][]float64 {
	X := make([][]float64, len(sessions))
	for i, s := range sessions {
		X[i] = extractFeatures(s)
	}
	return X
}
