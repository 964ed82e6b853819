package etl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/attendance-cli/internal/config"
	"github.com/sells-group/attendance-cli/internal/model"
)

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		Timezone:               "UTC",
		GraceMinutes:           5,
		OffScheduleMinutes:     240,
		MidShiftMinutes:        30,
		MissedPunchMinHours:    2,
		MissedPunchMaxHours:    16,
		OvertimeThresholdHours: 4,
		DoubleBadgeMinutes:     5,
		ImputationHours:        8,
		LookaheadHours:         24,
		Parallelism:            4,
	}
}

func nightShift(id, employeeID string) model.Shift {
	return model.Shift{
		ShiftID:     id,
		EmployeeID:  employeeID,
		StartMinute: 22 * 60,
		EndMinute:   6 * 60,
		Days:        weekdays(),
		Active:      true,
	}
}

func assignOne(t *testing.T, ev model.AttendanceEvent, shifts []model.Shift, swaps []model.ShiftSwap) AssignedEvent {
	t.Helper()
	sched := NewSchedule(shifts, swaps)
	out := AssignShifts(context.Background(), []model.AttendanceEvent{ev}, sched, testPipelineConfig(), time.UTC)
	require.Len(t, out, 1)
	return out[0]
}

func TestAssignShifts_InWindowEvent(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	ev := model.AttendanceEvent{
		EventID:    "ev-1",
		EmployeeID: "E001",
		Type:       model.EventCheckIn,
		Timestamp:  monday.Add(9*time.Hour + 10*time.Minute),
	}

	got := assignOne(t, ev, []model.Shift{dayShift("S1", "E001")}, nil)
	assert.Equal(t, "S1", got.ShiftID)
	assert.Equal(t, monday, got.InstanceDate)
	assert.Equal(t, monday.Add(9*time.Hour), got.ScheduledStart)
	assert.Equal(t, monday.Add(17*time.Hour), got.ScheduledEnd)
}

func TestAssignShifts_BeyondThresholdIsOffSchedule(t *testing.T) {
	// Monday 03:00 is six hours before the 09:00 start, past the 240-minute
	// threshold, and Sunday carries no scheduled shift.
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	ev := model.AttendanceEvent{
		EventID:    "ev-1",
		EmployeeID: "E001",
		Type:       model.EventCheckIn,
		Timestamp:  monday.Add(3 * time.Hour),
	}

	got := assignOne(t, ev, []model.Shift{dayShift("S1", "E001")}, nil)
	assert.Empty(t, got.ShiftID)
	assert.Equal(t, monday, got.InstanceDate)
}

func TestAssignShifts_PostMidnightCheckoutJoinsNightShift(t *testing.T) {
	// A 06:10 Tuesday checkout belongs to the night shift instance dated
	// Monday, whose window runs Monday 22:00 to Tuesday 06:00.
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	ev := model.AttendanceEvent{
		EventID:    "ev-1",
		EmployeeID: "E001",
		Type:       model.EventCheckOut,
		Timestamp:  monday.AddDate(0, 0, 1).Add(6*time.Hour + 10*time.Minute),
	}

	got := assignOne(t, ev, []model.Shift{nightShift("S9", "E001")}, nil)
	assert.Equal(t, "S9", got.ShiftID)
	assert.Equal(t, monday, got.InstanceDate)
	assert.Equal(t, monday.Add(22*time.Hour), got.ScheduledStart)
	assert.Equal(t, monday.Add(30*time.Hour), got.ScheduledEnd)
}

func TestAssignShifts_ClosestStartWinsTieBreak(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	early := dayShift("S1", "E001")
	late := dayShift("S2", "E001")
	late.StartMinute = 13 * 60
	late.EndMinute = 21 * 60

	// 12:30 sits inside S1's window but is closer to S2's 13:00 start.
	ev := model.AttendanceEvent{
		EventID:    "ev-1",
		EmployeeID: "E001",
		Type:       model.EventCheckIn,
		Timestamp:  monday.Add(12*time.Hour + 30*time.Minute),
	}

	got := assignOne(t, ev, []model.Shift{early, late}, nil)
	assert.Equal(t, "S2", got.ShiftID)
}

func TestAssignShifts_SwapOverrideRedirectsAssignment(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	swap := model.ShiftSwap{
		RequesterID:      "E001",
		RequesterShiftID: "S1",
		CounterID:        "E002",
		CounterShiftID:   "S2",
		Date:             monday,
		Status:           model.SwapApproved,
	}
	night := nightShift("S2", "E002")

	// E001 swapped onto E002's night shift; their 22:05 punch joins S2.
	ev := model.AttendanceEvent{
		EventID:    "ev-1",
		EmployeeID: "E001",
		Type:       model.EventCheckIn,
		Timestamp:  monday.Add(22*time.Hour + 5*time.Minute),
	}

	got := assignOne(t, ev, []model.Shift{dayShift("S1", "E001"), night}, []model.ShiftSwap{swap})
	assert.Equal(t, "S2", got.ShiftID)
}

func TestAssignShifts_OutputSortedDeterministically(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	shifts := []model.Shift{dayShift("S1", "E001"), dayShift("S2", "E002")}

	events := []model.AttendanceEvent{
		{EventID: "ev-3", EmployeeID: "E002", Timestamp: monday.Add(9 * time.Hour)},
		{EventID: "ev-2", EmployeeID: "E001", Timestamp: monday.Add(17 * time.Hour)},
		{EventID: "ev-1", EmployeeID: "E001", Timestamp: monday.Add(9 * time.Hour)},
	}

	sched := NewSchedule(shifts, nil)
	out := AssignShifts(context.Background(), events, sched, testPipelineConfig(), time.UTC)
	require.Len(t, out, 3)
	assert.Equal(t, "ev-1", out[0].EventID)
	assert.Equal(t, "ev-2", out[1].EventID)
	assert.Equal(t, "ev-3", out[2].EventID)
}
