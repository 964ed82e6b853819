package etl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/attendance-cli/internal/model"
)

func TestBuildSessions_WorkedAndOvertimeHours(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	groups := GroupEvents([]AssignedEvent{
		assignedEvent("ev-1", "E001", "S1", model.EventCheckIn, monday.Add(9*time.Hour), monday),
		assignedEvent("ev-2", "E001", "S1", model.EventCheckOut, monday.Add(18*time.Hour), monday),
	})
	punched := ImputePunches(groups, testPipelineConfig())

	sessions := BuildSessions(punched, testPipelineConfig())
	require.Len(t, sessions, 1)
	s := sessions[0]

	assert.Equal(t, "E001|S1|2024-03-04", s.SessionID)
	assert.InDelta(t, 9.0, s.WorkedHours, 1e-9)
	assert.InDelta(t, 1.0, s.OvertimeHours, 1e-9)
	assert.False(t, s.IsPartial)
	assert.False(t, s.CrossesMidnight())
}

func TestBuildSessions_NightShiftScenario(t *testing.T) {
	// 22:00-06:00 shift, check-in 21:55, check-out 06:10 next day.
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	in := AssignedEvent{
		AttendanceEvent: model.AttendanceEvent{
			EventID: "ev-1", EmployeeID: "E001", Type: model.EventCheckIn,
			Timestamp: monday.Add(21*time.Hour + 55*time.Minute),
		},
		ShiftID:        "S9",
		InstanceDate:   monday,
		ScheduledStart: monday.Add(22 * time.Hour),
		ScheduledEnd:   monday.Add(30 * time.Hour),
	}
	out := in
	out.EventID = "ev-2"
	out.Type = model.EventCheckOut
	out.Timestamp = monday.Add(30*time.Hour + 10*time.Minute)

	punched := ImputePunches(GroupEvents([]AssignedEvent{in, out}), testPipelineConfig())
	sessions := BuildSessions(punched, testPipelineConfig())
	require.Len(t, sessions, 1)
	s := sessions[0]

	assert.InDelta(t, 8.25, s.WorkedHours, 1e-9)
	assert.InDelta(t, 10.0/60.0, s.OvertimeHours, 1e-9)
	assert.True(t, s.CrossesMidnight())
	assert.False(t, s.IsPartial)
}

func TestBuildSessions_UnmatchedGroupIsPartialZeroHours(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	punched := ImputePunches(GroupEvents([]AssignedEvent{
		assignedEvent("ev-1", "E001", "S1", model.EventCheckOut, monday.Add(17*time.Hour), monday),
	}), testPipelineConfig())

	sessions := BuildSessions(punched, testPipelineConfig())
	require.Len(t, sessions, 1)
	s := sessions[0]

	assert.Zero(t, s.WorkedHours)
	assert.True(t, s.IsPartial)
	assert.True(t, s.Unmatched)
	assert.Nil(t, s.ActualStart)
}

func TestBuildSessions_OffScheduleUsesEventSpan(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	in := AssignedEvent{
		AttendanceEvent: model.AttendanceEvent{
			EventID: "ev-1", EmployeeID: "E001", Type: model.EventCheckIn,
			Timestamp: monday.Add(3 * time.Hour),
		},
		InstanceDate: monday,
	}
	out := in
	out.EventID = "ev-2"
	out.Type = model.EventCheckOut
	out.Timestamp = monday.Add(6 * time.Hour)

	punched := ImputePunches(GroupEvents([]AssignedEvent{in, out}), testPipelineConfig())
	sessions := BuildSessions(punched, testPipelineConfig())
	require.Len(t, sessions, 1)
	s := sessions[0]

	assert.Equal(t, "E001|adhoc|2024-03-04", s.SessionID)
	assert.True(t, s.OffSchedule())
	assert.Equal(t, monday.Add(3*time.Hour), s.ScheduledStart)
	assert.Equal(t, monday.Add(6*time.Hour), s.ScheduledEnd)
	assert.InDelta(t, 3.0, s.WorkedHours, 1e-9)
	assert.Zero(t, s.OvertimeHours)
}

func TestBuildSessions_ImputedCheckoutMarksPartial(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	punched := ImputePunches(GroupEvents([]AssignedEvent{
		assignedEvent("ev-1", "E001", "S1", model.EventCheckIn, monday.Add(9*time.Hour), monday),
	}), testPipelineConfig())

	sessions := BuildSessions(punched, testPipelineConfig())
	require.Len(t, sessions, 1)
	s := sessions[0]

	assert.True(t, s.IsImputed)
	assert.True(t, s.IsPartial)
	assert.InDelta(t, 8.0, s.WorkedHours, 1e-9)
}

func TestBuildSessions_DeterministicIDs(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	events := []AssignedEvent{
		assignedEvent("ev-1", "E001", "S1", model.EventCheckIn, monday.Add(9*time.Hour), monday),
		assignedEvent("ev-2", "E001", "S1", model.EventCheckOut, monday.Add(17*time.Hour), monday),
	}

	first := BuildSessions(ImputePunches(GroupEvents(events), testPipelineConfig()), testPipelineConfig())
	second := BuildSessions(ImputePunches(GroupEvents(events), testPipelineConfig()), testPipelineConfig())
	assert.Equal(t, first, second)
}
