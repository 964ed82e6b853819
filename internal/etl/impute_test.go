package etl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/attendance-cli/internal/model"
)

func assignedEvent(id, employeeID, shiftID string, typ model.EventType, ts time.Time, date time.Time) AssignedEvent {
	return AssignedEvent{
		AttendanceEvent: model.AttendanceEvent{
			EventID:    id,
			EmployeeID: employeeID,
			BadgeID:    "B100",
			Type:       typ,
			Timestamp:  ts,
		},
		ShiftID:        shiftID,
		InstanceDate:   date,
		ScheduledStart: date.Add(9 * time.Hour),
		ScheduledEnd:   date.Add(17 * time.Hour),
	}
}

func TestGroupEvents_GroupsByShiftInstance(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	assigned := []AssignedEvent{
		assignedEvent("ev-2", "E001", "S1", model.EventCheckOut, monday.Add(17*time.Hour), monday),
		assignedEvent("ev-1", "E001", "S1", model.EventCheckIn, monday.Add(9*time.Hour), monday),
		assignedEvent("ev-3", "E001", "S1", model.EventCheckIn, tuesday.Add(9*time.Hour), tuesday),
		assignedEvent("ev-4", "E002", "S2", model.EventCheckIn, monday.Add(9*time.Hour), monday),
	}

	groups := GroupEvents(assigned)
	require.Len(t, groups, 3)

	// Deterministic order: employee, date, shift; events time-sorted inside.
	assert.Equal(t, InstanceKey{EmployeeID: "E001", ShiftID: "S1", Date: "2024-03-04"}, groups[0].Key)
	require.Len(t, groups[0].Events, 2)
	assert.Equal(t, "ev-1", groups[0].Events[0].EventID)
	assert.Equal(t, "ev-2", groups[0].Events[1].EventID)
	assert.Equal(t, "B100", groups[0].BadgeID)

	assert.Equal(t, "2024-03-05", groups[1].Key.Date)
	assert.Equal(t, "E002", groups[2].Key.EmployeeID)
}

func TestImputePunches_EarliestInLatestOut(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	groups := GroupEvents([]AssignedEvent{
		assignedEvent("ev-1", "E001", "S1", model.EventCheckIn, monday.Add(9*time.Hour), monday),
		assignedEvent("ev-2", "E001", "S1", model.EventCheckIn, monday.Add(9*time.Hour+5*time.Minute), monday),
		assignedEvent("ev-3", "E001", "S1", model.EventCheckOut, monday.Add(12*time.Hour), monday),
		assignedEvent("ev-4", "E001", "S1", model.EventCheckOut, monday.Add(17*time.Hour), monday),
	})

	punched := ImputePunches(groups, testPipelineConfig())
	require.Len(t, punched, 1)
	p := punched[0]

	require.NotNil(t, p.Start)
	require.NotNil(t, p.End)
	assert.Equal(t, monday.Add(9*time.Hour), *p.Start)
	assert.Equal(t, monday.Add(17*time.Hour), *p.End)
	assert.False(t, p.Imputed)
	assert.False(t, p.Unmatched)
}

func TestImputePunches_LoneCheckinGetsImputedCheckout(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	groups := GroupEvents([]AssignedEvent{
		assignedEvent("ev-1", "E001", "S1", model.EventCheckIn, monday.Add(9*time.Hour), monday),
	})

	punched := ImputePunches(groups, testPipelineConfig())
	require.Len(t, punched, 1)
	p := punched[0]

	require.NotNil(t, p.End)
	assert.Equal(t, monday.Add(17*time.Hour), *p.End) // start + 8h
	assert.True(t, p.Imputed)
}

func TestImputePunches_LoneCheckoutIsUnmatched(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	groups := GroupEvents([]AssignedEvent{
		assignedEvent("ev-1", "E001", "S1", model.EventCheckOut, monday.Add(17*time.Hour), monday),
	})

	punched := ImputePunches(groups, testPipelineConfig())
	require.Len(t, punched, 1)
	p := punched[0]

	assert.Nil(t, p.Start)
	require.NotNil(t, p.End)
	assert.True(t, p.Unmatched)
	assert.False(t, p.Imputed)
}

func TestImputePunches_CheckoutBeyondLookaheadIgnored(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	groups := GroupEvents([]AssignedEvent{
		assignedEvent("ev-1", "E001", "S1", model.EventCheckIn, monday.Add(9*time.Hour), monday),
		assignedEvent("ev-2", "E001", "S1", model.EventCheckOut, monday.Add(9*time.Hour+25*time.Hour), monday),
	})

	punched := ImputePunches(groups, testPipelineConfig())
	require.Len(t, punched, 1)
	p := punched[0]

	require.NotNil(t, p.End)
	assert.Equal(t, monday.Add(17*time.Hour), *p.End)
	assert.True(t, p.Imputed)
}

func TestImputePunches_CheckoutBeforeCheckinIgnored(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	groups := GroupEvents([]AssignedEvent{
		assignedEvent("ev-1", "E001", "S1", model.EventCheckIn, monday.Add(9*time.Hour), monday),
		assignedEvent("ev-2", "E001", "S1", model.EventCheckOut, monday.Add(8*time.Hour), monday),
	})

	punched := ImputePunches(groups, testPipelineConfig())
	require.Len(t, punched, 1)
	p := punched[0]

	assert.True(t, p.Imputed)
	assert.Equal(t, monday.Add(17*time.Hour), *p.End)
}
