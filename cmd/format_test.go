package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/attendance-cli/internal/model"
)

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("123456789abcdef"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "aaaabbbb-cccc-dddd",
			Status:    model.RunStatusComplete,
			Summary:   &model.RunSummary{Sessions: 12, Exceptions: 3, Anomalies: 1},
			CreatedAt: created,
			UpdatedAt: created.Add(42 * time.Second),
		},
		{
			ID:        "eeeeffff-0000-1111",
			Status:    model.RunStatusFailed,
			CreatedAt: created,
			UpdatedAt: created,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "aaaabbbb")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "42s")
	// Runs without a summary render placeholders.
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "-")
}

func TestFormatSessions(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	start := day.Add(9 * time.Hour)
	sessions := []model.WorkSession{
		{
			SessionID:   "E001|adhoc|2024-03-04",
			EmployeeID:  "E001",
			SessionDate: day,
			ActualStart: &start,
			WorkedHours: 8,
			IsPartial:   true,
			IsImputed:   true,
		},
	}

	var buf bytes.Buffer
	formatSessions(&buf, sessions)
	out := buf.String()

	assert.Contains(t, out, "adhoc")
	assert.Contains(t, out, "09:00")
	assert.Contains(t, out, "8h00m")
	assert.Contains(t, out, "partial imputed")
}
