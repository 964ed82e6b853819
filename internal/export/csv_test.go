package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/attendance-cli/internal/model"
)

func sampleResults() model.RunArtifacts {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	start := day.Add(9 * time.Hour)
	end := day.Add(17 * time.Hour)
	return model.RunArtifacts{
		Sessions: []model.WorkSession{
			{
				SessionID:      "E002|S1|2024-03-04",
				EmployeeID:     "E002",
				ShiftID:        "S1",
				ScheduledStart: start,
				ScheduledEnd:   end,
				ActualStart:    &start,
				ActualEnd:      &end,
				WorkedHours:    8,
				SessionDate:    day,
				Facility:       "plant-a",
			},
			{
				SessionID:      "E001|adhoc|2024-03-04",
				EmployeeID:     "E001",
				ScheduledStart: start,
				ScheduledEnd:   end,
				WorkedHours:    0,
				IsPartial:      true,
				Unmatched:      true,
				SessionDate:    day,
			},
		},
		Exceptions: []model.ExceptionFlag{
			{SessionID: "E002|S1|2024-03-04", Code: model.CodeLateCheckin, Severity: model.SeverityWarning, Explanation: "late"},
			{SessionID: "E001|adhoc|2024-03-04", Code: model.CodeMissedPunch, Severity: model.SeverityWarning, Explanation: "missing"},
		},
		Anomalies: []model.AnomalyFlag{
			{
				SessionID: "E002|S1|2024-03-04",
				Score:     -0.63217,
				TopFeatures: []model.FeatureDeviation{
					{Name: "worked_hours", Value: 8, ZScore: 2.5},
					{Name: "overtime_hours", Value: 0, ZScore: -1.2},
				},
				Explanation: "anomalous session: worked 8h00m",
			},
		},
		Unresolved: []model.UnresolvedEvent{
			{EventID: "ev-9", Reason: "unknown badge_id", BadgeID: "B999", RawTimestamp: "2024-03-04 09:00:00"},
		},
	}
}

func TestWriteAll_CreatesAllFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, WriteAll(dir, sampleResults()))

	for _, name := range []string{
		"work_sessions.csv", "exception_flags.csv", "anomaly_flags.csv", "unresolved_events.csv",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestWriteSessions_SortedAndFormatted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.csv")
	require.NoError(t, WriteSessions(path, sampleResults().Sessions))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got := string(data)

	assert.Contains(t, got, "session_id,employee_id,shift_id")
	assert.Contains(t, got, "E001|adhoc|2024-03-04,E001,,2024-03-04")
	assert.Contains(t, got, "2024-03-04 09:00:00")
	assert.Contains(t, got, "8.00")
	// Ad-hoc row sorts before the scheduled one and has empty actuals.
	assert.Less(t, strings.Index(got, "E001|adhoc"), strings.Index(got, "E002|S1"))
}

func TestWriteAnomalies_ScorePrecisionAndFeatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anomalies.csv")
	require.NoError(t, WriteAnomalies(path, sampleResults().Anomalies))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got := string(data)

	assert.Contains(t, got, "-0.6322")
	assert.Contains(t, got, "worked_hours:2.50|overtime_hours:-1.20")
}

func TestWriteAll_RerunIsByteIdentical(t *testing.T) {
	res := sampleResults()

	dirA := filepath.Join(t.TempDir(), "a")
	dirB := filepath.Join(t.TempDir(), "b")
	require.NoError(t, WriteAll(dirA, res))
	require.NoError(t, WriteAll(dirB, res))

	for _, name := range []string{
		"work_sessions.csv", "exception_flags.csv", "anomaly_flags.csv", "unresolved_events.csv",
	} {
		a, err := os.ReadFile(filepath.Join(dirA, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(dirB, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, name)
	}
}
