package anomaly

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/attendance-cli/internal/config"
	"github.com/sells-group/attendance-cli/internal/model"
)

func testConfig() config.AnomalyConfig {
	return config.AnomalyConfig{
		Contamination: 0.1,
		Trees:         100,
		SampleSize:    256,
		Seed:          42,
		MinSessions:   8,
	}
}

// typicalSession is a well-behaved 09:00-17:00 session on the given day.
func typicalSession(i int, day time.Time) model.WorkSession {
	start := day.Add(9 * time.Hour).Add(time.Duration(i%3) * time.Minute)
	end := day.Add(17 * time.Hour).Add(time.Duration(i%2) * time.Minute)
	return model.WorkSession{
		SessionID:      fmt.Sprintf("E%03d|S1|%s", i, day.Format("2006-01-02")),
		EmployeeID:     fmt.Sprintf("E%03d", i),
		ShiftID:        "S1",
		ScheduledStart: day.Add(9 * time.Hour),
		ScheduledEnd:   day.Add(17 * time.Hour),
		ActualStart:    &start,
		ActualEnd:      &end,
		WorkedHours:    end.Sub(start).Hours(),
		SessionDate:    day,
	}
}

func TestFitScaler_MeanAndStd(t *testing.T) {
	X := [][]float64{{1, 10}, {3, 10}, {5, 10}}
	s, err := FitScaler(X)
	require.NoError(t, err)

	assert.InDelta(t, 3.0, s.Mean[0], 1e-9)
	assert.InDelta(t, 10.0, s.Mean[1], 1e-9)
	// Second column has zero variance and scales by 1.
	assert.Equal(t, 1.0, s.Std[1])

	scaled := s.TransformRow([]float64{3, 10})
	assert.InDelta(t, 0.0, scaled[0], 1e-9)
	assert.InDelta(t, 0.0, scaled[1], 1e-9)
}

func TestFitScaler_AllZeroVariance(t *testing.T) {
	X := [][]float64{{2, 5}, {2, 5}, {2, 5}}
	_, err := FitScaler(X)
	assert.Error(t, err)
}

func TestFitScaler_Empty(t *testing.T) {
	_, err := FitScaler(nil)
	assert.Error(t, err)
}

func TestIsolationForest_OutlierScoresLower(t *testing.T) {
	var X [][]float64
	for i := 0; i < 100; i++ {
		X = append(X, []float64{float64(i%5) * 0.1, float64(i%7) * 0.1})
	}
	outlier := []float64{50, -50}
	X = append(X, outlier)

	f := FitForest(X, 100, 256, 42)
	outlierScore := f.Score(outlier)
	inlierScore := f.Score([]float64{0.2, 0.3})

	assert.Less(t, outlierScore, inlierScore)
	assert.Less(t, outlierScore, 0.0)
	assert.GreaterOrEqual(t, outlierScore, -1.0)
}

func TestIsolationForest_Deterministic(t *testing.T) {
	var X [][]float64
	for i := 0; i < 50; i++ {
		X = append(X, []float64{float64(i), float64(i * i % 13)})
	}

	a := FitForest(X, 50, 32, 42).ScoreAll(X)
	b := FitForest(X, 50, 32, 42).ScoreAll(X)
	assert.Equal(t, a, b)
}

func TestDetect_SkipsSmallRuns(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	var sessions []model.WorkSession
	for i := 0; i < 5; i++ {
		sessions = append(sessions, typicalSession(i, day))
	}

	flags, skipped := NewDetector(testConfig()).Detect(sessions)
	assert.True(t, skipped)
	assert.Empty(t, flags)
}

func TestDetect_SkipsDegenerateFeatures(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	var sessions []model.WorkSession
	for i := 0; i < 10; i++ {
		s := typicalSession(0, day)
		s.SessionID = fmt.Sprintf("dup-%d", i)
		sessions = append(sessions, s)
	}

	flags, skipped := NewDetector(testConfig()).Detect(sessions)
	assert.True(t, skipped)
	assert.Empty(t, flags)
}

func TestDetect_FlagsOutlierSession(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	var sessions []model.WorkSession
	for i := 0; i < 40; i++ {
		sessions = append(sessions, typicalSession(i, day.AddDate(0, 0, i%5)))
	}

	// One 20-hour marathon session.
	odd := typicalSession(99, day)
	end := odd.ActualStart.Add(20 * time.Hour)
	odd.ActualEnd = &end
	odd.WorkedHours = 20
	odd.OvertimeHours = 12
	sessions = append(sessions, odd)

	flags, skipped := NewDetector(testConfig()).Detect(sessions)
	require.False(t, skipped)
	require.NotEmpty(t, flags)

	assert.Equal(t, odd.SessionID, flags[0].SessionID)
	assert.Negative(t, flags[0].Score)
	assert.Len(t, flags[0].TopFeatures, 3)
	assert.NotEmpty(t, flags[0].Explanation)
}

func TestDetect_DeterministicAcrossRuns(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	var sessions []model.WorkSession
	for i := 0; i < 30; i++ {
		sessions = append(sessions, typicalSession(i, day.AddDate(0, 0, i%7)))
	}
	odd := typicalSession(77, day)
	odd.WorkedHours = 0.2
	sessions = append(sessions, odd)

	d := NewDetector(testConfig())
	first, _ := d.Detect(sessions)
	second, _ := d.Detect(sessions)
	assert.Equal(t, first, second)
}

func TestQuantile(t *testing.T) {
	values := []float64{4, 1, 3, 2}
	assert.InDelta(t, 1.0, quantile(values, 0), 1e-9)
	assert.InDelta(t, 4.0, quantile(values, 1), 1e-9)
	assert.InDelta(t, 2.5, quantile(values, 0.5), 1e-9)
}

func TestExplain_TopFeaturePhrases(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	s := typicalSession(1, day)
	top := []model.FeatureDeviation{
		{Name: "worked_hours", Value: 14.5, ZScore: 3.2},
		{Name: "checkin_latency", Value: 95, ZScore: 2.1},
		{Name: "is_partial", Value: 1, ZScore: 1.4},
	}

	got := explain(s, top)
	assert.Contains(t, got, "worked 14h30m")
	assert.Contains(t, got, "checked in 1h35m late")
	assert.Contains(t, got, "partial session")
}
