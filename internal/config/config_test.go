package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "attendance.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, 5, cfg.Pipeline.GraceMinutes)
	assert.Equal(t, 240, cfg.Pipeline.OffScheduleMinutes)
	assert.Equal(t, 30, cfg.Pipeline.MidShiftMinutes)
	assert.Equal(t, 2.0, cfg.Pipeline.MissedPunchMinHours)
	assert.Equal(t, 16.0, cfg.Pipeline.MissedPunchMaxHours)
	assert.Equal(t, 4.0, cfg.Pipeline.OvertimeThresholdHours)
	assert.Equal(t, 5, cfg.Pipeline.DoubleBadgeMinutes)
	assert.Equal(t, 8.0, cfg.Pipeline.ImputationHours)
	assert.Equal(t, 24.0, cfg.Pipeline.LookaheadHours)

	assert.Equal(t, 0.1, cfg.Anomaly.Contamination)
	assert.Equal(t, 100, cfg.Anomaly.Trees)
	assert.Equal(t, 256, cfg.Anomaly.SampleSize)
	assert.Equal(t, int64(42), cfg.Anomaly.Seed)
	assert.Equal(t, 8, cfg.Anomaly.MinSessions)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
store:
  driver: postgres
  database_url: postgres://localhost/attendance
pipeline:
  grace_minutes: 10
  timezone: UTC
anomaly:
  contamination: 0.05
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/attendance", cfg.Store.DatabaseURL)
	assert.Equal(t, 10, cfg.Pipeline.GraceMinutes)
	assert.Equal(t, "UTC", cfg.Pipeline.Timezone)
	// Unset keys keep defaults.
	assert.Equal(t, 30, cfg.Pipeline.MidShiftMinutes)
	assert.Equal(t, 0.05, cfg.Anomaly.Contamination)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ATTENDANCE_PIPELINE_GRACE_MINUTES", "7")
	t.Setenv("ATTENDANCE_STORE_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Pipeline.GraceMinutes)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestPipelineConfig_Location(t *testing.T) {
	loc, err := PipelineConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = PipelineConfig{Timezone: "Local"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	_, err = PipelineConfig{Timezone: "Not/AZone"}.Location()
	assert.Error(t, err)
}
