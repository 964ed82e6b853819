package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Anomaly  AnomalyConfig  `yaml:"anomaly" mapstructure:"anomaly"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the output database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PipelineConfig holds the explicit, runtime-supplied thresholds for the
// transformation stages and the rule engine. None of these are hardcoded in
// the stages; they are injected as values.
type PipelineConfig struct {
	Timezone               string  `yaml:"timezone" mapstructure:"timezone"`
	GraceMinutes           int     `yaml:"grace_minutes" mapstructure:"grace_minutes"`
	OffScheduleMinutes     int     `yaml:"off_schedule_minutes" mapstructure:"off_schedule_minutes"`
	MidShiftMinutes        int     `yaml:"mid_shift_minutes" mapstructure:"mid_shift_minutes"`
	MissedPunchMinHours    float64 `yaml:"missed_punch_min_hours" mapstructure:"missed_punch_min_hours"`
	MissedPunchMaxHours    float64 `yaml:"missed_punch_max_hours" mapstructure:"missed_punch_max_hours"`
	OvertimeThresholdHours float64 `yaml:"overtime_threshold_hours" mapstructure:"overtime_threshold_hours"`
	DoubleBadgeMinutes     int     `yaml:"double_badge_minutes" mapstructure:"double_badge_minutes"`
	ImputationHours        float64 `yaml:"imputation_hours" mapstructure:"imputation_hours"`
	LookaheadHours         float64 `yaml:"lookahead_hours" mapstructure:"lookahead_hours"`
	Parallelism            int     `yaml:"parallelism" mapstructure:"parallelism"`
}

// Location resolves the pipeline's fixed timezone. The pipeline does no DST
// arithmetic; all instants are interpreted in this single zone.
func (c PipelineConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %q", c.Timezone)
	}
	return loc, nil
}

// AnomalyConfig configures the isolation-forest anomaly detector.
type AnomalyConfig struct {
	Contamination float64 `yaml:"contamination" mapstructure:"contamination"`
	Trees         int     `yaml:"trees" mapstructure:"trees"`
	SampleSize    int     `yaml:"sample_size" mapstructure:"sample_size"`
	Seed          int64   `yaml:"seed" mapstructure:"seed"`
	MinSessions   int     `yaml:"min_sessions" mapstructure:"min_sessions"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATTENDANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "attendance.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pipeline.timezone", "Local")
	v.SetDefault("pipeline.grace_minutes", 5)
	v.SetDefault("pipeline.off_schedule_minutes", 240)
	v.SetDefault("pipeline.mid_shift_minutes", 30)
	v.SetDefault("pipeline.missed_punch_min_hours", 2)
	v.SetDefault("pipeline.missed_punch_max_hours", 16)
	v.SetDefault("pipeline.overtime_threshold_hours", 4)
	v.SetDefault("pipeline.double_badge_minutes", 5)
	v.SetDefault("pipeline.imputation_hours", 8)
	v.SetDefault("pipeline.lookahead_hours", 24)
	v.SetDefault("pipeline.parallelism", 4)
	v.SetDefault("anomaly.contamination", 0.1)
	v.SetDefault("anomaly.trees", 100)
	v.SetDefault("anomaly.sample_size", 256)
	v.SetDefault("anomaly.seed", 42)
	v.SetDefault("anomaly.min_sessions", 8)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
