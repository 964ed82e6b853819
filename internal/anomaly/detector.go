package anomaly

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/attendance-cli/internal/config"
	"github.com/sells-group/attendance-cli/internal/model"
)

// Detector scores a run's sessions with a freshly fitted model.
type Detector struct {
	cfg config.AnomalyConfig
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg config.AnomalyConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect fits the scaler and forest on the complete session set and flags
// sessions scoring below the contamination quantile. It returns skipped=true
// without flags when the run is too small or carries no feature variance;
// both are expected small-input conditions, not errors.
func (d *Detector) Detect(sessions []model.WorkSession) (flags []model.AnomalyFlag, skipped bool) {
	if len(sessions) < d.cfg.MinSessions {
		zap.L().Warn("anomaly detection skipped: too few sessions",
			zap.Int("sessions", len(sessions)),
			zap.Int("min_sessions", d.cfg.MinSessions))
		return nil, true
	}

	X := featureMatrix(sessions)
	scaler, err := FitScaler(X)
	if err != nil {
		zap.L().Warn("anomaly detection skipped: degenerate features", zap.Error(err))
		return nil, true
	}
	scaled := scaler.Transform(X)

	forest := FitForest(scaled, d.cfg.Trees, d.cfg.SampleSize, d.cfg.Seed)
	scores := forest.ScoreAll(scaled)
	threshold := quantile(scores, d.cfg.Contamination)

	for i, score := range scores {
		if score >= threshold {
			continue
		}
		top := topDeviations(sessions[i], scaler, 3)
		flags = append(flags, model.AnomalyFlag{
			SessionID:   sessions[i].SessionID,
			Score:       score,
			TopFeatures: top,
			Explanation: explain(sessions[i], top),
		})
	}

	sort.Slice(flags, func(i, j int) bool {
		if flags[i].Score != flags[j].Score {
			return flags[i].Score < flags[j].Score
		}
		return flags[i].SessionID < flags[j].SessionID
	})

	zap.L().Info("anomaly detection complete",
		zap.Int("sessions", len(sessions)),
		zap.Int("anomalies", len(flags)),
		zap.Float64("threshold", threshold))
	return flags, false
}

// quantile returns the q-quantile of values with linear interpolation.
func quantile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
