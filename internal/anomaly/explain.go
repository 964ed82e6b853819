package anomaly

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/attendance-cli/internal/model"
)

// topDeviations ranks features of one session by |z-score| against the
// fitted scaler and keeps the k largest. Ties break on vector order so the
// ranking is deterministic.
func topDeviations(s model.WorkSession, scaler *StandardScaler, k int) []model.FeatureDeviation {
	raw := extractFeatures(s)
	scaled := scaler.TransformRow(raw)

	devs := make([]model.FeatureDeviation, numFeatures)
	for d := 0; d < numFeatures; d++ {
		devs[d] = model.FeatureDeviation{
			Name:   featureNames[d],
			Value:  raw[d],
			ZScore: scaled[d],
		}
	}
	sort.SliceStable(devs, func(i, j int) bool {
		return math.Abs(devs[i].ZScore) > math.Abs(devs[j].ZScore)
	})
	if len(devs) > k {
		devs = devs[:k]
	}
	return devs
}

// explain renders the top deviations as one human-readable sentence.
func explain(s model.WorkSession, top []model.FeatureDeviation) string {
	parts := make([]string, 0, len(top))
	for _, d := range top {
		parts = append(parts, describeFeature(s, d))
	}
	return "anomalous session: " + strings.Join(parts, "; ")
}

func describeFeature(s model.WorkSession, d model.FeatureDeviation) string {
	switch d.Name {
	case "worked_hours":
		return fmt.Sprintf("worked %s", model.FormatHours(d.Value))
	case "schedule_deviation":
		if d.Value >= 0 {
			return fmt.Sprintf("worked %s over schedule", model.FormatHours(d.Value))
		}
		return fmt.Sprintf("worked %s under schedule", model.FormatHours(-d.Value))
	case "checkin_latency":
		if d.Value >= 0 {
			return fmt.Sprintf("checked in %s late", formatMinuteValue(d.Value))
		}
		return fmt.Sprintf("checked in %s early", formatMinuteValue(-d.Value))
	case "checkout_latency":
		if d.Value >= 0 {
			return fmt.Sprintf("checked out %s early", formatMinuteValue(d.Value))
		}
		return fmt.Sprintf("checked out %s late", formatMinuteValue(-d.Value))
	case "overtime_hours":
		return fmt.Sprintf("%s of overtime", model.FormatHours(d.Value))
	case "day_of_week":
		return fmt.Sprintf("worked on a %s", s.SessionDate.Weekday())
	case "checkin_hour":
		return fmt.Sprintf("checked in around %02d:00", int(d.Value))
	case "is_partial":
		if d.Value > 0 {
			return "partial session"
		}
		return "complete session"
	case "session_duration":
		return fmt.Sprintf("session lasted %s", model.FormatHours(d.Value))
	}
	return fmt.Sprintf("%s=%.2f", d.Name, d.Value)
}

func formatMinuteValue(minutes float64) string {
	return model.FormatDuration(time.Duration(minutes * float64(time.Minute)))
}
