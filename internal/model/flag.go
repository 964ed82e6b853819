package model

// ExceptionCode identifies a deterministic compliance rule.
type ExceptionCode string

const (
	CodeLateCheckin          ExceptionCode = "late_checkin"
	CodeEarlyCheckout        ExceptionCode = "early_checkout"
	CodeMissedPunch          ExceptionCode = "missed_punch"
	CodeMidShiftRegistration ExceptionCode = "mid_shift_registration"
	CodeNightShiftCross      ExceptionCode = "night_shift_cross"
	CodeExcessiveOvertime    ExceptionCode = "excessive_overtime"
	CodeDoubleBadgeUse       ExceptionCode = "double_badge_use"
)

// Severity levels for exception flags.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// ExceptionFlag is one rule hit on one session. Codes are not mutually
// exclusive; a session may carry any number of flags.
type ExceptionFlag struct {
	SessionID   string        `json:"session_id"`
	Code        ExceptionCode `json:"code"`
	Severity    string        `json:"severity"`
	Explanation string        `json:"explanation"`
}

// FeatureDeviation is one feature's contribution to an anomaly flag.
type FeatureDeviation struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	ZScore float64 `json:"z_score"`
}

// AnomalyFlag marks a session scored below the contamination-derived
// threshold. More negative scores are more anomalous.
type AnomalyFlag struct {
	SessionID   string             `json:"session_id"`
	Score       float64            `json:"anomaly_score"`
	TopFeatures []FeatureDeviation `json:"top_features"`
	Explanation string             `json:"explanation"`
}
