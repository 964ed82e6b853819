// Package export writes pipeline results as CSV files. Output is fully
// deterministic: rows are sorted before writing, times use one fixed layout,
// and floats use fixed precision, so reruns over identical input produce
// byte-identical files.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/attendance-cli/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

// WriteAll writes the four result files into dir, creating it if needed.
func WriteAll(dir string, res model.RunArtifacts) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "export: create output directory")
	}

	if err := WriteSessions(filepath.Join(dir, "work_sessions.csv"), res.Sessions); err != nil {
		return err
	}
	if err := WriteExceptions(filepath.Join(dir, "exception_flags.csv"), res.Exceptions); err != nil {
		return err
	}
	if err := WriteAnomalies(filepath.Join(dir, "anomaly_flags.csv"), res.Anomalies); err != nil {
		return err
	}
	if err := WriteUnresolved(filepath.Join(dir, "unresolved_events.csv"), res.Unresolved); err != nil {
		return err
	}

	zap.L().Info("results exported",
		zap.String("dir", dir),
		zap.Int("sessions", len(res.Sessions)),
		zap.Int("exceptions", len(res.Exceptions)),
		zap.Int("anomalies", len(res.Anomalies)),
		zap.Int("unresolved", len(res.Unresolved)))
	return nil
}

// WriteSessions writes work sessions sorted by session id.
func WriteSessions(path string, sessions []model.WorkSession) error {
	rows := make([]model.WorkSession, len(sessions))
	copy(rows, sessions)
	sort.Slice(rows, func(i, j int) bool { return rows[i].SessionID < rows[j].SessionID })

	return writeCSV(path, []string{
		"session_id", "employee_id", "shift_id", "session_date",
		"scheduled_start", "scheduled_end", "actual_start", "actual_end",
		"worked_hours", "overtime_hours", "is_partial", "is_imputed", "facility",
	}, len(rows), func(i int) []string {
		s := rows[i]
		return []string{
			s.SessionID,
			s.EmployeeID,
			s.ShiftID,
			s.SessionDate.Format("2006-01-02"),
			s.ScheduledStart.Format(timeLayout),
			s.ScheduledEnd.Format(timeLayout),
			formatTimePtr(s.ActualStart),
			formatTimePtr(s.ActualEnd),
			fmt.Sprintf("%.2f", s.WorkedHours),
			fmt.Sprintf("%.2f", s.OvertimeHours),
			strconv.FormatBool(s.IsPartial),
			strconv.FormatBool(s.IsImputed),
			s.Facility,
		}
	})
}

// WriteExceptions writes exception flags sorted by (session, code, explanation).
func WriteExceptions(path string, flags []model.ExceptionFlag) error {
	rows := make([]model.ExceptionFlag, len(flags))
	copy(rows, flags)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SessionID != rows[j].SessionID {
			return rows[i].SessionID < rows[j].SessionID
		}
		if rows[i].Code != rows[j].Code {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Explanation < rows[j].Explanation
	})

	return writeCSV(path, []string{"session_id", "code", "severity", "explanation"},
		len(rows), func(i int) []string {
			f := rows[i]
			return []string{f.SessionID, string(f.Code), f.Severity, f.Explanation}
		})
}

// WriteAnomalies writes anomaly flags sorted by score then session id.
func WriteAnomalies(path string, flags []model.AnomalyFlag) error {
	rows := make([]model.AnomalyFlag, len(flags))
	copy(rows, flags)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score < rows[j].Score
		}
		return rows[i].SessionID < rows[j].SessionID
	})

	return writeCSV(path, []string{
		"session_id", "anomaly_score", "top_features", "explanation",
	}, len(rows), func(i int) []string {
		f := rows[i]
		return []string{
			f.SessionID,
			fmt.Sprintf("%.4f", f.Score),
			formatFeatures(f.TopFeatures),
			f.Explanation,
		}
	})
}

// WriteUnresolved writes excluded events sorted by event id.
func WriteUnresolved(path string, events []model.UnresolvedEvent) error {
	rows := make([]model.UnresolvedEvent, len(events))
	copy(rows, events)
	sort.Slice(rows, func(i, j int) bool { return rows[i].EventID < rows[j].EventID })

	return writeCSV(path, []string{
		"event_id", "reason", "badge_id", "phone_id", "raw_timestamp",
	}, len(rows), func(i int) []string {
		e := rows[i]
		return []string{e.EventID, e.Reason, e.BadgeID, e.PhoneID, e.RawTimestamp}
	})
}

func writeCSV(path string, header []string, n int, row func(i int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", filepath.Base(path))
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrapf(err, "export: write %s", filepath.Base(path))
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return eris.Wrapf(err, "export: write %s", filepath.Base(path))
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "export: flush %s", filepath.Base(path))
	}
	return nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}

// formatFeatures renders top features as "name:z" pairs joined by "|", a
// compact form that survives CSV quoting.
func formatFeatures(features []model.FeatureDeviation) string {
	out := ""
	for i, f := range features {
		if i > 0 {
			out += "|"
		}
		out += fmt.Sprintf("%s:%.2f", f.Name, f.ZScore)
	}
	return out
}
