package etl

import (
	"time"

	"github.com/sells-group/attendance-cli/internal/model"
)

// timestampLayouts are the accepted raw timestamp formats, tried in order.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// NormalizeTimestamps parses each event's raw timestamp into a canonical
// instant in the pipeline's single fixed timezone. Unparsable timestamps
// fail closed: the event becomes a diagnostic, never a guessed value.
func NormalizeTimestamps(events []model.AttendanceEvent, loc *time.Location) ([]model.AttendanceEvent, []model.UnresolvedEvent) {
	normalized := make([]model.AttendanceEvent, 0, len(events))
	var failed []model.UnresolvedEvent

	for _, ev := range events {
		ts, ok := parseTimestamp(ev.RawTimestamp, loc)
		if !ok {
			failed = append(failed, diagnostic(ev, "unparsable timestamp"))
			continue
		}
		ev.Timestamp = ts
		normalized = append(normalized, ev)
	}

	return normalized, failed
}

func parseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
