// Package etl implements the batch transformation stages that turn raw
// attendance events into consolidated work sessions. Each stage is a pure
// transformation over a complete input collection; stages hand their output
// off wholesale and never share mutable state.
package etl

import (
	"go.uber.org/zap"

	"github.com/sells-group/attendance-cli/internal/ingest"
	"github.com/sells-group/attendance-cli/internal/model"
)

// ResolveIdentities annotates each event with its canonical employee_id.
// Lookup is keyed by badge first, phone second; there is no fuzzy matching.
// Events that resolve to no identity are excluded and reported as
// diagnostics; they never abort the run.
func ResolveIdentities(events []model.AttendanceEvent, dir *ingest.Directory) ([]model.AttendanceEvent, []model.UnresolvedEvent) {
	resolved := make([]model.AttendanceEvent, 0, len(events))
	var unresolved []model.UnresolvedEvent

	for _, ev := range events {
		if ev.EmployeeID != "" {
			if _, ok := dir.Employee(ev.EmployeeID); ok {
				resolved = append(resolved, ev)
				continue
			}
			unresolved = append(unresolved, diagnostic(ev, "unknown employee_id"))
			continue
		}

		if ev.BadgeID != "" {
			if id, ok := dir.ResolveBadge(ev.BadgeID); ok {
				ev.EmployeeID = id
				resolved = append(resolved, ev)
				continue
			}
		}
		if ev.PhoneID != "" {
			if id, ok := dir.ResolvePhone(ev.PhoneID); ok {
				ev.EmployeeID = id
				resolved = append(resolved, ev)
				continue
			}
		}

		unresolved = append(unresolved, diagnostic(ev, "unknown badge/phone identifier"))
	}

	if len(unresolved) > 0 {
		zap.L().Warn("resolve: events excluded",
			zap.Int("resolved", len(resolved)),
			zap.Int("unresolved", len(unresolved)),
		)
	}

	return resolved, unresolved
}

func diagnostic(ev model.AttendanceEvent, reason string) model.UnresolvedEvent {
	return model.UnresolvedEvent{
		EventID:      ev.EventID,
		Reason:       reason,
		BadgeID:      ev.BadgeID,
		PhoneID:      ev.PhoneID,
		RawTimestamp: ev.RawTimestamp,
	}
}
