package etl

import (
	"sort"
	"time"

	"github.com/sells-group/attendance-cli/internal/config"
	"github.com/sells-group/attendance-cli/internal/model"
)

// InstanceKey identifies one (employee, shift instance) group. Off-schedule
// groups use an empty ShiftID and the event's calendar date.
type InstanceKey struct {
	EmployeeID string
	ShiftID    string
	Date       string
}

// EventGroup is the ordered event set for one shift instance, the explicit
// event-to-session index built once per run.
type EventGroup struct {
	Key            InstanceKey
	InstanceDate   time.Time
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	Events         []AssignedEvent
	Facility       string
	BadgeID        string
}

// OffSchedule reports whether the group has no matching shift instance.
func (g EventGroup) OffSchedule() bool {
	return g.Key.ShiftID == ""
}

// Punches is the resolved actual start/end for a group after imputation.
type Punches struct {
	Start     *time.Time
	End       *time.Time
	Imputed   bool
	Unmatched bool
}

// PunchedGroup pairs a group with its resolved punches.
type PunchedGroup struct {
	EventGroup
	Punches
}

// GroupEvents indexes assigned events by (employee, shift instance). Groups
// and their events come out in a deterministic order.
func GroupEvents(assigned []AssignedEvent) []EventGroup {
	byKey := make(map[InstanceKey]*EventGroup)
	var order []InstanceKey

	for _, ev := range assigned {
		key := InstanceKey{
			EmployeeID: ev.EmployeeID,
			ShiftID:    ev.ShiftID,
			Date:       ev.InstanceDate.Format(dateLayout),
		}
		g, ok := byKey[key]
		if !ok {
			g = &EventGroup{
				Key:            key,
				InstanceDate:   ev.InstanceDate,
				ScheduledStart: ev.ScheduledStart,
				ScheduledEnd:   ev.ScheduledEnd,
				Facility:       ev.Facility,
			}
			byKey[key] = g
			order = append(order, key)
		}
		g.Events = append(g.Events, ev)
		if g.BadgeID == "" && ev.BadgeID != "" {
			g.BadgeID = ev.BadgeID
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].EmployeeID != order[j].EmployeeID {
			return order[i].EmployeeID < order[j].EmployeeID
		}
		if order[i].Date != order[j].Date {
			return order[i].Date < order[j].Date
		}
		return order[i].ShiftID < order[j].ShiftID
	})

	groups := make([]EventGroup, 0, len(order))
	for _, key := range order {
		g := byKey[key]
		sort.Slice(g.Events, func(i, j int) bool {
			if !g.Events[i].Timestamp.Equal(g.Events[j].Timestamp) {
				return g.Events[i].Timestamp.Before(g.Events[j].Timestamp)
			}
			return g.Events[i].EventID < g.Events[j].EventID
		})
		groups = append(groups, *g)
	}
	return groups
}

// ImputePunches resolves each group's actual start and end. A lone check-in
// with no usable check-out inside the lookahead horizon gets a synthesized
// checkout at start + the imputation duration. A check-out with no preceding
// check-in is left unmatched (imputing a missing start is considered too
// unreliable) and downstream treats it as a missed punch, never a crash.
func ImputePunches(groups []EventGroup, cfg config.PipelineConfig) []PunchedGroup {
	imputation := time.Duration(cfg.ImputationHours * float64(time.Hour))
	lookahead := time.Duration(cfg.LookaheadHours * float64(time.Hour))

	punched := make([]PunchedGroup, 0, len(groups))
	for _, g := range groups {
		punched = append(punched, PunchedGroup{
			EventGroup: g,
			Punches:    resolvePunches(g, imputation, lookahead),
		})
	}
	return punched
}

func resolvePunches(g EventGroup, imputation, lookahead time.Duration) Punches {
	var earliestIn, latestOut *time.Time
	for _, ev := range g.Events {
		ts := ev.Timestamp
		switch ev.Type {
		case model.EventCheckIn:
			if earliestIn == nil || ts.Before(*earliestIn) {
				t := ts
				earliestIn = &t
			}
		case model.EventCheckOut:
			if latestOut == nil || ts.After(*latestOut) {
				t := ts
				latestOut = &t
			}
		}
	}

	if earliestIn == nil {
		// Check-out with no preceding check-in: no start imputation.
		return Punches{End: latestOut, Unmatched: true}
	}

	// A check-out is usable only if it follows the check-in within the
	// lookahead horizon.
	if latestOut != nil && latestOut.After(*earliestIn) && latestOut.Sub(*earliestIn) <= lookahead {
		return Punches{Start: earliestIn, End: latestOut}
	}

	imputed := earliestIn.Add(imputation)
	return Punches{Start: earliestIn, End: &imputed, Imputed: true}
}
