package etl

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/attendance-cli/internal/config"
	"github.com/sells-group/attendance-cli/internal/model"
)

// AssignedEvent is an attendance event annotated with the shift instance it
// belongs to. An empty ShiftID marks off-schedule work; InstanceDate is the
// calendar date the shift instance starts on.
type AssignedEvent struct {
	model.AttendanceEvent
	ShiftID        string
	InstanceDate   time.Time
	ScheduledStart time.Time
	ScheduledEnd   time.Time
}

// candidate is one shift instance that could claim an event.
type candidate struct {
	shift model.Shift
	date  time.Time
	start time.Time
	end   time.Time
	gap   time.Duration // distance from event to the scheduled window, 0 if inside
}

// AssignShifts matches each event to the shift instance it belongs to,
// applying approved swap overrides and midnight-crossing adjustment. Events
// farther than the off-schedule threshold from every candidate window are
// assigned no shift. Assignment is per-event pure, so the event set is
// partitioned by employee and evaluated in parallel; the merged output is
// re-sorted for deterministic downstream processing.
func AssignShifts(ctx context.Context, events []model.AttendanceEvent, sched *Schedule, cfg config.PipelineConfig, loc *time.Location) []AssignedEvent {
	byEmployee := make(map[string][]model.AttendanceEvent)
	var order []string
	for _, ev := range events {
		if _, seen := byEmployee[ev.EmployeeID]; !seen {
			order = append(order, ev.EmployeeID)
		}
		byEmployee[ev.EmployeeID] = append(byEmployee[ev.EmployeeID], ev)
	}

	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	results := make(map[string][]AssignedEvent, len(order))
	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, employeeID := range order {
		g.Go(func() error {
			assigned := assignEmployee(byEmployee[employeeID], sched, cfg, loc)
			mu.Lock()
			results[employeeID] = assigned
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var out []AssignedEvent
	for _, employeeID := range order {
		out = append(out, results[employeeID]...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].EventID < out[j].EventID
	})

	offSchedule := 0
	for _, ev := range out {
		if ev.ShiftID == "" {
			offSchedule++
		}
	}
	if offSchedule > 0 {
		zap.L().Info("assign: off-schedule events", zap.Int("count", offSchedule), zap.Int("total", len(out)))
	}

	return out
}

// assignEmployee assigns one employee's events, preserving timestamp order.
func assignEmployee(events []model.AttendanceEvent, sched *Schedule, cfg config.PipelineConfig, loc *time.Location) []AssignedEvent {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].EventID < events[j].EventID
	})

	threshold := time.Duration(cfg.OffScheduleMinutes) * time.Minute

	assigned := make([]AssignedEvent, 0, len(events))
	for _, ev := range events {
		date := midnight(ev.Timestamp, loc)
		best, ok := bestCandidate(ev, sched, date, threshold)
		if !ok {
			assigned = append(assigned, AssignedEvent{
				AttendanceEvent: ev,
				InstanceDate:    date,
			})
			continue
		}
		assigned = append(assigned, AssignedEvent{
			AttendanceEvent: ev,
			ShiftID:         best.shift.ShiftID,
			InstanceDate:    best.date,
			ScheduledStart:  best.start,
			ScheduledEnd:    best.end,
		})
	}
	return assigned
}

// bestCandidate scans shift instances dated on the event's calendar date and
// the previous one (so a post-midnight punch can join the night shift that
// started the day before) and picks the instance whose scheduled start is
// closest to the event, among those within the off-schedule threshold.
func bestCandidate(ev model.AttendanceEvent, sched *Schedule, date time.Time, threshold time.Duration) (candidate, bool) {
	var candidates []candidate

	for _, d := range []time.Time{date.AddDate(0, 0, -1), date} {
		for _, sh := range sched.Effective(ev.EmployeeID, d) {
			if !sh.OnDay(d.Weekday()) {
				continue
			}
			start, end := sh.WindowOn(d)
			gap := windowGap(ev.Timestamp, start, end)
			if gap > threshold {
				continue
			}
			candidates = append(candidates, candidate{shift: sh, date: d, start: start, end: end, gap: gap})
		}
	}

	if len(candidates) == 0 {
		return candidate{}, false
	}

	// Tie-break: scheduled start closest in absolute time to the event.
	sort.Slice(candidates, func(i, j int) bool {
		di := absDuration(ev.Timestamp.Sub(candidates[i].start))
		dj := absDuration(ev.Timestamp.Sub(candidates[j].start))
		if di != dj {
			return di < dj
		}
		if !candidates[i].date.Equal(candidates[j].date) {
			return candidates[i].date.Before(candidates[j].date)
		}
		return candidates[i].shift.ShiftID < candidates[j].shift.ShiftID
	})
	return candidates[0], true
}

// windowGap returns how far an instant falls outside [start, end], zero when
// inside.
func windowGap(t, start, end time.Time) time.Duration {
	if t.Before(start) {
		return start.Sub(t)
	}
	if t.After(end) {
		return t.Sub(end)
	}
	return 0
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
