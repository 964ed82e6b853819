package etl

import (
	"sort"
	"time"

	"github.com/sells-group/attendance-cli/internal/model"
)

const dateLayout = "2006-01-02"

// Schedule combines the static shift directory with date-scoped swap
// overrides. The effective shifts for an (employee, date) pair are computed
// as a pure lookup; the base Shift records are never mutated.
type Schedule struct {
	byEmployee map[string][]model.Shift
	byID       map[string]model.Shift
	swapsByDay map[string][]model.ShiftSwap
}

// NewSchedule indexes shifts by employee and approved swaps by date.
// Inactive shifts are dropped at construction.
func NewSchedule(shifts []model.Shift, swaps []model.ShiftSwap) *Schedule {
	s := &Schedule{
		byEmployee: make(map[string][]model.Shift),
		byID:       make(map[string]model.Shift, len(shifts)),
		swapsByDay: make(map[string][]model.ShiftSwap),
	}
	for _, sh := range shifts {
		if !sh.Active {
			continue
		}
		s.byID[sh.ShiftID] = sh
		s.byEmployee[sh.EmployeeID] = append(s.byEmployee[sh.EmployeeID], sh)
	}
	for _, sw := range swaps {
		if sw.Status != model.SwapApproved {
			continue
		}
		key := sw.Date.Format(dateLayout)
		s.swapsByDay[key] = append(s.swapsByDay[key], sw)
	}
	return s
}

// Shift returns a shift by id.
func (s *Schedule) Shift(id string) (model.Shift, bool) {
	sh, ok := s.byID[id]
	return sh, ok
}

// Effective returns the shifts in force for an employee on a calendar date,
// with any approved swap for that date applied: a swap on date D gives
// employee A employee B's shift and vice versa, for that date only.
// The result is sorted by shift id for deterministic downstream iteration.
func (s *Schedule) Effective(employeeID string, date time.Time) []model.Shift {
	base := s.byEmployee[employeeID]
	swaps := s.swapsByDay[date.Format(dateLayout)]

	effective := make([]model.Shift, 0, len(base))
	removed := make(map[string]bool)
	var added []string

	for _, sw := range swaps {
		switch employeeID {
		case sw.RequesterID:
			removed[sw.RequesterShiftID] = true
			added = append(added, sw.CounterShiftID)
		case sw.CounterID:
			removed[sw.CounterShiftID] = true
			added = append(added, sw.RequesterShiftID)
		}
	}

	for _, sh := range base {
		if !removed[sh.ShiftID] {
			effective = append(effective, sh)
		}
	}
	for _, id := range added {
		if sh, ok := s.byID[id]; ok {
			effective = append(effective, sh)
		}
	}

	sort.Slice(effective, func(i, j int) bool {
		return effective[i].ShiftID < effective[j].ShiftID
	})
	return effective
}

// midnight truncates an instant to its calendar date in the given zone.
func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
