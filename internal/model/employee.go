package model

import "time"

// Employee is a directory record mapping physical identifiers (badges, phone)
// to a canonical identity. Identifier mappings are append-only: a badge is
// never silently moved between employees within a single directory load.
type Employee struct {
	EmployeeID string   `json:"employee_id"`
	Name       string   `json:"name,omitempty"`
	BadgeIDs   []string `json:"badge_ids"`
	PhoneID    string   `json:"phone_id,omitempty"`
	Facility   string   `json:"facility,omitempty"`
	Department string   `json:"department,omitempty"`
	Active     bool     `json:"active"`
}

// Shift is a recurring scheduled shift. Start and end are minutes since
// midnight in the pipeline's fixed timezone; EndMinute < StartMinute marks a
// night shift that spans into the following calendar day.
type Shift struct {
	ShiftID     string         `json:"shift_id"`
	EmployeeID  string         `json:"employee_id"`
	StartMinute int            `json:"start_minute"`
	EndMinute   int            `json:"end_minute"`
	Days        []time.Weekday `json:"days_of_week"`
	Facility    string         `json:"facility,omitempty"`
	Active      bool           `json:"active"`
}

// CrossesMidnight reports whether the shift's scheduled window spans into the
// next calendar day.
func (s Shift) CrossesMidnight() bool {
	return s.EndMinute < s.StartMinute
}

// OnDay reports whether the shift is scheduled on the given weekday.
func (s Shift) OnDay(d time.Weekday) bool {
	for _, day := range s.Days {
		if day == d {
			return true
		}
	}
	return false
}

// WindowOn returns the scheduled start and end instants for the shift
// instance on the given calendar date (midnight in the pipeline timezone).
// Night shifts get their end pushed to the following day.
func (s Shift) WindowOn(date time.Time) (start, end time.Time) {
	start = date.Add(time.Duration(s.StartMinute) * time.Minute)
	endMinute := s.EndMinute
	if s.CrossesMidnight() {
		endMinute += 24 * 60
	}
	end = date.Add(time.Duration(endMinute) * time.Minute)
	return start, end
}

// SwapStatus is the approval state of a shift swap request.
type SwapStatus string

const (
	SwapPending  SwapStatus = "PENDING"
	SwapApproved SwapStatus = "APPROVED"
	SwapRejected SwapStatus = "REJECTED"
)

// ShiftSwap exchanges two employees' shifts on a single date. Only APPROVED
// swaps affect assignment; the base Shift records are never mutated.
type ShiftSwap struct {
	SwapID           string     `json:"swap_id"`
	RequesterID      string     `json:"requester_id"`
	RequesterShiftID string     `json:"requester_shift_id"`
	CounterID        string     `json:"counter_id"`
	CounterShiftID   string     `json:"counter_shift_id"`
	Date             time.Time  `json:"date"`
	Status           SwapStatus `json:"status"`
}
