package model

import "time"

// EventType distinguishes check-in from check-out punches.
type EventType string

const (
	EventCheckIn  EventType = "CHECK_IN"
	EventCheckOut EventType = "CHECK_OUT"
)

// AttendanceEvent is a single raw badge or phone punch. Events are immutable
// once ingested; corrections arrive as new records. EmployeeID is empty until
// the identity resolver annotates it, and Timestamp is zero until the
// normalizer parses RawTimestamp.
type AttendanceEvent struct {
	EventID      string    `json:"event_id"`
	EmployeeID   string    `json:"employee_id,omitempty"`
	BadgeID      string    `json:"badge_id,omitempty"`
	PhoneID      string    `json:"phone_id,omitempty"`
	Type         EventType `json:"event_type"`
	Timestamp    time.Time `json:"timestamp"`
	RawTimestamp string    `json:"raw_timestamp"`
	Facility     string    `json:"facility,omitempty"`
	DeviceID     string    `json:"device_id,omitempty"`
}

// UnresolvedEvent is a diagnostic for an event excluded from session
// construction. Exclusion never aborts the run.
type UnresolvedEvent struct {
	EventID      string `json:"event_id"`
	Reason       string `json:"reason"`
	BadgeID      string `json:"badge_id,omitempty"`
	PhoneID      string `json:"phone_id,omitempty"`
	RawTimestamp string `json:"raw_timestamp,omitempty"`
}
