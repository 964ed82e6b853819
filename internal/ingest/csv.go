// Package ingest reads the four reference/input tables from headered CSV
// files and builds the employee directory used by identity resolution.
package ingest

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/attendance-cli/internal/model"
)

// readTable opens a CSV file and returns its rows plus a header-index map.
func readTable(path string, required []string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, eris.Wrapf(err, "ingest: read %s", path)
	}
	if len(records) < 1 {
		return nil, nil, eris.Errorf("ingest: %s is empty", path)
	}

	header := records[0]
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.TrimSpace(col)] = i
	}
	for _, col := range required {
		if _, ok := colIdx[col]; !ok {
			return nil, nil, eris.Errorf("ingest: %s missing required column %q", path, col)
		}
	}

	return records[1:], colIdx, nil
}

// getCol safely retrieves a column value from a CSV row.
func getCol(row []string, colIdx map[string]int, col string) string {
	idx, ok := colIdx[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// splitList splits a comma-separated cell ("B001, B002") into trimmed parts.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// ParseEmployees reads the employee directory table.
// Columns: employee_id, name, badge_ids, phone_id, facility, department, active.
func ParseEmployees(path string) ([]model.Employee, error) {
	rows, colIdx, err := readTable(path, []string{"employee_id", "badge_ids"})
	if err != nil {
		return nil, err
	}

	var employees []model.Employee
	for _, row := range rows {
		id := getCol(row, colIdx, "employee_id")
		if id == "" {
			continue
		}
		employees = append(employees, model.Employee{
			EmployeeID: id,
			Name:       getCol(row, colIdx, "name"),
			BadgeIDs:   splitList(getCol(row, colIdx, "badge_ids")),
			PhoneID:    getCol(row, colIdx, "phone_id"),
			Facility:   getCol(row, colIdx, "facility"),
			Department: getCol(row, colIdx, "department"),
			Active:     parseBool(getCol(row, colIdx, "active"), true),
		})
	}
	if len(employees) == 0 {
		return nil, eris.Errorf("ingest: no employees found in %s", path)
	}
	return employees, nil
}

// ParseShifts reads the shift schedule table.
// Columns: shift_id, employee_id, start_time, end_time, days_of_week,
// facility, active. Times are "HH:MM"; days_of_week is a comma-separated
// list of indices with 0 = Monday through 6 = Sunday.
func ParseShifts(path string) ([]model.Shift, error) {
	rows, colIdx, err := readTable(path, []string{"shift_id", "employee_id", "start_time", "end_time", "days_of_week"})
	if err != nil {
		return nil, err
	}

	var shifts []model.Shift
	for _, row := range rows {
		id := getCol(row, colIdx, "shift_id")
		if id == "" {
			continue
		}

		start, err := parseClock(getCol(row, colIdx, "start_time"))
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: shift %s start_time", id)
		}
		end, err := parseClock(getCol(row, colIdx, "end_time"))
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: shift %s end_time", id)
		}
		days, err := parseDays(getCol(row, colIdx, "days_of_week"))
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: shift %s days_of_week", id)
		}

		shifts = append(shifts, model.Shift{
			ShiftID:     id,
			EmployeeID:  getCol(row, colIdx, "employee_id"),
			StartMinute: start,
			EndMinute:   end,
			Days:        days,
			Facility:    getCol(row, colIdx, "facility"),
			Active:      parseBool(getCol(row, colIdx, "active"), true),
		})
	}
	return shifts, nil
}

// ParseEvents reads the raw attendance event table. Timestamps are kept raw;
// the normalizer stage parses them so that bad values become diagnostics
// instead of load failures.
// Columns: event_id, employee_id, badge_id, phone_id, event_type,
// event_timestamp, facility, device_id.
func ParseEvents(path string) ([]model.AttendanceEvent, error) {
	rows, colIdx, err := readTable(path, []string{"event_id", "event_type", "event_timestamp"})
	if err != nil {
		return nil, err
	}

	var events []model.AttendanceEvent
	for _, row := range rows {
		id := getCol(row, colIdx, "event_id")
		if id == "" {
			continue
		}
		events = append(events, model.AttendanceEvent{
			EventID:      id,
			EmployeeID:   getCol(row, colIdx, "employee_id"),
			BadgeID:      getCol(row, colIdx, "badge_id"),
			PhoneID:      getCol(row, colIdx, "phone_id"),
			Type:         model.EventType(getCol(row, colIdx, "event_type")),
			RawTimestamp: getCol(row, colIdx, "event_timestamp"),
			Facility:     getCol(row, colIdx, "facility"),
			DeviceID:     getCol(row, colIdx, "device_id"),
		})
	}
	return events, nil
}

// ParseSwaps reads the shift swap table.
// Columns: swap_id, requester_id, requester_shift_id, counter_id,
// counter_shift_id, date, status.
func ParseSwaps(path string, loc *time.Location) ([]model.ShiftSwap, error) {
	rows, colIdx, err := readTable(path, []string{"swap_id", "requester_id", "counter_id", "date", "status"})
	if err != nil {
		return nil, err
	}

	var swaps []model.ShiftSwap
	for _, row := range rows {
		id := getCol(row, colIdx, "swap_id")
		if id == "" {
			continue
		}
		date, err := time.ParseInLocation("2006-01-02", getCol(row, colIdx, "date"), loc)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: swap %s date", id)
		}
		swaps = append(swaps, model.ShiftSwap{
			SwapID:           id,
			RequesterID:      getCol(row, colIdx, "requester_id"),
			RequesterShiftID: getCol(row, colIdx, "requester_shift_id"),
			CounterID:        getCol(row, colIdx, "counter_id"),
			CounterShiftID:   getCol(row, colIdx, "counter_shift_id"),
			Date:             date,
			Status:           model.SwapStatus(strings.ToUpper(getCol(row, colIdx, "status"))),
		})
	}
	return swaps, nil
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, eris.Errorf("ingest: invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, eris.Errorf("ingest: invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, eris.Errorf("ingest: invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// parseDays converts "0,1,2" (0 = Monday) to time.Weekday values.
func parseDays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, p := range splitList(s) {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 6 {
			return nil, eris.Errorf("ingest: invalid day index %q", p)
		}
		// Source data uses 0=Monday; time.Weekday uses 0=Sunday.
		days = append(days, time.Weekday((v+1)%7))
	}
	if len(days) == 0 {
		return nil, eris.New("ingest: empty days_of_week")
	}
	return days, nil
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}
