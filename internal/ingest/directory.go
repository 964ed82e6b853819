package ingest

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/attendance-cli/internal/model"
)

// Directory is the validated identifier-to-identity index. Construction
// enforces the directory invariants; resolution afterwards is a plain
// lookup, badge first, phone fallback, no fuzzy matching.
type Directory struct {
	byBadge   map[string]string
	byPhone   map[string]string
	employees map[string]model.Employee
}

// NewDirectory builds a Directory from the employee table. A badge or phone
// mapped to two employees, or a duplicated employee_id, is a fatal
// configuration error: it indicates malformed reference data and must
// surface before any event is processed.
func NewDirectory(employees []model.Employee) (*Directory, error) {
	d := &Directory{
		byBadge:   make(map[string]string),
		byPhone:   make(map[string]string),
		employees: make(map[string]model.Employee, len(employees)),
	}

	for _, emp := range employees {
		if _, dup := d.employees[emp.EmployeeID]; dup {
			return nil, eris.Errorf("directory: duplicate employee_id %s", emp.EmployeeID)
		}
		d.employees[emp.EmployeeID] = emp

		for _, badge := range emp.BadgeIDs {
			if owner, ok := d.byBadge[badge]; ok && owner != emp.EmployeeID {
				return nil, eris.Errorf("directory: badge %s mapped to employees %s and %s", badge, owner, emp.EmployeeID)
			}
			d.byBadge[badge] = emp.EmployeeID
		}
		if emp.PhoneID != "" {
			if owner, ok := d.byPhone[emp.PhoneID]; ok && owner != emp.EmployeeID {
				return nil, eris.Errorf("directory: phone %s mapped to employees %s and %s", emp.PhoneID, owner, emp.EmployeeID)
			}
			d.byPhone[emp.PhoneID] = emp.EmployeeID
		}
	}

	return d, nil
}

// ResolveBadge returns the employee owning a badge.
func (d *Directory) ResolveBadge(badgeID string) (string, bool) {
	id, ok := d.byBadge[badgeID]
	return id, ok
}

// ResolvePhone returns the employee owning a phone identifier.
func (d *Directory) ResolvePhone(phoneID string) (string, bool) {
	id, ok := d.byPhone[phoneID]
	return id, ok
}

// Employee returns the directory record for an employee id.
func (d *Directory) Employee(id string) (model.Employee, bool) {
	emp, ok := d.employees[id]
	return emp, ok
}

// Size returns the number of employees in the directory.
func (d *Directory) Size() int {
	return len(d.employees)
}
