package auth

import (
	"errors"

	"github.com/malaria/das/internal/schema"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrUnauthorized  = errors.New("unauthorized")
)

// Operation is a kind of request subject to authorization.
type Operation int

const (
	OpRead Operation = iota + 1
	OpReadByKey
	OpReadTimeRange
	OpReadSample
	OpCreate
	OpUpdate
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpReadByKey:
		return "read_by_key"
	case OpReadTimeRange:
		return "read_time_range"
	case OpReadSample:
		return "read_sample"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// exposedTables are reachable through the API at all. The user table is not.
var exposedTables = map[schema.Table]bool{
	schema.Patient:        true,
	schema.CaseCache:      true,
	schema.MalariaResults: true,
	schema.BloodTest:      true,
	schema.HealthCenter:   true,
	schema.Village:        true,
	schema.Sector:         true,
	schema.Cell:           true,
	schema.District:       true,
	schema.Province:       true,
}

var timeRangeTables = map[schema.Table]bool{
	schema.CaseCache: true,
	schema.BloodTest: true,
}

var healthWorkerCreates = map[schema.Table]bool{
	schema.Patient:        true,
	schema.BloodTest:      true,
	schema.MalariaResults: true,
}

// lowPrivilegeRedaction is dropped from reads made by roles other than
// health_worker and sys_admin.
var lowPrivilegeRedaction = schema.Redaction{"name"}

// Decision is the outcome of a successful authorization.
type Decision struct {
	Table     schema.Table
	Redaction schema.Redaction
}

// Authorize decides whether u may perform op on the named table. The table
// name is checked before the role for every operation.
func Authorize(u *User, tableName string, op Operation) (Decision, error) {
	table, ok := schema.Lookup(tableName)
	if !ok || !exposedTables[table] {
		return Decision{}, ErrTableNotFound
	}
	d := Decision{Table: table}

	switch op {
	case OpRead, OpReadSample:
		if !u.Privileged() {
			d.Redaction = lowPrivilegeRedaction
		}
	case OpReadTimeRange:
		if !timeRangeTables[table] {
			return Decision{}, ErrTableNotFound
		}
		if !u.Privileged() {
			d.Redaction = lowPrivilegeRedaction
		}
	case OpReadByKey:
		if !u.Privileged() {
			return Decision{}, ErrUnauthorized
		}
	case OpCreate:
		if !u.Privileged() {
			return Decision{}, ErrUnauthorized
		}
		if u.Role == RoleHealthWorker && !healthWorkerCreates[table] {
			return Decision{}, ErrUnauthorized
		}
	case OpUpdate, OpDelete:
		if u.Role != RoleSysAdmin {
			return Decision{}, ErrUnauthorized
		}
	default:
		return Decision{}, ErrUnauthorized
	}
	return d, nil
}
