package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/velia-hr/portal/internal/role"
)

var (
	// ErrAuthorizationDenied is returned when the actor may not open the workflow.
	ErrAuthorizationDenied = errors.New("only admin and hr can edit roles")

	// ErrMalformedEscalationStatus is returned when approving an escalation
	// whose status does not name a valid target role.
	ErrMalformedEscalationStatus = errors.New("no target role found in status")

	// ErrConcurrentMutation is returned when a record already has a mutation in
	// flight. Callers treat it as a benign double submit.
	ErrConcurrentMutation = errors.New("record is already being saved")

	// ErrNotPending is returned when resolving an escalation on a stable record.
	ErrNotPending = errors.New("user has no pending escalation")

	// ErrUnknownUser is returned when an email is not in the roster.
	ErrUnknownUser = errors.New("user not in roster")

	// ErrInvalidRole is returned for roles outside the enumeration.
	ErrInvalidRole = errors.New("invalid role")
)

// UserRecord is one roster entry.
type UserRecord struct {
	Email       string
	DisplayName string
	Role        role.Role
	RoleID      string
	Status      role.Status
}

// Backend is the system of record for roles.
type Backend interface {
	// FetchRoster returns every user the actor may see.
	FetchRoster(ctx context.Context) ([]UserRecord, error)
	// SetRole sets the role of the user identified by email and resets its
	// status to stable. It must be idempotent.
	SetRole(ctx context.Context, email string, r role.Role) error
}

// IdentitySink receives role changes that hit the actor's own record.
type IdentitySink interface {
	ApplyRoleChange(email string, r role.Role)
}

// Decision resolves a pending escalation.
type Decision int

const (
	Approve Decision = iota + 1
	Reject
)

func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case Reject:
		return "reject"
	}
	return "unknown"
}

// SortKey selects the table sort column.
type SortKey string

const (
	SortNone  SortKey = ""
	SortName  SortKey = "name"
	SortEmail SortKey = "email"
	SortRole  SortKey = "role"
)

// ParseSortKey maps user input to a SortKey.
func ParseSortKey(s string) (SortKey, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SortNone, true
	case "name", "display_name":
		return SortName, true
	case "email":
		return SortEmail, true
	case "role":
		return SortRole, true
	}
	return SortNone, false
}

// Direction is the table sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Sort is the active table sort.
type Sort struct {
	Key       SortKey
	Direction Direction
}

// Row is a roster entry as shown in a view.
type Row struct {
	UserRecord
	Saving bool
}

// Escalation is a pending role-change request. TargetErr is set when the
// status cannot be parsed; such escalations can only be rejected.
type Escalation struct {
	Row
	Target    role.Role
	TargetErr error
}

// DragPayload identifies the record being dragged. It carries the email, not
// a position, so roster changes during the drag cannot retarget the drop.
type DragPayload struct {
	Email string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
