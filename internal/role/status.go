package role

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedStatus is returned when a pending status does not name a valid
// target role.
var ErrMalformedStatus = errors.New("malformed escalation status")

const (
	stableText    = "stable"
	pendingPrefix = "to "
)

// Status is either Stable or PendingEscalation toward a target role.
// The zero value is Stable.
type Status struct {
	pending bool
	target  Role
	// raw keeps the wire text of pending statuses so malformed ones round-trip
	// unchanged and can be reported.
	raw string
}

// Stable returns the stable status.
func Stable() Status {
	return Status{}
}

// PendingEscalation returns a pending status targeting r.
func PendingEscalation(r Role) Status {
	return Status{pending: true, target: r, raw: "To " + string(r)}
}

// ParseStatus converts the legacy wire form. "stable" (any casing) and the
// empty string are Stable; anything else is pending. "To <role>" yields a
// parsed target; other pending text is kept and reported by Target.
func ParseStatus(s string) Status {
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)
	if lower == "" || lower == stableText {
		return Stable()
	}

	st := Status{pending: true, raw: trimmed}
	if strings.HasPrefix(lower, pendingPrefix) {
		if r, err := ParseRole(trimmed[len(pendingPrefix):]); err == nil {
			st.target = r
		}
	}
	return st
}

// IsStable reports whether no escalation is pending.
func (s Status) IsStable() bool {
	return !s.pending
}

// Target returns the role a pending escalation asks for.
func (s Status) Target() (Role, error) {
	if !s.pending {
		return "", fmt.Errorf("%w: status is stable", ErrMalformedStatus)
	}
	if !s.target.Valid() {
		return "", fmt.Errorf("%w: %q", ErrMalformedStatus, s.raw)
	}
	return s.target, nil
}

// String returns the legacy wire form.
func (s Status) String() string {
	if !s.pending {
		return stableText
	}
	if s.target.Valid() {
		return "To " + string(s.target)
	}
	return s.raw
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	*s = ParseStatus(string(b))
	return nil
}
