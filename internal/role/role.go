package role

import (
	"errors"
	"fmt"
	"strings"
)

// Role is a member of the portal's closed role enumeration.
type Role string

const (
	Admin       Role = "admin"
	HR          Role = "hr"
	Manager     Role = "manager"
	Facilitator Role = "facilitator"
	Simple      Role = "simple"
)

// Default is the lowest-privilege role. Unknown role strings canonicalize to it.
const Default = Simple

// ErrUnknownRole is returned by ParseRole for strings outside the enumeration.
var ErrUnknownRole = errors.New("unknown role")

// All lists every role in display order.
var All = []Role{Admin, HR, Manager, Facilitator, Simple}

var aliases = map[string]Role{
	"admin":       Admin,
	"hr":          HR,
	"manager":     Manager,
	"facilitator": Facilitator,
	"fr":          Facilitator, // legacy identifier still present in older rows
	"simple":      Simple,
}

var labels = map[Role]string{
	Admin:       "admin",
	HR:          "hr",
	Manager:     "manager",
	Facilitator: "facilitator",
	Simple:      "simple",
}

// ParseRole strictly maps s to a role. It accepts any casing, surrounding
// whitespace and the legacy "fr" identifier.
func ParseRole(s string) (Role, error) {
	if r, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// ToRole canonicalizes s. It never fails: unknown or empty input maps to Default.
func ToRole(s string) Role {
	r, err := ParseRole(s)
	if err != nil {
		return Default
	}
	return r
}

// Valid reports whether r is a member of the enumeration.
func (r Role) Valid() bool {
	_, ok := labels[r]
	return ok
}

// Label returns the human-readable label for r.
func (r Role) Label() string {
	if l, ok := labels[r]; ok {
		return l
	}
	return labels[Default]
}

func (r Role) String() string {
	return string(r)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(ToRole(string(r))), nil
}

// UnmarshalText canonicalizes incoming role strings, so malformed backend
// data degrades to Default instead of failing the whole payload.
func (r *Role) UnmarshalText(b []byte) error {
	*r = ToRole(string(b))
	return nil
}

// CanEditRoles reports whether r may open the role-assignment workflow.
func CanEditRoles(r Role) bool {
	return r == Admin || r == HR
}
