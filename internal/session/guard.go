package session

import "github.com/velia-hr/portal/internal/role"

// Decision is the outcome of a Guard check.
type Decision int

const (
	Allow Decision = iota
	Pending
	Redirect
	Deny
)

const (
	LoginRoute     = "/login"
	DeniedRoute    = "/submissions"
	DashboardRoute = "/dashboard"
	TasksRoute     = "/tasks"
)

// Access is returned by Guard. Target is set for Redirect and Deny.
type Access struct {
	Decision Decision
	Target   string
}

// Guard decides whether the actor may enter an area restricted to allow.
// An empty allow list only requires authentication.
func (m *Manager) Guard(allow ...role.Role) Access {
	if m.provider != nil && m.provider.InteractionStatus() != InteractionNone {
		return Access{Decision: Pending}
	}
	if !m.IsAuthenticated() {
		return Access{Decision: Redirect, Target: LoginRoute}
	}
	if len(allow) == 0 {
		return Access{Decision: Allow}
	}

	actor := role.Default
	if u := m.User(); u != nil {
		actor = role.ToRole(string(u.Role))
	}
	for _, r := range allow {
		if r == actor {
			return Access{Decision: Allow}
		}
	}
	return Access{Decision: Deny, Target: DeniedRoute}
}

// LandingRoute is where an authenticated actor starts.
func (m *Manager) LandingRoute() string {
	u := m.User()
	if u == nil {
		return TasksRoute
	}
	switch role.ToRole(string(u.Role)) {
	case role.Admin, role.HR, role.Manager:
		return DashboardRoute
	}
	return TasksRoute
}
