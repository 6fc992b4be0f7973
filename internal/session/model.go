package session

import (
	"context"

	"github.com/velia-hr/portal/internal/role"
)

// Provider names the login path that produced an Identity.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderIdP   Provider = "idp"
)

// Identity is the authenticated actor.
type Identity struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	DisplayName  string      `json:"display_name"`
	Role         role.Role   `json:"role"`
	RoleID       string      `json:"role_id"`
	Status       role.Status `json:"status"`
	AuthProvider Provider    `json:"auth_provider"`
	Env          string      `json:"env"`
}

// Account is an account known to the external identity provider.
type Account struct {
	HomeAccountID string `json:"home_account_id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
}

// InteractionStatus reports whether the IdP is in the middle of an
// interactive flow.
type InteractionStatus int

const (
	InteractionNone InteractionStatus = iota
	InteractionInProgress
)

// EventType enumerates the IdP events the session reacts to.
type EventType int

const (
	EventLoginSuccess EventType = iota + 1
	EventSSOSilentSuccess
	EventAcquireTokenSuccess
	EventLogoutSuccess
)

func (t EventType) String() string {
	switch t {
	case EventLoginSuccess:
		return "login_success"
	case EventSSOSilentSuccess:
		return "sso_silent_success"
	case EventAcquireTokenSuccess:
		return "acquire_token_success"
	case EventLogoutSuccess:
		return "logout_success"
	}
	return "unknown"
}

// Event is emitted by the IdP.
type Event struct {
	Type    EventType
	Account *Account
}

// IdentityProvider is the external IdP as seen by the session.
type IdentityProvider interface {
	ActiveAccount() *Account
	SetActiveAccount(acc *Account)
	Accounts() []Account
	InteractionStatus() InteractionStatus
	// Subscribe registers fn for IdP events and returns a function that
	// removes the subscription.
	Subscribe(fn func(Event)) (unsubscribe func())
	Logout(ctx context.Context) error
}

// Store persists the local user for the lifetime of a session.
type Store interface {
	Load() (*Identity, error)
	Save(id *Identity) error
	Clear() error
}
