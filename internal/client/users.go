package client

import (
	"context"
	"strings"

	"github.com/velia-hr/portal/internal/role"
	"github.com/velia-hr/portal/internal/session"
	"github.com/velia-hr/portal/internal/workflow"
)

// User is the wire form of a user. Older payloads use "name" for the display
// name; both are accepted.
type User struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	DisplayName  string   `json:"display_name"`
	Name         string   `json:"name,omitempty"`
	Role         string   `json:"role"`
	RoleID       string   `json:"role_id"`
	Status       string   `json:"status"`
	AuthProvider string   `json:"auth_provider"`
	Env          string   `json:"env"`
	Permissions  []string `json:"permissions,omitempty"`
}

func (u User) displayName() string {
	if n := strings.TrimSpace(u.DisplayName); n != "" {
		return n
	}
	return strings.TrimSpace(u.Name)
}

// Identity converts the payload into a session identity.
func (u User) Identity() *session.Identity {
	return &session.Identity{
		ID:           u.ID,
		Email:        strings.ToLower(strings.TrimSpace(u.Email)),
		DisplayName:  u.displayName(),
		Role:         role.ToRole(u.Role),
		RoleID:       u.RoleID,
		Status:       role.ParseStatus(u.Status),
		AuthProvider: session.Provider(u.AuthProvider),
		Env:          u.Env,
	}
}

// Record converts the payload into a roster entry.
func (u User) Record() workflow.UserRecord {
	return workflow.UserRecord{
		Email:       strings.ToLower(strings.TrimSpace(u.Email)),
		DisplayName: u.displayName(),
		Role:        role.ToRole(u.Role),
		RoleID:      u.RoleID,
		Status:      role.ParseStatus(u.Status),
	}
}

type localLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type idpLoginRequest struct {
	IDToken string `json:"idToken"`
}

type setRoleRequest struct {
	Email   string `json:"email"`
	NewRole string `json:"new_role"`
}

type roleRequest struct {
	Role string `json:"role"`
}

// LocalLogin signs in with a local username and password.
func (c *Client) LocalLogin(ctx context.Context, username, password string) (*session.Identity, error) {
	u, err := post[User](ctx, c, "/api/auth/local-login", localLoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return u.Identity(), nil
}

// IdPLogin exchanges an identity-provider ID token for the portal user.
func (c *Client) IdPLogin(ctx context.Context, idToken string) (*session.Identity, error) {
	u, err := post[User](ctx, c, "/api/auth/idp-login", idpLoginRequest{IDToken: idToken})
	if err != nil {
		return nil, err
	}
	return u.Identity(), nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*session.Identity, error) {
	u, err := get[User](ctx, c, "/api/users/me")
	if err != nil {
		return nil, err
	}
	return u.Identity(), nil
}

// RequestRole files a self-service request for r.
func (c *Client) RequestRole(ctx context.Context, r role.Role) (*session.Identity, error) {
	u, err := put[User](ctx, c, "/api/users/me/role-request", roleRequest{Role: string(r)})
	if err != nil {
		return nil, err
	}
	return u.Identity(), nil
}

// FetchRoster returns every user the caller may see.
func (c *Client) FetchRoster(ctx context.Context) ([]workflow.UserRecord, error) {
	users, err := get[[]User](ctx, c, "/api/users")
	if err != nil {
		return nil, err
	}
	records := make([]workflow.UserRecord, 0, len(users))
	for _, u := range users {
		records = append(records, u.Record())
	}
	return records, nil
}

// SetRole sets the role of the user identified by email. The server resets
// the status to stable.
func (c *Client) SetRole(ctx context.Context, email string, r role.Role) error {
	_, err := put[User](ctx, c, "/api/users/role", setRoleRequest{Email: email, NewRole: string(r)})
	return err
}

var _ workflow.Backend = (*Client)(nil)
