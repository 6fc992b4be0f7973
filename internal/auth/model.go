package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/velia-hr/portal/internal/role"
)

// Providers recorded in users.auth_provider.
const (
	ProviderLocal = "local"
	ProviderIdP   = "idp"
)

// User represents a row in the users table.
type User struct {
	ID           uuid.UUID
	Email        string
	DisplayName  string
	Role         role.Role
	RoleID       uuid.UUID // bearer credential
	Status       role.Status
	AuthProvider string
	PasswordHash string // empty for idp users
	Env          string
	EditedBy     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is stored in the request context after authentication.
type Identity struct {
	UserID      uuid.UUID
	Email       string
	DisplayName string
	Role        role.Role
	RoleID      uuid.UUID
	Status      role.Status
}

func identityOf(u *User) *Identity {
	return &Identity{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		RoleID:      u.RoleID,
		Status:      u.Status,
	}
}
