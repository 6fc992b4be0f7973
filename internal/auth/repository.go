package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/velia-hr/portal/internal/role"
)

// ErrUserNotFound is returned when a user record is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned when a user with the same email already exists.
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository provides operations on the users table.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByRoleID(ctx context.Context, roleID uuid.UUID) (*User, error)
	// List returns users whose role is in roles, ordered by creation time.
	List(ctx context.Context, roles []role.Role) ([]User, error)
	// SetRole sets the role and resets the status to stable.
	SetRole(ctx context.Context, email string, r role.Role, editedBy string) (*User, error)
	SetStatus(ctx context.Context, email string, s role.Status) (*User, error)
	CountAll(ctx context.Context) (int, error)
}
