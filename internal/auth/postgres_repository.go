package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/velia-hr/portal/internal/role"
)

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, email, display_name, role, role_id, status, auth_provider,
		       COALESCE(password_hash, ''), env, COALESCE(edited_by, ''), created_at, updated_at`

// PostgresRepository implements UserRepository using pgx.
type PostgresRepository struct {
	db DB
}

// NewRepository creates a new UserRepository backed by db.
func NewRepository(db DB) UserRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user record.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (email, display_name, role, role_id, status, auth_provider, password_hash, env)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	var id string
	err := r.db.QueryRow(ctx, query,
		strings.ToLower(u.Email),
		u.DisplayName,
		string(u.Role),
		u.RoleID.String(),
		u.Status.String(),
		u.AuthProvider,
		nullIfEmpty(u.PasswordHash),
		u.Env,
	).Scan(&id, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	if u.ID, err = uuid.Parse(id); err != nil {
		return fmt.Errorf("parsing user id: %w", err)
	}
	u.Email = strings.ToLower(u.Email)

	return nil
}

// GetByEmail retrieves a single user by email, case-insensitively.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// GetByRoleID retrieves the user owning the given bearer credential.
func (r *PostgresRepository) GetByRoleID(ctx context.Context, roleID uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role_id = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, roleID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user by role id: %w", err)
	}
	return u, nil
}

// List retrieves users holding one of roles, ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context, roles []role.Role) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = ANY($1) ORDER BY created_at ASC`

	names := make([]string, len(roles))
	for i, rl := range roles {
		names[i] = string(rl)
	}

	rows, err := r.db.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}

	return users, nil
}

// SetRole sets the role of the user identified by email and resets its
// status to stable. Returns ErrUserNotFound if no such user exists.
func (r *PostgresRepository) SetRole(ctx context.Context, email string, rl role.Role, editedBy string) (*User, error) {
	query := `
		UPDATE users
		SET role = $2, status = 'stable', edited_by = $3, updated_at = NOW()
		WHERE email = $1
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email)), string(rl), nullIfEmpty(editedBy)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("updating user role: %w", err)
	}
	return u, nil
}

// SetStatus overwrites the status of the user identified by email.
func (r *PostgresRepository) SetStatus(ctx context.Context, email string, s role.Status) (*User, error) {
	query := `
		UPDATE users
		SET status = $2, updated_at = NOW()
		WHERE email = $1
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email)), s.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("updating user status: %w", err)
	}
	return u, nil
}

// CountAll returns the total number of users in the table.
func (r *PostgresRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u                User
		id, roleID       string
		roleName, status string
	)
	err := row.Scan(
		&id, &u.Email, &u.DisplayName, &roleName, &roleID, &status,
		&u.AuthProvider, &u.PasswordHash, &u.Env, &u.EditedBy,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if u.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing user id: %w", err)
	}
	if u.RoleID, err = uuid.Parse(roleID); err != nil {
		return nil, fmt.Errorf("parsing role id: %w", err)
	}
	u.Role = role.ToRole(roleName)
	u.Status = role.ParseStatus(status)
	return &u, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
