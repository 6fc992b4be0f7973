package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velia-hr/portal/internal/auth"
	"github.com/velia-hr/portal/internal/role"
)

var userCols = []string{
	"id", "email", "display_name", "role", "role_id", "status", "auth_provider",
	"password_hash", "env", "edited_by", "created_at", "updated_at",
}

func setupMock(t *testing.T) (pgxmock.PgxPoolIface, auth.UserRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, auth.NewRepository(mock)
}

func userRows(mock pgxmock.PgxPoolIface) *pgxmock.Rows {
	return mock.NewRows(userCols)
}

func TestRepository_GetByEmail(t *testing.T) {
	mock, repo := setupMock(t)
	id, rid := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1").
		WithArgs("ann@x.com").
		WillReturnRows(userRows(mock).AddRow(
			id.String(), "ann@x.com", "Ann Lee", "FR", rid.String(), "To manager", "idp", "", "dev", "", now, now,
		))

	u, err := repo.GetByEmail(context.Background(), "  Ann@X.com ")
	require.NoError(t, err)

	assert.Equal(t, id, u.ID)
	assert.Equal(t, rid, u.RoleID)
	assert.Equal(t, role.Facilitator, u.Role, "legacy role names are canonicalized")
	target, err := u.Status.Target()
	require.NoError(t, err)
	assert.Equal(t, role.Manager, target)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByEmail_NotFound(t *testing.T) {
	mock, repo := setupMock(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1").
		WithArgs("nobody@x.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByRoleID(t *testing.T) {
	mock, repo := setupMock(t)
	id, rid := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE role_id = \\$1").
		WithArgs(rid.String()).
		WillReturnRows(userRows(mock).AddRow(
			id.String(), "bo@x.com", "Bo Ray", "admin", rid.String(), "stable", "local", "$2a$04$hash", "prod", "", now, now,
		))

	u, err := repo.GetByRoleID(context.Background(), rid)
	require.NoError(t, err)
	assert.Equal(t, role.Admin, u.Role)
	assert.True(t, u.Status.IsStable())
	assert.Equal(t, "$2a$04$hash", u.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_List_FiltersByRoles(t *testing.T) {
	mock, repo := setupMock(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE role = ANY\\(\\$1\\)").
		WithArgs([]string{"hr", "simple"}).
		WillReturnRows(userRows(mock).
			AddRow(uuid.NewString(), "ann@x.com", "Ann", "hr", uuid.NewString(), "stable", "idp", "", "dev", "", now, now).
			AddRow(uuid.NewString(), "dee@x.com", "Dee", "simple", uuid.NewString(), "", "idp", "", "dev", "", now, now))

	users, err := repo.List(context.Background(), []role.Role{role.HR, role.Simple})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ann@x.com", users[0].Email)
	assert.True(t, users[1].Status.IsStable(), "empty status reads as stable")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_List_Empty(t *testing.T) {
	mock, repo := setupMock(t)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs([]string{"simple"}).
		WillReturnRows(userRows(mock))

	users, err := repo.List(context.Background(), []role.Role{role.Simple})
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestRepository_SetRole(t *testing.T) {
	mock, repo := setupMock(t)
	now := time.Now()

	mock.ExpectQuery("UPDATE users\\s+SET role = \\$2, status = 'stable'").
		WithArgs("dee@x.com", "manager", "bo@x.com").
		WillReturnRows(userRows(mock).AddRow(
			uuid.NewString(), "dee@x.com", "Dee", "manager", uuid.NewString(), "stable", "idp", "", "dev", "bo@x.com", now, now,
		))

	u, err := repo.SetRole(context.Background(), "Dee@x.com", role.Manager, "bo@x.com")
	require.NoError(t, err)
	assert.Equal(t, role.Manager, u.Role)
	assert.True(t, u.Status.IsStable())
	assert.Equal(t, "bo@x.com", u.EditedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SetRole_NotFound(t *testing.T) {
	mock, repo := setupMock(t)

	mock.ExpectQuery("UPDATE users").
		WithArgs("gone@x.com", "hr", "bo@x.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.SetRole(context.Background(), "gone@x.com", role.HR, "bo@x.com")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestRepository_SetStatus(t *testing.T) {
	mock, repo := setupMock(t)
	now := time.Now()

	mock.ExpectQuery("UPDATE users\\s+SET status = \\$2").
		WithArgs("dee@x.com", "To hr").
		WillReturnRows(userRows(mock).AddRow(
			uuid.NewString(), "dee@x.com", "Dee", "simple", uuid.NewString(), "To hr", "idp", "", "dev", "", now, now,
		))

	u, err := repo.SetStatus(context.Background(), "dee@x.com", role.PendingEscalation(role.HR))
	require.NoError(t, err)
	assert.False(t, u.Status.IsStable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Create(t *testing.T) {
	mock, repo := setupMock(t)
	id, rid := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("new@x.com", "New", "simple", rid.String(), "stable", "idp", pgxmock.AnyArg(), "dev").
		WillReturnRows(mock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id.String(), now, now))

	u := &auth.User{
		Email:        "New@x.com",
		DisplayName:  "New",
		Role:         role.Simple,
		RoleID:       rid,
		Status:       role.Stable(),
		AuthProvider: auth.ProviderIdP,
		Env:          "dev",
	}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "new@x.com", u.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Create_Duplicate(t *testing.T) {
	mock, repo := setupMock(t)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("dup@x.com", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &auth.User{Email: "Dup@x.com", RoleID: uuid.New()})
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CountAll(t *testing.T) {
	mock, repo := setupMock(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
