package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"sigs.k8s.io/yaml"

	"github.com/velia-hr/portal/internal/credential"
	"github.com/velia-hr/portal/internal/role"
)

var (
	// ErrInvalidCredentials is returned when a local login does not match.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrForbiddenAssignment is returned when the editor may not grant the role.
	ErrForbiddenAssignment = errors.New("not allowed to assign this role")

	// ErrIdPDisabled is returned by IdPLogin when no verifier is configured.
	ErrIdPDisabled = errors.New("identity provider login is not configured")
)

// Recorder observes role mutations. *obs.Metrics satisfies it.
type Recorder interface {
	RoleChanged(from, to string)
	RoleRequested(target string)
}

type nopRecorder struct{}

func (nopRecorder) RoleChanged(string, string) {}
func (nopRecorder) RoleRequested(string)       {}

// Service provides authentication and role operations.
type Service struct {
	users      UserRepository
	verifier   IDTokenVerifier
	env        string
	bcryptCost int
	recorder   Recorder
}

// NewService creates a new auth Service. verifier may be nil, which disables
// identity-provider login.
func NewService(users UserRepository, verifier IDTokenVerifier, env string, bcryptCost int) *Service {
	return &Service{
		users:      users,
		verifier:   verifier,
		env:        env,
		bcryptCost: bcryptCost,
		recorder:   nopRecorder{},
	}
}

// SetRecorder installs rec to observe role changes and requests.
func (s *Service) SetRecorder(rec Recorder) {
	if rec == nil {
		rec = nopRecorder{}
	}
	s.recorder = rec
}

// Env returns the environment the service issues credentials for.
func (s *Service) Env() string {
	return s.env
}

// Authenticate resolves an Authorization header to an Identity.
func (s *Service) Authenticate(ctx context.Context, header string) (*Identity, error) {
	raw, err := credential.ParseBearer(header, s.env)
	if err != nil {
		return nil, ErrInvalidToken
	}
	roleID, err := uuid.Parse(raw)
	if err != nil {
		return nil, ErrInvalidToken
	}

	u, err := s.users.GetByRoleID(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("resolving bearer token: %w", err)
	}
	return identityOf(u), nil
}

// LocalLogin checks a username/password pair against a local account.
func (s *Service) LocalLogin(ctx context.Context, username, password string) (*User, error) {
	u, err := s.users.GetByEmail(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// IdPLogin verifies an identity-provider ID token and returns the matching
// user. Unknown users are created with the default role and a stable status.
func (s *Service) IdPLogin(ctx context.Context, idToken string) (*User, error) {
	if s.verifier == nil {
		return nil, ErrIdPDisabled
	}
	claims, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	email := claims.Username()
	u, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	u = &User{
		Email:        email,
		DisplayName:  strings.TrimSpace(claims.Name),
		Role:         role.Default,
		RoleID:       uuid.New(),
		Status:       role.Stable(),
		AuthProvider: ProviderIdP,
		Env:          s.env,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			// Lost a race with a concurrent first login.
			return s.users.GetByEmail(ctx, email)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	slog.Info("User created from identity provider", "email", email)
	return u, nil
}

// Roster returns the users the editor may see and edit.
func (s *Service) Roster(ctx context.Context, editor *Identity) ([]User, error) {
	visible := role.Visible(editor.Role)
	if len(visible) == 0 {
		return nil, ErrForbiddenAssignment
	}
	return s.users.List(ctx, visible)
}

// AssignRole sets the role of the user identified by email and resets its
// status to stable. The editor must outrank both the current and the new
// role, unless the editor is an admin. Repeating the same call is harmless.
func (s *Service) AssignRole(ctx context.Context, editor *Identity, email string, target role.Role) (*User, error) {
	if !role.CanEditRoles(editor.Role) || !role.CanAssign(editor.Role, target) {
		return nil, ErrForbiddenAssignment
	}

	current, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !role.CanAssign(editor.Role, current.Role) {
		return nil, ErrForbiddenAssignment
	}

	u, err := s.users.SetRole(ctx, email, target, editor.Email)
	if err != nil {
		return nil, err
	}
	slog.Info("Role assigned",
		"editor", editor.Email,
		"email", u.Email,
		"from", string(current.Role),
		"to", string(target),
	)
	s.recorder.RoleChanged(string(current.Role), string(target))
	return u, nil
}

// RequestRole records a self-service request for target. Requesting the role
// already held withdraws any pending request.
func (s *Service) RequestRole(ctx context.Context, id *Identity, target role.Role) (*User, error) {
	status := role.PendingEscalation(target)
	if target == id.Role {
		status = role.Stable()
	}
	u, err := s.users.SetStatus(ctx, id.Email, status)
	if err != nil {
		return nil, err
	}
	if !status.IsStable() {
		s.recorder.RoleRequested(string(target))
	}
	return u, nil
}

// Profile returns the full record behind an authenticated identity.
func (s *Service) Profile(ctx context.Context, id *Identity) (*User, error) {
	return s.users.GetByEmail(ctx, id.Email)
}

// BootstrapAdmin creates the initial admin if the users table is empty. When
// password is empty a random one is generated and logged once. Returns true
// if an admin was created.
func (s *Service) BootstrapAdmin(ctx context.Context, email, password string) (bool, error) {
	count, err := s.users.CountAll(ctx)
	if err != nil {
		return false, fmt.Errorf("counting users: %w", err)
	}
	if count > 0 || strings.TrimSpace(email) == "" {
		return false, nil
	}

	generated := password == ""
	if generated {
		password, err = randomPassword()
		if err != nil {
			return false, err
		}
	}

	u, err := s.newLocalUser(email, "Administrator", role.Admin, password)
	if err != nil {
		return false, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return false, fmt.Errorf("creating admin: %w", err)
	}

	if generated {
		slog.Info("Bootstrap admin created", "email", u.Email, "password", password)
	} else {
		slog.Info("Bootstrap admin created", "email", u.Email)
	}
	return true, nil
}

// SeedUser is one entry of a seed file.
type SeedUser struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Password    string `json:"password"`
}

// SeedFile is the document format read by Seed.
type SeedFile struct {
	Users []SeedUser `json:"users"`
}

// SeedFromFile imports users from a YAML or JSON seed file. Existing emails
// are skipped. Returns the number of users created.
func (s *Service) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading seed file: %w", err)
	}
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parsing seed file: %w", err)
	}
	return s.Seed(ctx, file.Users)
}

// Seed creates the given users, skipping emails that already exist.
func (s *Service) Seed(ctx context.Context, seeds []SeedUser) (int, error) {
	created := 0
	for _, su := range seeds {
		email := strings.ToLower(strings.TrimSpace(su.Email))
		if email == "" {
			continue
		}
		_, err := s.users.GetByEmail(ctx, email)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrUserNotFound) {
			return created, fmt.Errorf("looking up %s: %w", email, err)
		}

		var u *User
		if su.Password != "" {
			u, err = s.newLocalUser(email, su.DisplayName, role.ToRole(su.Role), su.Password)
			if err != nil {
				return created, err
			}
		} else {
			u = &User{
				Email:        email,
				DisplayName:  su.DisplayName,
				Role:         role.ToRole(su.Role),
				RoleID:       uuid.New(),
				Status:       role.Stable(),
				AuthProvider: ProviderIdP,
				Env:          s.env,
			}
		}
		if err := s.users.Create(ctx, u); err != nil {
			return created, fmt.Errorf("creating %s: %w", email, err)
		}
		created++
	}
	return created, nil
}

func (s *Service) newLocalUser(email, name string, r role.Role, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return &User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		DisplayName:  name,
		Role:         r,
		RoleID:       uuid.New(),
		Status:       role.Stable(),
		AuthProvider: ProviderLocal,
		PasswordHash: string(hash),
		Env:          s.env,
	}, nil
}

func randomPassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
