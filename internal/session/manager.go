package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/velia-hr/portal/internal/role"
)

// Manager owns the current actor. One instance is created per process and
// passed to everything that needs to know who is signed in.
type Manager struct {
	provider IdentityProvider
	store    Store
	logger   *slog.Logger

	mu          sync.RWMutex
	user        *Identity
	unsubscribe func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for recoverable IdP and store failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager. provider may be nil when only local login is
// available.
func NewManager(provider IdentityProvider, store Store, opts ...Option) *Manager {
	m := &Manager{
		provider: provider,
		store:    store,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bootstrap seeds the in-memory user from the store and starts listening to
// IdP events. It must complete before any role-gated operation runs.
func (m *Manager) Bootstrap(_ context.Context) error {
	stored, err := m.store.Load()
	if err != nil {
		// A corrupt entry must not lock the actor out; start signed out instead.
		m.logger.Warn("discarding unreadable session", "error", err)
		if clearErr := m.store.Clear(); clearErr != nil {
			return fmt.Errorf("clearing unreadable session: %w", clearErr)
		}
		stored = nil
	}

	m.mu.Lock()
	m.user = stored
	if m.provider != nil && m.unsubscribe == nil {
		m.unsubscribe = m.provider.Subscribe(m.OnIdentityEvent)
	}
	m.mu.Unlock()

	m.SyncActiveAccount()
	return nil
}

// Close stops listening to IdP events.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// ResolveActiveAccount returns the IdP account that represents the actor:
// the IdP's active account, else its first account once no interaction is in
// progress, else nil. It never blocks on the network.
func (m *Manager) ResolveActiveAccount() *Account {
	if m.provider == nil {
		return nil
	}
	if active := m.provider.ActiveAccount(); active != nil {
		return active
	}
	if m.provider.InteractionStatus() == InteractionNone {
		if accounts := m.provider.Accounts(); len(accounts) > 0 {
			acc := accounts[0]
			return &acc
		}
	}
	return nil
}

// SyncActiveAccount promotes the first IdP account to active once the IdP is
// idle and nothing is active yet.
func (m *Manager) SyncActiveAccount() {
	if m.provider == nil || m.provider.InteractionStatus() != InteractionNone {
		return
	}
	if m.provider.ActiveAccount() != nil {
		return
	}
	if accounts := m.provider.Accounts(); len(accounts) > 0 {
		acc := accounts[0]
		m.provider.SetActiveAccount(&acc)
	}
}

// OnIdentityEvent keeps the session in step with the IdP.
func (m *Manager) OnIdentityEvent(ev Event) {
	switch ev.Type {
	case EventLoginSuccess, EventSSOSilentSuccess, EventAcquireTokenSuccess:
		if ev.Account != nil && m.provider != nil {
			m.provider.SetActiveAccount(ev.Account)
		}
	case EventLogoutSuccess:
		m.clearUser()
	}
}

// SetUser makes id the local user and persists it.
func (m *Manager) SetUser(id *Identity) error {
	if id == nil {
		m.clearUser()
		return nil
	}
	cp := *id
	cp.Email = strings.ToLower(strings.TrimSpace(cp.Email))
	cp.Role = role.ToRole(string(cp.Role))

	m.mu.Lock()
	m.user = &cp
	m.mu.Unlock()

	if err := m.store.Save(&cp); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}

// User returns a copy of the local user, or nil.
func (m *Manager) User() *Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	cp := *m.user
	return &cp
}

// IsAuthenticated is true when either login path has produced an actor.
func (m *Manager) IsAuthenticated() bool {
	return m.User() != nil || m.ResolveActiveAccount() != nil
}

// DisplayName returns the name to greet the actor with.
func (m *Manager) DisplayName() string {
	if u := m.User(); u != nil {
		if u.DisplayName != "" {
			return u.DisplayName
		}
		if local, _, ok := strings.Cut(u.Email, "@"); ok && local != "" {
			return local
		}
	}
	if acc := m.ResolveActiveAccount(); acc != nil && acc.Name != "" {
		return acc.Name
	}
	return "User"
}

// ApplyRoleChange updates the cached actor when a role mutation targeted the
// actor's own record.
func (m *Manager) ApplyRoleChange(email string, r role.Role) {
	m.mu.Lock()
	if m.user == nil || !strings.EqualFold(m.user.Email, email) {
		m.mu.Unlock()
		return
	}
	m.user.Role = r
	m.user.Status = role.Stable()
	cp := *m.user
	m.mu.Unlock()

	if err := m.store.Save(&cp); err != nil {
		m.logger.Warn("failed to persist role change to session", "email", email, "error", err)
	}
}

// Logout clears the local user before asking the IdP to sign out, so anything
// gated on IsAuthenticated reacts without waiting on the network. IdP failures
// are logged and returned; the local state stays cleared.
func (m *Manager) Logout(ctx context.Context) error {
	m.clearUser()

	if m.provider == nil {
		return nil
	}
	if err := m.provider.Logout(ctx); err != nil {
		m.logger.Warn("identity provider sign-out failed", "error", err)
		return fmt.Errorf("identity provider sign-out: %w", err)
	}
	return nil
}

func (m *Manager) clearUser() {
	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear stored session", "error", err)
	}
}
