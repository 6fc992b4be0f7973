package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/romdo/go-debounce"

	"github.com/velia-hr/portal/internal/role"
	"github.com/velia-hr/portal/internal/session"
)

// DefaultDebounce gates re-filtering of the table on free-text input.
const DefaultDebounce = 150 * time.Millisecond

const (
	msgLoadFailed       = "Failed to load users"
	msgUpdateFailed     = "Failed to update role"
	msgEscalationFailed = "Failed to handle escalation"
)

// Workflow is the role-assignment screen's state: the roster, its derived
// views and the mutations an admin or hr actor can issue.
type Workflow struct {
	actor   session.Identity
	backend Backend
	sink    IdentitySink
	logger  *slog.Logger
	wait    time.Duration

	debounced      func()
	cancelDebounce func()

	mu           sync.Mutex
	roster       []UserRecord
	saving       map[string]struct{}
	errMsg       string
	sort         Sort
	pendingQuery string
	tableQuery   string
	columnQuery  map[role.Role]string
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = l
	}
}

// WithIdentitySink propagates changes to the actor's own record.
func WithIdentitySink(s IdentitySink) Option {
	return func(w *Workflow) {
		w.sink = s
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Workflow) {
		w.wait = d
	}
}

// New opens the workflow for actor. Only admin and hr actors are admitted;
// the check runs before anything is fetched.
func New(actor *session.Identity, backend Backend, opts ...Option) (*Workflow, error) {
	if actor == nil || !role.CanEditRoles(role.ToRole(string(actor.Role))) {
		return nil, ErrAuthorizationDenied
	}

	w := &Workflow{
		actor:       *actor,
		backend:     backend,
		logger:      slog.Default(),
		wait:        DefaultDebounce,
		saving:      make(map[string]struct{}),
		columnQuery: make(map[role.Role]string, len(role.All)),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debounced, w.cancelDebounce = debounce.New(w.wait, w.applyTableQuery)

	return w, nil
}

// Close stops any pending debounced work.
func (w *Workflow) Close() {
	w.cancelDebounce()
}

// Load replaces the roster with the backend's. Failures are surfaced through
// Err and never retried automatically.
func (w *Workflow) Load(ctx context.Context) error {
	w.clearError()

	records, err := w.backend.FetchRoster(ctx)
	if err != nil {
		w.fail(visibleMessage(err, msgLoadFailed))
		return fmt.Errorf("loading roster: %w", err)
	}

	roster := make([]UserRecord, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		rec.Email = normalizeEmail(rec.Email)
		if rec.Email == "" {
			continue
		}
		if _, dup := seen[rec.Email]; dup {
			w.logger.Warn("duplicate roster entry ignored", "email", rec.Email)
			continue
		}
		seen[rec.Email] = struct{}{}
		rec.Role = role.ToRole(string(rec.Role))
		roster = append(roster, rec)
	}

	w.mu.Lock()
	w.roster = roster
	w.mu.Unlock()

	w.logger.Debug("roster loaded", "users", len(roster))
	return nil
}

// SetRole directly changes a user's role. The roster is only updated after
// the backend confirms the change. A direct edit clears any pending request,
// as the backend does.
func (w *Workflow) SetRole(ctx context.Context, email string, newRole role.Role) error {
	next, err := role.ParseRole(string(newRole))
	if err != nil {
		w.fail(fmt.Sprintf("Unknown role %q", newRole))
		return fmt.Errorf("%w: %w", ErrInvalidRole, err)
	}

	email = normalizeEmail(email)
	if _, ok := w.record(email); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, email)
	}

	return w.mutate(ctx, email, next, msgUpdateFailed, func(rec *UserRecord) {
		rec.Role = next
		rec.Status = role.Stable()
	})
}

// ResolveEscalation approves or rejects the pending escalation of email.
// Approve applies the requested role; Reject keeps the current role. Both
// leave the record stable.
func (w *Workflow) ResolveEscalation(ctx context.Context, email string, decision Decision) error {
	email = normalizeEmail(email)
	rec, ok := w.record(email)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, email)
	}
	if rec.Status.IsStable() {
		return fmt.Errorf("%w: %s", ErrNotPending, email)
	}

	switch decision {
	case Approve:
		target, err := rec.Status.Target()
		if err != nil {
			w.fail(ErrMalformedEscalationStatus.Error())
			return fmt.Errorf("%w: %w", ErrMalformedEscalationStatus, err)
		}
		return w.mutate(ctx, email, target, msgEscalationFailed, func(r *UserRecord) {
			r.Role = target
			r.Status = role.Stable()
		})
	case Reject:
		// The backend has no status-only update; re-sending the current role
		// resets the status without changing the role.
		return w.mutate(ctx, email, rec.Role, msgEscalationFailed, func(r *UserRecord) {
			r.Status = role.Stable()
		})
	}
	return fmt.Errorf("unknown decision %d", decision)
}

// BeginDrag starts moving a record between role groups.
func (w *Workflow) BeginDrag(email string) (DragPayload, error) {
	email = normalizeEmail(email)
	if _, ok := w.record(email); !ok {
		return DragPayload{}, fmt.Errorf("%w: %s", ErrUnknownUser, email)
	}
	if w.Saving(email) {
		return DragPayload{}, ErrConcurrentMutation
	}
	return DragPayload{Email: email}, nil
}

// Drop finishes a drag onto the group of target. Unknown groups are refused
// without a call.
func (w *Workflow) Drop(ctx context.Context, p DragPayload, target role.Role) error {
	next, err := role.ParseRole(string(target))
	if err != nil {
		w.fail(fmt.Sprintf("Unknown role %q", target))
		return fmt.Errorf("%w: %w", ErrInvalidRole, err)
	}
	return w.ProposeTransfer(ctx, p.Email, next)
}

// ProposeTransfer moves a user to target through the same path as SetRole.
// Moving a user onto their current role is a no-op and issues no call.
func (w *Workflow) ProposeTransfer(ctx context.Context, email string, target role.Role) error {
	email = normalizeEmail(email)
	rec, ok := w.record(email)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, email)
	}
	if role.ToRole(string(rec.Role)) == target {
		return nil
	}
	if w.Saving(email) {
		return ErrConcurrentMutation
	}
	return w.SetRole(ctx, email, target)
}

// Saving reports whether email has a mutation in flight.
func (w *Workflow) Saving(email string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.saving[normalizeEmail(email)]
	return ok
}

// Err returns the error message currently shown to the actor.
func (w *Workflow) Err() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errMsg
}

// ClearError dismisses the visible error.
func (w *Workflow) ClearError() {
	w.clearError()
}

// Actor returns the identity the workflow was opened for.
func (w *Workflow) Actor() session.Identity {
	return w.actor
}

// mutate runs one role RPC for email under its saving lock and, on success,
// replaces the record with apply's result.
func (w *Workflow) mutate(ctx context.Context, email string, send role.Role, fallback string, apply func(*UserRecord)) error {
	w.mu.Lock()
	if _, busy := w.saving[email]; busy {
		w.mu.Unlock()
		return ErrConcurrentMutation
	}
	w.saving[email] = struct{}{}
	w.errMsg = ""
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.saving, email)
		w.mu.Unlock()
	}()

	if err := w.backend.SetRole(ctx, email, send); err != nil {
		w.fail(visibleMessage(err, fallback))
		w.logger.Warn("role update failed", "email", email, "role", send, "error", err)
		return fmt.Errorf("setting role of %s: %w", email, err)
	}

	w.mu.Lock()
	var updated *UserRecord
	for i := range w.roster {
		if w.roster[i].Email == email {
			rec := w.roster[i]
			apply(&rec)
			w.roster[i] = rec
			updated = &rec
			break
		}
	}
	w.mu.Unlock()

	if updated == nil {
		// The roster was reloaded while the call was in flight.
		w.logger.Debug("dropping update for record no longer in roster", "email", email)
		return nil
	}

	w.logger.Info("role updated", "email", email, "role", updated.Role, "status", updated.Status.String())
	if w.sink != nil && normalizeEmail(w.actor.Email) == email {
		w.sink.ApplyRoleChange(email, updated.Role)
	}
	return nil
}

func (w *Workflow) record(email string) (UserRecord, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rec := range w.roster {
		if rec.Email == email {
			return rec, true
		}
	}
	return UserRecord{}, false
}

func (w *Workflow) fail(msg string) {
	w.mu.Lock()
	w.errMsg = msg
	w.mu.Unlock()
}

func (w *Workflow) clearError() {
	w.mu.Lock()
	w.errMsg = ""
	w.mu.Unlock()
}

// userMessager is implemented by backend errors that carry server-provided
// text suitable for display.
type userMessager interface {
	UserMessage() string
}

func visibleMessage(err error, fallback string) string {
	var m userMessager
	if errors.As(err, &m) {
		if msg := m.UserMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
