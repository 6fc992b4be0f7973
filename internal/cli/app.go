// Package cli implements the portalctl commands on top of the session,
// workflow and client packages.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/velia-hr/portal/internal/client"
	"github.com/velia-hr/portal/internal/config"
	"github.com/velia-hr/portal/internal/role"
	"github.com/velia-hr/portal/internal/session"
	"github.com/velia-hr/portal/internal/workflow"
)

var (
	errNotSignedIn = errors.New("not signed in; run `portalctl login` first")
	errSignInBusy  = errors.New("a sign-in is still in progress")
)

// App carries what every command needs.
type App struct {
	Session  *session.Manager
	Provider *session.MemoryProvider
	Client   *client.Client
	Logger   *slog.Logger
	Out      io.Writer
}

// NewApp wires an App from cfg using store for the session. The stored
// actor, if any, becomes the client's credential.
func NewApp(ctx context.Context, cfg *config.ClientConfig, store session.Store, logger *slog.Logger, out io.Writer) (*App, error) {
	provider := session.NewMemoryProvider()
	mgr := session.NewManager(provider, store, session.WithLogger(logger))
	if err := mgr.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("restoring session: %w", err)
	}

	c := client.New(client.Config{
		BaseURL: cfg.APIURL,
		Env:     cfg.Env,
		Timeout: cfg.Timeout,
		Debug:   cfg.LogLevel == "debug",
	})
	if u := mgr.User(); u != nil {
		c.SetCredential(u.RoleID)
	}

	return &App{
		Session:  mgr,
		Provider: provider,
		Client:   c,
		Logger:   logger,
		Out:      out,
	}, nil
}

// Close releases the session's IdP subscription.
func (a *App) Close() {
	a.Session.Close()
}

func (a *App) signIn(id *session.Identity) error {
	if err := a.Session.SetUser(id); err != nil {
		return err
	}
	a.Client.SetCredential(id.RoleID)
	if id.AuthProvider == session.ProviderIdP {
		a.Provider.SignIn(session.Account{
			HomeAccountID: id.ID,
			Username:      id.Email,
			Name:          id.DisplayName,
		})
	}
	return nil
}

func (a *App) requireUser() (*session.Identity, error) {
	switch a.Session.Guard().Decision {
	case session.Pending:
		return nil, errSignInBusy
	case session.Redirect:
		return nil, errNotSignedIn
	}
	u := a.Session.User()
	if u == nil {
		return nil, errNotSignedIn
	}
	return u, nil
}

// openWorkflow admits admin and hr actors and loads the roster.
func (a *App) openWorkflow(ctx context.Context) (*workflow.Workflow, error) {
	access := a.Session.Guard(role.Admin, role.HR)
	switch access.Decision {
	case session.Pending:
		return nil, errSignInBusy
	case session.Redirect:
		return nil, errNotSignedIn
	case session.Deny:
		return nil, fmt.Errorf("%w; your area is %s", workflow.ErrAuthorizationDenied, access.Target)
	}

	wf, err := workflow.New(a.Session.User(), a.Client,
		workflow.WithLogger(a.Logger),
		workflow.WithIdentitySink(a.Session),
	)
	if err != nil {
		return nil, err
	}
	if err := wf.Load(ctx); err != nil {
		defer wf.Close()
		return nil, visible(wf, err)
	}
	return wf, nil
}

// visible prefers the message the workflow shows the actor over err.
func visible(wf *workflow.Workflow, err error) error {
	if msg := wf.Err(); msg != "" {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return err
}
