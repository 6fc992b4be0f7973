package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/velia-hr/portal/internal/role"
)

// LoginCmd signs in with a local account or an identity-provider ID token.
func LoginCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Long:  "Sign in with --username/--password, or with --id-token from the identity provider.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			idToken, _ := cmd.Flags().GetString("id-token")

			ctx := cmd.Context()
			switch {
			case idToken != "" && (username != "" || password != ""):
				return errors.New("use either --id-token or --username/--password, not both")
			case idToken != "":
				id, err := app.Client.IdPLogin(ctx, idToken)
				if err != nil {
					return fmt.Errorf("signing in: %w", err)
				}
				if err := app.signIn(id); err != nil {
					return err
				}
			case username != "" && password != "":
				id, err := app.Client.LocalLogin(ctx, username, password)
				if err != nil {
					return fmt.Errorf("signing in: %w", err)
				}
				if err := app.signIn(id); err != nil {
					return err
				}
			default:
				return errors.New("--username and --password, or --id-token, are required")
			}

			u := app.Session.User()
			fmt.Fprintf(app.Out, "Signed in as %s (%s)\n", app.Session.DisplayName(), u.Role.Label())
			fmt.Fprintf(app.Out, "Home: %s\n", app.Session.LandingRoute())
			return nil
		},
	}

	cmd.Flags().String("username", "", "Local account email")
	cmd.Flags().String("password", "", "Local account password")
	cmd.Flags().String("id-token", "", "ID token issued by the identity provider")

	return cmd
}

// LogoutCmd clears the stored session.
func LogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := app.Session.Logout(cmd.Context())
			app.Client.SetCredential("")
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "Signed out")
			return nil
		},
	}
}

// WhoamiCmd refreshes and prints the signed-in actor.
func WhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := app.requireUser(); err != nil {
				return err
			}

			id, err := app.Client.Me(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading profile: %w", err)
			}
			if err := app.Session.SetUser(id); err != nil {
				return err
			}

			perms := role.Permissions(id.Role)
			names := make([]string, len(perms))
			for i, p := range perms {
				names[i] = string(p)
			}

			w := newTable(app.Out)
			fmt.Fprintf(w, "Name:\t%s\n", app.Session.DisplayName())
			fmt.Fprintf(w, "Email:\t%s\n", id.Email)
			fmt.Fprintf(w, "Role:\t%s\n", id.Role.Label())
			fmt.Fprintf(w, "Status:\t%s\n", id.Status)
			fmt.Fprintf(w, "Provider:\t%s\n", id.AuthProvider)
			fmt.Fprintf(w, "Permissions:\t%s\n", strings.Join(names, ", "))
			fmt.Fprintf(w, "Home:\t%s\n", app.Session.LandingRoute())
			return w.Flush()
		},
	}
}

// RequestRoleCmd files a self-service role request.
func RequestRoleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "request-role ROLE",
		Short: "Ask for a different role",
		Long:  "Ask admins and hr for ROLE. Requesting your current role withdraws a pending request.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.requireUser(); err != nil {
				return err
			}
			target, err := role.ParseRole(args[0])
			if err != nil {
				return err
			}

			id, err := app.Client.RequestRole(cmd.Context(), target)
			if err != nil {
				return fmt.Errorf("requesting role: %w", err)
			}
			if err := app.Session.SetUser(id); err != nil {
				return err
			}

			if id.Status.IsStable() {
				fmt.Fprintln(app.Out, "No pending role request")
				return nil
			}
			fmt.Fprintf(app.Out, "Requested %s\n", target.Label())
			return nil
		},
	}
}
