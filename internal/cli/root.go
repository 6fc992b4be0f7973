package cli

import (
	"github.com/spf13/cobra"
)

// RootCmd builds the portalctl command tree.
func RootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "HR portal command-line client",
		Long:          "Sign in to the HR portal and manage role assignments.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		LoginCmd(app),
		LogoutCmd(app),
		WhoamiCmd(app),
		RequestRoleCmd(app),
		RolesCmd(app),
	)

	return root
}
