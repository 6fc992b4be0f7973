package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/velia-hr/portal/internal/role"
	"github.com/velia-hr/portal/internal/workflow"
)

// RolesCmd groups the role-assignment commands. All of them require an admin
// or hr actor.
func RolesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Review and assign roles",
	}

	cmd.AddCommand(
		rolesListCmd(app),
		rolesBoardCmd(app),
		rolesEscalationsCmd(app),
		rolesSetCmd(app),
		rolesMoveCmd(app),
		rolesResolveCmd(app, "approve", workflow.Approve),
		rolesResolveCmd(app, "reject", workflow.Reject),
	)

	return cmd
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func rolesListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users with a stable role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, _ := cmd.Flags().GetString("query")
			sortBy, _ := cmd.Flags().GetString("sort")
			desc, _ := cmd.Flags().GetBool("desc")

			key, ok := workflow.ParseSortKey(sortBy)
			if !ok {
				return fmt.Errorf("unknown sort key %q (use name, email or role)", sortBy)
			}

			wf, err := app.openWorkflow(cmd.Context())
			if err != nil {
				return err
			}
			defer wf.Close()

			wf.SetTableQuery(query)
			wf.SubmitTableQuery()
			if key != workflow.SortNone {
				wf.ToggleSort(key)
				if desc {
					wf.ToggleSort(key)
				}
			}

			w := newTable(app.Out)
			fmt.Fprintln(w, "NAME\tEMAIL\tROLE")
			for _, row := range wf.Table() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", row.DisplayName, row.Email, row.Role.Label())
			}
			return w.Flush()
		},
	}

	cmd.Flags().String("query", "", "Only show users matching every word")
	cmd.Flags().String("sort", "", "Sort by name, email or role")
	cmd.Flags().Bool("desc", false, "Sort descending")

	return cmd
}

func rolesBoardCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show users grouped by role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			columns, _ := cmd.Flags().GetStringToString("column")

			wf, err := app.openWorkflow(cmd.Context())
			if err != nil {
				return err
			}
			defer wf.Close()

			for name, q := range columns {
				r, err := role.ParseRole(name)
				if err != nil {
					return err
				}
				wf.SetColumnQuery(r, q)
			}

			board := wf.Board()
			totals := wf.Totals()
			for _, r := range role.All {
				fmt.Fprintf(app.Out, "%s (%d)\n", r.Label(), totals[r])
				for _, row := range board[r] {
					fmt.Fprintf(app.Out, "  %s <%s>\n", row.DisplayName, row.Email)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringToString("column", nil, "Filter a role group, e.g. --column hr=ann")

	return cmd
}

func rolesEscalationsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "escalations",
		Short: "List pending role requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wf, err := app.openWorkflow(cmd.Context())
			if err != nil {
				return err
			}
			defer wf.Close()

			pending := wf.Escalations()
			if len(pending) == 0 {
				fmt.Fprintln(app.Out, "No pending requests")
				return nil
			}

			w := newTable(app.Out)
			fmt.Fprintln(w, "NAME\tEMAIL\tCURRENT\tREQUESTED")
			for _, e := range pending {
				requested := e.Target.Label()
				if e.TargetErr != nil {
					requested = fmt.Sprintf("unreadable (%q)", e.Status.String())
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.DisplayName, e.Email, e.Role.Label(), requested)
			}
			return w.Flush()
		},
	}
}

func rolesSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set EMAIL ROLE",
		Short: "Assign a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := app.openWorkflow(cmd.Context())
			if err != nil {
				return err
			}
			defer wf.Close()

			target := role.Role(strings.ToLower(strings.TrimSpace(args[1])))
			if err := wf.SetRole(cmd.Context(), args[0], target); err != nil {
				return visible(wf, err)
			}
			fmt.Fprintf(app.Out, "%s is now %s\n", args[0], role.ToRole(string(target)).Label())
			return nil
		},
	}
}

func rolesMoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "move EMAIL ROLE",
		Short: "Move a user to another role group",
		Long:  "Move a user to another role group. Moving a user onto their current role does nothing.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := role.ParseRole(args[1])
			if err != nil {
				return err
			}

			wf, err := app.openWorkflow(cmd.Context())
			if err != nil {
				return err
			}
			defer wf.Close()

			p, err := wf.BeginDrag(args[0])
			if err != nil {
				return err
			}
			if err := wf.Drop(cmd.Context(), p, target); err != nil {
				return visible(wf, err)
			}
			fmt.Fprintf(app.Out, "%s is now %s\n", p.Email, target.Label())
			return nil
		},
	}
}

var resolved = map[workflow.Decision]string{
	workflow.Approve: "approved",
	workflow.Reject:  "rejected",
}

func rolesResolveCmd(app *App, use string, decision workflow.Decision) *cobra.Command {
	return &cobra.Command{
		Use:   use + " EMAIL",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a pending role request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := app.openWorkflow(cmd.Context())
			if err != nil {
				return err
			}
			defer wf.Close()

			if err := wf.ResolveEscalation(cmd.Context(), args[0], decision); err != nil {
				return visible(wf, err)
			}
			fmt.Fprintf(app.Out, "Request of %s %s\n", args[0], resolved[decision])
			return nil
		},
	}
}
