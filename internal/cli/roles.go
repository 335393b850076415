package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FACorreiaa/citcs-portal/internal/app/models"
)

func newRolesCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Grant, revoke and list user roles",
	}
	cmd.AddCommand(newGrantCommand(open), newRevokeCommand(open), newListCommand(open))
	return cmd
}

func newGrantCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <display-name-or-user-id> <super_admin|admin|editor>",
		Short: "Give a user a role, replacing any role they hold",
		Example: `  portalctl roles grant "Jane Cruz" super_admin
  portalctl roles grant 3f0c9a52-0d2e-4b7a-9d55-7e1f2c3b4a5d admin`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := models.ParseRole(args[1])
			if err != nil {
				return err
			}

			env, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer env.Close()

			profile, err := env.Resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("resolve %q: %w", args[0], err)
			}
			if err := env.Roles.GrantRole(cmd.Context(), profile.UserID, role); err != nil {
				return err
			}
			announce(cmd, env, profile.UserID)

			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now %s.\n", profile.DisplayName, profile.UserID, role.Label())
			return nil
		},
	}
}

func newRevokeCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <display-name-or-user-id>",
		Short: "Remove every role a user holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer env.Close()

			profile, err := env.Resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("resolve %q: %w", args[0], err)
			}
			n, err := env.Roles.RevokeUser(cmd.Context(), profile.UserID)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s had no role.\n", profile.DisplayName)
				return nil
			}
			announce(cmd, env, profile.UserID)

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d role(s) from %s.\n", n, profile.DisplayName)
			return nil
		},
	}
}

func newListCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every role row, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer env.Close()

			rows, err := env.Roles.SelectAllRoles(cmd.Context())
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No roles assigned.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USER ID\tROLE\tSINCE")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.UserID, r.Role, r.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
}

// announce lets running servers refresh the user's sessions. The change is
// already committed, so failures are only logged.
func announce(cmd *cobra.Command, env *Env, userID string) {
	if env.Broadcaster == nil {
		return
	}
	if err := env.Broadcaster.PublishRoleChange(cmd.Context(), userID); err != nil {
		env.Logger.Warn("Failed to broadcast role change", zap.String("user_id", userID), zap.Error(err))
	}
}
