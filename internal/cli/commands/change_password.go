package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewChangePasswordCmd creates the change-password command
func NewChangePasswordCmd(g *Globals, opts ...Option) *cobra.Command {
	var username, oldPassword, newPassword string

	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Replace the account password",
		Long: `Replace the account password, for example the temporary one the backend
hands out on first start. Requires a stored session token.

The username defaults to WEBGATE_USERNAME, then to the account the backend
reports for the current session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := NewEnv(g, append(opts, WithOutput(cmd.OutOrStdout()))...)
			if err != nil {
				return err
			}
			defer env.Close()

			return runChangePassword(cmd.Context(), env, username, oldPassword, newPassword)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username to set (or set WEBGATE_USERNAME)")
	cmd.Flags().StringVar(&oldPassword, "old-password", "", "Current password (or set WEBGATE_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&newPassword, "new-password", "", "New password, at least 6 characters (or set WEBGATE_NEW_PASSWORD, will prompt if not provided)")

	return cmd
}

func runChangePassword(ctx context.Context, env *Env, username, oldPassword, newPassword string) error {
	if username == "" {
		username = os.Getenv("WEBGATE_USERNAME")
	}
	if username == "" {
		status, err := env.client.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to look up the current user (use --username flag or WEBGATE_USERNAME env var): %w", err)
		}
		username = status.Username
	}

	oldPassword, err := readSecret(env, oldPassword, "WEBGATE_PASSWORD", "Current password", "old-password")
	if err != nil {
		return err
	}
	newPassword, err = readSecret(env, newPassword, "WEBGATE_NEW_PASSWORD", "New password", "new-password")
	if err != nil {
		return err
	}

	if err := env.client.ChangePassword(ctx, username, oldPassword, newPassword); err != nil {
		return err
	}

	env.printf("✓ Password changed for %s\n", username)
	return nil
}
