package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(g *Globals, opts ...Option) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := NewEnv(g, append(opts, WithOutput(cmd.OutOrStdout()))...)
			if err != nil {
				return err
			}
			defer env.Close()

			return runLogout(cmd.Context(), env)
		},
	}
}

func runLogout(ctx context.Context, env *Env) error {
	if err := env.client.Logout(); err != nil {
		return fmt.Errorf("failed to remove session token: %w", err)
	}

	// The guard now sends every protected page to the login route
	loc, err := env.router.Replace(ctx, env.router.Current().FullPath())
	if err != nil {
		return err
	}

	env.printf("✓ Logged out\n")
	env.printf("  Current page: %s\n", loc.FullPath())
	return nil
}
