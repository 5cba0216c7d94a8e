package commands

import (
	"context"

	"github.com/spf13/cobra"
)

// NewNavigateCmd creates the navigate command
func NewNavigateCmd(g *Globals, opts ...Option) *cobra.Command {
	return &cobra.Command{
		Use:   "navigate PATH",
		Short: "Move to a page, running the sign-in guard",
		Long: `Move to a page the way the web UI does.

Pages other than /login need a stored session token; without one the
navigation ends on the login page with the requested page as its redirect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := NewEnv(g, append(opts, WithOutput(cmd.OutOrStdout()))...)
			if err != nil {
				return err
			}
			defer env.Close()

			return runNavigate(cmd.Context(), env, args[0])
		},
	}
}

func runNavigate(ctx context.Context, env *Env, path string) error {
	loc, err := env.router.Push(ctx, path)
	if err != nil {
		return err
	}

	if loc.Name != "" {
		env.printf("%s (%s)\n", loc.FullPath(), loc.Name)
	} else {
		env.printf("%s\n", loc.FullPath())
	}
	return nil
}
