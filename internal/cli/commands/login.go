package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pt-nexus/webgate/internal/router"
)

// NewLoginCmd creates the login command
func NewLoginCmd(g *Globals, opts ...Option) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the PT-Nexus backend",
		Long: `Authenticate with the PT-Nexus backend and store the session token.

If the last command was sent to the login page by an authorization failure,
login returns to the page it was sent from.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := NewEnv(g, append(opts, WithOutput(cmd.OutOrStdout()))...)
			if err != nil {
				return err
			}
			defer env.Close()

			return runLogin(cmd.Context(), env, username, password)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username (or set WEBGATE_USERNAME)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set WEBGATE_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(ctx context.Context, env *Env, username, password string) error {
	// Check for environment variables (useful for CI/CD)
	if username == "" {
		username = os.Getenv("WEBGATE_USERNAME")
	}
	if username == "" {
		return fmt.Errorf("username is required (use --username flag or WEBGATE_USERNAME env var)")
	}

	password, err := readSecret(env, password, "WEBGATE_PASSWORD", "Password", "password")
	if err != nil {
		return err
	}

	env.printf("Logging in to %s...\n", env.serverURL)

	resp, err := env.client.Login(ctx, username, password)
	if err != nil {
		return err
	}

	env.printf("✓ Login successful!\n")
	env.printf("  User: %s\n", username)
	if resp.MustChangePassword {
		env.printf("  You are using a temporary password. Run 'webgate change-password' before continuing.\n")
	}

	current := env.router.Current()
	if current.Path != router.LoginPath {
		return nil
	}

	target := current.RedirectTarget()
	if target == "" {
		target = "/"
	}
	loc, err := env.router.Replace(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to return to %s: %w", target, err)
	}
	env.printf("  Returned to %s\n", loc.FullPath())
	return nil
}
