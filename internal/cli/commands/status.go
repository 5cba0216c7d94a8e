package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pt-nexus/webgate/internal/auth"
	"github.com/pt-nexus/webgate/internal/client"
	"github.com/pt-nexus/webgate/internal/storage"
)

// NewStatusCmd creates the status command
func NewStatusCmd(g *Globals, opts ...Option) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session and the backend's view of the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := NewEnv(g, append(opts, WithOutput(cmd.OutOrStdout()))...)
			if err != nil {
				return err
			}
			defer env.Close()

			return runStatus(cmd.Context(), env)
		},
	}
}

func runStatus(ctx context.Context, env *Env) error {
	env.printf("Server:  %s\n", env.serverURL)
	env.printf("Page:    %s\n", env.router.Current().FullPath())

	token, err := storage.LoadToken(env.store)
	if err != nil {
		return fmt.Errorf("failed to read session token: %w", err)
	}
	if token == "" {
		env.printf("Session: signed out\n")
		return nil
	}

	if info, err := auth.Inspect(token); err == nil && !info.ExpiresAt.IsZero() {
		state := "valid"
		if info.Expired(time.Now()) {
			state = "expired"
		}
		env.printf("Session: %s (expires %s)\n", state, info.ExpiresAt.Format(time.RFC3339))
	} else {
		env.printf("Session: token stored\n")
	}

	status, err := env.client.Status(ctx)
	if err != nil {
		var respErr *client.ResponseError
		if errors.As(err, &respErr) {
			env.printf("Backend: %s\n", respErr.Message())
			return nil
		}
		return fmt.Errorf("failed to query auth status: %w", err)
	}

	env.printf("User:    %s\n", status.Username)
	if status.MustChangePassword {
		env.printf("         password change required (run 'webgate change-password')\n")
	}
	return nil
}
