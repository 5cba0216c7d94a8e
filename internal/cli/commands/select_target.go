package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pt-nexus/webgate/internal/cli/targetselect"
	"github.com/pt-nexus/webgate/internal/cli/userconfig"
)

// NewSelectTargetCmd creates the select-target command
func NewSelectTargetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select-target [dev|default]",
		Short: "Select the backend profile the gateway forwards /api to",
		Long: `Select the backend profile the gateway forwards /api to.

If no param is provided, an interactive prompt will be shown.

Examples:
  $ webgate select-target          # Interactive selection
  $ webgate select-target dev      # Forward /api to the dev backend`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			if len(args) > 0 {
				target = args[0]
			}
			return runSelectTarget(cmd.OutOrStdout(), target)
		},
	}

	return cmd
}

func runSelectTarget(out io.Writer, target string) error {
	var err error

	if target != "" {
		target, err = targetselect.Validate(target)
		if err != nil {
			return err
		}
	} else {
		current, err := userconfig.GetProxyTarget()
		if err != nil {
			return err
		}
		target, err = targetselect.PromptTargetSelection(current)
		if err != nil {
			return err
		}
	}

	if err := userconfig.SetProxyTarget(target); err != nil {
		return fmt.Errorf("failed to save selected target: %w", err)
	}

	fmt.Fprintf(out, "Selected proxy target: %s\n", target)
	return nil
}
