package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pt-nexus/webgate/internal/cli/commands"
	"github.com/pt-nexus/webgate/internal/logger"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the webgate command tree. opts are handed to every
// session-backed command.
func NewRootCmd(opts ...commands.Option) *cobra.Command {
	globals := &commands.Globals{}

	rootCmd := &cobra.Command{
		Use:   "webgate",
		Short: "webgate - PT-Nexus web UI gateway",
		Long: `webgate serves the PT-Nexus web UI, forwards /api and /go-api to the
backends and drives the UI's session from the terminal.

The session token and current page are kept in local storage shared by every
command, so a 401 from 'request' sends the next 'login' back where it was.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// serve configures its own logger from LOG_LEVEL / LOG_FORMAT
			if cmd.Name() == "serve" {
				return
			}
			zerolog.SetGlobalLevel(logger.ParseLevel(globals.LogLevel))
			logger.Logger = logger.New(os.Stderr, "console")
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globals.Server, "server", "", "Gateway base URL (or set WEBGATE_SERVER)")
	flags.StringVar(&globals.Storage, "storage", "", "Session storage backend: file, sqlite, keyring or memory")
	flags.StringVar(&globals.StoragePath, "storage-path", "", "Path used by the file and sqlite storage backends")
	flags.StringVar(&globals.LogLevel, "log-level", "warn", "Log level for client commands")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "webgate version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewServeCmd(version))
	rootCmd.AddCommand(commands.NewLoginCmd(globals, opts...))
	rootCmd.AddCommand(commands.NewLogoutCmd(globals, opts...))
	rootCmd.AddCommand(commands.NewChangePasswordCmd(globals, opts...))
	rootCmd.AddCommand(commands.NewStatusCmd(globals, opts...))
	rootCmd.AddCommand(commands.NewRequestCmd(globals, opts...))
	rootCmd.AddCommand(commands.NewNavigateCmd(globals, opts...))
	rootCmd.AddCommand(commands.NewRoutesCmd())
	rootCmd.AddCommand(commands.NewSelectTargetCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
