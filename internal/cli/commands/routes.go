package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pt-nexus/webgate/internal/router"
)

// NewRoutesCmd creates the routes command
func NewRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the web UI routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutes(cmd.OutOrStdout(), router.NewTable(router.DefaultRoutes()))
		},
	}
}

func runRoutes(out io.Writer, table *router.Table) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PATH\tNAME\tREDIRECT")
	for _, r := range table.Routes() {
		name, redirect := r.Name, r.Redirect
		if name == "" {
			name = "-"
		}
		if redirect == "" {
			redirect = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Path, name, redirect)
	}
	return w.Flush()
}
