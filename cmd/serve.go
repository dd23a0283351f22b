package cmd

import (
	"github.com/spf13/cobra"
)

// newServeCmd creates the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the cached archive and feed API over HTTP",
		Long: `Starts an HTTP server exposing the cached feed (/api/feed), a refresh
trigger (/api/refresh), Prometheus metrics (/metrics) and the archive
itself as static files for offline browsing. The server drains and shuts
down cleanly on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return appInstance.Run(cmd.Context())
		},
	}
}
