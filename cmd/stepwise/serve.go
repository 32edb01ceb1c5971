package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aretw0/stepwise/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the chain API over HTTP. Chains run in the background and can be
followed over Server-Sent Events. Prometheus metrics are served at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		// Cancelled on SIGINT/SIGTERM; Serve shuts down gracefully.
		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		return cli.Serve(ctx, cli.ServeOptions{Options: commonOptions(cmd), Port: port})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default from config, 8080)")
}
