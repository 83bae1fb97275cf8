package cmd

import (
	"fmt"

	"integctl/internal/app"

	"github.com/spf13/cobra"
)

type serveOptions struct {
	host   string
	port   int
	unique bool
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose application lifecycles as MCP tools",
		Long: `Starts an MCP server (SSE transport) whose tools provision, inspect and
tear down applications, plus a Prometheus /metrics endpoint.

Every application still running when the server stops is torn down.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.NewConfig(rootDebug, rootConfigPath)
			cfg.Unique = opts.unique
			cfg.Quiet = true
			application, err := app.NewApplication(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			ctx, stop := signalContext(cmd)
			defer stop()
			return application.Serve(ctx, app.ServeOptions{
				Host:    opts.host,
				Port:    opts.port,
				Version: rootCmd.Version,
			})
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "localhost", "Address to listen on")
	cmd.Flags().IntVar(&opts.port, "port", 8090, "Port to listen on")
	cmd.Flags().BoolVar(&opts.unique, "unique", true, "Append a random suffix to provisioned application names")
	return cmd
}
