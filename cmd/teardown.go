package cmd

import (
	"fmt"

	"integctl/internal/app"

	"github.com/spf13/cobra"
)

func newTeardownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "teardown <name>",
		Short: "Delete the cluster resources left behind by an application",
		Long: `Deletes every OpenShift resource labelled with the given application
name from the current namespace. Use it to clean up after a session that
was killed before it could tear its applications down.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.NewConfig(rootDebug, rootConfigPath)
			cfg.RequireCluster = true
			application, err := app.NewApplication(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			ctx, stop := signalContext(cmd)
			defer stop()
			return application.TeardownRemote(ctx, args[0])
		},
	}
}
