package cmd

import (
	"fmt"

	"integctl/internal/app"
	"integctl/internal/spec"

	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the project of an application without building it",
		Long: `Generates the project described by an application description into
the configured application location and prints its directory. Useful to
inspect what run would build.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := spec.Load(file)
			if err != nil {
				return err
			}
			application, err := app.NewApplication(app.NewConfig(rootDebug, rootConfigPath))
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			ctx, stop := signalContext(cmd)
			defer stop()
			dir, err := application.Generate(ctx, s)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Application description (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
