package cmd

import (
	"context"
	"fmt"
	"os"

	"integctl/internal/cli"

	"github.com/spf13/cobra"
)

type appsOptions struct {
	endpoint string
	output   string
}

func newAppsCmd() *cobra.Command {
	opts := &appsOptions{}
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Inspect and control the applications of a running integctl server",
		Long: `Talks to a server started with 'integctl serve' through its MCP tools.

Examples:
  integctl apps list
  integctl apps status demo -o yaml
  integctl apps logs demo --tail 50
  integctl apps provision -f app.yaml`,
	}
	cmd.PersistentFlags().StringVar(&opts.endpoint, "endpoint", cli.DefaultEndpoint, "Base URL of the integctl server")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", string(cli.OutputFormatTable), "Output format: table, json or yaml")

	var tail int
	logsCmd := &cobra.Command{
		Use:   "logs <name>",
		Short: "Print the captured log of an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExecutor(cmd, opts, func(ctx context.Context, e *cli.ToolExecutor) error {
				return e.Logs(ctx, args[0], tail)
			})
		},
	}
	logsCmd.Flags().IntVar(&tail, "tail", 0, "Only print the last N lines")

	var file string
	provisionCmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision an application on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			return withExecutor(cmd, opts, func(ctx context.Context, e *cli.ToolExecutor) error {
				return e.Provision(ctx, string(data))
			})
		},
	}
	provisionCmd.Flags().StringVarP(&file, "file", "f", "", "Application description (YAML)")
	_ = provisionCmd.MarkFlagRequired("file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the applications of the server session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withExecutor(cmd, opts, func(ctx context.Context, e *cli.ToolExecutor) error {
					return e.List(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "status <name>",
			Short: "Show the state, endpoint and step durations of an application",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withExecutor(cmd, opts, func(ctx context.Context, e *cli.ToolExecutor) error {
					return e.Status(ctx, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "endpoint <name>",
			Short: "Print the address of a ready application",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withExecutor(cmd, opts, func(ctx context.Context, e *cli.ToolExecutor) error {
					return e.Endpoint(ctx, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "teardown <name>",
			Short: "Tear an application of the server session down",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withExecutor(cmd, opts, func(ctx context.Context, e *cli.ToolExecutor) error {
					return e.Teardown(ctx, args[0])
				})
			},
		},
		logsCmd,
		provisionCmd,
	)
	return cmd
}

func withExecutor(cmd *cobra.Command, opts *appsOptions, fn func(context.Context, *cli.ToolExecutor) error) error {
	format, err := cli.ParseOutputFormat(opts.output)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	e := cli.NewToolExecutor(cli.ExecutorOptions{
		Endpoint: opts.endpoint,
		Format:   format,
		Out:      cmd.OutOrStdout(),
	})
	if err := e.Connect(ctx); err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}
