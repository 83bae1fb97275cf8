package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"integctl/internal/app"
	"integctl/internal/spec"

	"github.com/spf13/cobra"
)

type runOptions struct {
	file   string
	target string
	hold   bool
	unique bool
	quiet  bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Provision an application, wait until it is ready and tear it down",
		Long: `Reads an application description, generates and builds the project,
deploys it to the selected target and waits until it is ready.

The application is torn down when the command exits. With --hold a ready
application keeps running until Ctrl+C is pressed or it fails. Its log is
saved next to the generated project in either case.

Example:
  integctl run -f app.yaml --target openshift --unique`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Application description (YAML)")
	cmd.Flags().StringVar(&opts.target, "target", "", "Deployment target: local or openshift (default from configuration)")
	cmd.Flags().BoolVar(&opts.hold, "hold", false, "Keep the ready application running until interrupted")
	cmd.Flags().BoolVar(&opts.unique, "unique", false, "Append a random suffix to the application name")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "Do not echo build and application output")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runRun(cmd *cobra.Command, opts *runOptions) error {
	s, err := spec.Load(opts.file)
	if err != nil {
		return err
	}

	cfg := app.NewConfig(rootDebug, rootConfigPath)
	cfg.Hold = opts.hold
	cfg.Unique = opts.unique
	cfg.Quiet = opts.quiet
	if cfg.Target, err = parseTarget(opts.target); err != nil {
		return err
	}
	if s.Target.IsRemote() || cfg.Target.IsRemote() {
		cfg.RequireCluster = true
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	return application.Run(ctx, s)
}

func parseTarget(value string) (spec.Target, error) {
	switch t := spec.Target(value); t {
	case "", spec.TargetLocal, spec.TargetOpenShift:
		return t, nil
	default:
		return "", fmt.Errorf("unknown target %q, expected %q or %q", value, spec.TargetLocal, spec.TargetOpenShift)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM so that long running
// commands can tear their applications down before exiting.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
