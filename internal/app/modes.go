package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"integctl/internal/deploy"
	"integctl/internal/lifecycle"
	"integctl/internal/mcpserver"
	"integctl/internal/spec"
	"integctl/pkg/logging"
)

// teardownTimeout bounds cleanup after the session context is gone.
const teardownTimeout = 5 * time.Minute

// holdCheckInterval is how often a held application is checked for failure.
var holdCheckInterval = 10 * time.Second

// ErrNoCluster is returned by commands that need a cluster connection.
var ErrNoCluster = lifecycle.ErrNoCluster

// Run provisions s, reports its endpoint and tears it down again. With Hold
// set, a ready application keeps running until ctx is cancelled or it fails.
func (a *Application) Run(ctx context.Context, s spec.ApplicationSpec) error {
	if a.config.Unique {
		s = s.WithUniqueName()
	}

	app, err := a.services.Session.Provision(ctx, s)
	if app != nil {
		defer a.teardown(app)
	}
	if err != nil {
		return err
	}
	if !s.ShouldRun() {
		logging.Info("CLI", "Application %s is built in %s", app.Name(), app.ProjectDir())
		return nil
	}

	addr, err := app.Endpoint(ctx)
	if err != nil {
		logging.Warn("CLI", "Application %s is ready but its endpoint cannot be resolved: %v", app.Name(), err)
	} else {
		logging.Info("CLI", "Application %s is ready at %s", app.Name(), addr)
	}

	if a.config.Hold {
		return hold(ctx, app)
	}
	return nil
}

// hold blocks until ctx is done or the application fails.
func hold(ctx context.Context, app *lifecycle.Application) error {
	logging.Info("CLI", "Holding %s. Press Ctrl+C to tear it down and exit.", app.Name())
	ticker := time.NewTicker(holdCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if app.IsFailed(ctx) {
				return app.Err()
			}
		}
	}
}

// teardown uses a fresh context: the session context is usually cancelled
// by the time cleanup runs.
func (a *Application) teardown(app *lifecycle.Application) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	app.Teardown(ctx)
}

// Generate only generates the project of s and returns its directory.
func (a *Application) Generate(ctx context.Context, s spec.ApplicationSpec) (string, error) {
	if s.ExistingArtifact != "" {
		return "", errors.New("nothing to generate for an existing artifact")
	}
	app, err := a.services.Session.Create(s)
	if err != nil {
		return "", err
	}
	if err := app.Generate(ctx); err != nil {
		return "", err
	}
	return app.ProjectDir(), nil
}

// TeardownRemote deletes every resource labelled with name from the
// cluster, e.g. after an interrupted session.
func (a *Application) TeardownRemote(ctx context.Context, name string) error {
	if a.services.Cluster == nil {
		return ErrNoCluster
	}
	ic := a.config.IntegctlConfig
	remote := deploy.NewRemote(deploy.RemoteConfig{AppLocation: ic.Global.AppLocation}, a.services.Cluster, nil)
	report := remote.TeardownByName(ctx, name)
	logging.Info("CLI", "Deleted %d resources of %s in %s", report.Deleted(), name, report.Duration.Round(time.Millisecond))
	if errs := report.Errors(); len(errs) > 0 {
		logging.Warn("CLI", "%d resource groups of %s could not be deleted completely", len(errs), name)
	}
	return nil
}

// ServeOptions configure the MCP server.
type ServeOptions struct {
	Host    string
	Port    int
	Version string
}

// Serve runs the MCP tool server until ctx is done, then tears every
// application of the session down.
func (a *Application) Serve(ctx context.Context, opts ServeOptions) error {
	tools := mcpserver.NewTools(ctx, a.services.Session, a.services.Store, a.config.Unique)
	srv := mcpserver.NewServer(mcpserver.Config{Host: opts.Host, Port: opts.Port, Version: opts.Version}, tools, a.services.Metrics.Handler())
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start MCP server: %w", err)
	}

	<-ctx.Done()
	logging.Info("CLI", "Shutting down")

	cleanupCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := srv.Stop(cleanupCtx); err != nil {
		logging.Warn("CLI", "Error stopping MCP server: %v", err)
	}
	a.services.Session.Close(cleanupCtx)
	return nil
}
