package app

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"

	"integctl/internal/build"
	"integctl/internal/cluster"
	"integctl/internal/generator"
	"integctl/internal/lifecycle"
	"integctl/internal/metrics"
	"integctl/internal/process"
	"integctl/internal/reporting"
	"integctl/pkg/logging"
)

// Services holds everything a command needs to drive applications.
type Services struct {
	Factory      *lifecycle.Factory
	Session      *lifecycle.Session
	Store        *reporting.StateStore
	Metrics      *metrics.Recorder
	Capabilities generator.Capabilities
	// Cluster is nil when no cluster connection could be set up.
	Cluster cluster.API
}

// InitializeServices wires generator, build tools, cluster client and
// reporting into a session.
func InitializeServices(cfg *Config) (*Services, error) {
	ic := cfg.IntegctlConfig
	appLocation, err := filepath.Abs(ic.Global.AppLocation)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve application location: %w", err)
	}
	ic.Global.AppLocation = appLocation

	caps := generator.ProbeScript(ic.Script.Name)
	if caps.ScriptAvailable {
		logging.Debug("Bootstrap", "Found generator script %s at %s", caps.ScriptName, caps.ScriptPath)
	}

	maven := &build.Maven{
		Command:    ic.Build.Command,
		BatchMode:  ic.Build.BatchMode,
		Properties: ic.Build.Properties,
	}
	script := &build.Script{Command: caps.ScriptPath}

	gen := generator.New(generator.Config{
		AppLocation:  appLocation,
		GroupID:      ic.Global.AppGroupID,
		Version:      ic.Global.AppVersion,
		Quarkus:      ic.Quarkus,
		SpringBoot:   ic.SpringBoot,
		Capabilities: caps,
	}, osfs.New(appLocation), maven, script)

	var api cluster.API
	client, err := cluster.NewFromConfig(ic.OpenShift)
	switch {
	case err == nil:
		api = client
	case cfg.RequireCluster:
		return nil, fmt.Errorf("failed to connect to the OpenShift cluster: %w", err)
	default:
		logging.Debug("Bootstrap", "No cluster connection, remote targets are unavailable: %v", err)
	}

	store := reporting.NewStateStore()
	recorder := metrics.NewRecorder()
	var console io.Writer
	if !cfg.Quiet {
		console = cfg.Output
	}

	factory := &lifecycle.Factory{
		Config:    ic,
		Cluster:   api,
		Maven:     maven,
		Generator: gen,
		Launcher:  process.ExecLauncher{},
		Reporter:  reporting.Multi(reporting.NewConsoleReporter(cfg.Output), store, recorder),
		Console:   console,
	}

	return &Services{
		Factory:      factory,
		Session:      lifecycle.NewSession(factory),
		Store:        store,
		Metrics:      recorder,
		Capabilities: caps,
		Cluster:      api,
	}, nil
}
