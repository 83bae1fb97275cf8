package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"

	"integctl/internal/build"
	"integctl/internal/cluster"
	"integctl/internal/config"
	"integctl/internal/deploy"
	"integctl/internal/process"
	"integctl/internal/reporting"
	"integctl/internal/spec"
	"integctl/internal/wait"
	"integctl/pkg/logging"
)

// ErrNoCluster is returned for remote applications when no cluster is
// configured.
var ErrNoCluster = errors.New("no OpenShift cluster configured")

// Factory assembles applications from specs and the session configuration.
type Factory struct {
	Config *config.IntegctlConfig
	// Cluster may be nil when only local targets are used.
	Cluster   cluster.API
	Maven     build.Invoker
	Generator ProjectGenerator
	Launcher  process.Launcher
	Reporter  reporting.Reporter
	Console   io.Writer
	Poller    wait.Poller
}

// NewApplication creates the application described by s. The target
// defaults to the configured one.
func (f *Factory) NewApplication(s spec.ApplicationSpec) (*Application, error) {
	s = s.WithDefaults(f.Config.Global.Target)
	target, err := f.Target(s)
	if err != nil {
		return nil, fmt.Errorf("application %q: %w", s.Name, err)
	}
	return New(s, Options{
		AppLocation:       f.Config.Global.AppLocation,
		Native:            f.Config.Quarkus.Native,
		QuarkusProperties: f.Config.Quarkus.Properties,
		Generator:         f.Generator,
		Builder:           f.Maven,
		Target:            target,
		Reporter:          f.Reporter,
		Console:           f.Console,
		Poller:            f.Poller,
	})
}

// Target creates the deployment target for s.
func (f *Factory) Target(s spec.ApplicationSpec) (deploy.Target, error) {
	cfg := f.Config
	switch s.Target {
	case spec.TargetOpenShift:
		if f.Cluster == nil {
			return nil, ErrNoCluster
		}
		return deploy.NewRemote(deploy.RemoteConfig{
			AppLocation:       cfg.Global.AppLocation,
			Native:            cfg.Quarkus.Native,
			QuarkusProperties: cfg.Quarkus.Properties,
			Policy:            cfg.Wait.Remote,
		}, f.Cluster, f.Maven), nil
	case spec.TargetLocal:
		port := cfg.Local.Port
		if port == 0 {
			free, err := freePort()
			if err != nil {
				return nil, fmt.Errorf("failed to find a free port: %w", err)
			}
			port = free
		}
		return deploy.NewLocal(deploy.LocalConfig{
			JavaCommand:    cfg.Local.JavaCommand,
			Port:           port,
			StopTimeout:    cfg.Local.StopTimeout,
			CleanArtifacts: cfg.Local.CleanArtifacts,
			AppVersion:     cfg.Global.AppVersion,
			Native:         cfg.Quarkus.Native,
			Policy:         cfg.Wait.Local,
		}, f.Launcher), nil
	default:
		return nil, fmt.Errorf("unknown target %q", s.Target)
	}
}

// freePort asks the kernel for an unused local port.
func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// Session owns the applications of one test run. Application names are
// unique within a session.
type Session struct {
	factory *Factory

	mu   sync.RWMutex
	apps map[string]*Application
}

// NewSession creates an empty session.
func NewSession(factory *Factory) *Session {
	return &Session{factory: factory, apps: make(map[string]*Application)}
}

// Create registers a new application. A name still in use by an application
// that was not torn down is rejected.
func (s *Session) Create(sp spec.ApplicationSpec) (*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.apps[sp.Name]; ok && existing.State() != StateTornDown {
		return nil, fmt.Errorf("application %q already exists in state %s", sp.Name, existing.State())
	}
	app, err := s.factory.NewApplication(sp)
	if err != nil {
		return nil, err
	}
	s.apps[sp.Name] = app
	return app, nil
}

// Provision creates the application and starts it. The application is
// returned even when starting fails, so the caller can inspect and tear it
// down.
func (s *Session) Provision(ctx context.Context, sp spec.ApplicationSpec) (*Application, error) {
	app, err := s.Create(sp)
	if err != nil {
		return nil, err
	}
	return app, app.Start(ctx)
}

// Get returns the application called name.
func (s *Session) Get(name string) (*Application, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[name]
	return app, ok
}

// List returns the session's applications ordered by name.
func (s *Session) List() []*Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	apps := make([]*Application, 0, len(s.apps))
	for _, app := range s.apps {
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name() < apps[j].Name() })
	return apps
}

// Teardown tears the named application down.
func (s *Session) Teardown(ctx context.Context, name string) error {
	app, ok := s.Get(name)
	if !ok {
		return fmt.Errorf("application %q not found", name)
	}
	app.Teardown(ctx)
	return nil
}

// Close tears every application down concurrently and waits for all of them.
func (s *Session) Close(ctx context.Context) {
	apps := s.List()
	if len(apps) == 0 {
		return
	}
	logging.Info("Lifecycle", "Tearing down %d application(s)", len(apps))
	var wg sync.WaitGroup
	for _, app := range apps {
		wg.Add(1)
		go func(app *Application) {
			defer wg.Done()
			app.Teardown(ctx)
		}(app)
	}
	wg.Wait()
}
