// Package lifecycle drives one application through generate, build, deploy
// and wait, and guarantees a single teardown at the end.
//
//	Created -> Generated -> Built -> Deploying -> Ready
//
// Failed is reachable from every state after Built and TornDown from every
// state.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"integctl/internal/apperrors"
	"integctl/internal/build"
	"integctl/internal/deploy"
	"integctl/internal/generator"
	"integctl/internal/logs"
	"integctl/internal/reporting"
	"integctl/internal/spec"
	"integctl/internal/wait"
	"integctl/pkg/logging"
)

// Lifecycle steps, used in updates and metrics.
const (
	StepGenerate = "generate"
	StepBuild    = "build"
	StepDeploy   = "deploy"
	StepWait     = "wait"
	StepTeardown = "teardown"
)

// ProjectGenerator produces project directories.
type ProjectGenerator interface {
	Generate(ctx context.Context, s spec.ApplicationSpec) (generator.Project, error)
}

// Options wires an Application to its collaborators.
type Options struct {
	AppLocation string
	// Native selects the native Quarkus build.
	Native bool
	// QuarkusProperties are added to Quarkus package builds.
	QuarkusProperties map[string]string

	Generator ProjectGenerator
	Builder   build.Invoker
	Target    deploy.Target
	Reporter  reporting.Reporter
	// Console receives a live copy of the application's output. May be nil.
	Console io.Writer
	Poller  wait.Poller
}

// Application is one ephemeral application and everything it owns: the
// project directory, the endpoint and the log handle.
type Application struct {
	spec     spec.ApplicationSpec
	opts     Options
	target   deploy.Target
	reporter reporting.Reporter
	logs     *logs.Handle

	mu         sync.Mutex
	state      State
	projectDir string
	endpoint   deploy.Endpoint
	address    string
	err        error
	failure    string
	closing    bool

	// stopped is cancelled by Teardown and ends every running step.
	stopped context.Context
	stop    context.CancelFunc

	teardownOnce sync.Once
}

// New creates an application in state Created.
func New(s spec.ApplicationSpec, opts Options) (*Application, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid application %q: %w", s.Name, err)
	}
	if opts.Target == nil {
		return nil, errors.New("no deployment target configured")
	}
	if s.ExistingArtifact == "" && (opts.Generator == nil || opts.Builder == nil) {
		return nil, fmt.Errorf("application %q needs a generator and a builder", s.Name)
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = reporting.Nop
	}

	a := &Application{
		spec:     s,
		opts:     opts,
		target:   opts.Target,
		reporter: reporter,
		logs:     logs.NewHandle(s.Name, opts.Console),
		state:    StateCreated,
	}
	a.stopped, a.stop = context.WithCancel(context.Background())
	a.reporter.Report(reporting.Update{
		Timestamp: time.Now(),
		App:       s.Name,
		Target:    string(opts.Target.Kind()),
		State:     StateCreated,
	})
	return a, nil
}

// Name returns the application name, the uniqueness key of every resource.
func (a *Application) Name() string {
	return a.spec.Name
}

// Spec returns the immutable description the application was created from.
func (a *Application) Spec() spec.ApplicationSpec {
	return a.spec
}

// State returns the current state.
func (a *Application) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// ProjectDir returns the generated project directory, empty before Generate
// or when an existing artifact is used.
func (a *Application) ProjectDir() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.projectDir
}

// Err returns the error that stopped the lifecycle, if any.
func (a *Application) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// FailureReason returns why the application was declared failed.
func (a *Application) FailureReason() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failure
}

// Logs returns the application's log handle.
func (a *Application) Logs() *logs.Handle {
	return a.logs
}

// LogText returns the accumulated application log.
func (a *Application) LogText(ctx context.Context) string {
	return a.logs.Text(ctx)
}

// Generate produces the project. It is skipped for an existing artifact.
func (a *Application) Generate(ctx context.Context) error {
	if err := a.expect(StepGenerate, StateCreated); err != nil {
		return err
	}
	ctx, cancel := a.scoped(ctx)
	defer cancel()
	started := time.Now()
	if a.spec.ExistingArtifact != "" {
		logging.Info("Lifecycle", "Using existing artifact %s for %s, skipping generation", a.spec.ExistingArtifact, a.spec.Name)
		a.advance(StepGenerate, StateGenerated, started)
		return nil
	}

	project, err := a.opts.Generator.Generate(ctx, a.spec)
	if err != nil {
		return a.stepFailed(StepGenerate, started, classify(apperrors.KindGeneration, a.spec.Name, StepGenerate, err))
	}
	a.mu.Lock()
	a.projectDir = project.Dir
	a.mu.Unlock()
	a.advance(StepGenerate, StateGenerated, started)
	return nil
}

// PackageRequest is the build that produces the runnable artifact.
func (a *Application) PackageRequest() build.Request {
	req := build.Request{
		WorkDir:    a.ProjectDir(),
		Goals:      []string{"clean", "package"},
		Properties: map[string]string{"skipTests": "true"},
		LogFile:    logs.PhaseLogPath(a.opts.AppLocation, a.spec.Name, logs.PhaseBuild),
		Marker:     logs.NewMarker(a.spec.Name, logs.PhaseBuild),
		Output:     a.logs.Sink(),
	}
	if a.spec.Runtime == spec.RuntimeQuarkus {
		req.Properties["quarkus.native.container-build"] = "true"
		for k, v := range a.opts.QuarkusProperties {
			req.Properties[k] = v
		}
		// Remote native images are built by the deploy build.
		if a.opts.Native && !a.spec.Target.IsRemote() {
			req.Profiles = []string{"native"}
		}
	}
	return req
}

// Build packages the project. It is skipped for an existing artifact.
func (a *Application) Build(ctx context.Context) error {
	if err := a.expect(StepBuild, StateGenerated); err != nil {
		return err
	}
	ctx, cancel := a.scoped(ctx)
	defer cancel()
	started := time.Now()
	if a.spec.ExistingArtifact != "" {
		a.advance(StepBuild, StateBuilt, started)
		return nil
	}

	if _, err := a.opts.Builder.Invoke(ctx, a.PackageRequest()); err != nil {
		return a.stepFailed(StepBuild, started, classify(apperrors.KindBuild, a.spec.Name, StepBuild, err))
	}
	a.advance(StepBuild, StateBuilt, started)
	return nil
}

// Deploy hands the built application to the target. A failed deployment
// leaves the application Failed. When a teardown ran while the target was
// deploying, whatever the deployment created afterwards is torn down again.
func (a *Application) Deploy(ctx context.Context) error {
	if err := a.expect(StepDeploy, StateBuilt); err != nil {
		return err
	}
	started := time.Now()
	a.advance(StepDeploy, StateDeploying, started)

	deployCtx, cancel := a.scoped(ctx)
	endpoint, err := a.target.Deploy(deployCtx, deploy.Request{
		Spec:       a.spec,
		ProjectDir: a.ProjectDir(),
		Logs:       a.logs,
	})
	cancel()
	if a.isClosing() {
		logging.Info("Lifecycle", "%s was torn down while deploying, tearing down again", a.spec.Name)
		a.target.Teardown(context.WithoutCancel(ctx))
		return apperrors.Newf(apperrors.KindDeploy, a.spec.Name, StepDeploy, "torn down while deploying")
	}
	if err != nil {
		err = classify(apperrors.KindDeploy, a.spec.Name, StepDeploy, err)
		a.mu.Lock()
		a.err = err
		a.failure = err.Error()
		a.mu.Unlock()
		a.advanceWithError(StepDeploy, StateFailed, started, err)
		return err
	}
	a.mu.Lock()
	a.endpoint = endpoint
	a.mu.Unlock()
	return nil
}

// WaitUntilReady blocks until the target reports ready, the failure
// detector reports failure, or the target's wait policy is exhausted.
// Failure pre-empts the wait: it is checked before readiness on every
// attempt.
func (a *Application) WaitUntilReady(ctx context.Context) error {
	switch a.State() {
	case StateReady:
		return nil
	case StateDeploying:
	default:
		return a.expect(StepWait, StateDeploying)
	}

	ctx, cancel := a.scoped(ctx)
	defer cancel()
	started := time.Now()
	policy := a.target.WaitPolicy()
	var failed bool
	var reason string
	err := a.opts.Poller.Until(ctx, func() bool {
		if failed, reason = a.target.Failed(ctx); failed {
			return true
		}
		return a.target.Ready(ctx)
	}, policy)

	switch {
	case errors.Is(err, wait.ErrTimeout):
		// The application stays Deploying: it never became ready but
		// nothing says it crashed either.
		return a.stepFailed(StepWait, started, apperrors.New(apperrors.KindWaitTimeout, a.spec.Name, StepWait, err))
	case err != nil:
		return a.stepFailed(StepWait, started, apperrors.New(apperrors.KindDeploy, a.spec.Name, StepWait, err))
	case failed:
		return a.markFailed(StepWait, started, reason)
	}

	a.mu.Lock()
	endpoint := a.endpoint
	a.mu.Unlock()
	address, err := endpoint.Resolve(ctx)
	if err != nil {
		logging.Debug("Lifecycle", "Ready %s has no resolvable endpoint: %v", a.spec.Name, err)
	}
	a.mu.Lock()
	a.address = address
	a.mu.Unlock()
	a.advance(StepWait, StateReady, started)
	return nil
}

// Start runs every remaining step up to Ready. An application that should
// not run stops once it is Built.
func (a *Application) Start(ctx context.Context) error {
	steps := []struct {
		from State
		run  func(context.Context) error
	}{
		{StateCreated, a.Generate},
		{StateGenerated, a.Build},
		{StateBuilt, a.Deploy},
		{StateDeploying, a.WaitUntilReady},
	}
	for _, step := range steps {
		if a.State() != step.from {
			continue
		}
		if step.from == StateBuilt && !a.spec.ShouldRun() {
			logging.Info("Lifecycle", "%s is built and not run", a.spec.Name)
			return nil
		}
		if err := step.run(ctx); err != nil {
			return err
		}
	}
	if state := a.State(); state != StateReady {
		return apperrors.Newf(apperrors.KindInvalidTransition, a.spec.Name, "start", "cannot start in state %s", state)
	}
	return nil
}

// IsFailed asks the failure detector. A positive answer moves a deploying
// or ready application to Failed. It never returns an error; probing
// problems count as not failed.
func (a *Application) IsFailed(ctx context.Context) bool {
	switch a.State() {
	case StateFailed:
		return true
	case StateDeploying, StateReady:
	default:
		return false
	}
	failed, reason := a.target.Failed(ctx)
	if failed {
		_ = a.markFailed("check", time.Now(), reason)
	}
	return failed
}

// Endpoint resolves the application's address. It fails with
// deploy.ErrEndpointUnresolved until a deployment succeeded.
func (a *Application) Endpoint(ctx context.Context) (string, error) {
	a.mu.Lock()
	endpoint := a.endpoint
	a.mu.Unlock()
	return endpoint.Resolve(ctx)
}

// Teardown releases everything the application owns, exactly once. Running
// steps are cancelled first. The log stream is stopped and the log saved
// before the target deletes the workload, since remote logs are gone with
// their instances. Errors are logged, never returned.
func (a *Application) Teardown(ctx context.Context) {
	a.teardownOnce.Do(func() {
		a.mu.Lock()
		a.closing = true
		a.mu.Unlock()
		a.stop()

		started := time.Now()
		name := a.spec.Name
		logging.Info("Lifecycle", "Tearing down %s (state %s)", name, a.State())

		a.logs.StopStream()
		path := logs.SavedLogPath(a.opts.AppLocation, name)
		if saved, err := a.logs.Save(ctx, path); err != nil {
			logging.Error("Lifecycle", apperrors.New(apperrors.KindTeardown, name, "save log", err), "Failed to save log of %s", name)
		} else if saved {
			logging.Info("Lifecycle", "Saved log of %s to %s", name, path)
		}

		a.target.Teardown(ctx)
		a.advance(StepTeardown, StateTornDown, started)
	})
}

// scoped derives a step context that Teardown cancels.
func (a *Application) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	release := context.AfterFunc(a.stopped, cancel)
	return ctx, func() {
		release()
		cancel()
	}
}

func (a *Application) isClosing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closing
}

func (a *Application) expect(step string, want State) error {
	if state := a.State(); state != want {
		return apperrors.Newf(apperrors.KindInvalidTransition, a.spec.Name, step,
			"cannot %s in state %s, expected %s", step, state, want)
	}
	return nil
}

// advance moves to the next state and reports the transition. Illegal
// transitions are dropped, so a concurrent teardown wins: a torn down
// application never leaves TornDown.
func (a *Application) advance(step string, to State, started time.Time) {
	a.advanceWithError(step, to, started, nil)
}

func (a *Application) advanceWithError(step string, to State, started time.Time, err error) {
	a.mu.Lock()
	from := a.state
	if !CanTransition(from, to) {
		a.mu.Unlock()
		logging.Debug("Lifecycle", "Ignoring transition of %s from %s to %s", a.spec.Name, from, to)
		return
	}
	a.state = to
	address := a.address
	a.mu.Unlock()

	a.reporter.Report(reporting.Update{
		Timestamp: time.Now(),
		App:       a.spec.Name,
		Target:    string(a.target.Kind()),
		Previous:  from,
		State:     to,
		Step:      step,
		Duration:  time.Since(started),
		Endpoint:  address,
		Err:       err,
	})
}

// stepFailed records err without a transition; the caller reports it as
// the session's terminal error.
func (a *Application) stepFailed(step string, started time.Time, err error) error {
	a.mu.Lock()
	a.err = err
	state := a.state
	a.mu.Unlock()

	a.reporter.Report(reporting.Update{
		Timestamp: time.Now(),
		App:       a.spec.Name,
		Target:    string(a.target.Kind()),
		Previous:  state,
		State:     state,
		Step:      step,
		Duration:  time.Since(started),
		Err:       err,
	})
	return err
}

func (a *Application) markFailed(step string, started time.Time, reason string) error {
	err := apperrors.Newf(apperrors.KindApplicationFailed, a.spec.Name, step, "%s", reason)
	a.mu.Lock()
	a.err = err
	a.failure = reason
	a.mu.Unlock()
	logging.Warn("Lifecycle", "Application %s failed: %s", a.spec.Name, reason)
	a.advanceWithError(step, StateFailed, started, err)
	return err
}

// classify keeps an already classified error and wraps anything else.
func classify(kind apperrors.Kind, app, op string, err error) error {
	if apperrors.KindOf(err) != "" {
		return err
	}
	return apperrors.New(kind, app, op, err)
}
