package deploy

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"integctl/internal/apperrors"
	"integctl/internal/build"
	"integctl/internal/cluster"
	"integctl/internal/failure"
	"integctl/internal/logs"
	"integctl/internal/spec"
	"integctl/internal/teardown"
	"integctl/internal/wait"
	"integctl/pkg/logging"
)

// RemoteConfig configures the OpenShift target.
type RemoteConfig struct {
	AppLocation string
	Native      bool
	// QuarkusProperties are added to the Quarkus deploy build.
	QuarkusProperties map[string]string
	Policy            wait.Policy
}

// Manifest locations written by the deploy build, relative to the project.
var manifestPaths = map[spec.Runtime]string{
	spec.RuntimeQuarkus:    filepath.Join("target", "kubernetes", "openshift.yml"),
	spec.RuntimeSpringBoot: filepath.Join("target", "classes", "META-INF", "jkube", "openshift.yml"),
}

// Remote deploys to an OpenShift cluster. The deploy build creates the
// build config and starts the image build; the generated manifest is then
// submitted with the application's labels.
type Remote struct {
	cfg      RemoteConfig
	api      cluster.API
	maven    build.Invoker
	detector *failure.Detector
	teardown *teardown.Controller

	mu       sync.Mutex
	name     string
	sel      cluster.Selector
	replicas int
}

var _ Target = (*Remote)(nil)

// NewRemote creates a remote target.
func NewRemote(cfg RemoteConfig, api cluster.API, maven build.Invoker) *Remote {
	return &Remote{
		cfg:      cfg,
		api:      api,
		maven:    maven,
		detector: failure.NewDetector(api),
		teardown: teardown.NewController(api),
	}
}

// Kind implements Target.
func (r *Remote) Kind() spec.Target {
	return spec.TargetOpenShift
}

// WaitPolicy implements Target.
func (r *Remote) WaitPolicy() wait.Policy {
	return r.cfg.Policy
}

// QuarkusJavaCommand is the container command for a JVM-mode Quarkus
// deployment, as comma separated tokens. Spec properties become -D options.
func QuarkusJavaCommand(properties map[string]string) string {
	tokens := []string{"java"}
	for _, k := range sortedKeys(properties) {
		tokens = append(tokens, "-D"+k+"="+properties[k])
	}
	tokens = append(tokens,
		"-Dquarkus.http.host=0.0.0.0",
		"-Djava.util.logging.manager=org.jboss.logmanager.LogManager",
		"-jar", "/deployments/quarkus-run.jar",
	)
	return strings.Join(tokens, ",")
}

// DeployRequest builds the request that deploys s from projectDir.
func (r *Remote) DeployRequest(s spec.ApplicationSpec, projectDir string) build.Request {
	req := build.Request{
		WorkDir: projectDir,
		LogFile: logs.PhaseLogPath(r.cfg.AppLocation, s.Name, logs.PhaseDeploy),
		Marker:  logs.NewMarker(s.Name, logs.PhaseDeploy),
	}
	info := r.api.ConnectionInfo()

	switch s.Runtime {
	case spec.RuntimeQuarkus:
		req.Goals = []string{"package"}
		req.Properties = map[string]string{
			"quarkus.kubernetes-client.master-url":  info.Host,
			"quarkus.kubernetes-client.namespace":   r.api.Namespace(),
			"quarkus.kubernetes-client.trust-certs": "true",
			"quarkus.kubernetes.deploy":             "true",
			"quarkus.native.container-build":        "true",
			"skipTests":                             "true",
		}
		if info.Token != "" {
			req.Properties["quarkus.kubernetes-client.token"] = info.Token
		}
		for k, v := range r.cfg.QuarkusProperties {
			req.Properties[k] = v
		}
		if r.cfg.Native {
			req.Profiles = []string{"native"}
		} else {
			req.Properties["quarkus.openshift.command"] = QuarkusJavaCommand(s.Properties)
		}
	case spec.RuntimeSpringBoot:
		req.Goals = []string{"install"}
		req.Profiles = []string{"openshift"}
		req.Properties = map[string]string{
			"skipTests":       "true",
			"jkube.namespace": r.api.Namespace(),
		}
	}
	return req
}

// Deploy runs the deploy build, submits the generated manifest and starts
// following the application's logs.
func (r *Remote) Deploy(ctx context.Context, req Request) (Endpoint, error) {
	s := req.Spec
	sel := cluster.AppSelector(s.Name)

	r.mu.Lock()
	r.name = s.Name
	r.sel = sel
	r.replicas = s.ExpectedReplicas()
	r.mu.Unlock()

	logging.Info("Deploy", "Deploying %s to namespace %s", s.Name, r.api.Namespace())
	buildReq := r.DeployRequest(s, req.ProjectDir)
	if req.Logs != nil {
		buildReq.Output = req.Logs.Sink()
	}
	if _, err := r.maven.Invoke(ctx, buildReq); err != nil {
		deployErr := apperrors.New(apperrors.KindDeploy, s.Name, "deploy build", err)
		deployErr.LogFile = apperrors.LogFileOf(err)
		return Unresolved(), deployErr
	}
	r.adopt(ctx, s.Name, sel)

	manifestPath := filepath.Join(req.ProjectDir, manifestPaths[s.Runtime])
	manifest, err := os.ReadFile(manifestPath)
	if err != nil {
		return Unresolved(), apperrors.New(apperrors.KindDeploy, s.Name, "read manifest", err)
	}
	refs, err := r.api.Submit(ctx, manifest, sel)
	if err != nil {
		return Unresolved(), apperrors.New(apperrors.KindDeploy, s.Name, "submit manifest", err)
	}
	logging.Info("Deploy", "Submitted %d resources for %s", len(refs), s.Name)

	if req.Logs != nil {
		req.Logs.SetSource(func(ctx context.Context) (string, error) {
			return r.api.Logs(ctx, sel)
		})
		req.Logs.Follow(func(ctx context.Context, w io.Writer) error {
			return r.api.StreamLogs(ctx, sel, w)
		})
	}

	name := s.Name
	return Resolvable(func(ctx context.Context) (string, error) {
		return r.api.ResolveNetworkAddress(ctx, name)
	}), nil
}

// Ready reports whether exactly the expected number of instances is ready.
func (r *Remote) Ready(ctx context.Context) bool {
	r.mu.Lock()
	sel, replicas := r.sel, r.replicas
	r.mu.Unlock()
	if sel == nil {
		return false
	}

	instances, err := r.api.ListInstances(ctx, sel)
	if err != nil {
		logging.Debug("Deploy", "Listing instances failed: %v", err)
		return false
	}
	ready := 0
	for _, inst := range instances {
		if inst.Ready {
			ready++
		}
	}
	logging.Debug("Deploy", "%d/%d instances ready", ready, replicas)
	return ready == replicas
}

// Failed consults the failure detector.
func (r *Remote) Failed(ctx context.Context) (bool, string) {
	r.mu.Lock()
	name, sel := r.name, r.sel
	r.mu.Unlock()
	if sel == nil {
		return false, ""
	}
	report := r.detector.Check(ctx, name, sel)
	return report.Failed(), report.Reason
}

// Teardown deletes every labelled resource.
func (r *Remote) Teardown(ctx context.Context) {
	r.mu.Lock()
	name, sel := r.name, r.sel
	r.mu.Unlock()
	if sel == nil {
		logging.Debug("Teardown", "Nothing was deployed")
		return
	}
	r.adopt(ctx, name, sel)
	r.teardown.Teardown(ctx, name, sel)
}

// TeardownByName removes an application's resources without a preceding
// Deploy, e.g. left over from an interrupted session.
func (r *Remote) TeardownByName(ctx context.Context, name string) teardown.Report {
	sel := cluster.AppSelector(name)
	r.adopt(ctx, name, sel)
	return r.teardown.Teardown(ctx, name, sel)
}

// adopt labels the build resources the build tools created for name, so
// failure detection and teardown find them by sel. Builds started after a
// deployment are adopted again at teardown.
func (r *Remote) adopt(ctx context.Context, name string, sel cluster.Selector) {
	n, err := r.api.Adopt(ctx, name, sel)
	if err != nil {
		logging.Warn("Deploy", "Labelling build resources of %s failed: %v", name, err)
		return
	}
	if n > 0 {
		logging.Debug("Deploy", "Labelled %d build resources of %s", n, name)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
