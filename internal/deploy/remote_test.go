package deploy

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"integctl/internal/apperrors"
	"integctl/internal/build"
	"integctl/internal/cluster"
	"integctl/internal/logs"
	"integctl/internal/spec"
	"integctl/internal/wait"
)

type fakeCluster struct {
	cluster.API

	mu        sync.Mutex
	submitted []byte
	selector  cluster.Selector
	instances []cluster.Instance
	build     cluster.BuildInfo
	deleted   []cluster.ResourceClass
	adopted   []string
	buildSel  cluster.Selector
}

func (f *fakeCluster) Namespace() string { return "tests" }

func (f *fakeCluster) ConnectionInfo() cluster.ConnectionInfo {
	return cluster.ConnectionInfo{Host: "https://api.example:6443", Token: "sha256~t", Namespace: "tests"}
}

func (f *fakeCluster) Submit(_ context.Context, manifest []byte, sel cluster.Selector) ([]cluster.ObjectRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = manifest
	f.selector = sel
	return []cluster.ObjectRef{{Kind: "Service", Name: "demo"}}, nil
}

func (f *fakeCluster) ListInstances(context.Context, cluster.Selector) ([]cluster.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instances, nil
}

func (f *fakeCluster) LastBuild(_ context.Context, sel cluster.Selector) (cluster.BuildInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buildSel = sel
	return f.build, nil
}

func (f *fakeCluster) Adopt(_ context.Context, name string, _ cluster.Selector) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adopted = append(f.adopted, name)
	return 1, nil
}

func (f *fakeCluster) Delete(_ context.Context, _ cluster.Selector, class cluster.ResourceClass) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, class)
	return 1, nil
}

func (f *fakeCluster) ResolveNetworkAddress(_ context.Context, name string) (string, error) {
	return "https://" + name + "-tests.apps.example", nil
}

func (f *fakeCluster) Logs(context.Context, cluster.Selector) (string, error) {
	return "remote log line\n", nil
}

func (f *fakeCluster) StreamLogs(ctx context.Context, _ cluster.Selector, w io.Writer) error {
	_, _ = io.WriteString(w, "streamed line\n")
	<-ctx.Done()
	return nil
}

// fakeMaven records requests and writes the manifest the real build would.
type fakeMaven struct {
	requests []build.Request
	manifest string
	err      error
}

func (f *fakeMaven) Invoke(_ context.Context, req build.Request) (build.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return build.Result{}, f.err
	}
	if f.manifest != "" {
		if err := os.MkdirAll(filepath.Dir(f.manifest), 0755); err != nil {
			return build.Result{}, err
		}
		if err := os.WriteFile(f.manifest, []byte("apiVersion: v1\nkind: Service\nmetadata:\n  name: demo\n"), 0644); err != nil {
			return build.Result{}, err
		}
	}
	return build.Result{LogFile: req.LogFile}, nil
}

func TestDeployRequest(t *testing.T) {
	api := &fakeCluster{}

	t.Run("quarkus jvm", func(t *testing.T) {
		r := NewRemote(RemoteConfig{AppLocation: "/apps", QuarkusProperties: map[string]string{"quarkus.platform.version": "3.2.0"}}, api, nil)
		req := r.DeployRequest(spec.ApplicationSpec{
			Name:       "demo",
			Runtime:    spec.RuntimeQuarkus,
			Properties: map[string]string{"greeting": "hi"},
		}, "/apps/demo")

		assert.Equal(t, "/apps/demo", req.WorkDir)
		assert.Equal(t, []string{"package"}, req.Goals)
		assert.Empty(t, req.Profiles)
		assert.Equal(t, "/apps/demo-deploy.log", req.LogFile)
		assert.Equal(t, "demo-deploy", req.Marker.String())
		assert.Equal(t, "https://api.example:6443", req.Properties["quarkus.kubernetes-client.master-url"])
		assert.Equal(t, "sha256~t", req.Properties["quarkus.kubernetes-client.token"])
		assert.Equal(t, "tests", req.Properties["quarkus.kubernetes-client.namespace"])
		assert.Equal(t, "true", req.Properties["quarkus.kubernetes.deploy"])
		assert.Equal(t, "3.2.0", req.Properties["quarkus.platform.version"])
		assert.Equal(t,
			"java,-Dgreeting=hi,-Dquarkus.http.host=0.0.0.0,-Djava.util.logging.manager=org.jboss.logmanager.LogManager,-jar,/deployments/quarkus-run.jar",
			req.Properties["quarkus.openshift.command"])
	})

	t.Run("quarkus native", func(t *testing.T) {
		r := NewRemote(RemoteConfig{AppLocation: "/apps", Native: true}, api, nil)
		req := r.DeployRequest(spec.ApplicationSpec{Name: "demo", Runtime: spec.RuntimeQuarkus}, "/apps/demo")
		assert.Equal(t, []string{"native"}, req.Profiles)
		assert.NotContains(t, req.Properties, "quarkus.openshift.command")
	})

	t.Run("spring boot", func(t *testing.T) {
		r := NewRemote(RemoteConfig{AppLocation: "/apps"}, api, nil)
		req := r.DeployRequest(spec.ApplicationSpec{Name: "demo", Runtime: spec.RuntimeSpringBoot}, "/apps/demo")
		assert.Equal(t, []string{"install"}, req.Goals)
		assert.Equal(t, []string{"openshift"}, req.Profiles)
		assert.Equal(t, map[string]string{"skipTests": "true", "jkube.namespace": "tests"}, req.Properties)
	})
}

func TestRemoteDeploy(t *testing.T) {
	dir := t.TempDir()
	api := &fakeCluster{}
	maven := &fakeMaven{manifest: filepath.Join(dir, "target", "kubernetes", "openshift.yml")}
	r := NewRemote(RemoteConfig{AppLocation: dir, Policy: wait.NewPolicy(3, time.Millisecond, "ready")}, api, maven)
	assert.Equal(t, spec.TargetOpenShift, r.Kind())

	handle := logs.NewHandle("demo", nil)
	s := spec.ApplicationSpec{Name: "demo", Runtime: spec.RuntimeQuarkus, Target: spec.TargetOpenShift, Replicas: 2}
	endpoint, err := r.Deploy(context.Background(), Request{Spec: s, ProjectDir: dir, Logs: handle})
	require.NoError(t, err)
	defer handle.StopStream()

	require.Len(t, maven.requests, 1)
	assert.Equal(t, []string{"demo"}, api.adopted)
	assert.Contains(t, string(api.submitted), "kind: Service")
	assert.Equal(t, cluster.AppSelector("demo"), api.selector)

	addr, err := endpoint.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://demo-tests.apps.example", addr)

	assert.Equal(t, "remote log line\n", handle.Text(context.Background()))
	assert.Eventually(t, func() bool {
		return len(handle.Sink().Lines()) > 0
	}, time.Second, 10*time.Millisecond)

	// Exactly the expected number of instances must be ready.
	api.instances = []cluster.Instance{{Name: "a", Ready: true}}
	assert.False(t, r.Ready(context.Background()))
	api.instances = append(api.instances, cluster.Instance{Name: "b", Ready: true})
	assert.True(t, r.Ready(context.Background()))
	api.instances = append(api.instances, cluster.Instance{Name: "c", Ready: true})
	assert.False(t, r.Ready(context.Background()))

	failed, _ := r.Failed(context.Background())
	assert.False(t, failed)
	api.build = cluster.BuildInfo{Name: "demo-1", Phase: "Failed"}
	failed, reason := r.Failed(context.Background())
	assert.True(t, failed)
	assert.NotEmpty(t, reason)
	assert.Equal(t, cluster.AppSelector("demo"), api.buildSel)

	r.Teardown(context.Background())
	assert.Equal(t, cluster.TeardownOrder, api.deleted)
	assert.Equal(t, []string{"demo", "demo"}, api.adopted)
}

func TestRemoteDeployErrors(t *testing.T) {
	t.Run("deploy build fails", func(t *testing.T) {
		buildErr := apperrors.New(apperrors.KindBuild, "demo", "maven", errors.New("exited with code 1"))
		buildErr.LogFile = "/apps/demo-deploy.log"
		r := NewRemote(RemoteConfig{AppLocation: "/apps"}, &fakeCluster{}, &fakeMaven{err: buildErr})

		_, err := r.Deploy(context.Background(), Request{Spec: spec.ApplicationSpec{Name: "demo", Runtime: spec.RuntimeSpringBoot}})
		require.Error(t, err)
		assert.Equal(t, apperrors.KindDeploy, apperrors.KindOf(err))
		assert.Equal(t, "/apps/demo-deploy.log", apperrors.LogFileOf(err))
	})

	t.Run("manifest missing", func(t *testing.T) {
		api := &fakeCluster{}
		r := NewRemote(RemoteConfig{AppLocation: t.TempDir()}, api, &fakeMaven{})

		_, err := r.Deploy(context.Background(), Request{Spec: spec.ApplicationSpec{Name: "demo", Runtime: spec.RuntimeSpringBoot}, ProjectDir: t.TempDir()})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrDeploy)
		assert.Nil(t, api.submitted)
	})
}

func TestRemoteTeardownWithoutDeploy(t *testing.T) {
	api := &fakeCluster{}
	r := NewRemote(RemoteConfig{}, api, nil)

	r.Teardown(context.Background())
	assert.Empty(t, api.deleted)
	assert.False(t, r.Ready(context.Background()))

	report := r.TeardownByName(context.Background(), "leftover")
	assert.Equal(t, cluster.TeardownOrder, api.deleted)
	assert.Equal(t, len(cluster.TeardownOrder), report.Deleted())
	assert.Equal(t, []string{"leftover"}, api.adopted)
}
