package cluster

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appsv1 "github.com/openshift/api/apps/v1"
	buildv1 "github.com/openshift/api/build/v1"
	imagev1 "github.com/openshift/api/image/v1"
	routev1 "github.com/openshift/api/route/v1"
	appsfake "github.com/openshift/client-go/apps/clientset/versioned/fake"
	buildfake "github.com/openshift/client-go/build/clientset/versioned/fake"
	imagefake "github.com/openshift/client-go/image/clientset/versioned/fake"
	routefake "github.com/openshift/client-go/route/clientset/versioned/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kappsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	kubefake "k8s.io/client-go/kubernetes/fake"
)

const testNamespace = "test"

type fakeObjects struct {
	kube   []runtime.Object
	build  []runtime.Object
	image  []runtime.Object
	apps   []runtime.Object
	route  []runtime.Object
	dynObj []runtime.Object
}

func newTestClient(objs fakeObjects) *Client {
	mapper := meta.NewDefaultRESTMapper(nil)
	mapper.Add(schema.GroupVersionKind{Version: "v1", Kind: "Service"}, meta.RESTScopeNamespace)
	mapper.Add(schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "Deployment"}, meta.RESTScopeNamespace)
	mapper.Add(schema.GroupVersionKind{Group: "route.openshift.io", Version: "v1", Kind: "Route"}, meta.RESTScopeNamespace)
	mapper.Add(schema.GroupVersionKind{Group: "rbac.authorization.k8s.io", Version: "v1", Kind: "ClusterRole"}, meta.RESTScopeRoot)
	mapper.Add(schema.GroupVersionKind{Version: "v1", Kind: "ConfigMap"}, meta.RESTScopeNamespace)
	mapper.Add(schema.GroupVersionKind{Group: "monitoring.coreos.com", Version: "v1", Kind: "ServiceMonitor"}, meta.RESTScopeNamespace)

	listKinds := map[schema.GroupVersionResource]string{
		{Version: "v1", Resource: "services"}:                                         "ServiceList",
		{Version: "v1", Resource: "configmaps"}:                                       "ConfigMapList",
		{Group: "apps", Version: "v1", Resource: "deployments"}:                       "DeploymentList",
		{Group: "route.openshift.io", Version: "v1", Resource: "routes"}:              "RouteList",
		{Group: "rbac.authorization.k8s.io", Version: "v1", Resource: "clusterroles"}: "ClusterRoleList",
		{Group: "monitoring.coreos.com", Version: "v1", Resource: "servicemonitors"}:  "ServiceMonitorList",
	}

	return New(testNamespace, Clientsets{
		Kube:    kubefake.NewSimpleClientset(objs.kube...),
		Build:   buildfake.NewSimpleClientset(objs.build...),
		Image:   imagefake.NewSimpleClientset(objs.image...),
		Apps:    appsfake.NewSimpleClientset(objs.apps...),
		Route:   routefake.NewSimpleClientset(objs.route...),
		Dynamic: dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), listKinds, objs.dynObj...),
		Mapper:  mapper,
	}, ConnectionInfo{Host: "https://api.example:6443", Token: "sha256~token"})
}

func objMeta(name string, lbls map[string]string) metav1.ObjectMeta {
	return metav1.ObjectMeta{Name: name, Namespace: testNamespace, Labels: lbls}
}

func readyPod(name string, lbls map[string]string, ready bool) *corev1.Pod {
	status := corev1.ConditionFalse
	if ready {
		status = corev1.ConditionTrue
	}
	return &corev1.Pod{
		ObjectMeta: objMeta(name, lbls),
		Status: corev1.PodStatus{
			Phase:      corev1.PodRunning,
			Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: status}},
		},
	}
}

func TestSelector(t *testing.T) {
	sel := AppSelector("demo")
	assert.Equal(t, "app.kubernetes.io/managed-by=integctl,app.kubernetes.io/name=demo", sel.String())
	assert.Equal(t, []string{ManagedByLabel, NameLabel}, sel.Keys())
	assert.True(t, sel.Matches(map[string]string{NameLabel: "demo", ManagedByLabel: ManagedByValue, "extra": "x"}))
	assert.False(t, sel.Matches(map[string]string{NameLabel: "demo"}))
}

func TestNewKeepsConnectionInfo(t *testing.T) {
	c := newTestClient(fakeObjects{})
	assert.Equal(t, testNamespace, c.Namespace())
	assert.Equal(t, ConnectionInfo{Host: "https://api.example:6443", Token: "sha256~token", Namespace: testNamespace}, c.ConnectionInfo())
}

func TestIsPodReadyAndFailed(t *testing.T) {
	terminated := func(reason string) corev1.ContainerState {
		return corev1.ContainerState{Terminated: &corev1.ContainerStateTerminated{Reason: reason}}
	}
	tests := []struct {
		name       string
		pod        *corev1.Pod
		wantReady  bool
		wantFailed bool
	}{
		{name: "ready", pod: readyPod("a", nil, true), wantReady: true},
		{name: "not ready", pod: readyPod("a", nil, false)},
		{name: "no conditions", pod: &corev1.Pod{}},
		{
			name: "last state error",
			pod: &corev1.Pod{Status: corev1.PodStatus{ContainerStatuses: []corev1.ContainerStatus{
				{LastTerminationState: terminated("Error")},
			}}},
			wantFailed: true,
		},
		{
			name: "current state error lowercase",
			pod: &corev1.Pod{Status: corev1.PodStatus{ContainerStatuses: []corev1.ContainerStatus{
				{State: terminated("error")},
			}}},
			wantFailed: true,
		},
		{
			name: "completed is not failed",
			pod: &corev1.Pod{Status: corev1.PodStatus{ContainerStatuses: []corev1.ContainerStatus{
				{State: terminated("Completed")},
			}}},
		},
		{
			name: "init container error",
			pod: &corev1.Pod{Status: corev1.PodStatus{InitContainerStatuses: []corev1.ContainerStatus{
				{State: terminated("Error")},
			}}},
			wantFailed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantReady, IsPodReady(tt.pod))
			assert.Equal(t, tt.wantFailed, IsPodFailed(tt.pod))
		})
	}
}

func TestListInstances(t *testing.T) {
	demo := AppSelector("demo")
	other := AppSelector("other")
	crashed := readyPod("demo-b", demo, false)
	crashed.Status.ContainerStatuses = []corev1.ContainerStatus{{
		RestartCount:         3,
		LastTerminationState: corev1.ContainerState{Terminated: &corev1.ContainerStateTerminated{Reason: "Error"}},
	}}
	c := newTestClient(fakeObjects{kube: []runtime.Object{
		crashed,
		readyPod("demo-a", demo, true),
		readyPod("other-a", other, true),
	}})

	instances, err := c.ListInstances(context.Background(), demo)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, Instance{Name: "demo-a", Phase: corev1.PodRunning, Ready: true}, instances[0])
	assert.Equal(t, Instance{Name: "demo-b", Phase: corev1.PodRunning, Failed: true, Restarts: 3}, instances[1])

	none, err := c.ListInstances(context.Background(), AppSelector("missing"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResolveNetworkAddress(t *testing.T) {
	c := newTestClient(fakeObjects{route: []runtime.Object{
		&routev1.Route{ObjectMeta: objMeta("plain", nil), Spec: routev1.RouteSpec{Host: "plain.apps.example"}},
		&routev1.Route{ObjectMeta: objMeta("secure", nil), Spec: routev1.RouteSpec{Host: "secure.apps.example", TLS: &routev1.TLSConfig{}}},
		&routev1.Route{ObjectMeta: objMeta("ingress", nil), Status: routev1.RouteStatus{Ingress: []routev1.RouteIngress{{Host: "ingress.apps.example"}}}},
		&routev1.Route{ObjectMeta: objMeta("pending", nil)},
	}})
	ctx := context.Background()

	tests := []struct {
		name     string
		want     string
		wantErr  bool
		notFound bool
	}{
		{name: "plain", want: "http://plain.apps.example"},
		{name: "secure", want: "https://secure.apps.example"},
		{name: "ingress", want: "http://ingress.apps.example"},
		{name: "pending", wantErr: true},
		{name: "missing", wantErr: true, notFound: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ResolveNetworkAddress(ctx, tt.name)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.notFound, errors.Is(err, ErrNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newBuild(name, bc string, lbls map[string]string, number string, phase buildv1.BuildPhase) *buildv1.Build {
	m := objMeta(name, lbls)
	m.Annotations = map[string]string{buildv1.BuildNumberAnnotation: number}
	return &buildv1.Build{ObjectMeta: m, Status: buildv1.BuildStatus{Phase: phase, Config: &corev1.ObjectReference{Name: bc}}}
}

func TestLastBuild(t *testing.T) {
	demo := AppSelector("demo")
	boot := AppSelector("boot")
	c := newTestClient(fakeObjects{build: []runtime.Object{
		newBuild("demo-1", "demo", demo, "1", buildv1.BuildPhaseComplete),
		newBuild("demo-2", "demo", demo, "2", buildv1.BuildPhaseFailed),
		newBuild("boot-s2i-9", "boot-s2i", boot, "9", buildv1.BuildPhaseComplete),
		newBuild("boot-s2i-10", "boot-s2i", boot, "10", buildv1.BuildPhaseError),
		newBuild("other-1", "other", AppSelector("other"), "1", buildv1.BuildPhaseRunning),
	}})
	ctx := context.Background()

	tests := []struct {
		name       string
		sel        Selector
		wantBuild  string
		wantFailed bool
	}{
		{name: "build config named after the application", sel: demo, wantBuild: "demo-2", wantFailed: true},
		{name: "jkube s2i build config", sel: boot, wantBuild: "boot-s2i-10", wantFailed: true},
		{name: "running build", sel: AppSelector("other"), wantBuild: "other-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := c.LastBuild(ctx, tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBuild, b.Name)
			assert.Equal(t, tt.wantFailed, b.Failed())
		})
	}

	_, err := c.LastBuild(ctx, AppSelector("missing"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, BuildInfo{Phase: "Error"}.Failed())
}

func TestAdopt(t *testing.T) {
	jkube := map[string]string{"app": "boot", JKubeProviderLabel: JKubeProvider, "group": "com.example"}
	quarkus := map[string]string{NameLabel: "demo", ManagedByLabel: "quarkus"}
	c := newTestClient(fakeObjects{
		build: []runtime.Object{
			&buildv1.BuildConfig{ObjectMeta: objMeta("boot-s2i", jkube)},
			newBuild("boot-s2i-1", "boot-s2i", jkube, "1", buildv1.BuildPhaseFailed),
			&buildv1.BuildConfig{ObjectMeta: objMeta("demo", quarkus)},
			&buildv1.BuildConfig{ObjectMeta: objMeta("unrelated", map[string]string{"app": "unrelated"})},
		},
		image: []runtime.Object{&imagev1.ImageStream{ObjectMeta: objMeta("boot", jkube)}},
	})
	ctx := context.Background()
	boot := AppSelector("boot")

	n, err := c.Adopt(ctx, "boot", boot)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	bc, err := c.cs.Build.BuildV1().BuildConfigs(testNamespace).Get(ctx, "boot-s2i", metav1.GetOptions{})
	require.NoError(t, err)
	assert.True(t, boot.Matches(bc.Labels))
	assert.Equal(t, "com.example", bc.Labels["group"])

	b, err := c.LastBuild(ctx, boot)
	require.NoError(t, err)
	assert.Equal(t, "boot-s2i-1", b.Name)
	assert.True(t, b.Failed(), "a failed s2i build is visible once adopted")

	again, err := c.Adopt(ctx, "boot", boot)
	require.NoError(t, err)
	assert.Zero(t, again)

	n, err = c.Adopt(ctx, "demo", AppSelector("demo"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	bc, err = c.cs.Build.BuildV1().BuildConfigs(testNamespace).Get(ctx, "demo", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, ManagedByValue, bc.Labels[ManagedByLabel])

	bc, err = c.cs.Build.BuildV1().BuildConfigs(testNamespace).Get(ctx, "unrelated", metav1.GetOptions{})
	require.NoError(t, err)
	assert.NotContains(t, bc.Labels, ManagedByLabel)
}

func TestDelete(t *testing.T) {
	demo := AppSelector("demo")
	other := AppSelector("other")
	c := newTestClient(fakeObjects{
		build: []runtime.Object{
			&buildv1.BuildConfig{ObjectMeta: objMeta("demo", demo)},
			&buildv1.Build{ObjectMeta: objMeta("demo-1", demo)},
			&buildv1.BuildConfig{ObjectMeta: objMeta("other", other)},
		},
		image: []runtime.Object{&imagev1.ImageStream{ObjectMeta: objMeta("demo", demo)}},
		apps:  []runtime.Object{&appsv1.DeploymentConfig{ObjectMeta: objMeta("demo", demo)}},
		kube: []runtime.Object{
			&kappsv1.Deployment{ObjectMeta: objMeta("demo", demo)},
			readyPod("demo-abc", demo, true),
			readyPod("other-abc", other, true),
			&corev1.Service{ObjectMeta: objMeta("demo", demo)},
		},
		route: []runtime.Object{&routev1.Route{ObjectMeta: objMeta("demo", demo)}},
	})
	ctx := context.Background()

	tests := []struct {
		class ResourceClass
		want  int
	}{
		{class: ClassBuild, want: 3},
		{class: ClassCompute, want: 3},
		{class: ClassNetwork, want: 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			n, err := c.Delete(ctx, demo, tt.class)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			again, err := c.Delete(ctx, demo, tt.class)
			require.NoError(t, err)
			assert.Zero(t, again)
		})
	}

	_, err := c.cs.Build.BuildV1().BuildConfigs(testNamespace).Get(ctx, "other", metav1.GetOptions{})
	assert.NoError(t, err, "other applications are untouched")
	_, err = c.cs.Kube.CoreV1().Pods(testNamespace).Get(ctx, "other-abc", metav1.GetOptions{})
	assert.NoError(t, err)

	_, err = c.Delete(ctx, demo, ResourceClass("storage"))
	assert.Error(t, err)
}

const manifest = `---
apiVersion: v1
kind: Service
metadata:
  name: demo
  labels:
    app.kubernetes.io/version: "1.0"
spec:
  ports:
  - port: 8080
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: demo
spec:
  replicas: 1
  template:
    metadata:
      labels:
        app: demo
    spec:
      containers:
      - name: demo
        image: demo:latest
`

func TestDecodeManifest(t *testing.T) {
	objs, err := DecodeManifest([]byte(manifest))
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "Service", objs[0].GetKind())
	assert.Equal(t, "Deployment", objs[1].GetKind())

	list := `{"apiVersion":"v1","kind":"List","items":[` +
		`{"apiVersion":"v1","kind":"Service","metadata":{"name":"a"}},` +
		`{"apiVersion":"v1","kind":"Service","metadata":{"name":"b"}}]}`
	objs, err = DecodeManifest([]byte(list))
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "b", objs[1].GetName())

	_, err = DecodeManifest([]byte("apiVersion: v1\nkind: Service\n"))
	assert.Error(t, err)

	objs, err = DecodeManifest(nil)
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestSubmit(t *testing.T) {
	c := newTestClient(fakeObjects{})
	ctx := context.Background()
	sel := AppSelector("demo")

	refs, err := c.Submit(ctx, []byte(manifest), sel)
	require.NoError(t, err)
	assert.Equal(t, []ObjectRef{{Kind: "Service", Name: "demo"}, {Kind: "Deployment", Name: "demo"}}, refs)
	assert.Equal(t, "service/demo", refs[0].String())

	svc, err := c.cs.Dynamic.Resource(schema.GroupVersionResource{Version: "v1", Resource: "services"}).
		Namespace(testNamespace).Get(ctx, "demo", metav1.GetOptions{})
	require.NoError(t, err)
	assert.True(t, sel.Matches(svc.GetLabels()))
	assert.Equal(t, "1.0", svc.GetLabels()["app.kubernetes.io/version"])

	deploy, err := c.cs.Dynamic.Resource(schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"}).
		Namespace(testNamespace).Get(ctx, "demo", metav1.GetOptions{})
	require.NoError(t, err)
	tmplLabels := deploy.Object["spec"].(map[string]interface{})["template"].(map[string]interface{})["metadata"].(map[string]interface{})["labels"].(map[string]interface{})
	assert.Equal(t, "demo", tmplLabels["app"])
	assert.Equal(t, "demo", tmplLabels[NameLabel])

	// Submitting again relabels instead of failing.
	refs, err = c.Submit(ctx, []byte(manifest), sel)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestSubmitRelabelsExisting(t *testing.T) {
	existing := &unstructuredService{name: "demo", labels: map[string]interface{}{"app": "demo"}}
	c := newTestClient(fakeObjects{dynObj: []runtime.Object{existing.object()}})
	ctx := context.Background()
	sel := AppSelector("demo")

	_, err := c.Submit(ctx, []byte("apiVersion: v1\nkind: Service\nmetadata:\n  name: demo\n"), sel)
	require.NoError(t, err)

	svc, err := c.cs.Dynamic.Resource(schema.GroupVersionResource{Version: "v1", Resource: "services"}).
		Namespace(testNamespace).Get(ctx, "demo", metav1.GetOptions{})
	require.NoError(t, err)
	assert.True(t, sel.Matches(svc.GetLabels()))
	assert.Equal(t, "demo", svc.GetLabels()["app"])
}

func TestSubmitLabelsPodsOfAppliedWorkload(t *testing.T) {
	// The deploy build applies the manifest itself, so the workload exists
	// with the build tool's labels only.
	applied := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata": map[string]interface{}{
			"name":      "demo",
			"namespace": testNamespace,
			"labels":    map[string]interface{}{NameLabel: "demo"},
		},
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{
					"labels": map[string]interface{}{NameLabel: "demo"},
				},
			},
		},
	}}
	c := newTestClient(fakeObjects{dynObj: []runtime.Object{applied}})
	ctx := context.Background()
	sel := AppSelector("demo")

	_, err := c.Submit(ctx, []byte(manifest), sel)
	require.NoError(t, err)

	deploy, err := c.cs.Dynamic.Resource(schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"}).
		Namespace(testNamespace).Get(ctx, "demo", metav1.GetOptions{})
	require.NoError(t, err)
	assert.True(t, sel.Matches(deploy.GetLabels()))
	tmpl, found, err := unstructured.NestedStringMap(deploy.Object, "spec", "template", "metadata", "labels")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, sel.Matches(tmpl), "pods of the workload must match %s, got %v", sel, tmpl)
}

func TestDeleteSubmittedResources(t *testing.T) {
	demo := AppSelector("demo")
	c := newTestClient(fakeObjects{kube: []runtime.Object{
		&corev1.ConfigMap{ObjectMeta: objMeta("demo-config", demo)},
		&corev1.ServiceAccount{ObjectMeta: objMeta("demo", demo)},
		&corev1.ConfigMap{ObjectMeta: objMeta("other-config", AppSelector("other"))},
	}})
	ctx := context.Background()

	extra := `---
apiVersion: rbac.authorization.k8s.io/v1
kind: ClusterRole
metadata:
  name: demo-reader
---
apiVersion: monitoring.coreos.com/v1
kind: ServiceMonitor
metadata:
  name: demo
`
	_, err := c.Submit(ctx, []byte(extra), demo)
	require.NoError(t, err)

	n, err := c.Delete(ctx, demo, ClassCompute)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "config map, service account, cluster role and service monitor")

	clusterRoles, err := c.cs.Dynamic.Resource(schema.GroupVersionResource{Group: "rbac.authorization.k8s.io", Version: "v1", Resource: "clusterroles"}).
		List(ctx, metav1.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, clusterRoles.Items)

	_, err = c.cs.Kube.CoreV1().ConfigMaps(testNamespace).Get(ctx, "other-config", metav1.GetOptions{})
	assert.NoError(t, err, "other applications are untouched")

	n, err = c.Delete(ctx, AppSelector("other"), ClassCompute)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "resource types submitted for demo are not swept for other")
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		resource schema.GroupResource
		want     ResourceClass
	}{
		{resource: schema.GroupResource{Group: "image.openshift.io", Resource: "imagestreamtags"}, want: ClassBuild},
		{resource: schema.GroupResource{Group: "networking.k8s.io", Resource: "ingresses"}, want: ClassNetwork},
		{resource: schema.GroupResource{Group: "rbac.authorization.k8s.io", Resource: "clusterroles"}, want: ClassCompute},
		{resource: schema.GroupResource{Group: "monitoring.coreos.com", Resource: "servicemonitors"}, want: ClassCompute},
	}
	for _, tt := range tests {
		t.Run(tt.resource.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, classOf(tt.resource))
		})
	}
}

func TestSubmitUnknownKind(t *testing.T) {
	c := newTestClient(fakeObjects{})
	_, err := c.Submit(context.Background(), []byte("apiVersion: example.com/v1\nkind: Widget\nmetadata:\n  name: w\n"), AppSelector("demo"))
	assert.Error(t, err)
}

func TestSubmitClusterScoped(t *testing.T) {
	c := newTestClient(fakeObjects{})
	refs, err := c.Submit(context.Background(),
		[]byte("apiVersion: rbac.authorization.k8s.io/v1\nkind: ClusterRole\nmetadata:\n  name: demo-reader\n"), AppSelector("demo"))
	require.NoError(t, err)
	assert.Equal(t, []ObjectRef{{Kind: "ClusterRole", Name: "demo-reader"}}, refs)
}

func TestLogs(t *testing.T) {
	demo := AppSelector("demo")
	c := newTestClient(fakeObjects{kube: []runtime.Object{readyPod("demo-a", demo, true)}})
	ctx := context.Background()

	text, err := c.Logs(ctx, demo)
	require.NoError(t, err)
	assert.Equal(t, "fake logs\n", text)

	_, err = c.Logs(ctx, AppSelector("missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	two := newTestClient(fakeObjects{kube: []runtime.Object{readyPod("demo-a", demo, true), readyPod("demo-b", demo, true)}})
	text, err = two.Logs(ctx, demo)
	require.NoError(t, err)
	assert.Equal(t, "==> demo-a <==\nfake logs\n==> demo-b <==\nfake logs\n", text)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStreamLogs(t *testing.T) {
	old := streamRetryInterval
	streamRetryInterval = 10 * time.Millisecond
	t.Cleanup(func() { streamRetryInterval = old })

	demo := AppSelector("demo")
	c := newTestClient(fakeObjects{kube: []runtime.Object{readyPod("demo-a", demo, true)}})

	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- c.StreamLogs(ctx, demo, &out) }()

	assert.Eventually(t, func() bool { return bytes.Contains([]byte(out.String()), []byte("fake logs")) }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}
