// Package cluster is the remote cluster API used by deployment, failure
// detection and teardown. It wraps the Kubernetes and OpenShift clientsets
// behind a narrow interface: list an application's workload instances,
// submit a manifest tagged with the application's labels, delete by label
// and resource class, resolve a route and read build and pod state.
package cluster

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"
)

// ErrNotFound means the queried resource does not exist. Callers treat it as
// absence, not as a failure.
var ErrNotFound = errors.New("resource not found")

// Label keys put on every resource created for an application.
const (
	NameLabel      = "app.kubernetes.io/name"
	ManagedByLabel = "app.kubernetes.io/managed-by"
	ManagedByValue = "integctl"

	// BuildConfigLabel is set by OpenShift on builds started from a build config.
	BuildConfigLabel = "openshift.io/build-config.name"

	// JKube labels the resources of its OpenShift builds with app=<name>
	// and this provider.
	JKubeProviderLabel = "provider"
	JKubeProvider      = "jkube"
)

// ResourceClass groups resource types for teardown.
type ResourceClass string

const (
	// ClassBuild covers build configs, builds and image streams.
	ClassBuild ResourceClass = "build"
	// ClassCompute covers deployment definitions, remaining pods and the
	// config maps, secrets, accounts and roles they use.
	ClassCompute ResourceClass = "compute"
	// ClassNetwork covers services and routes.
	ClassNetwork ResourceClass = "network"
)

// TeardownOrder is the order resource classes are deleted in.
var TeardownOrder = []ResourceClass{ClassBuild, ClassCompute, ClassNetwork}

// Selector is the label set identifying one application's resources.
type Selector map[string]string

// AppSelector returns the selector for the application name.
func AppSelector(name string) Selector {
	return Selector{NameLabel: name, ManagedByLabel: ManagedByValue}
}

// ToolSelectors are the label sets the build tools put on what they create
// for name: Quarkus uses the recommended name label, JKube app and provider.
func ToolSelectors(name string) []Selector {
	return []Selector{
		{NameLabel: name},
		{"app": name, JKubeProviderLabel: JKubeProvider},
	}
}

// String renders the selector in label-selector syntax.
func (s Selector) String() string {
	return labels.SelectorFromSet(labels.Set(s)).String()
}

// Matches reports whether the label set carries every selector pair.
func (s Selector) Matches(l map[string]string) bool {
	return labels.SelectorFromSet(labels.Set(s)).Matches(labels.Set(l))
}

// Keys returns the selector keys in order.
func (s Selector) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Instance is one workload instance (pod) of an application.
type Instance struct {
	Name     string
	Phase    corev1.PodPhase
	Ready    bool
	Failed   bool
	Restarts int32
}

// BuildInfo is the state of an application's latest build.
type BuildInfo struct {
	Name  string
	Phase string
}

// Failed reports whether the build ended in the Failed or Error phase.
func (b BuildInfo) Failed() bool {
	return b.Phase == "Failed" || b.Phase == "Error"
}

// ObjectRef identifies a submitted object.
type ObjectRef struct {
	Kind string
	Name string
}

func (r ObjectRef) String() string {
	return strings.ToLower(r.Kind) + "/" + r.Name
}

// ConnectionInfo describes the cluster connection, for tools that deploy
// on their own.
type ConnectionInfo struct {
	Host      string
	Token     string
	Namespace string
}

// API is the cluster surface the lifecycle depends on. Implementations must
// be safe for concurrent use by several applications.
type API interface {
	Namespace() string
	ConnectionInfo() ConnectionInfo

	ListInstances(ctx context.Context, sel Selector) ([]Instance, error)
	Submit(ctx context.Context, manifest []byte, sel Selector) ([]ObjectRef, error)
	Delete(ctx context.Context, sel Selector, class ResourceClass) (int, error)
	Adopt(ctx context.Context, name string, sel Selector) (int, error)
	ResolveNetworkAddress(ctx context.Context, name string) (string, error)
	LastBuild(ctx context.Context, sel Selector) (BuildInfo, error)

	Logs(ctx context.Context, sel Selector) (string, error)
	StreamLogs(ctx context.Context, sel Selector, w io.Writer) error
}

// IsPodReady reports whether the pod's Ready condition is true.
func IsPodReady(pod *corev1.Pod) bool {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

// IsPodFailed reports whether any container of the pod terminated with the
// reason "Error", either currently or in its previous run.
func IsPodFailed(pod *corev1.Pod) bool {
	statuses := append(append([]corev1.ContainerStatus{}, pod.Status.InitContainerStatuses...), pod.Status.ContainerStatuses...)
	for _, cs := range statuses {
		if terminatedWithError(cs.State) || terminatedWithError(cs.LastTerminationState) {
			return true
		}
	}
	return false
}

func terminatedWithError(state corev1.ContainerState) bool {
	return state.Terminated != nil && strings.EqualFold(state.Terminated.Reason, "error")
}

func instanceFromPod(pod *corev1.Pod) Instance {
	inst := Instance{
		Name:   pod.Name,
		Phase:  pod.Status.Phase,
		Ready:  IsPodReady(pod),
		Failed: IsPodFailed(pod),
	}
	for _, cs := range pod.Status.ContainerStatuses {
		inst.Restarts += cs.RestartCount
	}
	return inst
}
