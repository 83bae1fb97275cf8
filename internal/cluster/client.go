package cluster

import (
	"fmt"
	"sync"
	"time"

	appsclient "github.com/openshift/client-go/apps/clientset/versioned"
	buildclient "github.com/openshift/client-go/build/clientset/versioned"
	imageclient "github.com/openshift/client-go/image/clientset/versioned"
	routeclient "github.com/openshift/client-go/route/clientset/versioned"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"

	"integctl/internal/config"
	"integctl/pkg/logging"
)

// Clientsets are the typed and dynamic clients a Client works with.
type Clientsets struct {
	Kube    kubernetes.Interface
	Build   buildclient.Interface
	Image   imageclient.Interface
	Apps    appsclient.Interface
	Route   routeclient.Interface
	Dynamic dynamic.Interface
	Mapper  meta.RESTMapper
}

// Client implements API against one namespace.
type Client struct {
	namespace string
	info      ConnectionInfo
	cs        Clientsets

	mu        sync.Mutex
	submitted map[string]map[submittedResource]struct{}
}

// submittedResource is a resource type Submit created objects of.
type submittedResource struct {
	gvr        schema.GroupVersionResource
	namespaced bool
}

var _ API = (*Client)(nil)

// New creates a client from existing clientsets.
func New(namespace string, cs Clientsets, info ConnectionInfo) *Client {
	info.Namespace = namespace
	return &Client{
		namespace: namespace,
		info:      info,
		cs:        cs,
		submitted: make(map[string]map[submittedResource]struct{}),
	}
}

// NewFromConfig connects to the cluster selected by cfg. The kubeconfig is
// resolved the same way kubectl does; cfg only overrides path, context and
// namespace.
func NewFromConfig(cfg config.OpenShiftConfig) (*Client, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if cfg.Kubeconfig != "" {
		loadingRules.ExplicitPath = cfg.Kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: cfg.Context}
	if cfg.Namespace != "" {
		overrides.Context.Namespace = cfg.Namespace
	}
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)

	restConfig, err := kubeConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get REST config for context %q: %w", cfg.Context, err)
	}
	restConfig.Timeout = 30 * time.Second

	namespace, _, err := kubeConfig.Namespace()
	if err != nil {
		return nil, fmt.Errorf("failed to determine namespace: %w", err)
	}

	var cs Clientsets
	if cs.Kube, err = kubernetes.NewForConfig(restConfig); err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}
	if cs.Build, err = buildclient.NewForConfig(restConfig); err != nil {
		return nil, fmt.Errorf("failed to create build clientset: %w", err)
	}
	if cs.Image, err = imageclient.NewForConfig(restConfig); err != nil {
		return nil, fmt.Errorf("failed to create image clientset: %w", err)
	}
	if cs.Apps, err = appsclient.NewForConfig(restConfig); err != nil {
		return nil, fmt.Errorf("failed to create apps clientset: %w", err)
	}
	if cs.Route, err = routeclient.NewForConfig(restConfig); err != nil {
		return nil, fmt.Errorf("failed to create route clientset: %w", err)
	}
	if cs.Dynamic, err = dynamic.NewForConfig(restConfig); err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	disco, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}
	cs.Mapper = restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(disco))

	logging.Debug("Cluster", "Connected to %s, namespace %s", restConfig.Host, namespace)
	return New(namespace, cs, ConnectionInfo{Host: restConfig.Host, Token: restConfig.BearerToken}), nil
}

// Namespace returns the namespace every call operates in.
func (c *Client) Namespace() string {
	return c.namespace
}

// ConnectionInfo returns the API server coordinates.
func (c *Client) ConnectionInfo() ConnectionInfo {
	return c.info
}
