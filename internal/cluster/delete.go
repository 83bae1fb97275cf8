package cluster

import (
	"context"
	"errors"
	"fmt"
	"slices"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"integctl/pkg/logging"
)

type deleteFunc func(ctx context.Context, name string, opts metav1.DeleteOptions) error

// deleteStep removes one resource type.
type deleteStep struct {
	kind   string
	list   func(ctx context.Context, opts metav1.ListOptions) ([]string, error)
	delete deleteFunc
}

// Delete removes every resource of class labelled with sel and returns how
// many were deleted. Each resource type is handled independently; failures
// are collected and returned together.
func (c *Client) Delete(ctx context.Context, sel Selector, class ResourceClass) (int, error) {
	steps, err := c.deleteSteps(class)
	if err != nil {
		return 0, err
	}

	listOpts := metav1.ListOptions{LabelSelector: sel.String()}
	policy := metav1.DeletePropagationBackground
	deleteOpts := metav1.DeleteOptions{PropagationPolicy: &policy}

	steps = append(steps, c.dynamicSteps(sel, class)...)

	total := 0
	var errs []error
	for _, step := range steps {
		names, err := step.list(ctx, listOpts)
		if err != nil {
			if apierrors.IsNotFound(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("failed to list %s: %w", step.kind, err))
			continue
		}
		for _, name := range names {
			if err := step.delete(ctx, name, deleteOpts); err != nil && !apierrors.IsNotFound(err) {
				errs = append(errs, fmt.Errorf("failed to delete %s/%s: %w", step.kind, name, err))
				continue
			}
			logging.Debug("Cluster", "Deleted %s/%s", step.kind, name)
			total++
		}
	}
	return total, errors.Join(errs...)
}

func (c *Client) deleteSteps(class ResourceClass) ([]deleteStep, error) {
	ns := c.namespace
	switch class {
	case ClassBuild:
		bcs := c.cs.Build.BuildV1().BuildConfigs(ns)
		builds := c.cs.Build.BuildV1().Builds(ns)
		iss := c.cs.Image.ImageV1().ImageStreams(ns)
		return []deleteStep{
			newStep("buildconfig", bcs.List, bcs.Delete),
			newStep("build", builds.List, builds.Delete),
			newStep("imagestream", iss.List, iss.Delete),
		}, nil
	case ClassCompute:
		dcs := c.cs.Apps.AppsV1().DeploymentConfigs(ns)
		deployments := c.cs.Kube.AppsV1().Deployments(ns)
		pods := c.cs.Kube.CoreV1().Pods(ns)
		configMaps := c.cs.Kube.CoreV1().ConfigMaps(ns)
		secrets := c.cs.Kube.CoreV1().Secrets(ns)
		serviceAccounts := c.cs.Kube.CoreV1().ServiceAccounts(ns)
		roleBindings := c.cs.Kube.RbacV1().RoleBindings(ns)
		roles := c.cs.Kube.RbacV1().Roles(ns)
		return []deleteStep{
			newStep("deploymentconfig", dcs.List, dcs.Delete),
			newStep("deployment", deployments.List, deployments.Delete),
			newStep("pod", pods.List, pods.Delete),
			newStep("configmap", configMaps.List, configMaps.Delete),
			newStep("secret", secrets.List, secrets.Delete),
			newStep("rolebinding", roleBindings.List, roleBindings.Delete),
			newStep("role", roles.List, roles.Delete),
			newStep("serviceaccount", serviceAccounts.List, serviceAccounts.Delete),
		}, nil
	case ClassNetwork:
		services := c.cs.Kube.CoreV1().Services(ns)
		routes := c.cs.Route.RouteV1().Routes(ns)
		return []deleteStep{
			newStep("service", services.List, services.Delete),
			newStep("route", routes.List, routes.Delete),
		}, nil
	default:
		return nil, fmt.Errorf("unknown resource class %q", class)
	}
}

// typedResources are deleted by the fixed steps of deleteSteps.
var typedResources = []schema.GroupResource{
	{Group: "build.openshift.io", Resource: "buildconfigs"},
	{Group: "build.openshift.io", Resource: "builds"},
	{Group: "image.openshift.io", Resource: "imagestreams"},
	{Group: "apps.openshift.io", Resource: "deploymentconfigs"},
	{Group: "apps", Resource: "deployments"},
	{Resource: "pods"},
	{Resource: "configmaps"},
	{Resource: "secrets"},
	{Group: "rbac.authorization.k8s.io", Resource: "rolebindings"},
	{Group: "rbac.authorization.k8s.io", Resource: "roles"},
	{Resource: "serviceaccounts"},
	{Resource: "services"},
	{Group: "route.openshift.io", Resource: "routes"},
}

// classOf assigns a submitted resource type to its teardown group.
func classOf(gr schema.GroupResource) ResourceClass {
	switch {
	case gr.Group == "build.openshift.io" || gr.Group == "image.openshift.io":
		return ClassBuild
	case gr.Resource == "services" || gr.Resource == "routes" || gr.Resource == "ingresses" || gr.Resource == "networkpolicies":
		return ClassNetwork
	default:
		return ClassCompute
	}
}

// dynamicSteps delete the labelled objects of every other resource type
// Submit created for sel, cluster-scoped ones included.
func (c *Client) dynamicSteps(sel Selector, class ResourceClass) []deleteStep {
	var steps []deleteStep
	for _, res := range c.submittedResources(sel, class) {
		if slices.Contains(typedResources, res.gvr.GroupResource()) {
			continue
		}
		ri := c.dynamicResource(res)
		del := func(ctx context.Context, name string, opts metav1.DeleteOptions) error {
			return ri.Delete(ctx, name, opts)
		}
		steps = append(steps, newStep(res.gvr.Resource, ri.List, del))
	}
	return steps
}

func newStep[L runtime.Object](kind string, list func(context.Context, metav1.ListOptions) (L, error), del deleteFunc) deleteStep {
	return deleteStep{
		kind:   kind,
		delete: del,
		list: func(ctx context.Context, opts metav1.ListOptions) ([]string, error) {
			l, err := list(ctx, opts)
			if err != nil {
				return nil, err
			}
			return objectNames(l)
		},
	}
}

func objectNames(list runtime.Object) ([]string, error) {
	items, err := meta.ExtractList(list)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		accessor, err := meta.Accessor(item)
		if err != nil {
			return nil, err
		}
		names = append(names, accessor.GetName())
	}
	return names, nil
}
