package cluster

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	buildv1 "github.com/openshift/api/build/v1"
	imagev1 "github.com/openshift/api/image/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"integctl/pkg/logging"
)

// classify maps Kubernetes "not found" errors to ErrNotFound and leaves
// everything else, connection errors included, as is.
func classify(err error) error {
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

// ResolveNetworkAddress returns the URL of the route named name.
func (c *Client) ResolveNetworkAddress(ctx context.Context, name string) (string, error) {
	route, err := c.cs.Route.RouteV1().Routes(c.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get route %s: %w", name, classify(err))
	}
	host := route.Spec.Host
	if host == "" && len(route.Status.Ingress) > 0 {
		host = route.Status.Ingress[0].Host
	}
	if host == "" {
		return "", fmt.Errorf("route %s has no host assigned yet", name)
	}
	scheme := "http"
	if route.Spec.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + host, nil
}

// LastBuild returns the most recent build labelled with sel. Builds inherit
// the labels of their build config, whatever the config is named.
func (c *Client) LastBuild(ctx context.Context, sel Selector) (BuildInfo, error) {
	list, err := c.cs.Build.BuildV1().Builds(c.namespace).List(ctx, metav1.ListOptions{LabelSelector: sel.String()})
	if err != nil {
		return BuildInfo{}, fmt.Errorf("failed to list builds with %s: %w", sel, classify(err))
	}
	if len(list.Items) == 0 {
		return BuildInfo{}, fmt.Errorf("no builds with %s: %w", sel, ErrNotFound)
	}

	latest := &list.Items[0]
	for i := 1; i < len(list.Items); i++ {
		if newerBuild(&list.Items[i], latest) {
			latest = &list.Items[i]
		}
	}
	return BuildInfo{Name: latest.Name, Phase: string(latest.Status.Phase)}, nil
}

func newerBuild(a, b *buildv1.Build) bool {
	if !a.CreationTimestamp.Equal(&b.CreationTimestamp) {
		return b.CreationTimestamp.Before(&a.CreationTimestamp)
	}
	if na, nb := buildNumber(a), buildNumber(b); na != nb {
		return na > nb
	}
	return a.Name > b.Name
}

func buildNumber(b *buildv1.Build) int {
	n, _ := strconv.Atoi(b.Annotations[buildv1.BuildNumberAnnotation])
	return n
}

// Adopt merges sel into the labels of the build configs, builds and image
// streams the build tool created for name, so failure detection and
// teardown find them. It returns how many objects were relabelled.
func (c *Client) Adopt(ctx context.Context, name string, sel Selector) (int, error) {
	bcs := c.cs.Build.BuildV1().BuildConfigs(c.namespace)
	builds := c.cs.Build.BuildV1().Builds(c.namespace)
	iss := c.cs.Image.ImageV1().ImageStreams(c.namespace)

	total := 0
	var errs []error
	collect := func(n int, err error) {
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	for _, tool := range ToolSelectors(name) {
		opts := metav1.ListOptions{LabelSelector: tool.String()}

		if list, err := bcs.List(ctx, opts); err != nil {
			collect(0, fmt.Errorf("failed to list build configs with %s: %w", tool, classify(err)))
		} else {
			collect(adoptItems[buildv1.BuildConfig](ctx, list.Items, sel, bcs.Update))
		}
		if list, err := builds.List(ctx, opts); err != nil {
			collect(0, fmt.Errorf("failed to list builds with %s: %w", tool, classify(err)))
		} else {
			collect(adoptItems[buildv1.Build](ctx, list.Items, sel, builds.Update))
		}
		if list, err := iss.List(ctx, opts); err != nil {
			collect(0, fmt.Errorf("failed to list image streams with %s: %w", tool, classify(err)))
		} else {
			collect(adoptItems[imagev1.ImageStream](ctx, list.Items, sel, iss.Update))
		}
	}
	if total > 0 {
		logging.Debug("Cluster", "Labelled %d build resources of %s with %s", total, name, sel)
	}
	return total, errors.Join(errs...)
}

func adoptItems[T any, PT interface {
	*T
	metav1.Object
}](ctx context.Context, items []T, sel Selector, update func(context.Context, PT, metav1.UpdateOptions) (PT, error)) (int, error) {
	n := 0
	var errs []error
	for i := range items {
		obj := PT(&items[i])
		if sel.Matches(obj.GetLabels()) {
			continue
		}
		obj.SetLabels(merged(obj.GetLabels(), sel))
		if _, err := update(ctx, obj, metav1.UpdateOptions{}); err != nil {
			errs = append(errs, fmt.Errorf("failed to label %s: %w", obj.GetName(), err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
