package cluster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/dynamic"

	"integctl/pkg/logging"
)

// DecodeManifest splits a multi-document YAML or JSON manifest into objects.
// List kinds are flattened into their items.
func DecodeManifest(manifest []byte) ([]*unstructured.Unstructured, error) {
	decoder := utilyaml.NewYAMLOrJSONDecoder(bytes.NewReader(manifest), 4096)
	var objs []*unstructured.Unstructured
	for {
		var raw map[string]interface{}
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}
		if len(raw) == 0 {
			continue
		}
		obj := &unstructured.Unstructured{Object: raw}
		if obj.IsList() {
			err := obj.EachListItem(func(item runtime.Object) error {
				u, ok := item.(*unstructured.Unstructured)
				if !ok {
					return fmt.Errorf("unexpected list item type %T", item)
				}
				objs = append(objs, u)
				return nil
			})
			if err != nil {
				return nil, err
			}
			continue
		}
		if obj.GetKind() == "" || obj.GetName() == "" {
			return nil, fmt.Errorf("manifest object is missing kind or metadata.name")
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

// Submit creates every object of the manifest, labelled with sel. Objects
// that already exist, e.g. because the build tool applied them, are
// relabelled so teardown by selector still finds them.
func (c *Client) Submit(ctx context.Context, manifest []byte, sel Selector) ([]ObjectRef, error) {
	objs, err := DecodeManifest(manifest)
	if err != nil {
		return nil, err
	}

	var refs []ObjectRef
	for _, obj := range objs {
		applyLabels(obj, sel)
		ref := ObjectRef{Kind: obj.GetKind(), Name: obj.GetName()}

		ri, res, err := c.resourceFor(obj)
		if err != nil {
			return refs, err
		}
		_, err = ri.Create(ctx, obj, metav1.CreateOptions{})
		switch {
		case err == nil:
			logging.Debug("Cluster", "Created %s", ref)
		case apierrors.IsAlreadyExists(err):
			if err := relabel(ctx, ri, obj.GetName(), sel); err != nil {
				return refs, fmt.Errorf("failed to label existing %s: %w", ref, err)
			}
			logging.Debug("Cluster", "Labelled existing %s", ref)
		default:
			return refs, fmt.Errorf("failed to create %s: %w", ref, err)
		}
		c.remember(sel, res)
		refs = append(refs, ref)
	}
	return refs, nil
}

func (c *Client) resourceFor(obj *unstructured.Unstructured) (dynamic.ResourceInterface, submittedResource, error) {
	gvk := obj.GroupVersionKind()
	mapping, err := c.cs.Mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return nil, submittedResource{}, fmt.Errorf("failed to map %s: %w", gvk, err)
	}
	res := submittedResource{
		gvr:        mapping.Resource,
		namespaced: mapping.Scope.Name() == meta.RESTScopeNameNamespace,
	}
	if res.namespaced {
		obj.SetNamespace(c.namespace)
	}
	return c.dynamicResource(res), res, nil
}

func (c *Client) dynamicResource(res submittedResource) dynamic.ResourceInterface {
	if res.namespaced {
		return c.cs.Dynamic.Resource(res.gvr).Namespace(c.namespace)
	}
	return c.cs.Dynamic.Resource(res.gvr)
}

// remember records that objects of res were submitted for sel, so Delete
// also covers types outside its fixed list.
func (c *Client) remember(sel Selector, res submittedResource) {
	key := sel.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitted[key] == nil {
		c.submitted[key] = make(map[submittedResource]struct{})
	}
	c.submitted[key][res] = struct{}{}
}

// submittedResources returns the remembered resource types of class for
// sel, ordered by resource name.
func (c *Client) submittedResources(sel Selector, class ResourceClass) []submittedResource {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []submittedResource
	for res := range c.submitted[sel.String()] {
		if classOf(res.gvr.GroupResource()) == class {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].gvr.String() < out[j].gvr.String() })
	return out
}

// applyLabels merges sel into the object's labels and, for workload kinds,
// into its pod template so the pods carry them too. It reports whether
// anything changed.
func applyLabels(obj *unstructured.Unstructured, sel Selector) bool {
	changed := !sel.Matches(obj.GetLabels())
	obj.SetLabels(merged(obj.GetLabels(), sel))

	if _, found, _ := unstructured.NestedMap(obj.Object, "spec", "template", "metadata"); found {
		tmpl, _, _ := unstructured.NestedStringMap(obj.Object, "spec", "template", "metadata", "labels")
		if sel.Matches(tmpl) {
			return changed
		}
		if err := unstructured.SetNestedStringMap(obj.Object, merged(tmpl, sel), "spec", "template", "metadata", "labels"); err != nil {
			logging.Debug("Cluster", "Could not label pod template of %s/%s: %v", strings.ToLower(obj.GetKind()), obj.GetName(), err)
			return changed
		}
		changed = true
	}
	return changed
}

func merged(existing map[string]string, sel Selector) map[string]string {
	out := make(map[string]string, len(existing)+len(sel))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range sel {
		out[k] = v
	}
	return out
}

func relabel(ctx context.Context, ri dynamic.ResourceInterface, name string, sel Selector) error {
	current, err := ri.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return err
	}
	if !applyLabels(current, sel) {
		return nil
	}
	_, err = ri.Update(ctx, current, metav1.UpdateOptions{})
	return err
}
