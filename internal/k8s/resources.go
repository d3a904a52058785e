package k8s

import (
	"context"
	"encoding/json"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"k8s.io/utils/ptr"
)

// ResourceManager implementation

// Get retrieves a specific resource by kind, namespace and name.
func (c *kubernetesClient) Get(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string) (*unstructured.Unstructured, error) {
	c.logOperation("get", namespace, gvk.Kind, name)

	ri, err := c.resourceInterface(ctx, gvk, namespace)
	if err != nil {
		return nil, err
	}

	obj, err := ri.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, upstream("get", describe(gvk.Kind, namespace, name), err)
	}

	return obj, nil
}

// List retrieves the resources of a kind in a namespace.
func (c *kubernetesClient) List(ctx context.Context, gvk schema.GroupVersionKind, namespace string, opts ListOptions) (*unstructured.UnstructuredList, error) {
	c.logOperation("list", namespace, gvk.Kind, "")

	ri, err := c.resourceInterface(ctx, gvk, namespace)
	if err != nil {
		return nil, err
	}

	list, err := ri.List(ctx, opts.toMeta())
	if err != nil {
		return nil, upstream("list", describe(gvk.Kind, namespace, ""), err)
	}

	c.debug("listed resources", "resource_type", gvk.Kind, "namespace", namespace, "count", len(list.Items))

	return list, nil
}

// Apply writes obj into the namespace recorded on the object itself.
func (c *kubernetesClient) Apply(ctx context.Context, obj *unstructured.Unstructured, opts ApplyOptions) (*unstructured.Unstructured, error) {
	gvk := obj.GroupVersionKind()
	namespace := obj.GetNamespace()
	what := describe(gvk.Kind, namespace, obj.GetName())

	c.logOperation("apply", namespace, gvk.Kind, obj.GetName())

	ri, err := c.resourceInterface(ctx, gvk, namespace)
	if err != nil {
		return nil, err
	}

	if !opts.ServerSideApply {
		return c.createOrUpdate(ctx, ri, obj, opts.DryRun)
	}

	fieldManager := opts.FieldManager
	if fieldManager == "" {
		fieldManager = DefaultFieldManager
	}

	data, err := json.Marshal(obj.Object)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", what, err)
	}

	patchOpts := metav1.PatchOptions{
		FieldManager: fieldManager,
		Force:        ptr.To(true),
		DryRun:       dryRunFlag(opts.DryRun),
	}

	applied, err := ri.Patch(ctx, obj.GetName(), types.ApplyPatchType, data, patchOpts)
	if err != nil {
		return nil, upstream("apply", what, err)
	}

	return applied, nil
}

// createOrUpdate is the client-side apply path: create the object, or
// replace it over the live resourceVersion when it already exists.
func (c *kubernetesClient) createOrUpdate(ctx context.Context, ri dynamic.ResourceInterface, obj *unstructured.Unstructured, dryRun bool) (*unstructured.Unstructured, error) {
	what := describe(obj.GetKind(), obj.GetNamespace(), obj.GetName())

	existing, err := ri.Get(ctx, obj.GetName(), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		created, err := ri.Create(ctx, obj, metav1.CreateOptions{DryRun: dryRunFlag(dryRun)})
		if err != nil {
			return nil, upstream("create", what, err)
		}
		return created, nil
	}
	if err != nil {
		return nil, upstream("get", what, err)
	}

	desired := obj.DeepCopy()
	desired.SetResourceVersion(existing.GetResourceVersion())

	updated, err := ri.Update(ctx, desired, metav1.UpdateOptions{DryRun: dryRunFlag(dryRun)})
	if err != nil {
		return nil, upstream("update", what, err)
	}
	return updated, nil
}

// Delete removes a resource by kind, namespace and name.
func (c *kubernetesClient) Delete(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string, opts DeleteOptions) error {
	c.logOperation("delete", namespace, gvk.Kind, name)

	ri, err := c.resourceInterface(ctx, gvk, namespace)
	if err != nil {
		return err
	}

	deleteOpts := metav1.DeleteOptions{
		GracePeriodSeconds: opts.GracePeriodSeconds,
		PropagationPolicy:  opts.PropagationPolicy,
		DryRun:             dryRunFlag(opts.DryRun),
	}

	if err := ri.Delete(ctx, name, deleteOpts); err != nil {
		return upstream("delete", describe(gvk.Kind, namespace, name), err)
	}

	return nil
}

// resourceInterface maps gvk and scopes the dynamic client to namespace.
// The namespace is dropped for cluster-scoped kinds.
func (c *kubernetesClient) resourceInterface(ctx context.Context, gvk schema.GroupVersionKind, namespace string) (dynamic.ResourceInterface, error) {
	dynamicClient, err := c.getDynamicClient()
	if err != nil {
		return nil, err
	}

	mapping, err := c.RESTMapping(ctx, gvk)
	if err != nil {
		return nil, err
	}

	if IsNamespaced(mapping) {
		return dynamicClient.Resource(mapping.Resource).Namespace(namespace), nil
	}
	return dynamicClient.Resource(mapping.Resource), nil
}

func dryRunFlag(dryRun bool) []string {
	if dryRun {
		return []string{metav1.DryRunAll}
	}
	return nil
}

func describe(kind, namespace, name string) string {
	switch {
	case namespace == "" && name == "":
		return kind
	case namespace == "":
		return fmt.Sprintf("%s %q", kind, name)
	case name == "":
		return fmt.Sprintf("%s in %q", kind, namespace)
	default:
		return fmt.Sprintf("%s %s/%s", kind, namespace, name)
	}
}
