package k8stest

import (
	"context"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
)

// Write is one mutating call made through the dynamic client, with the
// options the caller passed. The client-go dynamic fake drops those options
// from its recorded actions.
type Write struct {
	Verb      string
	Resource  schema.GroupVersionResource
	Namespace string
	Name      string

	PatchType     types.PatchType
	PatchOptions  metav1.PatchOptions
	CreateOptions metav1.CreateOptions
	UpdateOptions metav1.UpdateOptions
	DeleteOptions metav1.DeleteOptions
}

// Write verbs.
const (
	VerbPatch  = "patch"
	VerbCreate = "create"
	VerbUpdate = "update"
	VerbDelete = "delete"
)

type writeRecorder struct {
	mu     sync.Mutex
	writes []Write
}

func (r *writeRecorder) record(w Write) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, w)
}

func (r *writeRecorder) list(verb string) []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Write
	for _, w := range r.writes {
		if verb == "" || w.Verb == verb {
			out = append(out, w)
		}
	}
	return out
}

// recordingDynamic wraps a dynamic.Interface and records every write.
type recordingDynamic struct {
	inner    dynamic.Interface
	recorder *writeRecorder
}

func (d *recordingDynamic) Resource(gvr schema.GroupVersionResource) dynamic.NamespaceableResourceInterface {
	inner := d.inner.Resource(gvr)
	return &recordingNamespaceable{
		recordingResource: &recordingResource{ResourceInterface: inner, recorder: d.recorder, gvr: gvr},
		inner:             inner,
	}
}

type recordingNamespaceable struct {
	*recordingResource
	inner dynamic.NamespaceableResourceInterface
}

func (n *recordingNamespaceable) Namespace(namespace string) dynamic.ResourceInterface {
	return &recordingResource{
		ResourceInterface: n.inner.Namespace(namespace),
		recorder:          n.recorder,
		gvr:               n.gvr,
		namespace:         namespace,
	}
}

type recordingResource struct {
	dynamic.ResourceInterface
	recorder  *writeRecorder
	gvr       schema.GroupVersionResource
	namespace string
}

func (r *recordingResource) write(verb, name string) Write {
	return Write{Verb: verb, Resource: r.gvr, Namespace: r.namespace, Name: name}
}

func (r *recordingResource) Patch(ctx context.Context, name string, pt types.PatchType, data []byte, options metav1.PatchOptions, subresources ...string) (*unstructured.Unstructured, error) {
	w := r.write(VerbPatch, name)
	w.PatchType = pt
	w.PatchOptions = options
	r.recorder.record(w)
	return r.ResourceInterface.Patch(ctx, name, pt, data, options, subresources...)
}

func (r *recordingResource) Create(ctx context.Context, obj *unstructured.Unstructured, options metav1.CreateOptions, subresources ...string) (*unstructured.Unstructured, error) {
	w := r.write(VerbCreate, obj.GetName())
	w.CreateOptions = options
	r.recorder.record(w)
	return r.ResourceInterface.Create(ctx, obj, options, subresources...)
}

func (r *recordingResource) Update(ctx context.Context, obj *unstructured.Unstructured, options metav1.UpdateOptions, subresources ...string) (*unstructured.Unstructured, error) {
	w := r.write(VerbUpdate, obj.GetName())
	w.UpdateOptions = options
	r.recorder.record(w)
	return r.ResourceInterface.Update(ctx, obj, options, subresources...)
}

func (r *recordingResource) Delete(ctx context.Context, name string, options metav1.DeleteOptions, subresources ...string) error {
	w := r.write(VerbDelete, name)
	w.DeleteOptions = options
	r.recorder.record(w)
	return r.ResourceInterface.Delete(ctx, name, options, subresources...)
}

// Writes returns the dynamic writes issued so far with the given verb, or
// every write when verb is empty.
func (f *Fixture) Writes(verb string) []Write {
	return f.writes.list(verb)
}
