package manifest

import (
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Input is the partial addressing information a caller supplies.
type Input struct {
	Group     string
	Version   string
	Kind      string
	Namespace string
	Name      string
}

// Identifier is a fully-qualified resource address handed to the
// Kubernetes client. Group is empty for the core API group.
type Identifier struct {
	Group     string
	Version   string
	Kind      string
	Namespace string
	Name      string
}

// APIVersion returns "group/version", or just "version" for the core group.
func (id Identifier) APIVersion() string {
	if id.Group == "" {
		return id.Version
	}
	return id.Group + "/" + id.Version
}

func (id Identifier) GroupVersionKind() schema.GroupVersionKind {
	return schema.GroupVersionKind{Group: id.Group, Version: id.Version, Kind: id.Kind}
}

// Resolve fills in the default namespace and rejects identifiers that
// cannot address anything.
func Resolve(in Input, defaultNamespace string) (Identifier, error) {
	version := strings.TrimSpace(in.Version)
	if version == "" {
		return Identifier{}, NewValidationError("version", "version is required")
	}
	kind := strings.TrimSpace(in.Kind)
	if kind == "" {
		return Identifier{}, NewValidationError("kind", "kind is required")
	}

	namespace := in.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}

	return Identifier{
		Group:     strings.TrimSpace(in.Group),
		Version:   version,
		Kind:      kind,
		Namespace: namespace,
		Name:      in.Name,
	}, nil
}

// FromObject returns the identifier of a decoded manifest object. The
// object's own namespace is kept as-is, so cluster-scoped objects stay
// cluster-scoped.
func FromObject(obj *unstructured.Unstructured) Identifier {
	gvk := obj.GroupVersionKind()
	return Identifier{
		Group:     gvk.Group,
		Version:   gvk.Version,
		Kind:      gvk.Kind,
		Namespace: obj.GetNamespace(),
		Name:      obj.GetName(),
	}
}
