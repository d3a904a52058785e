package k8s

import (
	"context"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// RESTMapping resolves gvk to its resource and scope. A no-match error
// triggers one mapper reset and retry, since the kind may have been
// installed after discovery was cached. Concurrent resets of the same
// context share a single rediscovery.
func (c *kubernetesClient) RESTMapping(ctx context.Context, gvk schema.GroupVersionKind) (*meta.RESTMapping, error) {
	mapper, contextName, err := c.getMapper()
	if err != nil {
		return nil, upstream("discovery", gvk.Kind, err)
	}

	mapping, err := mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err == nil {
		return mapping, nil
	}
	if !meta.IsNoMatchError(err) {
		return nil, upstream("discovery", gvk.Kind, err)
	}

	resettable, ok := mapper.(meta.ResettableRESTMapper)
	if !ok {
		return nil, upstream("discovery", gvk.Kind, err)
	}

	c.debug("resetting REST mapper", "kube_context", contextName, "kind", gvk.String())
	_, _, _ = c.resetGroup.Do(contextName, func() (interface{}, error) {
		resettable.Reset()
		return nil, nil
	})

	mapping, err = mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return nil, upstream("discovery", gvk.Kind, err)
	}
	return mapping, nil
}

// IsNamespaced reports whether the mapping is for a namespace-scoped kind.
func IsNamespaced(mapping *meta.RESTMapping) bool {
	return mapping.Scope != nil && mapping.Scope.Name() == meta.RESTScopeNameNamespace
}
