package output

import (
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/duration"
)

// ItemSummary is the projection returned for each item of a list. Full
// bodies are never listed.
type ItemSummary struct {
	APIVersion        string `json:"apiVersion"`
	Kind              string `json:"kind"`
	Name              string `json:"name"`
	Namespace         string `json:"namespace,omitempty"`
	UID               string `json:"uid"`
	CreationTimestamp string `json:"creationTimestamp,omitempty"`
}

// Summarize projects a single object.
func Summarize(obj *unstructured.Unstructured) ItemSummary {
	s := ItemSummary{
		APIVersion: obj.GetAPIVersion(),
		Kind:       obj.GetKind(),
		Name:       obj.GetName(),
		Namespace:  obj.GetNamespace(),
		UID:        string(obj.GetUID()),
	}
	if ts := obj.GetCreationTimestamp(); !ts.IsZero() {
		s.CreationTimestamp = ts.UTC().Format(time.RFC3339)
	}
	return s
}

// SummarizeList projects the items of a list, keeping at most limit
// entries when limit is positive. The list's apiVersion/kind fill in items
// that carry none, which is what some fake and aggregated APIs return.
func SummarizeList(list *unstructured.UnstructuredList, limit int) []ItemSummary {
	itemKind := ""
	if kind := list.GetKind(); len(kind) > len("List") {
		itemKind = kind[:len(kind)-len("List")]
	}

	items := list.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	summaries := make([]ItemSummary, 0, len(items))
	for i := range items {
		s := Summarize(&items[i])
		if s.APIVersion == "" {
			s.APIVersion = list.GetAPIVersion()
		}
		if s.Kind == "" {
			s.Kind = itemKind
		}
		summaries = append(summaries, s)
	}
	return summaries
}

// Age renders the time since created the way kubectl does ("5m", "3d").
func Age(created, now time.Time) string {
	if created.IsZero() {
		return ""
	}
	return duration.HumanDuration(now.Sub(created))
}
