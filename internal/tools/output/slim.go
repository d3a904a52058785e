package output

import "k8s.io/apimachinery/pkg/runtime"

// lastAppliedAnnotation duplicates the whole object and is dropped from output.
const lastAppliedAnnotation = "kubectl.kubernetes.io/last-applied-configuration"

// Slim returns a copy of obj without managedFields and the last-applied
// annotation. Both are large and rarely useful to a caller.
func Slim(obj map[string]interface{}) map[string]interface{} {
	if obj == nil {
		return nil
	}

	result := runtime.DeepCopyJSON(obj)
	metadata, ok := result["metadata"].(map[string]interface{})
	if !ok {
		return result
	}

	delete(metadata, "managedFields")
	if annotations, ok := metadata["annotations"].(map[string]interface{}); ok {
		delete(annotations, lastAppliedAnnotation)
		if len(annotations) == 0 {
			delete(metadata, "annotations")
		}
	}
	return result
}
