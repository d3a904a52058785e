package output

import (
	"encoding/base64"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/runtime"
)

// RedactedValue replaces every secret value that is not disclosed.
const RedactedValue = "REDACTED"

// sensitiveAnnotations are masked on Secret objects along with the data.
var sensitiveAnnotations = map[string]bool{
	"kubernetes.io/service-account.uid":                true,
	"kubernetes.io/service-account-token":              true,
	"kubectl.kubernetes.io/last-applied-configuration": true,
}

// Redact returns RedactedValue whatever the input. Every secret value that
// is not explicitly disclosed goes through here.
func Redact(_ any) string {
	return RedactedValue
}

// Disclose reports whether secret values may be returned in clear: the
// caller asked for them and read-only mode is off.
func Disclose(showValues, readOnly bool) bool {
	return showValues && !readOnly
}

// SecretView is the caller-facing projection of a Secret's data.
type SecretView struct {
	Type        string            `json:"type"`
	Data        map[string]string `json:"data"`
	MissingKeys []string          `json:"missingKeys,omitempty"`
}

// ViewSecretData projects data onto the requested keys, or onto every key
// when keys is empty. Disclosed values are base64-encoded; everything else
// is redacted. Requested keys that are absent are listed in MissingKeys.
func ViewSecretData(secretType string, data map[string][]byte, keys []string, disclose bool) SecretView {
	view := SecretView{Type: secretType, Data: map[string]string{}}

	if len(keys) == 0 {
		keys = make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	for _, k := range keys {
		value, ok := data[k]
		if !ok {
			view.MissingKeys = append(view.MissingKeys, k)
			continue
		}
		if disclose {
			view.Data[k] = base64.StdEncoding.EncodeToString(value)
		} else {
			view.Data[k] = Redact(value)
		}
	}
	return view
}

// MaskSecret returns a copy of obj with secret data and sensitive
// annotations redacted. Objects that are not Secrets are returned unchanged.
func MaskSecret(obj map[string]interface{}) map[string]interface{} {
	if !IsSecretResource(obj) {
		return obj
	}

	result := runtime.DeepCopyJSON(obj)
	for _, field := range []string{"data", "stringData"} {
		values, ok := result[field].(map[string]interface{})
		if !ok {
			continue
		}
		for key, v := range values {
			values[key] = Redact(v)
		}
	}

	if metadata, ok := result["metadata"].(map[string]interface{}); ok {
		if annotations, ok := metadata["annotations"].(map[string]interface{}); ok {
			for key, v := range annotations {
				if sensitiveAnnotations[key] {
					annotations[key] = Redact(v)
				}
			}
		}
	}
	return result
}

// IsSecretResource reports whether obj is a core Secret.
func IsSecretResource(obj map[string]interface{}) bool {
	if obj == nil {
		return false
	}
	kind, _ := obj["kind"].(string)
	return strings.EqualFold(kind, "Secret")
}
