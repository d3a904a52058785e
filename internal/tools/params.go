package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/giantswarm/mcp-k8s-guard/internal/manifest"
)

// Argument helpers. JSON numbers arrive as float64 and JSON objects as
// map[string]interface{}. Every malformed argument is a *manifest.ValidationError.

// RequiredString returns a non-blank string argument.
func RequiredString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", manifest.NewValidationError(key, "%s is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", manifest.NewValidationError(key, "%s must be a string", key)
	}
	if strings.TrimSpace(s) == "" {
		return "", manifest.NewValidationError(key, "%s is required", key)
	}
	return s, nil
}

// OptionalString returns a string argument, or "" when absent.
func OptionalString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", manifest.NewValidationError(key, "%s must be a string", key)
	}
	return s, nil
}

// OptionalBool returns a boolean argument, or def when absent.
func OptionalBool(args map[string]interface{}, key string, def bool) (bool, error) {
	p, err := OptionalBoolPtr(args, key)
	if err != nil || p == nil {
		return def, err
	}
	return *p, nil
}

// OptionalBoolPtr returns nil when the argument is absent, so callers can
// tell an explicit false from a missing value. "true" and "false" strings
// are accepted.
func OptionalBoolPtr(args map[string]interface{}, key string) (*bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch b := v.(type) {
	case bool:
		return &b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return nil, manifest.NewValidationError(key, "%s must be a boolean", key)
		}
		return &parsed, nil
	default:
		return nil, manifest.NewValidationError(key, "%s must be a boolean", key)
	}
}

// OptionalInt64 returns nil when the argument is absent. Fractional
// numbers are rejected.
func OptionalInt64(args map[string]interface{}, key string) (*int64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}

	var n int64
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, manifest.NewValidationError(key, "%s must be an integer", key)
		}
		n = int64(x)
	case int:
		n = int64(x)
	case int64:
		n = x
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil, manifest.NewValidationError(key, "%s must be an integer", key)
		}
		n = parsed
	default:
		return nil, manifest.NewValidationError(key, "%s must be an integer", key)
	}
	return &n, nil
}

// NonNegativeInt64 is OptionalInt64 that also rejects negative values.
func NonNegativeInt64(args map[string]interface{}, key string) (*int64, error) {
	n, err := OptionalInt64(args, key)
	if err != nil || n == nil {
		return n, err
	}
	if *n < 0 {
		return nil, manifest.NewValidationError(key, "%s must be >= 0", key)
	}
	return n, nil
}

// StringSlice returns an array-of-strings argument, or nil when absent.
func StringSlice(args map[string]interface{}, key string) ([]string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch items := v.(type) {
	case []string:
		return items, nil
	case []interface{}:
		out := make([]string, 0, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, manifest.NewValidationError(fmt.Sprintf("%s[%d]", key, i), "must be a string")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, manifest.NewValidationError(key, "%s must be an array of strings", key)
	}
}

// StringMap returns an object-of-strings argument, or nil when absent.
func StringMap(args map[string]interface{}, key string) (map[string]string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch m := v.(type) {
	case map[string]string:
		return m, nil
	case map[string]interface{}:
		out := make(map[string]string, len(m))
		for k, item := range m {
			s, ok := item.(string)
			if !ok {
				return nil, manifest.NewValidationError(key+"."+k, "must be a string")
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, manifest.NewValidationError(key, "%s must be an object of strings", key)
	}
}
