//go:build property
// +build property

package output

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: Redact never echoes its input and redacted views never contain
// the raw value.
func TestRedactNeverEchoes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("Redact is constant", prop.ForAll(
		func(value string) bool {
			return Redact(value) == RedactedValue && Redact([]byte(value)) == RedactedValue
		},
		gen.AnyString(),
	))

	properties.Property("undisclosed view hides every value", prop.ForAll(
		func(key, value string) bool {
			if len(value) < 12 || strings.Contains(RedactedValue, value) {
				return true
			}
			view := ViewSecretData("Opaque", map[string][]byte{key: []byte(value)}, nil, false)
			for _, v := range view.Data {
				if strings.Contains(v, value) {
					return false
				}
			}
			return true
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
