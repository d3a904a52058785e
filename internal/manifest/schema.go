package manifest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const objectSchemaURL = "https://mcp-k8s-guard.local/schemas/object.schema.json"

// objectSchema is the minimal shape every applied document must have.
const objectSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["apiVersion", "kind", "metadata"],
  "properties": {
    "apiVersion": {"type": "string", "minLength": 1},
    "kind": {"type": "string", "minLength": 1},
    "metadata": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "namespace": {"type": "string"}
      }
    }
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func compiledObjectSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(objectSchemaURL, strings.NewReader(objectSchema)); err != nil {
			compileErr = fmt.Errorf("failed to load object schema: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(objectSchemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("failed to compile object schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// checkShape validates a decoded JSON value. The returned reason is empty
// when the value is acceptable.
func checkShape(v interface{}) (field, reason string) {
	s, err := compiledObjectSchema()
	if err != nil {
		return "", err.Error()
	}
	if err := s.Validate(v); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			leaf := deepestCause(ve)
			return strings.TrimPrefix(leaf.InstanceLocation, "/"), leaf.Message
		}
		return "", err.Error()
	}
	return "", ""
}

// deepestCause follows the first cause chain down to the most specific error.
func deepestCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
