package manifest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"sigs.k8s.io/yaml"
)

// Document is one entry of a decoded manifest: either a valid object ready
// for dispatch or a per-document validation failure.
type Document struct {
	index int
	obj   *unstructured.Unstructured
	err   *ValidationError
}

// Valid wraps an object that passed the shape check.
func Valid(obj *unstructured.Unstructured) Document {
	return Document{obj: obj}
}

// Invalid records a document that failed decoding or the shape check.
func Invalid(index int, reason string) Document {
	return Document{index: index, err: &ValidationError{Index: index, Reason: reason}}
}

// IsValid reports whether the document decoded into an object.
func (d Document) IsValid() bool {
	return d.err == nil && d.obj != nil
}

// Index is the 1-based position of the document in the stream.
func (d Document) Index() int {
	return d.index
}

// Object returns the decoded object, or nil for an invalid document.
func (d Document) Object() *unstructured.Unstructured {
	return d.obj
}

// Err returns the validation failure, or nil for a valid document.
func (d Document) Err() *ValidationError {
	return d.err
}

// Decode splits a multi-document YAML or JSON blob and validates each
// document. Null, empty and non-object documents are skipped. A document
// that fails to parse or lacks apiVersion, kind or metadata.name becomes an
// Invalid entry; the rest of the stream is still decoded.
//
// The error return is reserved for failures of the stream itself.
func Decode(blob string) ([]Document, error) {
	reader := utilyaml.NewYAMLReader(bufio.NewReader(strings.NewReader(blob)))

	var docs []Document
	for index := 1; ; index++ {
		raw, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ValidationError{Field: "manifest", Reason: fmt.Sprintf("failed to read manifest stream: %v", err)}
		}

		doc, ok := decodeDocument(index, raw)
		if ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func decodeDocument(index int, raw []byte) (Document, bool) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return Document{}, false
	}

	data, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return Invalid(index, fmt.Sprintf("invalid YAML: %v", err)), true
	}

	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return Invalid(index, fmt.Sprintf("invalid document: %v", err)), true
	}

	obj, isObject := value.(map[string]interface{})
	if !isObject {
		return Document{}, false
	}

	if field, reason := checkShape(obj); reason != "" {
		d := Invalid(index, reason)
		d.err.Field = field
		return d, true
	}

	d := Valid(&unstructured.Unstructured{Object: obj})
	d.index = index
	return d, true
}
