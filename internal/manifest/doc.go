// Package manifest turns caller input into addressable Kubernetes objects.
//
// Decode splits a multi-document YAML stream into Documents. Each document
// is checked against a small JSON Schema requiring apiVersion, kind and
// metadata.name, and failures are kept inline so one bad document never
// blocks the others. Resolve builds an Identifier from the loose
// group/version/kind/namespace/name arguments of the get and delete tools.
package manifest
