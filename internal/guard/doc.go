// Package guard decides whether a mutating operation may proceed.
//
// The Engine applies three checks in order and stops at the first failure:
//
//  1. read-only mode (MCP_K8S_READONLY=true) denies every mutating operation
//  2. a non-empty MCP_K8S_NAMESPACE_ALLOWLIST restricts target namespaces
//  3. a non-empty MCP_K8S_KIND_ALLOWLIST restricts target kinds
//
// Denials are returned as *Violation errors carrying a machine-readable code
// and a remediation hint. Rate limiting reports through the same type with
// CodeRateLimit so callers surface every denial uniformly.
//
// The environment is read on each call; nothing is cached.
package guard
