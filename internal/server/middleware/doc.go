// Package middleware provides the HTTP middleware wrapped around the MCP
// endpoint and the health endpoints: request metrics, security headers,
// CORS for browser-based MCP clients and a request body limit.
package middleware
