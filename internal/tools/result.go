package tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/mcp-k8s-guard/internal/guard"
	"github.com/giantswarm/mcp-k8s-guard/internal/k8s"
	"github.com/giantswarm/mcp-k8s-guard/internal/manifest"
)

// Error codes for failures that are not guard violations.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeUpstream   = "UPSTREAM_ERROR"
	CodeInternal   = "INTERNAL_ERROR"
)

// ErrorBody is the structured failure every tool returns.
type ErrorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// Classify maps err onto the failure taxonomy: guard violations keep their
// code and suggestion, validation and upstream errors get their fixed code.
func Classify(err error) ErrorBody {
	if v, ok := guard.AsViolation(err); ok {
		return ErrorBody{Code: string(v.Code), Message: v.Message, Suggestion: v.Suggestion}
	}
	if ve, ok := manifest.AsValidationError(err); ok {
		return ErrorBody{Code: CodeValidation, Message: ve.Error()}
	}
	if ue, ok := k8s.AsUpstreamError(err); ok {
		return ErrorBody{Code: CodeUpstream, Message: ue.Error()}
	}
	return ErrorBody{Code: CodeInternal, Message: err.Error()}
}

// ErrorResult turns err into an IsError result carrying the JSON body
// {"error": {...}}.
func ErrorResult(err error) *mcp.CallToolResult {
	return errorResult(Classify(err))
}

// ValidationErrorf returns a VALIDATION_ERROR result about field.
func ValidationErrorf(field, format string, args ...interface{}) *mcp.CallToolResult {
	return ErrorResult(manifest.NewValidationError(field, format, args...))
}

func errorResult(body ErrorBody) *mcp.CallToolResult {
	payload, err := json.MarshalIndent(errorEnvelope{Error: body}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(body.Message)
	}
	return mcp.NewToolResultError(string(payload))
}

// ParseErrorResult extracts the structured body from an IsError result.
func ParseErrorResult(result *mcp.CallToolResult) (ErrorBody, bool) {
	if result == nil || !result.IsError || len(result.Content) == 0 {
		return ErrorBody{}, false
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return ErrorBody{}, false
	}
	var envelope errorEnvelope
	if err := json.Unmarshal([]byte(text.Text), &envelope); err != nil || envelope.Error.Code == "" {
		return ErrorBody{Message: text.Text}, false
	}
	return envelope.Error, true
}

// JSONResult marshals v as indented JSON text.
func JSONResult(v interface{}) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult(fmt.Errorf("failed to marshal result: %w", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// JSONErrorResult marshals v as indented JSON text in an IsError result.
// It is used when a failure carries more than an ErrorBody, like the
// partial results of an aborted apply.
func JSONErrorResult(v interface{}) *mcp.CallToolResult {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult(fmt.Errorf("failed to marshal result: %w", err))
	}
	return mcp.NewToolResultError(string(payload))
}
