package dispatch

import (
	"context"
	"encoding/json"
)

// Tool is the signature shown to the reasoning engine describing a tool.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// InvokeFunc performs a tool's operation with already validated arguments
// and returns the normalized result.
type InvokeFunc func(ctx context.Context, args json.RawMessage) (any, error)

// ToolSpec is a named, described, schema-validated tool backed by an adapter
// operation. It is immutable once built.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Invoke      InvokeFunc
}

// Tool returns the engine-visible signature of the spec.
func (s ToolSpec) Tool() Tool {
	return Tool{Name: s.Name, Description: s.Description, Parameters: s.Parameters}
}

// ToolExecutor lists tools and invokes them by name. Invoke never returns an
// error: every failure is reported as an error ToolResult so the dispatch loop
// can feed it back to the reasoning engine.
type ToolExecutor interface {
	Tools() []Tool
	Invoke(ctx context.Context, name string, args json.RawMessage) ToolResult
}

// ToolResult is the outcome of a tool invocation. When IsError is false,
// Content holds the serialized JSON payload. Otherwise Content holds a
// human-readable message and Code its category.
type ToolResult struct {
	Content string
	IsError bool
	Code    ErrorCode
}

// OkResult returns a successful result carrying payload.
func OkResult(payload json.RawMessage) ToolResult {
	return ToolResult{Content: string(payload)}
}

// DecodeArguments unmarshals tool arguments into v. Empty args decode as {}.
func DecodeArguments(args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &ArgumentError{Reason: "arguments do not match the tool's parameters"}
	}
	return nil
}

// ErrResult returns an error result describing err.
func ErrResult(err error) ToolResult {
	return ToolResult{Content: err.Error(), IsError: true, Code: CodeOf(err)}
}
