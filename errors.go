package dispatch

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request or configuration failed validation.
	ErrValidation = errors.New("validation error")

	// ErrUnknownTool indicates the requested tool is not in the registry.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments indicates tool arguments do not match the tool's schema.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrTransport indicates an external service could not be reached, timed
	// out, or answered with a non-success status.
	ErrTransport = errors.New("adapter transport failure")

	// ErrData indicates an external service replied with an unexpected shape.
	ErrData = errors.New("adapter data failure")

	// ErrStepBudgetExceeded indicates a run asked for more tool calls than allowed.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")

	// ErrEngine indicates the reasoning engine failed to produce a step.
	ErrEngine = errors.New("reasoning engine failure")
)

// ErrorCode is the stable, machine-readable category of a failure.
type ErrorCode string

const (
	CodeUnknownTool        ErrorCode = "unknown_tool"
	CodeInvalidArguments   ErrorCode = "invalid_arguments"
	CodeTransport          ErrorCode = "transport_failure"
	CodeData               ErrorCode = "data_failure"
	CodeStepBudgetExceeded ErrorCode = "step_budget_exceeded"
	CodeEngine             ErrorCode = "engine_failure"
	CodeCancelled          ErrorCode = "cancelled"
	CodeInternal           ErrorCode = "internal"
)

// CodeOf classifies err. It returns the empty code for nil.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownTool):
		return CodeUnknownTool
	case errors.Is(err, ErrInvalidArguments):
		return CodeInvalidArguments
	case errors.Is(err, ErrStepBudgetExceeded):
		return CodeStepBudgetExceeded
	case errors.Is(err, ErrEngine):
		return CodeEngine
	case errors.Is(err, ErrTransport):
		return CodeTransport
	case errors.Is(err, ErrData):
		return CodeData
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	default:
		return CodeInternal
	}
}

// Classified reports whether err belongs to a known category, which means its
// message is safe to show to the reasoning engine and to callers.
func Classified(err error) bool {
	c := CodeOf(err)
	return c != "" && c != CodeInternal
}

// PublicMessage returns the short message shown to callers for a failed run.
// It never includes the underlying error text.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrStepBudgetExceeded):
		return "could not complete the request within the allowed number of steps"
	case errors.Is(err, ErrEngine):
		return "the reasoning engine failed to answer, please try again"
	case errors.Is(err, context.DeadlineExceeded):
		return "the request timed out"
	case errors.Is(err, context.Canceled):
		return "the request was cancelled"
	case errors.Is(err, ErrValidation):
		return "the request was not valid"
	default:
		return "unexpected error occurred, please try again later"
	}
}

// ArgumentError reports a tool argument that failed validation.
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidArguments, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidArguments, e.Field, e.Reason)
}

// Unwrap returns ErrInvalidArguments.
func (e *ArgumentError) Unwrap() error { return ErrInvalidArguments }

// AdapterError is a failure reported by an adapter. Error() returns only the
// service name and summary. The underlying cause is reachable via errors.Is
// and errors.As but is never part of the message.
type AdapterError struct {
	Service string
	Summary string
	Kind    error // ErrTransport or ErrData
	Err     error
}

func (e *AdapterError) Error() string {
	return e.Service + ": " + e.Summary
}

// Unwrap returns the kind and, when set, the cause.
func (e *AdapterError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// TransportError returns an AdapterError of kind ErrTransport.
func TransportError(service, summary string, cause error) *AdapterError {
	return &AdapterError{Service: service, Summary: summary, Kind: ErrTransport, Err: cause}
}

// DataError returns an AdapterError of kind ErrData.
func DataError(service, summary string, cause error) *AdapterError {
	return &AdapterError{Service: service, Summary: summary, Kind: ErrData, Err: cause}
}
