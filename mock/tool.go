package mock

import (
	"context"
	"encoding/json"

	"github.com/fwojciec/dispatch"
)

// Interface compliance check.
var _ dispatch.ToolExecutor = (*ToolExecutor)(nil)

// ToolExecutor is a test double for dispatch.ToolExecutor.
// Set InvokeFn before calling Invoke. ToolsFn may be nil.
type ToolExecutor struct {
	ToolsFn  func() []dispatch.Tool
	InvokeFn func(ctx context.Context, name string, args json.RawMessage) dispatch.ToolResult
}

// Tools delegates to ToolsFn, returning nil when it is unset.
func (e *ToolExecutor) Tools() []dispatch.Tool {
	if e.ToolsFn == nil {
		return nil
	}
	return e.ToolsFn()
}

// Invoke delegates to InvokeFn.
func (e *ToolExecutor) Invoke(ctx context.Context, name string, args json.RawMessage) dispatch.ToolResult {
	return e.InvokeFn(ctx, name, args)
}
