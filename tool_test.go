package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fwojciec/dispatch"
	"github.com/stretchr/testify/assert"
)

func TestToolSpec_Tool(t *testing.T) {
	t.Parallel()
	spec := dispatch.ToolSpec{
		Name:        "listBoards",
		Description: "List boards",
		Parameters:  json.RawMessage(`{"type":"object"}`),
		Invoke: func(context.Context, json.RawMessage) (any, error) {
			return nil, nil
		},
	}
	tool := spec.Tool()
	assert.Equal(t, "listBoards", tool.Name)
	assert.Equal(t, "List boards", tool.Description)
	assert.JSONEq(t, `{"type":"object"}`, string(tool.Parameters))
}

func TestOkResult(t *testing.T) {
	t.Parallel()
	r := dispatch.OkResult(json.RawMessage(`[{"id":"1"}]`))
	assert.False(t, r.IsError)
	assert.Empty(t, r.Code)
	assert.Equal(t, `[{"id":"1"}]`, r.Content)
}

func TestErrResult(t *testing.T) {
	t.Parallel()
	r := dispatch.ErrResult(dispatch.TransportError("slack", "HTTP 500 Internal Server Error", errors.New("boom")))
	assert.True(t, r.IsError)
	assert.Equal(t, dispatch.CodeTransport, r.Code)
	assert.Equal(t, "slack: HTTP 500 Internal Server Error", r.Content)
}
