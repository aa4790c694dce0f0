package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fwojciec/dispatch"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want dispatch.ErrorCode
	}{
		{"nil", nil, ""},
		{"unknown tool", fmt.Errorf("nope: %w", dispatch.ErrUnknownTool), dispatch.CodeUnknownTool},
		{"argument", &dispatch.ArgumentError{Field: "status", Reason: "bad"}, dispatch.CodeInvalidArguments},
		{"transport", dispatch.TransportError("monday", "timed out", context.DeadlineExceeded), dispatch.CodeTransport},
		{"data", dispatch.DataError("stripe", "bad reply", nil), dispatch.CodeData},
		{"budget", fmt.Errorf("x: %w", dispatch.ErrStepBudgetExceeded), dispatch.CodeStepBudgetExceeded},
		{"engine", fmt.Errorf("x: %w", dispatch.ErrEngine), dispatch.CodeEngine},
		{"cancelled", context.Canceled, dispatch.CodeCancelled},
		{"other", errors.New("dial tcp: refused"), dispatch.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, dispatch.CodeOf(tt.err))
		})
	}
}

func TestClassified(t *testing.T) {
	t.Parallel()
	assert.True(t, dispatch.Classified(dispatch.DataError("monday", "board not found", nil)))
	assert.False(t, dispatch.Classified(errors.New("raw")))
	assert.False(t, dispatch.Classified(nil))
}

func TestArgumentError(t *testing.T) {
	t.Parallel()
	err := &dispatch.ArgumentError{Field: "status", Reason: "must be one of working, done"}
	assert.ErrorIs(t, err, dispatch.ErrInvalidArguments)
	assert.Equal(t, "invalid arguments: status: must be one of working, done", err.Error())

	noField := &dispatch.ArgumentError{Reason: "not valid JSON"}
	assert.Equal(t, "invalid arguments: not valid JSON", noField.Error())
}

func TestAdapterError_HidesCause(t *testing.T) {
	t.Parallel()
	cause := errors.New("dial tcp 10.0.0.1:443: connect: connection refused")
	err := dispatch.TransportError("stripe", "service unreachable", cause)
	assert.Equal(t, "stripe: service unreachable", err.Error())
	assert.ErrorIs(t, err, dispatch.ErrTransport)
	assert.ErrorIs(t, err, cause)

	var ae *dispatch.AdapterError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &ae))
	assert.Equal(t, "stripe", ae.Service)
}

func TestPublicMessage(t *testing.T) {
	t.Parallel()
	raw := errors.New("googleapi: Error 500: secret internals")
	engine := fmt.Errorf("reasoning engine: %w: %w", dispatch.ErrEngine, raw)

	assert.NotContains(t, dispatch.PublicMessage(engine), "secret")
	assert.Equal(t, "could not complete the request within the allowed number of steps",
		dispatch.PublicMessage(fmt.Errorf("x: %w", dispatch.ErrStepBudgetExceeded)))
	assert.Equal(t, "the request timed out", dispatch.PublicMessage(context.DeadlineExceeded))
	assert.Equal(t, "unexpected error occurred, please try again later", dispatch.PublicMessage(raw))
}
