package dispatch_test

import (
	"encoding/json"
	"testing"

	"github.com/fwojciec/dispatch"
	"github.com/stretchr/testify/assert"
)

func TestRequest_Validate(t *testing.T) {
	t.Parallel()
	user := dispatch.UserMessage{Text: "list my boards"}
	call := dispatch.CallTool{ID: "c1", Name: "listBoards", Arguments: json.RawMessage(`{}`)}

	tests := []struct {
		name    string
		req     dispatch.Request
		wantErr bool
	}{
		{
			name: "valid",
			req: dispatch.Request{
				Transcript: []dispatch.Message{
					user,
					dispatch.AssistantMessage{Call: call},
					dispatch.ToolResultMessage{CallID: "c1", Name: "listBoards", Result: dispatch.OkResult(json.RawMessage(`[]`))},
				},
				Tools: []dispatch.Tool{{Name: "listBoards"}, {Name: "listItems"}},
			},
		},
		{name: "empty transcript", req: dispatch.Request{}, wantErr: true},
		{
			name:    "starts with tool result",
			req:     dispatch.Request{Transcript: []dispatch.Message{dispatch.ToolResultMessage{CallID: "c1"}}},
			wantErr: true,
		},
		{
			name: "duplicate tools",
			req: dispatch.Request{
				Transcript: []dispatch.Message{user},
				Tools:      []dispatch.Tool{{Name: "listBoards"}, {Name: "listBoards"}},
			},
			wantErr: true,
		},
		{
			name:    "empty user text",
			req:     dispatch.Request{Transcript: []dispatch.Message{dispatch.UserMessage{}}},
			wantErr: true,
		},
		{
			name: "tool result without call id",
			req: dispatch.Request{Transcript: []dispatch.Message{
				user,
				dispatch.ToolResultMessage{Name: "listBoards"},
			}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, dispatch.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMessage_Roles(t *testing.T) {
	t.Parallel()
	assert.Equal(t, dispatch.RoleUser, dispatch.UserMessage{}.Role())
	assert.Equal(t, dispatch.RoleAssistant, dispatch.AssistantMessage{}.Role())
	assert.Equal(t, dispatch.RoleTool, dispatch.ToolResultMessage{}.Role())
}
