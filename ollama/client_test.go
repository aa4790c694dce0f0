package ollama_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/ollama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertMessages(t *testing.T) {
	t.Parallel()

	got, err := ollama.ConvertMessages("be brief", []dispatch.Message{
		dispatch.UserMessage{Text: "what is done?"},
		dispatch.AssistantMessage{Call: dispatch.CallTool{ID: "c1", Name: "listItemsByStatus", Arguments: json.RawMessage(`{"boardId":"9","status":"done"}`)}},
		dispatch.ToolResultMessage{CallID: "c1", Name: "listItemsByStatus", Result: dispatch.ToolResult{Content: "monday: board 9 not found", IsError: true}},
	})
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "system", got[0].Role)
	assert.Equal(t, "be brief", got[0].Content)
	assert.Equal(t, "user", got[1].Role)

	assert.Equal(t, "assistant", got[2].Role)
	require.Len(t, got[2].ToolCalls, 1)
	assert.Equal(t, "listItemsByStatus", got[2].ToolCalls[0].Function.Name)
	args, err := json.Marshal(got[2].ToolCalls[0].Function.Arguments)
	require.NoError(t, err)
	assert.JSONEq(t, `{"boardId":"9","status":"done"}`, string(args))

	assert.Equal(t, "tool", got[3].Role)
	assert.Equal(t, "listItemsByStatus", got[3].ToolName)
	assert.Equal(t, "error: monday: board 9 not found", got[3].Content)
}

func TestConvertTools(t *testing.T) {
	t.Parallel()

	got, err := ollama.ConvertTools([]dispatch.Tool{
		{Name: "listBoards", Description: "List boards", Parameters: json.RawMessage(`{"type":"object","properties":{}}`)},
		{Name: "sendEmail", Description: "Send an email"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "function", got[0].Type)
	assert.Equal(t, "listBoards", got[0].Function.Name)
	assert.Equal(t, "List boards", got[0].Function.Description)
	assert.Equal(t, "sendEmail", got[1].Function.Name)

	none, err := ollama.ConvertTools(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestClient_Next(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
		want  dispatch.Step
	}{
		{
			name:  "tool call",
			reply: `{"model":"llama3.1","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"listBoards","arguments":{}}},{"function":{"name":"listChannels","arguments":{}}}]},"done":true}`,
			want:  dispatch.CallTool{Name: "listBoards", Arguments: json.RawMessage(`{}`)},
		},
		{
			name:  "text",
			reply: `{"model":"llama3.1","message":{"role":"assistant","content":"2 done items"},"done":true}`,
			want:  dispatch.Final{Text: "2 done items"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var body map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/chat", r.URL.Path)
				data, _ := io.ReadAll(r.Body)
				assert.NoError(t, json.Unmarshal(data, &body))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.reply))
			}))
			defer srv.Close()

			c, err := ollama.New(srv.URL, ollama.WithModel("llama3.1"))
			require.NoError(t, err)
			step, err := c.Next(context.Background(), dispatch.Request{
				Transcript: []dispatch.Message{dispatch.UserMessage{Text: "hi"}},
				Tools:      []dispatch.Tool{{Name: "listBoards", Parameters: json.RawMessage(`{"type":"object"}`)}},
			})
			require.NoError(t, err)

			if call, ok := tt.want.(dispatch.CallTool); ok {
				got, ok := step.(dispatch.CallTool)
				require.True(t, ok)
				assert.Equal(t, call.Name, got.Name)
				assert.JSONEq(t, string(call.Arguments), string(got.Arguments))
			} else {
				assert.Equal(t, tt.want, step)
			}
			assert.Equal(t, "llama3.1", body["model"])
			assert.Equal(t, false, body["stream"])
			assert.Len(t, body["tools"], 1)
		})
	}
}

func TestClient_NextServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"nope\" not found, try pulling it first"}`))
	}))
	defer srv.Close()

	c, err := ollama.New(srv.URL, ollama.WithModel("nope"))
	require.NoError(t, err)
	_, err = c.Next(context.Background(), dispatch.Request{
		Transcript: []dispatch.Message{dispatch.UserMessage{Text: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama:")
	assert.Contains(t, err.Error(), "not found")
}
