package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	callReply = `{"id":"resp_1","object":"response","status":"completed","model":"gpt-4o","output":[
		{"type":"function_call","id":"fc_1","call_id":"call_1","name":"listItemsByStatus","arguments":"{\"boardId\":\"9\",\"status\":\"done\"}","status":"completed"}
	]}`
	textReply = `{"id":"resp_2","object":"response","status":"completed","model":"gpt-4o","output":[
		{"type":"message","id":"msg_1","role":"assistant","status":"completed","content":[{"type":"output_text","text":"2 done items","annotations":[]}]}
	]}`
)

func newServer(t *testing.T, captured *map[string]any, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Next(t *testing.T) {
	t.Parallel()

	t.Run("function call", func(t *testing.T) {
		t.Parallel()
		var body map[string]any
		srv := newServer(t, &body, callReply)

		c := openai.New("test-key", openai.WithBaseURL(srv.URL), openai.WithMaxRetries(0))
		step, err := c.Next(context.Background(), dispatch.Request{
			SystemPrompt: "be brief",
			Transcript: []dispatch.Message{
				dispatch.UserMessage{Text: "what is done?"},
				dispatch.AssistantMessage{Call: dispatch.CallTool{ID: "call_0", Name: "listBoards", Arguments: json.RawMessage(`{}`)}},
				dispatch.ToolResultMessage{CallID: "call_0", Name: "listBoards", Result: dispatch.OkResult(json.RawMessage(`[{"id":"9"}]`))},
			},
			Tools: []dispatch.Tool{
				{Name: "listBoards", Description: "List boards", Parameters: json.RawMessage(`{"type":"object"}`)},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, dispatch.CallTool{
			ID:        "call_1",
			Name:      "listItemsByStatus",
			Arguments: json.RawMessage(`{"boardId":"9","status":"done"}`),
		}, step)

		assert.Equal(t, "gpt-4o", body["model"])
		assert.Equal(t, float64(0), body["temperature"])
		assert.Equal(t, false, body["parallel_tool_calls"])

		input := body["input"].([]any)
		require.Len(t, input, 4)
		assert.Equal(t, "system", input[0].(map[string]any)["role"])
		assert.Equal(t, "user", input[1].(map[string]any)["role"])
		assert.Equal(t, "function_call", input[2].(map[string]any)["type"])
		assert.Equal(t, "call_0", input[2].(map[string]any)["call_id"])
		assert.Equal(t, "function_call_output", input[3].(map[string]any)["type"])
		assert.Equal(t, `[{"id":"9"}]`, input[3].(map[string]any)["output"])

		tools := body["tools"].([]any)
		require.Len(t, tools, 1)
		assert.Equal(t, "function", tools[0].(map[string]any)["type"])
		assert.Equal(t, "listBoards", tools[0].(map[string]any)["name"])
	})

	t.Run("text", func(t *testing.T) {
		t.Parallel()
		var body map[string]any
		srv := newServer(t, &body, textReply)

		c := openai.New("test-key", openai.WithBaseURL(srv.URL), openai.WithModel("gpt-4o-mini"))
		step, err := c.Next(context.Background(), dispatch.Request{
			Transcript: []dispatch.Message{dispatch.UserMessage{Text: "hi"}},
		})
		require.NoError(t, err)
		assert.Equal(t, dispatch.Final{Text: "2 done items"}, step)
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.NotContains(t, body, "tools")
	})

	t.Run("error result is marked", func(t *testing.T) {
		t.Parallel()
		var body map[string]any
		srv := newServer(t, &body, textReply)

		c := openai.New("test-key", openai.WithBaseURL(srv.URL))
		_, err := c.Next(context.Background(), dispatch.Request{
			Transcript: []dispatch.Message{
				dispatch.UserMessage{Text: "hi"},
				dispatch.AssistantMessage{Call: dispatch.CallTool{ID: "c", Name: "listBoards"}},
				dispatch.ToolResultMessage{CallID: "c", Name: "listBoards", Result: dispatch.ToolResult{Content: "monday: request timed out", IsError: true}},
			},
		})
		require.NoError(t, err)
		input := body["input"].([]any)
		require.Len(t, input, 3)
		assert.Equal(t, "{}", input[1].(map[string]any)["arguments"])
		assert.Equal(t, "error: monday: request timed out", input[2].(map[string]any)["output"])
	})
}

func TestClient_NextHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	c := openai.New("bad", openai.WithBaseURL(srv.URL), openai.WithMaxRetries(0))
	_, err := c.Next(context.Background(), dispatch.Request{
		Transcript: []dispatch.Message{dispatch.UserMessage{Text: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai:")
	assert.Contains(t, err.Error(), "401")
}
