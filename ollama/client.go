// Package ollama implements [dispatch.Engine] for a local Ollama server.
//
// Messages and tools are converted through JSON into the api package types,
// which keeps tool schemas and arguments exactly as the registry declared
// them.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fwojciec/dispatch"
	"github.com/ollama/ollama/api"
)

const (
	// DefaultHost is where a local Ollama server listens.
	DefaultHost  = "http://127.0.0.1:11434"
	defaultModel = "llama3.1"
)

// Interface compliance check.
var _ dispatch.Engine = (*Client)(nil)

// Client implements [dispatch.Engine] for the Ollama chat API.
type Client struct {
	client *api.Client
	model  string
}

type settings struct {
	model      string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*settings)

// WithModel sets the model name. Default is llama3.1.
func WithModel(model string) Option {
	return func(s *settings) { s.model = model }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.httpClient = hc }
}

// New creates a new Ollama [Client] talking to host. An empty host means
// [DefaultHost].
func New(host string, opts ...Option) (*Client, error) {
	s := settings{model: defaultModel, httpClient: http.DefaultClient}
	for _, o := range opts {
		o(&s)
	}
	if host == "" {
		host = DefaultHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid host: %w", err)
	}
	return &Client{client: api.NewClient(u, s.httpClient), model: s.model}, nil
}

// Next sends the transcript to Ollama and returns its decision.
func (c *Client) Next(ctx context.Context, req dispatch.Request) (dispatch.Step, error) {
	msgs, err := ConvertMessages(req.SystemPrompt, req.Transcript)
	if err != nil {
		return nil, err
	}
	tools, err := ConvertTools(req.Tools)
	if err != nil {
		return nil, err
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: msgs,
		Tools:    tools,
		Stream:   &stream,
		Options:  map[string]any{"temperature": 0},
	}

	var last api.ChatResponse
	if err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		last = resp
		return nil
	}); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return StepFrom(last.Message)
}

// StepFrom picks the next step out of an assistant message: the first tool
// call when there is one, otherwise its content.
// Exported for testing.
func StepFrom(msg api.Message) (dispatch.Step, error) {
	if len(msg.ToolCalls) == 0 {
		return dispatch.Final{Text: msg.Content}, nil
	}
	tc := msg.ToolCalls[0]
	args, err := json.Marshal(tc.Function.Arguments)
	if err != nil {
		return nil, fmt.Errorf("ollama: encode arguments of %s: %w", tc.Function.Name, err)
	}
	if string(args) == "null" {
		args = []byte(`{}`)
	}
	return dispatch.CallTool{ID: tc.ID, Name: tc.Function.Name, Arguments: args}, nil
}

type wireFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type wireToolCall struct {
	ID       string       `json:"id,omitempty"`
	Function wireFunction `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// ConvertMessages converts the system prompt and a dispatch transcript to
// Ollama chat messages.
// Exported for testing.
func ConvertMessages(system string, msgs []dispatch.Message) ([]api.Message, error) {
	wire := make([]wireMessage, 0, len(msgs)+1)
	if system != "" {
		wire = append(wire, wireMessage{Role: "system", Content: system})
	}
	for _, msg := range msgs {
		switch m := msg.(type) {
		case dispatch.UserMessage:
			wire = append(wire, wireMessage{Role: "user", Content: m.Text})
		case dispatch.AssistantMessage:
			args := m.Call.Arguments
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			wire = append(wire, wireMessage{
				Role:      "assistant",
				ToolCalls: []wireToolCall{{ID: m.Call.ID, Function: wireFunction{Name: m.Call.Name, Arguments: args}}},
			})
		case dispatch.ToolResultMessage:
			content := m.Result.Content
			if m.Result.IsError {
				content = "error: " + content
			}
			wire = append(wire, wireMessage{Role: "tool", Content: content, ToolName: m.Name, ToolCallID: m.CallID})
		}
	}

	var out []api.Message
	if err := roundTrip(wire, &out); err != nil {
		return nil, fmt.Errorf("ollama: convert messages: %w", err)
	}
	return out, nil
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

// ConvertTools converts dispatch Tools to Ollama tool declarations.
// Exported for testing.
func ConvertTools(tools []dispatch.Tool) ([]api.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	wire := make([]wireTool, len(tools))
	for i, t := range tools {
		wire[i].Type = "function"
		wire[i].Function.Name = t.Name
		wire[i].Function.Description = t.Description
		wire[i].Function.Parameters = t.Parameters
		if len(t.Parameters) == 0 {
			wire[i].Function.Parameters = json.RawMessage(`{"type":"object"}`)
		}
	}
	var out []api.Tool
	if err := roundTrip(wire, &out); err != nil {
		return nil, fmt.Errorf("ollama: convert tools: %w", err)
	}
	return out, nil
}

func roundTrip(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
