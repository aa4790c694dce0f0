package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fwojciec/dispatch"
	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

// Interface compliance check.
var _ dispatch.Engine = (*Client)(nil)

// Client implements [dispatch.Engine] for the OpenAI Responses API.
type Client struct {
	client oai.Client
	model  string
}

type settings struct {
	model       string
	requestOpts []option.RequestOption
}

// Option configures a [Client].
type Option func(*settings)

// WithModel sets the model ID. Default is gpt-4o.
func WithModel(model string) Option {
	return func(s *settings) { s.model = model }
}

// WithBaseURL overrides the API base URL. Useful for testing with httptest
// and for OpenAI-compatible gateways.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.requestOpts = append(s.requestOpts, option.WithBaseURL(url)) }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.requestOpts = append(s.requestOpts, option.WithHTTPClient(hc)) }
}

// WithMaxRetries sets how often the SDK retries failed requests.
func WithMaxRetries(n int) Option {
	return func(s *settings) { s.requestOpts = append(s.requestOpts, option.WithMaxRetries(n)) }
}

// New creates a new OpenAI [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	s := settings{model: defaultModel}
	for _, o := range opts {
		o(&s)
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, s.requestOpts...)
	return &Client{
		client: oai.NewClient(reqOpts...),
		model:  s.model,
	}
}

// Next sends the transcript to the Responses API and returns its decision.
func (c *Client) Next(ctx context.Context, req dispatch.Request) (dispatch.Step, error) {
	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: ConvertMessages(req.SystemPrompt, req.Transcript),
		},
	}
	if tools := ConvertTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	resp, err := c.client.Responses.New(ctx, params,
		option.WithJSONSet("temperature", 0),
		option.WithJSONSet("parallel_tool_calls", false),
	)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return StepFrom(resp)
}

// StepFrom picks the next step out of a response: the first function call
// when there is one, otherwise the output text.
// Exported for testing.
func StepFrom(resp *responses.Response) (dispatch.Step, error) {
	if resp == nil {
		return nil, fmt.Errorf("openai: empty response")
	}
	for _, item := range resp.Output {
		if item.Type != "function_call" {
			continue
		}
		fc := item.AsFunctionCall()
		args := json.RawMessage(fc.Arguments)
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		if !json.Valid(args) {
			return nil, fmt.Errorf("openai: arguments of %s are not valid JSON", fc.Name)
		}
		return dispatch.CallTool{ID: fc.CallID, Name: fc.Name, Arguments: args}, nil
	}
	return dispatch.Final{Text: resp.OutputText()}, nil
}

// ConvertMessages converts the system prompt and a dispatch transcript to
// Responses API input items.
// Exported for testing.
func ConvertMessages(system string, msgs []dispatch.Message) []responses.ResponseInputItemUnionParam {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(msgs)+1)
	if system != "" {
		items = append(items, responses.ResponseInputItemParamOfMessage(system, responses.EasyInputMessageRoleSystem))
	}
	for _, msg := range msgs {
		switch m := msg.(type) {
		case dispatch.UserMessage:
			items = append(items, responses.ResponseInputItemParamOfMessage(m.Text, responses.EasyInputMessageRoleUser))
		case dispatch.AssistantMessage:
			args := string(m.Call.Arguments)
			if args == "" {
				args = "{}"
			}
			items = append(items, responses.ResponseInputItemParamOfFunctionCall(args, m.Call.ID, m.Call.Name))
		case dispatch.ToolResultMessage:
			output := m.Result.Content
			if m.Result.IsError {
				output = "error: " + output
			}
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(m.CallID, output))
		}
	}
	return items
}

// ConvertTools converts dispatch Tools to Responses API function tools.
// Exported for testing.
func ConvertTools(tools []dispatch.Tool) []responses.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	result := make([]responses.ToolUnionParam, len(tools))
	for i, t := range tools {
		// Parameters were compiled by the registry, so they are valid JSON.
		var schema map[string]any
		_ = json.Unmarshal(t.Parameters, &schema)
		result[i] = responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        t.Name,
				Description: oai.String(t.Description),
				Parameters:  schema,
			},
		}
	}
	return result
}
