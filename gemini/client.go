package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fwojciec/dispatch"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ dispatch.Engine = (*Client)(nil)

// Client implements [dispatch.Engine] for the Google Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

type settings struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*settings)

// WithModel sets the model ID. Default is gemini-2.5-flash.
func WithModel(model string) Option {
	return func(s *settings) { s.model = model }
}

// WithBaseURL overrides the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.httpClient = hc }
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	s := settings{model: defaultModel}
	for _, o := range opts {
		o(&s)
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.httpClient,
	}
	if s.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.baseURL}
	}
	gc, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &Client{client: gc, model: s.model}, nil
}

// Next sends the transcript to Gemini and returns its decision.
func (c *Client) Next(ctx context.Context, req dispatch.Request) (dispatch.Step, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, ConvertMessages(req.Transcript), buildConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return StepFrom(resp)
}

// StepFrom picks the next step out of a Gemini response: the first function
// call when there is one, otherwise the text answer.
// Exported for testing.
func StepFrom(resp *genai.GenerateContentResponse) (dispatch.Step, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: response has no candidates")
	}
	if calls := resp.FunctionCalls(); len(calls) > 0 {
		fc := calls[0]
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return nil, fmt.Errorf("gemini: encode arguments of %s: %w", fc.Name, err)
		}
		if fc.Args == nil {
			args = json.RawMessage(`{}`)
		}
		return dispatch.CallTool{ID: fc.ID, Name: fc.Name, Arguments: args}, nil
	}
	return dispatch.Final{Text: resp.Text()}, nil
}

func buildConfig(req dispatch.Request) *genai.GenerateContentConfig {
	var temperature float32
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
		Tools:       ConvertTools(req.Tools),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	return config
}

// ConvertMessages converts a dispatch transcript to genai Contents.
// Exported for testing.
func ConvertMessages(msgs []dispatch.Message) []*genai.Content {
	var result []*genai.Content
	for _, msg := range msgs {
		switch m := msg.(type) {
		case dispatch.UserMessage:
			result = append(result, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Text}},
			})
		case dispatch.AssistantMessage:
			// Arguments were produced by an engine; a malformed payload is sent as no args.
			var args map[string]any
			_ = json.Unmarshal(m.Call.Arguments, &args)
			result = append(result, &genai.Content{
				Role: "model",
				Parts: []*genai.Part{{
					FunctionCall: &genai.FunctionCall{
						ID:   m.Call.ID,
						Name: m.Call.Name,
						Args: args,
					},
				}},
			})
		case dispatch.ToolResultMessage:
			var responseMap map[string]any
			if m.Result.IsError {
				responseMap = map[string]any{"error": m.Result.Content}
			} else {
				responseMap = map[string]any{"output": m.Result.Content}
			}
			result = append(result, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       m.CallID,
						Name:     m.Name,
						Response: responseMap,
					},
				}},
			})
		}
	}
	return result
}

// ConvertTools converts dispatch Tools to genai Tools.
// Exported for testing.
func ConvertTools(tools []dispatch.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		// Parameters were compiled by the registry, so they are valid JSON.
		var schema map[string]any
		_ = json.Unmarshal(t.Parameters, &schema)
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: schema,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
