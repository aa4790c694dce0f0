package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fwojciec/dispatch"
)

// Interface compliance check.
var _ dispatch.Engine = (*Client)(nil)

// Client implements [dispatch.Engine] for the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithModel sets the model ID.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates a new Anthropic [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Next sends the transcript to the Messages API and returns its decision.
func (c *Client) Next(ctx context.Context, req dispatch.Request) (dispatch.Step, error) {
	body, err := c.buildRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("anthropic: decode reply: %w", err)
	}
	return stepFrom(apiResp), nil
}

func (c *Client) buildRequestBody(req dispatch.Request) ([]byte, error) {
	apiReq := apiRequest{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		System:    convertSystem(req.SystemPrompt),
		Messages:  convertMessages(req.Transcript),
		Tools:     convertTools(req.Tools),
	}
	if len(apiReq.Tools) > 0 {
		apiReq.ToolChoice = &apiToolChoice{Type: "auto", DisableParallelToolUse: true}
	}
	injectCacheMarkers(&apiReq)

	return json.Marshal(apiReq)
}

// convertSystem converts a system prompt string to an array of content blocks
// suitable for the Anthropic API. Returns nil when the prompt is empty.
func convertSystem(prompt string) []apiContentBlock {
	if prompt == "" {
		return nil
	}
	return []apiContentBlock{{Type: "text", Text: prompt}}
}

// injectCacheMarkers sets cache_control breakpoints on the stable prefix of
// the request: the system prompt and the tool definitions.
func injectCacheMarkers(req *apiRequest) {
	cc := &apiCacheControl{Type: "ephemeral"}
	if len(req.System) > 0 {
		req.System[len(req.System)-1].CacheControl = cc
	}
	if len(req.Tools) > 0 {
		req.Tools[len(req.Tools)-1].CacheControl = cc
	}
}

func convertMessages(msgs []dispatch.Message) []apiMessage {
	var result []apiMessage
	for _, msg := range msgs {
		switch m := msg.(type) {
		case dispatch.UserMessage:
			result = append(result, apiMessage{
				Role:    "user",
				Content: []apiContentBlock{{Type: "text", Text: m.Text}},
			})
		case dispatch.AssistantMessage:
			input := m.Call.Arguments
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			result = append(result, apiMessage{
				Role:    "assistant",
				Content: []apiContentBlock{{Type: "tool_use", ID: m.Call.ID, Name: m.Call.Name, Input: input}},
			})
		case dispatch.ToolResultMessage:
			result = append(result, apiMessage{
				Role: "user",
				Content: []apiContentBlock{{
					Type:      "tool_result",
					ToolUseID: m.CallID,
					Content:   m.Result.Content,
					IsError:   m.Result.IsError,
				}},
			})
		}
	}
	return result
}

func convertTools(tools []dispatch.Tool) []apiTool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]apiTool, len(tools))
	for i, t := range tools {
		schema := t.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		result[i] = apiTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		}
	}
	return result
}

func stepFrom(resp apiResponse) dispatch.Step {
	var text []string
	for _, b := range resp.Content {
		switch b.Type {
		case "tool_use":
			args := b.Input
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			return dispatch.CallTool{ID: b.ID, Name: b.Name, Arguments: args}
		case "text":
			text = append(text, b.Text)
		}
	}
	return dispatch.Final{Text: strings.Join(text, "")}
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("anthropic: HTTP %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return fmt.Errorf("anthropic: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return fmt.Errorf("anthropic: %s: %s", apiErr.Error.Type, apiErr.Error.Message)
}
