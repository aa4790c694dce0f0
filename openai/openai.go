// Package openai implements [dispatch.Engine] for the OpenAI Responses API.
//
// It wraps github.com/openai/openai-go/v3. Requests run at temperature 0 with
// parallel tool calls disabled, so each reply carries at most one call.
package openai

const defaultModel = "gpt-4o"
