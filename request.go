package dispatch

import "context"

// Engine is the reasoning engine contract: given the transcript so far and
// the available tools, it returns exactly one next step.
type Engine interface {
	Next(ctx context.Context, req Request) (Step, error)
}

// Request is what the dispatch loop hands to the Engine on every step.
type Request struct {
	SystemPrompt string
	Transcript   []Message
	Tools        []Tool
}
