package dispatch

// Event is a sealed interface reporting dispatch loop progress.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventState signals a state transition. Step is the number of tool calls
// completed so far.
type EventState struct {
	State State
	Step  int
}

func (EventState) event() {}

// EventToolCall signals that a tool is about to be invoked.
type EventToolCall struct {
	Call CallTool
}

func (EventToolCall) event() {}

// EventToolResult carries the result of a completed tool call.
type EventToolResult struct {
	CallID string
	Name   string
	Result ToolResult
}

func (EventToolResult) event() {}

// EventFinal carries the final answer.
type EventFinal struct {
	Text string
}

func (EventFinal) event() {}

// Interface compliance checks.
var (
	_ Event = EventState{}
	_ Event = EventToolCall{}
	_ Event = EventToolResult{}
	_ Event = EventFinal{}
)
