package dispatch

import (
	"encoding/json"
	"time"
)

// Message is a sealed interface representing a transcript entry.
// The unexported marker method prevents external implementations.
// Role() returns the entry's role without requiring a type switch.
type Message interface {
	isMessage()
	Role() Role
}

// UserMessage is the (optionally context-prefixed) user request.
type UserMessage struct {
	Text      string
	Timestamp time.Time
}

func (UserMessage) isMessage() {}

// Role returns RoleUser.
func (UserMessage) Role() Role { return RoleUser }

// AssistantMessage records a tool call decided by the reasoning engine.
type AssistantMessage struct {
	Call      CallTool
	Timestamp time.Time
}

func (AssistantMessage) isMessage() {}

// Role returns RoleAssistant.
func (AssistantMessage) Role() Role { return RoleAssistant }

// ToolResultMessage carries the result of a tool call back to the engine.
type ToolResultMessage struct {
	CallID    string
	Name      string
	Result    ToolResult
	Timestamp time.Time
}

func (ToolResultMessage) isMessage() {}

// Role returns RoleTool.
func (ToolResultMessage) Role() Role { return RoleTool }

// Step is a sealed interface representing one reasoning engine decision.
type Step interface {
	isStep()
}

// CallTool asks the dispatcher to invoke the named tool.
// ID may be empty, in which case the dispatcher assigns one.
type CallTool struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

func (CallTool) isStep() {}

// Final ends the run with a natural-language answer.
type Final struct {
	Text string
}

func (Final) isStep() {}

// Interface compliance checks.
var (
	_ Message = UserMessage{}
	_ Message = AssistantMessage{}
	_ Message = ToolResultMessage{}
	_ Step    = CallTool{}
	_ Step    = Final{}
)
