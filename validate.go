package dispatch

import "fmt"

// Validate checks universal constraints on Request.
// Engine implementations may apply additional provider-specific validation.
func (r Request) Validate() error {
	if len(r.Transcript) == 0 {
		return fmt.Errorf("transcript is empty: %w", ErrValidation)
	}
	if _, ok := r.Transcript[0].(UserMessage); !ok {
		return fmt.Errorf("transcript must start with a user message, got %s: %w", r.Transcript[0].Role(), ErrValidation)
	}
	seen := make(map[string]struct{}, len(r.Tools))
	for _, t := range r.Tools {
		if t.Name == "" {
			return fmt.Errorf("tool with empty name: %w", ErrValidation)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("duplicate tool %q: %w", t.Name, ErrValidation)
		}
		seen[t.Name] = struct{}{}
	}
	for _, m := range r.Transcript {
		if err := ValidateMessage(m); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMessage checks that a transcript entry is well formed for its role.
func ValidateMessage(msg Message) error {
	switch m := msg.(type) {
	case UserMessage:
		if m.Text == "" {
			return fmt.Errorf("empty %s message: %w", m.Role(), ErrValidation)
		}
	case AssistantMessage:
		if m.Call.Name == "" {
			return fmt.Errorf("%s message without tool name: %w", m.Role(), ErrValidation)
		}
	case ToolResultMessage:
		if m.CallID == "" {
			return fmt.Errorf("%s message without call id: %w", m.Role(), ErrValidation)
		}
	default:
		return fmt.Errorf("unknown message type %T: %w", msg, ErrValidation)
	}
	return nil
}
