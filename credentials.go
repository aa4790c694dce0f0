package dispatch

import "fmt"

// Credentials holds the opaque keys for each external system. It is passed
// by value into registry construction and never read from the environment
// by adapters.
type Credentials struct {
	TaskBoard string
	Messaging string
	Payments  string
	Mail      string
}

// String reports which keys are set without revealing them.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{TaskBoard:%s Messaging:%s Payments:%s Mail:%s}",
		mask(c.TaskBoard), mask(c.Messaging), mask(c.Payments), mask(c.Mail))
}

// GoString keeps %#v from printing keys.
func (c Credentials) GoString() string { return c.String() }

func mask(s string) string {
	if s == "" {
		return "unset"
	}
	return "set"
}
