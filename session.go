package dispatch

import "strings"

// Prepare builds the request text for one run. When prior is present it is
// embedded as context ahead of the new instruction; otherwise raw is
// returned unchanged.
func Prepare(raw, prior string) string {
	if strings.TrimSpace(prior) == "" {
		return raw
	}
	return "Given the previous message: \"" + prior + "\"\nAnswer this new message: " + raw + "."
}
