// Package truncate shortens tool payloads and log previews without splitting
// grapheme clusters.
package truncate

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// DefaultMaxBytes is the default cap on a serialized tool payload.
const DefaultMaxBytes = 32 * 1024

// Result describes the outcome of head truncation.
type Result struct {
	Content     string
	Truncated   bool
	TotalBytes  int
	OutputBytes int
}

// Head keeps the longest prefix of s that fits in maxBytes and ends on a
// grapheme cluster boundary. A non-positive maxBytes disables truncation.
func Head(s string, maxBytes int) Result {
	total := len(s)
	if maxBytes <= 0 || total <= maxBytes {
		return Result{Content: s, TotalBytes: total, OutputBytes: total}
	}

	n := 0
	rest := s
	state := -1
	for rest != "" {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if n+len(cluster) > maxBytes {
			break
		}
		n += len(cluster)
	}
	return Result{
		Content:     s[:n],
		Truncated:   true,
		TotalBytes:  total,
		OutputBytes: n,
	}
}

// Marked is Head with a trailing note when anything was dropped.
func Marked(s string, maxBytes int) string {
	r := Head(s, maxBytes)
	if !r.Truncated {
		return r.Content
	}
	return r.Content + "… [truncated " + strconv.Itoa(r.TotalBytes-r.OutputBytes) + " bytes]"
}

// Preview flattens s onto one line and cuts it to width terminal cells,
// for use in log fields.
func Preview(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
