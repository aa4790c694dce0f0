// Package slack implements the messaging adapter for the Slack Web API.
package slack

import (
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/dispatch"
)

const (
	service        = "slack"
	defaultBaseURL = "https://slack.com/api"

	// DefaultHistoryLimit is the number of messages read from a channel.
	DefaultHistoryLimit = 50

	maxPages = 10
)

// Channel is a Slack conversation.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is a channel message with its author resolved to a display name.
type Message struct {
	ID        string `json:"id"`
	AuthorID  string `json:"authorId,omitempty"`
	Author    string `json:"author,omitempty"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Posted identifies a message created by PostMessage.
type Posted struct {
	Channel   string `json:"channel"`
	Timestamp string `json:"timestamp"`
}

// envelope is the part of every Slack Web API reply that reports success.
type envelope struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	Metadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

func (e envelope) check() error {
	if e.OK {
		return nil
	}
	if e.Error == "" {
		return dispatch.TransportError(service, "request failed", nil)
	}
	return dispatch.TransportError(service, "API error: "+e.Error, nil)
}

type rawMessage struct {
	TS   string `json:"ts"`
	User string `json:"user"`
	Text string `json:"text"`
}

type rawMember struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
	Profile  struct {
		DisplayName string `json:"display_name"`
		RealName    string `json:"real_name"`
	} `json:"profile"`
}

func (m rawMember) displayName() string {
	for _, s := range []string{m.Profile.DisplayName, m.Profile.RealName, m.RealName, m.Name} {
		if s != "" {
			return s
		}
	}
	return m.ID
}

// chronological converts a newest-first history into oldest-first messages,
// resolving authors through names.
func chronological(raw []rawMessage, names map[string]string) []Message {
	out := make([]Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		r := raw[i]
		m := Message{ID: r.TS, AuthorID: r.User, Text: r.Text, Timestamp: formatTS(r.TS)}
		if r.User != "" {
			m.Author = r.User
			if name, ok := names[r.User]; ok {
				m.Author = name
			}
		}
		out = append(out, m)
	}
	return out
}

// formatTS renders a Slack "seconds.micros" timestamp as RFC 3339.
// Unparseable values are returned as is.
func formatTS(ts string) string {
	secs, _, _ := strings.Cut(ts, ".")
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return ts
	}
	return time.Unix(n, 0).UTC().Format(time.RFC3339)
}
