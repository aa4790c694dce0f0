// Package resend implements the mail adapter for the Resend API.
package resend

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/goldmark"
	"github.com/fwojciec/dispatch/transport"
)

const (
	service        = "resend"
	defaultBaseURL = "https://api.resend.com"

	// Sender is the fixed From address of every message.
	Sender = "dev@fusion-ai-experts.com"
)

// Format is the markup of a message body.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// Email is an outgoing message.
type Email struct {
	Subject   string
	Body      string
	Recipient string
	Format    Format
}

// Sent identifies an accepted message.
type Sent struct {
	ID string `json:"id"`
}

// Client talks to the Resend API.
type Client struct {
	http     *transport.Client
	httpOpts []transport.Option
}

// Option configures a [Client].
type Option func(*Client)

// WithTransport passes options to the underlying [transport.Client].
func WithTransport(opts ...transport.Option) Option {
	return func(c *Client) { c.httpOpts = append(c.httpOpts, opts...) }
}

// New creates a [Client] authenticated with an API key.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{}
	for _, o := range opts {
		o(c)
	}
	c.http = transport.New(service, defaultBaseURL, transport.Bearer(apiKey), c.httpOpts...)
	return c
}

// Send delivers e from [Sender].
func (c *Client) Send(ctx context.Context, e Email) (*Sent, error) {
	if e.Subject == "" {
		return nil, &dispatch.ArgumentError{Field: "subject", Reason: "must not be empty"}
	}
	if _, err := mail.ParseAddress(e.Recipient); err != nil {
		return nil, &dispatch.ArgumentError{Field: "recipient", Reason: "must be an email address"}
	}

	html := e.Body
	switch e.Format {
	case "", FormatHTML:
	case FormatMarkdown:
		rendered, err := goldmark.ToHTML(e.Body)
		if err != nil {
			return nil, &dispatch.ArgumentError{Field: "body", Reason: "markdown could not be rendered"}
		}
		html = rendered
	default:
		return nil, &dispatch.ArgumentError{Field: "format", Reason: fmt.Sprintf("%q is not one of html, markdown", e.Format)}
	}

	req := struct {
		From    string   `json:"from"`
		To      []string `json:"to"`
		Subject string   `json:"subject"`
		HTML    string   `json:"html"`
	}{
		From:    Sender,
		To:      []string{e.Recipient},
		Subject: e.Subject,
		HTML:    html,
	}
	var sent Sent
	if err := c.http.PostJSON(ctx, "/emails", req, &sent); err != nil {
		return nil, err
	}
	if sent.ID == "" {
		return nil, dispatch.DataError(service, "send reply has no id", nil)
	}
	return &sent, nil
}
