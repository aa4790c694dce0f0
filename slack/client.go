package slack

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/transport"
	"github.com/sourcegraph/conc/pool"
)

// Client talks to the Slack Web API.
type Client struct {
	http         *transport.Client
	historyLimit int
	httpOpts     []transport.Option
}

// Option configures a [Client].
type Option func(*Client)

// WithTransport passes options to the underlying [transport.Client].
func WithTransport(opts ...transport.Option) Option {
	return func(c *Client) { c.httpOpts = append(c.httpOpts, opts...) }
}

// WithHistoryLimit sets how many messages ReadChannel fetches.
func WithHistoryLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// New creates a [Client] authenticated with a bot token.
func New(token string, opts ...Option) *Client {
	c := &Client{historyLimit: DefaultHistoryLimit}
	for _, o := range opts {
		o(c)
	}
	c.http = transport.New(service, defaultBaseURL, transport.Bearer(token), c.httpOpts...)
	return c
}

// ListChannels returns the unarchived public and private channels the token
// can see.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	channels := []Channel{}
	cursor := ""
	for range maxPages {
		q := url.Values{
			"types":            {"public_channel,private_channel"},
			"exclude_archived": {"true"},
			"limit":            {"200"},
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var resp struct {
			envelope
			Channels []Channel `json:"channels"`
		}
		if err := c.get(ctx, "/conversations.list", q, &resp, &resp.envelope); err != nil {
			return nil, err
		}
		channels = append(channels, resp.Channels...)
		cursor = resp.Metadata.NextCursor
		if cursor == "" {
			break
		}
	}
	return channels, nil
}

// ReadChannel returns the latest messages of a channel, oldest first, with
// author IDs resolved to display names. History and the member directory are
// fetched concurrently.
func (c *Client) ReadChannel(ctx context.Context, channelID string) ([]Message, error) {
	if channelID == "" {
		return nil, &dispatch.ArgumentError{Field: "channelId", Reason: "must not be empty"}
	}

	var (
		history []rawMessage
		names   map[string]string
	)
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		var err error
		history, err = c.history(ctx, channelID)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		names, err = c.members(ctx)
		return err
	})
	if err := p.Wait(); err != nil {
		// Report a single adapter failure rather than the joined set.
		var ae *dispatch.AdapterError
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, err
	}
	return chronological(history, names), nil
}

// PostMessage posts text to a channel.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) (*Posted, error) {
	if channelID == "" {
		return nil, &dispatch.ArgumentError{Field: "channelId", Reason: "must not be empty"}
	}
	if text == "" {
		return nil, &dispatch.ArgumentError{Field: "text", Reason: "must not be empty"}
	}
	var resp struct {
		envelope
		Channel string `json:"channel"`
		TS      string `json:"ts"`
	}
	in := map[string]string{"channel": channelID, "text": text}
	if err := c.http.PostJSON(ctx, "/chat.postMessage", in, &resp); err != nil {
		return nil, err
	}
	if err := resp.check(); err != nil {
		return nil, err
	}
	return &Posted{Channel: resp.Channel, Timestamp: resp.TS}, nil
}

func (c *Client) history(ctx context.Context, channelID string) ([]rawMessage, error) {
	q := url.Values{
		"channel": {channelID},
		"limit":   {strconv.Itoa(c.historyLimit)},
	}
	var resp struct {
		envelope
		Messages []rawMessage `json:"messages"`
	}
	if err := c.get(ctx, "/conversations.history", q, &resp, &resp.envelope); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) members(ctx context.Context) (map[string]string, error) {
	names := make(map[string]string)
	cursor := ""
	for range maxPages {
		q := url.Values{"limit": {"200"}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var resp struct {
			envelope
			Members []rawMember `json:"members"`
		}
		if err := c.get(ctx, "/users.list", q, &resp, &resp.envelope); err != nil {
			return nil, err
		}
		for _, m := range resp.Members {
			names[m.ID] = m.displayName()
		}
		cursor = resp.Metadata.NextCursor
		if cursor == "" {
			break
		}
	}
	return names, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any, env *envelope) error {
	if err := c.http.GetJSON(ctx, path, q, out); err != nil {
		return err
	}
	return env.check()
}
