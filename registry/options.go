package registry

import (
	"github.com/fwojciec/dispatch/monday"
	"github.com/fwojciec/dispatch/slack"
	"github.com/fwojciec/dispatch/transport"
	"github.com/fwojciec/dispatch/truncate"
	"github.com/rs/zerolog"
)

// Service names accepted by WithBaseURL.
const (
	ServiceMonday = "monday"
	ServiceSlack  = "slack"
	ServiceStripe = "stripe"
	ServiceResend = "resend"
)

// Option configures registry construction.
type Option func(*options)

type options struct {
	enabled    []string
	transport  []transport.Option
	baseURLs   map[string]string
	monday     []monday.Option
	slack      []slack.Option
	logger     zerolog.Logger
	maxPayload int
}

func newOptions(opts []Option) options {
	o := options{
		baseURLs:   make(map[string]string),
		logger:     zerolog.Nop(),
		maxPayload: truncate.DefaultMaxBytes,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithEnabled restricts Build to tools whose names match one of the
// doublestar patterns, e.g. "list*" or "{sendEmail,postMessage}".
func WithEnabled(patterns ...string) Option {
	return func(o *options) { o.enabled = append(o.enabled, patterns...) }
}

// WithTransportOptions applies opts to every adapter's transport.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(o *options) { o.transport = append(o.transport, opts...) }
}

// WithBaseURL points one service at a different base URL.
func WithBaseURL(service, url string) Option {
	return func(o *options) { o.baseURLs[service] = url }
}

// WithMondayOptions passes options to the task-board adapter.
func WithMondayOptions(opts ...monday.Option) Option {
	return func(o *options) { o.monday = append(o.monday, opts...) }
}

// WithSlackOptions passes options to the messaging adapter.
func WithSlackOptions(opts ...slack.Option) Option {
	return func(o *options) { o.slack = append(o.slack, opts...) }
}

// WithLogger sets the logger for invocation records.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMaxPayload caps the size of a serialized tool result. Zero disables it.
func WithMaxPayload(n int) Option {
	return func(o *options) { o.maxPayload = n }
}

func (o options) transportFor(service string) []transport.Option {
	opts := make([]transport.Option, 0, len(o.transport)+2)
	opts = append(opts, transport.WithLogger(o.logger))
	opts = append(opts, o.transport...)
	if u, ok := o.baseURLs[service]; ok {
		opts = append(opts, transport.WithBaseURL(u))
	}
	return opts
}
