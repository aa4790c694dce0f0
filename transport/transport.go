// Package transport carries adapter requests to external services. It attaches
// credentials per call, bounds each call with its own timeout, optionally
// rate limits, and turns every failure into a [dispatch.AdapterError] whose
// message is safe to show.
package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/truncate"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultTimeout bounds a single outbound call.
	DefaultTimeout = 15 * time.Second

	maxBodyBytes    = 4 << 20
	maxSummaryBytes = 200
)

// Auth attaches credentials to an outbound request.
type Auth func(h http.Header)

// Bearer sends token as an Authorization bearer token.
func Bearer(token string) Auth {
	return func(h http.Header) { h.Set("Authorization", "Bearer "+token) }
}

// Header sends value verbatim in the named header.
func Header(name, value string) Auth {
	return func(h http.Header) { h.Set(name, value) }
}

// Basic sends key as the user half of HTTP basic auth with an empty password.
func Basic(key string) Auth {
	enc := base64.StdEncoding.EncodeToString([]byte(key + ":"))
	return func(h http.Header) { h.Set("Authorization", "Basic "+enc) }
}

// Client sends requests to one external service.
type Client struct {
	service    string
	baseURL    string
	auth       Auth
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL overrides the service base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each call. Zero disables the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRateLimit allows perSecond calls with the given burst.
// A non-positive perSecond disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger for outbound call records.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a [Client] for service rooted at baseURL.
func New(service, baseURL string, auth Auth, opts ...Option) *Client {
	c := &Client{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		auth:       auth,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Service returns the service name used in error messages.
func (c *Client) Service() string { return c.service }

// Request describes one outbound call.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
}

// Do sends req and returns the reply body of a 2xx response.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	parent := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if parent.Err() != nil {
				return nil, c.sendError(parent, err)
			}
			return nil, dispatch.TransportError(c.service, "rate limit exceeded", err)
		}
	}

	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, dispatch.TransportError(c.service, "could not build request", err)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.auth != nil {
		c.auth(httpReq.Header)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug().Str("service", c.service).Str("method", req.Method).Str("path", req.Path).
			Dur("duration", time.Since(start)).Err(err).Msg("outbound call failed")
		return nil, c.sendError(parent, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.sendError(parent, err)
	}

	c.logger.Debug().Str("service", c.service).Str("method", req.Method).Str("path", req.Path).
		Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("outbound call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, dispatch.TransportError(c.service, statusSummary(resp.StatusCode, data), nil)
	}
	return data, nil
}

// GetJSON issues a GET and decodes the JSON reply into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return err
	}
	return c.Decode(data, out)
}

// PostJSON encodes in as the JSON body of a POST and decodes the reply into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return dispatch.TransportError(c.service, "could not encode request", err)
	}
	data, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, ContentType: "application/json"})
	if err != nil {
		return err
	}
	return c.Decode(data, out)
}

// PostForm sends form as a urlencoded POST body and decodes the reply into out.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	data, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return err
	}
	return c.Decode(data, out)
}

// Decode unmarshals a reply body, reporting malformed bodies as data failures.
func (c *Client) Decode(data []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return dispatch.DataError(c.service, "reply was not valid JSON", err)
	}
	return nil
}

// sendError summarizes a failed send. parent is the caller's context, used to
// tell caller cancellation apart from the per-call timeout.
func (c *Client) sendError(parent context.Context, err error) error {
	if perr := parent.Err(); perr != nil {
		if errors.Is(perr, context.DeadlineExceeded) {
			return dispatch.TransportError(c.service, "request timed out", errors.Join(err, perr))
		}
		return dispatch.TransportError(c.service, "request cancelled", errors.Join(err, perr))
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return dispatch.TransportError(c.service, fmt.Sprintf("request timed out after %s", c.timeout), err)
	}
	return dispatch.TransportError(c.service, "service unreachable", err)
}

func statusSummary(code int, body []byte) string {
	s := fmt.Sprintf("HTTP %d %s", code, http.StatusText(code))
	if msg := APIMessage(body); msg != "" {
		s += ": " + msg
	}
	return s
}

// APIMessage extracts a human-readable message from a service error body.
// It understands the error shapes of the services this module talks to and
// returns "" for anything else.
func APIMessage(body []byte) string {
	var e struct {
		Message      string              `json:"message"`
		ErrorMessage string              `json:"error_message"`
		Error        jsoniter.RawMessage `json:"error"`
		Errors       []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if len(body) == 0 || json.Unmarshal(body, &e) != nil {
		return ""
	}
	var msg string
	switch {
	case e.Message != "":
		msg = e.Message
	case e.ErrorMessage != "":
		msg = e.ErrorMessage
	case len(e.Errors) > 0 && e.Errors[0].Message != "":
		msg = e.Errors[0].Message
	case len(e.Error) > 0:
		var s string
		if json.Unmarshal(e.Error, &s) == nil {
			msg = s
			break
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(e.Error, &obj) == nil {
			msg = obj.Message
		}
	}
	return truncate.Marked(strings.TrimSpace(msg), maxSummaryBytes)
}
