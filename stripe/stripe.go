// Package stripe implements the payments adapter for the Stripe API.
package stripe

import (
	"context"
	"net/url"
	"strconv"

	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/transport"
)

const (
	service        = "stripe"
	defaultBaseURL = "https://api.stripe.com/v1"
)

// Product is a sellable Stripe product. PriceID is the product's default
// price and is what CreatePaymentLink expects.
type Product struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	PriceID string `json:"priceId,omitempty"`
}

// PaymentLink is a shareable checkout URL.
type PaymentLink struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client talks to the Stripe API.
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

// New creates a [Client] authenticated with a secret key via basic auth.
func New(secretKey string, opts ...Option) *Client {
	c := &Client{}
	for _, o := range opts {
		o(c)
	}
	c.http = transport.New(service, defaultBaseURL, transport.Basic(secretKey), c.httpOpts...)
	return c
}

// ListProducts returns the active products.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var resp struct {
		Data []struct {
			ID           string  `json:"id"`
			Name         string  `json:"name"`
			DefaultPrice *string `json:"default_price"`
		} `json:"data"`
	}
	q := url.Values{"active": {"true"}, "limit": {"100"}}
	if err := c.http.GetJSON(ctx, "/products", q, &resp); err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(resp.Data))
	for _, p := range resp.Data {
		prod := Product{ID: p.ID, Name: p.Name}
		if p.DefaultPrice != nil {
			prod.PriceID = *p.DefaultPrice
		}
		products = append(products, prod)
	}
	return products, nil
}

// CreatePaymentLink creates a payment link for quantity units of priceID.
// A zero quantity means 1.
func (c *Client) CreatePaymentLink(ctx context.Context, priceID string, quantity int) (*PaymentLink, error) {
	if priceID == "" {
		return nil, &dispatch.ArgumentError{Field: "priceId", Reason: "must not be empty"}
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, &dispatch.ArgumentError{Field: "quantity", Reason: "must be a positive integer"}
	}
	form := url.Values{
		"line_items[0][price]":    {priceID},
		"line_items[0][quantity]": {strconv.Itoa(quantity)},
	}
	var link PaymentLink
	if err := c.http.PostForm(ctx, "/payment_links", form, &link); err != nil {
		return nil, err
	}
	if link.URL == "" {
		return nil, dispatch.DataError(service, "payment link reply has no url", nil)
	}
	return &link, nil
}
