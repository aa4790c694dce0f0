package stripe

import (
	"context"
	"encoding/json"

	"github.com/fwojciec/dispatch"
)

var listProductsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {},
	"additionalProperties": false
}`)

var createPaymentLinkSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"priceId": {"type": "string", "minLength": 1, "description": "Price ID of the product, from listProducts"},
		"quantity": {"type": "integer", "minimum": 1, "description": "Number of units, defaults to 1"}
	},
	"required": ["priceId"],
	"additionalProperties": false
}`)

// Tools returns the payments tools backed by c, in a fixed order.
func Tools(c *Client) []dispatch.ToolSpec {
	return []dispatch.ToolSpec{
		{
			Name:        "listProducts",
			Description: "List the Stripe products with their IDs, names and price IDs.",
			Parameters:  listProductsSchema,
			Invoke: func(ctx context.Context, _ json.RawMessage) (any, error) {
				return c.ListProducts(ctx)
			},
		},
		{
			Name:        "createPaymentLink",
			Description: "Create a Stripe payment link for a product price and return its URL.",
			Parameters:  createPaymentLinkSchema,
			Invoke: func(ctx context.Context, args json.RawMessage) (any, error) {
				var in struct {
					PriceID  string `json:"priceId"`
					Quantity *int   `json:"quantity"`
				}
				if err := dispatch.DecodeArguments(args, &in); err != nil {
					return nil, err
				}
				quantity := 1
				if in.Quantity != nil {
					quantity = *in.Quantity
					if quantity < 1 {
						return nil, &dispatch.ArgumentError{Field: "quantity", Reason: "must be a positive integer"}
					}
				}
				return c.CreatePaymentLink(ctx, in.PriceID, quantity)
			},
		},
	}
}
