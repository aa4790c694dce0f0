package resend

import (
	"context"
	"encoding/json"

	"github.com/fwojciec/dispatch"
)

var sendEmailSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"subject": {"type": "string", "minLength": 1, "description": "Subject line"},
		"body": {"type": "string", "description": "Message body"},
		"recipient": {"type": "string", "minLength": 3, "description": "Recipient email address"},
		"format": {"type": "string", "enum": ["html", "markdown"], "description": "Markup of body, defaults to html"}
	},
	"required": ["subject", "body", "recipient"],
	"additionalProperties": false
}`)

// Tools returns the mail tools backed by c.
func Tools(c *Client) []dispatch.ToolSpec {
	return []dispatch.ToolSpec{
		{
			Name:        "sendEmail",
			Description: "Send an email to one recipient. The sender address is fixed.",
			Parameters:  sendEmailSchema,
			Invoke: func(ctx context.Context, args json.RawMessage) (any, error) {
				var in struct {
					Subject   string `json:"subject"`
					Body      string `json:"body"`
					Recipient string `json:"recipient"`
					Format    Format `json:"format"`
				}
				if err := dispatch.DecodeArguments(args, &in); err != nil {
					return nil, err
				}
				return c.Send(ctx, Email{
					Subject:   in.Subject,
					Body:      in.Body,
					Recipient: in.Recipient,
					Format:    in.Format,
				})
			},
		},
	}
}
