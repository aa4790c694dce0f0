package slack

import (
	"context"
	"encoding/json"

	"github.com/fwojciec/dispatch"
)

var listChannelsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {},
	"additionalProperties": false
}`)

var readChannelSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"channelId": {"type": "string", "minLength": 1, "description": "Slack channel ID, e.g. C01234567"}
	},
	"required": ["channelId"],
	"additionalProperties": false
}`)

var postMessageSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"channelId": {"type": "string", "minLength": 1, "description": "Slack channel ID or name"},
		"text": {"type": "string", "minLength": 1, "description": "Message text"}
	},
	"required": ["channelId", "text"],
	"additionalProperties": false
}`)

// Tools returns the messaging tools backed by c, in a fixed order.
func Tools(c *Client) []dispatch.ToolSpec {
	return []dispatch.ToolSpec{
		{
			Name:        "listChannels",
			Description: "List the Slack channels with their IDs and names.",
			Parameters:  listChannelsSchema,
			Invoke: func(ctx context.Context, _ json.RawMessage) (any, error) {
				return c.ListChannels(ctx)
			},
		},
		{
			Name:        "readChannel",
			Description: "Read the latest messages of a Slack channel, oldest first, with author names.",
			Parameters:  readChannelSchema,
			Invoke: func(ctx context.Context, args json.RawMessage) (any, error) {
				var in struct {
					ChannelID string `json:"channelId"`
				}
				if err := dispatch.DecodeArguments(args, &in); err != nil {
					return nil, err
				}
				return c.ReadChannel(ctx, in.ChannelID)
			},
		},
		{
			Name:        "postMessage",
			Description: "Post a message to a Slack channel.",
			Parameters:  postMessageSchema,
			Invoke: func(ctx context.Context, args json.RawMessage) (any, error) {
				var in struct {
					ChannelID string `json:"channelId"`
					Text      string `json:"text"`
				}
				if err := dispatch.DecodeArguments(args, &in); err != nil {
					return nil, err
				}
				return c.PostMessage(ctx, in.ChannelID, in.Text)
			},
		},
	}
}
