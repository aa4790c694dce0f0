package monday

import (
	"context"
	"encoding/json"

	"github.com/fwojciec/dispatch"
)

var listBoardsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {},
	"additionalProperties": false
}`)

var listItemsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"boardId": {"type": "string", "pattern": "^[0-9]+$", "description": "Numeric ID of the board"}
	},
	"required": ["boardId"],
	"additionalProperties": false
}`)

var listItemsByStatusSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"boardId": {"type": "string", "pattern": "^[0-9]+$", "description": "Numeric ID of the board"},
		"status": {"type": "string", "enum": ["working", "done", "stuck", "blocked"], "description": "Item status to filter by"}
	},
	"required": ["boardId", "status"],
	"additionalProperties": false
}`)

// Tools returns the task-board tools backed by c, in a fixed order.
func Tools(c *Client) []dispatch.ToolSpec {
	return []dispatch.ToolSpec{
		{
			Name:        "listBoards",
			Description: "List the monday.com boards with their IDs and names. Use it to find a board ID by name.",
			Parameters:  listBoardsSchema,
			Invoke: func(ctx context.Context, _ json.RawMessage) (any, error) {
				return c.ListBoards(ctx)
			},
		},
		{
			Name:        "listItems",
			Description: "List the items of a monday.com board with their status, due date, owner and timeline.",
			Parameters:  listItemsSchema,
			Invoke: func(ctx context.Context, args json.RawMessage) (any, error) {
				var in struct {
					BoardID string `json:"boardId"`
				}
				if err := dispatch.DecodeArguments(args, &in); err != nil {
					return nil, err
				}
				return c.ListItems(ctx, in.BoardID)
			},
		},
		{
			Name:        "listItemsByStatus",
			Description: "List the items of a monday.com board that have the given status, including each item's update thread.",
			Parameters:  listItemsByStatusSchema,
			Invoke: func(ctx context.Context, args json.RawMessage) (any, error) {
				var in struct {
					BoardID string `json:"boardId"`
					Status  Status `json:"status"`
				}
				if err := dispatch.DecodeArguments(args, &in); err != nil {
					return nil, err
				}
				return c.ListItemsByStatus(ctx, in.BoardID, in.Status)
			},
		},
	}
}
