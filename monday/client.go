package monday

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/transport"
)

const boardsQuery = `query { boards(limit: 100) { id name } }`

const itemsQuery = `query ($boardId: [ID!], $limit: Int!) {
  boards(ids: $boardId) {
    items_page(limit: $limit) {
      items { id name column_values { column { title } text } }
    }
  }
}`

const itemsByStatusQuery = `query ($boardId: [ID!], $limit: Int!, $rules: [ItemsQueryRule!]) {
  boards(ids: $boardId) {
    items_page(limit: $limit, query_params: {rules: $rules}) {
      items {
        id name
        column_values { column { title } text }
        updates { text_body created_at creator { name } }
      }
    }
  }
}`

// Client talks to the monday.com API.
type Client struct {
	http         *transport.Client
	pageLimit    int
	statusColumn string
	httpOpts     []transport.Option
}

// Option configures a [Client].
type Option func(*Client)

// WithTransport passes options to the underlying [transport.Client].
func WithTransport(opts ...transport.Option) Option {
	return func(c *Client) { c.httpOpts = append(c.httpOpts, opts...) }
}

// WithPageLimit sets how many items are read per board.
func WithPageLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

// WithStatusColumn sets the ID of the status column used for filtering.
func WithStatusColumn(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.statusColumn = id
		}
	}
}

// New creates a [Client] authenticated with apiKey. The key is sent verbatim
// in the Authorization header, as monday expects.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		pageLimit:    DefaultPageLimit,
		statusColumn: defaultStatusColumn,
	}
	for _, o := range opts {
		o(c)
	}
	c.http = transport.New(service, defaultBaseURL, transport.Header("Authorization", apiKey), c.httpOpts...)
	return c
}

// ListBoards returns the boards visible to the key.
func (c *Client) ListBoards(ctx context.Context) ([]Board, error) {
	var data struct {
		Boards []Board `json:"boards"`
	}
	if err := c.query(ctx, boardsQuery, nil, &data); err != nil {
		return nil, err
	}
	if data.Boards == nil {
		data.Boards = []Board{}
	}
	return data.Boards, nil
}

// ListItems returns the items of a board.
func (c *Client) ListItems(ctx context.Context, boardID string) ([]Item, error) {
	if boardID == "" {
		return nil, &dispatch.ArgumentError{Field: "boardId", Reason: "must not be empty"}
	}
	vars := map[string]any{
		"boardId": []string{boardID},
		"limit":   c.pageLimit,
	}
	raw, err := c.items(ctx, itemsQuery, vars, boardID)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		items = append(items, normalizeItem(r, false))
	}
	return items, nil
}

// ListItemsByStatus returns the items of a board whose status column matches
// status, each with its update thread in the order monday delivers it.
func (c *Client) ListItemsByStatus(ctx context.Context, boardID string, status Status) ([]Item, error) {
	idx, ok := status.Index()
	if !ok {
		return nil, invalidStatus(status)
	}
	if boardID == "" {
		return nil, &dispatch.ArgumentError{Field: "boardId", Reason: "must not be empty"}
	}
	vars := map[string]any{
		"boardId": []string{boardID},
		"limit":   c.pageLimit,
		"rules": []map[string]any{{
			"column_id":     c.statusColumn,
			"compare_value": []int{idx},
		}},
	}
	raw, err := c.items(ctx, itemsByStatusQuery, vars, boardID)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		items = append(items, normalizeItem(r, true))
	}
	return items, nil
}

func (c *Client) items(ctx context.Context, query string, vars map[string]any, boardID string) ([]rawItem, error) {
	var data struct {
		Boards []struct {
			ItemsPage struct {
				Items []rawItem `json:"items"`
			} `json:"items_page"`
		} `json:"boards"`
	}
	if err := c.query(ctx, query, vars, &data); err != nil {
		return nil, err
	}
	if len(data.Boards) == 0 {
		return nil, dispatch.DataError(service, fmt.Sprintf("board %s not found", boardID), nil)
	}
	return data.Boards[0].ItemsPage.Items, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
	ErrorMessage string `json:"error_message"`
}

// query runs a GraphQL query. GraphQL errors arrive with a 200 status and
// are reported as transport failures.
func (c *Client) query(ctx context.Context, q string, vars map[string]any, out any) error {
	var resp graphQLResponse
	if err := c.http.PostJSON(ctx, "", graphQLRequest{Query: q, Variables: vars}, &resp); err != nil {
		return err
	}
	switch {
	case len(resp.Errors) > 0:
		return dispatch.TransportError(service, "query rejected: "+resp.Errors[0].Message, nil)
	case resp.ErrorMessage != "":
		return dispatch.TransportError(service, "query rejected: "+resp.ErrorMessage, nil)
	case len(resp.Data) == 0 || string(resp.Data) == "null":
		return dispatch.DataError(service, "reply has no data", nil)
	}
	return c.http.Decode(resp.Data, out)
}
