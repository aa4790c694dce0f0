package monday_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/monday"
	"github.com/fwojciec/dispatch/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// newServer starts a fake monday API that records each request and replies
// with reply. The returned counter reports how many calls were made.
func newServer(t *testing.T, reply string) (*httptest.Server, *atomic.Int32, *capturedRequest) {
	t.Helper()
	var calls atomic.Int32
	var captured capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, &captured
}

func newClient(srv *httptest.Server, opts ...monday.Option) *monday.Client {
	opts = append(opts, monday.WithTransport(transport.WithBaseURL(srv.URL)))
	return monday.New("test-key", opts...)
}

func TestClient_ListBoards(t *testing.T) {
	t.Parallel()
	srv, calls, captured := newServer(t, `{"data":{"boards":[{"id":"9","name":"agileloop"},{"id":"12","name":"sales"}]}}`)

	boards, err := newClient(srv).ListBoards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []monday.Board{{ID: "9", Name: "agileloop"}, {ID: "12", Name: "sales"}}, boards)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, captured.Query, "boards")
}

func TestClient_ListItems_NormalizesColumns(t *testing.T) {
	t.Parallel()
	reply := `{"data":{"boards":[{"items_page":{"items":[{
		"id":"101","name":"Ship release",
		"column_values":[
			{"column":{"title":"Status"},"text":"Done"},
			{"column":{"title":"Due Date"},"text":"2024-01-01"},
			{"column":{"title":"status"},"text":"ignored: titles are case-sensitive"},
			{"column":{"title":"Priority"},"text":"High"}
		]}]}}]}}`
	srv, _, captured := newServer(t, reply)

	items, err := newClient(srv, monday.WithPageLimit(10)).ListItems(context.Background(), "9")
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "101", item.ID)
	assert.Equal(t, "Ship release", item.Name)
	require.NotNil(t, item.Status)
	assert.Equal(t, "Done", *item.Status)
	require.NotNil(t, item.DueDate)
	assert.Equal(t, "2024-01-01", *item.DueDate)
	assert.Nil(t, item.Owner)
	assert.Nil(t, item.Timeline)
	assert.Nil(t, item.Updates)

	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"101","name":"Ship release","status":"Done","dueDate":"2024-01-01"}`, string(out))

	assert.Equal(t, []any{"9"}, captured.Variables["boardId"])
	assert.Equal(t, float64(10), captured.Variables["limit"])
}

func TestClient_ListItems_FirstColumnWins(t *testing.T) {
	t.Parallel()
	reply := `{"data":{"boards":[{"items_page":{"items":[{
		"id":"5","name":"Duplicate titles",
		"column_values":[
			{"column":{"title":"Status"},"text":"Working on it"},
			{"column":{"title":"Status"},"text":"Done"},
			{"column":{"title":"Owner"},"text":null},
			{"column":{"title":"Owner"},"text":"Ann"}
		]}]}}]}}`
	srv, _, _ := newServer(t, reply)

	items, err := newClient(srv).ListItems(context.Background(), "9")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Status)
	assert.Equal(t, "Working on it", *items[0].Status)
	assert.Nil(t, items[0].Owner)
}

func TestClient_ListItemsByStatus(t *testing.T) {
	t.Parallel()
	reply := `{"data":{"boards":[{"items_page":{"items":[{
		"id":"7","name":"Fix login",
		"column_values":[{"column":{"title":"Status"},"text":"Stuck"},{"column":{"title":"Owner"},"text":"Ann"}],
		"updates":[
			{"text_body":"second","created_at":"2024-02-02T10:00:00Z","creator":{"name":"Bob"}},
			{"text_body":"first","created_at":"2024-02-01T10:00:00Z","creator":null}
		]}]}}]}}`
	srv, _, captured := newServer(t, reply)

	items, err := newClient(srv).ListItemsByStatus(context.Background(), "9", monday.StatusStuck)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, []monday.Update{
		{Text: "second", Author: "Bob", CreatedAt: "2024-02-02T10:00:00Z"},
		{Text: "first", CreatedAt: "2024-02-01T10:00:00Z"},
	}, items[0].Updates)
	require.NotNil(t, items[0].Owner)
	assert.Equal(t, "Ann", *items[0].Owner)

	rules, ok := captured.Variables["rules"].([]any)
	require.True(t, ok)
	require.Len(t, rules, 1)
	rule := rules[0].(map[string]any)
	assert.Equal(t, "status", rule["column_id"])
	assert.Equal(t, []any{float64(2)}, rule["compare_value"])
}

func TestClient_ListItemsByStatus_LabelIndex(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status monday.Status
		want   float64
	}{
		{monday.StatusWorking, 0},
		{monday.StatusDone, 1},
		{monday.StatusStuck, 2},
		{monday.StatusBlocked, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			srv, _, captured := newServer(t, `{"data":{"boards":[{"items_page":{"items":[]}}]}}`)
			items, err := newClient(srv, monday.WithStatusColumn("status_1")).ListItemsByStatus(context.Background(), "9", tt.status)
			require.NoError(t, err)
			assert.Empty(t, items)
			rule := captured.Variables["rules"].([]any)[0].(map[string]any)
			assert.Equal(t, "status_1", rule["column_id"])
			assert.Equal(t, []any{tt.want}, rule["compare_value"])
		})
	}
}

func TestClient_ListItemsByStatus_UnknownStatusMakesNoCall(t *testing.T) {
	t.Parallel()
	srv, calls, _ := newServer(t, `{}`)

	_, err := newClient(srv).ListItemsByStatus(context.Background(), "9", monday.Status("archived"))
	require.Error(t, err)
	assert.ErrorIs(t, err, dispatch.ErrInvalidArguments)
	var ae *dispatch.ArgumentError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "status", ae.Field)
	assert.Equal(t, int32(0), calls.Load())
}

func TestClient_BoardNotFound(t *testing.T) {
	t.Parallel()
	srv, _, _ := newServer(t, `{"data":{"boards":[]}}`)

	_, err := newClient(srv).ListItems(context.Background(), "404")
	assert.ErrorIs(t, err, dispatch.ErrData)
	assert.Equal(t, "monday: board 404 not found", err.Error())
}

func TestClient_GraphQLError(t *testing.T) {
	t.Parallel()
	srv, _, _ := newServer(t, `{"errors":[{"message":"Parse error on \"x\""}]}`)

	_, err := newClient(srv).ListBoards(context.Background())
	assert.ErrorIs(t, err, dispatch.ErrTransport)
	assert.Equal(t, `monday: query rejected: Parse error on "x"`, err.Error())
}

func TestClient_MissingData(t *testing.T) {
	t.Parallel()
	srv, _, _ := newServer(t, `{"data":null}`)

	_, err := newClient(srv).ListBoards(context.Background())
	assert.ErrorIs(t, err, dispatch.ErrData)
}

func TestTools(t *testing.T) {
	t.Parallel()
	srv, calls, _ := newServer(t, `{"data":{"boards":[{"items_page":{"items":[]}}]}}`)

	tools := monday.Tools(newClient(srv))
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description)
		assert.True(t, json.Valid(tool.Parameters), tool.Name)
	}
	assert.Equal(t, []string{"listBoards", "listItems", "listItemsByStatus"}, names)

	out, err := tools[2].Invoke(context.Background(), json.RawMessage(`{"boardId":"9","status":"done"}`))
	require.NoError(t, err)
	assert.Equal(t, []monday.Item{}, out)
	assert.Equal(t, int32(1), calls.Load())
}
