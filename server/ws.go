package server

import (
	"context"
	"net/http"
	"time"

	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/agent"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"
)

const (
	writeWait = 10 * time.Second

	// maxQueuedQueries bounds the queries a client may send ahead of the one
	// running; one more closes the connection.
	maxQueuedQueries = 8
)

// wsEvent is one frame sent to a WebSocket client. Tool payloads are never
// echoed; a tool_result frame only says whether the call succeeded.
type wsEvent struct {
	Type   string `json:"type"`
	State  string `json:"state,omitempty"`
	Step   int    `json:"step,omitempty"`
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	OK     *bool  `json:"ok,omitempty"`
	Code   string `json:"code,omitempty"`
	Result string `json:"result,omitempty"`
	RunID  string `json:"run_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// frameFor converts a loop event into a frame. Final answers are sent once
// the run returns, so EventFinal has no frame.
func frameFor(e dispatch.Event) (wsEvent, bool) {
	switch ev := e.(type) {
	case dispatch.EventState:
		return wsEvent{Type: "state", State: ev.State.String(), Step: ev.Step}, true
	case dispatch.EventToolCall:
		return wsEvent{Type: "tool_call", ID: ev.Call.ID, Name: ev.Call.Name}, true
	case dispatch.EventToolResult:
		ok := !ev.Result.IsError
		return wsEvent{Type: "tool_result", ID: ev.CallID, Name: ev.Name, OK: &ok, Code: string(ev.Result.Code)}, true
	default:
		return wsEvent{}, false
	}
}

// handleWS runs each text frame as a query, one at a time, streaming progress
// frames followed by a result or error frame. A reader goroutine keeps
// draining the connection while a query runs, so a client that goes away
// cancels its run.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	queries := make(chan []byte, maxQueuedQueries)
	go func() {
		defer close(queries)
		defer cancel()
		for {
			kind, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug().Err(err).Msg("websocket closed")
				}
				return
			}
			if kind != websocket.TextMessage {
				continue
			}
			select {
			case queries <- msg:
			default:
				logger.Warn().Int("queued", maxQueuedQueries).Msg("websocket query queue full, closing")
				return
			}
		}
	}()

	send := func(ev wsEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	for msg := range queries {
		if ctx.Err() != nil {
			return
		}
		var q queryRequest
		if err := json.Unmarshal(msg, &q); err != nil || q.validate() != nil {
			if err := send(wsEvent{Type: "error", Error: dispatch.PublicMessage(dispatch.ErrValidation)}); err != nil {
				return
			}
			continue
		}

		var writeErr error
		res, err := s.run(ctx, q, agent.WithEventHandler(func(e dispatch.Event) {
			if writeErr != nil {
				return
			}
			if frame, ok := frameFor(e); ok {
				if writeErr = send(frame); writeErr != nil {
					cancel()
				}
			}
		}))
		if writeErr != nil || ctx.Err() != nil {
			if err != nil {
				s.logFailure(r, q, err)
			}
			return
		}
		if err != nil {
			s.logFailure(r, q, err)
			if send(wsEvent{Type: "error", Error: dispatch.PublicMessage(err)}) != nil {
				return
			}
			continue
		}
		if send(wsEvent{Type: "result", Result: res.Text, RunID: res.RunID}) != nil {
			return
		}
	}
}
