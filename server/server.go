// Package server exposes the dispatcher over HTTP: a JSON query endpoint, a
// liveness ping and a WebSocket that streams run progress.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/agent"
	"github.com/fwojciec/dispatch/config"
	"github.com/fwojciec/dispatch/registry"
	"github.com/fwojciec/dispatch/truncate"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 64 << 10

// Server answers queries by running a dispatch loop against a registry built
// from the current configuration snapshot.
type Server struct {
	engine   dispatch.Engine
	store    *config.Store
	logger   zerolog.Logger
	extra    []registry.Option
	upgrader websocket.Upgrader
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger for access and run records.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRegistryOptions appends options to every per-request registry build.
func WithRegistryOptions(opts ...registry.Option) Option {
	return func(s *Server) { s.extra = append(s.extra, opts...) }
}

// WithCheckOrigin sets the WebSocket origin check. By default only
// same-origin upgrades are accepted.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// New creates a Server. store must hold a valid snapshot.
func New(engine dispatch.Engine, store *config.Store, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		store:  store,
		logger: zerolog.Nop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the HTTP handler with all routes and access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /ws", s.handleWS)

	var h http.Handler = mux
	h = s.cors(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})(h)
	h = hlog.NewHandler(s.logger)(h)
	return h
}

type queryRequest struct {
	Query   string `json:"query"`
	Context string `json:"context,omitempty"`
}

func (q queryRequest) validate() error {
	if q.Query == "" {
		return errors.New("query must not be empty")
	}
	return nil
}

// run answers one query against the current snapshot.
func (s *Server) run(ctx context.Context, q queryRequest, opts ...agent.RunOption) (*agent.Result, error) {
	cfg := s.store.Load()
	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Logger()

	ctx, cancel := context.WithTimeout(ctx, cfg.Server.RequestTimeout)
	defer cancel()

	regOpts := append(cfg.RegistryOptions(logger), s.extra...)
	reg, err := registry.Build(cfg.Credentials(), regOpts...)
	if err != nil {
		// Validated snapshots always build, so this is internal.
		return nil, fmt.Errorf("build registry: %v", err)
	}

	loop := agent.New(s.engine,
		agent.WithMaxSteps(cfg.Dispatch.MaxSteps),
		agent.WithSystemPrompt(cfg.Dispatch.SystemPrompt),
		agent.WithLogger(logger),
	)
	request := dispatch.Prepare(q.Query, q.Context)
	return loop.Run(ctx, reg, request, append([]agent.RunOption{agent.WithRunID(runID)}, opts...)...)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var q queryRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, dispatch.PublicMessage(dispatch.ErrValidation))
		return
	}
	if err := q.validate(); err != nil {
		writeError(w, http.StatusBadRequest, dispatch.PublicMessage(dispatch.ErrValidation))
		return
	}

	res, err := s.run(r.Context(), q)
	if err != nil {
		s.logFailure(r, q, err)
		writeError(w, statusFor(err), dispatch.PublicMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": res.Text})
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) logFailure(r *http.Request, q queryRequest, err error) {
	hlog.FromRequest(r).Warn().
		Err(err).
		Str("code", string(dispatch.CodeOf(err))).
		Str("query", truncate.Preview(q.Query, 80)).
		Msg("query failed")
}

// statusFor maps a run error to the HTTP status of the reply.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrStepBudgetExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dispatch.ErrEngine):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
