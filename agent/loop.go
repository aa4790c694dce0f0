// Package agent orchestrates the dispatch loop between an Engine and a ToolExecutor.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/truncate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMaxSteps is the default step budget, counted in tool calls.
const DefaultMaxSteps = 10

const previewWidth = 80

// Loop drives a reasoning engine through tool calls until it produces a
// final answer or the step budget runs out.
type Loop struct {
	engine       dispatch.Engine
	maxSteps     int
	systemPrompt string
	logger       zerolog.Logger
}

// Option configures a [Loop].
type Option func(*Loop)

// WithMaxSteps sets the maximum number of tool calls per run.
// Values below 1 are ignored.
func WithMaxSteps(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxSteps = n
		}
	}
}

// WithSystemPrompt sets the instructions sent with every engine request.
func WithSystemPrompt(p string) Option {
	return func(l *Loop) { l.systemPrompt = p }
}

// WithLogger sets the logger for run and step records.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates a new Loop around engine.
func New(engine dispatch.Engine, opts ...Option) *Loop {
	l := &Loop{
		engine:   engine,
		maxSteps: DefaultMaxSteps,
		logger:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// MaxSteps returns the configured step budget.
func (l *Loop) MaxSteps() int { return l.maxSteps }

// RunOption configures a single Run invocation.
type RunOption func(*runConfig)

type runConfig struct {
	onEvent func(dispatch.Event)
	runID   string
}

// WithEventHandler sets a callback that receives each progress event during
// the run. If nil or not set, events are silently discarded.
func WithEventHandler(h func(dispatch.Event)) RunOption {
	return func(c *runConfig) {
		c.onEvent = h
	}
}

// WithRunID sets the identifier attached to the run's log records.
// Empty string means a random one is generated.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// Result is the outcome of a successful run.
type Result struct {
	Text  string
	Calls int
	RunID string
}

// run holds the mutable state of one Run. It never escapes Run.
type run struct {
	cfg        runConfig
	logger     zerolog.Logger
	state      dispatch.State
	transcript []dispatch.Message
	pending    dispatch.CallTool
	calls      int
	text       string
	err        error
}

// Run answers request using tools. It returns a Result only when the engine
// produced a final answer; on failure the transcript is discarded.
func (l *Loop) Run(ctx context.Context, tools dispatch.ToolExecutor, request string, opts ...RunOption) (*Result, error) {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runID == "" {
		cfg.runID = uuid.NewString()
	}

	r := &run{
		cfg:    cfg,
		logger: l.logger.With().Str("run_id", cfg.runID).Logger(),
		state:  dispatch.StateStart,
	}
	specs := tools.Tools()
	start := time.Now()

	for !r.state.Terminal() {
		switch r.state {
		case dispatch.StateStart:
			if strings.TrimSpace(request) == "" {
				r.fail(fmt.Errorf("empty request: %w", dispatch.ErrValidation))
				continue
			}
			r.transcript = append(r.transcript, dispatch.UserMessage{Text: request, Timestamp: time.Now()})
			r.logger.Info().Str("request", truncate.Preview(request, previewWidth)).Int("tools", len(specs)).Msg("run started")
			r.transition(dispatch.StateThinking)
		case dispatch.StateThinking:
			l.think(ctx, r, specs)
		case dispatch.StateCalling:
			l.call(ctx, r, tools)
		default:
			r.fail(fmt.Errorf("dispatch loop reached state %s", r.state))
		}
	}

	if r.state == dispatch.StateFailed {
		r.logger.Warn().Err(r.err).Int("step", r.calls).Dur("duration", time.Since(start)).Msg("run failed")
		return nil, r.err
	}
	r.logger.Info().Int("step", r.calls).Dur("duration", time.Since(start)).Msg("run done")
	return &Result{Text: r.text, Calls: r.calls, RunID: cfg.runID}, nil
}

func (l *Loop) think(ctx context.Context, r *run, specs []dispatch.Tool) {
	if err := ctx.Err(); err != nil {
		r.fail(err)
		return
	}

	req := dispatch.Request{
		SystemPrompt: l.systemPrompt,
		Transcript:   r.transcript,
		Tools:        specs,
	}
	if err := req.Validate(); err != nil {
		r.fail(fmt.Errorf("reasoning engine: %w: malformed request: %v", dispatch.ErrEngine, err))
		return
	}

	step, err := l.engine.Next(ctx, req)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			r.fail(cerr)
			return
		}
		r.fail(fmt.Errorf("reasoning engine: %w: %w", dispatch.ErrEngine, err))
		return
	}

	switch s := step.(type) {
	case dispatch.Final:
		r.text = s.Text
		r.emit(dispatch.EventFinal{Text: s.Text})
		r.transition(dispatch.StateDone)
	case dispatch.CallTool:
		if s.Name == "" {
			r.fail(fmt.Errorf("reasoning engine: %w: tool call without a name", dispatch.ErrEngine))
			return
		}
		if r.calls >= l.maxSteps {
			r.fail(fmt.Errorf("%w: %d tool calls", dispatch.ErrStepBudgetExceeded, l.maxSteps))
			return
		}
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		r.pending = s
		r.transition(dispatch.StateCalling)
	case nil:
		r.fail(fmt.Errorf("reasoning engine: %w: no step returned", dispatch.ErrEngine))
	default:
		r.fail(fmt.Errorf("reasoning engine: %w: unknown step %T", dispatch.ErrEngine, step))
	}
}

func (l *Loop) call(ctx context.Context, r *run, tools dispatch.ToolExecutor) {
	if err := ctx.Err(); err != nil {
		r.fail(err)
		return
	}

	call := r.pending
	r.transcript = append(r.transcript, dispatch.AssistantMessage{Call: call, Timestamp: time.Now()})
	r.emit(dispatch.EventToolCall{Call: call})

	start := time.Now()
	result := tools.Invoke(ctx, call.Name, call.Arguments)
	r.calls++

	ev := r.logger.Debug()
	if result.IsError {
		ev = r.logger.Info().Str("code", string(result.Code)).Str("error", truncate.Preview(result.Content, previewWidth))
	}
	ev.Str("tool", call.Name).Int("step", r.calls).Dur("duration", time.Since(start)).Msg("tool call")

	r.transcript = append(r.transcript, dispatch.ToolResultMessage{
		CallID:    call.ID,
		Name:      call.Name,
		Result:    result,
		Timestamp: time.Now(),
	})
	r.emit(dispatch.EventToolResult{CallID: call.ID, Name: call.Name, Result: result})
	r.transition(dispatch.StateThinking)
}

func (r *run) transition(s dispatch.State) {
	r.state = s
	r.emit(dispatch.EventState{State: s, Step: r.calls})
}

func (r *run) fail(err error) {
	if err == nil {
		err = errors.New("dispatch loop failed")
	}
	r.err = err
	r.transition(dispatch.StateFailed)
}

func (r *run) emit(e dispatch.Event) {
	if r.cfg.onEvent != nil {
		r.cfg.onEvent(e)
	}
}
