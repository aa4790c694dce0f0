// Package registry holds the tools available to one dispatch run and invokes
// them by name with schema-validated arguments.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/jsonschema"
	"github.com/fwojciec/dispatch/truncate"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Interface compliance check.
var _ dispatch.ToolExecutor = (*Registry)(nil)

type entry struct {
	spec   dispatch.ToolSpec
	schema *jsonschema.Schema
}

// Registry is an ordered, name-keyed set of tools. Its contents never change
// after construction.
type Registry struct {
	entries    []entry
	index      map[string]int
	logger     zerolog.Logger
	maxPayload int
}

// New builds a Registry from specs, keeping their order. It fails on empty or
// duplicate names and on schemas that do not compile.
func New(specs []dispatch.ToolSpec, opts ...Option) (*Registry, error) {
	o := newOptions(opts)
	r := &Registry{
		entries:    make([]entry, 0, len(specs)),
		index:      make(map[string]int, len(specs)),
		logger:     o.logger,
		maxPayload: o.maxPayload,
	}
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("tool with empty name: %w", dispatch.ErrValidation)
		}
		if _, dup := r.index[s.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q: %w", s.Name, dispatch.ErrValidation)
		}
		if s.Invoke == nil {
			return nil, fmt.Errorf("tool %q has no invoke function: %w", s.Name, dispatch.ErrValidation)
		}
		schema, err := jsonschema.Compile(s.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", s.Name, err)
		}
		r.index[s.Name] = len(r.entries)
		r.entries = append(r.entries, entry{spec: s, schema: schema})
	}
	return r, nil
}

// Tools returns the engine-visible tool signatures in registry order.
func (r *Registry) Tools() []dispatch.Tool {
	tools := make([]dispatch.Tool, len(r.entries))
	for i, e := range r.entries {
		tools[i] = e.spec.Tool()
	}
	return tools
}

// Len returns the number of tools.
func (r *Registry) Len() int { return len(r.entries) }

// Invoke runs the named tool. Every failure, including a panic inside the
// tool, is returned as an error result.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (result dispatch.ToolResult) {
	i, ok := r.index[name]
	if !ok {
		r.logger.Debug().Str("tool", name).Msg("unknown tool")
		return dispatch.ErrResult(fmt.Errorf("%w: %q", dispatch.ErrUnknownTool, name))
	}
	e := r.entries[i]

	if err := e.schema.Validate(args); err != nil {
		r.logger.Debug().Str("tool", name).Err(err).Msg("invalid arguments")
		return dispatch.ErrResult(err)
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Str("tool", name).Interface("panic", p).Msg("tool panicked")
			result = internalFailure(name)
		}
		level := zerolog.DebugLevel
		if result.IsError {
			level = zerolog.WarnLevel
		}
		r.logger.WithLevel(level).Str("tool", name).Str("code", string(result.Code)).Dur("duration", time.Since(start)).Bool("is_error", result.IsError).
			Str("result", truncate.Preview(result.Content, 120)).Msg("tool invoked")
	}()

	out, err := e.spec.Invoke(ctx, args)
	if err != nil {
		if !dispatch.Classified(err) {
			r.logger.Error().Str("tool", name).Err(err).Msg("unclassified tool failure")
			return internalFailure(name)
		}
		return dispatch.ErrResult(err)
	}

	payload, err := codec.Marshal(out)
	if err != nil {
		r.logger.Error().Str("tool", name).Err(err).Msg("encode tool result")
		return internalFailure(name)
	}
	return dispatch.ToolResult{Content: truncate.Marked(string(payload), r.maxPayload)}
}

func internalFailure(name string) dispatch.ToolResult {
	return dispatch.ToolResult{
		Content: name + " failed unexpectedly",
		IsError: true,
		Code:    dispatch.CodeInternal,
	}
}
