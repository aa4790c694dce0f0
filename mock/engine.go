// Package mock provides test doubles for dispatch interfaces using function fields.
package mock

import (
	"context"
	"errors"

	"github.com/fwojciec/dispatch"
)

var errScriptExhausted = errors.New("mock: script exhausted")

// Interface compliance check.
var _ dispatch.Engine = (*Engine)(nil)

// Engine is a test double for dispatch.Engine.
// Set NextFn before calling Next.
type Engine struct {
	NextFn func(ctx context.Context, req dispatch.Request) (dispatch.Step, error)
}

// Next delegates to NextFn.
func (e *Engine) Next(ctx context.Context, req dispatch.Request) (dispatch.Step, error) {
	return e.NextFn(ctx, req)
}

// Script returns an Engine that replays steps in order and fails once they
// run out.
func Script(steps ...dispatch.Step) *Engine {
	i := 0
	return &Engine{
		NextFn: func(context.Context, dispatch.Request) (dispatch.Step, error) {
			if i >= len(steps) {
				return nil, errScriptExhausted
			}
			s := steps[i]
			i++
			return s, nil
		},
	}
}
