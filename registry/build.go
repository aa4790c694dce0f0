package registry

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/monday"
	"github.com/fwojciec/dispatch/resend"
	"github.com/fwojciec/dispatch/slack"
	"github.com/fwojciec/dispatch/stripe"
)

// Build constructs the adapters for every non-empty credential and returns a
// Registry of their tools in a fixed order: task board, messaging, payments,
// mail. It performs no network I/O.
func Build(creds dispatch.Credentials, opts ...Option) (*Registry, error) {
	o := newOptions(opts)
	for _, p := range o.enabled {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("tool pattern %q: %w", p, dispatch.ErrValidation)
		}
	}

	var specs []dispatch.ToolSpec
	if creds.TaskBoard != "" {
		mopts := append([]monday.Option{monday.WithTransport(o.transportFor(ServiceMonday)...)}, o.monday...)
		specs = append(specs, monday.Tools(monday.New(creds.TaskBoard, mopts...))...)
	}
	if creds.Messaging != "" {
		sopts := append([]slack.Option{slack.WithTransport(o.transportFor(ServiceSlack)...)}, o.slack...)
		specs = append(specs, slack.Tools(slack.New(creds.Messaging, sopts...))...)
	}
	if creds.Payments != "" {
		c := stripe.New(creds.Payments, stripe.WithTransport(o.transportFor(ServiceStripe)...))
		specs = append(specs, stripe.Tools(c)...)
	}
	if creds.Mail != "" {
		c := resend.New(creds.Mail, resend.WithTransport(o.transportFor(ServiceResend)...))
		specs = append(specs, resend.Tools(c)...)
	}

	return New(o.filter(specs), opts...)
}

func (o options) filter(specs []dispatch.ToolSpec) []dispatch.ToolSpec {
	if len(o.enabled) == 0 {
		return specs
	}
	kept := specs[:0]
	for _, s := range specs {
		for _, p := range o.enabled {
			if ok, _ := doublestar.Match(p, s.Name); ok {
				kept = append(kept, s)
				break
			}
		}
	}
	return kept
}
