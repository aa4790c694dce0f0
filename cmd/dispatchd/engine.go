package main

import (
	"context"
	"fmt"

	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/anthropic"
	"github.com/fwojciec/dispatch/config"
	"github.com/fwojciec/dispatch/gemini"
	"github.com/fwojciec/dispatch/ollama"
	"github.com/fwojciec/dispatch/openai"
)

// newEngine constructs the reasoning engine selected by cfg. The engine is
// fixed for the life of the process; reloads only affect the other settings.
func newEngine(ctx context.Context, cfg config.EngineConfig) (dispatch.Engine, string, error) {
	provider, key, err := cfg.Resolve()
	if err != nil {
		return nil, "", err
	}

	switch provider {
	case config.ProviderGemini:
		var opts []gemini.Option
		if cfg.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Model))
		}
		client, err := gemini.New(ctx, key, opts...)
		if err != nil {
			return nil, "", fmt.Errorf("gemini: %w", err)
		}
		return client, provider, nil
	case config.ProviderOpenAI:
		var opts []openai.Option
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		return openai.New(key, opts...), provider, nil
	case config.ProviderAnthropic:
		var opts []anthropic.Option
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Model))
		}
		return anthropic.New(key, opts...), provider, nil
	case config.ProviderOllama:
		var opts []ollama.Option
		if cfg.Model != "" {
			opts = append(opts, ollama.WithModel(cfg.Model))
		}
		client, err := ollama.New(key, opts...)
		if err != nil {
			return nil, "", err
		}
		return client, provider, nil
	default:
		return nil, "", fmt.Errorf("unknown engine provider %q", provider)
	}
}
