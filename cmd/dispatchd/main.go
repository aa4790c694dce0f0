// Command dispatchd answers natural-language requests by letting a reasoning
// engine call task-board, chat, payment and email tools.
//
// Usage:
//
//	GEMINI_API_KEY=... MONDAY_KEY=... dispatchd [flags]
//
// Flags:
//
//	-config string    Path to a YAML, TOML or JSON config file
//	-addr string      Listen address (overrides server.addr)
//	-provider string  Engine: gemini, openai, anthropic, ollama (auto-detected if omitted)
//	-model string     Model ID (default: provider default)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fwojciec/dispatch/config"
	"github.com/fwojciec/dispatch/server"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dispatchd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "Path to config file")
		addr       = flag.String("addr", "", "Listen address")
		provider   = flag.String("provider", "", "Engine: gemini, openai, anthropic, ollama (auto-detected from env vars if omitted)")
		model      = flag.String("model", "", "Model ID (provider-specific)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, cfg, err := loadConfig(*configPath, map[string]string{
		"server.addr":     *addr,
		"engine.provider": *provider,
		"engine.model":    *model,
	})
	if err != nil {
		return err
	}

	logger, err := newLogger(os.Stderr, cfg.Log)
	if err != nil {
		return err
	}

	engine, name, err := newEngine(ctx, cfg.Engine)
	if err != nil {
		return err
	}

	store := config.NewStore(cfg)
	if *configPath != "" {
		config.Watch(v, func(next *config.Config, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("config reload rejected")
				return
			}
			if next.Engine != cfg.Engine || next.Server.Addr != cfg.Server.Addr {
				logger.Warn().Msg("engine and listen address changes take effect after restart")
			}
			if lvl, err := zerolog.ParseLevel(next.Log.Level); err == nil {
				zerolog.SetGlobalLevel(lvl)
			}
			_ = store.Swap(next)
			logger.Info().Int("max_steps", next.Dispatch.MaxSteps).Msg("config reloaded")
		})
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(engine, store, server.WithLogger(logger)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("engine", name).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// loadConfig reads the configuration and applies the non-empty flag values on
// top, so they also survive reloads of the file.
func loadConfig(path string, overrides map[string]string) (*viper.Viper, *config.Config, error) {
	v, err := config.Viper(path)
	if err != nil {
		return nil, nil, err
	}
	for key, value := range overrides {
		if value != "" {
			v.Set(key, value)
		}
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return v, cfg, nil
}

// newLogger builds the process logger. The level is applied globally so a
// reload can change it.
func newLogger(w io.Writer, cfg config.LogConfig) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).With().Timestamp().Logger(), nil
}
