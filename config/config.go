// Package config loads dispatchd settings with viper and keeps the current
// snapshot available for concurrent readers while the file is watched for
// changes.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/fwojciec/dispatch"
	"github.com/fwojciec/dispatch/monday"
	"github.com/fwojciec/dispatch/registry"
	"github.com/fwojciec/dispatch/slack"
	"github.com/fwojciec/dispatch/transport"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Engine providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Config is one immutable snapshot of the settings. Replace it, never mutate it.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Adapters AdaptersConfig `mapstructure:"adapters"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"` // empty allows any origin
}

// DispatchConfig bounds and primes each run.
type DispatchConfig struct {
	MaxSteps     int    `mapstructure:"max_steps"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// EngineConfig selects the reasoning engine.
type EngineConfig struct {
	Provider        string `mapstructure:"provider"` // empty means detect from keys
	Model           string `mapstructure:"model"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	OllamaHost      string `mapstructure:"ollama_host"`
}

// AdaptersConfig holds the service credentials and the HTTP behaviour shared
// by all adapters.
type AdaptersConfig struct {
	Timeout    time.Duration     `mapstructure:"timeout"`
	RateLimit  float64           `mapstructure:"rate_limit"` // calls per second, 0 disables
	Burst      int               `mapstructure:"burst"`
	Enabled    []string          `mapstructure:"enabled"`
	MaxPayload int               `mapstructure:"max_payload"`
	BaseURLs   map[string]string `mapstructure:"base_urls"`
	MondayKey  string            `mapstructure:"monday_key"`
	SlackKey   string            `mapstructure:"slack_key"`
	StripeKey  string            `mapstructure:"stripe_key"`
	ResendKey  string            `mapstructure:"resend_key"`
	Monday     MondayConfig      `mapstructure:"monday"`
	Slack      SlackConfig       `mapstructure:"slack"`
}

// MondayConfig tunes the task-board adapter. Zero values keep the adapter's
// defaults.
type MondayConfig struct {
	StatusColumn string `mapstructure:"status_column"`
	PageLimit    int    `mapstructure:"page_limit"`
}

// SlackConfig tunes the messaging adapter. Zero keeps the adapter's default.
type SlackConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
}

// LogConfig sets the zerolog level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// envAliases binds keys to the plain variable names deployments already use,
// in addition to their DISPATCH_ prefixed form.
var envAliases = map[string]string{
	"adapters.monday_key":      "MONDAY_KEY",
	"adapters.slack_key":       "SLACK_KEY",
	"adapters.stripe_key":      "STRIPE_KEY",
	"adapters.resend_key":      "RESEND_KEY",
	"engine.gemini_api_key":    "GEMINI_API_KEY",
	"engine.openai_api_key":    "OPENAI_API_KEY",
	"engine.anthropic_api_key": "ANTHROPIC_API_KEY",
	"engine.ollama_host":       "OLLAMA_HOST",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", "2m")
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("dispatch.max_steps", 10)
	v.SetDefault("dispatch.system_prompt", DefaultSystemPrompt)

	v.SetDefault("engine.provider", "")
	v.SetDefault("engine.model", "")

	v.SetDefault("adapters.timeout", transport.DefaultTimeout.String())
	v.SetDefault("adapters.rate_limit", 0)
	v.SetDefault("adapters.burst", 1)
	v.SetDefault("adapters.enabled", []string{})
	v.SetDefault("adapters.max_payload", 32*1024)
	v.SetDefault("adapters.base_urls", map[string]string{})
	v.SetDefault("adapters.monday.status_column", "")
	v.SetDefault("adapters.monday.page_limit", 0)
	v.SetDefault("adapters.slack.history_limit", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// DefaultSystemPrompt instructs the engine how to use the tools.
const DefaultSystemPrompt = `You help a team with their task board, chat, payments and email.
Use the available tools to look things up or act, one call at a time.
When a tool reports an error, decide whether another call can still answer the request.
Answer briefly in plain language once you have what you need.`

// Viper returns a viper instance with defaults, environment bindings and,
// when path is not empty, the contents of that file.
func Viper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		envKey := "DISPATCH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, alias); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

// Decode unmarshals and validates the current state of v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the configuration from defaults, the optional file at path and
// the environment.
func Load(path string) (*Config, error) {
	v, err := Viper(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.RequestTimeout <= 0:
		return invalid("server.request_timeout must be positive")
	case c.Dispatch.MaxSteps < 1:
		return invalid("dispatch.max_steps must be at least 1")
	case c.Adapters.Timeout <= 0:
		return invalid("adapters.timeout must be positive")
	case c.Adapters.RateLimit < 0:
		return invalid("adapters.rate_limit must not be negative")
	case c.Adapters.MaxPayload < 0:
		return invalid("adapters.max_payload must not be negative")
	case c.Adapters.Monday.PageLimit < 0:
		return invalid("adapters.monday.page_limit must not be negative")
	case c.Adapters.Slack.HistoryLimit < 0:
		return invalid("adapters.slack.history_limit must not be negative")
	case c.Log.Format != "json" && c.Log.Format != "console":
		return invalid(fmt.Sprintf("log.format must be json or console, got %q", c.Log.Format))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return invalid(fmt.Sprintf("log.level %q is not a level", c.Log.Level))
	}
	for _, o := range c.Server.CORSOrigins {
		if o == "" {
			return invalid("server.cors_origins has an empty entry")
		}
	}
	for _, p := range c.Adapters.Enabled {
		if !doublestar.ValidatePattern(p) {
			return invalid(fmt.Sprintf("adapters.enabled has invalid pattern %q", p))
		}
	}
	for service := range c.Adapters.BaseURLs {
		switch service {
		case registry.ServiceMonday, registry.ServiceSlack, registry.ServiceStripe, registry.ServiceResend:
		default:
			return invalid(fmt.Sprintf("adapters.base_urls has unknown service %q", service))
		}
	}
	if _, _, err := c.Engine.Resolve(); err != nil {
		return err
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", dispatch.ErrValidation, msg)
}

// Resolve selects the engine provider and its key or host. When Provider is
// empty it is detected from whichever single API key is set.
func (e EngineConfig) Resolve() (provider, key string, err error) {
	provider = e.Provider
	if provider == "" {
		var found []string
		for _, p := range []struct{ name, key string }{
			{ProviderGemini, e.GeminiAPIKey},
			{ProviderOpenAI, e.OpenAIAPIKey},
			{ProviderAnthropic, e.AnthropicAPIKey},
		} {
			if p.key != "" {
				found = append(found, p.name)
			}
		}
		switch len(found) {
		case 0:
			if e.OllamaHost == "" {
				return "", "", invalid("no engine configured: set GEMINI_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY or OLLAMA_HOST")
			}
			provider = ProviderOllama
		case 1:
			provider = found[0]
		default:
			return "", "", invalid(fmt.Sprintf("multiple engine keys found (%s): set engine.provider to select one", strings.Join(found, ", ")))
		}
	}

	switch provider {
	case ProviderGemini:
		key = e.GeminiAPIKey
	case ProviderOpenAI:
		key = e.OpenAIAPIKey
	case ProviderAnthropic:
		key = e.AnthropicAPIKey
	case ProviderOllama:
		return provider, e.OllamaHost, nil
	default:
		return "", "", invalid(fmt.Sprintf("unknown engine provider %q", provider))
	}
	if key == "" {
		return "", "", invalid(fmt.Sprintf("engine %s has no API key", provider))
	}
	return provider, key, nil
}

// Credentials returns the adapter keys as a value for registry construction.
func (c *Config) Credentials() dispatch.Credentials {
	return dispatch.Credentials{
		TaskBoard: c.Adapters.MondayKey,
		Messaging: c.Adapters.SlackKey,
		Payments:  c.Adapters.StripeKey,
		Mail:      c.Adapters.ResendKey,
	}
}

// RegistryOptions translates the adapter settings into registry options.
func (c *Config) RegistryOptions(logger zerolog.Logger) []registry.Option {
	opts := []registry.Option{
		registry.WithLogger(logger),
		registry.WithMaxPayload(c.Adapters.MaxPayload),
		registry.WithTransportOptions(
			transport.WithTimeout(c.Adapters.Timeout),
			transport.WithRateLimit(c.Adapters.RateLimit, c.Adapters.Burst),
		),
	}
	if len(c.Adapters.Enabled) > 0 {
		opts = append(opts, registry.WithEnabled(c.Adapters.Enabled...))
	}
	for service, url := range c.Adapters.BaseURLs {
		opts = append(opts, registry.WithBaseURL(service, url))
	}

	var mondayOpts []monday.Option
	if c.Adapters.Monday.StatusColumn != "" {
		mondayOpts = append(mondayOpts, monday.WithStatusColumn(c.Adapters.Monday.StatusColumn))
	}
	if c.Adapters.Monday.PageLimit > 0 {
		mondayOpts = append(mondayOpts, monday.WithPageLimit(c.Adapters.Monday.PageLimit))
	}
	if len(mondayOpts) > 0 {
		opts = append(opts, registry.WithMondayOptions(mondayOpts...))
	}
	if c.Adapters.Slack.HistoryLimit > 0 {
		opts = append(opts, registry.WithSlackOptions(slack.WithHistoryLimit(c.Adapters.Slack.HistoryLimit)))
	}
	return opts
}

// Watch re-decodes v whenever its config file is written and reports the
// outcome to onChange. A failed decode leaves the caller's snapshot alone.
func Watch(v *viper.Viper, onChange func(*Config, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(Decode(v))
	})
	v.WatchConfig()
}

// Store holds the current snapshot for concurrent readers.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore returns a Store holding cfg.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.current.Store(cfg)
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() *Config { return s.current.Load() }

// Swap replaces the snapshot. A nil cfg is rejected.
func (s *Store) Swap(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil snapshot")
	}
	s.current.Store(cfg)
	return nil
}
