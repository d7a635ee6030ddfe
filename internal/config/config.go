// Package config loads and validates synod configuration from a YAML file
// and SYNOD_* environment variables, with defaults for everything so a bare
// install works once API keys are present.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete synod configuration.
type Config struct {
	Council Council `mapstructure:"council"`
	Gateway Gateway `mapstructure:"gateway"`
	Server  Server  `mapstructure:"server"`
	Storage Storage `mapstructure:"storage"`
	Logging Logging `mapstructure:"logging"`
}

// Council controls the deliberation itself.
type Council struct {
	// Participants are the council model identities, in label order.
	// Identities are prefix-routed to a gateway backend (e.g.
	// "openai/gpt-5.1" via OpenRouter, "gemini-2.5-pro" via Gemini).
	Participants []string `mapstructure:"participants"`
	// Synthesizer is the chairman model producing the final answer.
	Synthesizer string `mapstructure:"synthesizer"`
	// DebateRounds is the number of rebuttal rounds in debate mode.
	DebateRounds int `mapstructure:"debate_rounds"`
	// AnonymizeSynthesis keeps opaque labels in the synthesizer prompt
	// (default: true).
	AnonymizeSynthesis bool `mapstructure:"anonymize_synthesis"`
	// StaleAfterMinutes bounds how old an interrupted deliberation's
	// checkpoint may be and still be resumed (default: 30).
	StaleAfterMinutes int `mapstructure:"stale_after_minutes"`
}

// Gateway controls provider access.
type Gateway struct {
	// OpenRouterAPIKey authenticates OpenRouter calls. Also read from
	// OPENROUTER_API_KEY.
	OpenRouterAPIKey string `mapstructure:"openrouter_api_key"`
	// OpenRouterBaseURL overrides the OpenRouter endpoint, mainly for tests.
	OpenRouterBaseURL string `mapstructure:"openrouter_base_url"`
	// GeminiAPIKey authenticates direct Gemini calls. Also read from
	// GEMINI_API_KEY.
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	// RequestTimeoutSeconds is the per-call deadline (default: 300).
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	// Pricing maps model identity to per-million-token USD rates for cost
	// estimation. Models without an entry report zero cost.
	Pricing map[string]Pricing `mapstructure:"pricing"`
}

// Pricing is a per-model token price pair.
type Pricing struct {
	InputPerMTok  float64 `mapstructure:"input_per_mtok"`
	OutputPerMTok float64 `mapstructure:"output_per_mtok"`
}

// Server controls the HTTP API.
type Server struct {
	// Addr is the listen address (default: "127.0.0.1:8765").
	Addr string `mapstructure:"addr"`
}

// Storage controls where conversations are kept.
type Storage struct {
	// Dir is the data directory. Empty means ~/.synod.
	Dir string `mapstructure:"dir"`
}

// Logging controls debug logging behavior.
type Logging struct {
	// Enabled controls whether file logging is enabled (default: true).
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info").
	Level string `mapstructure:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Council: Council{
			Participants: []string{
				"openai/gpt-5.1",
				"anthropic/claude-sonnet-4.5",
				"google/gemini-2.5-pro",
				"x-ai/grok-4",
			},
			Synthesizer:        "google/gemini-2.5-pro",
			DebateRounds:       2,
			AnonymizeSynthesis: true,
			StaleAfterMinutes:  30,
		},
		Gateway: Gateway{
			RequestTimeoutSeconds: 300,
		},
		Server: Server{
			Addr: "127.0.0.1:8765",
		},
		Logging: Logging{
			Enabled: true,
			Level:   "info",
		},
	}
}

// SetDefaults registers all defaults with viper. Call before Load.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("council.participants", defaults.Council.Participants)
	viper.SetDefault("council.synthesizer", defaults.Council.Synthesizer)
	viper.SetDefault("council.debate_rounds", defaults.Council.DebateRounds)
	viper.SetDefault("council.anonymize_synthesis", defaults.Council.AnonymizeSynthesis)
	viper.SetDefault("council.stale_after_minutes", defaults.Council.StaleAfterMinutes)

	viper.SetDefault("gateway.openrouter_api_key", defaults.Gateway.OpenRouterAPIKey)
	viper.SetDefault("gateway.openrouter_base_url", defaults.Gateway.OpenRouterBaseURL)
	viper.SetDefault("gateway.gemini_api_key", defaults.Gateway.GeminiAPIKey)
	viper.SetDefault("gateway.request_timeout_seconds", defaults.Gateway.RequestTimeoutSeconds)

	viper.SetDefault("server.addr", defaults.Server.Addr)
	viper.SetDefault("storage.dir", defaults.Storage.Dir)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	viper.SetEnvPrefix("SYNOD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Conventional provider key variables work without the SYNOD prefix.
	_ = viper.BindEnv("gateway.openrouter_api_key", "SYNOD_GATEWAY_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	_ = viper.BindEnv("gateway.gemini_api_key", "SYNOD_GATEWAY_GEMINI_API_KEY", "GEMINI_API_KEY")
}

// Load reads the configuration from viper into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// StaleAfter returns the checkpoint staleness threshold as a duration.
func (c *Council) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

// RequestTimeout returns the per-call deadline as a duration.
func (g *Gateway) RequestTimeout() time.Duration {
	return time.Duration(g.RequestTimeoutSeconds) * time.Second
}

// DataDir resolves the storage directory, defaulting to ~/.synod.
func (s *Storage) DataDir() string {
	if s.Dir != "" {
		return expandHome(s.Dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".synod"
	}
	return filepath.Join(home, ".synod")
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "synod")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".synod"
	}
	return filepath.Join(home, ".config", "synod")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
