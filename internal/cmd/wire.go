package cmd

import (
	"context"
	"fmt"

	"github.com/synod-dev/synod/internal/config"
	"github.com/synod-dev/synod/internal/council"
	"github.com/synod-dev/synod/internal/gateway"
	"github.com/synod-dev/synod/internal/logging"
	"github.com/synod-dev/synod/internal/store"
)

// app holds everything a command needs once wired.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	store  *store.Store
	orch   *council.Orchestrator
}

// buildApp loads validated config and assembles the gateway registry,
// store, and orchestrator.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(cfg.Storage.DataDir(), cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logging: %w", err)
		}
	}

	openrouter := gateway.NewOpenRouterBackend(gateway.OpenRouterConfig{
		APIKey:  cfg.Gateway.OpenRouterAPIKey,
		BaseURL: cfg.Gateway.OpenRouterBaseURL,
	})
	registry := gateway.NewRegistry(openrouter, logger)
	registry.SetTimeout(cfg.Gateway.RequestTimeout())

	// Bare "gemini-" identities go directly to the Gemini API when a key
	// is configured; "google/gemini-*" still routes through OpenRouter.
	if cfg.Gateway.GeminiAPIKey != "" {
		gemini, err := gateway.NewGeminiBackend(ctx, cfg.Gateway.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini backend: %w", err)
		}
		registry.Register("gemini-", gemini)
	}
	for model, p := range cfg.Gateway.Pricing {
		registry.SetPricing(model, gateway.Pricing{
			InputPerMTok:  p.InputPerMTok,
			OutputPerMTok: p.OutputPerMTok,
		})
	}

	st, err := store.New(cfg.Storage.DataDir(), logger)
	if err != nil {
		return nil, err
	}

	orch := council.New(registry, st, logger, council.Options{
		Participants:       cfg.Council.Participants,
		Synthesizer:        cfg.Council.Synthesizer,
		AnonymizeSynthesis: cfg.Council.AnonymizeSynthesis,
		StaleAfter:         cfg.Council.StaleAfter(),
	})

	return &app{cfg: cfg, logger: logger, store: st, orch: orch}, nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Close()
	}
}
