package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zhengjr9/vibes/internal/config"
	"github.com/zhengjr9/vibes/internal/provider"
	"github.com/zhengjr9/vibes/internal/provider/anthropic"
	"github.com/zhengjr9/vibes/internal/provider/gemini"
	"github.com/zhengjr9/vibes/internal/provider/lorem"
)

// FromConfig builds the providers that have credentials and returns an
// Orchestrator over them. With cfg.Offline both slots are served by the
// lorem provider.
func FromConfig(ctx context.Context, cfg *config.Config) (*Orchestrator, error) {
	def, err := provider.ParseID(cfg.DefaultProvider)
	if err != nil {
		return nil, fmt.Errorf("default provider: %w", err)
	}

	var providers []provider.Provider
	if cfg.Offline {
		providers = []provider.Provider{lorem.New(provider.Claude), lorem.New(provider.Gemini)}
		slog.Warn("offline mode: serving generations from the lorem provider")
		return New(providers, WithDefault(def)), nil
	}

	if cfg.AnthropicAPIKey != "" {
		p, err := anthropic.New(anthropic.Config{
			APIKey:     cfg.AnthropicAPIKey,
			BaseURL:    cfg.AnthropicBaseURL,
			Model:      cfg.AnthropicModel,
			MaxTokens:  cfg.MaxOutputTokens,
			MaxRetries: cfg.ProviderMaxRetries,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if cfg.GoogleAPIKey != "" {
		p, err := gemini.New(ctx, gemini.Config{
			APIKey:    cfg.GoogleAPIKey,
			BaseURL:   cfg.GeminiBaseURL,
			Model:     cfg.GeminiModel,
			MaxTokens: cfg.MaxOutputTokens,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	o := New(providers, WithDefault(def))
	slog.Info("providers configured",
		"claude", o.Configured(provider.Claude),
		"gemini", o.Configured(provider.Gemini),
		"default", o.fallback,
	)
	return o, nil
}
