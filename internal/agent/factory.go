package agent

import (
	"context"
	"fmt"

	"github.com/gruebot/gruebot/internal/config"
)

// New builds the Provider named by the config. The choice happens exactly
// once; everything downstream works against the Provider interface.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		provider, err := NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.MaxCommandTokens, cfg.Temperature, cfg.Verbose)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
		}
		return provider, nil

	case config.ProviderOllama:
		provider, err := NewOllamaProvider(ctx, cfg.BaseURL, cfg.Model, cfg.MaxCommandTokens, cfg.Temperature, cfg.TopP, cfg.Verbose)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama provider: %w", err)
		}
		return provider, nil

	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: %s, %s)", cfg.Provider, config.ProviderAnthropic, config.ProviderOllama)
	}
}
