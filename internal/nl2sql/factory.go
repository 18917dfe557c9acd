package nl2sql

import (
	"fmt"
	"strings"

	"github.com/querypilot/querypilot/internal/config"
)

// NewFromConfig returns ErrNotConfigured when no API key is set, so callers
// can run without a provider.
func NewFromConfig(cfg config.AIConfig) (Translator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}

	var (
		translator Translator
		err        error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		translator, err = NewOpenAITranslator(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	case config.ProviderGemini, "":
		translator, err = NewGeminiTranslator(GeminiConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported translation provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s translator: %w", cfg.Provider, err)
	}
	return RateLimited(translator, cfg.RateLimit, cfg.Burst), nil
}
