package ai

import (
	"fmt"

	"locum-backend/pkg/gemini"
)

// DynamicConfig holds AI provider configuration with runtime getters for Ollama.
type DynamicConfig struct {
	Provider ProviderType

	GeminiAPIKey string
	GeminiModel  string

	GetOllamaBaseURL func() string
	GetOllamaModel   func() string
}

// NewOfferExtractor creates an OfferExtractor based on the config.
// "auto" uses Gemini with Ollama fallback when a Gemini key is configured.
func NewOfferExtractor(cfg DynamicConfig) (OfferExtractor, error) {
	ollama := NewOllamaServiceWithGetters(cfg.GetOllamaBaseURL, cfg.GetOllamaModel)

	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiExtractor(gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel)), nil

	case ProviderOllama:
		return ollama, nil

	default:
		if cfg.GeminiAPIKey != "" {
			g := NewGeminiExtractor(gemini.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel))
			return NewFallbackService(g, ollama), nil
		}
		return ollama, nil
	}
}
