package ai

import (
	"context"

	"locum-backend/pkg/gemini"
)

// GeminiExtractor implements OfferExtractor over the Gemini generateContent API.
type GeminiExtractor struct {
	client *gemini.GeminiService
}

func NewGeminiExtractor(client *gemini.GeminiService) *GeminiExtractor {
	return &GeminiExtractor{client: client}
}

func (g *GeminiExtractor) ExtractOffers(ctx context.Context, text string) (*ExtractionResult, error) {
	raw, err := g.client.GenerateJSON(ctx, SystemPrompt, text, Temperature)
	if err != nil {
		return nil, err
	}
	return ParseExtraction(raw)
}
