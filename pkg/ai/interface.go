package ai

import (
	"context"
	"errors"
)

// ErrSchemaViolation marks extractor output that is not valid JSON or does
// not match the offer schema.
var ErrSchemaViolation = errors.New("extraction output violates offer schema")

// Offer is one shift offer as returned by the model, after validation.
type Offer struct {
	Date           *string  `json:"date"`
	StartTime      *string  `json:"start_time"`
	EndTime        *string  `json:"end_time"`
	RateValue      *float64 `json:"rate_value"`
	RateUnit       *string  `json:"rate_unit"`
	PracticeName   *string  `json:"practice_name"`
	Postcode       *string  `json:"postcode"`
	Town           *string  `json:"town"`
	Agency         *string  `json:"agency"`
	BookingChannel string   `json:"booking_channel"`
	BookingTarget  *string  `json:"booking_target"`
	Notes          *string  `json:"notes"`
	Confidence     float64  `json:"confidence"`
}

// ExtractionResult is the top-level extractor response.
type ExtractionResult struct {
	Offers []Offer `json:"offers"`
}

// OfferExtractor turns raw message text into offers.
// Implement this interface to add new AI providers.
type OfferExtractor interface {
	ExtractOffers(ctx context.Context, text string) (*ExtractionResult, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
