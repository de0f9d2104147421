package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"

	"locum-backend/pkg/backoff"
)

// FallbackService tries Gemini first and falls back to Ollama when Gemini is
// unreachable, out of quota or returning 5xx.
type FallbackService struct {
	gemini OfferExtractor
	ollama OfferExtractor
}

// NewFallbackService creates a new fallback service; either provider may be nil.
func NewFallbackService(gemini, ollama OfferExtractor) *FallbackService {
	return &FallbackService{
		gemini: gemini,
		ollama: ollama,
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource_exhausted",
		"resource exhausted",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// fallbackReason reports why a Gemini failure should be retried on Ollama:
// the service is unreachable, out of quota, or failing server-side. Any
// other error, a 4xx included, yields "" and is returned as is.
func fallbackReason(ctx context.Context, err error) string {
	if ctx.Err() != nil || errors.Is(err, ErrSchemaViolation) {
		return ""
	}
	if code, ok := backoff.StatusOf(err); ok {
		switch {
		case code == 429 || isQuotaError(err):
			return "quota exhausted"
		case code >= 500:
			return fmt.Sprintf("server error %d", code)
		}
		return ""
	}
	switch {
	case isQuotaError(err):
		return "quota exhausted"
	case isConnectionError(err):
		return "unreachable"
	}
	return ""
}

// ExtractOffers tries Gemini first (better quality), falls back to Ollama
func (f *FallbackService) ExtractOffers(ctx context.Context, text string) (*ExtractionResult, error) {
	if f.gemini != nil {
		result, err := f.gemini.ExtractOffers(ctx, text)
		if err == nil {
			return result, nil
		}
		reason := fallbackReason(ctx, err)
		if reason == "" || f.ollama == nil {
			return nil, fmt.Errorf("gemini extraction failed: %w", err)
		}
		log.Printf("[AI] Gemini %s: %v, falling back to Ollama", reason, err)
	}

	if f.ollama != nil {
		result, err := f.ollama.ExtractOffers(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("ollama extraction failed: %w", err)
		}
		return result, nil
	}

	return nil, fmt.Errorf("no AI provider available for extraction")
}
