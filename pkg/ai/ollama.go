package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultOllamaTimeout bounds a single generate call.
const DefaultOllamaTimeout = 2 * time.Minute

// OllamaService implements OfferExtractor using an Ollama server
type OllamaService struct {
	getBaseURL func() string // Dynamic getter for BaseURL
	getModel   func() string // Dynamic getter for Model
	httpClient *http.Client
}

// NewOllamaService creates a new Ollama service
func NewOllamaService(baseURL, model string) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return NewOllamaServiceWithGetters(
		func() string { return baseURL },
		func() string { return model },
	)
}

// NewOllamaServiceWithGetters reads base URL and model on every call, so
// runtime settings changes apply immediately.
func NewOllamaServiceWithGetters(getBaseURL, getModel func() string) *OllamaService {
	return &OllamaService{
		getBaseURL: getBaseURL,
		getModel:   getModel,
		httpClient: &http.Client{Timeout: DefaultOllamaTimeout},
	}
}

// OllamaError is a non-200 reply from the Ollama API.
type OllamaError struct {
	Code int
	Body string
}

func (e *OllamaError) Error() string {
	return fmt.Sprintf("ollama API error (%d): %s", e.Code, e.Body)
}

func (e *OllamaError) StatusCode() int { return e.Code }

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system"`
	Prompt  string        `json:"prompt"`
	Format  string        `json:"format"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

// ExtractOffers implements OfferExtractor
func (o *OllamaService) ExtractOffers(ctx context.Context, text string) (*ExtractionResult, error) {
	url := o.getBaseURL() + "/api/generate"

	payload := ollamaGenerateRequest{
		Model:   o.getModel(),
		System:  SystemPrompt,
		Prompt:  text,
		Format:  "json",
		Stream:  false,
		Options: ollamaOptions{Temperature: Temperature},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &OllamaError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return ParseExtraction(result.Response)
}

// Ping checks that the Ollama server answers on /api/tags.
func (o *OllamaService) Ping(ctx context.Context, baseURL string) error {
	if baseURL == "" {
		baseURL = o.getBaseURL()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &OllamaError{Code: resp.StatusCode}
	}
	return nil
}
