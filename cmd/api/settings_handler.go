package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"locum-backend/pkg/ai"
	"locum-backend/pkg/backoff"

	"github.com/gin-gonic/gin"
)

const ollamaPingTimeout = 5 * time.Second

// RuntimeConfig is the extractor configuration visible to the dashboard.
// Only the Ollama endpoint and model can change while running; the provider
// is fixed at startup.
type RuntimeConfig struct {
	Provider      string `json:"provider"`
	OllamaBaseURL string `json:"ollama_base_url"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

type runtimeSettings struct {
	mu  sync.RWMutex
	cfg RuntimeConfig
}

var settings runtimeSettings

func (s *runtimeSettings) get() RuntimeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *runtimeSettings) update(fn func(*RuntimeConfig)) RuntimeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cfg)
	return s.cfg
}

// InitRuntimeConfig seeds the settings from static config.
func InitRuntimeConfig(provider, ollamaBaseURL, ollamaModel string) {
	settings.update(func(c *RuntimeConfig) {
		*c = RuntimeConfig{Provider: provider, OllamaBaseURL: ollamaBaseURL, OllamaModel: ollamaModel}
	})
}

// GetRuntimeOllamaBaseURL is read by the extractor on every call.
func GetRuntimeOllamaBaseURL() string { return settings.get().OllamaBaseURL }

func GetRuntimeOllamaModel() string { return settings.get().OllamaModel }

type UpdateExtractorSettingsRequest struct {
	OllamaBaseURL string `json:"ollama_base_url" binding:"required"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// GetExtractorSettings
// GET /api/settings/extractor
func GetExtractorSettings(c *gin.Context) {
	c.JSON(http.StatusOK, settings.get())
}

// UpdateExtractorSettings swaps the Ollama endpoint used by the next extraction call.
// PUT /api/settings/extractor
func UpdateExtractorSettings(c *gin.Context) {
	var req UpdateExtractorSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	baseURL, err := normalizeBaseURL(req.OllamaBaseURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	current := settings.update(func(cfg *RuntimeConfig) {
		cfg.OllamaBaseURL = baseURL
		if req.OllamaModel != "" {
			cfg.OllamaModel = req.OllamaModel
		}
	})
	c.JSON(http.StatusOK, current)
}

// TestOllamaConnection pings the given (or current) Ollama server.
// POST /api/settings/extractor/test
func TestOllamaConnection(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	_ = c.ShouldBindJSON(&req)

	baseURL := GetRuntimeOllamaBaseURL()
	if req.OllamaBaseURL != "" {
		normalized, err := normalizeBaseURL(req.OllamaBaseURL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		baseURL = normalized
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ollamaPingTimeout)
	defer cancel()

	if err := ai.NewOllamaService(baseURL, "").Ping(ctx, baseURL); err != nil {
		resp := gin.H{"connected": false, "error": err.Error()}
		if code, ok := backoff.StatusOf(err); ok {
			resp["status_code"] = code
		}
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "ollama_base_url": baseURL})
}

// normalizeBaseURL accepts absolute http(s) URLs and strips a trailing slash.
func normalizeBaseURL(raw string) (string, error) {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid ollama_base_url %q", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}
