package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func settingsRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/settings/extractor", GetExtractorSettings)
	r.PUT("/settings/extractor", UpdateExtractorSettings)
	r.POST("/settings/extractor/test", TestOllamaConnection)
	return r
}

func TestUpdateExtractorSettings(t *testing.T) {
	InitRuntimeConfig("auto", "http://localhost:11434", "llama3")
	r := settingsRouter()

	req := httptest.NewRequest(http.MethodPut, "/settings/extractor", strings.NewReader(`{"ollama_base_url":"http://gpu:11434"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d %s", w.Code, w.Body.String())
	}
	if got := GetRuntimeOllamaBaseURL(); got != "http://gpu:11434" {
		t.Errorf("base url = %q", got)
	}
	if got := GetRuntimeOllamaModel(); got != "llama3" {
		t.Errorf("model changed to %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settings/extractor", nil))
	var cfg RuntimeConfig
	_ = json.Unmarshal(w.Body.Bytes(), &cfg)
	if cfg.Provider != "auto" || cfg.OllamaBaseURL != "http://gpu:11434" {
		t.Errorf("settings = %+v", cfg)
	}
}

func TestTestOllamaConnection(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer up.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	r := settingsRouter()
	tests := []struct {
		name string
		url  string
		want int
	}{
		{"reachable", up.URL, http.StatusOK},
		{"bad status", down.URL, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/settings/extractor/test", strings.NewReader(`{"ollama_base_url":"`+tt.url+`"}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://gpu:11434/", "http://gpu:11434", false},
		{" https://ollama.example.com ", "https://ollama.example.com", false},
		{"gpu:11434", "", true},
		{"ftp://gpu", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := normalizeBaseURL(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("normalizeBaseURL(%q) = %q, %v", tt.in, got, err)
		}
	}
}
