package delivery

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	accountdomain "locum-backend/internal/account/domain"
	"locum-backend/internal/sync/usecase"

	"github.com/gin-gonic/gin"
)

type stubSync struct {
	usecase.SyncUsecase
	historyIDs []string
}

func (s *stubSync) HandleNotification(_ context.Context, historyID string) (*usecase.SyncResult, error) {
	s.historyIDs = append(s.historyIDs, historyID)
	return &usecase.SyncResult{Ingested: 2}, nil
}

func (s *stubSync) FullSync(context.Context) (*usecase.SyncResult, error) {
	return nil, accountdomain.ErrNoAccount
}

func newRouter(h *SyncHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/push", h.Push)
	r.POST("/resync", h.Resync)
	return r
}

func envelope(data string) string {
	return `{"message":{"data":"` + base64.StdEncoding.EncodeToString([]byte(data)) + `","messageId":"1"}}`
}

func TestPush(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		query      string
		body       string
		wantStatus int
		wantIDs    []string
	}{
		{"missing token", "", "", envelope(`{"historyId":1}`), http.StatusUnauthorized, nil},
		{"wrong token", "nope", "", envelope(`{"historyId":1}`), http.StatusUnauthorized, nil},
		{"header token", "secret", "", envelope(`{"emailAddress":"me@example.com","historyId":4242}`), http.StatusOK, []string{"4242"}},
		{"query token", "", "?token=secret", envelope(`{"historyId":"77"}`), http.StatusOK, []string{"77"}},
		{"no data", "secret", "", `{"message":{}}`, http.StatusOK, nil},
		{"not json", "secret", "", `<<<`, http.StatusOK, nil},
		{"bad base64", "secret", "", `{"message":{"data":"%%%"}}`, http.StatusOK, nil},
		{"payload without history", "secret", "", envelope(`{"emailAddress":"x"}`), http.StatusOK, []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sync := &stubSync{}
			r := newRouter(NewSyncHandler(sync, "secret"))

			req := httptest.NewRequest(http.MethodPost, "/push"+tt.query, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set("x-pubsub-token", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if !reflect.DeepEqual(sync.historyIDs, tt.wantIDs) {
				t.Errorf("history ids = %v, want %v", sync.historyIDs, tt.wantIDs)
			}
		})
	}
}

func TestResync_NoAccountIs404(t *testing.T) {
	r := newRouter(NewSyncHandler(&stubSync{}, "secret"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/resync", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
