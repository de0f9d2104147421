package delivery

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"locum-backend/internal/ingest/usecase"
	"locum-backend/internal/testutil"

	"github.com/gin-gonic/gin"
)

const transcript = "14/05/2024, 08:02 - Sarah: Locum Tues\n15/05/2024, 09:00 - Tom: Thanks"

func newRouter() (*gin.Engine, *testutil.RawMessages) {
	gin.SetMode(gin.TestMode)
	repo := testutil.NewRawMessages()
	h := NewIngestHandler(usecase.NewIngestUsecase(repo, time.UTC))
	r := gin.New()
	r.POST("/ingest/whatsapp", h.ImportWhatsApp)
	return r, repo
}

func TestImportWhatsApp_JSON(t *testing.T) {
	r, repo := newRouter()
	body := `{"text":` + `"` + strings.ReplaceAll(transcript, "\n", `\n`) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/ingest/whatsapp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"count":2`) {
		t.Fatalf("response = %d %s", w.Code, w.Body.String())
	}
	if n := len(repo.All()); n != 2 {
		t.Errorf("stored = %d, want 2", n)
	}
}

func TestImportWhatsApp_Multipart(t *testing.T) {
	r, repo := newRouter()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "chat.txt")
	_, _ = fw.Write([]byte(transcript))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingest/whatsapp", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("response = %d %s", w.Code, w.Body.String())
	}
	if n := len(repo.All()); n != 2 {
		t.Errorf("stored = %d, want 2", n)
	}
}

func TestImportWhatsApp_MissingText(t *testing.T) {
	r, _ := newRouter()
	req := httptest.NewRequest(http.MethodPost, "/ingest/whatsapp", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
