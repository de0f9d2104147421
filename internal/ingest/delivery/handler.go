package delivery

import (
	"io"
	"net/http"
	"strings"

	"locum-backend/internal/ingest/usecase"

	"github.com/gin-gonic/gin"
)

const maxUploadSize = 20 << 20

type IngestHandler struct {
	ingestUsecase usecase.IngestUsecase
}

func NewIngestHandler(ingestUsecase usecase.IngestUsecase) *IngestHandler {
	return &IngestHandler{ingestUsecase: ingestUsecase}
}

type chatImportRequest struct {
	Text string `json:"text" binding:"required"`
}

// ImportWhatsApp ingests a chat export sent as {"text": ...} or as a
// multipart "file" field.
// POST /api/ingest/whatsapp
func (h *IngestHandler) ImportWhatsApp(c *gin.Context) {
	var src io.Reader

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fh.Size > maxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()
		src = f
	} else {
		var req chatImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
			return
		}
		src = strings.NewReader(req.Text)
	}

	count, err := h.ingestUsecase.ImportChatExport(c.Request.Context(), src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "count": count})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "count": count})
}

// Stats returns raw message counts per source.
// GET /api/ingest/stats
func (h *IngestHandler) Stats(c *gin.Context) {
	stats, err := h.ingestUsecase.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": stats})
}
