package delivery

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log"
	"net/http"

	accountdomain "locum-backend/internal/account/domain"
	"locum-backend/internal/sync/domain"
	"locum-backend/internal/sync/usecase"

	"github.com/gin-gonic/gin"
)

// SyncHandler serves the Gmail webhook and manual sync triggers.
type SyncHandler struct {
	syncUsecase usecase.SyncUsecase
	pushToken   string
}

func NewSyncHandler(syncUsecase usecase.SyncUsecase, pushToken string) *SyncHandler {
	return &SyncHandler{syncUsecase: syncUsecase, pushToken: pushToken}
}

type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// Push receives Pub/Sub push deliveries.
// POST /api/gmail/push
func (h *SyncHandler) Push(c *gin.Context) {
	token := c.GetHeader("x-pubsub-token")
	if token == "" {
		token = c.Query("token")
	}
	if h.pushToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.pushToken)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	// Malformed deliveries are acknowledged so Pub/Sub does not redeliver them.
	var envelope pushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil || envelope.Message.Data == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	n := domain.ParseNotification(data)

	res, err := h.syncUsecase.HandleNotification(c.Request.Context(), n.HistoryID.String())
	if err != nil {
		log.Printf("[Sync] push %s failed: %v", envelope.Message.MessageID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "ingested": res.Ingested})
}

// Resync runs a full search-based sync.
// POST /api/gmail/resync
func (h *SyncHandler) Resync(c *gin.Context) {
	res, err := h.syncUsecase.FullSync(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "ingested": res.Ingested, "history_id": res.Cursor})
}

// RenewWatch re-registers the Gmail watch.
// POST /api/gmail/watch
func (h *SyncHandler) RenewWatch(c *gin.Context) {
	res, err := h.syncUsecase.RenewWatch(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "expiration": res.Expiration, "history_id": res.HistoryID})
}

// Status returns the connected mailbox state, null when none.
// GET /api/gmail/status
func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.syncUsecase.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

type settingsRequest struct {
	GmailQuery  string `json:"gmail_query"`
	AutoExtract bool   `json:"auto_extract"`
}

// UpdateSettings stores the sync query and auto-extract flag.
// PUT /api/gmail/settings
func (h *SyncHandler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.syncUsecase.UpdateSettings(c.Request.Context(), req.GmailQuery, req.AutoExtract); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func writeError(c *gin.Context, err error) {
	if errors.Is(err, accountdomain.ErrNoAccount) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No Google account"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
