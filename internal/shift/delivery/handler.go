package delivery

import (
	"errors"
	"net/http"

	"locum-backend/internal/shift/domain"
	"locum-backend/internal/shift/usecase"

	"github.com/gin-gonic/gin"
)

// ShiftHandler handles extraction, offer and template requests
type ShiftHandler struct {
	extractionUsecase usecase.ExtractionUsecase
	offerUsecase      usecase.OfferUsecase
}

func NewShiftHandler(extractionUsecase usecase.ExtractionUsecase, offerUsecase usecase.OfferUsecase) *ShiftHandler {
	return &ShiftHandler{
		extractionUsecase: extractionUsecase,
		offerUsecase:      offerUsecase,
	}
}

// RunExtraction processes one batch of unextracted messages.
// POST /api/extract/run
func (h *ShiftHandler) RunExtraction(c *gin.Context) {
	summary, err := h.extractionUsecase.Run(c.Request.Context())
	if err != nil {
		resp := gin.H{"ok": false, "error": err.Error()}
		if summary != nil {
			resp["processed"] = summary.Processed
		}
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	if summary.Skipped {
		c.JSON(http.StatusOK, gin.H{"ok": true, "skipped": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"processed": summary.Processed,
		"failed":    summary.Failed,
		"offers": gin.H{
			"created": summary.OffersCreated,
			"updated": summary.OffersUpdated,
		},
	})
}

// GetShifts lists offers by date.
// GET /api/shifts?status=new
func (h *ShiftHandler) GetShifts(c *gin.Context) {
	var status *domain.OfferStatus
	if s := c.Query("status"); s != "" {
		st := domain.OfferStatus(s)
		status = &st
	}

	offers, err := h.offerUsecase.ListOffers(c.Request.Context(), status)
	if err != nil {
		writeError(c, err)
		return
	}
	if offers == nil {
		offers = []*domain.ShiftOffer{}
	}
	c.JSON(http.StatusOK, gin.H{"offers": offers})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateShiftStatus
// PATCH /api/shifts/:id/status
func (h *ShiftHandler) UpdateShiftStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.offerUsecase.UpdateStatus(c.Request.Context(), c.Param("id"), domain.OfferStatus(req.Status)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetShiftAction builds the booking link. With redirect=1 it redirects to it.
// GET /api/shifts/:id/action?type=email|whatsapp
func (h *ShiftHandler) GetShiftAction(c *gin.Context) {
	channel := domain.BookingChannel(c.Query("type"))
	action, err := h.offerUsecase.BuildAction(c.Request.Context(), c.Param("id"), channel)
	if err != nil {
		writeError(c, err)
		return
	}
	if c.Query("redirect") == "1" {
		c.Redirect(http.StatusFound, action.URL)
		return
	}
	c.JSON(http.StatusOK, action)
}

// GetTemplates
// GET /api/templates
func (h *ShiftHandler) GetTemplates(c *gin.Context) {
	templates, err := h.offerUsecase.ListTemplates(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if templates == nil {
		templates = []*domain.BookingTemplate{}
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

type templatesRequest struct {
	Templates []*domain.BookingTemplate `json:"templates" binding:"required"`
}

// PutTemplates upserts each template on (agency, channel).
// PUT /api/templates
func (h *ShiftHandler) PutTemplates(c *gin.Context) {
	var req templatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, tpl := range req.Templates {
		if err := h.offerUsecase.UpsertTemplate(c.Request.Context(), tpl); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrOfferNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, usecase.ErrInvalidStatus), errors.Is(err, usecase.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
