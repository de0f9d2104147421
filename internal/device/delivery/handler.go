package delivery

import (
	"net/http"

	"locum-backend/internal/device/repository"

	"github.com/gin-gonic/gin"
)

// DeviceHandler registers push-notification devices.
type DeviceHandler struct {
	devices repository.DeviceRepository
}

func NewDeviceHandler(devices repository.DeviceRepository) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

type registerRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

// Register
// POST /api/devices
func (h *DeviceHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.devices.Save(c.Request.Context(), req.Token, req.DeviceInfo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Unregister
// DELETE /api/devices/:token
func (h *DeviceHandler) Unregister(c *gin.Context) {
	if err := h.devices.Delete(c.Request.Context(), c.Param("token")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
