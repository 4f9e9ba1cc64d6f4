package handlers

import (
	"errors"
	"net/http"

	"sensor_alerts/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errListDevices   = "failed to load devices"
	errGetDevice     = "failed to load device"
	errUnknownDevice = "unknown device"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      List devices
// @Description  Latest reading and alert state of every registered device, in registry order.
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, devices"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/devices [get]
// @Security     BearerAuth
func (h *Handler) listDevices(c *gin.Context) {
	devices, err := h.services.Monitoring.ListDevices(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListDevices, "devices_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(devices),
		"devices": devices,
	})
}

// @Summary      Get device
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  models.DeviceStatus
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/devices/{id} [get]
// @Security     BearerAuth
func (h *Handler) getDevice(c *gin.Context) {
	id := c.Param("id")
	st, err := h.services.Monitoring.GetDevice(c.Request.Context(), id)
	if errors.Is(err, service.ErrUnknownDevice) {
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownDevice})
		return
	}
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetDevice, "device_get_failed", err, "device_id", id)
		return
	}
	c.JSON(http.StatusOK, st)
}
