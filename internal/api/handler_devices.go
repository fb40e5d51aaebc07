package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"iot-telemetry-backend/internal/service"
	"iot-telemetry-backend/internal/validation"
)

const deviceNotFound = "Device not found"

// ListDevices handles GET /devices/.
func (h *Handler) ListDevices(c *gin.Context) {
	devices, err := h.devices.List(c.Request.Context())
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, devices)
}

// GetDevice handles GET /devices/{id}/.
func (h *Handler) GetDevice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	d, err := h.devices.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, deviceNotFound)
		return
	}
	c.JSON(http.StatusOK, d)
}

// CreateDevice handles POST /devices/.
func (h *Handler) CreateDevice(c *gin.Context) {
	var req validation.CreateDeviceRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.devices.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, d)
}

// UpdateDevice handles PUT and PATCH /devices/{id}/. Only supplied fields change.
func (h *Handler) UpdateDevice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req validation.UpdateDeviceRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.devices.Update(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err, deviceNotFound)
		return
	}
	c.JSON(http.StatusOK, d)
}

// DeleteDevice handles DELETE /devices/{id}/.
func (h *Handler) DeleteDevice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.devices.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err, deviceNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActivateDevice handles POST /devices/{id}/activate/.
func (h *Handler) ActivateDevice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	d, err := h.events.ActivateDevice(c.Request.Context(), id)
	if err != nil {
		writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": fmt.Sprintf("Device %s activated", d.Name)})
}

// DeactivateDevice handles POST /devices/{id}/deactivate/.
func (h *Handler) DeactivateDevice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	d, err := h.events.DeactivateDevice(c.Request.Context(), id)
	if err != nil {
		writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": fmt.Sprintf("Device %s deactivated", d.Name)})
}

// writeTransitionError reports a missing device as 404 and any other
// activation failure as 400 with the error text.
func writeTransitionError(c *gin.Context, err error) {
	var nf *service.NotFoundError
	if errors.As(err, &nf) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": nf.Error()})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
