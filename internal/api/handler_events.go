package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"iot-telemetry-backend/internal/parse"
	"iot-telemetry-backend/internal/service"
	"iot-telemetry-backend/internal/validation"
)

// CreateEvent handles POST /events/.
func (h *Handler) CreateEvent(c *gin.Context) {
	var req validation.CreateEventRequest
	if !bindJSON(c, &req) {
		return
	}
	eventTime, err := validation.EventRequest(req)
	if err != nil {
		writeError(c, err, "")
		return
	}

	event, err := h.events.StoreEvent(c.Request.Context(), *req.Device, *req.Temperature, eventTime)
	if err != nil {
		var nf *service.NotFoundError
		if errors.As(err, &nf) {
			// Report the remaining field errors alongside the unknown device.
			verr := validation.NewError("device", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", nf.ID))
			verr.Merge(validation.CheckReading(*req.Temperature, eventTime, time.Now()))
			writeError(c, verr, "")
			return
		}
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, event)
}

// rangeQuery holds the parsed device_id/start_date/end_date parameters.
type rangeQuery struct {
	deviceID int64
	start    time.Time
	end      time.Time
}

func parseRangeQuery(c *gin.Context) (rangeQuery, bool) {
	deviceParam := c.Query("device_id")
	startParam := c.Query("start_date")
	endParam := c.Query("end_date")
	if deviceParam == "" || startParam == "" || endParam == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return rangeQuery{}, false
	}

	var q rangeQuery
	var err error
	if q.deviceID, err = strconv.ParseInt(deviceParam, 10, 64); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid device_id"})
		return rangeQuery{}, false
	}
	if q.start, err = parse.TimeBound(startParam); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date: " + err.Error()})
		return rangeQuery{}, false
	}
	if q.end, err = parse.TimeBound(endParam); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date: " + err.Error()})
		return rangeQuery{}, false
	}
	return q, true
}

// ListEvents handles GET /events/list/?device_id&start_date&end_date.
func (h *Handler) ListEvents(c *gin.Context) {
	q, ok := parseRangeQuery(c)
	if !ok {
		return
	}
	events, err := h.events.EventsByDeviceAndRange(c.Request.Context(), q.deviceID, q.start, q.end)
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, events)
}

// EventSummary handles GET /events/summary/?device_id&start_date&end_date.
func (h *Handler) EventSummary(c *gin.Context) {
	q, ok := parseRangeQuery(c)
	if !ok {
		return
	}
	summary, err := h.events.Summary(c.Request.Context(), q.deviceID, q.start, q.end)
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, summary)
}
