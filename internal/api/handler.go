package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"iot-telemetry-backend/internal/service"
	"iot-telemetry-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	devices *service.DeviceService
	events  *service.EventService
	webpush *webpush.Options
}

// NewHandler creates a new API handler. webpushOptions may be nil when
// alerts are disabled.
func NewHandler(s store.Store, devices *service.DeviceService, events *service.EventService, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		devices: devices,
		events:  events,
		webpush: webpushOptions,
	}
}
