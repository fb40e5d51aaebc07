package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"iot-telemetry-backend/config"
	"iot-telemetry-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()
	r.Use(mw.RequestID())

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// Cached GET responses are dropped after every successful write.
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := func(c *gin.Context) { c.Next() }
	if ttl > 0 {
		caching = mw.Cache(cacheStore, ttl)
	}

	r.GET("/healthz", h.Health)

	api := r.Group("")
	api.Use(rateLimiter, mw.Invalidate(cacheStore))
	{
		api.GET("/devices/", caching, h.ListDevices)
		api.POST("/devices/", h.CreateDevice)
		api.GET("/devices/:id/", caching, h.GetDevice)
		api.PUT("/devices/:id/", h.UpdateDevice)
		api.PATCH("/devices/:id/", h.UpdateDevice)
		api.DELETE("/devices/:id/", h.DeleteDevice)
		api.POST("/devices/:id/activate/", h.ActivateDevice)
		api.POST("/devices/:id/deactivate/", h.DeactivateDevice)

		api.POST("/events/", h.CreateEvent)
		api.GET("/events/list/", caching, h.ListEvents)
		api.GET("/events/summary/", caching, h.EventSummary)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
