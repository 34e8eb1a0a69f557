package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oraclewatch/core/internal/alerting"
	"github.com/oraclewatch/core/pkg/cache"
	"github.com/oraclewatch/core/pkg/logger"
)

type HealthHandler struct {
	engine    *alerting.Engine
	cache     cache.Valkey
	logger    logger.Logger
	startedAt time.Time
}

func NewHealthHandler(engine *alerting.Engine, valkeyCache cache.Valkey, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		engine:    engine,
		cache:     valkeyCache,
		logger:    log,
		startedAt: time.Now(),
	}
}

// GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"uptime":    time.Since(h.startedAt).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /ready - Readiness includes a cache round-trip; the engine keeps
// working without the cache, so a cache failure degrades but does not fail
// readiness.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	cacheStatus := "ok"
	if err := h.cache.Set(c.Request.Context(), "health:probe", time.Now().UnixMilli(), time.Minute); err != nil {
		cacheStatus = "degraded"
		h.logger.Warn("Readiness cache probe failed", "error", err)
	}

	stats := h.engine.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"cache":  cacheStatus,
		"alerts": gin.H{
			"total":  stats.Total,
			"active": stats.ByStatus["active"],
		},
	})
}
