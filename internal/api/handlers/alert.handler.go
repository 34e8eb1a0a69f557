package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oraclewatch/core/internal/alerting"
	"github.com/oraclewatch/core/internal/models"
	"github.com/oraclewatch/core/pkg/cache"
	"github.com/oraclewatch/core/pkg/logger"
)

const (
	snapshotTTL = 5 * time.Minute
	statsTTL    = 15 * time.Second
)

type AlertHandler struct {
	engine *alerting.Engine
	cache  cache.Valkey
	logger logger.Logger
}

func NewAlertHandler(engine *alerting.Engine, valkeyCache cache.Valkey, log logger.Logger) *AlertHandler {
	return &AlertHandler{
		engine: engine,
		cache:  valkeyCache,
		logger: log,
	}
}

type actorRequest struct {
	Actor string `json:"actor"`
}

// POST /api/v1/alerts - Submit a candidate alert
func (h *AlertHandler) CreateAlert(c *gin.Context) {
	var candidate models.AlertCandidate
	if err := c.ShouldBindJSON(&candidate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Invalid alert candidate: " + err.Error(),
		})
		return
	}

	result, err := h.engine.CreateAlert(candidate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	if result.Disposition != alerting.DispositionCreated {
		// Deduplicated or suppressed: accepted but no alert was created.
		c.JSON(http.StatusAccepted, gin.H{
			"status": "success",
			"data":   result,
		})
		return
	}

	h.cacheSnapshot(c, result.Alert)
	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   result,
	})
}

// GET /api/v1/alerts - List alerts, newest first
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	var query models.AlertQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Invalid query: " + err.Error(),
		})
		return
	}

	alerts := h.engine.GetAlerts(query)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"alerts": alerts,
			"count":  len(alerts),
		},
	})
}

// GET /api/v1/alerts/stats - Aggregate statistics
func (h *AlertHandler) GetStats(c *gin.Context) {
	if cached, err := h.cache.GetCachedStats(c.Request.Context()); err == nil {
		c.JSON(http.StatusOK, gin.H{"status": "success", "data": cached})
		return
	}

	stats := h.engine.Stats()
	if err := h.cache.CacheStats(c.Request.Context(), &stats, statsTTL); err != nil {
		h.logger.Debug("Failed to cache stats", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": stats})
}

// GET /api/v1/alerts/:id - Fetch one alert, cached snapshot first
func (h *AlertHandler) GetAlert(c *gin.Context) {
	id := c.Param("id")
	if cached, err := h.cache.GetCachedAlertSnapshot(c.Request.Context(), id); err == nil {
		c.JSON(http.StatusOK, gin.H{"status": "success", "data": cached})
		return
	}

	alert := h.engine.GetAlert(id)
	if alert == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Alert not found",
		})
		return
	}

	h.cacheSnapshot(c, alert)
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": alert})
}

// PUT /api/v1/alerts/:id/acknowledge - Acknowledge an alert
func (h *AlertHandler) AcknowledgeAlert(c *gin.Context) {
	var req actorRequest
	_ = c.ShouldBindJSON(&req)
	if req.Actor == "" {
		req.Actor = "operator"
	}

	alert := h.engine.AcknowledgeAlert(c.Param("id"), req.Actor)
	if alert == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Alert not found",
		})
		return
	}

	h.cacheSnapshot(c, alert)
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": alert})
}

// PUT /api/v1/alerts/:id/resolve - Resolve an alert
func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	var req actorRequest
	_ = c.ShouldBindJSON(&req)
	if req.Actor == "" {
		req.Actor = "operator"
	}

	alert := h.engine.ResolveAlert(c.Param("id"), req.Actor)
	if alert == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Alert not found",
		})
		return
	}

	h.cacheSnapshot(c, alert)
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": alert})
}

func (h *AlertHandler) cacheSnapshot(c *gin.Context, alert *models.Alert) {
	if err := h.cache.CacheAlertSnapshot(c.Request.Context(), alert, snapshotTTL); err != nil {
		h.logger.Debug("Failed to cache alert snapshot", "alertId", alert.ID, "error", err)
	}
}
