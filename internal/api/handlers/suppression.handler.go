package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oraclewatch/core/internal/alerting"
	"github.com/oraclewatch/core/internal/models"
	"github.com/oraclewatch/core/pkg/logger"
)

type SuppressionHandler struct {
	engine *alerting.Engine
	logger logger.Logger
}

func NewSuppressionHandler(engine *alerting.Engine, log logger.Logger) *SuppressionHandler {
	return &SuppressionHandler{engine: engine, logger: log}
}

// GET /api/v1/suppression-rules
func (h *SuppressionHandler) GetRules(c *gin.Context) {
	rules := h.engine.SuppressionRules()
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"rules": rules,
			"count": len(rules),
		},
	})
}

// POST /api/v1/suppression-rules
func (h *SuppressionHandler) CreateRule(c *gin.Context) {
	var rule models.SuppressionRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Invalid suppression rule: " + err.Error(),
		})
		return
	}

	if err := h.engine.AddSuppressionRule(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": rule})
}

type enableRequest struct {
	Enabled bool `json:"enabled"`
}

// PUT /api/v1/suppression-rules/:id - Toggle a rule
func (h *SuppressionHandler) SetRuleEnabled(c *gin.Context) {
	var req enableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Invalid request body: " + err.Error(),
		})
		return
	}

	if !h.engine.SetSuppressionRuleEnabled(c.Param("id"), req.Enabled) {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Suppression rule not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// DELETE /api/v1/suppression-rules/:id
func (h *SuppressionHandler) DeleteRule(c *gin.Context) {
	if !h.engine.RemoveSuppressionRule(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Suppression rule not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
