package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oraclewatch/core/internal/alerting"
	"github.com/oraclewatch/core/internal/models"
	"github.com/oraclewatch/core/pkg/logger"
)

type EscalationHandler struct {
	engine *alerting.Engine
	logger logger.Logger
}

func NewEscalationHandler(engine *alerting.Engine, log logger.Logger) *EscalationHandler {
	return &EscalationHandler{engine: engine, logger: log}
}

// GET /api/v1/escalation-policies
func (h *EscalationHandler) GetPolicies(c *gin.Context) {
	policies := h.engine.EscalationPolicies()
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"policies": policies,
			"count":    len(policies),
		},
	})
}

// GET /api/v1/escalation-policies/:id
func (h *EscalationHandler) GetPolicy(c *gin.Context) {
	policy, ok := h.engine.EscalationPolicy(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Escalation policy not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": policy})
}

// POST /api/v1/escalation-policies
func (h *EscalationHandler) CreatePolicy(c *gin.Context) {
	var policy models.EscalationPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Invalid escalation policy: " + err.Error(),
		})
		return
	}

	if err := h.engine.AddEscalationPolicy(&policy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": policy})
}
