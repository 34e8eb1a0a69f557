// Package monitoring wires self-monitoring endpoints onto the API router.
package monitoring

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupPrometheusMetrics exposes the Prometheus scrape endpoint.
func SetupPrometheusMetrics(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
