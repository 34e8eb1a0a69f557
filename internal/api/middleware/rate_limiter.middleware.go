package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oraclewatch/core/pkg/cache"
)

// Anonymous tenant ID for requests without a tenant header.
const AnonymousTenantID = "anonymous"

// RateLimiter implements per-tenant fixed-window rate limiting backed by the
// Valkey cache. Cache failures fail open: a broken limiter must not block
// alert ingestion.
func RateLimiter(valkeyCache cache.Valkey, requestsPerMinute int) gin.HandlerFunc {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1000
	}
	maxRequests := int64(requestsPerMinute)

	return func(c *gin.Context) {
		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID == "" {
			tenantID = AnonymousTenantID
		}

		window := time.Now().Unix() / 60
		key := fmt.Sprintf("rate_limit:%s:%d", tenantID, window)

		count, err := valkeyCache.Increment(c.Request.Context(), key, 2*time.Minute)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-Rate-Limit-Limit", strconv.FormatInt(maxRequests, 10))
		c.Header("X-Rate-Limit-Reset", strconv.FormatInt((window+1)*60, 10))

		if count > maxRequests {
			c.Header("X-Rate-Limit-Remaining", "0")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status":      "error",
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			c.Abort()
			return
		}

		c.Header("X-Rate-Limit-Remaining", strconv.FormatInt(maxRequests-count, 10))
		c.Next()
	}
}
