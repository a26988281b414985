package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/basket-lsat/backend/internal/ratelimit"
	"github.com/basket-lsat/backend/pkg/response"
)

// RateLimit returns a middleware that throttles requests per client IP using
// a fixed-window limiter. Rejected requests get 429 with a Retry-After header.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := limiter.Allow(c.ClientIP())
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			retryAfter := int(time.Until(res.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			response.TooManyRequests(c, "too many requests, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
