package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// CacheControl sets the Cache-Control header. A non-positive max age marks
// the response as uncacheable, for live data such as countdowns.
func CacheControl(maxAgeSeconds int) gin.HandlerFunc {
	value := "no-store"
	if maxAgeSeconds > 0 {
		value = fmt.Sprintf("public, max-age=%d", maxAgeSeconds)
	}
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}
