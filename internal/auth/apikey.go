package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderName carries the API key on regular requests.
	HeaderName = "X-API-Key"
	// queryParam is the fallback for browser WebSocket clients, which
	// cannot set request headers on the upgrade.
	queryParam = "api_key"
)

// RequireKey guards a route group with a single shared API key. An
// empty configured key disables the check entirely, the local-dev
// default.
func RequireKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		provided := keyFrom(c)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Next()
	}
}

func keyFrom(c *gin.Context) string {
	if k := c.GetHeader(HeaderName); k != "" {
		return k
	}
	return c.Query(queryParam)
}
