package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityHeaders -> header keamanan untuk API dan websocket dashboard.
// Response /admin tidak boleh di-cache karena denah berubah terus.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; connect-src 'self' ws: wss:; frame-ancestors 'none'")
		if strings.HasPrefix(c.Request.URL.Path, "/admin") {
			h.Set("Cache-Control", "no-store")
		}
		c.Next()
	}
}
