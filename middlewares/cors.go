package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor/utils"
)

const (
	corsHeaders = "Content-Type, Content-Length, Authorization, Accept, Origin, Cache-Control, X-Requested-With"
	corsMethods = "GET, POST, PATCH, DELETE, OPTIONS"
)

// CORSMiddlewares memantulkan origin yang ada di daftar CORS_ORIGIN.
// Dengan "*" semua origin diterima tapi tanpa credentials.
func CORSMiddlewares(origins string) gin.HandlerFunc {
	list := utils.ParseOrigins(origins)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		switch {
		case list.Any:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && list.Allows(origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Set("Access-Control-Allow-Headers", corsHeaders)
		h.Set("Access-Control-Allow-Methods", corsMethods)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
