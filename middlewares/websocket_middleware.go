package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor/utils"
)

// WebSocketAuthMiddleware membaca token dari ?token= karena browser tidak
// bisa mengirim header Authorization saat upgrade. Token yang sudah logout
// ditolak lewat ValidateToken.
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("token query parameter missing"))
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(token)
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, err)
			c.Abort()
			return
		}

		c.Set("role", claims.Role)
		c.Set("userID", claims.UserID)
		c.Set("token", token)
		c.Next()
	}
}
