package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSONResponse adalah envelope semua response API
type JSONResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

// RespondError mengirim error dalam envelope yang sama. Error 5xx dicatat ke
// ErrorLogger beserta route-nya; error klien tidak.
func RespondError(c *gin.Context, code int, err error) {
	if code >= http.StatusInternalServerError && ErrorLogger != nil {
		ErrorLogger.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(code, JSONResponse{
		Status:  false,
		Message: err.Error(),
	})
}
