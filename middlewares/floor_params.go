package middlewares

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor/utils"
)

// FloorParams mengubah :floor_id dan :table_id menjadi uint di context
// ("floorID", "tableID") dan menolak nilai yang bukan angka
func FloorParams() gin.HandlerFunc {
	return func(c *gin.Context) {
		for param, key := range map[string]string{"floor_id": "floorID", "table_id": "tableID"} {
			raw := c.Param(param)
			if raw == "" {
				continue
			}
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || id == 0 {
				utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid %s %q", param, raw))
				c.Abort()
				return
			}
			c.Set(key, uint(id))
		}
		c.Next()
	}
}

// LogFloorCommand mencatat setiap perintah denah beserta hasilnya
func LogFloorCommand() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == http.MethodGet {
			return
		}
		floorID, _ := c.Get("floorID")
		tableID, _ := c.Get("tableID")
		if c.Writer.Status() >= http.StatusBadRequest {
			utils.ErrorLogger.Errorf("Floor command %s failed (floor=%v, table=%v, status=%d)",
				c.FullPath(), floorID, tableID, c.Writer.Status())
			return
		}
		utils.InfoLogger.Printf("Floor command %s (floor=%v, table=%v)", c.FullPath(), floorID, tableID)
	}
}
