package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/restaurant-floor/kds"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
)

type KDSController struct {
	Hub      *kds.Hub
	upgrader websocket.Upgrader
}

func NewKDSController(hub *kds.Hub, origins string) *KDSController {
	allowed := utils.ParseOrigins(origins)
	return &KDSController{
		Hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				o := r.Header.Get("Origin")
				return o == "" || allowed.Allows(o)
			},
		},
	}
}

// KDSHandler -> endpoint WebSocket dashboard denah. ?floor_id= membatasi
// event ke satu floor.
func (kc *KDSController) KDSHandler(c *gin.Context) {
	role := c.GetString("role")
	if role == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	// Validasi role
	if role != models.RoleAdmin && role != models.RoleStaff && role != models.RoleHost {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	if requested := c.Param("role"); requested != "" && requested != role {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	var floorID uint
	if raw := c.Query("floor_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		floorID = uint(id)
	}

	ws, err := kc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	kc.Hub.RegisterClient(ws, role, floorID)

	// Dashboard hanya menerima; baca sampai koneksi ditutup
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	kc.Hub.UnregisterClient(ws)
}
