package router

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor/config"
	"github.com/yeremiapane/restaurant-floor/controllers"
	"github.com/yeremiapane/restaurant-floor/kds"
	"github.com/yeremiapane/restaurant-floor/middlewares"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/services"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, floors *services.FloorService, monitor *services.SyncMonitor, hub *kds.Hub, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Apply security middlewares
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(cfg.CORSOrigin))
	r.Use(middlewares.LoggerMiddleware())
	if cfg.APIRateLimit > 0 {
		r.Use(middlewares.NewRateLimiter(cfg.APIRateLimit, 1).RateLimit())
	}

	// Inisialisasi controller
	userCtrl := controllers.NewUserController(db)
	floorCtrl := controllers.NewFloorController(floors, monitor)
	kdsCtrl := controllers.NewKDSController(hub, cfg.CORSOrigin)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Rate limiter untuk login
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/login", userCtrl.Login)
	}

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/admin")
	auth.Use(middlewares.AuthMiddleware())
	auth.Use(middlewares.FloorParams())
	auth.Use(middlewares.LogFloorCommand())

	auth.GET("/profile", userCtrl.GetProfile)
	auth.POST("/logout", userCtrl.Logout)
	auth.POST("/register", middlewares.RequireRoles(models.RoleAdmin), userCtrl.Register)

	// FLOORS (semua role boleh melihat)
	auth.GET("/floors", floorCtrl.ListFloors)
	auth.POST("/floors", middlewares.RequireRoles(models.RoleAdmin), floorCtrl.CreateFloor)
	auth.POST("/floors/:floor_id/activate", floorCtrl.ActivateFloor)
	auth.GET("/floors/:floor_id/tables", floorCtrl.GetTables)
	auth.GET("/floors/:floor_id/tables/:table_id/adjacent", floorCtrl.GetAdjacent)
	auth.GET("/floors/:floor_id/merge", floorCtrl.GetMergeState)
	auth.GET("/floors/:floor_id/animations", floorCtrl.GetAnimations)
	auth.GET("/sync/metrics", middlewares.RequireRoles(models.RoleStaff), floorCtrl.GetSyncMetrics)

	// Host boleh mengubah status meja
	auth.PATCH("/floors/:floor_id/tables/:table_id/status",
		middlewares.RequireRoles(models.RoleStaff, models.RoleHost), floorCtrl.UpdateTableStatus)

	// LAYOUT (staff/admin)
	layout := auth.Group("/floors/:floor_id")
	layout.Use(middlewares.RequireRoles(models.RoleStaff))
	{
		layout.POST("/tables", floorCtrl.CreateTable)
		layout.DELETE("/tables/:table_id", floorCtrl.DeleteTable)

		layout.POST("/tables/:table_id/drag/begin", floorCtrl.BeginDrag)
		layout.POST("/tables/:table_id/drag/move", floorCtrl.MoveDrag)
		layout.POST("/tables/:table_id/drag/end", floorCtrl.EndDrag)
		layout.POST("/tables/:table_id/drag/rollback", floorCtrl.RollbackDrag)

		layout.POST("/merge/confirm", floorCtrl.ConfirmMerge)
		layout.POST("/merge/cancel", floorCtrl.CancelMerge)
		layout.POST("/tables/:table_id/unmerge", floorCtrl.UnmergeTable)
	}

	// WebSocket endpoint dengan middleware khusus
	wsGroup := r.Group("/ws")
	wsGroup.Use(middlewares.WebSocketAuthMiddleware())
	{
		wsGroup.GET("/:role", kdsCtrl.KDSHandler)
	}

	return r
}
