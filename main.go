package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/yeremiapane/restaurant-floor/config"
	"github.com/yeremiapane/restaurant-floor/database"
	"github.com/yeremiapane/restaurant-floor/floorplan"
	"github.com/yeremiapane/restaurant-floor/kds"
	"github.com/yeremiapane/restaurant-floor/router"
	"github.com/yeremiapane/restaurant-floor/services"
	"github.com/yeremiapane/restaurant-floor/utils"
)

func main() {
	utils.InitLogger()
	cfg := config.LoadConfig()

	utils.SetJWTSecret(cfg.JWTSecret)

	// Set gin mode
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		utils.SetLogLevel("debug")
	}

	// Initialize DB
	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to migrate: %v", err)
	}
	if err := database.SeedAdmin(db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		utils.ErrorLogger.Errorf("Error seeding admin: %v", err)
	}

	hub := kds.NewHub()
	monitor := services.NewSyncMonitor(cfg.SyncMaxAttempts)
	floors := services.NewFloorService(services.NewTableRepository(db), floorplan.Options{
		Geometry:          cfg.Geometry(),
		Debounce:          cfg.Debounce,
		AnimationDuration: cfg.AnimationDuration,
		Notifier:          hub,
		Logger:            utils.EngineLogger(),
		OnFailure:         monitor.Report,
	})

	// Jadwal retry sinkronisasi dan pembersihan blacklist token
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SyncRetrySpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		monitor.RetryPending(ctx, floors)
	}); err != nil {
		utils.ErrorLogger.Fatalf("Invalid SYNC_RETRY_SPEC %q: %v", cfg.SyncRetrySpec, err)
	}
	if _, err := scheduler.AddFunc("@hourly", func() {
		if n := utils.CleanupBlacklist(); n > 0 {
			utils.InfoLogger.Printf("Removed %d expired tokens from blacklist", n)
		}
	}); err != nil {
		utils.ErrorLogger.Fatalf("Failed to schedule blacklist cleanup: %v", err)
	}
	scheduler.Start()

	// Setup router
	r := router.SetupRouter(db, floors, monitor, hub, cfg)
	r.SetTrustedProxies([]string{"127.0.0.1"})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.InfoLogger.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.ErrorLogger.Errorf("Server forced to shutdown: %v", err)
	}

	// Tunggu job cron yang sedang berjalan, lalu tutup engine agar tulisan
	// posisi yang tertunda selesai
	<-scheduler.Stop().Done()
	floors.Close()
	utils.InfoLogger.Println("Server exited")
}
