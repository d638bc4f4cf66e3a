package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/yeremiapane/restaurant-floor/floorplan"
	"github.com/yeremiapane/restaurant-floor/utils"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Config struct {
	Port       string
	GinMode    string
	DBDriver   string
	DBSource   string
	JWTSecret  string
	CORSOrigin string

	Debounce          time.Duration
	AnimationDuration time.Duration
	Footprint         float64
	Threshold         float64

	// SyncRetrySpec is the cron schedule of the failed-sync retry sweep.
	SyncRetrySpec   string
	SyncMaxAttempts int

	// APIRateLimit is requests per second per IP on the API; 0 disables it.
	APIRateLimit int

	AdminEmail    string
	AdminPassword string
}

// LoadConfig membaca .env (jika ada) lalu environment variable
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Println("Warning: .env file not found, using environment only")
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		GinMode:           getEnv("GIN_MODE", "debug"),
		DBDriver:          getEnv("DB_DRIVER", "sqlite"),
		DBSource:          getEnv("DB_SOURCE", "floor.db"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		CORSOrigin:        getEnv("CORS_ORIGIN", "http://127.0.0.1:5500"),
		Debounce:          time.Duration(getEnvAsInt("LAYOUT_DEBOUNCE_MS", 500)) * time.Millisecond,
		AnimationDuration: time.Duration(getEnvAsInt("LAYOUT_ANIMATION_MS", 600)) * time.Millisecond,
		Footprint:         getEnvAsFloat("LAYOUT_FOOTPRINT", floorplan.DefaultFootprint),
		Threshold:         getEnvAsFloat("LAYOUT_THRESHOLD", floorplan.DefaultThreshold),
		SyncRetrySpec:     getEnv("SYNC_RETRY_SPEC", "@every 30s"),
		SyncMaxAttempts:   getEnvAsInt("SYNC_MAX_ATTEMPTS", 5),
		APIRateLimit:      getEnvAsInt("API_RATE_LIMIT", 50),
		AdminEmail:        getEnv("ADMIN_EMAIL", "admin@restaurant.local"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
	}
}

// Geometry -> ukuran meja dan batas adjacency untuk engine
func (c *Config) Geometry() floorplan.Geometry {
	return floorplan.Geometry{Footprint: c.Footprint, Threshold: c.Threshold}
}

// InitDB membuka koneksi database sesuai DB_DRIVER (mysql atau sqlite)
func InitDB(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(cfg.DBSource)
	case "sqlite":
		dialector = sqlite.Open(cfg.DBSource)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	utils.InfoLogger.Printf("Connected to %s database", cfg.DBDriver)
	return db, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		utils.ErrorLogger.Errorf("Invalid %s=%q, using %d", key, v, fallback)
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		utils.ErrorLogger.Errorf("Invalid %s=%q, using %g", key, v, fallback)
	}
	return fallback
}
