package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"coitrack/internal/catalog"
)

type Config struct {
	Env                 string
	ListenAddr          string
	DatabaseURL         string
	NotifyWorkers       int
	NotifyPollInterval  time.Duration
	ExpiryLookAheadDays int
	TierPriority        string
	UploadsDir          string
	BaseURL             string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		if _, err := fmt.Sscanf(v, "%d", &out); err == nil {
			return out
		}
	}
	return def
}

func Load() (Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := Config{
		Env:                 getenv("APP_ENV", "development"),
		ListenAddr:          getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		NotifyWorkers:       getenvInt("NOTIFY_WORKERS", 2),
		NotifyPollInterval:  time.Duration(getenvInt("NOTIFY_POLL_MS", 500)) * time.Millisecond,
		ExpiryLookAheadDays: getenvInt("EXPIRY_LOOKAHEAD_DAYS", 30),
		TierPriority:        getenv("TIER_PRIORITY", catalog.DefaultRanking),
		UploadsDir:          getenv("UPLOADS_DIR", "uploads"),
		BaseURL:             getenv("API_BASE_URL", "http://localhost:8080"),
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}
