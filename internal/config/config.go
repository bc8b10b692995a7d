package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/CardPredictor/internal/engine"
	"github.com/Alias1177/CardPredictor/internal/session"
	"github.com/Alias1177/CardPredictor/internal/store"
)

// Config holds all application configuration
type Config struct {
	TelegramBotToken    string
	SourceChannelID     int64
	PredictionChannelID int64

	Store store.Options

	Timezone           *time.Location
	Sessions           []session.Window
	RecomputeInterval  time.Duration
	CooldownDuration   time.Duration
	LedgerWindow       int
	ResetScope         engine.ResetScope
	NearMissQuarantine bool

	TickInterval  time.Duration
	UserRateLimit int
	WebhookURL    string
	Port          string
	LogLevel      string
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config
	var err error

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.SourceChannelID = getEnvInt64WithDefault("SOURCE_CHANNEL_ID", 0)
	cfg.PredictionChannelID = getEnvInt64WithDefault("PREDICTION_CHANNEL_ID", 0)

	cfg.Store = store.Options{
		Backend:    getEnvWithDefault("STORE_BACKEND", "file"),
		Dir:        getEnvWithDefault("DATA_DIR", "data"),
		SQLitePath: getEnvWithDefault("SQLITE_PATH", "data/predictor.db"),
		Postgres: store.ConnectionParams{
			Host:     getEnvWithDefault("DB_HOST", "localhost"),
			Port:     getEnvWithDefault("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
			SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
		},
	}

	tz := getEnvWithDefault("TIMEZONE", "Africa/Porto-Novo")
	if cfg.Timezone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", tz, err)
	}
	if cfg.Sessions, err = session.ParseWindows(getEnvWithDefault("SESSION_WINDOWS", "2-5,15-17,21-22")); err != nil {
		return nil, fmt.Errorf("SESSION_WINDOWS: %w", err)
	}
	if cfg.ResetScope, err = engine.ParseResetScope(getEnvWithDefault("RESET_SCOPE", string(engine.ResetPredictions))); err != nil {
		return nil, fmt.Errorf("RESET_SCOPE: %w", err)
	}

	cfg.RecomputeInterval = getEnvDurationWithDefault("RECOMPUTE_INTERVAL", 30*time.Minute)
	cfg.CooldownDuration = getEnvDurationWithDefault("COOLDOWN_DURATION", 30*time.Minute)
	cfg.LedgerWindow = getEnvIntWithDefault("LEDGER_WINDOW", 500)
	cfg.NearMissQuarantine = getEnvBoolWithDefault("QUARANTINE_NEAR_MISS", true)

	cfg.TickInterval = getEnvDurationWithDefault("TICK_INTERVAL", time.Minute)
	cfg.UserRateLimit = getEnvIntWithDefault("USER_RATE_LIMIT", 30)
	cfg.WebhookURL = os.Getenv("WEBHOOK_URL")
	cfg.Port = getEnvWithDefault("PORT", "8080")
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")

	return &cfg, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// bare numbers are seconds, as in COOLDOWN_DURATION=2700
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
