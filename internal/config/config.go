// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds settings shared by the server, historian and bot binaries.
type Config struct {
	Port           string
	Env            string
	AllowedOrigins []string
	LogLevel       logrus.Level
	CatalogPath    string
	TokenTTL       time.Duration

	RedisAddr   string
	RedisDB     int
	QueueName   string
	DatabaseURL string

	HistorianBatchSize  int
	HistorianFlushDelay time.Duration
	MatchInactivity     time.Duration

	BotServerURL string
	BotName      string
}

// Load reads the environment. Unset variables fall back to defaults; values
// that are set but malformed are errors.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("MATHDUEL_ENV", "development"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		CatalogPath:    os.Getenv("CATALOG_PATH"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		QueueName:      getEnv("HISTORIAN_QUEUE_NAME", "mathduel_actions"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		BotServerURL:   getEnv("BOT_SERVER_URL", "ws://localhost:8080/match/ws"),
		BotName:        getEnv("BOT_NAME", "bot"),
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	if cfg.TokenTTL, err = parseTokenTTL(os.Getenv("TOKEN_EXPIRE_TIME")); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.HistorianBatchSize, err = getEnvInt("HISTORIAN_BATCH_SIZE", 20); err != nil {
		return nil, err
	}
	flushMs, err := getEnvInt("HISTORIAN_FLUSH_MS", 500)
	if err != nil {
		return nil, err
	}
	cfg.HistorianFlushDelay = time.Duration(flushMs) * time.Millisecond
	inactivitySec, err := getEnvInt("MATCH_INACTIVITY_TIMEOUT_SEC", 600)
	if err != nil {
		return nil, err
	}
	cfg.MatchInactivity = time.Duration(inactivitySec) * time.Second

	if cfg.HistorianBatchSize <= 0 {
		return nil, fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive, got %d", cfg.HistorianBatchSize)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// NewLogger builds the process logger at the configured level.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	if c.Env == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// parseTokenTTL accepts a Go duration, or "never"/"0"/"" for no expiry.
func parseTokenTTL(s string) (time.Duration, error) {
	if s == "" || s == "never" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("TOKEN_EXPIRE_TIME: %w", err)
	}
	return d, nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as an integer, else returns def.
func getEnvInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
