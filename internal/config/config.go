package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	FeedBaseURL   string
	FeedTTL       time.Duration
	StaleGrace    time.Duration
	HTTPTimeout   time.Duration
	MaxPartitions int
	ServerPort    string
	LogLevel      string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	ttl, err := getEnvInt("FEED_TTL_SECONDS", 600)
	if err != nil {
		return nil, err
	}
	grace, err := getEnvInt("FEED_STALE_GRACE_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	timeout, err := getEnvInt("FEED_HTTP_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	maxPartitions, err := getEnvInt("FEED_MAX_PARTITIONS", 14)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		FeedBaseURL:   getEnv("FEED_BASE_URL", "https://flowbot44.github.io/grand-arena-builder-skill/data"),
		FeedTTL:       time.Duration(ttl) * time.Second,
		StaleGrace:    time.Duration(grace) * time.Second,
		HTTPTimeout:   time.Duration(timeout) * time.Second,
		MaxPartitions: maxPartitions,
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	if cfg.FeedBaseURL == "" {
		return nil, fmt.Errorf("FEED_BASE_URL must not be empty")
	}
	if cfg.MaxPartitions <= 0 {
		return nil, fmt.Errorf("FEED_MAX_PARTITIONS must be positive, got %d", cfg.MaxPartitions)
	}
	if cfg.FeedTTL <= 0 {
		return nil, fmt.Errorf("FEED_TTL_SECONDS must be positive, got %v", cfg.FeedTTL)
	}

	logger.Info().
		Str("feed_base_url", cfg.FeedBaseURL).
		Dur("feed_ttl", cfg.FeedTTL).
		Dur("stale_grace", cfg.StaleGrace).
		Dur("http_timeout", cfg.HTTPTimeout).
		Int("max_partitions", cfg.MaxPartitions).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

var Module = fx.Provide(Load)
