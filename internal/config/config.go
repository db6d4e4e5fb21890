package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	JWTSecret        string
	JWTRefreshSecret string
	QuizCacheTTL     time.Duration
	SweepInterval    time.Duration
	SSEKeepAlive     time.Duration
	RateLimitPerMin  int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("INSIGHT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "InsightLab Quiz Engine")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("quiz.cache_ttl", "10m")
	v.SetDefault("sweep.interval", "1h")
	v.SetDefault("sse.keepalive", "30s")
	v.SetDefault("rate.limit_per_minute", 120)

	cacheTTL, err := time.ParseDuration(v.GetString("quiz.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid quiz cache ttl: %w", err)
	}

	sweepInterval, err := time.ParseDuration(v.GetString("sweep.interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid sweep interval: %w", err)
	}

	keepAlive, err := time.ParseDuration(v.GetString("sse.keepalive"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid sse keepalive: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		JWTRefreshSecret: v.GetString("jwt.refresh_secret"),
		QuizCacheTTL:     cacheTTL,
		SweepInterval:    sweepInterval,
		SSEKeepAlive:     keepAlive,
		RateLimitPerMin:  v.GetInt("rate.limit_per_minute"),
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	return cfg, nil
}
