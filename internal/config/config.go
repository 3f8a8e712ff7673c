// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, Load returns an
// error and the process exits.
//
// A .env file in the working directory is read first when present; real
// environment variables take precedence over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kibanana/geteam-http-api/internal/recruit"
)

// Config holds all runtime configuration for the service.
type Config struct {
	HTTPPort    string
	GRPCPort    string
	DatabaseURL string
	RedisURL    string

	JWTSecret string
	JWTIssuer string

	ReconcileSpec string
	Limits        recruit.Limits
	RosterPolicy  recruit.RosterPolicy

	DiscordWebhookID    string
	DiscordWebhookToken string
	NotifyChannel       string

	LogLevel slog.Level
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	maxBoards, err := intEnv("MAX_OPEN_BOARDS", recruit.DefaultMaxOpenBoards)
	if err != nil {
		return nil, err
	}
	maxTeams, err := intEnv("MAX_TEAMS", recruit.DefaultMaxTeams)
	if err != nil {
		return nil, err
	}

	roster := recruit.RosterActive
	if raw := os.Getenv("ROSTER_POLICY"); raw != "" {
		p, ok := recruit.ParseRosterPolicy(raw)
		if !ok {
			return nil, fmt.Errorf("ROSTER_POLICY must be active or accepted, got %q", raw)
		}
		roster = p
	}

	var level slog.Level
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}

	webhookID := os.Getenv("DISCORD_WEBHOOK_ID")
	webhookToken := os.Getenv("DISCORD_WEBHOOK_TOKEN")
	if (webhookID == "") != (webhookToken == "") {
		return nil, fmt.Errorf("DISCORD_WEBHOOK_ID and DISCORD_WEBHOOK_TOKEN must be set together")
	}

	return &Config{
		HTTPPort:            envOr("HTTP_PORT", "8080"),
		GRPCPort:            envOr("GRPC_PORT", "9090"),
		DatabaseURL:         dbURL,
		RedisURL:            redisURL,
		JWTSecret:           os.Getenv("JWT_SECRET"),
		JWTIssuer:           os.Getenv("JWT_ISSUER"),
		ReconcileSpec:       envOr("RECONCILE_SPEC", "@every 1h"),
		Limits:              recruit.Limits{MaxOpenBoards: maxBoards, MaxTeams: maxTeams},
		RosterPolicy:        roster,
		DiscordWebhookID:    webhookID,
		DiscordWebhookToken: webhookToken,
		NotifyChannel:       envOr("NOTIFY_CHANNEL", "geteam:events"),
		LogLevel:            level,
	}, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, raw)
	}
	return n, nil
}
