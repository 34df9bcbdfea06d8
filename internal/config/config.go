// Package config handles environment variable loading for ports, database strings, etc.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database connection string
	DatabaseURL string

	// HTTP server port for the controller
	HTTPPort int

	// Jobs older than this in a live status are reaped by the janitor.
	StaleAfter time.Duration

	// Cron expression for the stale-job janitor.
	JanitorSchedule string

	// Webhook endpoint for finished-job notifications. Empty disables
	// webhook delivery; events are still logged.
	WebhookURL string

	// OTLP gRPC endpoint for trace export.
	OTELEndpoint string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	portStr := os.Getenv("PORT")
	port := 6460 // Default
	if portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		port = p
	}

	staleAfterStr := os.Getenv("STALE_AFTER")
	staleAfter := 24 * time.Hour // Default
	if staleAfterStr != "" {
		d, err := time.ParseDuration(staleAfterStr)
		if err != nil {
			return nil, fmt.Errorf("invalid STALE_AFTER: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("STALE_AFTER must be positive")
		}
		staleAfter = d
	}

	janitorSchedule := os.Getenv("JANITOR_SCHEDULE")
	if janitorSchedule == "" {
		janitorSchedule = "@every 10m"
	}

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}

	return &Config{
		DatabaseURL:     dbURL,
		HTTPPort:        port,
		StaleAfter:      staleAfter,
		JanitorSchedule: janitorSchedule,
		WebhookURL:      os.Getenv("WEBHOOK_URL"),
		OTELEndpoint:    otelEndpoint,
	}, nil
}
