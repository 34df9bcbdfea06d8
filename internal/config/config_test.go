package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Error("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/cirelay_test")
	t.Setenv("PORT", "")
	t.Setenv("STALE_AFTER", "")
	t.Setenv("JANITOR_SCHEDULE", "")
	t.Setenv("WEBHOOK_URL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 6460 {
		t.Errorf("expected HTTPPort 6460, got %d", cfg.HTTPPort)
	}
	if cfg.StaleAfter != 24*time.Hour {
		t.Errorf("expected StaleAfter 24h, got %v", cfg.StaleAfter)
	}
	if cfg.JanitorSchedule != "@every 10m" {
		t.Errorf("expected JanitorSchedule @every 10m, got %s", cfg.JanitorSchedule)
	}
	if cfg.WebhookURL != "" {
		t.Errorf("expected empty WebhookURL, got %s", cfg.WebhookURL)
	}
	if cfg.OTELEndpoint != "localhost:4317" {
		t.Errorf("expected OTELEndpoint localhost:4317, got %s", cfg.OTELEndpoint)
	}
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://custom/db")
	t.Setenv("PORT", "9999")
	t.Setenv("STALE_AFTER", "6h")
	t.Setenv("JANITOR_SCHEDULE", "*/5 * * * *")
	t.Setenv("WEBHOOK_URL", "http://hooks.example.com/finished")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DatabaseURL != "postgres://custom/db" {
		t.Errorf("expected DatabaseURL from env, got %s", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != 9999 {
		t.Errorf("expected HTTPPort 9999, got %d", cfg.HTTPPort)
	}
	if cfg.StaleAfter != 6*time.Hour {
		t.Errorf("expected StaleAfter 6h, got %v", cfg.StaleAfter)
	}
	if cfg.JanitorSchedule != "*/5 * * * *" {
		t.Errorf("expected JanitorSchedule */5 * * * *, got %s", cfg.JanitorSchedule)
	}
	if cfg.WebhookURL != "http://hooks.example.com/finished" {
		t.Errorf("expected WebhookURL from env, got %s", cfg.WebhookURL)
	}
	if cfg.OTELEndpoint != "otel-collector:4317" {
		t.Errorf("expected OTELEndpoint otel-collector:4317, got %s", cfg.OTELEndpoint)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "PORT", "not-a-port"},
		{"bad stale after", "STALE_AFTER", "yesterday"},
		{"negative stale after", "STALE_AFTER", "-1h"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/test")
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
