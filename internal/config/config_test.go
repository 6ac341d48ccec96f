package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENVIRONMENT", "GATEWAY_URL", "SUBMIT_TIMEOUT", "FETCH_TIMEOUT",
		"REFRESH_INTERVAL", "JWT_SECRET", "ALLOWED_ORIGINS", "RATE_LIMIT_RPM", "REDIS_URL", "REFRESH_CHANNEL", "DATABASE_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.SubmitTimeout != 120*time.Second {
		t.Errorf("SubmitTimeout = %s, want 2m0s", cfg.SubmitTimeout)
	}
	if cfg.FetchTimeout != DefaultFetchTimeout {
		t.Errorf("FetchTimeout = %s, want %s", cfg.FetchTimeout, DefaultFetchTimeout)
	}
	if cfg.RefreshInterval != 0 {
		t.Errorf("RefreshInterval = %s, want 0", cfg.RefreshInterval)
	}
	if cfg.GatewayURL != "http://localhost:8000" {
		t.Errorf("GatewayURL = %q", cfg.GatewayURL)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want 2 entries", cfg.AllowedOrigins)
	}
	if cfg.RefreshChannel != "complaints.changed" {
		t.Errorf("RefreshChannel = %q", cfg.RefreshChannel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("GATEWAY_URL", "https://gateway.example.com/")
	t.Setenv("SUBMIT_TIMEOUT", "90")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("REFRESH_INTERVAL", "1m")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GatewayURL != "https://gateway.example.com" {
		t.Errorf("GatewayURL = %q, want trailing slash trimmed", cfg.GatewayURL)
	}
	if cfg.SubmitTimeout != 90*time.Second {
		t.Errorf("SubmitTimeout = %s, want 1m30s", cfg.SubmitTimeout)
	}
	if cfg.FetchTimeout != 5*time.Second {
		t.Errorf("FetchTimeout = %s, want 5s", cfg.FetchTimeout)
	}
	if cfg.RefreshInterval != time.Minute {
		t.Errorf("RefreshInterval = %s, want 1m0s", cfg.RefreshInterval)
	}
	if got := cfg.AllowedOrigins; len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", got)
	}
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("GATEWAY_URL", "https://gateway.example.com")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when JWT_SECRET is missing in production")
	}

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("GATEWAY_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when GATEWAY_URL is missing in production")
	}
}

func TestValidateRejectsNonPositiveTimeouts(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero submit", Config{SubmitTimeout: 0, FetchTimeout: time.Second}},
		{"zero fetch", Config{SubmitTimeout: time.Second, FetchTimeout: 0}},
		{"negative refresh", Config{SubmitTimeout: time.Second, FetchTimeout: time.Second, RefreshInterval: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
