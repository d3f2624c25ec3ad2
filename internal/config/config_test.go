package config

import (
	"testing"
	"time"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Address())
	}
	if cfg.JWTSecret == "" || cfg.StorageSigningKey == "" {
		t.Fatalf("expected development secrets to be filled in")
	}
	if cfg.RefreshSecret == cfg.JWTSecret {
		t.Fatalf("refresh secret must differ from access secret")
	}
	if cfg.ScanCooldown != defaultScanCooldown {
		t.Fatalf("expected default cooldown, got %s", cfg.ScanCooldown)
	}
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "secret")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing DATABASE_URL error")
	}
}

func TestLoadDurations(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("SCAN_COOLDOWN", "0s")
	t.Setenv("ACCESS_TOKEN_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("expected 3s shutdown, got %s", cfg.ShutdownPeriod)
	}
	if cfg.ScanCooldown != 0 {
		t.Fatalf("expected cooldown disabled, got %s", cfg.ScanCooldown)
	}
	if cfg.AccessTokenTTL != time.Hour {
		t.Fatalf("expected 1h access ttl, got %s", cfg.AccessTokenTTL)
	}

	t.Setenv("SCAN_COOLDOWN", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid duration error")
	}
}

func TestAddressKeepsColonPrefix(t *testing.T) {
	cfg := Config{Port: ":9000"}
	if cfg.Address() != ":9000" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
}
