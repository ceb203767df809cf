package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("SHUTTLE_DB_DSN", "file::memory:?cache=shared")
	t.Setenv("SHUTTLE_DB_BACKEND", "sqlite")
	t.Setenv("SHUTTLE_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("SHUTTLE_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN == "" {
		t.Fatal("expected DB DSN to be set")
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	t.Setenv("SHUTTLE_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("SHUTTLE_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("JWT_SECRET", "legacy")
	t.Setenv("PORT", "3001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) == 0 {
		t.Fatal("expected legacy env warnings")
	}
}

func TestLoadProductionRequiresStrongSigningKey(t *testing.T) {
	t.Setenv("SHUTTLE_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("SHUTTLE_JWT_SIGNING_KEY", "short")
	t.Setenv("SHUTTLE_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail with short signing key")
	}

	t.Setenv("SHUTTLE_JWT_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	if _, err := Load(); err != nil {
		t.Fatalf("expected production config load with strong key to succeed: %v", err)
	}
}

func TestLoadAppliesFileOverlayWithoutOverridingEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := "http_port: 9090\nbase_url: http://file.example.com\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("SHUTTLE_DB_DSN", "file::memory:?cache=shared")
	t.Setenv("SHUTTLE_DB_BACKEND", "sqlite")
	t.Setenv("SHUTTLE_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("SHUTTLE_CONFIG_FILE", path)
	t.Setenv("SHUTTLE_HTTP_PORT", "8081")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPPort != 8081 {
		t.Fatalf("env should win over file, got port %d", cfg.HTTPPort)
	}
	if cfg.BaseURL != "http://file.example.com" {
		t.Fatalf("expected base url from file, got %q", cfg.BaseURL)
	}
}

func TestLoadRejectsUnknownEventBridge(t *testing.T) {
	t.Setenv("SHUTTLE_DB_DSN", "file::memory:?cache=shared")
	t.Setenv("SHUTTLE_DB_BACKEND", "sqlite")
	t.Setenv("SHUTTLE_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("SHUTTLE_EVENT_BRIDGE", "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown event bridge to be rejected")
	}
}
