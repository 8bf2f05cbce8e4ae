package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_BIND_ADDR", "")
	t.Setenv("APP_METRICS_NAMESPACE", "")
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GENAI_API_URL", "")
	t.Setenv("GENAI_API_KEY", "")
	t.Setenv("GENAI_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.MetricsNamespace != "boardsync" {
		t.Fatalf("MetricsNamespace = %q, want boardsync", cfg.MetricsNamespace)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Fatalf("ShutdownTimeout = %v, want 15s", cfg.ShutdownTimeout)
	}
	if cfg.GenTimeout != 60*time.Second {
		t.Fatalf("GenTimeout = %v, want 60s", cfg.GenTimeout)
	}
	if cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin should default to false")
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL should default to empty, got %q", cfg.DatabaseURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_BIND_ADDR", ":9999")
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "yes")
	t.Setenv("DATABASE_URL", "  postgres://localhost/boardsync  ")
	t.Setenv("GENAI_API_KEY", "secret")
	t.Setenv("GENAI_TIMEOUT", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9999" {
		t.Fatalf("BindAddr = %q, want :9999", cfg.BindAddr)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Fatalf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = false, want true")
	}
	if cfg.DatabaseURL != "postgres://localhost/boardsync" {
		t.Fatalf("DatabaseURL = %q, want trimmed url", cfg.DatabaseURL)
	}
	if cfg.GenTimeout != 90*time.Second {
		t.Fatalf("GenTimeout = %v, want 90s", cfg.GenTimeout)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject unparsable duration")
	}

	t.Setenv("APP_SHUTDOWN_TIMEOUT", "-5s")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject non-positive shutdown timeout")
	}

	t.Setenv("APP_SHUTDOWN_TIMEOUT", "15s")
	t.Setenv("GENAI_TIMEOUT", "100ms")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject sub-second generation timeout")
	}

	t.Setenv("GENAI_TIMEOUT", "60s")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "maybe")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject unparsable bool")
	}
}
