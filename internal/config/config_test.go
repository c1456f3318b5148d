package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ARK_MODEL", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.AI.Enabled() {
		t.Fatal("AI must be disabled without credentials")
	}
	if cfg.Storage.Redis.Enabled() {
		t.Fatal("redis must be disabled without an address")
	}
	if cfg.AI.HistoryLimit != 10 || cfg.AI.Timeout != time.Minute {
		t.Fatalf("unexpected AI defaults: %+v", cfg.AI)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9090")
	t.Setenv("ARK_API_KEY", "key")
	t.Setenv("ARK_MODEL", "ep-123")
	t.Setenv("ARK_TEMPERATURE", "0.4")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if !cfg.AI.Enabled() {
		t.Fatal("expected AI to be enabled")
	}
	if cfg.AI.Temperature == nil || *cfg.AI.Temperature != 0.4 {
		t.Fatalf("unexpected temperature %v", cfg.AI.Temperature)
	}
	if !cfg.Storage.Redis.Enabled() || !cfg.Auth.Enabled() {
		t.Fatalf("expected redis and auth enabled: %+v", cfg)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "80 80")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid PORT")
	}
}
