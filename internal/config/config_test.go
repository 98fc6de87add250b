package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", cfg.Store.Driver)
	}
	if cfg.Cache.Type != "memory" {
		t.Errorf("expected memory cache, got %s", cfg.Cache.Type)
	}
	if cfg.Bus.Type != "channel" {
		t.Errorf("expected channel bus, got %s", cfg.Bus.Type)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KESTREL_PORT", "9090")
	t.Setenv("KESTREL_LOG_LEVEL", "debug")
	t.Setenv("KESTREL_ASYNC_WORKER", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
	if !cfg.Engine.AsyncWorker {
		t.Error("expected async worker enabled")
	}
}

func TestLoadDistributedMode(t *testing.T) {
	t.Setenv("KESTREL_MODE", "distributed")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Store.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %s", cfg.Store.Driver)
	}
	if cfg.Cache.Type != "redis" {
		t.Errorf("expected redis cache, got %s", cfg.Cache.Type)
	}
	if cfg.Bus.Type != "nats" {
		t.Errorf("expected nats bus, got %s", cfg.Bus.Type)
	}
}

func TestLoadRejectsBadDriver(t *testing.T) {
	t.Setenv("KESTREL_STORE_DRIVER", "oracle")

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown store driver")
	}
}

func TestLoadFactorRulesInline(t *testing.T) {
	t.Setenv("KESTREL_FACTOR_RULES", `[{"name":"high_device","expression":"device_risk > 50.0","weight":1.0,"enabled":true}]`)

	rules, err := LoadFactorRules()
	if err != nil {
		t.Fatalf("LoadFactorRules failed: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	if rules[0].Name != "high_device" {
		t.Errorf("unexpected rule name %s", rules[0].Name)
	}
}

func TestLoadFactorRulesAbsent(t *testing.T) {
	rules, err := LoadFactorRules()
	if err != nil {
		t.Fatalf("LoadFactorRules failed: %v", err)
	}
	if rules != nil {
		t.Errorf("expected nil rules, got %v", rules)
	}
}
