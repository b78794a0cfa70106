package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("storemap-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Limits.MaxRadiusKm != 20 || cfg.Limits.MaxNearLimit != 10 || cfg.Limits.MaxWithinLimit != 500 {
		t.Errorf("unexpected limits: %+v", cfg.Limits)
	}
	if cfg.Limits.DefaultRadiusKm != 5 || cfg.Limits.DefaultNearLimit != 3 || cfg.Limits.DefaultWithinLimit != 200 {
		t.Errorf("unexpected defaults: %+v", cfg.Limits)
	}
	if cfg.Idempotency.TTL != 10*time.Minute {
		t.Errorf("expected 10m idempotency ttl, got %s", cfg.Idempotency.TTL)
	}
	if cfg.Admission.DefaultLimit != 120 || cfg.Admission.StrictLimit != 20 || cfg.Admission.Window != time.Minute {
		t.Errorf("unexpected admission: %+v", cfg.Admission)
	}
	if len(cfg.Auth.APIKeys) != 0 {
		t.Errorf("expected no api keys, got %v", cfg.Auth.APIKeys)
	}
	if cfg.Telemetry.ServiceName != "storemap-test" {
		t.Errorf("expected service name, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STOREMAP_SERVER_PORT", "9090")
	t.Setenv("STOREMAP_AUTH_API_KEYS", "alpha, beta")
	t.Setenv("STOREMAP_IDEMPOTENCY_TTL", "2m")
	t.Setenv("STOREMAP_STORAGE_INDEX", "postgres")

	cfg, err := Load("storemap-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if len(cfg.Auth.APIKeys) != 2 || cfg.Auth.APIKeys[0] != "alpha" || cfg.Auth.APIKeys[1] != "beta" {
		t.Errorf("unexpected api keys: %v", cfg.Auth.APIKeys)
	}
	if cfg.Idempotency.TTL != 2*time.Minute {
		t.Errorf("expected 2m ttl, got %s", cfg.Idempotency.TTL)
	}
	if !cfg.UsesPostgres() {
		t.Error("expected postgres to be required")
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := &Config{}
	cfg.Storage.Repository = "mongo"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"server.port", "storage.repository", "admission.backend", "idempotency.ttl"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}
