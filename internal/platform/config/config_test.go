package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_FIRESTORE_PROJECT_ID": "printmesh-test",
		}),
	)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("expected default read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Events.ProjectID != "printmesh-test" {
		t.Fatalf("events project must fall back to firestore project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Events.Topic != "order-events" {
		t.Fatalf("expected default topic, got %s", cfg.Events.Topic)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_SERVER_PORT":             "9090",
			"API_SERVER_READ_TIMEOUT":     "5s",
			"API_FIRESTORE_PROJECT_ID":    "printmesh-prod",
			"API_FIRESTORE_EMULATOR_HOST": "localhost:8200",
			"API_EVENTS_PROJECT_ID":       "printmesh-events",
			"API_EVENTS_ENABLED":          "false",
		}),
	)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg.Server)
	}
	if cfg.Firestore.EmulatorHost != "localhost:8200" {
		t.Fatalf("emulator host not applied: %s", cfg.Firestore.EmulatorHost)
	}
	if cfg.Events.ProjectID != "printmesh-events" || cfg.Events.Enabled {
		t.Fatalf("events config not applied: %+v", cfg.Events)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	found := false
	for _, field := range vErr.Fields() {
		if field == "Firestore.ProjectID" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Firestore.ProjectID to be flagged, got %v", vErr.Fields())
	}
}
