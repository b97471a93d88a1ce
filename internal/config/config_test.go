package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Load touches process-wide env vars, so these tests do not run parallel.

func TestLoad_EnvOverridesOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.json")
	optsJSON := `{
		"sedif_username": "from-options",
		"sedif_password": "secret",
		"sensor_prefix": "eau",
		"refresh_interval_minutes": 60,
		"sink": "none"
	}`
	if err := os.WriteFile(path, []byte(optsJSON), 0o600); err != nil {
		t.Fatalf("write options: %v", err)
	}

	t.Setenv("SEDIF_USERNAME", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := cfg.Username, "from-env"; got != want {
		t.Fatalf("Username=%q want %q", got, want)
	}
	if got, want := cfg.Password, "secret"; got != want {
		t.Fatalf("Password=%q want %q", got, want)
	}
	if got, want := cfg.SensorPrefix, "eau"; got != want {
		t.Fatalf("SensorPrefix=%q want %q", got, want)
	}
	if got, want := cfg.RefreshInterval, 60*time.Minute; got != want {
		t.Fatalf("RefreshInterval=%v want %v", got, want)
	}
	if got, want := cfg.Sink, SinkNone; got != want {
		t.Fatalf("Sink=%v want %v", got, want)
	}
}

func TestLoad_MissingOptionsFileIsFine(t *testing.T) {
	t.Setenv("SEDIF_SOURCE_FILE", "payloads.json")
	t.Setenv("SINK", "none")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := cfg.RefreshInterval, 360*time.Minute; got != want {
		t.Fatalf("RefreshInterval=%v want %v", got, want)
	}
	if got, want := cfg.SensorPrefix, "sedif"; got != want {
		t.Fatalf("SensorPrefix=%q want %q", got, want)
	}
}

func TestLoad_RequiresCredentialsWithoutFixture(t *testing.T) {
	t.Setenv("SINK", "none")

	if _, err := Load(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestLoad_RejectsUnknownSink(t *testing.T) {
	t.Setenv("SEDIF_SOURCE_FILE", "payloads.json")
	t.Setenv("SINK", "carrier-pigeon")

	if _, err := Load(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestLoad_MQTTSinkNeedsBroker(t *testing.T) {
	t.Setenv("SEDIF_SOURCE_FILE", "payloads.json")
	t.Setenv("SINK", "mqtt")

	if _, err := Load(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Fatalf("expected error, got nil")
	}

	t.Setenv("MQTT_BROKER_URL", "tcp://localhost:1883")
	if _, err := Load(filepath.Join(t.TempDir(), "none.json")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
