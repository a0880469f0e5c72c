package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRequiresDeviceURL(t *testing.T) {
	t.Setenv("BREWD_DEVICE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() succeeded without BREWD_DEVICE_URL")
	}
	if !strings.Contains(err.Error(), "BREWD_DEVICE_URL") {
		t.Errorf("error should name the missing variable, got: %v", err)
	}
}

func TestLoadTrimsTrailingSlash(t *testing.T) {
	schema := writeTempSchema(t)
	t.Setenv("BREWD_DEVICE_URL", "http://machine.local:8080/")
	t.Setenv("BREWD_SCHEMA_PATH", schema)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Device.URL != "http://machine.local:8080" {
		t.Errorf("Device.URL = %q", cfg.Device.URL)
	}
}

func TestLoadDefaults(t *testing.T) {
	schema := writeTempSchema(t)
	t.Setenv("BREWD_DEVICE_URL", "http://machine.local")
	t.Setenv("BREWD_SCHEMA_PATH", schema)
	t.Setenv("BREWD_SERVER_HOST", "")
	t.Setenv("BREWD_SERVER_PORT", "")
	t.Setenv("BREWD_LOG_LEVEL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level default = %q", cfg.Log.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	schema := writeTempSchema(t)
	t.Setenv("BREWD_DEVICE_URL", "http://machine.local")
	t.Setenv("BREWD_SCHEMA_PATH", schema)
	t.Setenv("BREWD_SERVER_HOST", "0.0.0.0")
	t.Setenv("BREWD_SERVER_PORT", "9090")
	t.Setenv("BREWD_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("server = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.SlogLevel().String() != "DEBUG" {
		t.Errorf("SlogLevel() = %v", cfg.SlogLevel())
	}
}

func TestExplicitSchemaPathMustExist(t *testing.T) {
	t.Setenv("BREWD_DEVICE_URL", "http://machine.local")
	t.Setenv("BREWD_SCHEMA_PATH", filepath.Join(t.TempDir(), "nope.json"))

	_, err := Load()
	if err == nil {
		t.Fatal("Load() accepted a missing explicit schema path")
	}
	if !strings.Contains(err.Error(), "BREWD_SCHEMA_PATH") {
		t.Errorf("error should name the override variable, got: %v", err)
	}
}

func TestShowAllListsEveryKey(t *testing.T) {
	cfg := defaults()
	cfg.Device.URL = "http://machine.local"

	infos := ShowAll(cfg)
	if len(infos) != len(specs) {
		t.Fatalf("ShowAll() returned %d entries, want %d", len(infos), len(specs))
	}
	seen := map[string]string{}
	for _, ki := range infos {
		seen[ki.Key] = ki.Value
	}
	if seen["device.url"] != "http://machine.local" {
		t.Errorf("device.url = %q", seen["device.url"])
	}
	if seen["server.port"] != "8080" {
		t.Errorf("server.port = %q", seen["server.port"])
	}
}

func writeTempSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.schema.json")
	if err := os.WriteFile(path, []byte(`{"type":"object"}`), 0o644); err != nil {
		t.Fatalf("writing temp schema: %v", err)
	}
	return path
}
