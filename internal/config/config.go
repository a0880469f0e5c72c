// Package config loads brewd's configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Device DeviceConfig
	Server ServerConfig
	Schema SchemaConfig
	Log    LogConfig
}

type DeviceConfig struct {
	URL string
}

type ServerConfig struct {
	Host string
	Port int
}

type SchemaConfig struct {
	Path string
}

type LogConfig struct {
	Level string
}

// containerSchemaPath is where the Docker image mounts the profile schema.
const containerSchemaPath = "/app/schema/profile.schema.json"

// localSchemaPath is the repo-relative path used in local development.
const localSchemaPath = "schema/profile.schema.json"

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from BREWD_* environment variables on top of
// the defaults. The machine address has no safe default, so a missing
// BREWD_DEVICE_URL is an error. The schema path resolves in order:
// explicit BREWD_SCHEMA_PATH, the container mount, the repo-local copy.
func Load() (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.Device.URL == "" {
		return Config{}, fmt.Errorf("missing required config: machine address. Set it via environment variable BREWD_DEVICE_URL, e.g. http://espresso.local:8080")
	}
	cfg.Device.URL = strings.TrimRight(cfg.Device.URL, "/")

	path, err := resolveSchemaPath(cfg.Schema.Path)
	if err != nil {
		return Config{}, err
	}
	cfg.Schema.Path = path

	return cfg, nil
}

// SchemaPath resolves the profile schema location without requiring a full
// configuration. Offline commands use it so they work without a machine
// address.
func SchemaPath() (string, error) {
	return resolveSchemaPath(os.Getenv("BREWD_SCHEMA_PATH"))
}

func resolveSchemaPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("profile schema not found at BREWD_SCHEMA_PATH=%s: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, p := range []string{containerSchemaPath, localSchemaPath} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("profile schema not found at %s or %s; set BREWD_SCHEMA_PATH", containerSchemaPath, localSchemaPath)
}

// SlogLevel maps the configured log level string to a slog.Level. Unknown
// values fall back to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
