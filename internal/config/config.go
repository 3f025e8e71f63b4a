// Package config loads the server configuration.
//
// Values are resolved in three layers, later layers winning:
//
//  1. Defaults (Default)
//  2. An optional YAML file named by OBSIDIAN_CONFIG
//  3. Environment variables (PORT, DB_PATH, UPLOAD_DIR, JWT_SECRET,
//     CORS_ORIGINS, MAX_UPLOAD_BYTES, LOG_LEVEL)
//
// Example file:
//
//	port: 5000
//	db_path: data/obsidian.db
//	upload_dir: uploads
//	cors_origins: ["http://localhost:5173"]
//	max_upload_bytes: 33554432
//	log_level: info
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MinSecretLength matches the check auth.NewTokenService performs.
const MinSecretLength = 16

// Config holds everything cmd/server needs to build the server.
type Config struct {
	Port           int      `yaml:"port"`
	DBPath         string   `yaml:"db_path"`
	UploadDir      string   `yaml:"upload_dir"`
	JWTSecret      string   `yaml:"jwt_secret"`
	CORSOrigins    []string `yaml:"cors_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	LogLevel       string   `yaml:"log_level"`
}

// Default returns the built-in configuration. JWTSecret is deliberately
// empty: it must come from the file or the environment.
func Default() Config {
	return Config{
		Port:           5000,
		DBPath:         "data/obsidian.db",
		UploadDir:      "uploads",
		CORSOrigins:    []string{"*"},
		MaxUploadBytes: 32 << 20,
		LogLevel:       "info",
	}
}

// Load resolves the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom resolves the configuration using getenv for every lookup, so
// tests can supply a fake environment.
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Default()

	if path := getenv("OBSIDIAN_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.mergeEnv(getenv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path. Keys absent from the file keep
// their current values.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v := getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := getenv("UPLOAD_DIR"); v != "" {
		c.UploadDir = v
	}
	if v := getenv("JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: invalid MAX_UPLOAD_BYTES %q: %w", v, err)
		}
		c.MaxUploadBytes = n
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate reports every setting the server cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.UploadDir == "" {
		errs = append(errs, errors.New("upload_dir is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if len(c.JWTSecret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", MinSecretLength))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel converts LogLevel ("debug", "info", "warn", "error") to a slog.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return level, nil
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
