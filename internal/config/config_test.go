package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const testSecret = "test-secret-at-least-16-chars!!"

// fakeEnv returns a getenv backed by a map.
func fakeEnv(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obsidian.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadFrom_DefaultsPlusSecret(t *testing.T) {
	cfg, err := LoadFrom(fakeEnv(map[string]string{"JWT_SECRET": testSecret}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	want := Default()
	want.JWTSecret = testSecret
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("LoadFrom() = %+v, want %+v", cfg, want)
	}
}

func TestLoadFrom_MissingSecret(t *testing.T) {
	_, err := LoadFrom(fakeEnv(nil))
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET is required") {
		t.Fatalf("LoadFrom() error = %v, want JWT_SECRET is required", err)
	}
}

func TestLoadFrom_FileThenEnv(t *testing.T) {
	path := writeConfigFile(t, `
port: 8081
db_path: /tmp/board.db
jwt_secret: file-secret-0123456789
cors_origins: ["http://localhost:5173"]
log_level: debug
`)

	cfg, err := LoadFrom(fakeEnv(map[string]string{
		"OBSIDIAN_CONFIG": path,
		"PORT":            "9090",
		"UPLOAD_DIR":      "/srv/uploads",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090 (env beats file)", cfg.Port)
	}
	if cfg.DBPath != "/tmp/board.db" {
		t.Errorf("DBPath = %q, want value from file", cfg.DBPath)
	}
	if cfg.UploadDir != "/srv/uploads" {
		t.Errorf("UploadDir = %q, want value from env", cfg.UploadDir)
	}
	if cfg.JWTSecret != "file-secret-0123456789" {
		t.Errorf("JWTSecret = %q, want value from file", cfg.JWTSecret)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"http://localhost:5173"}) {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.MaxUploadBytes != 32<<20 {
		t.Errorf("MaxUploadBytes = %d, want default kept", cfg.MaxUploadBytes)
	}
	if level, _ := cfg.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want DEBUG", level)
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(fakeEnv(map[string]string{
		"OBSIDIAN_CONFIG": filepath.Join(t.TempDir(), "nope.yaml"),
		"JWT_SECRET":      testSecret,
	}))
	if err == nil {
		t.Fatal("LoadFrom() should fail when OBSIDIAN_CONFIG points at a missing file")
	}
}

func TestLoadFrom_MalformedFile(t *testing.T) {
	path := writeConfigFile(t, "port: [not a number\n")

	_, err := LoadFrom(fakeEnv(map[string]string{"OBSIDIAN_CONFIG": path, "JWT_SECRET": testSecret}))
	if err == nil {
		t.Fatal("LoadFrom() should fail on malformed YAML")
	}
}

func TestLoadFrom_EnvParsing(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg Config)
	}{
		{
			name:    "non-numeric port",
			env:     map[string]string{"PORT": "http"},
			wantErr: true,
		},
		{
			name:    "non-numeric upload limit",
			env:     map[string]string{"MAX_UPLOAD_BYTES": "lots"},
			wantErr: true,
		},
		{
			name: "cors list is split and trimmed",
			env:  map[string]string{"CORS_ORIGINS": " http://a.test , ,http://b.test"},
			check: func(t *testing.T, cfg Config) {
				want := []string{"http://a.test", "http://b.test"}
				if !reflect.DeepEqual(cfg.CORSOrigins, want) {
					t.Errorf("CORSOrigins = %v, want %v", cfg.CORSOrigins, want)
				}
			},
		},
		{
			name: "upload limit override",
			env:  map[string]string{"MAX_UPLOAD_BYTES": "1024"},
			check: func(t *testing.T, cfg Config) {
				if cfg.MaxUploadBytes != 1024 {
					t.Errorf("MaxUploadBytes = %d, want 1024", cfg.MaxUploadBytes)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{"JWT_SECRET": testSecret}
			for k, v := range tt.env {
				env[k] = v
			}

			cfg, err := LoadFrom(fakeEnv(env))
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadFrom() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.JWTSecret = testSecret

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "at least 16 characters"},
		{"port zero", func(c *Config) { c.Port = 0 }, "port must be between"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "port must be between"},
		{"zero upload size", func(c *Config) { c.MaxUploadBytes = 0 }, "max_upload_bytes must be positive"},
		{"no db path", func(c *Config) { c.DBPath = "" }, "db_path is required"},
		{"no upload dir", func(c *Config) { c.UploadDir = "" }, "upload_dir is required"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
