package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  env: prod
  log_level: debug
server:
  addr: ":9090"
auth:
  api_keys: ["k1", "k2"]
fetch:
  timeout_sec: 2
  rate_per_second: 5
model:
  page:
    path: /models/page.onnx
    features_path: /models/page.txt
history:
  enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.Env != "prod" || cfg.App.LogLevel != "debug" {
		t.Errorf("unexpected app section: %+v", cfg.App)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("unexpected server section: %+v", cfg.Server)
	}
	if len(cfg.Auth.APIKeys) != 2 {
		t.Errorf("expected 2 api keys, got %v", cfg.Auth.APIKeys)
	}
	if cfg.Fetch.TimeoutSec != 2 || cfg.Fetch.Burst != 1 {
		t.Errorf("unexpected fetch section: %+v", cfg.Fetch)
	}
	if cfg.Model.Page.Path != "/models/page.onnx" || cfg.Model.URL.Path != "data/models/url_model.onnx" {
		t.Errorf("unexpected model section: %+v", cfg.Model)
	}
	if !cfg.History.Enabled || cfg.History.Path != "data/history.db" {
		t.Errorf("unexpected history section: %+v", cfg.History)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.App.Env != "local" || cfg.Server.Addr != ":8000" || cfg.Analysis.BatchWorkers != 16 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.History.Enabled {
		t.Error("history should be disabled by default")
	}
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit config path")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("PHISHGUARD_TEST_KEY", "secret")
	path := writeConfig(t, `
auth:
  api_keys: ["${PHISHGUARD_TEST_KEY}"]
model:
  library_path: "${PHISHGUARD_TEST_UNSET:-/usr/lib/libonnxruntime.so}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0] != "secret" {
		t.Errorf("expected expanded api key, got %v", cfg.Auth.APIKeys)
	}
	if cfg.Model.LibraryPath != "/usr/lib/libonnxruntime.so" {
		t.Errorf("expected default value, got %q", cfg.Model.LibraryPath)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"Defaults", func(c *Config) {}, ""},
		{"UnknownEnv", func(c *Config) { c.App.Env = "staging" }, "app.env"},
		{"UnknownLevel", func(c *Config) { c.App.LogLevel = "trace" }, "app.log_level"},
		{"NegativeRate", func(c *Config) { c.Fetch.RatePerSecond = -1 }, "rate_per_second"},
		{"SourceWithoutURL", func(c *Config) { c.Trust.Sources = []SourceConfig{{Name: "x"}} }, "trust.sources[0].url"},
		{"SourceBadFormat", func(c *Config) { c.Trust.Sources = []SourceConfig{{URL: "a.txt", Format: "json"}} }, "trust.sources[0].format"},
		{"BlankAPIKey", func(c *Config) { c.Auth.APIKeys = []string{"ok", " "} }, "auth.api_keys[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
