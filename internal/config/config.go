package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Model    ModelConfig    `yaml:"model"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Trust    TrustConfig    `yaml:"trust"`
	History  HistoryConfig  `yaml:"history"`
}

type AppConfig struct {
	Env      string `yaml:"env"`       // local, dev, prod
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes"`
}

// AuthConfig lists the accepted X-API-Key values. Empty disables the check.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

type FetchConfig struct {
	TimeoutSec    int     `yaml:"timeout_sec"`
	MaxBodyBytes  int64   `yaml:"max_body_bytes"`
	UserAgent     string  `yaml:"user_agent"`
	RatePerSecond float64 `yaml:"rate_per_second"` // 0 = unlimited
	Burst         int     `yaml:"burst"`
}

type ModelConfig struct {
	// LibraryPath is the onnxruntime shared library; empty uses the
	// loader's default search.
	LibraryPath string     `yaml:"library_path"`
	Page        ModelFiles `yaml:"page"`
	URL         ModelFiles `yaml:"url"`
}

type ModelFiles struct {
	Path         string `yaml:"path"`
	FeaturesPath string `yaml:"features_path"`
}

type AnalysisConfig struct {
	BatchWorkers int `yaml:"batch_workers"`

	// CacheTTLSec keeps single-URL verdicts for the API; negative disables
	// the cache.
	CacheTTLSec int `yaml:"cache_ttl_sec"`
	CacheSize   int `yaml:"cache_size"`
}

// TrustConfig extends the built-in trusted domains, which are exempt from
// the phishing-keyword rule.
type TrustConfig struct {
	Domains []string       `yaml:"domains"`
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig is a trusted-domain feed: an http(s) URL or a local path.
type SourceConfig struct {
	Name         string `yaml:"name"`
	URL          string `yaml:"url"`
	Format       string `yaml:"format"` // text, csv, hosts
	TargetColumn string `yaml:"target_column"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

var searchPaths = []string{
	"configs/config.yaml",
	"./config.yaml",
	"/etc/phishguard/config.yaml",
}

// Load reads the config at path, or the first file found in the search
// paths when path is empty. With no file at all the defaults are used.
func Load(path string) (*Config, error) {
	if path == "" {
		for _, p := range searchPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	var cfg Config
	if path != "" {
		if err := parseConfigFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func parseConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "local"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = 10
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = 30
	}
	if c.Server.ShutdownSec <= 0 {
		c.Server.ShutdownSec = 10
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Fetch.TimeoutSec <= 0 {
		c.Fetch.TimeoutSec = 5
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		c.Fetch.MaxBodyBytes = 10 << 20
	}
	if c.Fetch.RatePerSecond > 0 && c.Fetch.Burst <= 0 {
		c.Fetch.Burst = 1
	}
	if c.Model.Page.Path == "" {
		c.Model.Page.Path = "data/models/page_model.onnx"
	}
	if c.Model.URL.Path == "" {
		c.Model.URL.Path = "data/models/url_model.onnx"
	}
	if c.Analysis.BatchWorkers <= 0 {
		c.Analysis.BatchWorkers = 16
	}
	if c.Analysis.CacheTTLSec == 0 {
		c.Analysis.CacheTTLSec = 300
	}
	if c.Analysis.CacheSize <= 0 {
		c.Analysis.CacheSize = 10000
	}
	if c.History.Path == "" {
		c.History.Path = "data/history.db"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.App.Env {
	case "local", "dev", "docker", "prod":
	default:
		return fmt.Errorf("app.env must be one of local, dev, docker, prod, got %q", c.App.Env)
	}
	switch c.App.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level must be debug, info, warn or error, got %q", c.App.LogLevel)
	}
	if c.Fetch.RatePerSecond < 0 {
		return errors.New("fetch.rate_per_second must not be negative")
	}
	for i, src := range c.Trust.Sources {
		if src.URL == "" {
			return fmt.Errorf("trust.sources[%d].url is required", i)
		}
		switch src.Format {
		case "", "text", "csv", "hosts":
		default:
			return fmt.Errorf("trust.sources[%d].format must be text, csv or hosts, got %q", i, src.Format)
		}
	}
	for i, k := range c.Auth.APIKeys {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("auth.api_keys[%d] is empty", i)
		}
	}
	return nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, def, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = def
		}
		return []byte(val)
	})
}
