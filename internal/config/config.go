// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration for the tracker.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Mirror   MirrorConfig   `yaml:"mirror"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds the ledger database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MirrorConfig holds the workbook mirror location. An empty path disables
// mirroring.
type MirrorConfig struct {
	Path string `yaml:"path"`
}

// AnalyzerConfig holds the external nutrition-analysis service settings.
type AnalyzerConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// IngestConfig holds ingestion timing configuration.
type IngestConfig struct {
	Debounce    time.Duration `yaml:"-"`
	DedupWindow time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	DebounceRaw    string `yaml:"debounce"`
	DedupWindowRaw string `yaml:"dedup_window"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8011},
		Database: DatabaseConfig{Path: "./data/nutrition.db"},
		Analyzer: AnalyzerConfig{URL: "http://localhost:3456"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded and
// duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Analyzer.URL == "" {
		return fmt.Errorf("analyzer.url is required")
	}
	if c.Ingest.Debounce < 0 {
		return fmt.Errorf("ingest.debounce must not be negative")
	}
	if c.Ingest.DedupWindow < 0 {
		return fmt.Errorf("ingest.dedup_window must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Ingest.DebounceRaw != "" {
		cfg.Ingest.Debounce, err = time.ParseDuration(cfg.Ingest.DebounceRaw)
		if err != nil {
			return fmt.Errorf("parsing ingest.debounce %q: %w", cfg.Ingest.DebounceRaw, err)
		}
	}

	if cfg.Ingest.DedupWindowRaw != "" {
		cfg.Ingest.DedupWindow, err = time.ParseDuration(cfg.Ingest.DedupWindowRaw)
		if err != nil {
			return fmt.Errorf("parsing ingest.dedup_window %q: %w", cfg.Ingest.DedupWindowRaw, err)
		}
	}

	return nil
}
