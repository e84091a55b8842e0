// Package config loads analyser settings from a YAML file, a .env file and
// the process environment, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pairing_analyzer/internal/classifier"
	"pairing_analyzer/internal/metrics"
	"pairing_analyzer/internal/parser"
	"pairing_analyzer/internal/progress"
	"pairing_analyzer/internal/storage"
)

// Config holds all configuration for the CLI and the API server.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	NATS     NATSConfig     `yaml:"nats"`
	Server   ServerConfig   `yaml:"server"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// AnalysisConfig contains parse and classification settings
type AnalysisConfig struct {
	EDWWindow          string  `yaml:"edw_window"`
	UseReserveBounds   bool    `yaml:"use_reserve_bounds"`
	HotStandbyDefault  bool    `yaml:"hot_standby_default"`
	BucketWidthHours   float64 `yaml:"bucket_width_hours"`
	ReportLeadMinutes  int     `yaml:"report_lead_minutes"`
	ReleaseLagMinutes  int     `yaml:"release_lag_minutes"`
	ProgressEveryLines int     `yaml:"progress_every_lines"`
}

// StorageConfig contains database settings
type StorageConfig struct {
	// Backend selects the analysis store: "sqlite" or "postgres".
	Backend    string                   `yaml:"backend"`
	SQLitePath string                   `yaml:"sqlite_path"`
	Postgres   storage.PostgresConfig   `yaml:"postgres"`
	ClickHouse storage.ClickHouseConfig `yaml:"clickhouse"`
}

// NATSConfig contains progress publishing settings
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ServerConfig contains API server settings
type ServerConfig struct {
	Port               int      `yaml:"port"`
	AuthEnabled        bool     `yaml:"auth_enabled"`
	APIKeys            []string `yaml:"api_keys"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	MaxUploadMB        int      `yaml:"max_upload_mb"`
	ReadTimeoutSeconds int      `yaml:"read_timeout_seconds"`
}

// Default returns the built-in configuration.
func Default() *Config {
	lead := parser.DefaultOptions()
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Analysis: AnalysisConfig{
			EDWWindow:          classifier.DefaultWindow.String(),
			UseReserveBounds:   true,
			BucketWidthHours:   metrics.DefaultConfig().BucketWidth,
			ReportLeadMinutes:  int(lead.ReportLead / time.Minute),
			ReleaseLagMinutes:  int(lead.ReleaseLag / time.Minute),
			ProgressEveryLines: lead.ProgressEvery,
		},
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: "pairings.db",
			Postgres:   storage.DefaultConfig().Postgres,
			ClickHouse: storage.DefaultConfig().ClickHouse,
		},
		NATS: NATSConfig{SubjectPrefix: "pairings.progress"},
		Server: ServerConfig{
			Port:               8081,
			MaxUploadMB:        32,
			ReadTimeoutSeconds: 30,
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty), then applies
// a .env file if present and finally environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Load .env file if it exists
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Logging.Level = getEnv("PAIRING_LOG_LEVEL", c.Logging.Level)

	a := &c.Analysis
	a.EDWWindow = getEnv("PAIRING_EDW_WINDOW", a.EDWWindow)
	a.UseReserveBounds = getEnvAsBool("PAIRING_USE_RESERVE_BOUNDS", a.UseReserveBounds)
	a.HotStandbyDefault = getEnvAsBool("PAIRING_HOT_STANDBY_DEFAULT", a.HotStandbyDefault)
	a.BucketWidthHours = getEnvAsFloat("PAIRING_BUCKET_WIDTH_HOURS", a.BucketWidthHours)

	s := &c.Storage
	s.Backend = getEnv("PAIRING_STORE", s.Backend)
	s.SQLitePath = getEnv("PAIRING_SQLITE_PATH", s.SQLitePath)
	s.Postgres.Host = getEnv("POSTGRES_HOST", s.Postgres.Host)
	s.Postgres.Port = getEnvAsInt("POSTGRES_PORT", s.Postgres.Port)
	s.Postgres.Database = getEnv("POSTGRES_DATABASE", s.Postgres.Database)
	s.Postgres.User = getEnv("POSTGRES_USER", s.Postgres.User)
	s.Postgres.Password = getEnv("POSTGRES_PASSWORD", s.Postgres.Password)
	s.ClickHouse.Enabled = getEnvAsBool("CLICKHOUSE_ENABLED", s.ClickHouse.Enabled)
	s.ClickHouse.Host = getEnv("CLICKHOUSE_HOST", s.ClickHouse.Host)
	s.ClickHouse.Port = getEnvAsInt("CLICKHOUSE_PORT", s.ClickHouse.Port)
	s.ClickHouse.Database = getEnv("CLICKHOUSE_DATABASE", s.ClickHouse.Database)
	s.ClickHouse.User = getEnv("CLICKHOUSE_USER", s.ClickHouse.User)
	s.ClickHouse.Password = getEnv("CLICKHOUSE_PASSWORD", s.ClickHouse.Password)

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)

	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)
	c.Server.AuthEnabled = getEnvAsBool("API_AUTH", c.Server.AuthEnabled)
	if keys := getEnv("API_KEYS", ""); keys != "" {
		c.Server.APIKeys = SplitList(keys)
	}
}

// Validate checks values that would otherwise fail later in the pipeline.
func (c *Config) Validate() error {
	if _, err := classifier.ParseWindow(c.Analysis.EDWWindow); err != nil {
		return fmt.Errorf("analysis.edw_window: %w", err)
	}
	switch c.Storage.Backend {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.Analysis.BucketWidthHours < 0 {
		return fmt.Errorf("analysis.bucket_width_hours: must not be negative")
	}
	return nil
}

// Classifier returns the classification settings.
func (c *Config) Classifier() classifier.Config {
	w, err := classifier.ParseWindow(c.Analysis.EDWWindow)
	if err != nil {
		w = classifier.DefaultWindow
	}
	return classifier.Config{
		Window:            w,
		UseReserveBounds:  c.Analysis.UseReserveBounds,
		HotStandbyDefault: c.Analysis.HotStandbyDefault,
	}
}

// Metrics returns the aggregation settings.
func (c *Config) Metrics() metrics.Config {
	return metrics.Config{
		Classifier:  c.Classifier(),
		BucketWidth: c.Analysis.BucketWidthHours,
	}
}

// ParserOptions returns the parser settings with fn as progress callback.
func (c *Config) ParserOptions(fn progress.Func) parser.Options {
	return parser.Options{
		ReportLead:    time.Duration(c.Analysis.ReportLeadMinutes) * time.Minute,
		ReleaseLag:    time.Duration(c.Analysis.ReleaseLagMinutes) * time.Minute,
		ProgressEvery: c.Analysis.ProgressEveryLines,
		Progress:      fn,
	}
}

// SplitList splits a comma-separated list, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
