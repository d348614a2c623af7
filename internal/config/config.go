// Package config provides configuration loading for the askdb CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	// Core holds the trust boundary knobs.
	Core CoreConfig `mapstructure:"core"`

	// Engines selects and configures the query engine.
	Engines EnginesConfig `mapstructure:"engines"`

	// Generator configures SQL generation.
	Generator GeneratorConfig `mapstructure:"generator"`

	// Audit configures the audit sink.
	Audit AuditConfig `mapstructure:"audit"`
}

// CoreConfig holds the policy and execution knobs.
type CoreConfig struct {
	RetryCap             int  `mapstructure:"retry_cap"`
	TimeoutMS            int  `mapstructure:"timeout_ms"`
	RowCap               int  `mapstructure:"row_cap"`
	DefaultRowLimit      int  `mapstructure:"default_row_limit"`
	MaxRowLimit          int  `mapstructure:"max_row_limit"`
	AllowWindowFunctions bool `mapstructure:"allow_window_functions"`

	// AllowUnenforcedEngines accepts engines that cannot pin
	// connections read-only (trino, snowflake).
	AllowUnenforcedEngines bool `mapstructure:"allow_unenforced_engines"`

	// SchemaBlobMaxBytes truncates the schema text in prompts.
	SchemaBlobMaxBytes int `mapstructure:"schema_blob_max_bytes"`
}

// Timeout returns the execution budget as a duration.
func (c CoreConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// EnginesConfig holds per-engine connection settings.
type EnginesConfig struct {
	// Default names the engine used when none is given.
	Default string `mapstructure:"default"`

	SQLite    SQLiteConfig `mapstructure:"sqlite"`
	DuckDB    DSNConfig    `mapstructure:"duckdb"`
	Postgres  DSNConfig    `mapstructure:"postgres"`
	Trino     DSNConfig    `mapstructure:"trino"`
	Snowflake DSNConfig    `mapstructure:"snowflake"`
}

// SQLiteConfig holds the SQLite engine settings.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// DSNConfig holds a single connection string.
type DSNConfig struct {
	DSN string `mapstructure:"dsn"`
}

// DSNFor returns the connection string for a named engine.
func (e EnginesConfig) DSNFor(name string) (string, error) {
	switch name {
	case "sqlite":
		return e.SQLite.Path, nil
	case "duckdb":
		return e.DuckDB.DSN, nil
	case "postgres":
		return e.Postgres.DSN, nil
	case "trino":
		return e.Trino.DSN, nil
	case "snowflake":
		return e.Snowflake.DSN, nil
	default:
		return "", fmt.Errorf("config: no settings for engine %q", name)
	}
}

// GeneratorConfig selects the SQL generator.
type GeneratorConfig struct {
	// Mode is "http" or "scripted".
	Mode string `mapstructure:"mode"`

	Endpoint      string `mapstructure:"endpoint"`
	Token         string `mapstructure:"token"`
	TimeoutMS     int    `mapstructure:"timeout_ms"`
	Deterministic bool   `mapstructure:"deterministic"`

	// Script holds the scripted mode outputs, in order.
	Script []string `mapstructure:"script"`
}

// Timeout returns the generation budget as a duration.
func (g GeneratorConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMS) * time.Millisecond
}

// AuditConfig selects the audit sink.
type AuditConfig struct {
	// Sink is "json", "sqlite", "postgres", or "none".
	Sink string `mapstructure:"sink"`

	// Path is the JSON-lines or SQLite file path.
	Path string `mapstructure:"path"`

	// DSN is the postgres sink connection string.
	DSN string `mapstructure:"dsn"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Core: CoreConfig{
			RetryCap:           3,
			TimeoutMS:          10000,
			RowCap:             1000,
			DefaultRowLimit:    200,
			MaxRowLimit:        1000,
			SchemaBlobMaxBytes: 16384,
		},
		Engines: EnginesConfig{
			Default: "sqlite",
		},
		Generator: GeneratorConfig{
			Mode:      "http",
			TimeoutMS: 30000,
		},
		Audit: AuditConfig{
			Sink: "json",
			Path: "askdb-audit.jsonl",
		},
	}
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".askdb"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ASKDB")
	v.AutomaticEnv()

	// Config file is optional; defaults plus env are a valid setup.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Core.RetryCap < 1 {
		return fmt.Errorf("config: core.retry_cap must be at least 1")
	}
	if c.Core.MaxRowLimit < c.Core.DefaultRowLimit {
		return fmt.Errorf("config: core.max_row_limit below core.default_row_limit")
	}
	switch c.Audit.Sink {
	case "json", "sqlite", "postgres", "none":
	default:
		return fmt.Errorf("config: unknown audit sink %q", c.Audit.Sink)
	}
	switch c.Generator.Mode {
	case "http", "scripted":
	default:
		return fmt.Errorf("config: unknown generator mode %q", c.Generator.Mode)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("core.retry_cap", 3)
	v.SetDefault("core.timeout_ms", 10000)
	v.SetDefault("core.row_cap", 1000)
	v.SetDefault("core.default_row_limit", 200)
	v.SetDefault("core.max_row_limit", 1000)
	v.SetDefault("core.allow_window_functions", false)
	v.SetDefault("core.allow_unenforced_engines", false)
	v.SetDefault("core.schema_blob_max_bytes", 16384)
	v.SetDefault("engines.default", "sqlite")
	v.SetDefault("engines.sqlite.path", "")
	v.SetDefault("engines.duckdb.dsn", "")
	v.SetDefault("engines.postgres.dsn", "")
	v.SetDefault("engines.trino.dsn", "")
	v.SetDefault("engines.snowflake.dsn", "")
	v.SetDefault("generator.mode", "http")
	v.SetDefault("generator.endpoint", "")
	v.SetDefault("generator.token", "")
	v.SetDefault("generator.timeout_ms", 30000)
	v.SetDefault("generator.deterministic", false)
	v.SetDefault("audit.sink", "json")
	v.SetDefault("audit.path", "askdb-audit.jsonl")
	v.SetDefault("audit.dsn", "")
}
