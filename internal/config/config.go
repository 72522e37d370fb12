// Package config loads evolve.yaml and applies EVOLVE_* overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "evolve.yaml"

// Environment variables that override file configuration.
const (
	EnvRegistryPath = "EVOLVE_REGISTRY_PATH"
	EnvLogLevel     = "EVOLVE_LOG_LEVEL"
	EnvLogFormat    = "EVOLVE_LOG_FORMAT"
	EnvOutputFormat = "EVOLVE_OUTPUT_FORMAT"
	EnvSchemaPaths  = "EVOLVE_SCHEMA_PATHS" // comma-separated
	EnvScenarioDir  = "EVOLVE_SCENARIO_DIR"
)

// Config is the root configuration structure.
type Config struct {
	Registry RegistryConfig `yaml:"registry"`
	Logging  LoggingConfig  `yaml:"logging"`
	Output   OutputConfig   `yaml:"output"`
	Schemas  SchemasConfig  `yaml:"schemas"`
}

// RegistryConfig configures the SQLite schema registry.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures diagnostic logging on stderr.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "console" or "json"
}

// OutputConfig configures command output on stdout.
type OutputConfig struct {
	Format string `yaml:"format"` // "text" or "json"
}

// SchemasConfig names where schema sources and scenarios live when a
// command is run without explicit paths.
type SchemasConfig struct {
	Paths       []string `yaml:"paths"`
	ScenarioDir string   `yaml:"scenario_dir"`
}

// Load reads the YAML file at path, expands ${VAR} references, applies
// environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(&cfg)
}

// LoadOrDefault loads path when the file exists and otherwise builds the
// configuration from defaults and the environment alone. An explicitly
// requested path that does not exist is an error.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if explicit {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies EVOLVE_* variables. They always win over the
// file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvRegistryPath); v != "" {
		cfg.Registry.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.Format = v
	}
	if v := os.Getenv(EnvSchemaPaths); v != "" {
		var paths []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		cfg.Schemas.Paths = paths
	}
	if v := os.Getenv(EnvScenarioDir); v != "" {
		cfg.Schemas.ScenarioDir = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = "evolve.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "text"
	}
	if cfg.Schemas.ScenarioDir == "" {
		cfg.Schemas.ScenarioDir = "testdata/scenarios"
	}
}

func validate(cfg *Config) error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, disabled, got %q", cfg.Logging.Level)
	}

	validLogFormats := map[string]bool{"console": true, "json": true}
	if !validLogFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'console' or 'json', got %q", cfg.Logging.Format)
	}

	validOutputFormats := map[string]bool{"text": true, "json": true}
	if !validOutputFormats[cfg.Output.Format] {
		return fmt.Errorf("output.format must be 'text' or 'json', got %q", cfg.Output.Format)
	}

	for i, p := range cfg.Schemas.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("schemas.paths[%d] is empty", i)
		}
	}
	return nil
}
