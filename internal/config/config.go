// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

// Config is the top-level memoryd configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	UI        UIConfig        `mapstructure:"ui"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Search    SearchConfig    `mapstructure:"search"`
	Duplicate DuplicateConfig `mapstructure:"duplicate"`
	List      ListConfig      `mapstructure:"list"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// UIConfig controls the HTTP API server.
type UIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
}

// SearchConfig tunes similarity search.
type SearchConfig struct {
	Engine    string  `mapstructure:"engine"`
	Threshold float64 `mapstructure:"threshold"`
	MaxLimit  int     `mapstructure:"max_limit"`
}

// DuplicateConfig tunes the write-time duplicate guard.
type DuplicateConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// ListConfig tunes pagination.
type ListConfig struct {
	MaxLimit int `mapstructure:"max_limit"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix MEMORY_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("database.path", "")
	v.SetDefault("ui.enabled", true)
	v.SetDefault("ui.listen", "127.0.0.1:6277")
	v.SetDefault("embedding.provider", "mock")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.endpoint", "")
	v.SetDefault("search.engine", "scan")
	v.SetDefault("search.threshold", 0.5)
	v.SetDefault("search.max_limit", 50)
	v.SetDefault("duplicate.threshold", 0.7)
	v.SetDefault("list.max_limit", 100)

	// Environment
	v.SetEnvPrefix("MEMORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, memerr.Errorf(memerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, memerr.Errorf(memerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if cfg.Database.Path == "" {
		p, err := DefaultDatabasePath()
		if err != nil {
			return nil, err
		}
		cfg.Database.Path = p
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, memerr.Errorf(memerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// DefaultDatabasePath returns ~/.memoryd/memories.db.
func DefaultDatabasePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", memerr.Errorf(memerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".memoryd", "memories.db"), nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateUI()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateSearch()...)
	errs = append(errs, c.validateLimits()...)

	return errs
}

func (c *Config) validateUI() []error {
	var errs []error

	if !c.UI.Enabled {
		return errs
	}

	if c.UI.Listen == "" {
		errs = append(errs, memerr.Errorf(memerr.CodeConfigValidateInvalidValue, "config: ui.listen must not be empty"))
		return errs
	}

	host, portStr, err := net.SplitHostPort(c.UI.Listen)
	if err != nil {
		errs = append(errs, memerr.Errorf(memerr.CodeConfigValidateInvalidValue,
			"config: ui.listen must be a valid host:port address, got %q: %w",
			c.UI.Listen, err,
		))
		return errs
	}
	_ = host // host can be empty (e.g., ":6277"), which is valid

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, memerr.Errorf(memerr.CodeConfigValidateInvalidValue,
			"config: ui.listen port must be a number, got %q",
			portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, memerr.Errorf(memerr.CodeConfigValidateInvalidValue,
			"config: ui.listen port must be between 1 and 65535, got %d",
			port,
		))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	validProviders := map[string]bool{"mock": true, "openai": true, "google": true, "ollama": true}
	if !validProviders[c.Embedding.Provider] {
		errs = append(errs, memerr.Errorf(memerr.CodeConfigValidateInvalidValue,
			"config: embedding.provider must be one of [mock, openai, google, ollama], got %q",
			c.Embedding.Provider,
		))
	}

	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, memerr.Errorf(memerr.CodeConfigValidateInvalidValue,
			"config: embedding.dimensions must be greater than 0, got %d",
			c.Embedding.Dimensions,
		))
	}

	switch c.Embedding.Provider {
	case "openai", "google":
		if c.Embedding.Model == "" {
			errs = append(errs, memerr.Errorf(memerr.CodeConfigValidateInvalidValue,
				"config: embedding.model must be set for provider %q", c.Embedding.Provider))
		}
		if c.Embedding.APIKey == "" {
			errs = append(errs, memerr.Errorf(memerr.CodeConfigValidateInvalidValue,
				"config: embedding.api_key must be set for provider %q", c.Embedding.Provider))
		}
	case "ollama":
		if c.Embedding.Model == "" {
			errs = append(errs, memerr.Errorf(memerr.CodeConfigValidateInvalidValue,
				"config: embedding.model must be set for provider \"ollama\""))
		}
	}

	return errs
}

func (c *Config) validateSearch() []error {
	var errs []error

	validEngines := map[string]bool{"scan": true, "vec": true}
	if !validEngines[c.Search.Engine] {
		errs = append(errs, memerr.Errorf(memerr.CodeConfigValidateInvalidValue,
			"config: search.engine must be one of [scan, vec], got %q",
			c.Search.Engine,
		))
	}

	if c.Search.Threshold < -1 || c.Search.Threshold > 1 {
		errs = append(errs, memerr.Errorf(memerr.CodeConfigValidateInvalidValue,
			"config: search.threshold must be between -1 and 1, got %g",
			c.Search.Threshold,
		))
	}

	if c.Duplicate.Threshold < -1 || c.Duplicate.Threshold > 1 {
		errs = append(errs, memerr.Errorf(memerr.CodeConfigValidateInvalidValue,
			"config: duplicate.threshold must be between -1 and 1, got %g",
			c.Duplicate.Threshold,
		))
	}

	return errs
}

func (c *Config) validateLimits() []error {
	var errs []error

	if c.Search.MaxLimit <= 0 {
		errs = append(errs, memerr.Errorf(memerr.CodeConfigValidateInvalidValue,
			"config: search.max_limit must be greater than 0, got %d",
			c.Search.MaxLimit,
		))
	}

	if c.List.MaxLimit <= 0 {
		errs = append(errs, memerr.Errorf(memerr.CodeConfigValidateInvalidValue,
			"config: list.max_limit must be greater than 0, got %d",
			c.List.MaxLimit,
		))
	}

	return errs
}
