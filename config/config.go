// Package config provides configuration loading for the OSW client
// and its CLI: YAML files with layered precedence plus environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete client configuration.
type Config struct {
	Wiki  WikiConfig  `yaml:"wiki"`
	Store StoreConfig `yaml:"store"`
	Query QueryConfig `yaml:"query"`
}

// WikiConfig configures the connection to an OSW instance.
type WikiConfig struct {
	// Domain is the instance host, e.g. "wiki-dev.open-semantic-lab.org".
	Domain string `yaml:"domain"`

	// CredFilepath points at the YAML credentials file.
	CredFilepath string `yaml:"cred_filepath"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig configures the slot store.
type StoreConfig struct {
	// MaxWorkers bounds parallel batch operations.
	MaxWorkers int `yaml:"max_workers"`

	// Cache enables the in-memory page cache.
	Cache bool `yaml:"cache"`
}

// QueryConfig configures semantic queries.
type QueryConfig struct {
	// Limit is the default result limit for instance queries.
	Limit int `yaml:"limit"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Wiki: WikiConfig{
			Timeout: 30 * time.Second,
		},
		Store: StoreConfig{
			MaxWorkers: 8,
		},
		Query: QueryConfig{
			Limit: 1000,
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Wiki.Domain == "" {
		return fmt.Errorf("wiki.domain is required")
	}
	if c.Store.MaxWorkers <= 0 {
		return fmt.Errorf("store.max_workers must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	return config, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file %q: %w", path, err)
	}
	return nil
}

// Merge merges another config into this one; non-zero values of other
// take precedence.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Wiki.Domain != "" {
		c.Wiki.Domain = other.Wiki.Domain
	}
	if other.Wiki.CredFilepath != "" {
		c.Wiki.CredFilepath = other.Wiki.CredFilepath
	}
	if other.Wiki.Timeout != 0 {
		c.Wiki.Timeout = other.Wiki.Timeout
	}
	if other.Store.MaxWorkers != 0 {
		c.Store.MaxWorkers = other.Store.MaxWorkers
	}
	if other.Store.Cache {
		c.Store.Cache = true
	}
	if other.Query.Limit != 0 {
		c.Query.Limit = other.Query.Limit
	}
}
