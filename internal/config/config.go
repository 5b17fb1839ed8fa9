// Package config loads coordinator configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"strategy-lifecycle-lab/internal/docstore"
)

// ErrConfiguration marks fatal configuration problems. Startup must not
// continue past one; missing credentials surface here, not on first use.
var ErrConfiguration = fmt.Errorf("configuration error")

// Config is the full coordinator configuration.
type Config struct {
	Store       StoreConfig     `yaml:"store"`
	Collections CollectionNames `yaml:"collections"`
	Listen      string          `yaml:"listen"`
	MetricsNS   string          `yaml:"metrics_namespace"`
}

// StoreConfig selects and parameterizes the document store backend.
type StoreConfig struct {
	// Backend is one of "firestore", "postgres", "memory".
	Backend string `yaml:"backend"`

	// Firestore settings.
	ProjectID       string `yaml:"project_id"`
	CredentialsPath string `yaml:"credentials_path"`

	// Postgres settings.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// CollectionNames optionally overrides the default collection layout.
// Empty entries keep the defaults.
type CollectionNames struct {
	Strategies   string `yaml:"strategies"`
	Backtests    string `yaml:"backtest_results"`
	TrainingLogs string `yaml:"rl_training_logs"`
	Deployments  string `yaml:"deployment_status"`
	Performance  string `yaml:"performance_metrics"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config file: %v", ErrConfiguration, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config file: %v", ErrConfiguration, err)
	}

	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "firestore":
		if c.Store.ProjectID == "" {
			return fmt.Errorf("%w: store.project_id is required for the firestore backend", ErrConfiguration)
		}
		if c.Store.CredentialsPath == "" {
			return fmt.Errorf("%w: store.credentials_path is required for the firestore backend", ErrConfiguration)
		}
		if _, err := os.Stat(c.Store.CredentialsPath); err != nil {
			return fmt.Errorf("%w: store.credentials_path: %v", ErrConfiguration, err)
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("%w: store.postgres_dsn is required for the postgres backend", ErrConfiguration)
		}
	case "memory":
		// Nothing to validate; ephemeral backend for tests and dry runs.
	case "":
		return fmt.Errorf("%w: store.backend is required", ErrConfiguration)
	default:
		return fmt.Errorf("%w: unknown store.backend %q", ErrConfiguration, c.Store.Backend)
	}
	return nil
}

// ResolveCollections merges configured overrides over the defaults.
func (c *Config) ResolveCollections() docstore.Collections {
	out := docstore.DefaultCollections()
	if c.Collections.Strategies != "" {
		out.Strategies = c.Collections.Strategies
	}
	if c.Collections.Backtests != "" {
		out.Backtests = c.Collections.Backtests
	}
	if c.Collections.TrainingLogs != "" {
		out.TrainingLogs = c.Collections.TrainingLogs
	}
	if c.Collections.Deployments != "" {
		out.Deployments = c.Collections.Deployments
	}
	if c.Collections.Performance != "" {
		out.Performance = c.Collections.Performance
	}
	return out
}
