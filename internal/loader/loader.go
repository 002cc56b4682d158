// Package loader handles the optional readerd.yaml configuration file.
//
// This package is responsible for:
//   - Loading YAML configuration files
//   - Expanding environment variables
//   - Supplying defaults for unset fields
//
// Command-line flags override anything loaded here; that merge happens
// in the daemon entry point.
package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/anchor/vaultaire/config"
)

// Config is the file-level daemon configuration.
type Config struct {
	// Broker is the broker hostname the daemon connects to.
	Broker string `yaml:"broker"`

	// Pool is the object store pool name.
	Pool string `yaml:"pool"`

	// User is the object store user.
	User string `yaml:"user"`

	// Workers is the reader worker count; 0 resolves to the logical
	// CPU count after flag parsing.
	Workers int `yaml:"workers"`

	// Debug mirrors telemetry to stdout and lowers the log level.
	Debug bool `yaml:"debug"`

	// Demo enables the synthetic demo origin.
	Demo bool `yaml:"demo"`
}

// DefaultConfig returns a config with documented defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Pool:    config.DefaultPool,
		User:    config.DefaultUser,
		Workers: config.DefaultWorkers,
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
