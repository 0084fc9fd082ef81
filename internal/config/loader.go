package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// load reads a YAML config file (if path is set) and expands environment variables.
func load(path string, out any) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// LoadRelay loads relay config, applies defaults and environment overrides.
// It does not validate; callers apply flag overrides first.
func LoadRelay(path string, lookup LookupFunc) (*RelayConfig, error) {
	var cfg RelayConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadProducer loads producer config, applies defaults and environment overrides.
func LoadProducer(path string, lookup LookupFunc) (*ProducerConfig, error) {
	var cfg ProducerConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg.applyEnv(lookup)
	cfg.applyDefaults()
	return &cfg, nil
}
