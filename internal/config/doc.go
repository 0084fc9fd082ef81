// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A file is optional: well-known environment variables (PORT, PRODUCER_TOKEN,
// CONSUMER_TOKEN, RELAY_URL, SQLITE_PATH) override file values, and command-line
// flags in cmd/ override both.
package config
