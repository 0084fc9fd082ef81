package config

import (
	"fmt"
	"strconv"
)

// Environment variable names.
const (
	EnvPort          = "PORT"
	EnvProducerToken = "PRODUCER_TOKEN"
	EnvConsumerToken = "CONSUMER_TOKEN"
	EnvRelayURL      = "RELAY_URL"
	EnvSQLitePath    = "SQLITE_PATH"
	EnvLogLevel      = "LOG_LEVEL"
)

func (c *RelayConfig) applyEnv(lookup LookupFunc) error {
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup(EnvProducerToken); ok && v != "" {
		c.Auth.ProducerToken = v
	}
	if v, ok := lookup(EnvConsumerToken); ok && v != "" {
		c.Auth.ConsumerToken = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *ProducerConfig) applyEnv(lookup LookupFunc) {
	if v, ok := lookup(EnvRelayURL); ok && v != "" {
		c.Relay.URL = v
	}
	if v, ok := lookup(EnvProducerToken); ok && v != "" {
		c.Relay.Token = v
	}
	if v, ok := lookup(EnvSQLitePath); ok && v != "" {
		c.Store.Path = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}
