package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *RelayConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Auth.ProducerToken == "" {
		return errors.New("auth.producer_token is required")
	}
	if c.Auth.ConsumerToken == "" {
		return errors.New("auth.consumer_token is required")
	}
	if c.Auth.Timeout <= 0 {
		return errors.New("auth.timeout must be > 0")
	}

	if c.Requests.Timeout <= 0 {
		return errors.New("requests.timeout must be > 0")
	}
	if c.Requests.SweepInterval <= 0 {
		return errors.New("requests.sweep_interval must be > 0")
	}
	if c.Requests.SweepInterval > c.Requests.Timeout {
		return fmt.Errorf("requests.sweep_interval (%s) cannot exceed requests.timeout (%s)",
			c.Requests.SweepInterval, c.Requests.Timeout)
	}
	if c.Requests.MaxLimit < 1 {
		return errors.New("requests.max_limit must be >= 1")
	}

	if c.Limits.GetsPerSecond < 0 {
		return errors.New("limits.gets_per_second must be >= 0")
	}
	if c.Limits.GetsPerSecond > 0 && c.Limits.Burst < 1 {
		return errors.New("limits.burst must be >= 1 when rate limiting is enabled")
	}

	if c.WebSocket.PingInterval <= 0 {
		return errors.New("websocket.ping_interval must be > 0")
	}
	if c.WebSocket.PongTimeout <= 0 {
		return errors.New("websocket.pong_timeout must be > 0")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return errors.New("websocket.write_timeout must be > 0")
	}
	if c.WebSocket.MaxMessageBytes < 1 {
		return errors.New("websocket.max_message_bytes must be >= 1")
	}
	if c.WebSocket.SendQueue < 1 {
		return errors.New("websocket.send_queue must be >= 1")
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	return validateLevel(c.Log.Level)
}

// Validate checks that all required fields are set and values are valid.
func (c *ProducerConfig) Validate() error {
	u, err := url.Parse(c.Relay.URL)
	if err != nil {
		return fmt.Errorf("relay.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("relay.url must use ws:// or wss://, got %q", c.Relay.URL)
	}
	if c.Relay.Token == "" {
		return errors.New("relay.token is required")
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return errors.New("store.path is required")
		}
	case DriverPostgres:
		if err := c.Store.Postgres.validate("store.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Store.Driver)
	}
	if c.Store.BusyTimeout < 0 {
		return errors.New("store.busy_timeout must be >= 0")
	}

	if c.Workers < 1 {
		return errors.New("workers must be >= 1")
	}
	if c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay (%s) cannot be less than reconnect.base_delay (%s)",
			c.Reconnect.MaxDelay, c.Reconnect.BaseDelay)
	}

	return validateLevel(c.Log.Level)
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func validateLevel(level string) error {
	if _, err := ParseLevel(level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// ParseLevel maps a level name onto slog.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, err
	}
	return l, nil
}
