package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort               = 8080
	DefaultAuthTimeout        = 10 * time.Second
	DefaultRequestTimeout     = 10 * time.Second
	DefaultSweepInterval      = 250 * time.Millisecond
	DefaultMaxLimit           = 500
	DefaultGetsPerSecond      = 20
	DefaultBurst              = 40
	DefaultPingInterval       = 20 * time.Second
	DefaultPongTimeout        = 20 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultMaxMessageBytes    = 1 << 20
	DefaultSendQueue          = 256
	DefaultMetricsPath        = "/metrics"
	DefaultLogLevel           = "info"
	DefaultRelayURL           = "ws://localhost:8080/ws"
	DefaultSQLitePath         = "live_signals.db"
	DefaultBusyTimeout        = 2 * time.Second
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 4
	DefaultMinConns           = 1
	DefaultWorkers            = 4
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
)

func (c *RelayConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = DefaultAuthTimeout
	}

	// Requests defaults
	if c.Requests.Timeout == 0 {
		c.Requests.Timeout = DefaultRequestTimeout
	}
	if c.Requests.SweepInterval == 0 {
		c.Requests.SweepInterval = DefaultSweepInterval
	}
	if c.Requests.MaxLimit == 0 {
		c.Requests.MaxLimit = DefaultMaxLimit
	}

	// Rate limiting: only fill in when the whole block is unset, so
	// gets_per_second: 0 with a burst stays disabled.
	if c.Limits.GetsPerSecond == 0 && c.Limits.Burst == 0 {
		c.Limits.GetsPerSecond = DefaultGetsPerSecond
		c.Limits.Burst = DefaultBurst
	}

	// WebSocket defaults
	if c.WebSocket.PingInterval == 0 {
		c.WebSocket.PingInterval = DefaultPingInterval
	}
	if c.WebSocket.PongTimeout == 0 {
		c.WebSocket.PongTimeout = DefaultPongTimeout
	}
	if c.WebSocket.WriteTimeout == 0 {
		c.WebSocket.WriteTimeout = DefaultWriteTimeout
	}
	if c.WebSocket.MaxMessageBytes == 0 {
		c.WebSocket.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.WebSocket.SendQueue == 0 {
		c.WebSocket.SendQueue = DefaultSendQueue
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func (c *ProducerConfig) applyDefaults() {
	if c.Relay.URL == "" {
		c.Relay.URL = DefaultRelayURL
	}
	if c.Relay.PingInterval == 0 {
		c.Relay.PingInterval = DefaultPingInterval
	}
	if c.Relay.PingTimeout == 0 {
		c.Relay.PingTimeout = 3 * DefaultPingInterval
	}
	if c.Relay.WriteTimeout == 0 {
		c.Relay.WriteTimeout = DefaultWriteTimeout
	}

	// Store defaults
	if c.Store.Driver == "" {
		c.Store.Driver = DriverSQLite
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultSQLitePath
	}
	if c.Store.BusyTimeout == 0 {
		c.Store.BusyTimeout = DefaultBusyTimeout
	}
	applyDBDefaults(&c.Store.Postgres)

	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.AuthTimeout == 0 {
		c.AuthTimeout = DefaultAuthTimeout
	}
	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultReconnectBaseDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
