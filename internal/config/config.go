package config

import "time"

// RelayConfig is the root configuration for the public relay.
type RelayConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Requests  RequestsConfig  `yaml:"requests"`
	Limits    LimitsConfig    `yaml:"limits"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AuthConfig holds the per-role shared secrets.
type AuthConfig struct {
	ProducerToken string        `yaml:"producer_token"`
	ConsumerToken string        `yaml:"consumer_token"`
	Timeout       time.Duration `yaml:"timeout"` // Max wait for the auth message
}

// RequestsConfig holds pending-request settings.
type RequestsConfig struct {
	Timeout       time.Duration `yaml:"timeout"`        // Deadline for a producer answer
	SweepInterval time.Duration `yaml:"sweep_interval"` // How often expired entries are purged
	MaxLimit      int           `yaml:"max_limit"`      // Upper bound for params.limit
}

// LimitsConfig holds per-consumer rate limiting.
type LimitsConfig struct {
	GetsPerSecond float64 `yaml:"gets_per_second"` // 0 disables limiting
	Burst         int     `yaml:"burst"`
}

// WebSocketConfig holds transport-level settings shared by all peers.
type WebSocketConfig struct {
	PingInterval    time.Duration `yaml:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	SendQueue       int           `yaml:"send_queue"` // Outbound frames buffered per peer
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// On reports whether metrics are enabled (default true).
func (m MetricsConfig) On() bool {
	return m.Enabled == nil || *m.Enabled
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ProducerConfig is the root configuration for the firewalled producer.
type ProducerConfig struct {
	Relay       RelayClientConfig `yaml:"relay"`
	Store       StoreConfig       `yaml:"store"`
	Workers     int               `yaml:"workers"`
	AuthTimeout time.Duration     `yaml:"auth_timeout"`
	Reconnect   ReconnectConfig   `yaml:"reconnect"`
	Log         LogConfig         `yaml:"log"`
}

// RelayClientConfig tells a client where the relay lives.
type RelayClientConfig struct {
	URL          string        `yaml:"url"`
	Token        string        `yaml:"token"`
	PingInterval time.Duration `yaml:"ping_interval"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StoreConfig selects and configures the local read-only data store.
type StoreConfig struct {
	Driver      string        `yaml:"driver"` // "sqlite" or "postgres"
	Path        string        `yaml:"path"`   // SQLite database file
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	Postgres    DBConfig      `yaml:"postgres"`
}

// DBConfig holds a single PostgreSQL/TimescaleDB connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ReconnectConfig holds backoff settings.
type ReconnectConfig struct {
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)
