package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadRelay(t *testing.T) {
	yaml := `
server:
  port: 9000
auth:
  producer_token: p-secret
  consumer_token: c-secret
requests:
  timeout: 5s
metrics:
  enabled: false
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadRelay(path, envMap(nil))
	if err != nil {
		t.Fatalf("LoadRelay failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Auth.ProducerToken != "p-secret" {
		t.Errorf("Auth.ProducerToken = %q, want %q", cfg.Auth.ProducerToken, "p-secret")
	}
	if cfg.Requests.Timeout != 5*time.Second {
		t.Errorf("Requests.Timeout = %v, want 5s", cfg.Requests.Timeout)
	}
	if cfg.Metrics.On() {
		t.Error("Metrics.On() = true, want false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestLoadRelayDefaults(t *testing.T) {
	cfg, err := LoadRelay("", envMap(map[string]string{
		EnvProducerToken: "p",
		EnvConsumerToken: "c",
	}))
	if err != nil {
		t.Fatalf("LoadRelay failed: %v", err)
	}

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want default %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Requests.Timeout != DefaultRequestTimeout {
		t.Errorf("Requests.Timeout = %v, want default %v", cfg.Requests.Timeout, DefaultRequestTimeout)
	}
	if cfg.Requests.MaxLimit != DefaultMaxLimit {
		t.Errorf("Requests.MaxLimit = %d, want default %d", cfg.Requests.MaxLimit, DefaultMaxLimit)
	}
	if cfg.Limits.GetsPerSecond != DefaultGetsPerSecond || cfg.Limits.Burst != DefaultBurst {
		t.Errorf("Limits = %+v, want defaults", cfg.Limits)
	}
	if !cfg.Metrics.On() {
		t.Error("Metrics.On() = false, want default true")
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
	if cfg.WebSocket.SendQueue != DefaultSendQueue {
		t.Errorf("WebSocket.SendQueue = %d, want %d", cfg.WebSocket.SendQueue, DefaultSendQueue)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestLoadRelayEnvOverridesFile(t *testing.T) {
	yaml := `
server:
  port: 9000
auth:
  producer_token: from-file
  consumer_token: from-file
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadRelay(path, envMap(map[string]string{
		EnvPort:          "7070",
		EnvProducerToken: "from-env",
	}))
	if err != nil {
		t.Fatalf("LoadRelay failed: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Auth.ProducerToken != "from-env" {
		t.Errorf("Auth.ProducerToken = %q, want from-env", cfg.Auth.ProducerToken)
	}
	if cfg.Auth.ConsumerToken != "from-file" {
		t.Errorf("Auth.ConsumerToken = %q, want from-file", cfg.Auth.ConsumerToken)
	}
}

func TestLoadRelayBadPort(t *testing.T) {
	_, err := LoadRelay("", envMap(map[string]string{EnvPort: "eighty"}))
	if err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_BRIDGE_DB_PASSWORD", "secret123")

	yaml := `
relay:
  url: wss://relay.example.com/ws
  token: tok
store:
  driver: postgres
  postgres:
    host: localhost
    name: signals
    user: reader
    password: ${TEST_BRIDGE_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadProducer(path, envMap(nil))
	if err != nil {
		t.Fatalf("LoadProducer failed: %v", err)
	}

	if cfg.Store.Postgres.Password != "secret123" {
		t.Errorf("Store.Postgres.Password = %q, want %q", cfg.Store.Postgres.Password, "secret123")
	}
	if cfg.Store.Postgres.Port != DefaultDBPort {
		t.Errorf("Store.Postgres.Port = %d, want default %d", cfg.Store.Postgres.Port, DefaultDBPort)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestLoadProducerDefaultsAndEnv(t *testing.T) {
	cfg, err := LoadProducer("", envMap(map[string]string{
		EnvRelayURL:      "wss://relay.example.com/ws",
		EnvProducerToken: "tok",
		EnvSQLitePath:    "/var/lib/signals.db",
	}))
	if err != nil {
		t.Fatalf("LoadProducer failed: %v", err)
	}

	if cfg.Relay.URL != "wss://relay.example.com/ws" {
		t.Errorf("Relay.URL = %q", cfg.Relay.URL)
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, DriverSQLite)
	}
	if cfg.Store.Path != "/var/lib/signals.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Store.BusyTimeout != DefaultBusyTimeout {
		t.Errorf("Store.BusyTimeout = %v, want %v", cfg.Store.BusyTimeout, DefaultBusyTimeout)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, DefaultWorkers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestRelayValidate(t *testing.T) {
	valid := func() RelayConfig {
		cfg := RelayConfig{Auth: AuthConfig{ProducerToken: "p", ConsumerToken: "c"}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*RelayConfig)
		wantErr string
	}{
		{name: "valid config", mutate: func(*RelayConfig) {}},
		{
			name:    "missing producer token",
			mutate:  func(c *RelayConfig) { c.Auth.ProducerToken = "" },
			wantErr: "auth.producer_token is required",
		},
		{
			name:    "missing consumer token",
			mutate:  func(c *RelayConfig) { c.Auth.ConsumerToken = "" },
			wantErr: "auth.consumer_token is required",
		},
		{
			name:    "port out of range",
			mutate:  func(c *RelayConfig) { c.Server.Port = 70000 },
			wantErr: "server.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "sweep slower than timeout",
			mutate:  func(c *RelayConfig) { c.Requests.SweepInterval = 20 * time.Second },
			wantErr: "requests.sweep_interval (20s) cannot exceed requests.timeout (10s)",
		},
		{
			name:    "burst missing",
			mutate:  func(c *RelayConfig) { c.Limits.Burst = 0 },
			wantErr: "limits.burst must be >= 1 when rate limiting is enabled",
		},
		{
			name:    "no send queue",
			mutate:  func(c *RelayConfig) { c.WebSocket.SendQueue = -1 },
			wantErr: "websocket.send_queue must be >= 1",
		},
		{
			name:    "bad metrics path",
			mutate:  func(c *RelayConfig) { c.Metrics.Path = "metrics" },
			wantErr: `metrics.path must start with /, got "metrics"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error %q, got nil", tt.wantErr)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestProducerValidate(t *testing.T) {
	valid := func() ProducerConfig {
		cfg := ProducerConfig{Relay: RelayClientConfig{Token: "tok"}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*ProducerConfig)
		wantErr string
	}{
		{name: "valid config", mutate: func(*ProducerConfig) {}},
		{
			name:    "http url",
			mutate:  func(c *ProducerConfig) { c.Relay.URL = "http://relay" },
			wantErr: `relay.url must use ws:// or wss://, got "http://relay"`,
		},
		{
			name:    "missing token",
			mutate:  func(c *ProducerConfig) { c.Relay.Token = "" },
			wantErr: "relay.token is required",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *ProducerConfig) { c.Store.Driver = "mysql" },
			wantErr: `store.driver must be "sqlite" or "postgres", got "mysql"`,
		},
		{
			name:    "postgres missing host",
			mutate:  func(c *ProducerConfig) { c.Store.Driver = DriverPostgres },
			wantErr: "store.postgres.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *ProducerConfig) {
				c.Store.Driver = DriverPostgres
				c.Store.Postgres = DBConfig{Host: "h", Name: "n", User: "u", MaxConns: 2, MinConns: 5}
			},
			wantErr: "store.postgres.min_conns (5) cannot exceed max_conns (2)",
		},
		{
			name:    "backoff inverted",
			mutate:  func(c *ProducerConfig) { c.Reconnect.MaxDelay = 100 * time.Millisecond },
			wantErr: "reconnect.max_delay (100ms) cannot be less than reconnect.base_delay (1s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error %q, got nil", tt.wantErr)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"debug", "INFO", "warn", "error"} {
		if _, err := ParseLevel(name); err != nil {
			t.Errorf("ParseLevel(%q) unexpected error: %v", name, err)
		}
	}

	cfg := ProducerConfig{Relay: RelayClientConfig{Token: "tok"}, Log: LogConfig{Level: "loud"}}
	cfg.applyDefaults()
	err := cfg.Validate()
	if err == nil || !strings.HasPrefix(err.Error(), "log.level:") {
		t.Errorf("Validate() error = %v, want log.level error", err)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
