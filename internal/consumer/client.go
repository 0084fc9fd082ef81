package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/signal-bridge/internal/connection"
	"github.com/rickgao/signal-bridge/internal/protocol"
)

// Errors
var (
	ErrClosed  = errors.New("consumer connection closed")
	ErrTimeout = errors.New("timed out waiting for response")
)

// Config configures a consumer client.
type Config struct {
	URL            string
	Token          string
	AuthTimeout    time.Duration // Max wait for auth_ok
	RequestTimeout time.Duration // Local wait per Get; the relay times out first by default
	Connection     connection.ClientConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		AuthTimeout:    10 * time.Second,
		RequestTimeout: 15 * time.Second,
		Connection:     connection.DefaultClientConfig(),
	}
}

// Client issues gets over one authenticated relay connection.
type Client struct {
	cfg    Config
	conn   connection.Client
	logger *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]chan protocol.Response

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the relay and authenticates as a consumer.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultConfig()
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = d.AuthTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = d.RequestTimeout
	}
	connCfg := cfg.Connection
	connCfg.URL = cfg.URL

	conn := connection.NewClient(connCfg, logger)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect relay: %w", err)
	}
	if err := connection.Authenticate(ctx, conn, protocol.RoleConsumer, cfg.Token, cfg.AuthTimeout); err != nil {
		conn.Close()
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	c := &Client{
		cfg:     cfg,
		conn:    conn,
		logger:  logger,
		pending: make(map[string]chan protocol.Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	logger.Debug("consumer authenticated", "url", cfg.URL)
	return c, nil
}

// Get queries resource and waits for the matching response. Relay and
// producer failures come back as a response with status error.
func (c *Client) Get(ctx context.Context, resource string, params protocol.Params) (protocol.Response, error) {
	id := uuid.NewString()
	respCh := make(chan protocol.Response, 1)

	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	data, err := protocol.Encode(protocol.Get{
		Type:      protocol.TypeGet,
		RequestID: id,
		Resource:  resource,
		Params:    params,
	})
	if err != nil {
		return protocol.Response{}, fmt.Errorf("encode get: %w", err)
	}
	if err := c.conn.Send(data); err != nil {
		return protocol.Response{}, fmt.Errorf("send get: %w", err)
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return protocol.Response{}, ctx.Err()
	case <-timer.C:
		return protocol.Response{}, ErrTimeout
	case <-c.done:
		return protocol.Response{}, ErrClosed
	case resp := <-respCh:
		return resp, nil
	}
}

// Close closes the relay connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Done is closed when the connection to the relay is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readLoop() {
	defer c.closeOnce.Do(func() { close(c.done) })

	for msg := range c.conn.Messages() {
		resp, err := protocol.Decode[protocol.Response](msg.Data)
		if err != nil || resp.Type != protocol.TypeResponse {
			c.logger.Debug("ignoring unexpected frame", "error", err)
			continue
		}
		c.routeResponse(resp)
	}
}

// routeResponse sends a response to the waiting goroutine.
func (c *Client) routeResponse(resp protocol.Response) {
	c.pendingMu.Lock()
	ch, ok := c.pending[resp.RequestID]
	if ok {
		delete(c.pending, resp.RequestID)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.logger.Debug("response for abandoned request", "request_id", resp.RequestID)
		return
	}
	select {
	case ch <- resp:
	default:
	}
}
