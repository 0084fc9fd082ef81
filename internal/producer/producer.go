package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/signal-bridge/internal/connection"
	"github.com/rickgao/signal-bridge/internal/model"
	"github.com/rickgao/signal-bridge/internal/protocol"
	"github.com/rickgao/signal-bridge/internal/store"
)

// ErrSessionClosed is returned when the relay drops the connection.
var ErrSessionClosed = errors.New("relay closed the session")

// Config configures the producer.
type Config struct {
	URL         string
	Token       string
	Workers     int           // Concurrent store queries
	AuthTimeout time.Duration // Max wait for auth_ok
	MaxLimit    int           // Upper bound for params.limit
	BaseDelay   time.Duration // First reconnect wait
	MaxDelay    time.Duration // Reconnect wait cap
	Connection  connection.ClientConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		AuthTimeout: 10 * time.Second,
		MaxLimit:    protocol.MaxLimit,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Connection:  connection.DefaultClientConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers < 1 {
		c.Workers = d.Workers
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = d.AuthTimeout
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = d.MaxLimit
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	c.Connection.URL = c.URL
	return c
}

// Producer answers relay requests from a store.
type Producer struct {
	cfg    Config
	store  store.Store
	logger *slog.Logger

	connected atomic.Bool
	sessions  atomic.Int64
	handled   atomic.Int64
}

// New creates a producer.
func New(cfg Config, st store.Store, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		cfg:    cfg.withDefaults(),
		store:  st,
		logger: logger,
	}
}

// Run keeps a relay session alive until ctx is cancelled.
func (p *Producer) Run(ctx context.Context) error {
	wait := p.cfg.BaseDelay

	for {
		authenticated, err := p.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if authenticated {
			wait = p.cfg.BaseDelay
		}

		p.logger.Warn("relay session ended",
			"error", err,
			"retry_in", wait,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		if !authenticated {
			wait *= 2
			if wait > p.cfg.MaxDelay {
				wait = p.cfg.MaxDelay
			}
		}
	}
}

// Connected reports whether a session is authenticated.
func (p *Producer) Connected() bool {
	return p.connected.Load()
}

// Handled returns how many requests have been answered.
func (p *Producer) Handled() int64 {
	return p.handled.Load()
}

// session runs one connection. It reports whether auth succeeded.
func (p *Producer) session(ctx context.Context) (bool, error) {
	id := p.sessions.Add(1)
	logger := p.logger.With("session", id)

	client := connection.NewClient(p.cfg.Connection, logger)
	if err := client.Connect(ctx); err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	if err := connection.Authenticate(ctx, client, protocol.RoleProducer, p.cfg.Token, p.cfg.AuthTimeout); err != nil {
		return false, err
	}

	p.connected.Store(true)
	defer p.connected.Store(false)
	logger.Info("producer authenticated", "url", p.cfg.URL, "workers", p.cfg.Workers)

	queue := newRequestQueue(64)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer func() {
			if n := queue.Close(); n > 0 {
				logger.Info("abandoning queued requests", "count", n)
			}
		}()
		return p.readLoop(gctx, client, queue, logger)
	})

	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			return p.worker(gctx, client, queue)
		})
	}

	err := g.Wait()
	pushed, resizes := queue.Stats()
	logger.Debug("session stats", "requests", pushed, "queue_resizes", resizes)
	return true, err
}

// readLoop decodes request frames into the queue.
func (p *Producer) readLoop(ctx context.Context, client connection.Client, queue *requestQueue, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-client.Errors():
			return fmt.Errorf("connection: %w", err)

		case msg, ok := <-client.Messages():
			if !ok {
				return ErrSessionClosed
			}

			msgType, err := protocol.PeekType(msg.Data)
			if err != nil || msgType != protocol.TypeRequest {
				logger.Debug("ignoring frame", "type", msgType, "error", err)
				continue
			}

			req, err := protocol.Decode[protocol.Request](msg.Data)
			if err != nil {
				logger.Warn("undecodable request", "error", err)
				continue
			}
			queue.Push(req)
		}
	}
}

// worker answers queued requests until the queue closes.
func (p *Producer) worker(ctx context.Context, client connection.Client, queue *requestQueue) error {
	for {
		req, ok := queue.Pop()
		if !ok {
			return nil
		}

		data, err := protocol.Encode(p.Handle(ctx, req))
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		if err := client.Send(data); err != nil {
			return fmt.Errorf("send response: %w", err)
		}
		p.handled.Add(1)
	}
}

// Handle executes one request against the store.
func (p *Producer) Handle(ctx context.Context, req protocol.Request) protocol.Response {
	limit := req.Params.EffectiveLimit(p.cfg.MaxLimit)
	start := time.Now()

	rows, err := p.store.Query(ctx, req.Resource, limit)
	if err != nil {
		code := err.Error()
		if errors.Is(err, store.ErrUnknownResource) {
			code = protocol.ErrCodeUnknownResource
		}
		p.logger.Warn("query failed",
			"request_id", req.RequestID,
			"resource", req.Resource,
			"error", err,
		)
		return protocol.NewErrorResponse(req.RequestID, code)
	}
	if rows == nil {
		rows = []model.Row{}
	}

	data, err := json.Marshal(rows)
	if err != nil {
		p.logger.Error("failed to encode rows", "request_id", req.RequestID, "error", err)
		return protocol.NewErrorResponse(req.RequestID, fmt.Sprintf("encode rows: %v", err))
	}

	p.logger.Debug("request served",
		"request_id", req.RequestID,
		"resource", req.Resource,
		"limit", limit,
		"rows", len(rows),
		"duration", time.Since(start),
	)
	return protocol.NewDataResponse(req.RequestID, data)
}
