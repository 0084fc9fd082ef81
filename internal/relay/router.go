package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/rickgao/signal-bridge/internal/metrics"
	"github.com/rickgao/signal-bridge/internal/model"
	"github.com/rickgao/signal-bridge/internal/protocol"
)

// Conn is an authenticated connection as seen by the router.
type Conn interface {
	// ID returns a stable identifier for the connection's lifetime.
	ID() string

	// Send queues msg for delivery. It must not block on the network and
	// fails once the connection is closed.
	Send(msg any) error

	// Close closes the connection with code and reason. It must not block on
	// the network.
	Close(code int, reason string)
}

// RouterConfig configures request handling.
type RouterConfig struct {
	Timeout       time.Duration // Deadline for a producer response
	SweepInterval time.Duration // How often expired entries are purged
	MaxLimit      int           // Upper bound for params.limit
	GetsPerSecond float64       // Per-consumer rate; 0 disables limiting
	Burst         int
}

// DefaultRouterConfig returns sensible defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Timeout:       10 * time.Second,
		SweepInterval: 250 * time.Millisecond,
		MaxLimit:      protocol.MaxLimit,
	}
}

// Router correlates consumer gets with producer responses.
type Router struct {
	cfg     RouterConfig
	logger  *slog.Logger
	metrics *metrics.Relay
	pending *PendingTable

	now   func() time.Time
	newID func() string

	mu       sync.Mutex
	producer Conn
	limiters map[string]*rate.Limiter
}

// NewRouter creates a router. A nil metrics records nothing.
func NewRouter(cfg RouterConfig, m *metrics.Relay, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultRouterConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = d.SweepInterval
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = d.MaxLimit
	}

	return &Router{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		pending:  NewPendingTable(),
		now:      time.Now,
		newID:    uuid.NewString,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Run sweeps expired entries until ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep resolves every expired entry with a timeout and returns how many
// there were.
func (r *Router) Sweep() int {
	expired := r.pending.TakeExpired(r.now())
	for _, req := range expired {
		r.logger.Debug("request timed out",
			"request_id", req.ID,
			"resource", req.Resource,
			"consumer", req.Consumer.ID(),
		)
		r.resolve(req, protocol.NewErrorResponse(req.ReplyID, protocol.ErrCodeTimeout), metrics.OutcomeTimeout)
	}
	return len(expired)
}

// AttachProducer makes p the active producer. A previously attached
// producer is closed and its pending entries fail with producer_offline.
func (r *Router) AttachProducer(p Conn) {
	r.mu.Lock()
	old := r.producer
	r.producer = p
	r.mu.Unlock()

	r.metrics.SetProducerConnected(true)
	r.logger.Info("producer attached", "conn_id", p.ID())

	if old == nil || old == p {
		return
	}

	r.metrics.ProducerReplaced()
	r.logger.Warn("producer superseded", "old_conn_id", old.ID(), "new_conn_id", p.ID())
	old.Close(protocol.CloseSuperseded, "superseded by new producer")
	r.failProducer(old.ID())
}

// DetachProducer handles a producer disconnect. Entries forwarded to p fail
// immediately with producer_offline.
func (r *Router) DetachProducer(p Conn) {
	r.mu.Lock()
	active := r.producer == p
	if active {
		r.producer = nil
	}
	r.mu.Unlock()

	if active {
		r.metrics.SetProducerConnected(false)
		r.logger.Info("producer detached", "conn_id", p.ID())
	}
	r.failProducer(p.ID())
}

// AttachConsumer registers c for rate limiting.
func (r *Router) AttachConsumer(c Conn) {
	if r.cfg.GetsPerSecond <= 0 {
		return
	}
	burst := r.cfg.Burst
	if burst < 1 {
		burst = 1
	}

	r.mu.Lock()
	r.limiters[c.ID()] = rate.NewLimiter(rate.Limit(r.cfg.GetsPerSecond), burst)
	r.mu.Unlock()
}

// DetachConsumer purges everything owned by c. Responses that arrive later
// for its requests are discarded.
func (r *Router) DetachConsumer(c Conn) {
	r.mu.Lock()
	delete(r.limiters, c.ID())
	r.mu.Unlock()

	dropped := r.pending.TakeByConsumer(c.ID())
	for _, req := range dropped {
		r.metrics.RequestResolved(req.Resource, metrics.OutcomeConsumerGone, r.now().Sub(req.StartedAt))
	}
	if len(dropped) > 0 {
		r.logger.Debug("purged requests of departed consumer", "conn_id", c.ID(), "count", len(dropped))
	}
	r.metrics.SetPending(r.pending.Len())
}

// HandleGet processes a get from consumer c.
func (r *Router) HandleGet(c Conn, get protocol.Get) {
	start := r.now()
	id := r.newID()
	replyID := get.RequestID
	if replyID == "" {
		replyID = id
	}

	reject := func(code, outcome string) {
		r.reply(c, protocol.NewErrorResponse(replyID, code))
		r.metrics.RequestResolved(resourceLabel(get.Resource), outcome, r.now().Sub(start))
	}

	if !r.allow(c) {
		reject(protocol.ErrCodeRateLimited, metrics.OutcomeRateLimited)
		return
	}

	if _, ok := model.Lookup(get.Resource); !ok {
		reject(protocol.ErrCodeUnknownResource, metrics.OutcomeUnknownResource)
		return
	}

	producer := r.activeProducer()
	if producer == nil {
		reject(protocol.ErrCodeProducerOffline, metrics.OutcomeProducerOffline)
		return
	}

	params := get.Params.Clamp(r.cfg.MaxLimit)
	req := &PendingRequest{
		ID:         id,
		ReplyID:    replyID,
		Consumer:   c,
		ProducerID: producer.ID(),
		Resource:   get.Resource,
		Params:     params,
		StartedAt:  start,
		Deadline:   start.Add(r.cfg.Timeout),
	}
	if err := r.pending.Insert(req); err != nil {
		r.logger.Error("failed to record request", "request_id", id, "error", err)
		reject(protocol.ErrCodeSendFailed, metrics.OutcomeSendFailed)
		return
	}
	r.metrics.SetPending(r.pending.Len())

	if err := producer.Send(protocol.NewRequest(id, get.Resource, params)); err != nil {
		r.logger.Warn("failed to forward request",
			"request_id", id,
			"producer", producer.ID(),
			"error", err,
		)
		if taken, ok := r.pending.Take(id); ok {
			r.resolve(taken, protocol.NewErrorResponse(replyID, protocol.ErrCodeSendFailed), metrics.OutcomeSendFailed)
		}
		return
	}

	r.logger.Debug("request forwarded",
		"request_id", id,
		"reply_id", replyID,
		"resource", get.Resource,
		"limit", params.EffectiveLimit(r.cfg.MaxLimit),
	)
}

// HandleResponse processes a response from producer p. Responses with no
// pending entry are discarded.
func (r *Router) HandleResponse(p Conn, resp protocol.Response) {
	req, ok := r.pending.Take(resp.RequestID)
	if !ok {
		r.metrics.ResponseDiscarded()
		r.logger.Debug("discarding unmatched response",
			"request_id", resp.RequestID,
			"producer", p.ID(),
		)
		return
	}

	out := protocol.Response{
		Type:      protocol.TypeResponse,
		RequestID: req.ReplyID,
		Status:    resp.Status,
		Data:      resp.Data,
		Error:     resp.Error,
	}
	outcome := metrics.OutcomeOK
	if !resp.OK() {
		outcome = metrics.OutcomeError
	}
	r.resolve(req, out, outcome)
}

// ProducerConnected reports whether a producer is attached.
func (r *Router) ProducerConnected() bool {
	return r.activeProducer() != nil
}

// Pending returns the number of in-flight requests.
func (r *Router) Pending() int {
	return r.pending.Len()
}

// failProducer resolves every entry forwarded to producerID.
func (r *Router) failProducer(producerID string) {
	orphaned := r.pending.TakeByProducer(producerID)
	for _, req := range orphaned {
		r.resolve(req, protocol.NewErrorResponse(req.ReplyID, protocol.ErrCodeProducerOffline), metrics.OutcomeProducerOffline)
	}
	if len(orphaned) > 0 {
		r.logger.Info("failed requests of lost producer", "conn_id", producerID, "count", len(orphaned))
	}
}

// resolve delivers the final answer for a removed entry.
func (r *Router) resolve(req *PendingRequest, resp protocol.Response, outcome string) {
	r.reply(req.Consumer, resp)
	r.metrics.RequestResolved(req.Resource, outcome, r.now().Sub(req.StartedAt))
	r.metrics.SetPending(r.pending.Len())
}

func (r *Router) reply(c Conn, resp protocol.Response) {
	if err := c.Send(resp); err != nil {
		r.logger.Debug("dropping response for unreachable consumer",
			"conn_id", c.ID(),
			"request_id", resp.RequestID,
			"error", err,
		)
	}
}

// resourceLabel keeps metric cardinality bounded to the catalog.
func resourceLabel(name string) string {
	if _, ok := model.Lookup(name); ok {
		return name
	}
	return "unknown"
}

func (r *Router) activeProducer() Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.producer
}

func (r *Router) allow(c Conn) bool {
	r.mu.Lock()
	limiter := r.limiters[c.ID()]
	r.mu.Unlock()

	return limiter == nil || limiter.Allow()
}
