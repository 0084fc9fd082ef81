package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "signal_bridge"

// Outcome labels for resolved requests.
const (
	OutcomeOK              = "ok"
	OutcomeError           = "error"
	OutcomeTimeout         = "timeout"
	OutcomeProducerOffline = "producer_offline"
	OutcomeSendFailed      = "send_failed"
	OutcomeUnknownResource = "unknown_resource"
	OutcomeRateLimited     = "rate_limited"
	OutcomeConsumerGone    = "consumer_gone"
)

// Relay holds Prometheus collectors for the relay router.
type Relay struct {
	connections       *prometheus.GaugeVec   // By role
	producerConnected prometheus.Gauge       // 1 while a producer holds the slot
	pending           prometheus.Gauge       // Pending-request table size
	requests          *prometheus.CounterVec // By resource and outcome
	requestDuration   *prometheus.HistogramVec
	authFailures      prometheus.Counter
	protocolErrors    *prometheus.CounterVec // By role
	discarded         prometheus.Counter     // Responses with no pending entry
	producerSwaps     prometheus.Counter
}

// NewRelay creates relay metrics and registers them with reg.
func NewRelay(reg prometheus.Registerer) (*Relay, error) {
	m := &Relay{
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Authenticated connections by role",
		}, []string{"role"}),

		producerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "producer_connected",
			Help:      "1 when a producer is attached, 0 otherwise",
		}),

		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "pending_requests",
			Help:      "Requests awaiting a producer response",
		}),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "Consumer requests by resource and outcome",
		}, []string{"resource", "outcome"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "request_duration_seconds",
			Help:      "Time from get to resolution",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"resource"}),

		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "auth_failures_total",
			Help:      "Connections rejected during the auth handshake",
		}),

		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "protocol_errors_total",
			Help:      "Authenticated connections closed for protocol violations",
		}, []string{"role"}),

		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "discarded_responses_total",
			Help:      "Producer responses with unknown, expired or already-resolved ids",
		}),

		producerSwaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "producer_replacements_total",
			Help:      "Times a new producer superseded an attached one",
		}),
	}

	collectors := []prometheus.Collector{
		m.connections, m.producerConnected, m.pending, m.requests,
		m.requestDuration, m.authFailures, m.protocolErrors, m.discarded, m.producerSwaps,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ConnectionOpened records an authenticated connection.
func (m *Relay) ConnectionOpened(role string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(role).Inc()
}

// ConnectionClosed records an authenticated connection going away.
func (m *Relay) ConnectionClosed(role string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(role).Dec()
}

// SetProducerConnected records whether the producer slot is filled.
func (m *Relay) SetProducerConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.producerConnected.Set(1)
	} else {
		m.producerConnected.Set(0)
	}
}

// ProducerReplaced records a producer superseding another.
func (m *Relay) ProducerReplaced() {
	if m == nil {
		return
	}
	m.producerSwaps.Inc()
}

// SetPending records the pending-request table size.
func (m *Relay) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// RequestResolved records how a request ended and how long it took.
func (m *Relay) RequestResolved(resource, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(resource, outcome).Inc()
	m.requestDuration.WithLabelValues(resource).Observe(elapsed.Seconds())
}

// AuthFailed records a rejected handshake.
func (m *Relay) AuthFailed() {
	if m == nil {
		return
	}
	m.authFailures.Inc()
}

// ProtocolError records a protocol violation by an authenticated peer.
func (m *Relay) ProtocolError(role string) {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(role).Inc()
}

// ResponseDiscarded records a response that matched no pending entry.
func (m *Relay) ResponseDiscarded() {
	if m == nil {
		return
	}
	m.discarded.Inc()
}
