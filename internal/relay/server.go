package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/signal-bridge/internal/config"
	"github.com/rickgao/signal-bridge/internal/metrics"
	"github.com/rickgao/signal-bridge/internal/protocol"
	"github.com/rickgao/signal-bridge/internal/version"
)

// Server accepts websocket connections and exposes health and metrics.
type Server struct {
	cfg      *config.RelayConfig
	logger   *slog.Logger
	gate     *Gate
	router   *Router
	metrics  *metrics.Relay
	registry *prometheus.Registry
	upgrader websocket.Upgrader
	peerCfg  PeerConfig

	mu    sync.Mutex
	peers map[*Peer]struct{}
}

// NewServer creates a relay server from validated configuration.
func NewServer(cfg *config.RelayConfig, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	var m *metrics.Relay
	if cfg.Metrics.On() {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		var err error
		m, err = metrics.NewRelay(registry)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	router := NewRouter(RouterConfig{
		Timeout:       cfg.Requests.Timeout,
		SweepInterval: cfg.Requests.SweepInterval,
		MaxLimit:      cfg.Requests.MaxLimit,
		GetsPerSecond: cfg.Limits.GetsPerSecond,
		Burst:         cfg.Limits.Burst,
	}, m, logger)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		gate:     NewGate(cfg.Auth.ProducerToken, cfg.Auth.ConsumerToken),
		router:   router,
		metrics:  m,
		registry: registry,
		upgrader: websocket.Upgrader{
			// Clients are server processes, not browsers
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		peerCfg: PeerConfig{
			PingInterval:    cfg.WebSocket.PingInterval,
			PongTimeout:     cfg.WebSocket.PongTimeout,
			WriteTimeout:    cfg.WebSocket.WriteTimeout,
			MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
			SendQueue:       cfg.WebSocket.SendQueue,
		},
		peers: make(map[*Peer]struct{}),
	}, nil
}

// Router returns the server's router.
func (s *Server) Router() *Router {
	return s.router
}

// Handler returns the HTTP handler serving /ws, /health and metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/health", s.serveHealth)
	if s.cfg.Metrics.On() {
		mux.Handle(s.cfg.Metrics.Path, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// Run serves until ctx is cancelled, then closes every peer.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("relay listening", "addr", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.router.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		s.closePeers()
		return err
	})

	return g.Wait()
}

type healthResponse struct {
	Status            string `json:"status"`
	ProducerConnected bool   `json:"producer_connected"`
	Pending           int    `json:"pending"`
	version.Info
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(healthResponse{
		Status:            "ok",
		ProducerConnected: s.router.ProducerConnected(),
		Pending:           s.router.Pending(),
		Info:              version.Get(),
	})
	if err != nil {
		s.logger.Debug("failed to write health response", "remote", r.RemoteAddr, "error", err)
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	peer := newPeer(conn, s.peerCfg, s.logger)
	s.track(peer)
	defer s.untrack(peer)

	s.handlePeer(peer)
}

// handlePeer runs one connection from auth to close.
func (s *Server) handlePeer(p *Peer) {
	role, ok := s.authenticate(p)
	if !ok {
		return
	}

	p.startHeartbeat()
	s.metrics.ConnectionOpened(string(role))
	defer s.metrics.ConnectionClosed(string(role))

	switch role {
	case protocol.RoleProducer:
		s.router.AttachProducer(p)
		defer s.router.DetachProducer(p)
	case protocol.RoleConsumer:
		s.router.AttachConsumer(p)
		defer s.router.DetachConsumer(p)
	}
	defer p.Close(websocket.CloseNormalClosure, "")

	p.log().Info("peer authenticated")

	for {
		data, err := p.read()
		if err != nil {
			if !p.Closed() {
				p.log().Info("peer disconnected", "error", err)
			}
			return
		}

		if err := s.dispatch(p, role, data); err != nil {
			p.log().Warn("protocol violation", "error", err)
			s.metrics.ProtocolError(string(role))
			p.Close(protocol.CloseProtocolError, "protocol error")
			return
		}
	}
}

// authenticate reads the first frame and checks it against the gate.
func (s *Server) authenticate(p *Peer) (protocol.Role, bool) {
	p.conn.SetReadDeadline(time.Now().Add(s.cfg.Auth.Timeout))

	reject := func(msg string, args ...any) (protocol.Role, bool) {
		p.log().Warn(msg, args...)
		s.metrics.AuthFailed()
		p.Close(protocol.CloseAuthFailed, "auth failed")
		return "", false
	}

	data, err := p.read()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return reject("auth timeout")
		}
		p.log().Debug("connection closed before auth", "error", err)
		p.Close(protocol.CloseAuthFailed, "auth failed")
		return "", false
	}

	auth, err := protocol.DecodeAuth(data)
	if err != nil {
		return reject("invalid auth message", "error", err)
	}
	if !s.gate.Check(auth) {
		return reject("auth rejected", "role", auth.Role)
	}

	p.setRole(auth.Role)
	if err := p.Send(protocol.NewAuthOK(auth.Role)); err != nil {
		p.log().Warn("failed to send auth_ok", "error", err)
		p.Close(websocket.CloseInternalServerErr, "")
		return "", false
	}
	return auth.Role, true
}

// dispatch routes one authenticated frame. A returned error closes the
// connection.
func (s *Server) dispatch(p *Peer, role protocol.Role, data []byte) error {
	msgType, err := protocol.PeekType(data)
	if err != nil {
		return err
	}

	switch {
	case role == protocol.RoleConsumer && msgType == protocol.TypeGet:
		get, err := protocol.Decode[protocol.Get](data)
		if err != nil {
			return err
		}
		s.router.HandleGet(p, get)
		return nil

	case role == protocol.RoleProducer && msgType == protocol.TypeResponse:
		resp, err := protocol.Decode[protocol.Response](data)
		if err != nil {
			return err
		}
		s.router.HandleResponse(p, resp)
		return nil
	}

	return fmt.Errorf("%w: %q not allowed for %s", protocol.ErrMalformed, msgType, role)
}

func (s *Server) track(p *Peer) {
	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(p *Peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
}

func (s *Server) closePeers() {
	s.mu.Lock()
	peers := make([]*Peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		p.Close(websocket.CloseGoingAway, "relay shutting down")
	}
}
