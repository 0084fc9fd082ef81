package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/signal-bridge/internal/protocol"
)

var (
	// ErrPeerClosed is returned when sending on a closed peer.
	ErrPeerClosed = errors.New("peer closed")

	// ErrSendQueueFull is returned when a peer falls too far behind. The
	// peer is closed.
	ErrSendQueueFull = errors.New("peer send queue full")
)

// PeerConfig configures the transport of an accepted connection.
type PeerConfig struct {
	PingInterval    time.Duration // How often the relay pings the peer
	PongTimeout     time.Duration // Grace after a ping before the peer is dropped
	WriteTimeout    time.Duration // Write deadline for every frame
	MaxMessageBytes int64         // Read limit per frame
	SendQueue       int           // Outbound frames buffered before the peer is dropped
}

// Peer is an accepted websocket connection. Frames are written by a
// dedicated goroutine so Send never waits on the socket.
type Peer struct {
	id   string
	conn *websocket.Conn
	cfg  PeerConfig
	send chan []byte
	done chan struct{}

	mu          sync.RWMutex
	logger      *slog.Logger
	closed      bool
	closeCode   int
	closeReason string
}

func newPeer(conn *websocket.Conn, cfg PeerConfig, logger *slog.Logger) *Peer {
	id := uuid.NewString()
	if cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(cfg.MaxMessageBytes)
	}
	if cfg.SendQueue < 1 {
		cfg.SendQueue = 1
	}
	p := &Peer{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		send:   make(chan []byte, cfg.SendQueue),
		done:   make(chan struct{}),
		logger: logger.With("conn_id", id),
	}
	go p.writeLoop()
	return p
}

// ID returns the connection identifier.
func (p *Peer) ID() string {
	return p.id
}

func (p *Peer) setRole(role protocol.Role) {
	p.mu.Lock()
	p.logger = p.logger.With("role", role)
	p.mu.Unlock()
}

func (p *Peer) log() *slog.Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logger
}

// Send encodes msg and queues it for the writer. It does not block; a peer
// whose queue is full is closed.
func (p *Peer) Send(msg any) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPeerClosed
	}
	select {
	case p.send <- data:
		p.mu.RUnlock()
		return nil
	default:
	}
	p.mu.RUnlock()

	p.log().Warn("send queue full, dropping peer", "queued", cap(p.send))
	p.Close(websocket.ClosePolicyViolation, "too slow")
	return ErrSendQueueFull
}

// Close marks the peer closed. The writer sends a close frame with code and
// reason, then drops the socket. Later calls are no-ops.
func (p *Peer) Close(code int, reason string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.closeCode = code
	p.closeReason = reason
	p.mu.Unlock()

	close(p.done)
}

// Closed reports whether Close has been called.
func (p *Peer) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// writeLoop drains the send queue until the peer closes.
func (p *Peer) writeLoop() {
	defer p.conn.Close()

	for {
		select {
		case <-p.done:
			p.writeClose()
			return

		case data := <-p.send:
			select {
			case <-p.done:
				p.writeClose()
				return
			default:
			}

			p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.log().Info("write failed, dropping peer", "error", err)
				p.Close(websocket.CloseGoingAway, "write failed")
			}
		}
	}
}

func (p *Peer) writeClose() {
	p.mu.RLock()
	code, reason := p.closeCode, p.closeReason
	p.mu.RUnlock()

	p.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second),
	)
}

// read returns the next frame.
func (p *Peer) read() ([]byte, error) {
	_, data, err := p.conn.ReadMessage()
	return data, err
}

// startHeartbeat arms the pong deadline and pings until the peer closes.
func (p *Peer) startHeartbeat() {
	wait := p.cfg.PingInterval + p.cfg.PongTimeout
	p.conn.SetReadDeadline(time.Now().Add(wait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(wait))
	})

	go p.pingLoop()
}

func (p *Peer) pingLoop() {
	ticker := time.NewTicker(p.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(p.cfg.WriteTimeout)
			if err := p.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				p.log().Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}
