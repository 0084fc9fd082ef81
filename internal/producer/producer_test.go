package producer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/signal-bridge/internal/config"
	"github.com/rickgao/signal-bridge/internal/consumer"
	"github.com/rickgao/signal-bridge/internal/model"
	"github.com/rickgao/signal-bridge/internal/protocol"
	"github.com/rickgao/signal-bridge/internal/relay"
	"github.com/rickgao/signal-bridge/internal/store"
)

const (
	producerToken = "p-token"
	consumerToken = "c-token"
)

// fakeStore serves fixed rows and records requested limits.
type fakeStore struct {
	mu     sync.Mutex
	rows   map[string][]model.Row
	err    error
	limits []int
}

func (f *fakeStore) Query(ctx context.Context, resource string, limit int) ([]model.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	rows, ok := f.rows[resource]
	if !ok {
		return nil, store.ErrUnknownResource
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

func (f *fakeStore) lastLimit() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limits[len(f.limits)-1]
}

func newFakeStore() *fakeStore {
	cols := []string{"ts", "event", "side"}
	return &fakeStore{rows: map[string][]model.Row{
		"trades": {
			{Columns: cols, Values: []any{int64(3), "close", "long"}},
			{Columns: cols, Values: []any{int64(2), "open", "long"}},
		},
		"probabilities": {},
	}}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name      string
		storeErr  error
		req       protocol.Request
		wantData  string
		wantErr   string
		wantLimit int
	}{
		{
			name:      "rows in column order",
			req:       protocol.NewRequest("r1", "trades", protocol.WithLimit(5)),
			wantData:  `[{"ts":3,"event":"close","side":"long"},{"ts":2,"event":"open","side":"long"}]`,
			wantLimit: 5,
		},
		{
			name:      "limit clamped",
			req:       protocol.NewRequest("r2", "trades", protocol.WithLimit(1000)),
			wantData:  `[{"ts":3,"event":"close","side":"long"},{"ts":2,"event":"open","side":"long"}]`,
			wantLimit: 500,
		},
		{
			name:      "default limit",
			req:       protocol.NewRequest("r3", "trades", protocol.Params{}),
			wantData:  `[{"ts":3,"event":"close","side":"long"},{"ts":2,"event":"open","side":"long"}]`,
			wantLimit: 100,
		},
		{
			name:      "empty table",
			req:       protocol.NewRequest("r4", "probabilities", protocol.WithLimit(1)),
			wantData:  `[]`,
			wantLimit: 1,
		},
		{
			name:      "unknown resource",
			req:       protocol.NewRequest("r5", "orders", protocol.WithLimit(1)),
			wantErr:   protocol.ErrCodeUnknownResource,
			wantLimit: 1,
		},
		{
			name:      "store failure",
			storeErr:  errors.New("database is locked"),
			req:       protocol.NewRequest("r6", "trades", protocol.WithLimit(0)),
			wantErr:   "database is locked",
			wantLimit: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newFakeStore()
			st.err = tt.storeErr
			p := New(Config{}, st, quietLogger())

			resp := p.Handle(context.Background(), tt.req)

			assert.Equal(t, protocol.TypeResponse, resp.Type)
			assert.Equal(t, tt.req.RequestID, resp.RequestID)
			assert.Equal(t, tt.wantLimit, st.lastLimit())
			if tt.wantErr != "" {
				assert.Equal(t, protocol.StatusError, resp.Status)
				assert.Equal(t, tt.wantErr, resp.Error)
				assert.Empty(t, resp.Data)
				return
			}
			assert.Equal(t, protocol.StatusOK, resp.Status)
			assert.Equal(t, tt.wantData, string(resp.Data))
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{URL: "ws://relay/ws", BaseDelay: 5 * time.Second, MaxDelay: time.Second}.withDefaults()

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, protocol.MaxLimit, cfg.MaxLimit)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay, "max delay raised to base delay")
	assert.Equal(t, "ws://relay/ws", cfg.Connection.URL)
}

// startRelay runs a relay and returns it with its websocket URL.
func startRelay(t *testing.T) (*relay.Server, string) {
	t.Helper()
	env := map[string]string{
		config.EnvProducerToken: producerToken,
		config.EnvConsumerToken: consumerToken,
	}
	cfg, err := config.LoadRelay("", func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)

	srv, err := relay.NewServer(cfg, quietLogger())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Router().Run(ctx)
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})

	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func runProducer(t *testing.T, cfg Config, st store.Store) *Producer {
	t.Helper()
	p := New(cfg, st, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Error("producer did not stop")
		}
	})
	return p
}

func TestProducer_ServesThroughRelay(t *testing.T) {
	srv, url := startRelay(t)
	p := runProducer(t, Config{URL: url, Token: producerToken, Workers: 2}, newFakeStore())
	require.Eventually(t, srv.Router().ProducerConnected, 2*time.Second, 10*time.Millisecond)

	c, err := consumer.Dial(context.Background(), consumer.Config{URL: url, Token: consumerToken}, quietLogger())
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Get(context.Background(), "trades", protocol.WithLimit(1))
	require.NoError(t, err)
	require.True(t, resp.OK(), "error: %s", resp.Error)
	assert.Equal(t, `[{"ts":3,"event":"close","side":"long"}]`, string(resp.Data))

	resp, err = c.Get(context.Background(), "orders", protocol.Params{})
	require.NoError(t, err)
	assert.Equal(t, protocol.ErrCodeUnknownResource, resp.Error, "rejected by the relay before reaching the store")

	assert.True(t, p.Connected())
	assert.Eventually(t, func() bool { return p.Handled() == 1 }, time.Second, 5*time.Millisecond)
}

func TestProducer_ReconnectsAfterSupersede(t *testing.T) {
	srv, url := startRelay(t)
	p := runProducer(t, Config{
		URL:       url,
		Token:     producerToken,
		BaseDelay: 20 * time.Millisecond,
		MaxDelay:  50 * time.Millisecond,
	}, newFakeStore())
	require.Eventually(t, p.Connected, 2*time.Second, 10*time.Millisecond)

	// Take the slot with a raw producer; the real one is closed and retries
	intruder, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer intruder.Close()
	require.NoError(t, intruder.WriteJSON(protocol.NewAuth(protocol.RoleProducer, producerToken)))
	var ok protocol.AuthOK
	require.NoError(t, intruder.ReadJSON(&ok))

	// The retry supersedes the intruder in turn
	intruder.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := intruder.ReadMessage(); err != nil {
			require.True(t, websocket.IsCloseError(err, protocol.CloseSuperseded), "got %v", err)
			break
		}
	}

	require.Eventually(t, func() bool {
		return p.Connected() && srv.Router().ProducerConnected()
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, p.sessions.Load(), int64(2))
}

func TestProducer_BacksOffOnAuthFailure(t *testing.T) {
	srv, url := startRelay(t)
	p := runProducer(t, Config{
		URL:       url,
		Token:     "wrong",
		BaseDelay: 10 * time.Millisecond,
		MaxDelay:  40 * time.Millisecond,
	}, newFakeStore())

	require.Eventually(t, func() bool {
		return p.sessions.Load() >= 3
	}, 3*time.Second, 10*time.Millisecond)
	assert.False(t, p.Connected())
	assert.False(t, srv.Router().ProducerConnected())
}

func TestProducer_StopsWhileRelayDown(t *testing.T) {
	p := New(Config{URL: "ws://127.0.0.1:1/ws", Token: producerToken, BaseDelay: time.Hour}, newFakeStore(), quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return p.sessions.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
