package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelay_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewRelay(reg)
	require.NoError(t, err)

	m.ConnectionOpened("consumer")
	m.ConnectionOpened("consumer")
	m.ConnectionClosed("consumer")
	m.SetProducerConnected(true)
	m.SetPending(3)
	m.RequestResolved("trades", OutcomeOK, 20*time.Millisecond)
	m.RequestResolved("trades", OutcomeTimeout, 10*time.Second)
	m.AuthFailed()
	m.ResponseDiscarded()
	m.ResponseDiscarded()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections.WithLabelValues("consumer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.producerConnected))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("trades", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("trades", OutcomeTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.discarded))

	m.SetProducerConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.producerConnected))
}

func TestRelay_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRelay(reg)
	require.NoError(t, err)

	_, err = NewRelay(reg)
	assert.Error(t, err)
}

func TestRelay_NilSafe(t *testing.T) {
	var m *Relay
	assert.NotPanics(t, func() {
		m.ConnectionOpened("producer")
		m.ConnectionClosed("producer")
		m.SetProducerConnected(true)
		m.ProducerReplaced()
		m.SetPending(1)
		m.RequestResolved("trades", OutcomeOK, time.Second)
		m.AuthFailed()
		m.ProtocolError("consumer")
		m.ResponseDiscarded()
	})
}
