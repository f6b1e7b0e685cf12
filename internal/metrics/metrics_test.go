package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New("chatter_test")

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections))

	m.Inbound("sendMessage", "ok")
	m.Inbound("sendMessage", "ok")
	m.Inbound("sendMessage", "malformed")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.inbound.WithLabelValues("sendMessage", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inbound.WithLabelValues("sendMessage", "malformed")))

	m.Delivered("receiveMessage", 3)
	m.Delivered("receiveMessage", 0)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.delivered.WithLabelValues("receiveMessage")))

	m.Dropped("userTyping")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("userTyping")))

	m.StoreDone("append", time.Now(), nil)
	m.StoreDone("append", time.Now(), errors.New("x"))
	assert.Equal(t, 2, testutil.CollectAndCount(m.storeDur))

	families, err := m.Registry().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.Inbound("x", "ok")
		m.Delivered("x", 1)
		m.Dropped("x")
		m.StoreDone("x", time.Now(), nil)
		assert.Nil(t, m.Registry())
	})
}
