package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveDraw("full", "ok", 3)
	m.ObserveDraw("prize", "INSUFFICIENT_POOL", 0)
	m.DrawConflict()
	m.TicketsGenerated(100)
	m.TicketsSold(2)
	m.PartialSale()
	m.ObserveHTTP("GET", "/api/v1/sorteos", 200, 10*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.draws.WithLabelValues("full", "ok")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.winners.WithLabelValues("full")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.drawConflicts))
	assert.Equal(t, float64(100), testutil.ToFloat64(m.ticketsGenerated))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ticketsSold))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/sorteos", "200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDraw("full", "ok", 1)
		m.TicketsSold(1)
		m.ChatSessions(2)
	})
}
