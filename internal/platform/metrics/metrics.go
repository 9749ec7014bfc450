package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sorteos"

// Metrics holds the process collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	draws            *prometheus.CounterVec
	winners          *prometheus.CounterVec
	drawConflicts    prometheus.Counter
	ticketsGenerated prometheus.Counter
	ticketsSold      prometheus.Counter
	partialSales     prometheus.Counter
	payments         *prometheus.CounterVec
	chatSessions     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		draws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draws_total",
			Help:      "Draw invocations by mode and result code.",
		}, []string{"mode", "result"}),
		winners: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "winners_total",
			Help:      "Winner records created.",
		}, []string{"mode"}),
		drawConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draw_conflicts_total",
			Help:      "Winner inserts skipped because of a uniqueness conflict.",
		}),
		ticketsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_generated_total",
			Help:      "Tickets minted.",
		}),
		ticketsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_sold_total",
			Help:      "Tickets transitioned to sold.",
		}),
		partialSales: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_sales_total",
			Help:      "Purchase confirmations that sold fewer tickets than requested.",
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment state transitions.",
		}, []string{"provider", "state"}),
		chatSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chat_sessions",
			Help:      "Connected chat sessions.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.draws, m.winners, m.drawConflicts,
		m.ticketsGenerated, m.ticketsSold, m.partialSales, m.payments, m.chatSessions,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveDraw(mode, result string, winners int) {
	if m == nil {
		return
	}
	m.draws.WithLabelValues(mode, result).Inc()
	if winners > 0 {
		m.winners.WithLabelValues(mode).Add(float64(winners))
	}
}

func (m *Metrics) DrawConflict() {
	if m == nil {
		return
	}
	m.drawConflicts.Inc()
}

func (m *Metrics) TicketsGenerated(n int) {
	if m == nil {
		return
	}
	m.ticketsGenerated.Add(float64(n))
}

func (m *Metrics) TicketsSold(n int) {
	if m == nil {
		return
	}
	m.ticketsSold.Add(float64(n))
}

func (m *Metrics) PartialSale() {
	if m == nil {
		return
	}
	m.partialSales.Inc()
}

func (m *Metrics) Payment(provider, state string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(provider, state).Inc()
}

func (m *Metrics) ChatSessions(n int) {
	if m == nil {
		return
	}
	m.chatSessions.Set(float64(n))
}
