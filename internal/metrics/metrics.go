package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch outcomes.
const (
	OutcomeOK                  = "ok"
	OutcomeUnauthorized        = "unauthorized"
	OutcomeInvalid             = "invalid_request"
	OutcomeUnsupported         = "unsupported_provider"
	OutcomeProviderUnavailable = "provider_unavailable"
	OutcomeInsufficientFunds   = "insufficient_funds"
	OutcomeLedgerUnavailable   = "ledger_unavailable"
	OutcomeUpstreamError       = "upstream_error"
)

// Metrics holds the Prometheus collectors for the broker on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	DispatchTotal    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	CreditsCharged   *prometheus.CounterVec
	RefundsTotal     *prometheus.CounterVec

	UsageEventsTotal *prometheus.CounterVec
	UsageQueueDepth  prometheus.Gauge

	ServerStartTime prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_dispatch_total",
			Help: "Dispatched requests by kind, provider and outcome.",
		}, []string{"kind", "provider", "outcome"}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "broker_upstream_duration_seconds",
			Help:    "Upstream call duration in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind", "provider"}),

		CreditsCharged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_credits_charged_total",
			Help: "Credits kept after successful upstream calls.",
		}, []string{"kind", "provider"}),

		RefundsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_refunds_total",
			Help: "Reservation refunds by status.",
		}, []string{"status"}),

		UsageEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_usage_events_total",
			Help: "Usage events by status (written, dropped, failed).",
		}, []string{"status"}),

		UsageQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "broker_usage_queue_depth",
			Help: "Usage events waiting to be written.",
		}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "broker_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.DispatchTotal,
		m.UpstreamDuration,
		m.CreditsCharged,
		m.RefundsTotal,
		m.UsageEventsTotal,
		m.UsageQueueDepth,
		m.ServerStartTime,
	)
	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncDispatch(kind, provider, outcome string) {
	m.DispatchTotal.WithLabelValues(kind, provider, outcome).Inc()
}

func (m *Metrics) ObserveUpstream(kind, provider string, d time.Duration) {
	m.UpstreamDuration.WithLabelValues(kind, provider).Observe(d.Seconds())
}

func (m *Metrics) AddCredits(kind, provider string, credits int64) {
	m.CreditsCharged.WithLabelValues(kind, provider).Add(float64(credits))
}

// IncRefund records a refund attempt; ok is false when the ledger rejected it
// and the reservation needs manual reconciliation.
func (m *Metrics) IncRefund(ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.RefundsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncUsage(status string) {
	m.UsageEventsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) SetUsageQueueDepth(n int) {
	m.UsageQueueDepth.Set(float64(n))
}
