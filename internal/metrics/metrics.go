package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the availability service.
type Metrics struct {
	// ReconcileTicks counts reconciler ticks by result (ok, skipped, error).
	ReconcileTicks *prometheus.CounterVec

	// ReconcileDuration is the time one tick takes.
	ReconcileDuration prometheus.Histogram

	// StateChanges counts cached flag transitions by entry kind.
	StateChanges *prometheus.CounterVec

	// SoldOutCleared counts sold-out overrides cleared by the reconciler.
	SoldOutCleared *prometheus.CounterVec

	ValidationRejections prometheus.Counter

	HTTPRequests *prometheus.CounterVec

	RateLimited prometheus.Counter
}

// New creates the collectors and registers them with reg.
// A nil reg uses the default registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		ReconcileTicks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_ticks_total",
				Help:      "Total number of reconciler ticks by result",
			},
			[]string{"result"},
		),

		ReconcileDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_duration_seconds",
				Help:      "Time to run one reconciler tick",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),

		StateChanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_changes_total",
				Help:      "Total number of cached availability flag changes",
			},
			[]string{"kind"},
		),

		SoldOutCleared: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sold_out_cleared_total",
				Help:      "Total number of sold-out overrides cleared",
			},
			[]string{"cause"},
		),

		ValidationRejections: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schedule_validation_rejections_total",
				Help:      "Total number of schedule writes rejected by validation",
			},
		),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of API requests by route and status",
			},
			[]string{"route", "status"},
		),

		RateLimited: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_rate_limited_total",
				Help:      "Total number of write requests refused by the rate limiter",
			},
		),
	}
}

// IncTick records a tick outcome.
func (m *Metrics) IncTick(result string) {
	if m == nil {
		return
	}
	m.ReconcileTicks.WithLabelValues(result).Inc()
}

// ObserveTick records the time taken by a tick.
func (m *Metrics) ObserveTick(seconds float64) {
	if m == nil {
		return
	}
	m.ReconcileDuration.Observe(seconds)
}

// IncStateChange counts a flag transition for "category" or "special".
func (m *Metrics) IncStateChange(kind string) {
	if m == nil {
		return
	}
	m.StateChanges.WithLabelValues(kind).Inc()
}

// IncSoldOutCleared counts a cleared override; cause is "expired" or "stale".
func (m *Metrics) IncSoldOutCleared(cause string) {
	if m == nil {
		return
	}
	m.SoldOutCleared.WithLabelValues(cause).Inc()
}

func (m *Metrics) IncValidationRejection() {
	if m == nil {
		return
	}
	m.ValidationRejections.Inc()
}

func (m *Metrics) IncHTTPRequest(route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, statusClass(status)).Inc()
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
