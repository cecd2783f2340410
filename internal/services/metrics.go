package services

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors for the safety service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	Requests        *prometheus.CounterVec
	Durations       *prometheus.HistogramVec
	MatchedHazards  *prometheus.HistogramVec
	RouteLabels     *prometheus.CounterVec
	SnapshotRefresh *prometheus.CounterVec
}

// NewMetrics registers collectors against reg, defaulting to the global
// Prometheus registry when nil
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_requests_total",
		Help: "Safety operations handled, labeled by operation and outcome.",
	}, []string{"operation", "outcome"}), "safety_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "safety_request_duration_seconds",
		Help:    "Safety operation latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"operation"}), "safety_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	matched, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "safety_matched_hazards",
		Help:    "Hazards matched per request.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	}, []string{"operation"}), "safety_matched_hazards")
	if err != nil {
		return nil, err
	}

	labels, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_route_labels_total",
		Help: "Route risk labels returned, labeled by scoring method and label.",
	}, []string{"method", "label"}), "safety_route_labels_total")
	if err != nil {
		return nil, err
	}

	refresh, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_snapshot_refresh_total",
		Help: "Hazard snapshot reloads, labeled by outcome.",
	}, []string{"outcome"}), "safety_snapshot_refresh_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:        gatherer,
		Requests:        requests,
		Durations:       durations,
		MatchedHazards:  matched,
		RouteLabels:     labels,
		SnapshotRefresh: refresh,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler
func (m *Metrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// observe is deferred with a pointer to the caller's named error result
func (m *Metrics) observe(operation string, start time.Time, err *error) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(operation, outcome(*err)).Inc()
	m.Durations.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) matched(operation string, n int) {
	if m == nil {
		return
	}
	m.MatchedHazards.WithLabelValues(operation).Observe(float64(n))
}

func (m *Metrics) label(method, label string) {
	if m == nil {
		return
	}
	m.RouteLabels.WithLabelValues(method, label).Inc()
}

func (m *Metrics) refreshed(err error) {
	if m == nil {
		return
	}
	m.SnapshotRefresh.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
