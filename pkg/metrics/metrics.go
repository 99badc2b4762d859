// Package metrics exposes the Prometheus collectors of the accrual service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "accrual"

// Metrics holds the collectors registered on its own registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	admissions     *prometheus.CounterVec
	roundsAdvanced *prometheus.CounterVec
	withdrawals    *prometheus.CounterVec
	keeperTicks    *prometheus.CounterVec
	scanDuration   prometheus.Histogram
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "total",
			Help:      "Funding events processed, by outcome.",
		}, []string{"outcome"}),
		roundsAdvanced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "rounds_advanced_total",
			Help:      "Round advances attempted, by outcome.",
		}, []string{"outcome"}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "withdrawal",
			Name:      "total",
			Help:      "Withdrawals attempted, by outcome.",
		}, []string{"outcome"}),
		keeperTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "ticks_total",
			Help:      "Keeper ticks, by result.",
		}, []string{"result"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "scan_duration_seconds",
			Help:      "Duration of ready-account scans.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
	}
	m.Registry.MustRegister(
		m.admissions,
		m.roundsAdvanced,
		m.withdrawals,
		m.keeperTicks,
		m.scanDuration,
		m.httpRequests,
		m.httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveAdmission(err error) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) ObserveAdvance(err error) {
	if m == nil {
		return
	}
	m.roundsAdvanced.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) ObserveWithdrawal(err error) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(outcome(err)).Inc()
}

// ObserveKeeperTick records a keeper run; result is "advanced", "idle",
// "skipped" or "error".
func (m *Metrics) ObserveKeeperTick(result string) {
	if m == nil {
		return
	}
	m.keeperTicks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveScan(d time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
