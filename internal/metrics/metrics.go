// Package metrics exposes engine and API counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

const namespace = "themetrader"

// Registry holds every collector on a private prometheus.Registry.
type Registry struct {
	reg *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	trades        *prometheus.CounterVec
	cash          prometheus.Gauge
	positions     prometheus.Gauge
	riskScore     *prometheus.GaugeVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New creates a Registry with Go runtime and process collectors attached.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Daily cycles run, by outcome.",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one daily cycle.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Simulated fills, by side.",
		}, []string{"side"}),
		cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cash",
			Help:      "Uninvested cash after the last cycle.",
		}),
		positions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Open positions after the last cycle.",
		}),
		riskScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Latest risk score per held symbol.",
		}, []string{"symbol"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests, by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.cycles, r.cycleDuration, r.trades, r.cash, r.positions, r.riskScore,
		r.httpRequests, r.httpDuration,
	)
	return r
}

// WatchBreaker exports state() as a gauge: 0 closed, 1 half-open, 2 open.
func (r *Registry) WatchBreaker(name string, state func() string) {
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "breaker_state",
		Help:        "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		ConstLabels: prometheus.Labels{"breaker": name},
	}, func() float64 {
		switch state() {
		case "open":
			return 2
		case "half-open":
			return 1
		default:
			return 0
		}
	}))
}

// CycleCompleted records a finished cycle.
func (r *Registry) CycleCompleted(_ context.Context, report domain.CycleReport) {
	outcome := "ok"
	if len(report.Errors) > 0 {
		outcome = "degraded"
	}
	r.cycles.WithLabelValues(outcome).Inc()
	r.cycleDuration.Observe(report.Duration().Seconds())

	r.trades.WithLabelValues(string(domain.SideBuy)).Add(float64(len(report.Opened)))
	r.trades.WithLabelValues(string(domain.SideSell)).Add(float64(len(report.Sells())))

	r.cash.Set(report.Status.Cash)
	r.positions.Set(float64(report.Status.PositionCount))

	r.riskScore.Reset()
	for _, d := range report.Decisions {
		if _, held := report.Status.Positions[d.Symbol]; held {
			r.riskScore.WithLabelValues(d.Symbol).Set(d.RiskScore)
		}
	}
}

// ObserveHTTP records one API request.
func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
