// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "studio").
	Namespace string

	// Buckets are the histogram buckets for token verification.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "studio",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Recorder records request, rejection, gate and verification metrics.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	rejections     *prometheus.CounterVec
	gateDecisions  *prometheus.CounterVec
	verifyDuration *prometheus.HistogramVec
	guardSessions  prometheus.Gauge
}

// New registers the collectors with the configured registry.
func New(opts ...Option) *Recorder {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Recorder{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),

		requestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "auth_rejections_total",
			Help:      "Requests rejected by the auth middleware, by reason",
		}, []string{"reason"}),

		gateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "gate_decisions_total",
			Help:      "Route guard decisions applied, by kind",
		}, []string{"kind"}),

		verifyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "token_verify_duration_seconds",
			Help:      "Time spent verifying bearer tokens with the session provider",
			Buckets:   config.Buckets,
		}, []string{"outcome"}),

		guardSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "guard_connections",
			Help:      "Open route guard WebSocket connections",
		}),
	}
}

func (r *Recorder) Request(route, method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.requestLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (r *Recorder) Rejected(reason string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(reason).Inc()
}

func (r *Recorder) GateDecision(kind string) {
	if r == nil {
		return
	}
	r.gateDecisions.WithLabelValues(kind).Inc()
}

func (r *Recorder) Verified(ok bool, elapsed time.Duration) {
	if r == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.verifyDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (r *Recorder) GuardOpened() {
	if r == nil {
		return
	}
	r.guardSessions.Inc()
}

func (r *Recorder) GuardClosed() {
	if r == nil {
		return
	}
	r.guardSessions.Dec()
}
