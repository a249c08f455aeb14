// pkg/system/metrics.go
package system

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the engine metrics
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "aspkg").
	Namespace string

	// Buckets are the histogram buckets for operation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: a private registry, so several managers can coexist.
	Registry prometheus.Registerer
}

// MetricsOption configures the engine metrics
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the Prometheus collectors of one Manager
type Metrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	filesRemoved  prometheus.Counter
	retainedSOs   prometheus.Counter
	orphans       prometheus.Gauge
	installedASPs prometheus.Gauge
	gatherer      prometheus.Gatherer
}

// NewMetrics creates and registers the engine collectors
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "aspkg",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(config.Registry)

	m := &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "operations_total",
			Help:      "Total number of engine operations by outcome",
		}, []string{"op", "status"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Engine operation duration in seconds",
			Buckets:   config.Buckets,
		}, []string{"op"}),

		filesRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "files_removed_total",
			Help:      "Total number of paths deleted by remove and reduce",
		}),

		retainedSOs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "shared_objects_retained_total",
			Help:      "Total number of shared objects kept back during removal",
		}),

		orphans: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "orphan_files",
			Help:      "Untracked files found by the last orphan scan",
		}),

		installedASPs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "installed_asps",
			Help:      "Number of ASPs in the registry after the last mutation",
		}),
	}

	if g, ok := config.Registry.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// observe records one finished operation
func (m *Metrics) observe(op string, start time.Time, warnings int, err error) {
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case warnings > 0:
		status = "partial"
	}
	m.operations.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// WriteTextfile writes every gathered metric in the text exposition format,
// for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m.gatherer == nil {
		return errors.New("metrics registry cannot be gathered")
	}
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
