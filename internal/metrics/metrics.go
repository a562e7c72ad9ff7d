// Package metrics exposes Prometheus metrics for the extraction pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records pipeline-level counters and distributions. A nil
// *Collector is valid and records nothing, so callers never have to guard
// their observation sites.
type Collector struct {
	registry    *prometheus.Registry
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	confidence  prometheus.Histogram
}

// NewCollector constructs a collector with its own registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventagent",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Total number of extraction runs by mode and outcome.",
	}, []string{"mode", "outcome"})

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventagent",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Latency distribution for extraction runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode"})

	confidence := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "eventagent",
		Subsystem: "pipeline",
		Name:      "confidence_score",
		Help:      "Distribution of final confidence scores.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	for _, c := range []prometheus.Collector{runsTotal, runDuration, confidence} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:    registry,
		runsTotal:   runsTotal,
		runDuration: runDuration,
		confidence:  confidence,
	}, nil
}

// Handler returns an HTTP handler for exposing the metrics.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRun records one completed run. score may be nil when the record
// carries no confidence.
func (c *Collector) ObserveRun(mode, outcome string, elapsed time.Duration, score *float64) {
	if c == nil {
		return
	}
	c.runsTotal.WithLabelValues(mode, outcome).Inc()
	c.runDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if score != nil {
		c.confidence.Observe(*score)
	}
}
