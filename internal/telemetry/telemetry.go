// Package telemetry exposes Prometheus self-metrics for the collection pipeline.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "talonpulse"

// Pipeline counts what happens on every scheduler tick.
type Pipeline struct {
	Ticks              prometheus.Counter
	SampleFailures     prometheus.Counter
	StoreWriteFailures prometheus.Counter
	SampleDuration     prometheus.Histogram
	LastSample         prometheus.Gauge
}

// NewPipeline creates the collectors and registers them on reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total number of collection ticks started",
		}),
		SampleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sample_failures_total",
			Help:      "Ticks dropped because the host could not be sampled",
		}),
		StoreWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_write_failures_total",
			Help:      "Samples lost because the store rejected the write",
		}),
		SampleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sample_duration_seconds",
			Help:      "Wall time of one sampler call, CPU window included",
			Buckets:   []float64{0.25, 0.5, 0.75, 1, 2, 5, 10},
		}),
		LastSample: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sample_timestamp_seconds",
			Help:      "Timestamp of the most recently persisted sample",
		}),
	}
	if reg != nil {
		reg.MustRegister(p.Ticks, p.SampleFailures, p.StoreWriteFailures, p.SampleDuration, p.LastSample)
	}
	return p
}

// ObserveSample records how long a sampler call took.
func (p *Pipeline) ObserveSample(started time.Time) {
	p.SampleDuration.Observe(time.Since(started).Seconds())
}
