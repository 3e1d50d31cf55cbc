package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vesaa/talonpulse/internal/models"
	"github.com/vesaa/talonpulse/internal/telemetry"
)

// Source produces one raw sample per call.
type Source interface {
	Sample(ctx context.Context) (*models.MetricSample, error)
}

// Sink persists finished samples.
type Sink interface {
	Upsert(ctx context.Context, s *models.MetricSample) error
}

// Scheduler drives Source → RateTracker → Sink on a fixed cadence. It is the
// only writer of its RateTracker and of the Sink; ticks never overlap.
type Scheduler struct {
	source   Source
	sink     Sink
	tracker  *RateTracker
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
	metrics  *telemetry.Pipeline
}

// NewScheduler wires a scheduler. timeout bounds each Source call; zero disables it.
// A nil metrics records into an unregistered pipeline.
func NewScheduler(source Source, sink Sink, interval, timeout time.Duration, log *slog.Logger, metrics *telemetry.Pipeline) *Scheduler {
	if metrics == nil {
		metrics = telemetry.NewPipeline(nil)
	}
	return &Scheduler{
		source:   source,
		sink:     sink,
		tracker:  NewRateTracker(),
		interval: interval,
		timeout:  timeout,
		log:      log.With("component", "scheduler"),
		metrics:  metrics,
	}
}

// Run ticks immediately and then every interval until ctx is cancelled.
// Sampling and write failures are logged and counted; the loop keeps going.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("collection started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			break
		}
		_, _ = s.Tick(ctx)

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	s.log.Info("collection stopped")
	return nil
}

// Tick performs one collection cycle and returns the sample it produced.
// A sample is returned alongside a write error so callers can still show it.
func (s *Scheduler) Tick(ctx context.Context) (*models.MetricSample, error) {
	s.metrics.Ticks.Inc()

	sample, err := s.sample(ctx)
	if err != nil {
		s.metrics.SampleFailures.Inc()
		s.log.Warn("sampling host", "error", err)
		return nil, err
	}
	s.tracker.Apply(sample)

	if err := s.sink.Upsert(ctx, sample); err != nil {
		s.metrics.StoreWriteFailures.Inc()
		s.log.Error("storing sample", "timestamp", sample.Timestamp, "error", err)
		return sample, fmt.Errorf("tick %d: %w", sample.Timestamp, err)
	}
	s.metrics.LastSample.Set(float64(sample.Timestamp))
	s.log.Debug("sample stored",
		"timestamp", sample.Timestamp,
		"cpu", sample.CPUPercent,
		"ram", sample.RAMPercent,
		"disks", len(sample.Disks),
		"sent_per_sec", sample.NetSentPerSec,
		"recv_per_sec", sample.NetRecvPerSec,
	)
	return sample, nil
}

func (s *Scheduler) sample(ctx context.Context) (*models.MetricSample, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	defer s.metrics.ObserveSample(time.Now())
	return s.source.Sample(ctx)
}

// DiscardSink drops every sample. Used for one-shot collection without a store.
type DiscardSink struct{}

func (DiscardSink) Upsert(context.Context, *models.MetricSample) error { return nil }
