// Package agent implements the metric collection subsystem for TalonPulse.
// It uses gopsutil for cross-platform system telemetry.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/vesaa/talonpulse/internal/models"
)

// ErrSample is returned when a mandatory sensor (CPU, memory, network) cannot be read.
var ErrSample = errors.New("sample failed")

// Partition is a mounted filesystem as reported by the OS.
type Partition struct {
	Device     string
	Mountpoint string
}

// NetCounters are OS-level cumulative byte totals across all interfaces.
type NetCounters struct {
	BytesSent uint64
	BytesRecv uint64
}

// HostReader reads raw counters from the operating system.
type HostReader interface {
	// CPUPercent blocks for window and returns the average utilisation over it.
	CPUPercent(ctx context.Context, window time.Duration) (float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
	Partitions(ctx context.Context) ([]Partition, error)
	PartitionUsage(ctx context.Context, mountpoint string) (float64, error)
	NetCounters(ctx context.Context) (NetCounters, error)
}

// gopsutilReader is the HostReader backed by gopsutil.
type gopsutilReader struct{}

// NewHostReader returns a HostReader for the local machine.
func NewHostReader() HostReader {
	return gopsutilReader{}
}

func (gopsutilReader) CPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, errors.New("cpu: no reading")
	}
	return pcts[0], nil
}

func (gopsutilReader) MemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func (gopsutilReader) Partitions(ctx context.Context) ([]Partition, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]Partition, 0, len(parts))
	for _, p := range parts {
		out = append(out, Partition{Device: p.Device, Mountpoint: p.Mountpoint})
	}
	return out, nil
}

func (gopsutilReader) PartitionUsage(ctx context.Context, mountpoint string) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, mountpoint)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}

func (gopsutilReader) NetCounters(ctx context.Context) (NetCounters, error) {
	stats, err := psnet.IOCountersWithContext(ctx, false) // aggregate all interfaces
	if err != nil {
		return NetCounters{}, err
	}
	if len(stats) == 0 {
		return NetCounters{}, errors.New("net: no counters")
	}
	return NetCounters{BytesSent: stats[0].BytesSent, BytesRecv: stats[0].BytesRecv}, nil
}

// Sampler turns raw host counters into a MetricSample. Rate fields are left
// at zero; they are filled in by a RateTracker.
type Sampler struct {
	host   HostReader
	window time.Duration
	now    func() time.Time
	log    *slog.Logger
}

// SamplerOption customises a Sampler.
type SamplerOption func(*Sampler)

// WithClock replaces time.Now as the timestamp source.
func WithClock(now func() time.Time) SamplerOption {
	return func(s *Sampler) { s.now = now }
}

// NewSampler creates a Sampler that averages CPU over window.
func NewSampler(host HostReader, window time.Duration, log *slog.Logger, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		host:   host,
		window: window,
		now:    time.Now,
		log:    log.With("component", "sampler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample reads the host once. The call blocks for the CPU window.
func (s *Sampler) Sample(ctx context.Context) (*models.MetricSample, error) {
	disks := s.disks(ctx)

	cpuPct, err := s.host.CPUPercent(ctx, s.window)
	if err != nil {
		return nil, fmt.Errorf("%w: cpu: %v", ErrSample, err)
	}
	ramPct, err := s.host.MemoryPercent(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: memory: %v", ErrSample, err)
	}
	net, err := s.host.NetCounters(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: net: %v", ErrSample, err)
	}

	// Stamped after the CPU window so the timestamp matches the counter read.
	return &models.MetricSample{
		Timestamp:  s.now().Unix(),
		CPUPercent: clampPercent(cpuPct),
		RAMPercent: clampPercent(ramPct),
		Disks:      disks,
		NetSent:    net.BytesSent,
		NetRecv:    net.BytesRecv,
	}, nil
}

// disks reads usage for every mounted partition. Partitions that cannot be
// read (typically permission denied) are left out of the map.
func (s *Sampler) disks(ctx context.Context) models.Disks {
	out := models.Disks{}
	parts, err := s.host.Partitions(ctx)
	if err != nil {
		s.log.Warn("listing partitions", "error", err)
		return out
	}
	for _, p := range parts {
		pct, err := s.host.PartitionUsage(ctx, p.Mountpoint)
		if err != nil {
			s.log.Debug("skipping partition", "device", p.Device, "mountpoint", p.Mountpoint, "error", err)
			continue
		}
		out[p.Device] = models.DiskUsage{Percent: clampPercent(pct), Mountpoint: p.Mountpoint}
	}
	return out
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
