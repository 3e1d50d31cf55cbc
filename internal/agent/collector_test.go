package agent

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesaa/talonpulse/internal/logger"
	"github.com/vesaa/talonpulse/internal/models"
)

type fakeHost struct {
	cpu, mem  float64
	cpuErr    error
	memErr    error
	parts     []Partition
	partsErr  error
	usage     map[string]float64
	usageErr  map[string]error
	net       NetCounters
	netErr    error
	gotWindow time.Duration
}

func (f *fakeHost) CPUPercent(_ context.Context, window time.Duration) (float64, error) {
	f.gotWindow = window
	return f.cpu, f.cpuErr
}

func (f *fakeHost) MemoryPercent(context.Context) (float64, error) { return f.mem, f.memErr }

func (f *fakeHost) Partitions(context.Context) ([]Partition, error) { return f.parts, f.partsErr }

func (f *fakeHost) PartitionUsage(_ context.Context, mountpoint string) (float64, error) {
	if err := f.usageErr[mountpoint]; err != nil {
		return 0, err
	}
	return f.usage[mountpoint], nil
}

func (f *fakeHost) NetCounters(context.Context) (NetCounters, error) { return f.net, f.netErr }

func newFakeHost() *fakeHost {
	return &fakeHost{
		cpu: 12.5,
		mem: 48.25,
		parts: []Partition{
			{Device: "/dev/sda1", Mountpoint: "/"},
			{Device: "/dev/sdb1", Mountpoint: "/data"},
		},
		usage: map[string]float64{"/": 42.5, "/data": 80},
		net:   NetCounters{BytesSent: 1000, BytesRecv: 2000},
	}
}

func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 250_000_000) }
}

func TestSamplerSample(t *testing.T) {
	host := newFakeHost()
	s := NewSampler(host, 500*time.Millisecond, logger.Discard(), WithClock(fixedClock(100)))

	got, err := s.Sample(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, host.gotWindow)
	assert.Equal(t, &models.MetricSample{
		Timestamp:  100,
		CPUPercent: 12.5,
		RAMPercent: 48.25,
		Disks: models.Disks{
			"/dev/sda1": {Percent: 42.5, Mountpoint: "/"},
			"/dev/sdb1": {Percent: 80, Mountpoint: "/data"},
		},
		NetSent: 1000,
		NetRecv: 2000,
	}, got)
}

func TestSamplerSkipsUnreadablePartition(t *testing.T) {
	host := newFakeHost()
	host.parts = append(host.parts, Partition{Device: "/dev/sdc1", Mountpoint: "/root/secret"})
	host.usageErr = map[string]error{
		"/root/secret": &fs.PathError{Op: "statfs", Path: "/root/secret", Err: fs.ErrPermission},
	}
	s := NewSampler(host, time.Millisecond, logger.Discard(), WithClock(fixedClock(100)))

	got, err := s.Sample(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, got.Disks, "/dev/sdc1")
	assert.Len(t, got.Disks, 2)
	assert.Equal(t, int64(100), got.Timestamp)
	assert.Equal(t, 12.5, got.CPUPercent)
	assert.Equal(t, 48.25, got.RAMPercent)
	assert.Equal(t, uint64(1000), got.NetSent)
	assert.Equal(t, uint64(2000), got.NetRecv)
}

func TestSamplerPartitionListFailure(t *testing.T) {
	host := newFakeHost()
	host.partsErr = errors.New("no /proc/mounts")
	s := NewSampler(host, time.Millisecond, logger.Discard())

	got, err := s.Sample(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got.Disks)
	assert.Empty(t, got.Disks)
}

func TestSamplerClampsPercentages(t *testing.T) {
	host := newFakeHost()
	host.cpu = 100.0000001
	host.mem = -0.5
	host.usage["/"] = 101
	s := NewSampler(host, time.Millisecond, logger.Discard())

	got, err := s.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.CPUPercent)
	assert.Equal(t, 0.0, got.RAMPercent)
	assert.Equal(t, 100.0, got.Disks["/dev/sda1"].Percent)
}

func TestSamplerMandatorySensors(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		desc  string
		setup func(*fakeHost)
	}{
		{desc: "cpu", setup: func(h *fakeHost) { h.cpuErr = boom }},
		{desc: "memory", setup: func(h *fakeHost) { h.memErr = boom }},
		{desc: "net", setup: func(h *fakeHost) { h.netErr = boom }},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			host := newFakeHost()
			tc.setup(host)
			s := NewSampler(host, time.Millisecond, logger.Discard())

			got, err := s.Sample(context.Background())
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrSample)
			assert.Contains(t, err.Error(), fmt.Sprintf("%s: boom", tc.desc))
		})
	}
}

func TestClampPercentNaN(t *testing.T) {
	assert.Equal(t, 0.0, clampPercent(math.NaN()))
	assert.Equal(t, 55.5, clampPercent(55.5))
}
