package agent

import "github.com/vesaa/talonpulse/internal/models"

// NetState is the last cumulative network reading seen by a RateTracker.
type NetState struct {
	Timestamp int64
	Sent      uint64
	Recv      uint64
}

// UpdateRate derives per-second throughput from prev to the current reading.
// It returns zero rates when there is no prior reading or the elapsed time is
// not positive. A counter that went backwards (reboot, interface reset) yields
// zero for that direction. next is always the current reading.
func UpdateRate(prev *NetState, ts int64, sent, recv uint64) (sentPerSec, recvPerSec uint64, next NetState) {
	next = NetState{Timestamp: ts, Sent: sent, Recv: recv}
	if prev == nil {
		return 0, 0, next
	}
	duration := ts - prev.Timestamp
	if duration <= 0 {
		return 0, 0, next
	}
	return perSecond(prev.Sent, sent, duration), perSecond(prev.Recv, recv, duration), next
}

func perSecond(prev, cur uint64, duration int64) uint64 {
	if cur < prev {
		return 0
	}
	return (cur - prev) / uint64(duration)
}

// RateTracker remembers the previous network reading between ticks. It is
// owned by a single Scheduler and is not safe for concurrent use. State is
// process-local: the first reading after a restart always reports zero rates.
type RateTracker struct {
	last *NetState
}

// NewRateTracker returns a tracker with no prior reading.
func NewRateTracker() *RateTracker {
	return &RateTracker{}
}

// Update computes the rates for the given reading and remembers it.
func (r *RateTracker) Update(ts int64, sent, recv uint64) (sentPerSec, recvPerSec uint64) {
	sentPerSec, recvPerSec, next := UpdateRate(r.last, ts, sent, recv)
	r.last = &next
	return sentPerSec, recvPerSec
}

// Apply fills the rate fields of s from its cumulative counters.
func (r *RateTracker) Apply(s *models.MetricSample) {
	s.NetSentPerSec, s.NetRecvPerSec = r.Update(s.Timestamp, s.NetSent, s.NetRecv)
}

// Last returns the remembered reading, if any.
func (r *RateTracker) Last() (NetState, bool) {
	if r.last == nil {
		return NetState{}, false
	}
	return *r.last, true
}
