package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vesaa/talonpulse/internal/models"
)

func TestUpdateRate(t *testing.T) {
	cases := []struct {
		desc     string
		prev     *NetState
		ts       int64
		sent     uint64
		recv     uint64
		wantSent uint64
		wantRecv uint64
	}{
		{
			desc:     "first reading",
			prev:     nil,
			ts:       100,
			sent:     1 << 40,
			recv:     12345,
			wantSent: 0,
			wantRecv: 0,
		},
		{
			desc:     "five second window",
			prev:     &NetState{Timestamp: 100, Sent: 1000, Recv: 0},
			ts:       105,
			sent:     1500,
			recv:     0,
			wantSent: 100,
			wantRecv: 0,
		},
		{
			desc:     "same second",
			prev:     &NetState{Timestamp: 100, Sent: 1000, Recv: 1000},
			ts:       100,
			sent:     5000,
			recv:     5000,
			wantSent: 0,
			wantRecv: 0,
		},
		{
			desc:     "clock went backwards",
			prev:     &NetState{Timestamp: 100, Sent: 1000, Recv: 1000},
			ts:       90,
			sent:     5000,
			recv:     5000,
			wantSent: 0,
			wantRecv: 0,
		},
		{
			desc:     "truncates toward zero",
			prev:     &NetState{Timestamp: 100, Sent: 0, Recv: 0},
			ts:       103,
			sent:     10,
			recv:     2,
			wantSent: 3,
			wantRecv: 0,
		},
		{
			desc:     "sent counter reset clamps only that direction",
			prev:     &NetState{Timestamp: 100, Sent: 9000, Recv: 1000},
			ts:       105,
			sent:     500,
			recv:     2000,
			wantSent: 0,
			wantRecv: 200,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			sent, recv, next := UpdateRate(tc.prev, tc.ts, tc.sent, tc.recv)
			assert.Equal(t, tc.wantSent, sent)
			assert.Equal(t, tc.wantRecv, recv)
			assert.Equal(t, NetState{Timestamp: tc.ts, Sent: tc.sent, Recv: tc.recv}, next)
		})
	}
}

func TestRateTrackerReplacesState(t *testing.T) {
	rt := NewRateTracker()
	_, ok := rt.Last()
	assert.False(t, ok)

	sent, recv := rt.Update(100, 1000, 0)
	assert.Zero(t, sent)
	assert.Zero(t, recv)

	// Same-second re-tick: no rate, but the state still moves forward.
	sent, recv = rt.Update(100, 2000, 0)
	assert.Zero(t, sent)
	assert.Zero(t, recv)
	last, ok := rt.Last()
	assert.True(t, ok)
	assert.Equal(t, NetState{Timestamp: 100, Sent: 2000}, last)

	sent, _ = rt.Update(105, 2500, 0)
	assert.Equal(t, uint64(100), sent)
}

func TestRateTrackerApply(t *testing.T) {
	rt := NewRateTracker()
	first := &models.MetricSample{Timestamp: 100, NetSent: 1000, NetRecv: 4000}
	rt.Apply(first)
	assert.Zero(t, first.NetSentPerSec)
	assert.Zero(t, first.NetRecvPerSec)

	second := &models.MetricSample{Timestamp: 105, NetSent: 1500, NetRecv: 4500}
	rt.Apply(second)
	assert.Equal(t, uint64(100), second.NetSentPerSec)
	assert.Equal(t, uint64(100), second.NetRecvPerSec)
}
