package clocksync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstObserveSeedsEstimate(t *testing.T) {
	s := New(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Observe(Sample{ServerTime: base, RTT: 50 * time.Millisecond, ReceivedAt: base}, base)
	// The estimate carries the sample's half-RTT: the server's clock was
	// already 25ms further ahead by the time its reading reached us.
	assert.True(t, s.EstimatedServerTime().Equal(base.Add(25*time.Millisecond)))
}

func TestNudgeIsClampedPerFrame(t *testing.T) {
	s := New(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Observe(Sample{ServerTime: base, RTT: 10 * time.Millisecond, ReceivedAt: base}, base)
	initial := s.EstimatedServerTime()

	// A later sample 500ms ahead of the current estimate, within the
	// hard-snap threshold, should only nudge, not jump.
	later := base.Add(100 * time.Millisecond)
	ahead := later.Add(500 * time.Millisecond)
	s.Observe(Sample{ServerTime: ahead, RTT: 10 * time.Millisecond, ReceivedAt: later}, later)

	moved := s.EstimatedServerTime().Sub(initial)
	assert.LessOrEqual(t, moved, NudgeClampPerFrame+time.Millisecond)
	assert.Greater(t, moved, time.Duration(0))
}

func TestHardSnapOnLargeOffset(t *testing.T) {
	s := New(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Observe(Sample{ServerTime: base, RTT: 10 * time.Millisecond, ReceivedAt: base}, base)

	later := base.Add(10 * time.Millisecond)
	farAhead := later.Add(5 * time.Second)
	s.Observe(Sample{ServerTime: farAhead, RTT: 10 * time.Millisecond, ReceivedAt: later}, later)

	assert.True(t, s.EstimatedServerTime().Equal(farAhead.Add(5*time.Millisecond)))
}

func TestSmoothedRTTBoundedAgainstSingleOutlier(t *testing.T) {
	s := New(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		ts := base.Add(time.Duration(i) * 50 * time.Millisecond)
		s.Observe(Sample{ServerTime: ts, RTT: 20 * time.Millisecond, ReceivedAt: ts}, ts)
	}
	require.InDelta(t, 20*time.Millisecond, s.SmoothedRTT(), float64(2*time.Millisecond))

	before := s.SmoothedRTT()
	spikeTime := base.Add(21 * 50 * time.Millisecond)
	s.Observe(Sample{ServerTime: spikeTime, RTT: 2 * time.Second, ReceivedAt: spikeTime}, spikeTime)

	// A sample above HardSnapClockThreshold is discarded as garbage
	// entirely, not blended in, so it must not move the smoothed value
	// at all.
	assert.Equal(t, before, s.SmoothedRTT())
}

func TestReconcileSimTimeSnapsOnLargeDrift(t *testing.T) {
	s := New(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Observe(Sample{ServerTime: base, RTT: 10 * time.Millisecond, ReceivedAt: base}, base)
	target := s.EstimatedServerTime().Add(s.SmoothedRTT()/2 + JitterSafetyMargin)

	drifted := base.Add(-500 * time.Millisecond)
	corrected, snapped := s.ReconcileSimTime(drifted)
	assert.True(t, snapped)
	assert.True(t, corrected.Equal(target))
}

func TestReconcileSimTimeLeavesSmallDriftAlone(t *testing.T) {
	s := New(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Observe(Sample{ServerTime: base, RTT: 10 * time.Millisecond, ReceivedAt: base}, base)

	drifted := base.Add(-10 * time.Millisecond)
	corrected, snapped := s.ReconcileSimTime(drifted)
	assert.False(t, snapped)
	moved := corrected.Sub(drifted)
	assert.GreaterOrEqual(t, moved, time.Duration(0))
	assert.LessOrEqual(t, moved, NudgeClampPerFrame+time.Millisecond)
}
