// Package clocksync implements the client's estimate of server time: a
// best-sample selector, smoothed RTT with asymmetric gain, and
// hard-snap-vs-nudge correction.
package clocksync

import (
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// AgePenaltySeconds weights a sample's age against its RTT when
	// selecting the best recent sample: score = rtt + agePenalty*age.
	AgePenaltySeconds = 0.2

	// SmoothedRTTAlphaUp is the EWMA gain applied when a new RTT sample
	// is worse (larger) than the running smoothed value.
	SmoothedRTTAlphaUp = 0.1
	// SmoothedRTTAlphaDown is the EWMA gain applied when a new RTT
	// sample is better (smaller); asymmetric so the estimate reacts to
	// degrading links fast but recovers from a good sample cautiously.
	SmoothedRTTAlphaDown = 0.01

	// JitterSafetyMargin pads the interpolation delay against RTT jitter.
	JitterSafetyMargin = 50 * time.Millisecond
	// InterpolationDelay is the fixed render-time offset behind
	// estimated server time used by remote interpolation (C7).
	InterpolationDelay = 100 * time.Millisecond

	// HardSnapSimThreshold triggers an immediate clock snap when the
	// simulation has drifted further than this from the estimate.
	HardSnapSimThreshold = 250 * time.Millisecond
	// HardSnapClockThreshold triggers an immediate snap when a single
	// sample disagrees with the current estimate by more than this.
	HardSnapClockThreshold = 1 * time.Second

	// NudgeGain is the fraction of an offset applied per correction step
	// when not hard-snapping.
	NudgeGain = 0.10
	// NudgeClampPerFrame bounds how much a single frame's nudge may move
	// the estimate, regardless of NudgeGain*offset.
	NudgeClampPerFrame = 2 * time.Millisecond
)

// Sample is one server-time observation paired with the round trip it
// was measured over.
type Sample struct {
	ServerTime time.Time
	RTT        time.Duration
	ReceivedAt time.Time
}

// Sync tracks the client's estimate of current server time and the
// smoothed RTT used to size the interpolation delay and detect stale
// links. It is owned by the client's single-threaded loop; no locking.
type Sync struct {
	log *logrus.Entry

	estimated    time.Time
	haveEstimate bool
	smoothedRTT  time.Duration
	haveRTT      bool

	recent []Sample
}

// New creates a Sync. log should already carry a component field; New
// adds "clock" to it.
func New(log *logrus.Entry) *Sync {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Sync{log: log.WithField("component", "clock")}
}

// SmoothedRTT returns the current smoothed round-trip estimate.
func (s *Sync) SmoothedRTT() time.Duration { return s.smoothedRTT }

// EstimatedServerTime returns the client's current best estimate of the
// current server wall-clock/tick time.
func (s *Sync) EstimatedServerTime() time.Time { return s.estimated }

// Observe records a new server-time sample and updates the smoothed RTT
// and server-time estimate. now is the local clock reading at which the
// sample was received, supplied by the caller rather than read here, so
// the package stays free of time.Now() for testability.
func (s *Sync) Observe(sample Sample, now time.Time) {
	if sample.RTT > HardSnapClockThreshold {
		s.log.WithField("rtt_ms", sample.RTT.Milliseconds()).
			Warn("discarding RTT sample as garbage, over hard-snap threshold")
	} else {
		s.updateSmoothedRTT(sample.RTT)
	}
	s.recent = append(s.recent, sample)
	s.trimRecent(now)

	best := s.selectBest(now)
	estimate := best.ServerTime.Add(best.RTT / 2).Add(now.Sub(best.ReceivedAt))

	if !s.haveEstimate {
		s.estimated = estimate
		s.haveEstimate = true
		return
	}

	offset := estimate.Sub(s.estimated)
	if abs(offset) > HardSnapClockThreshold {
		s.log.WithField("offset_ms", offset.Milliseconds()).Warn("hard-snapping clock estimate")
		s.estimated = estimate
		return
	}
	s.nudge(offset)
}

// ReconcileSimTime applies the same hard-snap-vs-nudge policy to the
// offset between the simulation's local tick time and the server's
// estimated time, padded by half the smoothed RTT and a jitter safety
// margin so a tick's input has time to cross the network before the
// server is due to apply it: a drift beyond HardSnapSimThreshold snaps
// straight to the target rather than nudging, since the ordinary
// correction would take too long to recover a usable frame rate.
func (s *Sync) ReconcileSimTime(simTime time.Time) (corrected time.Time, snapped bool) {
	if !s.haveEstimate {
		return simTime, false
	}
	target := s.estimated.Add(s.smoothedRTT/2 + JitterSafetyMargin)
	offset := target.Sub(simTime)
	if abs(offset) > HardSnapSimThreshold {
		return target, true
	}
	nudge := time.Duration(float64(offset) * NudgeGain)
	if nudge > NudgeClampPerFrame {
		nudge = NudgeClampPerFrame
	}
	if nudge < -NudgeClampPerFrame {
		nudge = -NudgeClampPerFrame
	}
	return simTime.Add(nudge), false
}

func (s *Sync) nudge(offset time.Duration) {
	nudge := time.Duration(float64(offset) * NudgeGain)
	if nudge > NudgeClampPerFrame {
		nudge = NudgeClampPerFrame
	}
	if nudge < -NudgeClampPerFrame {
		nudge = -NudgeClampPerFrame
	}
	s.estimated = s.estimated.Add(nudge)
}

func (s *Sync) updateSmoothedRTT(rtt time.Duration) {
	if !s.haveRTT {
		s.smoothedRTT = rtt
		s.haveRTT = true
		return
	}
	alpha := SmoothedRTTAlphaDown
	if rtt > s.smoothedRTT {
		alpha = SmoothedRTTAlphaUp
	}
	s.smoothedRTT = s.smoothedRTT + time.Duration(alpha*float64(rtt-s.smoothedRTT))
}

// selectBest picks the sample minimizing rtt + AgePenaltySeconds*age
// among recent samples.
func (s *Sync) selectBest(now time.Time) Sample {
	best := s.recent[0]
	bestScore := score(best, now)
	for _, sample := range s.recent[1:] {
		if sc := score(sample, now); sc < bestScore {
			best = sample
			bestScore = sc
		}
	}
	return best
}

func score(sample Sample, now time.Time) float64 {
	age := now.Sub(sample.ReceivedAt).Seconds()
	return sample.RTT.Seconds() + AgePenaltySeconds*age
}

// recentWindow bounds how long a sample stays eligible for selection.
const recentWindow = 2 * time.Second

func (s *Sync) trimRecent(now time.Time) {
	kept := s.recent[:0]
	for _, sample := range s.recent {
		if now.Sub(sample.ReceivedAt) <= recentWindow {
			kept = append(kept, sample)
		}
	}
	s.recent = kept
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
