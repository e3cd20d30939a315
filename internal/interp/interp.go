// Package interp implements remote-player interpolation (C7, spec
// §4.7): render time trails estimated server time by a fixed delay,
// remote positions are linearly interpolated and yaw is interpolated
// along the shorter arc between the two bracketing snapshots, and a
// remote with only one available snapshot freezes rather than
// extrapolating, in the style of the pack's InterpolationBuffer
// (violence/pkg/network/latency.go).
package interp

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pjtunstall/by-a-thread/internal/mathutil"
	"github.com/pjtunstall/by-a-thread/internal/ring"
	"github.com/pjtunstall/by-a-thread/internal/snapshot"
)

// Result is one remote player's interpolated render state.
type Result struct {
	Position mathutil.Vector3
	Yaw      float64
	Health   int
	Frozen   bool // true if only one bracketing snapshot was available
}

// History is the minimal read interface interp needs over the client's
// received snapshot history.
type History interface {
	Get(tick ring.Tick) (snapshot.World, bool)
	NewestAtOrBefore(tick ring.Tick, lookback int) (snapshot.World, bool)
	OldestAtOrAfter(tick ring.Tick, lookahead int) (snapshot.World, bool)
}

// maxBracketTicks bounds how far Render searches for the snapshots that
// bracket a render tick. Snapshots arrive only every
// ticksched.SnapshotEveryNTicks ticks, so the bracket is almost never
// adjacent; this bound tolerates several consecutive dropped broadcasts
// before giving up.
const maxBracketTicks = 32

// Interpolator computes remote players' render state for a given render
// tick, bracketed between the two snapshots that straddle it.
type Interpolator struct {
	log *logrus.Entry
}

func New(log *logrus.Entry) *Interpolator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Interpolator{log: log.WithField("component", "interp")}
}

// Render computes clientID's interpolated state at a render time of
// renderTick+fraction (fraction in [0,1)) by bracketing between the
// newest available snapshot at or before that time (s0) and the oldest
// available snapshot after it (s1) -- which, since snapshots broadcast
// only every few ticks, are almost never renderTick and renderTick+1.
// The interpolation fraction is computed from the real tick gap between
// s0 and s1, not assumed to be 1. If no s1 is available yet, the result
// freezes at s0 rather than extrapolating: remote players are never
// extrapolated ahead of the newest data received.
func (p *Interpolator) Render(clientID uuid.UUID, renderTick ring.Tick, fraction float64, hist History) (Result, bool) {
	s0, ok := hist.NewestAtOrBefore(renderTick, maxBracketTicks)
	if !ok {
		return Result{}, false
	}
	i0 := s0.IndexOf(clientID)
	if i0 < 0 {
		return Result{}, false
	}
	p0 := s0.Players[i0]

	s1, ok := hist.OldestAtOrAfter(s0.Tick+1, maxBracketTicks)
	if !ok {
		return Result{Position: p0.Position, Yaw: p0.Yaw, Health: p0.Health, Frozen: true}, true
	}
	i1 := s1.IndexOf(clientID)
	if i1 < 0 {
		return Result{Position: p0.Position, Yaw: p0.Yaw, Health: p0.Health, Frozen: true}, true
	}
	p1 := s1.Players[i1]

	renderTime := float64(renderTick) + fraction
	t := (renderTime - float64(s0.Tick)) / float64(s1.Tick-s0.Tick)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}

	return Result{
		Position: p0.Position.Lerp(p1.Position, t),
		Yaw:      mathutil.LerpYawShortest(p0.Yaw, p1.Yaw, t),
		Health:   p1.Health,
	}, true
}
