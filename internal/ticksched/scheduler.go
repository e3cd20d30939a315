// Package ticksched implements fixed-timestep tick scheduling: a
// server loop running at a fixed tick rate, a client accumulator loop
// that may run several ticks per rendered frame, and the
// MAX_TICKS_PER_FRAME spiral guard.
package ticksched

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pjtunstall/by-a-thread/internal/clocksync"
	"github.com/pjtunstall/by-a-thread/internal/neterr"
	"github.com/pjtunstall/by-a-thread/internal/ring"
)

const (
	// TickRate is the server's fixed simulation rate.
	TickRate = 60
	// TickDuration is one simulation step's wall-clock length.
	TickDuration = time.Second / TickRate

	// SnapshotEveryNTicks broadcasts a snapshot every 3rd server tick,
	// i.e. at 20Hz.
	SnapshotEveryNTicks = 3

	// MaxTicksPerFrame caps how many simulation ticks the client's
	// accumulator loop will run in a single frame before it gives up
	// trying to catch up and logs a spiral diagnostic.
	MaxTicksPerFrame = 8
)

// Accumulator drives a fixed-timestep loop: callers feed it elapsed
// wall-clock time each frame, and it reports how many whole ticks to
// run. It is the client-side analogue of the server's free-running tick
// loop, since the client's render rate is not locked to TickRate. When
// given a clock, it also corrects its notion of simulated time against
// the clock's server-time estimate each frame, so the tick stream stays
// locked to the server rather than drifting on local wall-clock alone.
type Accumulator struct {
	log   *logrus.Entry
	clock *clocksync.Sync
	epoch time.Time

	accumulated  time.Duration
	currentTick  ring.Tick
	spiralEvents int
}

// NewAccumulator creates an accumulator starting at startTick. clock may
// be nil, in which case the accumulator runs on local wall-clock time
// alone with no server-time correction.
func NewAccumulator(log *logrus.Entry, startTick ring.Tick, clock *clocksync.Sync) *Accumulator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Accumulator{
		log:         log.WithField("component", "ticksched"),
		clock:       clock,
		epoch:       time.Now(),
		currentTick: startTick,
	}
}

// CurrentTick returns the tick most recently consumed by Advance.
func (a *Accumulator) CurrentTick() ring.Tick { return a.currentTick }

// Advance accounts for frameTime elapsed and returns the sequence of
// ticks to simulate this frame, in order. If the frame would require
// more than MaxTicksPerFrame ticks to catch up, the accumulator clamps
// to that many and drops the remainder (logging a Spiral diagnostic),
// rather than let the simulation fall permanently behind wall-clock
// time.
func (a *Accumulator) Advance(frameTime time.Duration) []ring.Tick {
	a.accumulated += frameTime

	var ticks []ring.Tick
	for a.accumulated >= TickDuration && len(ticks) < MaxTicksPerFrame {
		a.accumulated -= TickDuration
		a.currentTick++
		ticks = append(ticks, a.currentTick)
	}

	if a.accumulated >= TickDuration {
		dropped := a.accumulated / TickDuration
		a.accumulated = 0
		a.spiralEvents++
		err := neterr.Spiral("tick accumulator exceeded max ticks per frame")
		a.log.WithError(err).
			WithField("dropped_ticks", int64(dropped)).
			WithField("spiral_events", a.spiralEvents).
			Warn("physics spiral: clamping ticks this frame")
	}

	a.correctAgainstClock()

	return ticks
}

// correctAgainstClock nudges, or on a large offset snaps, accumulated
// against the clock's reconciled target time, folding the
// estimated-server-time correction into the accumulator itself rather
// than leaving clock sync as a number nothing consumes. A no-op when no
// clock was supplied.
func (a *Accumulator) correctAgainstClock() {
	if a.clock == nil {
		return
	}
	simulated := a.epoch.Add(time.Duration(a.currentTick)*TickDuration + a.accumulated)
	corrected, snapped := a.clock.ReconcileSimTime(simulated)
	delta := corrected.Sub(simulated)
	if snapped {
		a.log.WithField("offset_ms", delta.Milliseconds()).Warn("tick accumulator hard-snapped to clock estimate")
	}
	a.accumulated += delta
	if a.accumulated < 0 {
		a.accumulated = 0
	}
}

// SpiralEvents returns the number of frames that hit the spiral clamp,
// exposed for metrics (internal/metrics).
func (a *Accumulator) SpiralEvents() int { return a.spiralEvents }

// ShouldBroadcastSnapshot reports whether tick is one of the server's
// 20Hz snapshot ticks.
func ShouldBroadcastSnapshot(tick ring.Tick) bool {
	return uint64(tick)%SnapshotEveryNTicks == 0
}

// ServerLoop runs step once per TickDuration until ctx is stopped via
// the returned stop function, using a free-running time.Ticker.
type ServerLoop struct {
	ticker *time.Ticker
	done   chan struct{}
}

// NewServerLoop starts a ticker-driven loop invoking step(tick) once per
// TickDuration, beginning at startTick+1. Call Stop to end it.
func NewServerLoop(startTick ring.Tick, step func(ring.Tick)) *ServerLoop {
	l := &ServerLoop{
		ticker: time.NewTicker(TickDuration),
		done:   make(chan struct{}),
	}
	tick := startTick
	go func() {
		for {
			select {
			case <-l.ticker.C:
				tick++
				step(tick)
			case <-l.done:
				return
			}
		}
	}()
	return l
}

// Stop halts the loop. Safe to call once.
func (l *ServerLoop) Stop() {
	l.ticker.Stop()
	close(l.done)
}
