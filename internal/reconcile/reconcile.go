// Package reconcile implements the client's local-player prediction and
// reconciliation: snap to the newest authoritative snapshot at or
// before the current tick, replay locally recorded inputs forward with
// the deterministic sim.Step, then apply the current tick's fresh
// input. A death on the reconciliation tick suppresses reconciliation
// for that round.
package reconcile

import (
	"github.com/sirupsen/logrus"

	"github.com/pjtunstall/by-a-thread/internal/input"
	"github.com/pjtunstall/by-a-thread/internal/ring"
	"github.com/pjtunstall/by-a-thread/internal/sim"
)

// LookbackTicks bounds how far back Reconciler will search for a usable
// snapshot before giving up and running prediction unreconciled.
const LookbackTicks = 16

// FixedDt is the simulation step used during replay, matching the
// server's fixed tick duration.
const FixedDt = 1.0 / 60.0

// Snapshot is the minimal authoritative data reconciliation needs for
// the local player at a tick (position, velocity, facing).
type Snapshot struct {
	Tick  ring.Tick
	State sim.PlayerPhysicsState
}

// SnapshotSource looks up the newest available local-player snapshot at
// or before tick, within lookback ticks.
type SnapshotSource interface {
	NewestAtOrBefore(tick ring.Tick, lookback int) (Snapshot, bool)
}

// Reconciler holds the local player's current predicted state and the
// input history used to replay it.
type Reconciler struct {
	log     *logrus.Entry
	history *input.History
	current sim.PlayerPhysicsState
	step    sim.Step
}

func New(log *logrus.Entry, history *input.History, step sim.Step) *Reconciler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Reconciler{
		log:     log.WithField("component", "reconcile"),
		history: history,
		step:    step,
	}
}

// State returns the reconciler's current predicted local-player state.
func (r *Reconciler) State() sim.PlayerPhysicsState { return r.current }

// SetState forcibly overrides the predicted state, used once at spawn.
func (r *Reconciler) SetState(s sim.PlayerPhysicsState) { r.current = s }

// Reconcile performs one round of reconciliation and prediction for
// currentTick: unless suppressed (a death was reported this round), it
// snaps to the newest snapshot at or before currentTick
// and replays recorded inputs forward from there; it then applies
// currentTick's own input on top, always, so prediction continues even
// when no new snapshot has arrived.
func (r *Reconciler) Reconcile(currentTick ring.Tick, src SnapshotSource, suppressed bool, freshInput sim.Input) {
	if !suppressed {
		if snap, ok := src.NewestAtOrBefore(currentTick, LookbackTicks); ok {
			r.current = snap.State
			r.replay(snap.Tick, currentTick)
		} else {
			r.log.WithField("tick", uint64(currentTick)).
				Debug("no snapshot within lookback, continuing unreconciled prediction")
		}
	}

	r.current = r.step(r.current, freshInput, FixedDt)
	r.history.Record(currentTick, freshInput)
}

// replay reapplies every recorded input strictly after fromTick up to
// and including toTick-1 (toTick's own input is applied by the caller
// separately, since it may not yet be recorded when reconciliation
// runs). Replay is deterministic: same starting state and same inputs
// always produce the same resulting state, since sim.Step is pure.
func (r *Reconciler) replay(fromTick, toTick ring.Tick) {
	if toTick <= fromTick {
		return
	}
	for t := fromTick + 1; t < toTick; t++ {
		in, _ := r.history.Get(t) // missing history replays as empty input, not a skipped tick
		r.current = r.step(r.current, in, FixedDt)
	}
}
