// Package input implements the input pipeline: the client's per-tick
// input history (used for replay by C6), redundant K=4 batch
// construction, and the server's zero-order-hold ingest with its 0.5s
// decay-to-empty safety cap.
package input

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pjtunstall/by-a-thread/internal/ring"
	"github.com/pjtunstall/by-a-thread/internal/sim"
)

// BatchSize is the number of redundant per-tick inputs (K) the client
// sends in each unreliable InputBatch.
const BatchSize = 4

// HoldCapTicks is the number of ticks the server will continue to hold
// (repeat) a client's last received input before decaying it to empty,
// a 0.5s-at-60Hz safety cap.
const HoldCapTicks = 30

// History is the client-side record of sent inputs, keyed by tick, used
// to replay from the reconciled tick forward (C6).
type History struct {
	ring *ring.Ring[sim.Input]
}

func NewHistory(capacity int) *History {
	return &History{ring: ring.New[sim.Input](capacity)}
}

func (h *History) Record(tick ring.Tick, in sim.Input) { h.ring.Insert(tick, in) }

func (h *History) Get(tick ring.Tick) (sim.Input, bool) { return h.ring.Get(tick) }

// Batch builds the redundant batch of the last BatchSize inputs ending
// at tick (oldest first), for the client to send unreliably.
func (h *History) Batch(tick ring.Tick) []TaggedInput {
	batch := make([]TaggedInput, 0, BatchSize)
	for i := BatchSize - 1; i >= 0; i-- {
		if int(tick) < i {
			continue
		}
		t := tick - ring.Tick(i)
		if in, ok := h.Get(t); ok {
			batch = append(batch, TaggedInput{Tick: t, Input: in})
		}
	}
	return batch
}

// TaggedInput pairs an Input with the tick it applies to.
type TaggedInput struct {
	Tick  ring.Tick
	Input sim.Input
}

// holdRingCapacity is the server's per-client tick-indexed input slot
// count: a power of two, per ring.Ring's requirement.
const holdRingCapacity = 128

// Hold is the server's per-client zero-order-hold state: a tick-indexed
// ring of received inputs plus the last one actually consumed. Resolve
// reads the slot tagged for the requested tick when present; otherwise
// it repeats the last consumed input rather than treating the player as
// giving no input at all -- until HoldCapTicks elapses since that tick,
// at which point it decays to empty so a genuinely disconnected or
// lagging client doesn't walk forever.
type Hold struct {
	log  *logrus.Entry
	ring *ring.Ring[sim.Input]

	last     sim.Input
	haveAny  bool
	lastTick ring.Tick
}

func NewHold(log *logrus.Entry) *Hold {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hold{
		log:  log.WithField("component", "input"),
		ring: ring.New[sim.Input](holdRingCapacity),
	}
}

// Ingest records newly-received tagged inputs from one client's batch
// into their own tick slots, so Resolve can later consume each tick's
// own input rather than whichever arrived most recently.
func (h *Hold) Ingest(batch []TaggedInput) {
	for _, ti := range batch {
		h.ring.Insert(ti.Tick, ti.Input)
	}
}

// Resolve returns the input the server should apply for tick: the input
// tagged exactly for tick if one has been ingested, else the last tick's
// input actually consumed, held steady across gaps, decayed to an empty
// Input once that hold has gone unrefreshed for more than HoldCapTicks.
func (h *Hold) Resolve(tick ring.Tick) sim.Input {
	if in, ok := h.ring.Get(tick); ok {
		h.last = in
		h.haveAny = true
		h.lastTick = tick
		return in
	}
	if !h.haveAny {
		return sim.Input{}
	}
	age := tick - h.lastTick
	if age > HoldCapTicks {
		h.log.WithField("tick", uint64(tick)).
			WithField("age_ticks", uint64(age)).
			Debug("input hold decayed to empty after cap")
		return sim.Input{}
	}
	return h.last
}

// HoldCapDuration is HoldCapTicks expressed as wall-clock time, for
// logging and documentation purposes.
func HoldCapDuration() time.Duration {
	return time.Duration(HoldCapTicks) * time.Second / 60
}
