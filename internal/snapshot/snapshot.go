// Package snapshot is the in-memory world-state model shared by the
// server's authoritative game loop and the client's reconciliation (C6)
// and interpolation (C7) logic. It is distinct from the wire format in
// internal/proto: the wire Snapshot is a flat, allocation-light encoding
// of exactly this data.
package snapshot

import (
	"fmt"
	"math/bits"

	"github.com/google/uuid"
	"github.com/pjtunstall/by-a-thread/internal/mathutil"
	"github.com/pjtunstall/by-a-thread/internal/ring"
)

// PlayerState is one player's authoritative state at a tick, as held
// server-side and as reconstructed client-side from the wire format.
type PlayerState struct {
	ClientID uuid.UUID
	Position mathutil.Vector3
	Velocity mathutil.Vector3
	Yaw      float64
	Pitch    float64
	Health   int
}

// World is the authoritative snapshot of every active player at a tick.
// ActiveMask's population count must equal len(Players); the bit at
// index i names whether Players[i]'s client is currently active.
type World struct {
	Tick       ring.Tick
	ActiveMask uint32
	Players    []PlayerState
}

// Validate checks the active_mask/len(players) invariant.
func (w World) Validate() error {
	if got, want := bits.OnesCount32(w.ActiveMask), len(w.Players); got != want {
		return fmt.Errorf("snapshot: active_mask popcount %d does not match %d players", got, want)
	}
	return nil
}

// IndexOf returns the index of clientID's entry in Players, or -1.
func (w World) IndexOf(clientID uuid.UUID) int {
	for i, p := range w.Players {
		if p.ClientID == clientID {
			return i
		}
	}
	return -1
}

// History is the server-side and client-side ring of recent Worlds,
// keyed by tick, that reconciliation (C6) and interpolation (C7) read
// from. Capacity must be a power of two per ring.Ring.
type History struct {
	ring *ring.Ring[World]
}

func NewHistory(capacity int) *History {
	return &History{ring: ring.New[World](capacity)}
}

func (h *History) Insert(w World) { h.ring.Insert(w.Tick, w) }

func (h *History) Get(tick ring.Tick) (World, bool) { return h.ring.Get(tick) }

// NewestAtOrBefore scans backward from tick for the newest available
// World at or before it, within lookback ticks. Used by reconciliation
// (C6) to find the snapshot to reconcile against when the exact tick's
// snapshot hasn't arrived yet.
func (h *History) NewestAtOrBefore(tick ring.Tick, lookback int) (World, bool) {
	for i := 0; i <= lookback; i++ {
		if tick < ring.Tick(i) {
			break
		}
		candidate := tick - ring.Tick(i)
		if w, ok := h.Get(candidate); ok && w.Tick == candidate {
			return w, true
		}
	}
	return World{}, false
}

// OldestAtOrAfter scans forward from tick for the oldest available World
// at or after it, within lookahead ticks. Used by interpolation (C7) to
// find the next bracketing snapshot when broadcasts are sparser than
// one per tick (e.g. the 20Hz snapshot rate against a 60Hz tick clock).
func (h *History) OldestAtOrAfter(tick ring.Tick, lookahead int) (World, bool) {
	for i := 0; i <= lookahead; i++ {
		candidate := tick + ring.Tick(i)
		if w, ok := h.Get(candidate); ok && w.Tick == candidate {
			return w, true
		}
	}
	return World{}, false
}
