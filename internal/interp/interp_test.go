package interp

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjtunstall/by-a-thread/internal/mathutil"
	"github.com/pjtunstall/by-a-thread/internal/ring"
	"github.com/pjtunstall/by-a-thread/internal/snapshot"
)

type fakeHistory map[ring.Tick]snapshot.World

func (f fakeHistory) Get(tick ring.Tick) (snapshot.World, bool) {
	w, ok := f[tick]
	return w, ok
}

func (f fakeHistory) NewestAtOrBefore(tick ring.Tick, lookback int) (snapshot.World, bool) {
	for i := 0; i <= lookback; i++ {
		if tick < ring.Tick(i) {
			break
		}
		if w, ok := f[tick-ring.Tick(i)]; ok {
			return w, true
		}
	}
	return snapshot.World{}, false
}

func (f fakeHistory) OldestAtOrAfter(tick ring.Tick, lookahead int) (snapshot.World, bool) {
	for i := 0; i <= lookahead; i++ {
		if w, ok := f[tick+ring.Tick(i)]; ok {
			return w, true
		}
	}
	return snapshot.World{}, false
}

func TestRenderInterpolatesBetweenBrackets(t *testing.T) {
	id := uuid.New()
	hist := fakeHistory{
		10: {Tick: 10, Players: []snapshot.PlayerState{{ClientID: id, Position: mathutil.Vector3{X: 0}}}},
		11: {Tick: 11, Players: []snapshot.PlayerState{{ClientID: id, Position: mathutil.Vector3{X: 10}}}},
	}
	p := New(nil)
	res, ok := p.Render(id, 10, 0.5, hist)
	require.True(t, ok)
	assert.False(t, res.Frozen)
	assert.InDelta(t, 5.0, res.Position.X, 1e-9)
}

// TestRenderBracketsSparseSnapshots mirrors the documented two-snapshots-
// apart scenario: broadcasts land on ticks 600 and 603 (ticks 601, 602
// lost), and the render time sits at 601.5, i.e. 1.5/3 of the way across
// the real gap between brackets.
func TestRenderBracketsSparseSnapshots(t *testing.T) {
	id := uuid.New()
	hist := fakeHistory{
		600: {Tick: 600, Players: []snapshot.PlayerState{{ClientID: id, Position: mathutil.Vector3{X: 0}}}},
		603: {Tick: 603, Players: []snapshot.PlayerState{{ClientID: id, Position: mathutil.Vector3{X: 30}}}},
	}
	p := New(nil)
	res, ok := p.Render(id, 601, 0.5, hist)
	require.True(t, ok)
	assert.False(t, res.Frozen)
	assert.InDelta(t, 15.0, res.Position.X, 1e-9)
}

func TestRenderFreezesWithoutNextSnapshot(t *testing.T) {
	id := uuid.New()
	hist := fakeHistory{
		10: {Tick: 10, Players: []snapshot.PlayerState{{ClientID: id, Position: mathutil.Vector3{X: 3}}}},
	}
	p := New(nil)
	res, ok := p.Render(id, 10, 0.5, hist)
	require.True(t, ok)
	assert.True(t, res.Frozen)
	assert.InDelta(t, 3.0, res.Position.X, 1e-9)
}

func TestRenderMissingBaseSnapshotFails(t *testing.T) {
	hist := fakeHistory{}
	p := New(nil)
	_, ok := p.Render(uuid.New(), 10, 0.5, hist)
	assert.False(t, ok)
}

func TestRenderYawTakesShorterArc(t *testing.T) {
	id := uuid.New()
	hist := fakeHistory{
		10: {Tick: 10, Players: []snapshot.PlayerState{{ClientID: id, Yaw: 6.0}}}, // close to 2π
		11: {Tick: 11, Players: []snapshot.PlayerState{{ClientID: id, Yaw: 0.2}}},
	}
	p := New(nil)
	res, ok := p.Render(id, 10, 0.5, hist)
	require.True(t, ok)
	// interpolating the short way should stay close to the 2π wrap point,
	// not swing back through ~3 radians.
	assert.True(t, res.Yaw > 5.5 || res.Yaw < 1.0)
}
