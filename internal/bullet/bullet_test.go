package bullet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjtunstall/by-a-thread/internal/mathutil"
)

func TestFireThenConfirmPromotesProvisional(t *testing.T) {
	tr := NewTracker(nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.Fire(1, mathutil.Vector3{}, mathutil.Vector3{Z: 1}, 20, now)

	require.Len(t, tr.Provisionals(), 1)
	tr.Confirm(100, 1, mathutil.Vector3{Z: 5}, mathutil.Vector3{Z: 1}, 10, now.Add(100*time.Millisecond))

	assert.Len(t, tr.Provisionals(), 0, "confirmed bullet must be removed from provisional set")
	require.Len(t, tr.ConfirmedBullets(), 1)
}

func TestBlendMovesTowardAuthoritative(t *testing.T) {
	c := &Confirmed{Display: mathutil.Vector3{X: 0}, Authoritative: mathutil.Vector3{X: 100}}
	c.Blend()
	assert.InDelta(t, 25.0, c.Display.X, 1e-9)
}

func TestBounceUpdatesAuthoritativeButKeepsBlending(t *testing.T) {
	tr := NewTracker(nil)
	tr.Confirm(7, 0, mathutil.Vector3{}, mathutil.Vector3{Z: 1}, 1, time.Unix(0, 0))
	tr.Bounce(7, mathutil.Vector3{X: 50}, mathutil.Vector3{X: -1})

	c := tr.ConfirmedBullets()[7]
	require.NotNil(t, c)
	assert.InDelta(t, 50.0, c.Authoritative.X, 1e-9, "bounce must update the authoritative position")
	assert.InDelta(t, 0.0, c.Display.X, 1e-9, "bounce must not pop Display immediately, only Blend should move it")

	c.Blend()
	assert.InDelta(t, 12.5, c.Display.X, 1e-9, "display should continue blending toward the bounced position")
}

func TestExpireRemovesBullet(t *testing.T) {
	tr := NewTracker(nil)
	now := time.Now()
	_ = now
	tr.Confirm(5, 0, mathutil.Vector3{}, mathutil.Vector3{Z: 1}, 1, time.Unix(0, 0))
	require.Len(t, tr.ConfirmedBullets(), 1)
	tr.Expire(5)
	assert.Len(t, tr.ConfirmedBullets(), 0)
}

func TestSweepUnconfirmedCancelsAfterTimeout(t *testing.T) {
	tr := NewTracker(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.Fire(9, mathutil.Vector3{}, mathutil.Vector3{Z: 1}, 20, base)

	tr.SweepUnconfirmed(base.Add(100 * time.Millisecond))
	assert.Len(t, tr.Provisionals(), 1, "must not cancel before timeout")

	tr.SweepUnconfirmed(base.Add(UnconfirmedTimeout + time.Millisecond))
	assert.Len(t, tr.Provisionals(), 0, "must cancel after timeout")
}
