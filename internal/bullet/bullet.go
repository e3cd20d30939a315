// Package bullet implements client-side bullet extrapolation (C8, spec
// §4.8): a locally-fired bullet is displayed provisionally from the
// moment of firing, promoted to authoritative tracking once the server
// confirms it with BulletSpawned, blended toward the authoritative
// position over a few ticks rather than snapped outright, and either
// snapped immediately on a bounce/expiry event or cancelled if
// unconfirmed after a timeout. Grounded on the pack's
// ProjectileNetworkSync (opd-ai/venture's pkg/network/projectile_sync.go),
// adapted from its predicted/confirmed map pair and mispredict-tolerance
// style to this spec's fixed-blend-factor reconciliation.
package bullet

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pjtunstall/by-a-thread/internal/mathutil"
	"github.com/pjtunstall/by-a-thread/internal/ring"
)

// BlendFactor is the fraction of the gap to the authoritative position
// closed per tick once a bullet is confirmed.
const BlendFactor = 0.25

// UnconfirmedTimeout is how long a provisional bullet is displayed
// before being cancelled if the server never confirms it.
const UnconfirmedTimeout = 500 * time.Millisecond

// Provisional is a client-predicted bullet awaiting server confirmation.
type Provisional struct {
	ClientBulletID uint32
	Origin         mathutil.Vector3
	Direction      mathutil.Vector3
	FiredAt        time.Time
	Speed          float64
}

// DisplayPosition returns where the provisional bullet should be
// rendered at elapsed time since firing, assuming straight-line travel
// at Speed: the client's best guess before any server confirmation.
func (p Provisional) DisplayPosition(now time.Time) mathutil.Vector3 {
	elapsed := now.Sub(p.FiredAt).Seconds()
	return p.Origin.Add(p.Direction.Normalize().Mul(p.Speed * elapsed))
}

// Confirmed is a server-acknowledged bullet the client blends its
// provisional (or freshly learned remote) copy toward the authoritative
// position for.
type Confirmed struct {
	BulletID      uint32
	Authoritative mathutil.Vector3
	Display       mathutil.Vector3
	Direction     mathutil.Vector3
	SpawnTick     ring.Tick
}

// Blend moves Display a BlendFactor fraction of the way toward
// Authoritative. Called once per tick after the authoritative position
// for the tick has been set.
func (c *Confirmed) Blend() {
	c.Display = c.Display.Lerp(c.Authoritative, BlendFactor)
}

// Snap updates Authoritative on a BulletBounced/BulletExpired event.
// Display is not moved here: it keeps blending toward the new
// authoritative position over the following ticks rather than popping
// to it immediately, the same as any other authoritative update.
func (c *Confirmed) Snap(pos mathutil.Vector3) {
	c.Authoritative = pos
}

// Tracker owns the full set of a client's in-flight bullets: its own
// provisional (unconfirmed) shots and every confirmed bullet (its own,
// promoted, or another player's).
type Tracker struct {
	log *logrus.Entry

	provisional map[uint32]Provisional // keyed by ClientBulletID
	confirmed   map[uint32]*Confirmed  // keyed by server BulletID
}

func NewTracker(log *logrus.Entry) *Tracker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Tracker{
		log:         log.WithField("component", "bullet"),
		provisional: make(map[uint32]Provisional),
		confirmed:   make(map[uint32]*Confirmed),
	}
}

// Fire records a newly locally-fired, unconfirmed bullet.
func (t *Tracker) Fire(clientBulletID uint32, origin, direction mathutil.Vector3, speed float64, now time.Time) {
	t.provisional[clientBulletID] = Provisional{
		ClientBulletID: clientBulletID,
		Origin:         origin,
		Direction:      direction,
		FiredAt:        now,
		Speed:          speed,
	}
}

// Confirm promotes a provisional bullet (if clientBulletID matches one
// owned by this client) or registers a new confirmed bullet owned by
// another player. The provisional's last predicted display position
// seeds the confirmed bullet's Display, so promotion doesn't pop.
func (t *Tracker) Confirm(serverBulletID, clientBulletID uint32, authoritative, direction mathutil.Vector3, spawnTick ring.Tick, now time.Time) {
	display := authoritative
	if p, ok := t.provisional[clientBulletID]; ok && clientBulletID != 0 {
		display = p.DisplayPosition(now)
		delete(t.provisional, clientBulletID)
	}
	t.confirmed[serverBulletID] = &Confirmed{
		BulletID:      serverBulletID,
		Authoritative: authoritative,
		Display:       display,
		Direction:     direction,
		SpawnTick:     spawnTick,
	}
}

// UpdateAuthoritative applies a new authoritative position for an
// already-confirmed bullet and blends toward it, as the tick's snapshot
// or extrapolated physics dictates.
func (t *Tracker) UpdateAuthoritative(serverBulletID uint32, pos mathutil.Vector3) {
	c, ok := t.confirmed[serverBulletID]
	if !ok {
		return
	}
	c.Authoritative = pos
	c.Blend()
}

// Bounce snaps a confirmed bullet to its authoritative bounce position
// and direction, skipping the blend for this tick.
func (t *Tracker) Bounce(serverBulletID uint32, pos, direction mathutil.Vector3) {
	c, ok := t.confirmed[serverBulletID]
	if !ok {
		return
	}
	c.Direction = direction
	c.Snap(pos)
}

// Expire removes a confirmed bullet on its authoritative removal.
func (t *Tracker) Expire(serverBulletID uint32) {
	delete(t.confirmed, serverBulletID)
}

// SweepUnconfirmed cancels provisional bullets that have gone
// unconfirmed for longer than UnconfirmedTimeout.
func (t *Tracker) SweepUnconfirmed(now time.Time) {
	for id, p := range t.provisional {
		if now.Sub(p.FiredAt) > UnconfirmedTimeout {
			delete(t.provisional, id)
			t.log.WithField("client_bullet_id", id).Debug("cancelling unconfirmed bullet after timeout")
		}
	}
}

// Provisionals returns the currently displayed provisional bullets.
func (t *Tracker) Provisionals() map[uint32]Provisional { return t.provisional }

// Confirmed returns the currently tracked confirmed bullets.
func (t *Tracker) ConfirmedBullets() map[uint32]*Confirmed { return t.confirmed }
