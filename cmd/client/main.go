// Command client runs one player's connection: dials the default KCP
// transport, drives the lobby/admission handshake through the session
// state machine, then runs the fixed-timestep accumulator loop driving
// local prediction/reconciliation (C6), remote interpolation (C7), and
// bullet extrapolation (C8).
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pjtunstall/by-a-thread/internal/bullet"
	"github.com/pjtunstall/by-a-thread/internal/clocksync"
	"github.com/pjtunstall/by-a-thread/internal/config"
	"github.com/pjtunstall/by-a-thread/internal/input"
	"github.com/pjtunstall/by-a-thread/internal/interp"
	"github.com/pjtunstall/by-a-thread/internal/mathutil"
	"github.com/pjtunstall/by-a-thread/internal/proto"
	"github.com/pjtunstall/by-a-thread/internal/reconcile"
	"github.com/pjtunstall/by-a-thread/internal/ring"
	"github.com/pjtunstall/by-a-thread/internal/session"
	"github.com/pjtunstall/by-a-thread/internal/sim"
	"github.com/pjtunstall/by-a-thread/internal/snapshot"
	"github.com/pjtunstall/by-a-thread/internal/ticksched"
	"github.com/pjtunstall/by-a-thread/internal/transport"
	"github.com/pjtunstall/by-a-thread/internal/transport/kcptransport"
)

// pingInterval is how often the client sends a Ping to measure RTT and
// feed a fresh sample to clock sync (C2).
const pingInterval = 200 * time.Millisecond

// pendingPingTTL bounds how long an unanswered ping's send time is kept,
// so a lost reply doesn't leak map entries forever.
const pendingPingTTL = 5 * time.Second

type client struct {
	log      *logrus.Entry
	handle   transport.Handle
	fsm      *session.Client
	clientID uuid.UUID

	clock       *clocksync.Sync
	inputHist   *input.History
	reconciler  *reconcile.Reconciler
	interpolate *interp.Interpolator
	bullets     *bullet.Tracker

	history *snapshot.History
	unwrap  ring.Unwrapper

	pingSeq      uint32
	lastPing     time.Time
	pendingPings map[uint32]time.Time
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	entry := logrus.NewEntry(log).WithField("component", "cmd.client")

	cfg := config.LoadClient()

	dialer := kcptransport.NewDialer(entry)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	handle, err := dialer.Dial(ctx, cfg.ServerAddr)
	cancel()
	if err != nil {
		entry.WithError(err).Fatal("failed to connect to server")
	}
	defer handle.Close()

	c := &client{
		log:          entry,
		handle:       handle,
		fsm:          session.NewClient(entry),
		clock:        clocksync.New(entry),
		inputHist:    input.NewHistory(1024),
		interpolate:  interp.New(entry),
		bullets:      bullet.NewTracker(entry),
		history:      snapshot.NewHistory(1024),
		pendingPings: make(map[uint32]time.Time),
	}
	c.reconciler = reconcile.New(entry, c.inputHist, sim.Basic)

	if err := c.authenticate(); err != nil {
		entry.WithError(err).Fatal("authentication failed")
	}

	c.runLoop(context.Background())
}

func (c *client) authenticate() error {
	fmt.Print("enter passcode: ")
	var passcode string
	fmt.Scanln(&passcode)

	if err := c.handle.Send(transport.ReliableOrdered, mustEncode(&proto.Passcode{Code: passcode})); err != nil {
		return err
	}

	_, data, err := c.handle.Receive(context.Background())
	if err != nil {
		return err
	}
	msg, err := proto.Decode(data)
	if err != nil {
		return err
	}
	switch m := msg.(type) {
	case *proto.AuthOk:
		id, err := uuid.FromBytes(m.ClientID[:])
		if err != nil {
			return fmt.Errorf("parsing client id from AuthOk: %w", err)
		}
		c.clientID = id
		if err := c.handle.Send(transport.ReliableOrdered, mustEncode(&proto.TokenPresent{TokenJSON: m.TokenJSON})); err != nil {
			return fmt.Errorf("presenting connect token: %w", err)
		}
		c.log.WithField("is_host", m.IsHost).Info("authenticated")
		return nil
	case *proto.AuthFailed:
		return fmt.Errorf("server rejected passcode: %s", m.Reason)
	default:
		return fmt.Errorf("unexpected message during authentication: %T", m)
	}
}

// runLoop drives the client's single-threaded main loop: receive every
// pending reliable message first, then unreliable, then run
// reconciliation/prediction for any ticks the accumulator has newly
// crossed, in a fixed order each frame.
func (c *client) runLoop(ctx context.Context) {
	accum := ticksched.NewAccumulator(c.log, 0, c.clock)
	lastFrame := time.Now()
	deathThisRound := false

	for {
		now := time.Now()
		frameTime := now.Sub(lastFrame)
		lastFrame = now

		c.drainReliable(ctx, &deathThisRound)
		c.drainUnreliable(ctx)
		c.maybeSendPing(now)

		ticks := accum.Advance(frameTime)
		for _, tick := range ticks {
			fresh := sim.Input{} // populated from local input device, out of this engine's scope
			c.reconciler.Reconcile(tick, reconcileAdapter{c.history, c.clientID}, deathThisRound, fresh)
			deathThisRound = false
		}
		for _, cb := range c.bullets.ConfirmedBullets() {
			cb.Blend()
		}
		c.bullets.SweepUnconfirmed(now)

		time.Sleep(time.Millisecond) // yield, the loop's only suspension point
	}
}

// maybeSendPing sends a Ping at most once per pingInterval, recording
// the send time so the matching ServerTime reply can be turned into an
// RTT measurement.
func (c *client) maybeSendPing(now time.Time) {
	if now.Sub(c.lastPing) < pingInterval {
		return
	}
	c.lastPing = now
	c.pingSeq++
	seq := c.pingSeq
	c.pendingPings[seq] = now
	for s, sentAt := range c.pendingPings {
		if now.Sub(sentAt) > pendingPingTTL {
			delete(c.pendingPings, s)
		}
	}
	if err := c.handle.Send(transport.Unreliable, mustEncode(&proto.Ping{Seq: seq})); err != nil {
		c.log.WithError(err).Debug("ping send failed")
	}
}

// teardownGame resets all game-local state when leaving Game, so the
// next match starts from a clean slate rather than carrying over stale
// bullets, snapshots, or replay history.
func (c *client) teardownGame() {
	c.bullets = bullet.NewTracker(c.log)
	c.history = snapshot.NewHistory(1024)
	c.inputHist = input.NewHistory(1024)
	c.reconciler = reconcile.New(c.log, c.inputHist, sim.Basic)
}

func (c *client) drainReliable(ctx context.Context, deathThisRound *bool) {
	for {
		channel, data, msg, ok := c.tryReceive(ctx, transport.ReliableOrdered)
		if !ok {
			return
		}
		_ = channel
		switch m := msg.(type) {
		case *proto.PlayerDied:
			*deathThisRound = true
			_, _ = c.fsm.Handle(session.EventLocalPlayerDied)
		case *proto.Leaderboard:
			_, _ = c.fsm.Handle(session.EventMatchEnded)
			c.teardownGame()
			_, _ = c.fsm.Handle(session.EventChatAdvance)
		case *proto.Kick:
			_, _ = c.fsm.Handle(session.EventKicked)
		case *proto.BulletSpawned:
			c.bullets.Confirm(m.BulletID, m.ClientBulletID,
				mathutil.Vector3{X: float64(m.OriginX), Y: float64(m.OriginY), Z: float64(m.OriginZ)},
				mathutil.Vector3{X: float64(m.DirX), Y: float64(m.DirY), Z: float64(m.DirZ)},
				ring.Tick(m.SpawnTick), time.Now())
		case *proto.BulletBounced:
			c.bullets.Bounce(m.BulletID,
				mathutil.Vector3{X: float64(m.PosX), Y: float64(m.PosY), Z: float64(m.PosZ)},
				mathutil.Vector3{X: float64(m.DirX), Y: float64(m.DirY), Z: float64(m.DirZ)})
		case *proto.BulletExpired:
			c.bullets.Expire(m.BulletID)
		}
	}
}

func (c *client) drainUnreliable(ctx context.Context) {
	for {
		_, data, msg, ok := c.tryReceive(ctx, transport.Unreliable)
		if !ok {
			return
		}
		_ = data
		switch m := msg.(type) {
		case *proto.Snapshot:
			c.applySnapshot(m)
		case *proto.ServerTime:
			now := time.Now()
			sentAt, ok := c.pendingPings[m.ClientSendSeq]
			if !ok {
				c.log.Debug("dropping server time reply for unknown or stale ping sequence")
				continue
			}
			delete(c.pendingPings, m.ClientSendSeq)
			c.clock.Observe(clocksync.Sample{
				ServerTime: time.Unix(0, int64(m.ServerTick)*int64(ticksched.TickDuration)),
				RTT:        now.Sub(sentAt),
				ReceivedAt: now,
			}, now)
		}
	}
}

// tryReceive does a non-blocking receive: it returns ok=false instead
// of blocking when nothing is pending, so the single-threaded loop
// never stalls mid-frame.
func (c *client) tryReceive(ctx context.Context, want transport.Channel) (transport.Channel, []byte, any, bool) {
	recvCtx, cancel := context.WithTimeout(ctx, 0)
	defer cancel()
	channel, data, err := c.handle.Receive(recvCtx)
	if err != nil {
		return 0, nil, nil, false
	}
	if channel != want {
		return 0, nil, nil, false
	}
	msg, err := proto.Decode(data)
	if err != nil {
		c.log.WithError(err).Debug("dropping undecodable frame")
		return 0, nil, nil, false
	}
	return channel, data, msg, true
}

func (c *client) applySnapshot(m *proto.Snapshot) {
	world := snapshot.World{Tick: ring.Tick(m.Tick), ActiveMask: m.ActiveMask}
	for _, p := range m.Players {
		ps := snapshot.PlayerState{
			Position: mathutil.Vector3{X: float64(p.PosX), Y: float64(p.PosY), Z: float64(p.PosZ)},
			Yaw:      mathutil.DecodeYaw(p.Yaw),
			Health:   int(p.Health),
		}
		copy(ps.ClientID[:], p.ClientID[:])
		world.Players = append(world.Players, ps)
	}

	if err := world.Validate(); err != nil {
		c.log.WithError(err).Debug("dropping snapshot that fails the active-mask invariant")
		return
	}

	// The wire's per-player entries never carry velocity (only
	// LocalPlayerSnapshot does), so patch it into our own entry from
	// Local before reconciliation reads this world back out: otherwise
	// replay would always start from a zero velocity.
	if m.Local != nil {
		local := sim.PlayerPhysicsState{
			Position: mathutil.Vector3{X: float64(m.Local.PosX), Y: float64(m.Local.PosY), Z: float64(m.Local.PosZ)},
			Velocity: mathutil.Vector3{X: float64(m.Local.VelX), Y: float64(m.Local.VelY), Z: float64(m.Local.VelZ)},
			Yaw:      float64(m.Local.Yaw),
			Pitch:    float64(m.Local.Pitch),
		}
		c.reconciler.SetState(local)
		if i := world.IndexOf(c.clientID); i >= 0 {
			world.Players[i].Velocity = local.Velocity
			world.Players[i].Pitch = local.Pitch
		}
	}

	c.history.Insert(world)
}

// reconcileAdapter adapts snapshot.History to reconcile.SnapshotSource,
// narrowing a full World down to the local player's own physics state,
// looked up by client id rather than assumed to be any fixed slot.
type reconcileAdapter struct {
	history  *snapshot.History
	clientID uuid.UUID
}

func (a reconcileAdapter) NewestAtOrBefore(tick ring.Tick, lookback int) (reconcile.Snapshot, bool) {
	w, ok := a.history.NewestAtOrBefore(tick, lookback)
	if !ok {
		return reconcile.Snapshot{}, false
	}
	i := w.IndexOf(a.clientID)
	if i < 0 {
		return reconcile.Snapshot{}, false
	}
	p := w.Players[i]
	return reconcile.Snapshot{
		Tick: w.Tick,
		State: sim.PlayerPhysicsState{
			Position: p.Position,
			Velocity: p.Velocity,
			Yaw:      p.Yaw,
			Pitch:    p.Pitch,
		},
	}, true
}

func mustEncode(msg any) []byte {
	data, err := proto.Encode(msg)
	if err != nil {
		panic(err)
	}
	return data
}
