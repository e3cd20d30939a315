// Command server runs the authoritative game server: accepts client
// connections over the default KCP transport, runs admission, and
// drives the fixed-rate simulation tick loop, broadcasting snapshots
// at 20Hz.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/pjtunstall/by-a-thread/internal/admission"
	"github.com/pjtunstall/by-a-thread/internal/config"
	"github.com/pjtunstall/by-a-thread/internal/input"
	"github.com/pjtunstall/by-a-thread/internal/mathutil"
	"github.com/pjtunstall/by-a-thread/internal/metrics"
	"github.com/pjtunstall/by-a-thread/internal/proto"
	"github.com/pjtunstall/by-a-thread/internal/ring"
	"github.com/pjtunstall/by-a-thread/internal/session"
	"github.com/pjtunstall/by-a-thread/internal/sim"
	"github.com/pjtunstall/by-a-thread/internal/snapshot"
	"github.com/pjtunstall/by-a-thread/internal/ticksched"
	"github.com/pjtunstall/by-a-thread/internal/transport"
	"github.com/pjtunstall/by-a-thread/internal/transport/kcptransport"
)

// connectedClient is the server's per-client bookkeeping: its transport
// handle, authoritative physics state, and input hold.
type connectedClient struct {
	handle   transport.Handle
	clientID uuid.UUID
	username string
	isHost   bool

	hold  *input.Hold
	state sim.PlayerPhysicsState
}

type server struct {
	log     *logrus.Entry
	cfg     config.Server
	metrics *metrics.Server
	gate    *admission.Gate
	fsm     *session.Server
	step    sim.Step

	mu      sync.Mutex
	clients map[uuid.UUID]*connectedClient

	currentTick int64 // atomic, ring.Tick truncated to int64
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	entry := logrus.NewEntry(log).WithField("component", "cmd.server")

	cfg := config.LoadServer()

	registry := prometheus.NewRegistry()
	serverMetrics := metrics.NewServer(registry)
	go serveMetrics(entry, cfg.MetricsAddr, registry)

	gate, err := admission.NewGate(entry, cfg.MaxPlayers)
	if err != nil {
		entry.WithError(err).Fatal("failed to create admission gate")
	}
	entry.WithField("passcode", gate.Passcode()).Info("game ready, share passcode with players")

	srv := &server{
		log:     entry,
		cfg:     cfg,
		metrics: serverMetrics,
		gate:    gate,
		fsm:     session.NewServer(entry),
		step:    sim.Basic,
		clients: make(map[uuid.UUID]*connectedClient),
	}

	addr := fmt.Sprintf("%s:%d", cfg.IP, cfg.Port)
	listener, err := kcptransport.Listen(entry, addr)
	if err != nil {
		entry.WithError(err).Fatal("failed to start transport listener")
	}
	defer listener.Close()
	entry.WithField("addr", addr).Info("listening")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.acceptLoop(ctx, listener)

	loop := ticksched.NewServerLoop(0, srv.tick)
	defer loop.Stop()

	waitForShutdown(entry)
}

func serveMetrics(log *logrus.Entry, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.WithField("addr", addr).Info("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics server stopped")
	}
}

func waitForShutdown(log *logrus.Entry) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
}

func (s *server) acceptLoop(ctx context.Context, listener transport.Listener) {
	for {
		handle, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.WithError(err).Warn("accept failed")
			continue
		}
		go s.handleClient(ctx, handle)
	}
}

func (s *server) handleClient(ctx context.Context, handle transport.Handle) {
	defer handle.Close()
	s.log.WithField("remote_addr", handle.RemoteAddr().String()).Info("client connected")

	for {
		channel, data, err := handle.Receive(ctx)
		if err != nil {
			s.log.WithError(err).Debug("client disconnected")
			return
		}
		s.metrics.MessagesReceived.Inc()

		msg, err := proto.Decode(data)
		if err != nil {
			s.log.WithError(err).Debug("dropping undecodable frame")
			continue
		}
		s.dispatch(handle, channel, msg)
	}
}

func (s *server) dispatch(handle transport.Handle, channel transport.Channel, msg any) {
	switch m := msg.(type) {
	case *proto.Passcode:
		s.handlePasscode(handle, m)
	case *proto.InputBatch:
		s.handleInputBatch(handle, m)
	case *proto.TokenPresent:
		s.handleTokenPresent(handle, m)
	case *proto.Ping:
		s.handlePing(handle, m)
	default:
		s.log.WithField("type", fmt.Sprintf("%T", m)).Debug("unhandled message kind")
	}
}

func (s *server) handlePasscode(handle transport.Handle, m *proto.Passcode) {
	token, clientID, isHost, err := s.gate.Admit(m.Code, handle.RemoteAddr())
	if err != nil {
		_ = handle.Send(transport.ReliableOrdered, mustEncode(&proto.AuthFailed{Reason: err.Error()}))
		return
	}

	s.mu.Lock()
	s.clients[clientID] = &connectedClient{
		handle:   handle,
		clientID: clientID,
		isHost:   isHost,
		hold:     input.NewHold(s.log),
	}
	s.metrics.ConnectedClients.Set(float64(len(s.clients)))
	s.mu.Unlock()

	reply := &proto.AuthOk{IsHost: isHost, TokenJSON: []byte(token)}
	gameID := s.gate.GameID()
	copy(reply.ClientID[:], clientID[:])
	copy(reply.GameID[:], gameID[:])
	_ = handle.Send(transport.ReliableOrdered, mustEncode(reply))
	s.metrics.MessagesSent.Inc()
}

// handleTokenPresent completes the admission round trip: the client
// echoes back the connect token it was issued in AuthOk, and the
// server verifies it against the endpoint it arrived from before
// trusting this connection's claimed identity any further.
func (s *server) handleTokenPresent(handle transport.Handle, m *proto.TokenPresent) {
	clientID, _, err := s.gate.Verify(string(m.TokenJSON), handle.RemoteAddr())
	if err != nil {
		s.log.WithError(err).Warn("rejecting client with invalid presented token")
		_ = handle.Send(transport.ReliableOrdered, mustEncode(&proto.Kick{Reason: proto.KickReasonAuthFailed}))
		handle.Close()
		return
	}

	s.mu.Lock()
	c, ok := s.clients[clientID]
	s.mu.Unlock()
	if !ok || c.handle != handle {
		s.log.WithField("client_id", clientID).Warn("presented token verified for an identity not bound to this connection")
		_ = handle.Send(transport.ReliableOrdered, mustEncode(&proto.Kick{Reason: proto.KickReasonAuthFailed}))
		handle.Close()
		return
	}
	s.log.WithField("client_id", clientID).Debug("connect token verified")
}

// handlePing echoes the current tick back as a ServerTime reply
// carrying the client's own sequence number, letting the client pair
// its send timestamp with the reply to measure real RTT (C2).
func (s *server) handlePing(handle transport.Handle, m *proto.Ping) {
	tick := atomic.LoadInt64(&s.currentTick)
	reply := &proto.ServerTime{ServerTick: uint64(tick), ClientSendSeq: m.Seq}
	if err := handle.Send(transport.Unreliable, mustEncode(reply)); err != nil {
		s.log.WithError(err).Debug("server time reply failed")
		return
	}
	s.metrics.MessagesSent.Inc()
}

func (s *server) handleInputBatch(handle transport.Handle, m *proto.InputBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.handle != handle {
			continue
		}
		tagged := make([]input.TaggedInput, len(m.Inputs))
		for i, ti := range m.Inputs {
			tagged[i] = input.TaggedInput{
				Tick: ring.Tick(ti.Tick),
				Input: sim.Input{
					Move:       mathutil.Vector2{X: float64(ti.MoveX), Y: float64(ti.MoveY)},
					YawDelta:   float64(ti.YawDelta),
					PitchDelta: float64(ti.PitchDelta),
					Fire:       ti.Fire,
					Jump:       ti.Jump,
				},
			}
		}
		c.hold.Ingest(tagged)
		return
	}
}

// tick runs one authoritative simulation step and, on every 3rd tick,
// broadcasts a snapshot.
func (s *server) tick(t ring.Tick) {
	atomic.StoreInt64(&s.currentTick, int64(t))
	start := time.Now()
	defer func() {
		s.metrics.TickDuration.Observe(time.Since(start).Seconds())
		s.metrics.TicksProcessed.Inc()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	world := snapshot.World{Tick: t}
	var mask uint32
	i := 0
	for id, c := range s.clients {
		in := c.hold.Resolve(t)
		c.state = s.step(c.state, in, 1.0/float64(ticksched.TickRate))
		world.Players = append(world.Players, snapshot.PlayerState{
			ClientID: id,
			Position: c.state.Position,
			Velocity: c.state.Velocity,
			Yaw:      c.state.Yaw,
			Pitch:    c.state.Pitch,
			Health:   100,
		})
		mask |= 1 << uint(i)
		i++
	}
	world.ActiveMask = mask

	if !ticksched.ShouldBroadcastSnapshot(t) {
		return
	}
	s.broadcastSnapshot(world)
}

func (s *server) broadcastSnapshot(world snapshot.World) {
	for _, c := range s.clients {
		wire := &proto.Snapshot{Tick: uint64(world.Tick), ActiveMask: world.ActiveMask}
		for _, p := range world.Players {
			ps := proto.PlayerSnapshot{
				PosX:   float32(p.Position.X),
				PosY:   float32(p.Position.Y),
				PosZ:   float32(p.Position.Z),
				Yaw:    mathutil.EncodeYaw(p.Yaw),
				Health: uint16(p.Health),
			}
			copy(ps.ClientID[:], p.ClientID[:])
			wire.Players = append(wire.Players, ps)
			if p.ClientID == c.clientID {
				wire.Local = &proto.LocalPlayerSnapshot{
					PosX:   ps.PosX,
					PosY:   ps.PosY,
					PosZ:   ps.PosZ,
					VelX:   float32(p.Velocity.X),
					VelY:   float32(p.Velocity.Y),
					VelZ:   float32(p.Velocity.Z),
					Yaw:    float32(p.Yaw),
					Pitch:  float32(p.Pitch),
					Health: uint16(p.Health),
				}
			}
		}
		if err := c.handle.Send(transport.Unreliable, mustEncode(wire)); err != nil {
			s.log.WithError(err).Debug("snapshot send failed")
			continue
		}
		s.metrics.MessagesSent.Inc()
	}
}

func mustEncode(msg any) []byte {
	data, err := proto.Encode(msg)
	if err != nil {
		// Encode only fails for an unregistered message type, a
		// programmer error caught long before this would ship.
		panic(err)
	}
	return data
}
