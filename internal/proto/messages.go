// Package proto implements the wire message codec: a version byte, a
// tagged sum type per message kind, and bytewise-stable encoding via
// encoding/binary.
package proto

// Version is the wire protocol version byte. Bumped whenever a message's
// binary layout changes incompatibly.
const Version uint8 = 1

// Kind tags the sum type carried by an Envelope.
type Kind uint8

const (
	// Reliable, client -> server.
	KindPasscode Kind = iota + 1
	KindUsernameRequest
	KindChatSend
	KindStartGame
	KindDifficultyChoice
	KindBulletFired
	KindTokenPresent

	// Reliable, server -> client.
	KindAuthOk
	KindAuthFailed
	KindUsernameAck
	KindUsernameReject
	KindChatBroadcast
	KindSystemMessage
	KindCountdownStarted
	KindGameStarting
	KindBulletSpawned
	KindBulletBounced
	KindBulletExpired
	KindPlayerHit
	KindPlayerDied
	KindLeaderboard
	KindKick

	// Unreliable, client -> server.
	KindInputBatch
	KindPing

	// Unreliable, server -> client.
	KindSnapshot
	KindServerTime
)

// Difficulty mirrors the maze generator's difficulty levels, opaque to
// this package beyond their wire value; maze generation itself is out
// of scope for this engine.
type Difficulty uint8

const (
	DifficultyEasy Difficulty = iota
	DifficultyMedium
	DifficultyHard
)

// KickReason classifies why the server is terminating a connection.
type KickReason uint8

const (
	KickReasonUnspecified KickReason = iota
	KickReasonCapacity
	KickReasonGameInProgress
	KickReasonAuthFailed
	KickReasonIdleTimeout
	KickReasonProtocolViolation
)

// --- Reliable, client -> server ---

// Passcode is sent once, immediately after connecting, to authenticate
// against a game's admission passcode.
type Passcode struct {
	Code string
}

// UsernameRequest proposes a username during ChoosingUsername.
type UsernameRequest struct {
	Username string
}

// ChatSend carries a chat line from the client during Chat or
// AfterGameChat.
type ChatSend struct {
	Text string
}

// StartGame is sent by the host client to begin the countdown once at
// least one difficulty vote exists.
type StartGame struct{}

// DifficultyChoice records one client's vote during ChoosingDifficulty.
type DifficultyChoice struct {
	Difficulty Difficulty
}

// BulletFired is the client's provisional, locally-predicted shot: the
// server either confirms it with BulletSpawned or silently drops it.
type BulletFired struct {
	ClientBulletID uint32
	OriginX        float32
	OriginY        float32
	OriginZ        float32
	DirX           float32
	DirY           float32
	DirZ           float32
	FiredAtTick    uint64
}

// TokenPresent echoes the signed connect token from AuthOk back to the
// server, completing the admission round trip: the server verifies it
// against the endpoint it arrived on before trusting further traffic
// from this connection's identity.
type TokenPresent struct {
	TokenJSON []byte
}

// --- Reliable, server -> client ---

// AuthOk admits the client past the passcode check and assigns its
// client_id and host flag.
type AuthOk struct {
	ClientID  [16]byte // uuid bytes
	IsHost    bool
	GameID    [16]byte
	TokenJSON []byte // signed connect token, opaque to the client
}

// AuthFailed rejects a passcode or expired/invalid connect token.
type AuthFailed struct {
	Reason string
}

// UsernameAck confirms a proposed username is now bound to the client.
type UsernameAck struct {
	Username string
}

// UsernameReject indicates the proposed username collided with another
// client's; the client remains in ChoosingUsername.
type UsernameReject struct {
	Reason string
}

// ChatBroadcast relays one client's chat line to all clients.
type ChatBroadcast struct {
	FromUsername string
	Text         string
}

// SystemMessage is a server-originated, non-chat informational line
// (join/leave announcements, countdown ticks rendered as text, etc).
type SystemMessage struct {
	Text string
}

// CountdownStarted announces the Countdown state's duration.
type CountdownStarted struct {
	DurationMillis uint32
}

// GameStarting signals transition into Game and carries the tick at
// which simulation begins, so clients can seed their clock sync (C2).
type GameStarting struct {
	StartTick uint64
}

// BulletSpawned confirms a previously fired bullet (promoting a client's
// provisional bullet) or announces one fired by another player.
type BulletSpawned struct {
	BulletID       uint32
	OwnerClientID  [16]byte
	ClientBulletID uint32 // 0 if not owned by the receiving client
	OriginX        float32
	OriginY        float32
	OriginZ        float32
	DirX           float32
	DirY           float32
	DirZ           float32
	SpawnTick      uint64
}

// BulletBounced reports an authoritative bounce position the extrapolated
// client copy must snap to.
type BulletBounced struct {
	BulletID uint32
	PosX     float32
	PosY     float32
	PosZ     float32
	DirX     float32
	DirY     float32
	DirZ     float32
	Tick     uint64
}

// BulletExpired reports the bullet's authoritative removal.
type BulletExpired struct {
	BulletID uint32
	Tick     uint64
}

// PlayerHit reports a player taking damage from a specific bullet.
type PlayerHit struct {
	BulletID       uint32
	VictimClientID [16]byte
	Damage         uint16
}

// PlayerDied reports a player's death; the client suppresses local
// reconciliation for this tick.
type PlayerDied struct {
	VictimClientID   [16]byte
	KillerClientID   [16]byte
	Tick             uint64
}

// Leaderboard is delivered once at the end of a match (AfterGameChat ->
// EndAfterLeaderboard transition).
type Leaderboard struct {
	Entries []LeaderboardEntry
}

// LeaderboardEntry is one row of Leaderboard.Entries.
type LeaderboardEntry struct {
	ClientID [16]byte
	Username string
	Kills    uint16
	Deaths   uint16
}

// Kick terminates the connection with a typed reason.
type Kick struct {
	Reason KickReason
}

// --- Unreliable, client -> server ---

// InputBatch carries K redundant per-tick inputs.
type InputBatch struct {
	Inputs []TickInput
}

// TickInput is one tick's worth of player input.
type TickInput struct {
	Tick      uint64
	MoveX     int8 // -1, 0, 1: one of the 9-way translation directions
	MoveY     int8
	YawDelta  float32
	PitchDelta float32
	Fire      bool
	Jump      bool
}

// --- Unreliable, server -> client ---

// Snapshot is one tick's authoritative world state.
type Snapshot struct {
	Tick       uint64
	ActiveMask uint32
	Players    []PlayerSnapshot
	Local      *LocalPlayerSnapshot // nil if the receiving client has no player yet
}

// PlayerSnapshot is a remote player's wire-compact state: position in
// full precision, yaw lossily packed to one byte.
type PlayerSnapshot struct {
	ClientID [16]byte
	PosX     float32
	PosY     float32
	PosZ     float32
	Yaw      byte
	Health   uint16
}

// LocalPlayerSnapshot additionally carries velocity and full-precision
// yaw/pitch, needed for reconciliation and replay.
type LocalPlayerSnapshot struct {
	PosX   float32
	PosY   float32
	PosZ   float32
	VelX   float32
	VelY   float32
	VelZ   float32
	Yaw    float32
	Pitch  float32
	Health uint16
}

// Ping is the client's periodic unreliable echo request: the server
// replies with a ServerTime carrying the same Seq back, letting the
// client pair its send timestamp with the reply to measure RTT.
type Ping struct {
	Seq uint32
}

// ServerTime is the periodic unreliable sample clock sync (C2) uses to
// estimate server time and smoothed RTT.
type ServerTime struct {
	ServerTick    uint64
	ClientSendSeq uint32 // echoes the client's ping sequence for RTT measurement
}
