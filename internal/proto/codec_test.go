package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip[T any](t *testing.T, msg T) T {
	t.Helper()
	data, err := Encode(msg)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	got, ok := decoded.(T)
	require.True(t, ok, "decoded type mismatch: got %T", decoded)
	return got
}

func TestRoundTripPasscode(t *testing.T) {
	got := roundTrip(t, &Passcode{Code: "482913"})
	assert.Equal(t, "482913", got.Code)
}

func TestRoundTripChatSend(t *testing.T) {
	got := roundTrip(t, &ChatSend{Text: "gg"})
	assert.Equal(t, "gg", got.Text)
}

func TestRoundTripStartGame(t *testing.T) {
	roundTrip(t, &StartGame{})
}

func TestRoundTripBulletFired(t *testing.T) {
	in := &BulletFired{
		ClientBulletID: 7,
		OriginX:        1.5,
		OriginY:        2.5,
		OriginZ:        -3.5,
		DirX:           0,
		DirY:           0,
		DirZ:           1,
		FiredAtTick:    1000,
	}
	got := roundTrip(t, in)
	assert.Equal(t, *in, *got)
}

func TestRoundTripAuthOk(t *testing.T) {
	in := &AuthOk{IsHost: true, TokenJSON: []byte("token-bytes")}
	in.ClientID[0] = 0xAB
	in.GameID[1] = 0xCD
	got := roundTrip(t, in)
	assert.Equal(t, in.IsHost, got.IsHost)
	assert.Equal(t, in.ClientID, got.ClientID)
	assert.Equal(t, in.GameID, got.GameID)
	assert.Equal(t, in.TokenJSON, got.TokenJSON)
}

func TestRoundTripLeaderboard(t *testing.T) {
	in := &Leaderboard{Entries: []LeaderboardEntry{
		{Username: "alice", Kills: 10, Deaths: 2},
		{Username: "bob", Kills: 3, Deaths: 9},
	}}
	got := roundTrip(t, in)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "alice", got.Entries[0].Username)
	assert.Equal(t, uint16(10), got.Entries[0].Kills)
	assert.Equal(t, "bob", got.Entries[1].Username)
}

func TestRoundTripInputBatch(t *testing.T) {
	in := &InputBatch{Inputs: []TickInput{
		{Tick: 100, MoveX: 1, MoveY: -1, Fire: true},
		{Tick: 101, MoveX: 0, MoveY: 1},
	}}
	got := roundTrip(t, in)
	require.Len(t, got.Inputs, 2)
	assert.Equal(t, uint64(100), got.Inputs[0].Tick)
	assert.True(t, got.Inputs[0].Fire)
}

func TestRoundTripSnapshotWithLocal(t *testing.T) {
	in := &Snapshot{
		Tick:       42,
		ActiveMask: 0b101,
		Players: []PlayerSnapshot{
			{PosX: 1, PosY: 2, PosZ: 3, Yaw: 128, Health: 100},
		},
		Local: &LocalPlayerSnapshot{PosX: 1, VelX: 0.5, Yaw: 1.0, Pitch: 0.2, Health: 100},
	}
	got := roundTrip(t, in)
	assert.Equal(t, uint64(42), got.Tick)
	require.NotNil(t, got.Local)
	assert.InDelta(t, 0.5, got.Local.VelX, 1e-6)
	require.Len(t, got.Players, 1)
	assert.Equal(t, byte(128), got.Players[0].Yaw)
}

func TestRoundTripSnapshotWithoutLocal(t *testing.T) {
	in := &Snapshot{Tick: 7, ActiveMask: 0b1, Players: []PlayerSnapshot{{Health: 50}}}
	got := roundTrip(t, in)
	assert.Nil(t, got.Local)
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	data, err := Encode(&StartGame{})
	require.NoError(t, err)
	data[0] = Version + 1
	_, err = Decode(data)
	assert.Error(t, err)
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	_, err := Decode([]byte{1})
	assert.Error(t, err)
}

func TestDecodeRejectsOversizedLengthPrefix(t *testing.T) {
	data, err := Encode(&ChatSend{Text: "hi"})
	require.NoError(t, err)
	// Corrupt the length prefix of the string payload (bytes after the
	// 2-byte header) to an implausibly large value.
	data[2] = 0xFF
	data[3] = 0xFF
	data[4] = 0xFF
	data[5] = 0x7F
	_, err = Decode(data)
	assert.Error(t, err)
}
