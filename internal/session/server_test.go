package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerHappyPathReachesGame(t *testing.T) {
	s := NewServer(nil)
	_, err := s.Handle(EventHostStartRequested)
	require.NoError(t, err)
	assert.Equal(t, ServerStateChoosingDifficulty, s.State)

	_, err = s.Handle(EventAllPlayersChoseDifficulty)
	require.NoError(t, err)
	assert.Equal(t, ServerStateCountdown, s.State)

	_, err = s.Handle(EventCountdownElapsed)
	require.NoError(t, err)
	assert.Equal(t, ServerStateGame, s.State)
}

func TestServerRejectsOutOfOrderEvent(t *testing.T) {
	s := NewServer(nil)
	_, err := s.Handle(EventCountdownElapsed)
	assert.Error(t, err)
}

func TestServerReadyToExitOnlyAfterAllAcks(t *testing.T) {
	s := NewServer(nil)
	s.BeginLeaderboardDelivery(3)
	assert.False(t, s.ReadyToExit())

	s.AckLeaderboard()
	s.AckLeaderboard()
	assert.False(t, s.ReadyToExit())

	s.AckLeaderboard()
	assert.True(t, s.ReadyToExit())
}
