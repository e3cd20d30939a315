package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func advance(t *testing.T, c *Client, events ...ClientEvent) {
	t.Helper()
	for _, e := range events {
		_, err := c.Handle(e)
		require.NoError(t, err, "event %v should be accepted", e)
	}
}

func TestClientHappyPathReachesGame(t *testing.T) {
	c := NewClient(nil)
	advance(t, c,
		EventServerAddressEntered,
		EventPasscodeEntered,
		EventConnected,
		EventAuthOk,
		EventUsernameSubmitted,
		EventUsernameAccepted,
		EventChatAdvance,
		EventDifficultyChosen,
		EventCountdownStarted,
		EventGameStarting,
	)
	assert.Equal(t, ClientStateGame, c.State)
}

func TestClientUsernameRejectionLoopsBack(t *testing.T) {
	c := NewClient(nil)
	advance(t, c, EventServerAddressEntered, EventPasscodeEntered, EventConnected, EventAuthOk, EventUsernameSubmitted)
	_, err := c.Handle(EventUsernameRejected)
	require.NoError(t, err)
	assert.Equal(t, LobbyStateChoosingUsername, c.Lobby)
}

func TestClientAuthFailureDisconnects(t *testing.T) {
	c := NewClient(nil)
	advance(t, c, EventServerAddressEntered, EventPasscodeEntered, EventConnected)
	out, err := c.Handle(EventAuthFailed)
	require.NoError(t, err)
	assert.True(t, out.IsTerminal)
	assert.Equal(t, DisconnectReasonAuthFailed, out.Reason)
	assert.Equal(t, ClientStateDisconnected, c.State)
}

func TestClientKickedFromAnyState(t *testing.T) {
	c := NewClient(nil)
	out, err := c.Handle(EventKicked)
	require.NoError(t, err)
	assert.Equal(t, DisconnectReasonKicked, out.Reason)
}

func TestClientFullLifecycleToLeaderboard(t *testing.T) {
	c := NewClient(nil)
	advance(t, c,
		EventServerAddressEntered, EventPasscodeEntered, EventConnected, EventAuthOk,
		EventUsernameSubmitted, EventUsernameAccepted, EventChatAdvance,
		EventDifficultyChosen, EventCountdownStarted, EventGameStarting,
		EventMatchEnded,
	)
	assert.Equal(t, ClientStateTransitioning, c.State)

	advance(t, c, EventChatAdvance)
	assert.Equal(t, ClientStateAfterGameChat, c.State)

	out, err := c.Handle(EventLeaderboardDelivered)
	require.NoError(t, err)
	assert.Equal(t, ClientStateEndAfterLeaderboard, c.State)
	assert.True(t, out.IsTerminal)
}

func TestClientUnexpectedEventIsProtocolViolation(t *testing.T) {
	c := NewClient(nil)
	_, err := c.Handle(EventGameStarting)
	assert.Error(t, err)
}

func TestClientDisconnectedStateRejectsFurtherEvents(t *testing.T) {
	c := NewClient(nil)
	_, _ = c.Handle(EventUserQuit)
	_, err := c.Handle(EventServerAddressEntered)
	assert.Error(t, err)
}
