package session

import (
	"github.com/sirupsen/logrus"
)

// ClientState is the top-level client session state:
// Lobby -> Game -> AfterGameChat -> EndAfterLeaderboard, with a
// transient Transitioning state during async operations and a terminal
// Disconnected state reachable from anywhere.
type ClientState uint8

const (
	ClientStateLobby ClientState = iota
	ClientStateTransitioning
	ClientStateGame
	ClientStateAfterGameChat
	ClientStateEndAfterLeaderboard
	ClientStateDisconnected
)

func (s ClientState) String() string {
	switch s {
	case ClientStateLobby:
		return "lobby"
	case ClientStateTransitioning:
		return "transitioning"
	case ClientStateGame:
		return "game"
	case ClientStateAfterGameChat:
		return "after_game_chat"
	case ClientStateEndAfterLeaderboard:
		return "end_after_leaderboard"
	case ClientStateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// LobbyState is the substate machine client sessions run through before
// a game starts:
//
//	ServerAddress -> Passcode -> Connecting ->
//	Authenticating <-> ChoosingUsername <-> AwaitingUsernameConfirmation ->
//	Chat -> ChoosingDifficulty/wait -> Countdown -> (Game)
type LobbyState uint8

const (
	LobbyStateServerAddress LobbyState = iota
	LobbyStatePasscode
	LobbyStateConnecting
	LobbyStateAuthenticating
	LobbyStateChoosingUsername
	LobbyStateAwaitingUsernameConfirmation
	LobbyStateChat
	LobbyStateChoosingDifficulty
	LobbyStateAwaitingOthersChoice
	LobbyStateCountdown
)

func (s LobbyState) String() string {
	switch s {
	case LobbyStateServerAddress:
		return "server_address"
	case LobbyStatePasscode:
		return "passcode"
	case LobbyStateConnecting:
		return "connecting"
	case LobbyStateAuthenticating:
		return "authenticating"
	case LobbyStateChoosingUsername:
		return "choosing_username"
	case LobbyStateAwaitingUsernameConfirmation:
		return "awaiting_username_confirmation"
	case LobbyStateChat:
		return "chat"
	case LobbyStateChoosingDifficulty:
		return "choosing_difficulty"
	case LobbyStateAwaitingOthersChoice:
		return "awaiting_others_choice"
	case LobbyStateCountdown:
		return "countdown"
	default:
		return "unknown"
	}
}

// ClientEvent tags the events the client's state machines respond to.
type ClientEvent uint8

const (
	EventServerAddressEntered ClientEvent = iota
	EventPasscodeEntered
	EventConnected
	EventAuthOk
	EventAuthFailed
	EventUsernameSubmitted
	EventUsernameAccepted
	EventUsernameRejected
	EventChatAdvance
	EventDifficultyChosen
	EventCountdownStarted
	EventGameStarting
	EventLocalPlayerDied
	EventMatchEnded
	EventLeaderboardDelivered
	EventKicked
	EventTransportFailed
	EventUserQuit
)

// Client is the client's lobby/game/chat/leaderboard state machine.
type Client struct {
	log   *logrus.Entry
	State ClientState
	Lobby LobbyState
}

func NewClient(log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		log:   log.WithField("component", "session.client"),
		State: ClientStateLobby,
		Lobby: LobbyStateServerAddress,
	}
}

// Handle applies event and returns the resulting Outcome. A protocol
// violation in the form of ErrNoTransition is returned, never panicked,
// for any event the current state does not expect; the caller logs and
// skips it.
func (c *Client) Handle(event ClientEvent) (Outcome[ClientState], error) {
	// Global transitions available from any non-terminal state.
	switch event {
	case EventKicked:
		return c.disconnect(DisconnectReasonKicked), nil
	case EventTransportFailed:
		return c.disconnect(DisconnectReasonTransportFailure), nil
	case EventUserQuit:
		return c.disconnect(DisconnectReasonUserQuit), nil
	}

	if c.State == ClientStateDisconnected {
		return Outcome[ClientState]{}, ErrNoTransition{State: c.State.String(), Event: eventName(event)}
	}

	switch c.State {
	case ClientStateLobby:
		return c.handleLobby(event)
	case ClientStateGame:
		return c.handleGame(event)
	case ClientStateTransitioning:
		return c.handleTransitioning(event)
	case ClientStateAfterGameChat:
		return c.handleAfterGameChat(event)
	case ClientStateEndAfterLeaderboard:
		return Outcome[ClientState]{}, ErrNoTransition{State: c.State.String(), Event: eventName(event)}
	default:
		return Outcome[ClientState]{}, ErrNoTransition{State: c.State.String(), Event: eventName(event)}
	}
}

func (c *Client) handleLobby(event ClientEvent) (Outcome[ClientState], error) {
	switch c.Lobby {
	case LobbyStateServerAddress:
		if event == EventServerAddressEntered {
			c.Lobby = LobbyStatePasscode
			return Transition(c.State, c.Lobby), nil
		}
	case LobbyStatePasscode:
		if event == EventPasscodeEntered {
			c.Lobby = LobbyStateConnecting
			return Transition(c.State, c.Lobby), nil
		}
	case LobbyStateConnecting:
		if event == EventConnected {
			c.Lobby = LobbyStateAuthenticating
			return Transition(c.State, c.Lobby), nil
		}
	case LobbyStateAuthenticating:
		switch event {
		case EventAuthOk:
			c.Lobby = LobbyStateChoosingUsername
			return Transition(c.State, c.Lobby), nil
		case EventAuthFailed:
			return c.disconnect(DisconnectReasonAuthFailed), nil
		}
	case LobbyStateChoosingUsername:
		if event == EventUsernameSubmitted {
			c.Lobby = LobbyStateAwaitingUsernameConfirmation
			return Transition(c.State, c.Lobby), nil
		}
	case LobbyStateAwaitingUsernameConfirmation:
		switch event {
		case EventUsernameAccepted:
			c.Lobby = LobbyStateChat
			return Transition(c.State, c.Lobby), nil
		case EventUsernameRejected:
			c.Lobby = LobbyStateChoosingUsername
			return Transition(c.State, c.Lobby), nil
		}
	case LobbyStateChat:
		if event == EventChatAdvance {
			c.Lobby = LobbyStateChoosingDifficulty
			return Transition(c.State, c.Lobby), nil
		}
	case LobbyStateChoosingDifficulty:
		if event == EventDifficultyChosen {
			c.Lobby = LobbyStateAwaitingOthersChoice
			return Transition(c.State, c.Lobby), nil
		}
	case LobbyStateAwaitingOthersChoice:
		if event == EventCountdownStarted {
			c.Lobby = LobbyStateCountdown
			return Transition(c.State, c.Lobby), nil
		}
	case LobbyStateCountdown:
		if event == EventGameStarting {
			c.State = ClientStateGame
			return Transition(c.State, nil), nil
		}
	}
	return Outcome[ClientState]{}, ErrNoTransition{State: c.Lobby.String(), Event: eventName(event)}
}

func (c *Client) handleGame(event ClientEvent) (Outcome[ClientState], error) {
	switch event {
	case EventLocalPlayerDied:
		// Death does not by itself leave the Game state (reconciliation
		// suppression is handled by internal/reconcile, not the session
		// machine); only a full match end does.
		return Transition(c.State, nil), nil
	case EventMatchEnded:
		// The swap out of Game is not instantaneous: the caller tears
		// down game-local state (reconciler, bullets, snapshot history)
		// while parked in Transitioning, then advances to
		// AfterGameChat once that teardown completes.
		c.State = ClientStateTransitioning
		return Transition(c.State, nil), nil
	}
	return Outcome[ClientState]{}, ErrNoTransition{State: c.State.String(), Event: eventName(event)}
}

func (c *Client) handleTransitioning(event ClientEvent) (Outcome[ClientState], error) {
	if event == EventChatAdvance {
		c.State = ClientStateAfterGameChat
		return Transition(c.State, nil), nil
	}
	return Outcome[ClientState]{}, ErrNoTransition{State: c.State.String(), Event: eventName(event)}
}

func (c *Client) handleAfterGameChat(event ClientEvent) (Outcome[ClientState], error) {
	if event == EventLeaderboardDelivered {
		c.State = ClientStateEndAfterLeaderboard
		return Outcome[ClientState]{Next: c.State, IsTerminal: true, Reason: DisconnectReasonUnspecified}, nil
	}
	return Outcome[ClientState]{}, ErrNoTransition{State: c.State.String(), Event: eventName(event)}
}

func (c *Client) disconnect(reason DisconnectReason) Outcome[ClientState] {
	c.State = ClientStateDisconnected
	return Terminal(c.State, reason)
}

func eventName(e ClientEvent) string {
	names := [...]string{
		"server_address_entered", "passcode_entered", "connected", "auth_ok",
		"auth_failed", "username_submitted", "username_accepted",
		"username_rejected", "chat_advance", "difficulty_chosen",
		"countdown_started", "game_starting", "local_player_died",
		"match_ended", "leaderboard_delivered", "kicked",
		"transport_failed", "user_quit",
	}
	if int(e) < len(names) {
		return names[e]
	}
	return "unknown_event"
}
