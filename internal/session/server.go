package session

import (
	"github.com/sirupsen/logrus"
)

// ServerState is the authoritative server's top-level game state
// machine: Lobby -> ChoosingDifficulty -> Countdown -> Game.
type ServerState uint8

const (
	ServerStateLobby ServerState = iota
	ServerStateChoosingDifficulty
	ServerStateCountdown
	ServerStateGame
)

func (s ServerState) String() string {
	switch s {
	case ServerStateLobby:
		return "lobby"
	case ServerStateChoosingDifficulty:
		return "choosing_difficulty"
	case ServerStateCountdown:
		return "countdown"
	case ServerStateGame:
		return "game"
	default:
		return "unknown"
	}
}

// ServerEvent tags the events the server's game state machine responds to.
type ServerEvent uint8

const (
	EventHostStartRequested ServerEvent = iota
	EventAllPlayersChoseDifficulty
	EventCountdownElapsed
	EventLeaderboardAcked
)

// Server is the authoritative game's top-level state machine. It does
// not itself track admission/room membership (internal/admission) or
// per-tick simulation (internal/sim, internal/snapshot); it tracks only
// which phase governs which messages are valid.
type Server struct {
	log   *logrus.Entry
	State ServerState

	// ackedLeaderboard counts how many of the match's remaining clients
	// have acknowledged receipt of the leaderboard, so the server knows
	// when it may exit.
	ackedLeaderboard int
	totalClients     int
}

func NewServer(log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		log:   log.WithField("component", "session.server"),
		State: ServerStateLobby,
	}
}

func (s *Server) Handle(event ServerEvent) (Outcome[ServerState], error) {
	switch s.State {
	case ServerStateLobby:
		if event == EventHostStartRequested {
			s.State = ServerStateChoosingDifficulty
			return Transition(s.State, nil), nil
		}
	case ServerStateChoosingDifficulty:
		if event == EventAllPlayersChoseDifficulty {
			s.State = ServerStateCountdown
			return Transition(s.State, nil), nil
		}
	case ServerStateCountdown:
		if event == EventCountdownElapsed {
			s.State = ServerStateGame
			return Transition(s.State, nil), nil
		}
	case ServerStateGame:
		// Game phase transitions (to match end / leaderboard delivery)
		// are driven by match logic, not this event set; see
		// AckLeaderboard and ReadyToExit below.
	}
	return Outcome[ServerState]{}, ErrNoTransition{State: s.State.String(), Event: serverEventName(event)}
}

// BeginLeaderboardDelivery records how many clients must acknowledge the
// leaderboard before the server may exit.
func (s *Server) BeginLeaderboardDelivery(clientCount int) {
	s.totalClients = clientCount
	s.ackedLeaderboard = 0
}

// AckLeaderboard records one client's acknowledgment.
func (s *Server) AckLeaderboard() {
	s.ackedLeaderboard++
}

// ReadyToExit reports whether every remaining client has acknowledged
// the leaderboard, per spec's documented exit condition: "when the
// leaderboard has been delivered to all remaining clients, the server
// exits."
func (s *Server) ReadyToExit() bool {
	return s.totalClients > 0 && s.ackedLeaderboard >= s.totalClients
}

func serverEventName(e ServerEvent) string {
	names := [...]string{
		"host_start_requested", "all_players_chose_difficulty",
		"countdown_elapsed", "leaderboard_acked",
	}
	if int(e) < len(names) {
		return names[e]
	}
	return "unknown_event"
}
