// Package admission implements the admission protocol: a per-game
// secret and random passcode, passcode submission over the reliable
// channel, a short-lived connect token bound to the client's endpoint,
// first-admitted-becomes-host, and max-player/post-countdown rejection.
package admission

import (
	"crypto/rand"
	"fmt"
	"net"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pjtunstall/by-a-thread/internal/neterr"
)

// TokenTTL is how long a connect token remains valid after issue.
const TokenTTL = 10 * time.Second

// connectClaims is the JWT payload binding a token to one client
// endpoint and game.
type connectClaims struct {
	jwt.RegisteredClaims
	GameID   string `json:"gid"`
	ClientID string `json:"cid"`
	Endpoint string `json:"ep"`
	IsHost   bool   `json:"host"`
}

// Gate owns one game's admission state: its secret, passcode, signing
// key, and the membership/capacity bookkeeping needed to decide
// host/reject/admit for each incoming passcode submission.
type Gate struct {
	log *logrus.Entry

	gameID    uuid.UUID
	passcode  string
	signingKey []byte

	maxPlayers   int
	admitted     map[uuid.UUID]struct{}
	hostAssigned bool
	gameStarted  bool
}

// NewGate creates a Gate for a fresh game: a random 32-byte signing key
// and a 6-digit passcode drawn from crypto/rand, matching a human-read
// register-style code.
func NewGate(log *logrus.Entry, maxPlayers int) (*Gate, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("admission: generating signing key: %w", err)
	}
	passcode, err := generatePasscode()
	if err != nil {
		return nil, err
	}
	return &Gate{
		log:        log.WithField("component", "admission"),
		gameID:     uuid.New(),
		passcode:   passcode,
		signingKey: key,
		maxPlayers: maxPlayers,
		admitted:   make(map[uuid.UUID]struct{}),
	}, nil
}

// GameID returns the game's identifier.
func (g *Gate) GameID() uuid.UUID { return g.gameID }

// Passcode returns the passcode clients must submit to join.
func (g *Gate) Passcode() string { return g.passcode }

// MarkGameStarted records that the countdown has elapsed; admission
// thereafter is rejected with CapacityViolation, not merely MaxPlayers.
func (g *Gate) MarkGameStarted() { g.gameStarted = true }

// Admit validates a submitted passcode from endpoint and either returns
// a signed connect token or a *neterr.Error (AuthRejection for a wrong
// passcode, CapacityViolation for a full or in-progress game).
func (g *Gate) Admit(submitted string, endpoint net.Addr) (tokenString string, clientID uuid.UUID, isHost bool, err error) {
	if submitted != g.passcode {
		return "", uuid.UUID{}, false, neterr.AuthRejection("incorrect passcode")
	}
	if g.gameStarted {
		return "", uuid.UUID{}, false, neterr.CapacityViolation("game already in progress")
	}
	if len(g.admitted) >= g.maxPlayers {
		return "", uuid.UUID{}, false, neterr.CapacityViolation("game is full")
	}

	clientID = uuid.New()
	isHost = !g.hostAssigned
	g.hostAssigned = true
	g.admitted[clientID] = struct{}{}

	now := time.Now()
	claims := connectClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
		GameID:   g.gameID.String(),
		ClientID: clientID.String(),
		Endpoint: endpoint.String(),
		IsHost:   isHost,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.signingKey)
	if err != nil {
		return "", uuid.UUID{}, false, fmt.Errorf("admission: signing connect token: %w", err)
	}
	return signed, clientID, isHost, nil
}

// Verify parses and validates a connect token against endpoint:
// expired, malformed, or endpoint-mismatched tokens are rejected with
// AuthRejection.
func (g *Gate) Verify(tokenString string, endpoint net.Addr) (clientID uuid.UUID, isHost bool, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &connectClaims{}, func(t *jwt.Token) (interface{}, error) {
		return g.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return uuid.UUID{}, false, neterr.AuthRejection("invalid or expired connect token")
	}
	claims, ok := token.Claims.(*connectClaims)
	if !ok {
		return uuid.UUID{}, false, neterr.AuthRejection("malformed connect token claims")
	}
	if claims.Endpoint != endpoint.String() {
		return uuid.UUID{}, false, neterr.AuthRejection("connect token endpoint mismatch")
	}
	id, err := uuid.Parse(claims.ClientID)
	if err != nil {
		return uuid.UUID{}, false, neterr.AuthRejection("malformed client id in connect token")
	}
	return id, claims.IsHost, nil
}

func generatePasscode() (string, error) {
	const digits = "0123456789"
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("admission: generating passcode: %w", err)
	}
	code := make([]byte, 6)
	for i, b := range buf {
		code[i] = digits[int(b)%len(digits)]
	}
	return string(code), nil
}
