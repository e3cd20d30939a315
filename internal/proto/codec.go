package proto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pjtunstall/by-a-thread/internal/neterr"
)

// maxDataLen guards against a corrupt or hostile length prefix forcing a
// large allocation.
const maxDataLen = 1024 * 1024

// Encode serializes msg into a versioned, tagged frame: [version][kind][payload].
func Encode(msg any) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, Version); err != nil {
		return nil, err
	}

	kind, err := kindOf(msg)
	if err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, kind); err != nil {
		return nil, err
	}

	if err := encodePayload(buf, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a frame produced by Encode and returns the concrete
// message value (e.g. *Passcode, *Snapshot) as an any.
func Decode(data []byte) (any, error) {
	if len(data) < 2 {
		return nil, neterr.DecodeError("frame shorter than header", io.ErrUnexpectedEOF)
	}
	r := bytes.NewReader(data)

	var version uint8
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, neterr.DecodeError("reading version", err)
	}
	if version != Version {
		return nil, neterr.DecodeError(fmt.Sprintf("unsupported version %d", version), nil)
	}

	var kind Kind
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return nil, neterr.DecodeError("reading kind", err)
	}

	msg, err := decodePayload(r, kind)
	if err != nil {
		return nil, neterr.DecodeError(fmt.Sprintf("decoding payload for kind %d", kind), err)
	}
	return msg, nil
}

func kindOf(msg any) (Kind, error) {
	switch msg.(type) {
	case *Passcode:
		return KindPasscode, nil
	case *UsernameRequest:
		return KindUsernameRequest, nil
	case *ChatSend:
		return KindChatSend, nil
	case *StartGame:
		return KindStartGame, nil
	case *DifficultyChoice:
		return KindDifficultyChoice, nil
	case *BulletFired:
		return KindBulletFired, nil
	case *TokenPresent:
		return KindTokenPresent, nil
	case *AuthOk:
		return KindAuthOk, nil
	case *AuthFailed:
		return KindAuthFailed, nil
	case *UsernameAck:
		return KindUsernameAck, nil
	case *UsernameReject:
		return KindUsernameReject, nil
	case *ChatBroadcast:
		return KindChatBroadcast, nil
	case *SystemMessage:
		return KindSystemMessage, nil
	case *CountdownStarted:
		return KindCountdownStarted, nil
	case *GameStarting:
		return KindGameStarting, nil
	case *BulletSpawned:
		return KindBulletSpawned, nil
	case *BulletBounced:
		return KindBulletBounced, nil
	case *BulletExpired:
		return KindBulletExpired, nil
	case *PlayerHit:
		return KindPlayerHit, nil
	case *PlayerDied:
		return KindPlayerDied, nil
	case *Leaderboard:
		return KindLeaderboard, nil
	case *Kick:
		return KindKick, nil
	case *InputBatch:
		return KindInputBatch, nil
	case *Ping:
		return KindPing, nil
	case *Snapshot:
		return KindSnapshot, nil
	case *ServerTime:
		return KindServerTime, nil
	default:
		return 0, fmt.Errorf("proto: unknown message type %T", msg)
	}
}

func encodePayload(buf *bytes.Buffer, msg any) error {
	switch m := msg.(type) {
	case *Passcode:
		return writeString(buf, m.Code)
	case *UsernameRequest:
		return writeString(buf, m.Username)
	case *ChatSend:
		return writeString(buf, m.Text)
	case *StartGame:
		return nil
	case *DifficultyChoice:
		return binary.Write(buf, binary.LittleEndian, m.Difficulty)
	case *BulletFired:
		return binary.Write(buf, binary.LittleEndian, m)
	case *TokenPresent:
		return writeBytes(buf, m.TokenJSON)
	case *AuthOk:
		if err := binary.Write(buf, binary.LittleEndian, m.ClientID); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, m.IsHost); err != nil {
			return err
		}
		if err := binary.Write(buf, binary.LittleEndian, m.GameID); err != nil {
			return err
		}
		return writeBytes(buf, m.TokenJSON)
	case *AuthFailed:
		return writeString(buf, m.Reason)
	case *UsernameAck:
		return writeString(buf, m.Username)
	case *UsernameReject:
		return writeString(buf, m.Reason)
	case *ChatBroadcast:
		if err := writeString(buf, m.FromUsername); err != nil {
			return err
		}
		return writeString(buf, m.Text)
	case *SystemMessage:
		return writeString(buf, m.Text)
	case *CountdownStarted:
		return binary.Write(buf, binary.LittleEndian, m.DurationMillis)
	case *GameStarting:
		return binary.Write(buf, binary.LittleEndian, m.StartTick)
	case *BulletSpawned:
		return binary.Write(buf, binary.LittleEndian, m)
	case *BulletBounced:
		return binary.Write(buf, binary.LittleEndian, m)
	case *BulletExpired:
		return binary.Write(buf, binary.LittleEndian, m)
	case *PlayerHit:
		return binary.Write(buf, binary.LittleEndian, m)
	case *PlayerDied:
		return binary.Write(buf, binary.LittleEndian, m)
	case *Leaderboard:
		if err := binary.Write(buf, binary.LittleEndian, uint16(len(m.Entries))); err != nil {
			return err
		}
		for _, e := range m.Entries {
			if err := binary.Write(buf, binary.LittleEndian, e.ClientID); err != nil {
				return err
			}
			if err := writeString(buf, e.Username); err != nil {
				return err
			}
			if err := binary.Write(buf, binary.LittleEndian, e.Kills); err != nil {
				return err
			}
			if err := binary.Write(buf, binary.LittleEndian, e.Deaths); err != nil {
				return err
			}
		}
		return nil
	case *Kick:
		return binary.Write(buf, binary.LittleEndian, m.Reason)
	case *InputBatch:
		if err := binary.Write(buf, binary.LittleEndian, uint16(len(m.Inputs))); err != nil {
			return err
		}
		for _, in := range m.Inputs {
			if err := binary.Write(buf, binary.LittleEndian, in); err != nil {
				return err
			}
		}
		return nil
	case *Ping:
		return binary.Write(buf, binary.LittleEndian, m)
	case *Snapshot:
		return encodeSnapshot(buf, m)
	case *ServerTime:
		return binary.Write(buf, binary.LittleEndian, m)
	default:
		return fmt.Errorf("proto: unknown message type %T", msg)
	}
}

func encodeSnapshot(buf *bytes.Buffer, m *Snapshot) error {
	if err := binary.Write(buf, binary.LittleEndian, m.Tick); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, m.ActiveMask); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(m.Players))); err != nil {
		return err
	}
	for _, p := range m.Players {
		if err := binary.Write(buf, binary.LittleEndian, p); err != nil {
			return err
		}
	}
	hasLocal := m.Local != nil
	if err := binary.Write(buf, binary.LittleEndian, hasLocal); err != nil {
		return err
	}
	if hasLocal {
		if err := binary.Write(buf, binary.LittleEndian, m.Local); err != nil {
			return err
		}
	}
	return nil
}

func decodePayload(r *bytes.Reader, kind Kind) (any, error) {
	switch kind {
	case KindPasscode:
		s, err := readString(r)
		return &Passcode{Code: s}, err
	case KindUsernameRequest:
		s, err := readString(r)
		return &UsernameRequest{Username: s}, err
	case KindChatSend:
		s, err := readString(r)
		return &ChatSend{Text: s}, err
	case KindStartGame:
		return &StartGame{}, nil
	case KindDifficultyChoice:
		var m DifficultyChoice
		err := binary.Read(r, binary.LittleEndian, &m.Difficulty)
		return &m, err
	case KindBulletFired:
		var m BulletFired
		err := binary.Read(r, binary.LittleEndian, &m)
		return &m, err
	case KindTokenPresent:
		tok, err := readBytes(r)
		return &TokenPresent{TokenJSON: tok}, err
	case KindAuthOk:
		var m AuthOk
		if err := binary.Read(r, binary.LittleEndian, &m.ClientID); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &m.IsHost); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &m.GameID); err != nil {
			return nil, err
		}
		tok, err := readBytes(r)
		m.TokenJSON = tok
		return &m, err
	case KindAuthFailed:
		s, err := readString(r)
		return &AuthFailed{Reason: s}, err
	case KindUsernameAck:
		s, err := readString(r)
		return &UsernameAck{Username: s}, err
	case KindUsernameReject:
		s, err := readString(r)
		return &UsernameReject{Reason: s}, err
	case KindChatBroadcast:
		from, err := readString(r)
		if err != nil {
			return nil, err
		}
		text, err := readString(r)
		return &ChatBroadcast{FromUsername: from, Text: text}, err
	case KindSystemMessage:
		s, err := readString(r)
		return &SystemMessage{Text: s}, err
	case KindCountdownStarted:
		var m CountdownStarted
		err := binary.Read(r, binary.LittleEndian, &m.DurationMillis)
		return &m, err
	case KindGameStarting:
		var m GameStarting
		err := binary.Read(r, binary.LittleEndian, &m.StartTick)
		return &m, err
	case KindBulletSpawned:
		var m BulletSpawned
		err := binary.Read(r, binary.LittleEndian, &m)
		return &m, err
	case KindBulletBounced:
		var m BulletBounced
		err := binary.Read(r, binary.LittleEndian, &m)
		return &m, err
	case KindBulletExpired:
		var m BulletExpired
		err := binary.Read(r, binary.LittleEndian, &m)
		return &m, err
	case KindPlayerHit:
		var m PlayerHit
		err := binary.Read(r, binary.LittleEndian, &m)
		return &m, err
	case KindPlayerDied:
		var m PlayerDied
		err := binary.Read(r, binary.LittleEndian, &m)
		return &m, err
	case KindLeaderboard:
		return decodeLeaderboard(r)
	case KindKick:
		var m Kick
		err := binary.Read(r, binary.LittleEndian, &m.Reason)
		return &m, err
	case KindInputBatch:
		return decodeInputBatch(r)
	case KindPing:
		var m Ping
		err := binary.Read(r, binary.LittleEndian, &m)
		return &m, err
	case KindSnapshot:
		return decodeSnapshot(r)
	case KindServerTime:
		var m ServerTime
		err := binary.Read(r, binary.LittleEndian, &m)
		return &m, err
	default:
		return nil, fmt.Errorf("proto: unknown wire kind %d", kind)
	}
}

func decodeLeaderboard(r *bytes.Reader) (*Leaderboard, error) {
	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, count)
	for i := uint16(0); i < count; i++ {
		var e LeaderboardEntry
		if err := binary.Read(r, binary.LittleEndian, &e.ClientID); err != nil {
			return nil, err
		}
		username, err := readString(r)
		if err != nil {
			return nil, err
		}
		e.Username = username
		if err := binary.Read(r, binary.LittleEndian, &e.Kills); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &e.Deaths); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return &Leaderboard{Entries: entries}, nil
}

func decodeInputBatch(r *bytes.Reader) (*InputBatch, error) {
	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	inputs := make([]TickInput, count)
	for i := range inputs {
		if err := binary.Read(r, binary.LittleEndian, &inputs[i]); err != nil {
			return nil, err
		}
	}
	return &InputBatch{Inputs: inputs}, nil
}

func decodeSnapshot(r *bytes.Reader) (*Snapshot, error) {
	var m Snapshot
	if err := binary.Read(r, binary.LittleEndian, &m.Tick); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &m.ActiveMask); err != nil {
		return nil, err
	}
	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	m.Players = make([]PlayerSnapshot, count)
	for i := range m.Players {
		if err := binary.Read(r, binary.LittleEndian, &m.Players[i]); err != nil {
			return nil, err
		}
	}
	var hasLocal bool
	if err := binary.Read(r, binary.LittleEndian, &hasLocal); err != nil {
		return nil, err
	}
	if hasLocal {
		var local LocalPlayerSnapshot
		if err := binary.Read(r, binary.LittleEndian, &local); err != nil {
			return nil, err
		}
		m.Local = &local
	}
	// The full active_mask/len(players) invariant is enforced once the
	// wire message is converted into a snapshot.World (snapshot.Validate),
	// since that's the representation the invariant is stated over.
	return &m, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	return writeBytes(buf, []byte(s))
}

func writeBytes(buf *bytes.Buffer, b []byte) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := buf.Write(b)
	return err
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	return string(b), err
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length > maxDataLen {
		return nil, fmt.Errorf("proto: length %d exceeds maximum %d", length, maxDataLen)
	}
	if int(length) > r.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
