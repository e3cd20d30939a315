package admission

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pjtunstall/by-a-thread/internal/neterr"
)

func addr(s string) net.Addr {
	a, _ := net.ResolveUDPAddr("udp", s)
	return a
}

func TestFirstAdmittedClientBecomesHost(t *testing.T) {
	g, err := NewGate(nil, 4)
	require.NoError(t, err)

	_, _, host1, err := g.Admit(g.Passcode(), addr("1.2.3.4:1111"))
	require.NoError(t, err)
	assert.True(t, host1)

	_, _, host2, err := g.Admit(g.Passcode(), addr("1.2.3.4:2222"))
	require.NoError(t, err)
	assert.False(t, host2)
}

func TestWrongPasscodeRejected(t *testing.T) {
	g, err := NewGate(nil, 4)
	require.NoError(t, err)
	_, _, _, err = g.Admit("000000", addr("1.2.3.4:1111"))
	require.Error(t, err)
	assert.True(t, neterr.Is(err, neterr.KindAuthRejection))
}

func TestMaxPlayersRejected(t *testing.T) {
	g, err := NewGate(nil, 1)
	require.NoError(t, err)
	_, _, _, err = g.Admit(g.Passcode(), addr("1.2.3.4:1111"))
	require.NoError(t, err)

	_, _, _, err = g.Admit(g.Passcode(), addr("1.2.3.4:2222"))
	require.Error(t, err)
	assert.True(t, neterr.Is(err, neterr.KindCapacityViolation))
}

func TestPostCountdownJoinRejected(t *testing.T) {
	g, err := NewGate(nil, 4)
	require.NoError(t, err)
	g.MarkGameStarted()

	_, _, _, err = g.Admit(g.Passcode(), addr("1.2.3.4:1111"))
	require.Error(t, err)
	assert.True(t, neterr.Is(err, neterr.KindCapacityViolation))
}

func TestVerifyAcceptsMatchingEndpoint(t *testing.T) {
	g, err := NewGate(nil, 4)
	require.NoError(t, err)
	clientAddr := addr("1.2.3.4:1111")
	token, clientID, _, err := g.Admit(g.Passcode(), clientAddr)
	require.NoError(t, err)

	verifiedID, _, err := g.Verify(token, clientAddr)
	require.NoError(t, err)
	assert.Equal(t, clientID, verifiedID)
}

func TestVerifyRejectsEndpointMismatch(t *testing.T) {
	g, err := NewGate(nil, 4)
	require.NoError(t, err)
	token, _, _, err := g.Admit(g.Passcode(), addr("1.2.3.4:1111"))
	require.NoError(t, err)

	_, _, err = g.Verify(token, addr("9.9.9.9:9999"))
	require.Error(t, err)
	assert.True(t, neterr.Is(err, neterr.KindAuthRejection))
}

func TestPasscodeIsSixDigits(t *testing.T) {
	g, err := NewGate(nil, 4)
	require.NoError(t, err)
	assert.Len(t, g.Passcode(), 6)
	for _, c := range g.Passcode() {
		assert.True(t, c >= '0' && c <= '9')
	}
}
