package neterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesOnlySameKind(t *testing.T) {
	err := AuthRejection("bad passcode")
	assert.True(t, Is(err, KindAuthRejection))
	assert.False(t, Is(err, KindDecodeError))
}

func TestIsRejectsPlainErrors(t *testing.T) {
	assert.False(t, Is(errors.New("boom"), KindTransportFailure))
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := TransportFailure("send failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, KindTransportFailure, err.Kind())
}

func TestErrorStringIncludesKindAndMessage(t *testing.T) {
	err := ProtocolViolation("unexpected InputBatch")
	assert.Equal(t, "protocol_violation: unexpected InputBatch", err.Error())
}

func TestErrorStringIncludesCauseWhenPresent(t *testing.T) {
	cause := errors.New("truncated frame")
	err := DecodeError("bad envelope", cause)
	assert.Equal(t, "decode_error: bad envelope: truncated frame", err.Error())
}

func TestKindStringCoversEveryConstant(t *testing.T) {
	kinds := []Kind{
		KindTransportFailure,
		KindAuthRejection,
		KindDecodeError,
		KindProtocolViolation,
		KindCapacityViolation,
		KindSpiral,
	}
	for _, k := range kinds {
		assert.NotEqual(t, "unknown", k.String())
	}
}
