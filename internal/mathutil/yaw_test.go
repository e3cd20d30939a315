package mathutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestYawEncodeDecodeBound(t *testing.T) {
	const tolerance = Tau / 255
	for i := 0; i < 1000; i++ {
		y := float64(i) * 0.0123
		decoded := DecodeYaw(EncodeYaw(y))
		diff := math.Mod(decoded-y, Tau)
		if diff > math.Pi {
			diff -= Tau
		}
		if diff < -math.Pi {
			diff += Tau
		}
		assert.LessOrEqual(t, math.Abs(diff), tolerance+1e-9)
	}
}

func TestYawEncodeNegative(t *testing.T) {
	// -π/2 should encode the same as 3π/2.
	a := EncodeYaw(-math.Pi / 2)
	b := EncodeYaw(3 * math.Pi / 2)
	assert.InDelta(t, float64(a), float64(b), 1)
}

func TestLerpYawShortestWrap(t *testing.T) {
	// from 350 degrees to 10 degrees should go forward through 0, not
	// backward through 180.
	a := 350.0 * math.Pi / 180
	b := 10.0 * math.Pi / 180
	mid := LerpYawShortest(a, b, 0.5)
	normalized := math.Mod(mid+Tau, Tau)
	// expect near 0 degrees (0 or 360), not near 180.
	assert.True(t, normalized < 0.2 || normalized > Tau-0.2)
}

func TestLerpYawShortestIdentityAtZero(t *testing.T) {
	a := 1.23
	b := 4.0
	assert.InDelta(t, a, LerpYawShortest(a, b, 0), 1e-9)
}

func TestLerpYawShortestIdentityAtOne(t *testing.T) {
	a := 1.0
	b := 2.0
	got := LerpYawShortest(a, b, 1)
	diff := math.Mod(got-b+math.Pi, Tau)
	if diff < 0 {
		diff += Tau
	}
	diff -= math.Pi
	assert.InDelta(t, 0, diff, 1e-9)
}
