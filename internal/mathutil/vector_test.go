package mathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVector3Lerp(t *testing.T) {
	a := Vector3{X: 0, Y: 0, Z: 0}
	b := Vector3{X: 10, Y: 0, Z: 0}
	mid := a.Lerp(b, 0.5)
	assert.InDelta(t, 5.0, mid.X, 1e-9)
}

func TestVector3Normalize(t *testing.T) {
	v := Vector3{X: 3, Y: 4, Z: 0}
	n := v.Normalize()
	assert.InDelta(t, 1.0, n.Magnitude(), 1e-9)
}

func TestVector3NormalizeZero(t *testing.T) {
	assert.Equal(t, Vector3{}, Vector3{}.Normalize())
}

func TestVector2Magnitude(t *testing.T) {
	v := Vector2{X: 3, Y: 4}
	assert.InDelta(t, 5.0, v.Magnitude(), 1e-9)
}
