package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pjtunstall/by-a-thread/internal/mathutil"
)

func TestBasicStepIsDeterministic(t *testing.T) {
	state := PlayerPhysicsState{Position: mathutil.Vector3{X: 1, Y: 0, Z: 1}}
	input := Input{Move: mathutil.Vector2{X: 0, Y: 1}}
	a := Basic(state, input, 1.0/60)
	b := Basic(state, input, 1.0/60)
	assert.Equal(t, a, b)
}

func TestBasicStepNoInputNoMovement(t *testing.T) {
	state := PlayerPhysicsState{Position: mathutil.Vector3{X: 0, Y: 0, Z: 0}}
	next := Basic(state, Input{}, 1.0/60)
	assert.Equal(t, mathutil.Vector3{}, next.Position)
}

func TestBasicStepAppliesYawDelta(t *testing.T) {
	state := PlayerPhysicsState{Yaw: 0}
	next := Basic(state, Input{YawDelta: 0.5}, 1.0/60)
	assert.InDelta(t, 0.5, next.Yaw, 1e-9)
}
