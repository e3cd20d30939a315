// Package sim defines the movement/weapon simulation boundary: the
// exact movement/weapon physics are deliberately left opaque, modeled
// only as a pure function from state and input to the next state.
// Everything upstream (reconciliation, replay, the server's
// authoritative tick) depends only on this interface, never on a
// concrete physics implementation.
package sim

import (
	"math"

	"github.com/pjtunstall/by-a-thread/internal/mathutil"
)

// Input is one tick's movement/weapon input, independent of the wire
// encoding in internal/proto.
type Input struct {
	Move     mathutil.Vector2 // one of the 9-way translation directions, already normalized
	YawDelta float64
	PitchDelta float64
	Fire     bool
	Jump     bool
}

// PlayerPhysicsState is the subset of snapshot.PlayerState the step
// function both reads and produces.
type PlayerPhysicsState struct {
	Position mathutil.Vector3
	Velocity mathutil.Vector3
	Yaw      float64
	Pitch    float64
}

// Step advances one player's physics state by a fixed timestep dt given
// one tick's input. It must be a pure, deterministic function of its
// arguments so that client-side replay (C6) reproduces the server's
// result exactly when given the same input history: no access to wall
// time, randomness, or global state.
type Step func(state PlayerPhysicsState, input Input, dt float64) PlayerPhysicsState

// Basic is a minimal placeholder Step: constant-speed movement relative
// to facing, gravity-free, no collision. Real movement/weapon physics
// (collision with maze geometry, jump arcs, weapon recoil) are supplied
// by the host application; Basic exists so the engine is runnable and
// testable without one.
func Basic(state PlayerPhysicsState, input Input, dt float64) PlayerPhysicsState {
	const moveSpeed = 4.0 // world units per second

	state.Yaw += input.YawDelta
	state.Pitch += input.PitchDelta

	forward := mathutil.Vector3{X: -math.Sin(state.Yaw), Y: 0, Z: math.Cos(state.Yaw)}
	right := mathutil.Vector3{X: math.Cos(state.Yaw), Y: 0, Z: math.Sin(state.Yaw)}

	displacement := forward.Mul(input.Move.Y).Add(right.Mul(input.Move.X))
	if mag := displacement.Magnitude(); mag > 1e-9 {
		displacement = displacement.Normalize().Mul(moveSpeed * dt)
	}

	state.Velocity = displacement.Mul(1.0 / dt)
	state.Position = state.Position.Add(displacement)

	return state
}
