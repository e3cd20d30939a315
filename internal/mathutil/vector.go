// Package mathutil provides the small vector toolkit shared by the
// simulation, snapshot, and interpolation packages: no rendering
// matrices, no quaternions, since orientation on the wire is a single
// yaw (and, for the local player, pitch) angle rather than a full
// rotation (see mathutil.Yaw).
package mathutil

import "math"

// Vector3 is a position, velocity, or displacement in world space.
type Vector3 struct {
	X, Y, Z float64
}

func (v Vector3) Add(o Vector3) Vector3 { return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vector3) Sub(o Vector3) Vector3 { return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vector3) Mul(s float64) Vector3 { return Vector3{v.X * s, v.Y * s, v.Z * s} }
func (v Vector3) Neg() Vector3          { return Vector3{-v.X, -v.Y, -v.Z} }

func (v Vector3) Dot(o Vector3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vector3) MagnitudeSq() float64 { return v.Dot(v) }
func (v Vector3) Magnitude() float64   { return math.Sqrt(v.MagnitudeSq()) }

func (v Vector3) Normalize() Vector3 {
	mag := v.Magnitude()
	if mag == 0 {
		return Vector3{}
	}
	return v.Mul(1.0 / mag)
}

// Lerp linearly interpolates from v to o at parameter t.
func (v Vector3) Lerp(o Vector3, t float64) Vector3 {
	return v.Add(o.Sub(v).Mul(t))
}

// Vector2 is used for the 9-way translation/rotation directions decoded
// from a PlayerInput (§3).
type Vector2 struct {
	X, Y float64
}

func (v Vector2) Add(o Vector2) Vector2 { return Vector2{v.X + o.X, v.Y + o.Y} }
func (v Vector2) Sub(o Vector2) Vector2 { return Vector2{v.X - o.X, v.Y - o.Y} }
func (v Vector2) Mul(s float64) Vector2 { return Vector2{v.X * s, v.Y * s} }

func (v Vector2) Dot(o Vector2) float64 { return v.X*o.X + v.Y*o.Y }
func (v Vector2) Magnitude() float64    { return math.Sqrt(v.Dot(v)) }

func (v Vector2) Normalize() Vector2 {
	mag := v.Magnitude()
	if mag == 0 {
		return Vector2{}
	}
	return v.Mul(1.0 / mag)
}
