// Package physics holds the 2D vector and rectangle math used by the
// simulation systems. Values are plain structs passed by value.
package physics

import "math"

// Vec2 is a 2D vector. Field names match the wire format.
type Vec2 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

// UnitX is the fallback axis for degenerate normals.
var UnitX = Vec2{X: 1}

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Dot(o Vec2) float64   { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Length() float64      { return math.Hypot(v.X, v.Y) }
func (v Vec2) IsZero() bool         { return v.X == 0 && v.Y == 0 }

// IsFinite reports whether neither component is NaN or infinite.
func (v Vec2) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// Normalize returns the unit vector along v, or UnitX when v has no length.
func (v Vec2) Normalize() Vec2 {
	l := v.Length()
	if l == 0 {
		return UnitX
	}
	return Vec2{v.X / l, v.Y / l}
}

// ClampLength scales v down so its magnitude does not exceed max.
// Vectors already within the limit are returned unchanged. A vector whose
// length overflows keeps its direction, and a NaN vector becomes zero.
func (v Vec2) ClampLength(max float64) Vec2 {
	if math.IsNaN(v.X) || math.IsNaN(v.Y) {
		return Vec2{}
	}
	l := v.Length()
	switch {
	case l <= max || l == 0:
		return v
	case math.IsInf(l, 0):
		return v.direction().Scale(max)
	}
	return v.Scale(max / l)
}

// direction is Normalize for vectors too long to measure. Infinite
// components dominate the finite ones.
func (v Vec2) direction() Vec2 {
	if math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
		return Vec2{infSign(v.X), infSign(v.Y)}.Normalize()
	}
	m := math.Max(math.Abs(v.X), math.Abs(v.Y))
	return v.Scale(1 / m).Normalize()
}

func infSign(x float64) float64 {
	if math.IsInf(x, 0) {
		return math.Copysign(1, x)
	}
	return 0
}

// Distance computes the Euclidean distance between two points.
func Distance(a, b Vec2) float64 { return math.Hypot(b.X-a.X, b.Y-a.Y) }

// Clamp limits x to [lo, hi]. The caller guarantees lo <= hi.
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
