package physics

// Rect is an axis-aligned rectangle given by its origin and extent.
type Rect struct {
	X float64 `json:"x" yaml:"x" toml:"x"`
	Y float64 `json:"y" yaml:"y" toml:"y"`
	W float64 `json:"w" yaml:"w" toml:"w"`
	H float64 `json:"h" yaml:"h" toml:"h"`
}

func (r Rect) Center() Vec2 { return Vec2{r.X + r.W/2, r.Y + r.H/2} }

func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// ClampCircle keeps a circle of the given radius inside r. On an axis where
// the circle is wider than the rectangle it is centered instead.
func (r Rect) ClampCircle(p Vec2, radius float64) Vec2 {
	return Vec2{
		X: clampAxis(p.X, r.X, r.W, radius),
		Y: clampAxis(p.Y, r.Y, r.H, radius),
	}
}

func clampAxis(v, origin, extent, radius float64) float64 {
	if 2*radius > extent {
		return origin + extent/2
	}
	return Clamp(v, origin+radius, origin+extent-radius)
}
