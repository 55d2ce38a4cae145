package systems

import (
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/physics"
)

// BoundsSystem keeps every collider fully inside the world rectangle.
type BoundsSystem struct {
	bounds physics.Rect
	mask   ecs.KindSet
}

func NewBoundsSystem(bounds physics.Rect) *BoundsSystem {
	return &BoundsSystem{bounds: bounds, mask: ecs.Kinds(ecs.KindTransform, ecs.KindCollider)}
}

func (s *BoundsSystem) Name() string { return "BoundsSystem" }

func (s *BoundsSystem) Update(w *ecs.World, _ float64) {
	w.Each(s.mask, func(id ecs.EntityID) {
		t := w.MustTransform(id)
		t.Position = s.bounds.ClampCircle(t.Position, t.Radius())
	})
}
