package systems

import "github.com/zeusync/arena/internal/core/ecs"

type collisionBody struct {
	id       ecs.EntityID
	t        *ecs.Transform
	priority float64
	static   bool
}

// CollisionSystem separates overlapping circles. Every pair is checked in
// ascending id order and each correction is visible to the pairs after it.
// Velocities are left alone.
type CollisionSystem struct {
	mask     ecs.KindSet
	bodies   []collisionBody
	contacts uint64
}

func NewCollisionSystem() *CollisionSystem {
	return &CollisionSystem{
		mask: ecs.Kinds(ecs.KindTransform, ecs.KindCollider, ecs.KindRigidBody),
	}
}

func (s *CollisionSystem) Name() string { return "CollisionSystem" }

// Contacts returns how many overlapping pairs have been resolved so far.
func (s *CollisionSystem) Contacts() uint64 { return s.contacts }

func (s *CollisionSystem) Update(w *ecs.World, _ float64) {
	s.bodies = s.bodies[:0]
	w.Each(s.mask, func(id ecs.EntityID) {
		c := w.MustCollider(id)
		s.bodies = append(s.bodies, collisionBody{
			id:       id,
			t:        w.MustTransform(id),
			priority: max(c.Priority, 0),
			static:   c.Static,
		})
	})

	for i := 0; i < len(s.bodies); i++ {
		for j := i + 1; j < len(s.bodies); j++ {
			if s.resolve(&s.bodies[i], &s.bodies[j]) {
				s.contacts++
			}
		}
	}

	clear(s.bodies)
	s.bodies = s.bodies[:0]
}

func (s *CollisionSystem) resolve(a, b *collisionBody) bool {
	delta := b.t.Position.Sub(a.t.Position)
	penetration := a.t.Radius() + b.t.Radius() - delta.Length()
	if !(penetration > 0) {
		return false
	}

	shareA, shareB := separationShares(a, b)
	if shareA == 0 && shareB == 0 {
		return true
	}

	// Coincident centers separate along unit x.
	axis := delta.Normalize()
	a.t.Position = a.t.Position.Sub(axis.Scale(penetration * shareA))
	b.t.Position = b.t.Position.Add(axis.Scale(penetration * shareB))
	return true
}

// separationShares splits a correction between two colliders. The side with
// the larger priority moves less.
func separationShares(a, b *collisionBody) (float64, float64) {
	switch {
	case a.static && b.static:
		return 0, 0
	case a.static:
		return 0, 1
	case b.static:
		return 1, 0
	}
	sum := a.priority + b.priority
	if sum == 0 {
		return 0.5, 0.5
	}
	return b.priority / sum, a.priority / sum
}
