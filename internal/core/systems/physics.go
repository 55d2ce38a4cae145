package systems

import "github.com/zeusync/arena/internal/core/ecs"

// PhysicsSystem integrates acceleration into velocity and velocity into
// position with semi-implicit Euler. Drag is applied once per tick.
type PhysicsSystem struct {
	mask ecs.KindSet
}

func NewPhysicsSystem() *PhysicsSystem {
	return &PhysicsSystem{mask: ecs.Kinds(ecs.KindTransform, ecs.KindRigidBody)}
}

func (s *PhysicsSystem) Name() string { return "PhysicsSystem" }

func (s *PhysicsSystem) Update(w *ecs.World, dt float64) {
	if dt == 0 {
		return
	}
	w.Each(s.mask, func(id ecs.EntityID) {
		body := w.MustRigidBody(id)
		t := w.MustTransform(id)

		if body.MaxAcceleration > 0 {
			body.Acceleration = body.Acceleration.ClampLength(body.MaxAcceleration)
		}
		body.Velocity = body.Velocity.Add(body.Acceleration.Scale(dt))
		if body.HasDrag {
			body.Velocity = body.Velocity.Scale(body.DragScale)
		}
		t.Position = t.Position.Add(body.Velocity.Scale(dt))
	})
}
