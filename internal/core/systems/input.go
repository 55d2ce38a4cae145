package systems

import "github.com/zeusync/arena/internal/core/ecs"

const DefaultInputAcceleration = 1000

// PlayerInputHandlerSystem turns the latest player input into acceleration
// and facing.
type PlayerInputHandlerSystem struct {
	acceleration float64
	mask         ecs.KindSet
}

func NewPlayerInputHandlerSystem(acceleration float64) *PlayerInputHandlerSystem {
	return &PlayerInputHandlerSystem{
		acceleration: acceleration,
		mask:         ecs.Kinds(ecs.KindPlayerInput, ecs.KindRigidBody, ecs.KindTransform),
	}
}

func (s *PlayerInputHandlerSystem) Name() string { return "PlayerInputHandlerSystem" }

func (s *PlayerInputHandlerSystem) Update(w *ecs.World, _ float64) {
	w.Each(s.mask, func(id ecs.EntityID) {
		input := w.MustPlayerInput(id)
		w.MustRigidBody(id).Acceleration = input.MoveInput.Scale(s.acceleration)
		w.MustTransform(id).Rotation = input.LookRot
	})
}
