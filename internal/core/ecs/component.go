package ecs

import (
	"math/bits"
	"strings"

	"github.com/zeusync/arena/internal/core/physics"
)

// Kind is a single component kind. Each kind occupies one bit so a set of
// kinds fits in a KindSet.
type Kind uint8

const (
	KindTransform Kind = 1 << iota
	KindRigidBody
	KindCollider
	KindPlayerInput
	KindTransformSync

	kindLimit
)

var kindNames = map[Kind]string{
	KindTransform:     "Transform",
	KindRigidBody:     "RigidBody",
	KindCollider:      "Collider",
	KindPlayerInput:   "PlayerInput",
	KindTransformSync: "TransformSync",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Kind(?)"
}

func (k Kind) valid() bool {
	return k != 0 && k < kindLimit && bits.OnesCount8(uint8(k)) == 1
}

// KindSet is a bitmask of component kinds.
type KindSet uint8

// Kinds builds a set from individual kinds.
func Kinds(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s |= KindSet(k)
	}
	return s
}

func (s KindSet) Has(k Kind) bool { return s&KindSet(k) == KindSet(k) }

// Contains reports whether s is a superset of other.
func (s KindSet) Contains(other KindSet) bool { return s&other == other }

func (s KindSet) String() string {
	names := make([]string, 0, len(kindNames))
	for k := KindTransform; k < kindLimit; k <<= 1 {
		if s.Has(k) {
			names = append(names, k.String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Shape is the collider geometry. Only circles exist for now.
type Shape string

const ShapeCircle Shape = "circle"

type Transform struct {
	Position physics.Vec2
	Rotation float64
	// Size.X is the radius for circular shapes.
	Size physics.Vec2
}

// Radius is the collision radius of a circular entity.
func (t *Transform) Radius() float64 { return t.Size.X }

type RigidBody struct {
	Velocity        physics.Vec2
	Acceleration    physics.Vec2
	MaxAcceleration float64
	HasDrag         bool
	DragScale       float64
}

type Collider struct {
	Shape    Shape
	Priority float64
	Static   bool
}

type PlayerInput struct {
	MoveInput physics.Vec2
	LookRot   float64
}

// EntityData is the partial initial state handed to CreateEntity. Only the
// fields belonging to declared kinds are read. A zero DragScale means unset
// and becomes 1 (no drag).
type EntityData struct {
	Position        physics.Vec2 `json:"position" msgpack:"position"`
	Rotation        float64      `json:"rotation,omitempty" msgpack:"rotation,omitempty"`
	Size            physics.Vec2 `json:"size" msgpack:"size"`
	Velocity        physics.Vec2 `json:"velocity" msgpack:"velocity"`
	Acceleration    physics.Vec2 `json:"acceleration" msgpack:"acceleration"`
	MaxAcceleration float64      `json:"maxAcceleration,omitempty" msgpack:"maxAcceleration,omitempty"`
	HasDrag         bool         `json:"hasDrag" msgpack:"hasDrag"`
	DragScale       float64      `json:"dragScale,omitempty" msgpack:"dragScale,omitempty"`
	Shape           Shape        `json:"type,omitempty" msgpack:"type,omitempty"`
	Priority        float64      `json:"priority,omitempty" msgpack:"priority,omitempty"`
	Static          bool         `json:"static" msgpack:"static"`
	MoveInput       physics.Vec2 `json:"moveInput" msgpack:"moveInput"`
	LookRot         float64      `json:"lookRot,omitempty" msgpack:"lookRot,omitempty"`
}

func (d EntityData) transform() Transform {
	return Transform{Position: d.Position, Rotation: d.Rotation, Size: d.Size}
}

func (d EntityData) rigidBody() RigidBody {
	drag := d.DragScale
	if drag == 0 {
		drag = 1
	}
	return RigidBody{
		Velocity:        d.Velocity,
		Acceleration:    d.Acceleration,
		MaxAcceleration: d.MaxAcceleration,
		HasDrag:         d.HasDrag,
		DragScale:       drag,
	}
}

func (d EntityData) collider() Collider {
	shape := d.Shape
	if shape == "" {
		shape = ShapeCircle
	}
	return Collider{Shape: shape, Priority: d.Priority, Static: d.Static}
}

func (d EntityData) playerInput() PlayerInput {
	return PlayerInput{MoveInput: d.MoveInput, LookRot: d.LookRot}
}
