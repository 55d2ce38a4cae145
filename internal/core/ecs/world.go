package ecs

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/kamstrup/intmap"

	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/pkg/sequence"
)

const defaultCapacity = 256

// World owns the entity registry and every component store. It is not safe
// for concurrent use: all access happens on the simulation goroutine.
type World struct {
	nextID  EntityID
	records *intmap.Map[EntityID, entityRecord]
	// order holds ids in ascending order. Ids destroyed while a query is
	// iterating stay in place until the last iteration ends.
	order      []EntityID
	tombstones int
	iterating  int

	transforms *Store[Transform]
	bodies     *Store[RigidBody]
	colliders  *Store[Collider]
	inputs     *Store[PlayerInput]

	commands *Commands
	logger   log.Log
	faults   uint64
}

type WorldOption func(*World)

func WithLogger(logger log.Log) WorldOption {
	return func(w *World) { w.logger = logger }
}

func WithCapacity(capacity int) WorldOption {
	return func(w *World) {
		w.transforms = NewStore[Transform](capacity)
		w.bodies = NewStore[RigidBody](capacity)
		w.colliders = NewStore[Collider](capacity)
		w.inputs = NewStore[PlayerInput](capacity)
	}
}

func NewWorld(opts ...WorldOption) *World {
	w := &World{
		nextID:     1,
		records:    intmap.New[EntityID, entityRecord](defaultCapacity),
		order:      make([]EntityID, 0, defaultCapacity),
		transforms: NewStore[Transform](defaultCapacity),
		bodies:     NewStore[RigidBody](defaultCapacity),
		colliders:  NewStore[Collider](defaultCapacity),
		inputs:     NewStore[PlayerInput](defaultCapacity),
		commands:   newCommands(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = log.NewNop()
	}
	w.logger = w.logger.With(log.String("component", "ecs"))
	return w
}

// CreateEntity allocates a fresh id, records the declared kinds and
// initializes each declared component from data.
func (w *World) CreateEntity(typ EntityType, data EntityData, kinds ...Kind) (EntityID, error) {
	if len(kinds) == 0 {
		return 0, fmt.Errorf("create %s: %w: no kinds", typ, ErrInvalidKinds)
	}
	for _, k := range kinds {
		if !k.valid() {
			return 0, fmt.Errorf("create %s: %w: %d", typ, ErrInvalidKinds, k)
		}
	}
	set := Kinds(kinds...)

	id := w.nextID
	w.nextID++

	if set.Has(KindTransform) {
		w.transforms.Insert(id, data.transform())
	}
	if set.Has(KindRigidBody) {
		w.bodies.Insert(id, data.rigidBody())
	}
	if set.Has(KindCollider) {
		w.colliders.Insert(id, data.collider())
	}
	if set.Has(KindPlayerInput) {
		w.inputs.Insert(id, data.playerInput())
	}

	w.records.Put(id, entityRecord{typ: typ, kinds: set})
	w.order = append(w.order, id)
	return id, nil
}

// DestroyEntity removes every component record of id.
func (w *World) DestroyEntity(id EntityID) error {
	rec, ok := w.records.Get(id)
	if !ok {
		return fmt.Errorf("destroy %d: %w", id, ErrEntityNotFound)
	}
	if rec.kinds.Has(KindTransform) {
		w.transforms.Remove(id)
	}
	if rec.kinds.Has(KindRigidBody) {
		w.bodies.Remove(id)
	}
	if rec.kinds.Has(KindCollider) {
		w.colliders.Remove(id)
	}
	if rec.kinds.Has(KindPlayerInput) {
		w.inputs.Remove(id)
	}
	w.records.Del(id)

	if pos, found := slices.BinarySearch(w.order, id); found {
		if w.iterating > 0 {
			w.tombstones++
		} else {
			w.order = slices.Delete(w.order, pos, pos+1)
		}
	}
	return nil
}

// Alive reports whether id refers to an existing entity.
func (w *World) Alive(id EntityID) bool {
	return w.records.Has(id)
}

func (w *World) Type(id EntityID) (EntityType, error) {
	rec, ok := w.records.Get(id)
	if !ok {
		return EntityTypeUnknown, fmt.Errorf("type of %d: %w", id, ErrEntityNotFound)
	}
	return rec.typ, nil
}

func (w *World) Kinds(id EntityID) (KindSet, error) {
	rec, ok := w.records.Get(id)
	if !ok {
		return 0, fmt.Errorf("kinds of %d: %w", id, ErrEntityNotFound)
	}
	return rec.kinds, nil
}

func (w *World) Has(id EntityID, k Kind) bool {
	rec, ok := w.records.Get(id)
	return ok && rec.kinds.Has(k)
}

// Data captures the current state of id's components as EntityData, the
// same shape CreateEntity accepts.
func (w *World) Data(id EntityID) (EntityData, error) {
	rec, ok := w.records.Get(id)
	if !ok {
		return EntityData{}, fmt.Errorf("data of %d: %w", id, ErrEntityNotFound)
	}
	var d EntityData
	if t, ok := w.transforms.Get(id); ok {
		d.Position, d.Rotation, d.Size = t.Position, t.Rotation, t.Size
	}
	if b, ok := w.bodies.Get(id); ok {
		d.Velocity, d.Acceleration = b.Velocity, b.Acceleration
		d.MaxAcceleration, d.HasDrag, d.DragScale = b.MaxAcceleration, b.HasDrag, b.DragScale
	}
	if c, ok := w.colliders.Get(id); ok {
		d.Shape, d.Priority, d.Static = c.Shape, c.Priority, c.Static
	}
	if rec.kinds.Has(KindPlayerInput) {
		if in, ok := w.inputs.Get(id); ok {
			d.MoveInput, d.LookRot = in.MoveInput, in.LookRot
		}
	}
	return d, nil
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return w.records.Len()
}

// Commands returns the deferred command buffer, flushed by the scheduler at
// the end of every update.
func (w *World) Commands() *Commands {
	return w.commands
}

// Faults returns how many per-entity faults Each has recovered so far.
func (w *World) Faults() uint64 {
	return w.faults
}

// Query yields, in ascending id order, every entity owning all of kinds.
// Each pass sees the entity list as of its start: entities created during
// the pass are not visited, entities destroyed during it are skipped.
func (w *World) Query(kinds ...Kind) *sequence.Iterator[EntityID] {
	mask := Kinds(kinds...)
	return sequence.FromSeq(func(yield func(EntityID) bool) {
		ids := w.order
		w.iterating++
		defer w.endIteration()

		for _, id := range ids {
			rec, ok := w.records.Get(id)
			if !ok || !rec.kinds.Contains(mask) {
				continue
			}
			if !yield(id) {
				return
			}
		}
	})
}

// Each runs fn for every entity matching mask. A panic raised while handling
// one entity is recovered and logged, and iteration continues with the next.
func (w *World) Each(mask KindSet, fn func(id EntityID)) {
	ids := w.order
	w.iterating++
	defer w.endIteration()

	for _, id := range ids {
		rec, ok := w.records.Get(id)
		if !ok || !rec.kinds.Contains(mask) {
			continue
		}
		w.visit(id, fn)
	}
}

func (w *World) visit(id EntityID, fn func(EntityID)) {
	defer func() {
		if r := recover(); r != nil {
			w.faults++
			w.logger.Error("Entity skipped for this tick",
				log.Uint64("entity_id", uint64(id)),
				log.Any("fault", r))
		}
	}()
	fn(id)
}

func (w *World) endIteration() {
	w.iterating--
	if w.iterating == 0 && w.tombstones > 0 {
		w.order = slices.DeleteFunc(w.order, func(id EntityID) bool { return !w.records.Has(id) })
		w.tombstones = 0
	}
}

func (w *World) Transform(id EntityID) (*Transform, error) {
	return lookup(w, w.transforms, id, KindTransform)
}

func (w *World) RigidBody(id EntityID) (*RigidBody, error) {
	return lookup(w, w.bodies, id, KindRigidBody)
}

func (w *World) Collider(id EntityID) (*Collider, error) {
	return lookup(w, w.colliders, id, KindCollider)
}

func (w *World) PlayerInput(id EntityID) (*PlayerInput, error) {
	return lookup(w, w.inputs, id, KindPlayerInput)
}

// MustTransform panics with a *ComponentError when the entity lacks the
// component. Systems call the Must accessors inside Each.
func (w *World) MustTransform(id EntityID) *Transform {
	return must(w.Transform(id))
}

func (w *World) MustRigidBody(id EntityID) *RigidBody {
	return must(w.RigidBody(id))
}

func (w *World) MustCollider(id EntityID) *Collider {
	return must(w.Collider(id))
}

func (w *World) MustPlayerInput(id EntityID) *PlayerInput {
	return must(w.PlayerInput(id))
}

func lookup[T any](w *World, s *Store[T], id EntityID, k Kind) (*T, error) {
	rec, ok := w.records.Get(id)
	if !ok {
		return nil, &ComponentError{ID: id, Kind: k, Err: ErrEntityNotFound}
	}
	if !rec.kinds.Has(k) {
		return nil, &ComponentError{ID: id, Kind: k, Err: ErrMissingComponent}
	}
	c, ok := s.Get(id)
	if !ok {
		return nil, &ComponentError{ID: id, Kind: k, Err: ErrMissingComponent}
	}
	return c, nil
}

func must[T any](c *T, err error) *T {
	if err != nil {
		panic(err)
	}
	return c
}

// Checksum digests every Transform and RigidBody in ascending id order.
// Two worlds that went through the same inputs and deltas hash equal.
func (w *World) Checksum() uint64 {
	d := xxhash.New()
	buf := make([]byte, 0, 128)
	for _, id := range w.order {
		if !w.records.Has(id) {
			continue
		}
		buf = binary.LittleEndian.AppendUint64(buf[:0], uint64(id))
		if t, ok := w.transforms.Get(id); ok {
			buf = appendFloats(buf, t.Position.X, t.Position.Y, t.Rotation, t.Size.X, t.Size.Y)
		}
		if b, ok := w.bodies.Get(id); ok {
			buf = appendFloats(buf, b.Velocity.X, b.Velocity.Y, b.Acceleration.X, b.Acceleration.Y)
		}
		_, _ = d.Write(buf)
	}
	return d.Sum64()
}

func appendFloats(buf []byte, vs ...float64) []byte {
	for _, v := range vs {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return buf
}
