package ecs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/arena/internal/core/physics"
)

var asteroidKinds = []Kind{KindTransform, KindRigidBody, KindCollider, KindTransformSync}

func TestCreateEntityAppliesDefaults(t *testing.T) {
	w := NewWorld()

	id, err := w.CreateEntity(EntityTypeAsteroid, EntityData{
		Position: physics.V(10, 20),
		Size:     physics.V(30, 30),
		Priority: 30,
	}, asteroidKinds...)
	require.NoError(t, err)
	assert.Equal(t, EntityID(1), id)

	tr, err := w.Transform(id)
	require.NoError(t, err)
	assert.Equal(t, physics.V(10, 20), tr.Position)
	assert.Equal(t, 0.0, tr.Rotation)
	assert.Equal(t, 30.0, tr.Radius())

	body, err := w.RigidBody(id)
	require.NoError(t, err)
	assert.Equal(t, physics.Vec2{}, body.Velocity)
	assert.Equal(t, physics.Vec2{}, body.Acceleration)
	assert.Equal(t, 1.0, body.DragScale)
	assert.False(t, body.HasDrag)

	col, err := w.Collider(id)
	require.NoError(t, err)
	assert.Equal(t, ShapeCircle, col.Shape)
	assert.Equal(t, 30.0, col.Priority)

	typ, err := w.Type(id)
	require.NoError(t, err)
	assert.Equal(t, EntityTypeAsteroid, typ)
	assert.True(t, w.Has(id, KindTransformSync))
	assert.False(t, w.Has(id, KindPlayerInput))
}

func TestCreateEntityRejectsBadKinds(t *testing.T) {
	w := NewWorld()

	_, err := w.CreateEntity(EntityTypePlayer, EntityData{})
	assert.ErrorIs(t, err, ErrInvalidKinds)

	_, err = w.CreateEntity(EntityTypePlayer, EntityData{}, KindTransform|KindCollider)
	assert.ErrorIs(t, err, ErrInvalidKinds)

	assert.Equal(t, 0, w.Len())
}

func TestIdsAreMonotonicAndNeverReused(t *testing.T) {
	w := NewWorld()
	a, _ := w.CreateEntity(EntityTypeAsteroid, EntityData{}, KindTransform)
	b, _ := w.CreateEntity(EntityTypeAsteroid, EntityData{}, KindTransform)
	require.NoError(t, w.DestroyEntity(b))
	c, _ := w.CreateEntity(EntityTypeAsteroid, EntityData{}, KindTransform)

	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

func TestMissingComponentAccess(t *testing.T) {
	w := NewWorld()
	id, _ := w.CreateEntity(EntityTypeAsteroid, EntityData{}, KindTransform)

	_, err := w.RigidBody(id)
	assert.ErrorIs(t, err, ErrMissingComponent)

	var compErr *ComponentError
	require.True(t, errors.As(err, &compErr))
	assert.Equal(t, KindRigidBody, compErr.Kind)
	assert.Equal(t, id, compErr.ID)

	assert.PanicsWithError(t, compErr.Error(), func() { w.MustRigidBody(id) })

	_, err = w.Transform(999)
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestDestroyEntityRemovesEverything(t *testing.T) {
	w := NewWorld()
	keep, _ := w.CreateEntity(EntityTypeAsteroid, EntityData{}, asteroidKinds...)
	gone, _ := w.CreateEntity(EntityTypePlayer, EntityData{}, KindTransform, KindRigidBody, KindCollider, KindPlayerInput)

	require.NoError(t, w.DestroyEntity(gone))

	assert.False(t, w.Alive(gone))
	_, err := w.Transform(gone)
	assert.ErrorIs(t, err, ErrEntityNotFound)
	_, err = w.PlayerInput(gone)
	assert.ErrorIs(t, err, ErrEntityNotFound)

	assert.Equal(t, []EntityID{keep}, w.Query(KindTransform).Collect())
	assert.Empty(t, w.Query(KindPlayerInput).Collect())
	assert.Equal(t, 1, w.transforms.Len())
	assert.Equal(t, 0, w.inputs.Len())

	assert.ErrorIs(t, w.DestroyEntity(gone), ErrEntityNotFound)
}

func TestQueryMatchesSupersetsInIdOrder(t *testing.T) {
	w := NewWorld()
	a, _ := w.CreateEntity(EntityTypeAsteroid, EntityData{}, asteroidKinds...)
	p, _ := w.CreateEntity(EntityTypePlayer, EntityData{}, KindTransform, KindRigidBody, KindCollider, KindPlayerInput)
	s, _ := w.CreateEntity(EntityTypeAsteroid, EntityData{}, KindTransform, KindCollider)

	assert.Equal(t, []EntityID{a, p, s}, w.Query(KindTransform, KindCollider).Collect())
	assert.Equal(t, []EntityID{a, p}, w.Query(KindTransform, KindRigidBody).Collect())
	assert.Equal(t, []EntityID{p}, w.Query(KindPlayerInput).Collect())
	assert.Equal(t, []EntityID{a}, w.Query(KindTransformSync).Collect())
}

func TestQueryIsLazyAndRestartable(t *testing.T) {
	w := NewWorld()
	q := w.Query(KindTransform)
	assert.Equal(t, 0, q.Count())

	id, _ := w.CreateEntity(EntityTypeAsteroid, EntityData{}, KindTransform)
	assert.Equal(t, []EntityID{id}, q.Collect())
	assert.Equal(t, []EntityID{id}, q.Collect())
}

func TestQuerySnapshotDuringIteration(t *testing.T) {
	w := NewWorld()
	a, _ := w.CreateEntity(EntityTypeAsteroid, EntityData{}, KindTransform)
	b, _ := w.CreateEntity(EntityTypeAsteroid, EntityData{}, KindTransform)
	c, _ := w.CreateEntity(EntityTypeAsteroid, EntityData{}, KindTransform)

	var seen []EntityID
	var created EntityID
	for id := range w.Query(KindTransform).Seq() {
		seen = append(seen, id)
		if id == a {
			require.NoError(t, w.DestroyEntity(b))
			created, _ = w.CreateEntity(EntityTypeAsteroid, EntityData{}, KindTransform)
		}
	}

	assert.Equal(t, []EntityID{a, c}, seen)
	assert.Equal(t, []EntityID{a, c, created}, w.Query(KindTransform).Collect())
	assert.Equal(t, []EntityID{a, c, created}, w.order)
}

func TestEachSkipsFaultyEntity(t *testing.T) {
	w := NewWorld()
	a, _ := w.CreateEntity(EntityTypeAsteroid, EntityData{}, KindTransform, KindRigidBody)
	b, _ := w.CreateEntity(EntityTypeAsteroid, EntityData{}, KindTransform, KindRigidBody)
	c, _ := w.CreateEntity(EntityTypeAsteroid, EntityData{}, KindTransform, KindRigidBody)

	var visited []EntityID
	w.Each(Kinds(KindTransform, KindRigidBody), func(id EntityID) {
		if id == b {
			w.MustCollider(id)
		}
		visited = append(visited, id)
	})

	assert.Equal(t, []EntityID{a, c}, visited)
	assert.Equal(t, uint64(1), w.Faults())
}

func TestChecksumTracksState(t *testing.T) {
	build := func() *World {
		w := NewWorld()
		_, _ = w.CreateEntity(EntityTypeAsteroid, EntityData{Position: physics.V(1, 2), Velocity: physics.V(3, 4)}, asteroidKinds...)
		_, _ = w.CreateEntity(EntityTypeAsteroid, EntityData{Position: physics.V(5, 6)}, asteroidKinds...)
		return w
	}
	w1, w2 := build(), build()
	assert.Equal(t, w1.Checksum(), w2.Checksum())

	w2.MustTransform(2).Position.X += 1e-9
	assert.NotEqual(t, w1.Checksum(), w2.Checksum())
}

func TestKindSetString(t *testing.T) {
	assert.Equal(t, "{Transform,Collider}", Kinds(KindCollider, KindTransform).String())
	assert.Equal(t, "RigidBody", KindRigidBody.String())
}

func TestDataReflectsCurrentState(t *testing.T) {
	w := NewWorld()
	id, err := w.CreateEntity(EntityTypePlayer, EntityData{
		Position: physics.V(10, 20), Size: physics.V(20, 20), Priority: 20,
		HasDrag: true, DragScale: 0.8, MaxAcceleration: 1000,
	}, KindTransform, KindRigidBody, KindCollider, KindPlayerInput, KindTransformSync)
	require.NoError(t, err)
	w.MustTransform(id).Position = physics.V(11, 21)
	w.MustPlayerInput(id).LookRot = 1.5

	d, err := w.Data(id)
	require.NoError(t, err)
	assert.Equal(t, physics.V(11, 21), d.Position)
	assert.Equal(t, 0.8, d.DragScale)
	assert.Equal(t, ShapeCircle, d.Shape)
	assert.Equal(t, 20.0, d.Priority)
	assert.Equal(t, 1.5, d.LookRot)

	_, err = w.Data(99)
	assert.ErrorIs(t, err, ErrEntityNotFound)
}
