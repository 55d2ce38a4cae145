package protocol

import (
	"github.com/google/uuid"

	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/physics"
)

// ConnectionID identifies one client connection for its lifetime.
type ConnectionID string

// GenerateConnectionID returns a fresh random connection id.
func GenerateConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// Event names on the wire.
const (
	EventPlayerInput    = "playerInput"
	EventAssignPlayerID = "assignPlayerId"
	EventSpawnEntity    = "spawnEntity"
	EventPlayersSync    = "playersSync"
	EventPlayerLeft     = "playerLeft"
)

// PlayerInput is the only inbound gameplay message.
type PlayerInput struct {
	MoveInput physics.Vec2 `json:"moveInput" msgpack:"moveInput"`
	LookRot   float64      `json:"lookRot" msgpack:"lookRot"`
}

// SpawnEntity announces a newly created entity with its initial data.
type SpawnEntity struct {
	EntityID ecs.EntityID   `json:"entityId" msgpack:"entityId"`
	Type     ecs.EntityType `json:"type" msgpack:"type"`
	Time     int64          `json:"time" msgpack:"time"`
	Initial  ecs.EntityData `json:"initial" msgpack:"initial"`
}

// EntityState is the reduced per-entity view carried by a snapshot.
type EntityState struct {
	ID       ecs.EntityID `json:"id" msgpack:"id"`
	Position physics.Vec2 `json:"position" msgpack:"position"`
	Rotation float64      `json:"rotation" msgpack:"rotation"`
}

// PlayersSync is the rate-limited state snapshot. Time is unix milliseconds.
type PlayersSync struct {
	Entities []EntityState `json:"entities" msgpack:"entities"`
	Time     int64         `json:"time" msgpack:"time"`
	Tick     uint64        `json:"tick" msgpack:"tick"`
	Checksum uint64        `json:"checksum" msgpack:"checksum"`
}

// PlayerLeft is broadcast when a connection's player entity is destroyed.
type PlayerLeft struct {
	EntityID     ecs.EntityID `json:"entityId" msgpack:"entityId"`
	ConnectionID ConnectionID `json:"connectionId" msgpack:"connectionId"`
}
