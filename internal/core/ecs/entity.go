package ecs

import "fmt"

// EntityID identifies an entity for the lifetime of the process. Ids start at
// 1, grow monotonically and are never reused.
type EntityID uint64

func (id EntityID) IsZero() bool { return id == 0 }

// EntityType tags what an entity represents. It is fixed at creation.
type EntityType uint8

const (
	EntityTypeUnknown EntityType = iota
	EntityTypePlayer
	EntityTypeAsteroid
)

func (t EntityType) String() string {
	switch t {
	case EntityTypePlayer:
		return "player"
	case EntityTypeAsteroid:
		return "asteroid"
	default:
		return "unknown"
	}
}

func (t EntityType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EntityType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "player":
		*t = EntityTypePlayer
	case "asteroid":
		*t = EntityTypeAsteroid
	case "unknown":
		*t = EntityTypeUnknown
	default:
		return fmt.Errorf("ecs: unknown entity type %q", b)
	}
	return nil
}

type entityRecord struct {
	typ   EntityType
	kinds KindSet
}
