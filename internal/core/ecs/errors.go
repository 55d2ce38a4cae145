package ecs

import (
	"errors"
	"fmt"
)

var (
	ErrEntityNotFound   = errors.New("entity not found")
	ErrMissingComponent = errors.New("entity lacks component")
	ErrInvalidKinds     = errors.New("invalid component kind set")
)

// ComponentError is raised when a system touches a component an entity does
// not own, or an entity that no longer exists.
type ComponentError struct {
	ID   EntityID
	Kind Kind
	Err  error
}

func (e *ComponentError) Error() string {
	if errors.Is(e.Err, ErrEntityNotFound) {
		return fmt.Sprintf("ecs: entity %d: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("ecs: entity %d has no %s component", e.ID, e.Kind)
}

func (e *ComponentError) Unwrap() error { return e.Err }
