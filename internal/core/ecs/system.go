package ecs

// System advances one concern of the simulation. Update runs once per tick
// with the elapsed seconds since the previous tick.
type System interface {
	Name() string
	Update(w *World, dt float64)
}
