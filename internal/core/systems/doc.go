// Package systems holds the built-in simulation systems. Register them with
// an ecs.Scheduler in the order input, physics, collision, bounds, sync.
package systems
