package ecs

// Commands buffers structural changes requested while systems run. The
// scheduler flushes it after the last system so queries inside a tick always
// see a consistent entity set.
type Commands struct {
	spawns   []spawnCommand
	destroys []EntityID
}

type spawnCommand struct {
	typ     EntityType
	data    EntityData
	kinds   []Kind
	onSpawn func(EntityID)
}

func newCommands() *Commands {
	return &Commands{}
}

// Spawn queues an entity creation. onSpawn, if set, receives the new id once
// the buffer is flushed.
func (c *Commands) Spawn(typ EntityType, data EntityData, kinds []Kind, onSpawn func(EntityID)) {
	c.spawns = append(c.spawns, spawnCommand{typ: typ, data: data, kinds: kinds, onSpawn: onSpawn})
}

// Destroy queues an entity destruction.
func (c *Commands) Destroy(id EntityID) {
	c.destroys = append(c.destroys, id)
}

func (c *Commands) Pending() int {
	return len(c.spawns) + len(c.destroys)
}

// Flush applies destructions first, then creations, and resets the buffer.
// Errors are collected and returned; they never stop the flush.
func (c *Commands) Flush(w *World) []error {
	var errs []error
	for _, id := range c.destroys {
		if err := w.DestroyEntity(id); err != nil {
			errs = append(errs, err)
		}
	}
	for _, cmd := range c.spawns {
		id, err := w.CreateEntity(cmd.typ, cmd.data, cmd.kinds...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if cmd.onSpawn != nil {
			cmd.onSpawn(id)
		}
	}
	c.spawns = c.spawns[:0]
	c.destroys = c.destroys[:0]
	return errs
}
