package session

import (
	"errors"

	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/events/bus"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/physics"
	"github.com/zeusync/arena/internal/core/protocol"
)

func (s *Session) join(conn protocol.ConnectionID) {
	if id, ok := s.players[conn]; ok {
		s.logger.Debug("Duplicate connect ignored",
			log.String("connection_id", string(conn)),
			log.Uint64("entity_id", uint64(id)))
		return
	}

	p := s.cfg.Players
	radius := p.Radius
	id, err := s.world.CreateEntity(ecs.EntityTypePlayer, ecs.EntityData{
		Position:        s.randomPoint(p.Spawn),
		Size:            physics.V(radius, radius),
		MaxAcceleration: p.MaxAcceleration,
		HasDrag:         p.DragScale > 0 && p.DragScale != 1,
		DragScale:       p.DragScale,
		Priority:        p.Priority,
	}, playerKinds...)
	if err != nil {
		s.logger.Error("Failed to spawn player", log.String("connection_id", string(conn)), log.Error(err))
		return
	}
	s.players[conn] = id
	s.playerCount.Store(int64(len(s.players)))

	s.publish(bus.NewTargetedEvent(protocol.EventAssignPlayerID, eventSource, string(conn), id))
	others := s.world.Query(ecs.KindTransform).Filter(func(other ecs.EntityID) bool { return other != id })
	for other := range others.Seq() {
		if spawn, ok := s.spawnEvent(other); ok {
			s.publish(bus.NewTargetedEvent(protocol.EventSpawnEntity, eventSource, string(conn), spawn))
		}
	}
	if spawn, ok := s.spawnEvent(id); ok {
		s.publish(bus.NewEvent(protocol.EventSpawnEntity, eventSource, spawn))
	}

	s.logger.Info("Player joined",
		log.String("connection_id", string(conn)),
		log.Uint64("entity_id", uint64(id)),
		log.Int("players", len(s.players)))
}

func (s *Session) leave(conn protocol.ConnectionID) {
	id, ok := s.players[conn]
	if !ok {
		s.logger.Debug("Disconnect for unknown connection ignored", log.String("connection_id", string(conn)))
		return
	}
	delete(s.players, conn)
	s.playerCount.Store(int64(len(s.players)))

	if err := s.world.DestroyEntity(id); err != nil {
		if !errors.Is(err, ecs.ErrEntityNotFound) {
			s.logger.Error("Failed to destroy player", log.Uint64("entity_id", uint64(id)), log.Error(err))
			return
		}
		s.logger.Debug("Player entity already gone", log.Uint64("entity_id", uint64(id)))
	}

	s.publish(bus.NewEvent(protocol.EventPlayerLeft, eventSource, protocol.PlayerLeft{
		EntityID:     id,
		ConnectionID: conn,
	}))
	s.logger.Info("Player left",
		log.String("connection_id", string(conn)),
		log.Uint64("entity_id", uint64(id)),
		log.Int("players", len(s.players)))
}

func (s *Session) applyInput(conn protocol.ConnectionID, input protocol.PlayerInput) {
	id, ok := s.players[conn]
	if !ok {
		s.logger.Debug("Input for unknown connection dropped", log.String("connection_id", string(conn)))
		return
	}
	pi, err := s.world.PlayerInput(id)
	if err != nil {
		s.logger.Warn("Input target has no PlayerInput", log.Uint64("entity_id", uint64(id)), log.Error(err))
		return
	}
	pi.MoveInput = input.MoveInput
	pi.LookRot = input.LookRot
}

func (s *Session) spawnAsteroid() (ecs.EntityID, error) {
	a := s.cfg.Asteroids
	radius := a.MinRadius + s.rng.Float64()*(a.MaxRadius-a.MinRadius)
	id, err := s.world.CreateEntity(ecs.EntityTypeAsteroid, ecs.EntityData{
		Position:        s.randomPoint(a.Spawn),
		Size:            physics.V(radius, radius),
		Velocity:        physics.V(s.symmetric(a.MaxSpeed), s.symmetric(a.MaxSpeed)),
		Priority:        radius,
		MaxAcceleration: a.MaxAcceleration,
	}, asteroidKinds...)
	if err != nil {
		return 0, err
	}
	if spawn, ok := s.spawnEvent(id); ok {
		s.publish(bus.NewEvent(protocol.EventSpawnEntity, eventSource, spawn))
	}
	return id, nil
}

func (s *Session) spawnEvent(id ecs.EntityID) (protocol.SpawnEntity, bool) {
	typ, err := s.world.Type(id)
	if err != nil {
		return protocol.SpawnEntity{}, false
	}
	data, err := s.world.Data(id)
	if err != nil {
		return protocol.SpawnEntity{}, false
	}
	return protocol.SpawnEntity{
		EntityID: id,
		Type:     typ,
		Time:     s.now().UnixMilli(),
		Initial:  data,
	}, true
}

// publishSync forwards a snapshot. Bus handlers run synchronously, so the
// pooled snapshot is encoded before this returns.
func (s *Session) publishSync(sync *protocol.PlayersSync) error {
	if s.outbound == nil {
		return nil
	}
	return s.outbound.Publish(bus.NewEvent(protocol.EventPlayersSync, eventSource, sync))
}

func (s *Session) publish(event bus.Event) {
	if s.outbound == nil {
		return
	}
	if err := s.outbound.Publish(event); err != nil {
		s.logger.Warn("Outbound event not fully delivered",
			log.String("event", event.Type()),
			log.Error(err))
	}
}

func (s *Session) randomPoint(r physics.Rect) physics.Vec2 {
	return physics.V(r.X+s.rng.Float64()*r.W, r.Y+s.rng.Float64()*r.H)
}

// symmetric returns a value uniform in [-limit, limit).
func (s *Session) symmetric(limit float64) float64 {
	return (s.rng.Float64()*2 - 1) * limit
}
