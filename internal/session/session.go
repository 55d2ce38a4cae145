package session

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/arena/internal/config"
	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/events/bus"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/protocol"
	"github.com/zeusync/arena/internal/core/systems"
)

const eventSource = "session"

// MaxInputMagnitude bounds the move vector a client may send, keeping the
// scaled acceleration finite.
const MaxInputMagnitude = 1e6

// initialPlayerCapacity is the number of player slots preallocated in the
// component stores.
const initialPlayerCapacity = 32

var (
	playerKinds = []ecs.Kind{
		ecs.KindTransform, ecs.KindRigidBody, ecs.KindCollider, ecs.KindPlayerInput, ecs.KindTransformSync,
	}
	asteroidKinds = []ecs.Kind{
		ecs.KindTransform, ecs.KindRigidBody, ecs.KindCollider, ecs.KindTransformSync,
	}
)

type inboundKind uint8

const (
	inboundConnect inboundKind = iota + 1
	inboundDisconnect
	inboundInput
)

type inbound struct {
	kind  inboundKind
	conn  protocol.ConnectionID
	input protocol.PlayerInput
}

// Session owns one match: the world, its scheduler and the mapping from
// connections to player entities. Connect, Disconnect and HandleInput may be
// called from any goroutine; everything else runs on the simulation
// goroutine that calls Step or Run.
type Session struct {
	cfg       config.GameConfig
	world     *ecs.World
	scheduler *ecs.Scheduler
	syncer    *systems.TransformSyncSystem
	outbound  bus.EventBus
	rng       *rand.Rand
	now       func() time.Time
	logger    log.Log

	players map[protocol.ConnectionID]ecs.EntityID

	mu      sync.Mutex
	pending []inbound
	closed  bool
	done    chan struct{}
	once    sync.Once

	tick        atomic.Uint64
	playerCount atomic.Int64
}

type Option func(*Session)

// WithClock replaces the wall clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New builds the world and scheduler and spawns the configured asteroids.
// Outbound game events are published on outbound.
func New(cfg config.GameConfig, outbound bus.EventBus, logger log.Log, opts ...Option) (*Session, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	s := &Session{
		cfg:      cfg,
		outbound: outbound,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:      time.Now,
		logger:   logger.With(log.String("component", "session")),
		players:  make(map[protocol.ConnectionID]ecs.EntityID),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.world = ecs.NewWorld(ecs.WithLogger(logger), ecs.WithCapacity(cfg.Asteroids.Count+initialPlayerCapacity))
	s.syncer = systems.NewTransformSyncSystem(
		systems.PublisherFunc(s.publishSync),
		cfg.SyncInterval,
		systems.WithClock(s.now),
		systems.WithSyncLogger(logger),
	)
	s.scheduler = ecs.NewScheduler(s.world, logger,
		systems.NewPlayerInputHandlerSystem(cfg.InputAcceleration),
		systems.NewPhysicsSystem(),
		systems.NewCollisionSystem(),
		systems.NewBoundsSystem(cfg.World),
		s.syncer,
	)

	for range cfg.Asteroids.Count {
		if _, err := s.spawnAsteroid(); err != nil {
			return nil, fmt.Errorf("spawn asteroid: %w", err)
		}
	}
	s.logger.Info("Session created",
		log.Uint64("seed", seed),
		log.Int("asteroids", cfg.Asteroids.Count),
		log.Duration("tick_interval", cfg.TickInterval))
	return s, nil
}

// Connect queues a join for conn. The player entity is spawned at the next
// tick boundary.
func (s *Session) Connect(conn protocol.ConnectionID) error {
	return s.enqueue(inbound{kind: inboundConnect, conn: conn})
}

func (s *Session) Disconnect(conn protocol.ConnectionID) error {
	return s.enqueue(inbound{kind: inboundDisconnect, conn: conn})
}

// HandleInput queues the latest input of conn. Non-finite values and move
// vectors longer than MaxInputMagnitude are rejected. Shorter vectors are
// passed through unclamped.
func (s *Session) HandleInput(conn protocol.ConnectionID, input protocol.PlayerInput) error {
	if !input.MoveInput.IsFinite() || input.MoveInput.Length() > MaxInputMagnitude ||
		math.IsNaN(input.LookRot) || math.IsInf(input.LookRot, 0) {
		s.logger.Warn("Rejected player input",
			log.String("connection_id", string(conn)),
			log.Any("input", input))
		return ErrInvalidInput
	}
	return s.enqueue(inbound{kind: inboundInput, conn: conn, input: input})
}

func (s *Session) enqueue(ev inbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.pending = append(s.pending, ev)
	return nil
}

// Step applies queued inbound events in arrival order and then advances the
// simulation by dt seconds.
func (s *Session) Step(dt float64) {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, ev := range batch {
		switch ev.kind {
		case inboundConnect:
			s.join(ev.conn)
		case inboundDisconnect:
			s.leave(ev.conn)
		case inboundInput:
			s.applyInput(ev.conn, ev.input)
		}
	}

	s.scheduler.Update(dt)
	s.tick.Store(s.scheduler.Tick())
}

// Run drives Step every TickInterval with the measured elapsed time. It
// returns when ctx is done or the session is closed; a tick in progress
// always completes.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	s.logger.Info("Simulation loop started",
		log.Time("started_at", last),
		log.Duration("tick_interval", s.cfg.TickInterval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Simulation loop stopped", log.Uint64("ticks", s.tick.Load()))
			return nil
		case <-s.done:
			s.logger.Info("Simulation loop stopped", log.Uint64("ticks", s.tick.Load()))
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			s.Step(dt)
		}
	}
}

// Close stops accepting inbound events and ends Run.
func (s *Session) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = nil
		s.mu.Unlock()
		close(s.done)
	})
}

// Tick returns the number of completed ticks. Safe from any goroutine.
func (s *Session) Tick() uint64 { return s.tick.Load() }

// Players returns the number of connected players. Safe from any goroutine.
func (s *Session) Players() int { return int(s.playerCount.Load()) }

// World exposes the simulation state to the simulation goroutine.
func (s *Session) World() *ecs.World { return s.world }

// PlayerEntity returns the entity controlled by conn. Simulation goroutine only.
func (s *Session) PlayerEntity(conn protocol.ConnectionID) (ecs.EntityID, bool) {
	id, ok := s.players[conn]
	return id, ok
}

// SyncsPublished returns how many state snapshots have been emitted.
func (s *Session) SyncsPublished() uint64 { return s.syncer.Published() }

// Stats returns the scheduler statistics.
func (s *Session) Stats() ecs.SchedulerStats { return s.scheduler.Stats() }
