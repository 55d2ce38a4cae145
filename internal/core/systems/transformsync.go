package systems

import (
	"time"

	"github.com/zeusync/arena/internal/core/ecs"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/core/protocol"
	"github.com/zeusync/arena/pkg/generic"
)

const DefaultSyncInterval = time.Second / 30

// syncTolerance absorbs the nanosecond truncation of time.Duration intervals,
// so two ticks of time.Second/60 cover one time.Second/30 interval.
const syncTolerance = 1e-6

// Publisher receives snapshots. The snapshot and its entity slice are reused
// after PublishSync returns, so implementations must not retain them.
type Publisher interface {
	PublishSync(sync *protocol.PlayersSync) error
}

type PublisherFunc func(sync *protocol.PlayersSync) error

func (f PublisherFunc) PublishSync(sync *protocol.PlayersSync) error { return f(sync) }

// TransformSyncSystem batches the transforms of synced entities into one
// snapshot per interval.
type TransformSyncSystem struct {
	publisher Publisher
	interval  float64
	acc       float64
	ticks     uint64
	published uint64

	mask   ecs.KindSet
	now    func() time.Time
	pool   *generic.Pool[*[]protocol.EntityState]
	logger log.Log
}

type TransformSyncOption func(*TransformSyncSystem)

// WithClock replaces the wall clock used to stamp snapshots.
func WithClock(now func() time.Time) TransformSyncOption {
	return func(s *TransformSyncSystem) { s.now = now }
}

func WithSyncLogger(logger log.Log) TransformSyncOption {
	return func(s *TransformSyncSystem) { s.logger = logger }
}

func NewTransformSyncSystem(publisher Publisher, interval time.Duration, opts ...TransformSyncOption) *TransformSyncSystem {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	s := &TransformSyncSystem{
		publisher: publisher,
		interval:  interval.Seconds(),
		mask:      ecs.Kinds(ecs.KindTransform, ecs.KindTransformSync),
		now:       time.Now,
		pool: generic.NewResetPool(
			func() *[]protocol.EntityState {
				buf := make([]protocol.EntityState, 0, 64)
				return &buf
			},
			func(buf *[]protocol.EntityState) *[]protocol.EntityState {
				*buf = (*buf)[:0]
				return buf
			},
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewNop()
	}
	s.logger = s.logger.With(log.String("component", "transform_sync"))
	return s
}

func (s *TransformSyncSystem) Name() string { return "TransformSyncSystem" }

// Published returns how many snapshots have been handed to the publisher.
func (s *TransformSyncSystem) Published() uint64 { return s.published }

func (s *TransformSyncSystem) Update(w *ecs.World, dt float64) {
	s.ticks++
	s.acc += dt
	if s.acc+syncTolerance < s.interval {
		return
	}
	s.acc = 0

	buf := s.pool.Get()
	defer s.pool.Put(buf)

	w.Each(s.mask, func(id ecs.EntityID) {
		t := w.MustTransform(id)
		*buf = append(*buf, protocol.EntityState{ID: id, Position: t.Position, Rotation: t.Rotation})
	})

	snapshot := protocol.PlayersSync{
		Entities: *buf,
		Time:     s.now().UnixMilli(),
		Tick:     s.ticks,
		Checksum: w.Checksum(),
	}
	s.published++
	if err := s.publisher.PublishSync(&snapshot); err != nil {
		s.logger.Warn("Failed to publish snapshot",
			log.Uint64("tick", s.ticks),
			log.Int("entities", len(snapshot.Entities)),
			log.Error(err))
	}
}
