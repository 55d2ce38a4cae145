package ecs

import (
	"math"
	"time"

	"github.com/zeusync/arena/internal/core/observability/log"
)

// SchedulerStats provides statistics about scheduler execution.
type SchedulerStats struct {
	Ticks   uint64
	Faults  uint64
	Systems []SystemStats
}

// SystemStats provides execution statistics for a single system.
type SystemStats struct {
	Name           string
	ExecutionCount uint64
	Panics         uint64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

type systemStatsInternal struct {
	executionCount uint64
	panics         uint64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
}

// Scheduler runs a fixed, ordered list of systems against one world.
type Scheduler struct {
	world   *World
	systems []System
	stats   []systemStatsInternal
	ticks   uint64
	logger  log.Log
}

// NewScheduler fixes the system order for the scheduler's lifetime.
func NewScheduler(world *World, logger log.Log, systems ...System) *Scheduler {
	if logger == nil {
		logger = log.NewNop()
	}
	stats := make([]systemStatsInternal, len(systems))
	for i := range stats {
		stats[i].minDuration = time.Duration(math.MaxInt64)
	}
	return &Scheduler{
		world:   world,
		systems: append([]System(nil), systems...),
		stats:   stats,
		logger:  logger.With(log.String("component", "scheduler")),
	}
}

func (s *Scheduler) World() *World { return s.world }

// Tick returns the number of completed updates.
func (s *Scheduler) Tick() uint64 { return s.ticks }

// Update runs every system once, in registration order, then flushes the
// world's deferred commands. Negative or non-finite deltas are treated as 0.
func (s *Scheduler) Update(dt float64) {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		s.logger.Warn("Invalid tick delta, using zero", log.Float64("dt", dt))
		dt = 0
	}

	for i, system := range s.systems {
		start := time.Now()
		s.run(i, system, dt)
		s.record(i, time.Since(start))
	}

	for _, err := range s.world.commands.Flush(s.world) {
		s.logger.Warn("Deferred command failed", log.Error(err))
	}
	s.ticks++
}

func (s *Scheduler) run(i int, system System, dt float64) {
	defer func() {
		if r := recover(); r != nil {
			s.stats[i].panics++
			s.logger.Error("System panicked",
				log.String("system", system.Name()),
				log.Uint64("tick", s.ticks),
				log.Any("panic", r))
		}
	}()
	system.Update(s.world, dt)
}

func (s *Scheduler) record(i int, d time.Duration) {
	st := &s.stats[i]
	st.executionCount++
	st.lastDuration = d
	st.totalDuration += d
	if d < st.minDuration {
		st.minDuration = d
	}
	if d > st.maxDuration {
		st.maxDuration = d
	}
}

// Stats returns a snapshot of per-system execution statistics.
func (s *Scheduler) Stats() SchedulerStats {
	out := SchedulerStats{
		Ticks:   s.ticks,
		Faults:  s.world.Faults(),
		Systems: make([]SystemStats, len(s.systems)),
	}
	for i, system := range s.systems {
		st := s.stats[i]
		var avg time.Duration
		minDuration := st.minDuration
		if st.executionCount > 0 {
			avg = st.totalDuration / time.Duration(st.executionCount)
		} else {
			minDuration = 0
		}
		out.Systems[i] = SystemStats{
			Name:           system.Name(),
			ExecutionCount: st.executionCount,
			Panics:         st.panics,
			MinDuration:    minDuration,
			MaxDuration:    st.maxDuration,
			AvgDuration:    avg,
			LastDuration:   st.lastDuration,
			TotalDuration:  st.totalDuration,
		}
	}
	return out
}
