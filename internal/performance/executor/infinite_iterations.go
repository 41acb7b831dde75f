package executor

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/surge/internal/performance"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
	"github.com/wesleyorama2/surge/internal/performance/rate"
)

// InfiniteIterations spawns tasks until the configured duration elapses.
//
// Each cycle it sweeps the VUs in order and spawns one task for each, unless
// the active set is already at the concurrency cap, in which case that VU's
// spawn is skipped for the cycle. With MaxRate set, a leaky bucket also
// gates each spawn and a refused spawn is skipped the same way. Terminal
// tasks are pruned from the active set every cycle. When the duration is up,
// active tasks get GracefulStop to finish and are then abandoned.
type InfiniteIterations struct {
	config *Config

	startTime time.Time
	elapsed   time.Duration
	spawned   atomic.Int64
	skipped   atomic.Int64

	// limiter gates spawns when MaxRate is set; nil otherwise
	limiter *rate.LeakyBucket

	mu sync.RWMutex
}

// NewInfiniteIterations creates a new infinite executor.
func NewInfiniteIterations() *InfiniteIterations {
	return &InfiniteIterations{}
}

// Type returns the executor type.
func (e *InfiniteIterations) Type() Type {
	return TypeInfiniteIterations
}

// Init initializes the executor with configuration.
func (e *InfiniteIterations) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeInfiniteIterations {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeInfiniteIterations, config.Type)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	if config.MaxRate > 0 {
		e.limiter = rate.NewLeakyBucketWithBurst(config.MaxRate, float64(config.VUs))
	}
	return nil
}

// Run spawns tasks until the duration elapses, then drains.
func (e *InfiniteIterations) Run(ctx context.Context, scheduler Scheduler, metricsEngine *metrics.Engine) error {
	e.mu.Lock()
	e.startTime = time.Now()
	e.mu.Unlock()

	// Tasks outlive the spawn window only by GracefulStop.
	taskCtx, abandon := context.WithCancel(ctx)
	defer abandon()

	ticker := time.NewTicker(CycleInterval)
	defer ticker.Stop()

	limit := ConcurrencyCap(e.config.VUs)
	var active []*performance.Task
	var nextID int64
	var lastCompact int64

spawning:
	for time.Since(e.startTime) < e.config.Duration && ctx.Err() == nil {
		for vu := 0; vu < e.config.VUs; vu++ {
			if len(active) >= limit {
				e.skipped.Add(1)
				continue
			}
			if e.limiter != nil && !e.limiter.Allow(time.Now()) {
				continue
			}
			active = append(active, scheduler.SpawnTask(taskCtx, nextID, vu))
			nextID++
			e.spawned.Add(1)
		}

		active = prune(active)

		if nextID-lastCompact >= CompactSpawnInterval {
			lastCompact = nextID
			scheduler.TryCompact()
		}

		select {
		case <-ctx.Done():
			break spawning
		case <-ticker.C:
		}
	}

	e.mu.Lock()
	e.elapsed = time.Since(e.startTime)
	e.mu.Unlock()

	metricsEngine.SetPhase(metrics.PhaseDraining)
	e.drain(ctx, prune(active))
	abandon()
	scheduler.Wait()
	return nil
}

// drain waits up to GracefulStop for active tasks to finish on their own.
func (e *InfiniteIterations) drain(ctx context.Context, active []*performance.Task) {
	if e.config.GracefulStop <= 0 || len(active) == 0 {
		return
	}

	grace := time.NewTimer(e.config.GracefulStop)
	defer grace.Stop()

	for _, task := range active {
		select {
		case <-task.Done():
		case <-grace.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

func prune(tasks []*performance.Task) []*performance.Task {
	kept := tasks[:0]
	for _, task := range tasks {
		if !task.State().IsTerminal() {
			kept = append(kept, task)
		}
	}
	clear(tasks[len(kept):])
	return kept
}

// Rate returns spawned tasks per second of configured duration.
func (e *InfiniteIterations) Rate() float64 {
	secs := e.config.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(e.spawned.Load()) / secs
}

// Skipped returns how many per-VU spawns were skipped at the concurrency cap.
func (e *InfiniteIterations) Skipped() int64 {
	return e.skipped.Load()
}

// Throttled returns how many per-VU spawns MaxRate refused.
func (e *InfiniteIterations) Throttled() int64 {
	if e.limiter == nil {
		return 0
	}
	return e.limiter.Stats().Denied
}

// GetStats returns executor statistics.
func (e *InfiniteIterations) GetStats() *Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	elapsed := e.elapsed
	if elapsed == 0 && !e.startTime.IsZero() {
		elapsed = time.Since(e.startTime)
	}

	return &Stats{
		StartTime: e.startTime,
		Elapsed:   elapsed,
		VUs:       e.config.VUs,
		Spawned:   e.spawned.Load(),
		Skipped:   e.Skipped(),
		Throttled: e.Throttled(),
		Rate:      e.Rate(),
	}
}

// Summary returns the one-line outcome of the run.
func (e *InfiniteIterations) Summary() string {
	return fmt.Sprintf("Completed %d tasks across %d VUs (infinite iterations with %ss timeout) - Rate: %.2f iterations/sec",
		e.spawned.Load(), e.config.VUs, strconv.FormatFloat(e.config.DurationSeconds, 'f', -1, 64), e.Rate())
}

// Ensure InfiniteIterations implements Executor
var _ Executor = (*InfiniteIterations)(nil)
