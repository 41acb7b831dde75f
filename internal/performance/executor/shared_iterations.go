package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/surge/internal/performance/metrics"
)

// SharedIterations runs a finite number of tasks.
//
// Every task is spawned immediately, ids assigned by Partition, and the run
// then only waits. The task count never exceeds the concurrency cap. Tasks
// still running when the budget expires are abandoned and end TimedOut.
type SharedIterations struct {
	config *Config

	startTime time.Time
	elapsed   time.Duration
	spawned   atomic.Int64

	mu sync.RWMutex
}

// NewSharedIterations creates a new finite executor.
func NewSharedIterations() *SharedIterations {
	return &SharedIterations{}
}

// Type returns the executor type.
func (e *SharedIterations) Type() Type {
	return TypeSharedIterations
}

// Init initializes the executor with configuration.
func (e *SharedIterations) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeSharedIterations {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeSharedIterations, config.Type)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	return nil
}

// Total returns the number of tasks the run spawns.
func (e *SharedIterations) Total() int64 {
	return min(e.config.Iterations, int64(ConcurrencyCap(e.config.VUs)))
}

// Run spawns every task and blocks until all are terminal or the budget is
// spent.
func (e *SharedIterations) Run(ctx context.Context, scheduler Scheduler, metricsEngine *metrics.Engine) error {
	e.mu.Lock()
	e.startTime = time.Now()
	e.mu.Unlock()

	budget := e.config.Budget
	if budget <= 0 {
		budget = FiniteBudget
	}
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	for vu, ids := range Partition(e.Total(), e.config.VUs) {
		for _, id := range ids {
			scheduler.SpawnTask(runCtx, id, vu)
			e.spawned.Add(1)
		}
	}

	metricsEngine.SetPhase(metrics.PhaseDraining)
	scheduler.Wait()

	e.mu.Lock()
	e.elapsed = time.Since(e.startTime)
	e.mu.Unlock()
	return nil
}

// GetStats returns executor statistics.
func (e *SharedIterations) GetStats() *Stats {
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
	}
}

// Summary returns the one-line outcome of the run.
func (e *SharedIterations) Summary() string {
	return fmt.Sprintf("All %d tasks completed across %d VUs", e.spawned.Load(), e.config.VUs)
}

// Ensure SharedIterations implements Executor
var _ Executor = (*SharedIterations)(nil)
