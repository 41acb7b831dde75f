package performance

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/surge/internal/js"
	"github.com/wesleyorama2/surge/internal/performance/config"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
)

// VUScheduler spawns iteration tasks against the shared runtime and tracks
// them until they are terminal.
//
// It provides:
// - Task spawning with outcome accounting
// - Setup and teardown hooks
// - Final compaction and runtime release
//
// The scheduler is used by executors to decide how many tasks run, and when.
type VUScheduler struct {
	config   config.TestConfig
	runtime  ScriptRuntime
	setup    *js.Program
	teardown *js.Program
	executor *IterationExecutor
	metrics  *metrics.Engine
	logger   logrus.FieldLogger

	// Outstanding task goroutines
	wg sync.WaitGroup

	shutdownOnce sync.Once
}

// NewVUScheduler creates a scheduler over shared.
func NewVUScheduler(cfg config.TestConfig, shared *SharedRuntime, metricsEngine *metrics.Engine, logger logrus.FieldLogger) *VUScheduler {
	return newVUScheduler(cfg, shared.Runtime, shared.Iteration, shared.Setup, shared.Teardown, metricsEngine, logger)
}

func newVUScheduler(cfg config.TestConfig, rt ScriptRuntime, iteration, setup, teardown *js.Program, metricsEngine *metrics.Engine, logger logrus.FieldLogger) *VUScheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &VUScheduler{
		config:   cfg,
		runtime:  rt,
		setup:    setup,
		teardown: teardown,
		executor: NewIterationExecutor(rt, iteration, cfg.IterationTimeout(), logger),
		metrics:  metricsEngine,
		logger:   logger,
	}
}

// Config returns the resolved configuration being run.
func (s *VUScheduler) Config() config.TestConfig {
	return s.config
}

// SpawnTask starts task id for vu on its own goroutine and returns it
// immediately. The task ends as soon as ctx is done.
func (s *VUScheduler) SpawnTask(ctx context.Context, id int64, vu int) *Task {
	task := NewTask(id, vu)
	s.metrics.RecordSpawn()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		state := s.executor.Execute(ctx, task)
		s.metrics.RecordOutcome(outcomeOf(state))
	}()

	return task
}

// TryCompact compacts the runtime if it is idle.
func (s *VUScheduler) TryCompact() bool {
	return s.runtime.TryCompact()
}

// Wait blocks until every spawned task is terminal.
func (s *VUScheduler) Wait() {
	s.wg.Wait()
}

// RunSetup drives the script's setup hook. Failure is logged, not returned.
func (s *VUScheduler) RunSetup(ctx context.Context) {
	s.runHook(ctx, "setup", s.setup)
}

// RunTeardown drives the script's teardown hook. Failure is logged, not
// returned.
func (s *VUScheduler) RunTeardown(ctx context.Context) {
	s.runHook(ctx, "teardown", s.teardown)
}

func (s *VUScheduler) runHook(ctx context.Context, name string, prog *js.Program) {
	if prog == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.IterationTimeout())
	defer cancel()

	state, err := Drive(ctx, s.runtime, prog, PollInterval, false)
	log := s.logger.WithField("hook", name)
	switch state {
	case TaskCompleted:
		log.Debug("Hook completed")
	case TaskFailed:
		log.WithError(err).Error("Hook failed")
	default:
		log.Warn("Hook timed out")
	}
}

// Shutdown performs the final compaction and releases the runtime. Tasks
// must be terminal first.
func (s *VUScheduler) Shutdown(ctx context.Context) {
	s.shutdownOnce.Do(func() {
		if pending := s.runtime.PendingOps(); pending > 0 {
			s.logger.WithField("pending_ops", pending).Debug("Dropping host operations of abandoned iterations")
		}

		compactCtx, cancel := context.WithTimeout(ctx, time.Second)
		if err := s.runtime.Compact(compactCtx); err != nil {
			s.logger.WithError(err).Debug("Final compaction skipped")
		}
		cancel()

		if err := s.runtime.Close(); err != nil {
			s.logger.WithError(err).Warn("Closing runtime failed")
		}
	})
}

func outcomeOf(state TaskState) metrics.Outcome {
	switch state {
	case TaskCompleted:
		return metrics.OutcomeCompleted
	case TaskFailed:
		return metrics.OutcomeFailed
	default:
		return metrics.OutcomeTimedOut
	}
}
