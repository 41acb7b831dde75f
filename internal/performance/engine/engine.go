// Package engine runs one load test from script source to summary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/surge/internal/http"
	"github.com/wesleyorama2/surge/internal/js"
	"github.com/wesleyorama2/surge/internal/performance"
	"github.com/wesleyorama2/surge/internal/performance/config"
	"github.com/wesleyorama2/surge/internal/performance/executor"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
)

// ErrAlreadyRunning is returned by Run while a previous Run is in progress.
var ErrAlreadyRunning = errors.New("engine is already running")

// Options configures an Engine.
type Options struct {
	// ScriptName names the script in error messages and stack traces
	ScriptName string

	// Script is the user script source
	Script string

	// Overrides win over values declared by the script
	Overrides config.Overrides

	// Env is exposed to scripts as __ENV
	Env map[string]string

	// HTTPClient backs fetch in the shared runtime
	HTTPClient *http.Client

	// GracefulStop is how long active tasks of an infinite run may finish
	// after the duration elapses
	GracefulStop time.Duration

	// MaxRate caps spawns per second of an infinite run; zero means no cap
	MaxRate float64

	// Logger receives lifecycle, iteration and console entries
	Logger logrus.FieldLogger

	// OnStart, if set, is called with the resolved configuration right
	// before the first task is spawned
	OnStart func(cfg config.TestConfig)
}

// Engine is the run lifecycle orchestrator.
//
// It walks a run through its phases:
//   - Configuring: extract the script's declared configuration, apply overrides
//   - Building: build the shared runtime, run the setup hook
//   - Scheduling: spawn iteration tasks with the finite or infinite executor
//   - Draining: wait for every task, run teardown, release the runtime
//   - Done
//
// Example usage:
//
//	eng := engine.New(engine.Options{ScriptName: "test.js", Script: src})
//	result, _ := eng.Run(context.Background())
//	fmt.Println(result.Summary)
type Engine struct {
	opts    Options
	runID   string
	logger  logrus.FieldLogger
	metrics *metrics.Engine

	mu      sync.Mutex
	running bool
}

// Result is the outcome of a run.
type Result struct {
	RunID  string            `json:"runId"`
	Config config.TestConfig `json:"config"`
	Mode   executor.Type     `json:"mode"`

	Spawned   int64 `json:"spawned"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	TimedOut  int64 `json:"timedOut"`

	// Rate is spawned tasks per second of configured duration (infinite
	// mode only)
	Rate float64 `json:"rate"`

	// Skipped and Throttled count infinite-mode spawns passed over at the
	// concurrency cap and refused by MaxRate
	Skipped   int64 `json:"skipped"`
	Throttled int64 `json:"throttled"`

	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	Phases  []metrics.PhaseChange `json:"phases"`
	Summary string                `json:"summary"`
}

// New creates an engine for one run.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.ScriptName == "" {
		opts.ScriptName = "script.js"
	}

	runID := uuid.NewString()
	return &Engine{
		opts:    opts,
		runID:   runID,
		logger:  logger.WithField("run_id", runID),
		metrics: metrics.NewEngine(),
	}
}

// RunID returns the identifier attached to every log entry of the run.
func (e *Engine) RunID() string {
	return e.runID
}

// Metrics returns the live counters of the run.
func (e *Engine) Metrics() *metrics.Engine {
	return e.metrics
}

// Run executes the test and returns its result. Configuration and runtime
// build failures are returned before any task is spawned; per-iteration
// failures only show up in the counters.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	startTime := time.Now()

	e.setPhase(metrics.PhaseConfiguring)
	cfg, err := performance.ExtractConfig(ctx, e.opts.ScriptName, e.opts.Script, performance.ExtractOptions{
		Overrides: e.opts.Overrides,
		Env:       e.opts.Env,
		Logger:    e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configuration: %w", err)
	}

	execConfig := executor.ConfigFor(cfg, e.opts.GracefulStop)
	execConfig.MaxRate = e.opts.MaxRate
	exec, err := executor.CreateAndInitExecutor(ctx, execConfig)
	if err != nil {
		return nil, err
	}

	e.setPhase(metrics.PhaseBuilding)
	shared, err := performance.BuildSharedRuntime(ctx, cfg, js.Options{
		Name:        "shared",
		HTTPClient:  e.opts.HTTPClient,
		Logger:      e.logger,
		Env:         e.opts.Env,
		MaxPollTime: cfg.IterationTimeout(),
	})
	if err != nil {
		return nil, err
	}

	scheduler := performance.NewVUScheduler(cfg, shared, e.metrics, e.logger)
	defer scheduler.Shutdown(context.Background())

	scheduler.RunSetup(ctx)

	e.setPhase(metrics.PhaseScheduling)
	e.logger.WithFields(logrus.Fields{
		"mode":       exec.Type(),
		"vus":        cfg.VUs,
		"iterations": cfg.Iterations,
		"duration":   cfg.Duration,
		"timeout":    cfg.Timeout,
	}).Info("Starting run")
	if e.opts.OnStart != nil {
		e.opts.OnStart(cfg)
	}

	runErr := exec.Run(ctx, scheduler, e.metrics)

	e.setPhase(metrics.PhaseDraining)
	scheduler.Wait()
	scheduler.RunTeardown(context.Background())
	scheduler.Shutdown(context.Background())

	e.setPhase(metrics.PhaseDone)

	endTime := time.Now()
	snapshot := e.metrics.GetSnapshot()
	stats := exec.GetStats()

	result := &Result{
		RunID:     e.runID,
		Config:    cfg,
		Mode:      exec.Type(),
		Spawned:   snapshot.Spawned,
		Completed: snapshot.Completed,
		Failed:    snapshot.Failed,
		TimedOut:  snapshot.TimedOut,
		Rate:      stats.Rate,
		Skipped:   stats.Skipped,
		Throttled: stats.Throttled,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(startTime),
		Phases:    e.metrics.GetPhaseHistory(),
		Summary:   exec.Summary(),
	}

	e.logger.WithFields(logrus.Fields{
		"spawned":   result.Spawned,
		"completed": result.Completed,
		"failed":    result.Failed,
		"timed_out": result.TimedOut,
		"skipped":   result.Skipped,
		"throttled": result.Throttled,
	}).Info(result.Summary)

	return result, runErr
}

func (e *Engine) setPhase(phase metrics.Phase) {
	if e.metrics.GetPhase() == phase {
		return
	}
	e.metrics.SetPhase(phase)
	e.logger.WithField("phase", phase).Debug("Phase changed")
}
