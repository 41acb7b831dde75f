// Package executor provides the scheduling strategies that decide how many
// iteration tasks a run spawns, across which VUs, and when.
package executor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wesleyorama2/surge/internal/performance"
	"github.com/wesleyorama2/surge/internal/performance/config"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
)

// Type identifies the type of executor.
type Type string

const (
	// TypeSharedIterations spawns a fixed number of tasks up front,
	// partitioned statically across VUs.
	TypeSharedIterations Type = "shared-iterations"

	// TypeInfiniteIterations spawns one task per VU per cycle until the run
	// duration elapses.
	TypeInfiniteIterations Type = "infinite-iterations"
)

const (
	// FiniteBudget bounds the whole of a finite run.
	FiniteBudget = 60 * time.Second

	// CycleInterval is the pause between spawn cycles in infinite mode.
	CycleInterval = time.Millisecond

	// CompactSpawnInterval is the number of spawned tasks between
	// best-effort compactions in infinite mode.
	CompactSpawnInterval = 10000

	// MaxConcurrentTasks is the absolute ceiling on active tasks.
	MaxConcurrentTasks = 1000

	// TasksPerVU scales the concurrency cap with the VU count.
	TasksPerVU = 100
)

// Scheduler is the part of performance.VUScheduler executors use.
type Scheduler interface {
	SpawnTask(ctx context.Context, id int64, vu int) *performance.Task
	TryCompact() bool
	Wait()
}

var _ Scheduler = (*performance.VUScheduler)(nil)

// Executor defines the interface for scheduling strategies.
type Executor interface {
	// Type returns the executor type.
	Type() Type

	// Init initializes the executor with configuration.
	// Called once before Run().
	Init(ctx context.Context, config *Config) error

	// Run spawns tasks through scheduler and blocks until every spawned
	// task is terminal.
	Run(ctx context.Context, scheduler Scheduler, metrics *metrics.Engine) error

	// GetStats returns executor statistics.
	GetStats() *Stats

	// Summary returns the one-line outcome of a finished run.
	Summary() string
}

// Config contains configuration for an executor.
type Config struct {
	// Type is the executor type
	Type Type `json:"type" yaml:"type"`

	// VUs is the number of virtual users tasks are attributed to
	VUs int `json:"vus" yaml:"vus"`

	// Iterations is the requested task count of a finite run
	Iterations int64 `json:"iterations,omitempty" yaml:"iterations,omitempty"`

	// Duration bounds spawning in an infinite run
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// DurationSeconds is Duration as declared, for the summary line
	DurationSeconds float64 `json:"-" yaml:"-"`

	// GracefulStop is how long active tasks may keep running once an
	// infinite run stops spawning
	GracefulStop time.Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// Budget bounds a finite run; FiniteBudget when zero
	Budget time.Duration `json:"budget,omitempty" yaml:"budget,omitempty"`

	// MaxRate caps spawns per second in an infinite run; zero means no cap
	MaxRate float64 `json:"maxRate,omitempty" yaml:"maxRate,omitempty"`
}

// ConfigFor maps a resolved test configuration to the executor that runs it.
func ConfigFor(tc config.TestConfig, gracefulStop time.Duration) *Config {
	cfg := &Config{
		VUs:             tc.VUs,
		DurationSeconds: tc.Duration,
		GracefulStop:    gracefulStop,
	}
	if tc.IsInfinite() {
		cfg.Type = TypeInfiniteIterations
		cfg.Duration = tc.RunDuration()
		return cfg
	}

	cfg.Type = TypeSharedIterations
	// Capped before conversion so huge counts cannot overflow.
	cfg.Iterations = int64(math.Min(math.Floor(tc.Iterations), MaxConcurrentTasks))
	return cfg
}

// Validate validates the executor configuration.
func (c *Config) Validate() error {
	if c.VUs <= 0 {
		return &ValidationError{Field: "vus", Message: "vus must be > 0"}
	}
	if c.GracefulStop < 0 {
		return &ValidationError{Field: "gracefulStop", Message: "gracefulStop must be >= 0"}
	}
	if c.MaxRate < 0 || math.IsNaN(c.MaxRate) || math.IsInf(c.MaxRate, 0) {
		return &ValidationError{Field: "maxRate", Message: "maxRate must be a finite number >= 0"}
	}

	switch c.Type {
	case TypeSharedIterations:
		if c.Iterations < 0 {
			return &ValidationError{Field: "iterations", Message: "iterations must be >= 0"}
		}
	case TypeInfiniteIterations:
		if c.Duration < 0 {
			return &ValidationError{Field: "duration", Message: "duration must be >= 0"}
		}
	case "":
		return &ValidationError{Field: "type", Message: "executor type is required"}
	default:
		return &ValidationError{Field: "type", Message: "unknown executor type: " + string(c.Type)}
	}
	return nil
}

// Stats contains executor statistics.
type Stats struct {
	StartTime time.Time     `json:"startTime"`
	Elapsed   time.Duration `json:"elapsed"`

	VUs     int   `json:"vus"`
	Spawned int64 `json:"spawned"`

	// Skipped counts per-VU spawns passed over at the concurrency cap and
	// Throttled those refused by MaxRate (infinite mode only)
	Skipped   int64 `json:"skipped"`
	Throttled int64 `json:"throttled"`

	// Rate is spawned tasks per second of configured duration (infinite
	// mode only)
	Rate float64 `json:"rate"`
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error on field '" + e.Field + "': " + e.Message
}

// ConcurrencyCap is the maximum number of simultaneously active tasks for
// vus virtual users.
func ConcurrencyCap(vus int) int {
	if vus < 1 {
		vus = 1
	}
	if vus > MaxConcurrentTasks/TasksPerVU {
		return MaxConcurrentTasks
	}
	return vus * TasksPerVU
}

// Partition splits total task ids across vus as evenly as possible. VU v
// gets floor(total/vus) ids, plus one if v < total mod vus; its t-th id is
// v*floor(total/vus) + t + min(v, total mod vus).
func Partition(total int64, vus int) [][]int64 {
	if vus < 1 {
		vus = 1
	}
	if total < 0 {
		total = 0
	}

	per := total / int64(vus)
	extra := total % int64(vus)

	out := make([][]int64, vus)
	for vu := 0; vu < vus; vu++ {
		count := per
		if int64(vu) < extra {
			count++
		}
		ids := make([]int64, 0, count)
		for t := int64(0); t < count; t++ {
			ids = append(ids, int64(vu)*per+t+min(int64(vu), extra))
		}
		out[vu] = ids
	}
	return out
}

// NewExecutor creates a new executor of the specified type.
//
// Returns an uninitialized executor. Call Init() before Run().
func NewExecutor(executorType Type) (Executor, error) {
	switch executorType {
	case TypeSharedIterations:
		return NewSharedIterations(), nil
	case TypeInfiniteIterations:
		return NewInfiniteIterations(), nil
	default:
		return nil, fmt.Errorf("unknown executor type: %s", executorType)
	}
}

// CreateAndInitExecutor creates and initializes an executor with the given config.
func CreateAndInitExecutor(ctx context.Context, cfg *Config) (Executor, error) {
	exec, err := NewExecutor(cfg.Type)
	if err != nil {
		return nil, err
	}

	if err := exec.Init(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}

	return exec, nil
}
