// Package metrics keeps the coarse outcome counters and phase history of a
// run.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Phase is a stage of the run lifecycle.
type Phase int32

const (
	PhaseConfiguring Phase = iota
	PhaseBuilding
	PhaseScheduling
	PhaseDraining
	PhaseDone
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseConfiguring:
		return "configuring"
	case PhaseBuilding:
		return "building"
	case PhaseScheduling:
		return "scheduling"
	case PhaseDraining:
		return "draining"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Outcome is the terminal state an iteration reached, as far as counting is
// concerned.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
	OutcomeTimedOut
)

// PhaseChange records when a phase transition occurred.
type PhaseChange struct {
	Phase     Phase
	Timestamp time.Time
	Spawned   int64
}

// Engine counts iteration outcomes and records phase transitions.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Counters use atomic operations and the
// phase history is mutex protected.
type Engine struct {
	spawned   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	timedOut  atomic.Int64
	active    atomic.Int64

	currentPhase Phase
	phaseMu      sync.RWMutex
	phaseHistory []PhaseChange

	startTime time.Time
}

// NewEngine creates an engine in PhaseConfiguring.
func NewEngine() *Engine {
	now := time.Now()
	return &Engine{
		currentPhase: PhaseConfiguring,
		phaseHistory: []PhaseChange{{Phase: PhaseConfiguring, Timestamp: now}},
		startTime:    now,
	}
}

// RecordSpawn counts a task that has been started.
func (e *Engine) RecordSpawn() {
	e.spawned.Add(1)
	e.active.Add(1)
}

// RecordOutcome counts a task that reached a terminal state.
func (e *Engine) RecordOutcome(o Outcome) {
	switch o {
	case OutcomeCompleted:
		e.completed.Add(1)
	case OutcomeFailed:
		e.failed.Add(1)
	case OutcomeTimedOut:
		e.timedOut.Add(1)
	}
	e.active.Add(-1)
}

// SetPhase moves to phase. Setting the current phase again is a no-op.
func (e *Engine) SetPhase(phase Phase) {
	e.phaseMu.Lock()
	defer e.phaseMu.Unlock()

	if e.currentPhase == phase {
		return
	}

	e.currentPhase = phase
	e.phaseHistory = append(e.phaseHistory, PhaseChange{
		Phase:     phase,
		Timestamp: time.Now(),
		Spawned:   e.spawned.Load(),
	})
}

// GetPhase returns the current phase.
func (e *Engine) GetPhase() Phase {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()
	return e.currentPhase
}

// GetPhaseHistory returns the history of phase changes.
func (e *Engine) GetPhaseHistory() []PhaseChange {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()

	result := make([]PhaseChange, len(e.phaseHistory))
	copy(result, e.phaseHistory)
	return result
}

// Active returns the number of spawned tasks not yet terminal.
func (e *Engine) Active() int64 {
	return e.active.Load()
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Spawned      int64         `json:"spawned"`
	Completed    int64         `json:"completed"`
	Failed       int64         `json:"failed"`
	TimedOut     int64         `json:"timedOut"`
	Active       int64         `json:"active"`
	CurrentPhase Phase         `json:"currentPhase"`
	Elapsed      time.Duration `json:"elapsed"`
	StartTime    time.Time     `json:"startTime"`
}

// GetSnapshot returns the current counters.
func (e *Engine) GetSnapshot() *Snapshot {
	return &Snapshot{
		Spawned:      e.spawned.Load(),
		Completed:    e.completed.Load(),
		Failed:       e.failed.Load(),
		TimedOut:     e.timedOut.Load(),
		Active:       e.active.Load(),
		CurrentPhase: e.GetPhase(),
		Elapsed:      time.Since(e.startTime),
		StartTime:    e.startTime,
	}
}
