// Package performance runs a user script's iteration routine concurrently
// across virtual users against one shared script runtime.
package performance

import (
	"sync"
	"sync/atomic"
	"time"
)

// TaskState represents the lifecycle state of an iteration task.
type TaskState int32

const (
	// TaskPending indicates the task has been created but not started.
	TaskPending TaskState = iota
	// TaskRunning indicates the iteration has been started on the runtime.
	TaskRunning
	// TaskCompleted indicates the iteration settled successfully.
	TaskCompleted
	// TaskFailed indicates the iteration threw or rejected.
	TaskFailed
	// TaskTimedOut indicates the deadline passed first and the task was
	// abandoned.
	TaskTimedOut
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s TaskState) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskTimedOut
}

// Task is one invocation of the iteration routine, identified by its global
// id and the VU it belongs to.
type Task struct {
	ID int64
	VU int

	// Lifecycle state (atomic for lock-free reads)
	state atomic.Int32

	// Closed on the terminal transition
	done chan struct{}

	mu         sync.Mutex
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

// NewTask creates a pending task.
func NewTask(id int64, vu int) *Task {
	return &Task{
		ID:   id,
		VU:   vu,
		done: make(chan struct{}),
	}
}

// State returns the current task state.
func (t *Task) State() TaskState {
	return TaskState(t.state.Load())
}

// Start moves a pending task to running. It returns false if the task was not
// pending.
func (t *Task) Start() bool {
	if !t.state.CompareAndSwap(int32(TaskPending), int32(TaskRunning)) {
		return false
	}
	t.mu.Lock()
	t.startedAt = time.Now()
	t.mu.Unlock()
	return true
}

// Complete marks the task completed.
func (t *Task) Complete() bool {
	return t.finish(TaskCompleted, nil)
}

// Fail marks the task failed with err.
func (t *Task) Fail(err error) bool {
	return t.finish(TaskFailed, err)
}

// TimeOut marks the task timed out.
func (t *Task) TimeOut() bool {
	return t.finish(TaskTimedOut, nil)
}

// finish performs the single terminal transition. Later calls lose the race
// and return false.
func (t *Task) finish(state TaskState, err error) bool {
	for {
		current := t.state.Load()
		if TaskState(current).IsTerminal() {
			return false
		}
		if t.state.CompareAndSwap(current, int32(state)) {
			break
		}
	}

	t.mu.Lock()
	t.err = err
	t.finishedAt = time.Now()
	if t.startedAt.IsZero() {
		t.startedAt = t.finishedAt
	}
	t.mu.Unlock()

	close(t.done)
	return true
}

// Done is closed once the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the failure cause of a failed task.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Duration returns the time between start and the terminal transition, or
// the time running so far.
func (t *Task) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startedAt.IsZero() {
		return 0
	}
	if t.finishedAt.IsZero() {
		return time.Since(t.startedAt)
	}
	return t.finishedAt.Sub(t.startedAt)
}
