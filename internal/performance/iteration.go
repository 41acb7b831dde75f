package performance

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/surge/internal/js"
)

const (
	// PollInterval is the pause between event loop polls of one iteration.
	PollInterval = time.Millisecond

	// CompactEvery selects the tasks that request a compaction on their
	// first poll cycle (task id divisible by it).
	CompactEvery = 5000
)

// IterationExecutor runs single invocations of the compiled iteration driver
// against the shared runtime.
type IterationExecutor struct {
	runtime      ScriptRuntime
	program      *js.Program
	timeout      time.Duration
	pollInterval time.Duration
	logger       logrus.FieldLogger
}

// NewIterationExecutor creates an executor for prog with a per-iteration
// timeout.
func NewIterationExecutor(rt ScriptRuntime, prog *js.Program, timeout time.Duration, logger logrus.FieldLogger) *IterationExecutor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &IterationExecutor{
		runtime:      rt,
		program:      prog,
		timeout:      timeout,
		pollInterval: PollInterval,
		logger:       logger,
	}
}

// Execute drives task to a terminal state and returns it. The deadline is
// the iteration timeout, bounded further by ctx. On expiry the task is
// abandoned: script work it scheduled is not unwound.
func (e *IterationExecutor) Execute(ctx context.Context, task *Task) TaskState {
	task.Start()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	state, err := Drive(ctx, e.runtime, e.program, e.pollInterval, task.ID%CompactEvery == 0)

	log := e.logger.WithFields(logrus.Fields{"task": task.ID, "vu": task.VU})
	switch state {
	case TaskCompleted:
		task.Complete()
	case TaskFailed:
		task.Fail(err)
		log.WithError(err).Error("Iteration failed")
	default:
		task.TimeOut()
		log.WithField("after", task.Duration().Round(time.Millisecond)).Warn("Iteration timed out")
	}
	return task.State()
}

// Drive starts prog and polls it every interval until it settles or ctx is
// done. With compactFirst the runtime is compacted before the first poll.
func Drive(ctx context.Context, rt ScriptRuntime, prog *js.Program, interval time.Duration, compactFirst bool) (TaskState, error) {
	h, err := rt.Start(ctx, prog)
	if err != nil {
		if ctx.Err() != nil {
			return TaskTimedOut, ctx.Err()
		}
		return TaskFailed, err
	}

	if compactFirst {
		if err := rt.Compact(ctx); err != nil && ctx.Err() != nil {
			return TaskTimedOut, ctx.Err()
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := rt.Poll(ctx, h)
		switch res {
		case js.PollDone:
			return TaskCompleted, nil
		case js.PollErrored:
			if ctx.Err() != nil {
				return TaskTimedOut, ctx.Err()
			}
			return TaskFailed, err
		}

		select {
		case <-ctx.Done():
			return TaskTimedOut, ctx.Err()
		case <-ticker.C:
		}
	}
}
