package performance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/surge/internal/js"
	"github.com/wesleyorama2/surge/internal/performance/config"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
)

func TestVUScheduler_SpawnAndWait(t *testing.T) {
	cfg, shared := buildFromScript(t, `
		defineConfig({
			vus: 2,
			iterations: 6,
			iteration: async function () {
				await sleep(5);
				globalThis.done = (globalThis.done || 0) + 1;
			},
		});
	`, config.Overrides{})

	engine := metrics.NewEngine()
	scheduler := NewVUScheduler(cfg, shared, engine, quietLogger())

	var tasks []*Task
	for i := 0; i < 6; i++ {
		tasks = append(tasks, scheduler.SpawnTask(context.Background(), int64(i), i%2))
	}
	scheduler.Wait()

	for _, task := range tasks {
		assert.Equal(t, TaskCompleted, task.State(), "task %d", task.ID)
	}

	snapshot := engine.GetSnapshot()
	assert.EqualValues(t, 6, snapshot.Spawned)
	assert.EqualValues(t, 6, snapshot.Completed)
	assert.EqualValues(t, 0, snapshot.Active)

	done, err := shared.Runtime.Eval(context.Background(), "done")
	require.NoError(t, err)
	assert.EqualValues(t, 6, done)
}

func TestVUScheduler_FailureIsolation(t *testing.T) {
	cfg, shared := buildFromScript(t, `
		defineConfig({
			iteration: function () {
				globalThis.n = (globalThis.n || 0) + 1;
				if (globalThis.n % 2 === 0) { throw new Error("even"); }
			},
		});
	`, config.Overrides{})

	engine := metrics.NewEngine()
	scheduler := NewVUScheduler(cfg, shared, engine, quietLogger())

	for i := 0; i < 10; i++ {
		scheduler.SpawnTask(context.Background(), int64(i), 0)
	}
	scheduler.Wait()

	snapshot := engine.GetSnapshot()
	assert.EqualValues(t, 5, snapshot.Completed)
	assert.EqualValues(t, 5, snapshot.Failed)
}

func TestVUScheduler_Hooks(t *testing.T) {
	cfg, shared := buildFromScript(t, `
		defineConfig({
			setup: async function () { await sleep(1); globalThis.ready = true; },
			teardown: function () { globalThis.tornDown = true; },
			iteration: function () {
				if (!globalThis.ready) { throw new Error("setup did not run"); }
			},
		});
	`, config.Overrides{})

	engine := metrics.NewEngine()
	scheduler := NewVUScheduler(cfg, shared, engine, quietLogger())

	scheduler.RunSetup(context.Background())
	task := scheduler.SpawnTask(context.Background(), 0, 0)
	scheduler.Wait()
	scheduler.RunTeardown(context.Background())

	assert.Equal(t, TaskCompleted, task.State())

	torn, err := shared.Runtime.Eval(context.Background(), "tornDown")
	require.NoError(t, err)
	assert.Equal(t, true, torn)
}

func TestVUScheduler_FailingHookIsNotFatal(t *testing.T) {
	cfg, shared := buildFromScript(t, `
		defineConfig({
			setup: function () { throw new Error("setup broke"); },
			iteration: function () {},
		});
	`, config.Overrides{})

	scheduler := NewVUScheduler(cfg, shared, metrics.NewEngine(), quietLogger())
	scheduler.RunSetup(context.Background())

	task := scheduler.SpawnTask(context.Background(), 0, 0)
	scheduler.Wait()
	assert.Equal(t, TaskCompleted, task.State())
}

func TestVUScheduler_Shutdown(t *testing.T) {
	cfg, shared := buildFromScript(t, `defineConfig({ iteration: function () {} });`, config.Overrides{})

	scheduler := NewVUScheduler(cfg, shared, metrics.NewEngine(), quietLogger())
	scheduler.SpawnTask(context.Background(), 0, 0)
	scheduler.Wait()

	scheduler.Shutdown(context.Background())
	scheduler.Shutdown(context.Background())

	_, err := shared.Runtime.Eval(context.Background(), "1")
	assert.ErrorIs(t, err, js.ErrClosed)
}

func TestVUScheduler_CancelledContextTimesOutTasks(t *testing.T) {
	cfg, shared := buildFromScript(t, `defineConfig({ iteration: async () => { await sleep(5000); } });`, config.Overrides{})

	engine := metrics.NewEngine()
	scheduler := NewVUScheduler(cfg, shared, engine, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 4; i++ {
		scheduler.SpawnTask(ctx, int64(i), i)
	}
	time.Sleep(20 * time.Millisecond)
	cancel()

	waited := make(chan struct{})
	go func() {
		scheduler.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not end after cancellation")
	}

	assert.EqualValues(t, 4, engine.GetSnapshot().TimedOut)
}
