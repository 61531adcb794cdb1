package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingExecutor collects the tasks it ran and returns a configurable
// error.
type recordingExecutor struct {
	mu  sync.Mutex
	ran []ScheduledTask
	err error
}

func (e *recordingExecutor) execute(_ context.Context, task ScheduledTask) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ran = append(e.ran, task)
	return e.err
}

func (e *recordingExecutor) tasks() []ScheduledTask {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ScheduledTask(nil), e.ran...)
}

func TestPollerTickExecutesDueTasks(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)
	exec := &recordingExecutor{}
	poller := NewPoller(store, exec.execute)

	id, err := store.CreateTask(ctx, "u", "greet", nil, clock.Now().Add(-time.Second), 0)
	require.NoError(t, err)
	_, err = store.CreateTask(ctx, "u", "later", nil, clock.Now().Add(time.Hour), 0)
	require.NoError(t, err)

	poller.Tick(ctx)

	ran := exec.tasks()
	require.Len(t, ran, 1)
	assert.Equal(t, id, ran[0].ID)
	assert.Equal(t, "greet", ran[0].HandlerName)

	task, err := store.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCompleted, task.Status)

	// A second tick finds nothing new.
	poller.Tick(ctx)
	assert.Len(t, exec.tasks(), 1)
}

func TestPollerTickRecordsFailure(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)
	exec := &recordingExecutor{err: errors.New("handler blew up")}
	poller := NewPoller(store, exec.execute)

	id, err := store.CreateTask(ctx, "u", "flaky", nil, clock.Now(), time.Hour)
	require.NoError(t, err)

	poller.Tick(ctx)

	task, err := store.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusFailed, task.Status, "a failing recurring task still ends failed")
}

func TestPollerTickReschedulesRecurring(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)
	exec := &recordingExecutor{}
	poller := NewPoller(store, exec.execute)
	interval := 10 * time.Minute

	id, err := store.CreateTask(ctx, "u", "heartbeat", nil, clock.Now(), interval)
	require.NoError(t, err)

	poller.Tick(ctx)
	require.Len(t, exec.tasks(), 1)

	task, err := store.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Equal(t, clock.Now().Add(interval).UTC(), task.NextRunAt)

	clock.Advance(interval)
	poller.Tick(ctx)
	assert.Len(t, exec.tasks(), 2)
}

func TestPollerTickSkipsAlreadyClaimed(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)
	exec := &recordingExecutor{}
	poller := NewPoller(store, exec.execute)

	id, err := store.CreateTask(ctx, "u", "grab", nil, clock.Now(), 0)
	require.NoError(t, err)

	due, err := store.FindDueTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	// Another poller wins the claim between the query and the tick.
	require.NoError(t, store.MarkRunning(ctx, id))

	poller.Tick(ctx)
	assert.Empty(t, exec.tasks())

	task, err := store.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusRunning, task.Status)
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	store, _ := newTestStore(t)
	exec := &recordingExecutor{}
	poller := NewPoller(store, exec.execute, WithPollInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}

func TestPollerExecutorSeesClaimedStatus(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	var observed TaskStatus
	poller := NewPoller(store, func(ctx context.Context, task ScheduledTask) error {
		current, err := store.GetTask(ctx, task.ID)
		if err != nil {
			return err
		}
		observed = current.Status
		return nil
	})

	_, err := store.CreateTask(ctx, "u", "h", nil, clock.Now(), 0)
	require.NoError(t, err)

	poller.Tick(ctx)
	assert.Equal(t, TaskStatusRunning, observed)
}
