package memory

import (
	"fmt"
	"testing"
	"time"

	"docflow/model"
	"docflow/timers"
	"github.com/stretchr/testify/require"
)

func TestRunHistoryCap(t *testing.T) {
	storage := NewInMemoryRunStorage(3)
	for i := 0; i < 5; i++ {
		run := &model.Run{
			Id:         fmt.Sprintf("run-%d", i),
			WorkflowId: "wf-1",
			State:      model.RUN_STATE_SUCCEEDED,
		}
		require.NoError(t, storage.Archive(run))
	}

	runs, err := storage.List("", 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, "run-4", runs[0].Id, "newest first")
	require.Equal(t, "run-2", runs[2].Id)

	// evicted runs are gone entirely
	run, err := storage.Get("run-0")
	require.NoError(t, err)
	require.Nil(t, run)

	byWf, err := storage.List("wf-1", 2)
	require.NoError(t, err)
	require.Len(t, byWf, 2)
}

func TestRunSaveThenGet(t *testing.T) {
	storage := NewInMemoryRunStorage(10)
	run := &model.Run{Id: "run-1", WorkflowId: "wf-1", State: model.RUN_STATE_RUNNING, Position: 2}
	require.NoError(t, storage.Save(run))

	got, err := storage.Get("run-1")
	require.NoError(t, err)
	require.Equal(t, model.RUN_STATE_RUNNING, got.State)
	require.Equal(t, 2, got.Position)

	// the stored copy is detached from the caller's run
	run.Position = 5
	got, _ = storage.Get("run-1")
	require.Equal(t, 2, got.Position)
}

func TestDedupRetention(t *testing.T) {
	store := NewInMemoryDedupStore()

	fresh, err := store.PutIfAbsent("FILE_ADDED", "/in/a.pdf:c1", time.Minute)
	require.NoError(t, err)
	require.True(t, fresh)

	fresh, _ = store.PutIfAbsent("FILE_ADDED", "/in/a.pdf:c1", time.Minute)
	require.False(t, fresh)

	// same key under another kind is independent
	fresh, _ = store.PutIfAbsent("EMAIL_RECEIVED", "/in/a.pdf:c1", time.Minute)
	require.True(t, fresh)

	fresh, _ = store.PutIfAbsent("FILE_ADDED", "expiring", 30*time.Millisecond)
	require.True(t, fresh)
	time.Sleep(50 * time.Millisecond)
	fresh, _ = store.PutIfAbsent("FILE_ADDED", "expiring", time.Minute)
	require.True(t, fresh, "expired key is accepted again")
}

func TestDelayQueueMaturity(t *testing.T) {
	tm := timers.NewTimerManager(64)
	tm.Init()
	defer tm.Stop()
	queue := NewInMemoryDelayQueue(tm)

	require.NoError(t, queue.Push("retry", []byte("now")))
	msgs, err := queue.Pop("retry")
	require.NoError(t, err)
	require.Equal(t, []string{"now"}, msgs)

	require.NoError(t, queue.PushWithDelay("retry", 150*time.Millisecond, []byte("later")))
	msgs, err = queue.Pop("retry")
	require.NoError(t, err)
	require.Empty(t, msgs, "not due yet")

	require.Eventually(t, func() bool {
		msgs, _ := queue.Pop("retry")
		return len(msgs) == 1 && msgs[0] == "later"
	}, 3*time.Second, 20*time.Millisecond)
}
