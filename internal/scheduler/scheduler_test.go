package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Marquise34567/editor-backend-sub000/internal/jobstore"
	"github.com/Marquise34567/editor-backend-sub000/internal/media"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seedJob(t *testing.T, store *jobstore.MemoryStore, id, owner string, status model.JobStatus) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &model.Job{
		ID:          id,
		OwnerUserID: owner,
		Status:      status,
		InputPath:   "/tmp/" + id + ".mp4",
		Progress:    5,
	}))
}

func TestEnqueueDeduplicates(t *testing.T) {
	s := New(jobstore.NewMemoryStore(nil), nil, 2, time.Hour, time.Hour)
	assert.True(t, s.Enqueue(QueueItem{JobID: "a"}))
	assert.False(t, s.Enqueue(QueueItem{JobID: "a"}))
}

func TestDispatchHonorsPriorityThenFIFO(t *testing.T) {
	var mu sync.Mutex
	var order []string
	done := make(chan struct{}, 3)

	run := func(ctx context.Context, item QueueItem, _ media.ProcessRegistry) error {
		mu.Lock()
		order = append(order, item.JobID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}

	store := jobstore.NewMemoryStore(nil)
	s := New(store, run, 1, time.Hour, time.Hour)
	s.Enqueue(QueueItem{JobID: "n1", Priority: model.PriorityNormal})
	s.Enqueue(QueueItem{JobID: "n2", Priority: model.PriorityNormal})
	s.Enqueue(QueueItem{JobID: "h1", Priority: model.PriorityHigh})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("pipeline did not drain")
		}
	}
	cancel()
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"h1", "n1", "n2"}, order)
}

func TestSnapshotETAProperty(t *testing.T) {
	s := New(jobstore.NewMemoryStore(nil), nil, 2, time.Hour, time.Hour)
	for _, id := range []string{"a", "b", "c", "d"} {
		s.Enqueue(QueueItem{JobID: id, Priority: model.PriorityNormal})
	}

	snap := s.Snapshot()
	require.Len(t, snap, 4)

	// availableNow = 2, default avg 210s: first two items start immediately,
	// the next wave waits one average pipeline.
	assert.Equal(t, 0.0, snap[0].EtaSeconds)
	assert.Equal(t, 0.0, snap[1].EtaSeconds)
	assert.Equal(t, 210.0, snap[2].EtaSeconds)
	assert.Equal(t, 210.0, snap[3].EtaSeconds)
	for i, pos := range snap {
		assert.False(t, pos.Running)
		assert.Equal(t, i+1, pos.Position)
	}
}

func TestSnapshotCountsRunningAtZero(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	run := func(ctx context.Context, item QueueItem, _ media.ProcessRegistry) error {
		close(started)
		<-release
		return nil
	}
	store := jobstore.NewMemoryStore(nil)
	seedJob(t, store, "r1", "u1", model.StatusQueued)

	s := New(store, run, 1, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	s.Enqueue(QueueItem{JobID: "r1"})
	s.Enqueue(QueueItem{JobID: "q1"})
	<-started

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	byID := map[string]QueuePosition{}
	for _, pos := range snap {
		byID[pos.JobID] = pos
	}
	assert.True(t, byID["r1"].Running)
	assert.Equal(t, 0, byID["r1"].Position)
	assert.Equal(t, 0.0, byID["r1"].EtaSeconds)
	assert.Equal(t, 1, byID["q1"].Position)
	assert.Greater(t, byID["q1"].EtaSeconds, 0.0)

	close(release)
	cancel()
	s.Stop()
}

func TestCancelQueuedJob(t *testing.T) {
	store := jobstore.NewMemoryStore(nil)
	seedJob(t, store, "j1", "u1", model.StatusQueued)

	s := New(store, nil, 1, time.Hour, time.Hour)
	s.Enqueue(QueueItem{JobID: "j1"})

	require.NoError(t, s.Cancel(context.Background(), "j1", "u1", ""))

	job, err := store.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, job.Status)
	assert.Equal(t, "queue_canceled_by_user", job.Error)
	// Queued cancels leave no flag behind; a re-queue starts clean.
	assert.False(t, s.IsCanceled("j1"))
	assert.Empty(t, s.pq.ordered(s.queued))
}

func TestCancelValidation(t *testing.T) {
	store := jobstore.NewMemoryStore(nil)
	seedJob(t, store, "done", "u1", model.StatusCompleted)
	seedJob(t, store, "live", "u1", model.StatusAnalyzing)

	s := New(store, nil, 1, time.Hour, time.Hour)
	assert.ErrorIs(t, s.Cancel(context.Background(), "", "u1", ""), model.ErrInvalidJobID)
	assert.ErrorIs(t, s.Cancel(context.Background(), "missing", "u1", ""), model.ErrNotFound)
	assert.ErrorIs(t, s.Cancel(context.Background(), "live", "intruder", ""), model.ErrNotFound)
	assert.ErrorIs(t, s.Cancel(context.Background(), "done", "u1", ""), model.ErrCannotCancel)
}

func TestCancelSetsFlagForRunningJob(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	sawCancel := make(chan bool, 1)
	run := func(ctx context.Context, item QueueItem, registry media.ProcessRegistry) error {
		close(started)
		<-release
		sawCancel <- registry.IsCanceled(item.JobID)
		return media.ErrJobCanceled
	}

	store := jobstore.NewMemoryStore(nil)
	seedJob(t, store, "j1", "u1", model.StatusQueued)

	s := New(store, run, 1, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	s.Enqueue(QueueItem{JobID: "j1", User: model.User{ID: "u1"}})
	<-started

	require.NoError(t, s.Cancel(context.Background(), "j1", "u1", "operator request"))
	close(release)
	assert.True(t, <-sawCancel)

	cancel()
	s.Stop()

	// Worker exit clears the flag.
	assert.False(t, s.IsCanceled("j1"))
	job, err := store.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "operator request", job.Error)
}

func TestPipelineErrorMarksJobFailed(t *testing.T) {
	run := func(ctx context.Context, item QueueItem, _ media.ProcessRegistry) error {
		return errors.New("render exploded")
	}
	store := jobstore.NewMemoryStore(nil)
	seedJob(t, store, "j1", "u1", model.StatusQueued)

	s := New(store, run, 1, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	s.Enqueue(QueueItem{JobID: "j1"})

	require.Eventually(t, func() bool {
		job, err := store.Get(context.Background(), "j1")
		return err == nil && job.Status == model.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	s.Stop()

	job, _ := store.Get(context.Background(), "j1")
	assert.Equal(t, "render exploded", job.Error)
}

func TestRecoverOnceRequeuesStaleAndStartable(t *testing.T) {
	store := jobstore.NewMemoryStore(nil)
	past := time.Now().Add(-3 * time.Hour)
	store.SetClock(func() time.Time { return past })
	seedJob(t, store, "startable", "u1", model.StatusQueued)
	require.NoError(t, store.Create(context.Background(), &model.Job{
		ID: "stale", OwnerUserID: "u1", Status: model.StatusAnalyzing,
		InputPath: "/tmp/stale.mp4", Progress: 120,
	}))
	require.NoError(t, store.Create(context.Background(), &model.Job{
		ID: "no-input", OwnerUserID: "u1", Status: model.StatusQueued,
	}))
	store.SetClock(time.Now)

	s := New(store, nil, 1, time.Hour, 90*time.Minute)
	s.RecoverOnce(context.Background())

	queued := s.pq.ordered(s.queued)
	ids := make([]string, 0, len(queued))
	for _, item := range queued {
		ids = append(ids, item.JobID)
	}
	assert.ElementsMatch(t, []string{"startable", "stale"}, ids)

	job, err := store.Get(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, job.Status)
	assert.Equal(t, 90, job.Progress) // clamped into [1,90]
}
