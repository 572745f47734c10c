package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

func seedJob(t *testing.T, store *MemoryStore, id string, status model.JobStatus) *model.Job {
	t.Helper()
	job := &model.Job{ID: id, OwnerUserID: "u1", Status: status}
	require.NoError(t, store.Create(context.Background(), job))
	got, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	return got
}

func statusPtr(s model.JobStatus) *model.JobStatus { return &s }
func intPtr(v int) *int                            { return &v }

func TestCreateRejectsDuplicate(t *testing.T) {
	store := NewMemoryStore(nil)
	seedJob(t, store, "j1", model.StatusQueued)
	err := store.Create(context.Background(), &model.Job{ID: "j1"})
	assert.Error(t, err)
}

func TestGetReturnsClone(t *testing.T) {
	store := NewMemoryStore(nil)
	seedJob(t, store, "j1", model.StatusQueued)

	a, _ := store.Get(context.Background(), "j1")
	a.OptimizationNotes = append(a.OptimizationNotes, "mutated")
	b, _ := store.Get(context.Background(), "j1")
	assert.Empty(t, b.OptimizationNotes)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateRejectsIllegalTransition(t *testing.T) {
	store := NewMemoryStore(nil)
	seedJob(t, store, "j1", model.StatusQueued)

	_, err := store.Update(context.Background(), "j1", model.JobPatch{Status: statusPtr(model.StatusRendering)}, UpdateOptions{})
	var tr *model.InvalidTransitionError
	require.ErrorAs(t, err, &tr)
	assert.Equal(t, model.StatusQueued, tr.From)
	assert.Equal(t, model.StatusRendering, tr.To)

	// Completed is terminal.
	seedJob(t, store, "j2", model.StatusCompleted)
	_, err = store.Update(context.Background(), "j2", model.JobPatch{Status: statusPtr(model.StatusQueued)}, UpdateOptions{})
	assert.Error(t, err)

	// Failed may be re-queued.
	seedJob(t, store, "j3", model.StatusFailed)
	job, err := store.Update(context.Background(), "j3", model.JobPatch{Status: statusPtr(model.StatusQueued)}, UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, job.Status)
}

func TestProgressMonotoneExceptRequeue(t *testing.T) {
	store := NewMemoryStore(nil)
	seedJob(t, store, "j1", model.StatusQueued)

	job, err := store.Update(context.Background(), "j1", model.JobPatch{
		Status: statusPtr(model.StatusAnalyzing), Progress: intPtr(40),
	}, UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 40, job.Progress)

	// A smaller value without a queued reset is ignored.
	job, err = store.Update(context.Background(), "j1", model.JobPatch{Progress: intPtr(10)}, UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 40, job.Progress)

	// Values clamp to 0..100.
	job, err = store.Update(context.Background(), "j1", model.JobPatch{Progress: intPtr(400)}, UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 100, job.Progress)

	// Recovery resets may lower progress when the status goes back to queued.
	job, err = store.Update(context.Background(), "j1", model.JobPatch{
		Status: statusPtr(model.StatusQueued), Progress: intPtr(15),
	}, UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 15, job.Progress)
}

func TestUpdateOptimisticConcurrency(t *testing.T) {
	store := NewMemoryStore(nil)
	job := seedJob(t, store, "j1", model.StatusQueued)

	stale := job.UpdatedAt.Add(-time.Minute)
	_, err := store.Update(context.Background(), "j1", model.JobPatch{Progress: intPtr(5)}, UpdateOptions{ExpectedUpdatedAt: &stale})
	assert.ErrorIs(t, err, model.ErrJobUpdateConflict)

	_, err = store.Update(context.Background(), "j1", model.JobPatch{Progress: intPtr(5)}, UpdateOptions{ExpectedUpdatedAt: &job.UpdatedAt})
	assert.NoError(t, err)
}

func TestAnalysisNormalizedOnWrite(t *testing.T) {
	store := NewMemoryStore(nil)
	seedJob(t, store, "j1", model.StatusQueued)

	job, err := store.Update(context.Background(), "j1", model.JobPatch{Analysis: &model.Analysis{
		Windows: []model.EngagementWindow{{Score: 1.7, AudioEnergy: -0.3, EmotionalSpike: 3}},
	}}, UpdateOptions{})
	require.NoError(t, err)
	w := job.Analysis.Windows[0]
	assert.Equal(t, 1.0, w.Score)
	assert.Equal(t, 0.0, w.AudioEnergy)
	assert.Equal(t, 1, w.EmotionalSpike)
	assert.Equal(t, model.CurrentMetadataVersion, job.Analysis.MetadataVersion)
}

func TestUpdateStepStateMergesMeta(t *testing.T) {
	store := NewMemoryStore(nil)
	seedJob(t, store, "j1", model.StatusQueued)
	ctx := context.Background()

	running := model.StepRunning
	attempts := 1
	started := time.Now().UTC()
	_, err := store.UpdateStepState(ctx, "j1", model.StepTranscribe, model.StepPatch{
		Status: &running, Attempts: &attempts, StartedAt: &started,
		Meta: map[string]interface{}{"lang": "en"},
	})
	require.NoError(t, err)

	completed := model.StepCompleted
	blob, err := store.UpdateStepState(ctx, "j1", model.StepTranscribe, model.StepPatch{
		Status: &completed,
		Meta:   map[string]interface{}{"cues": 40},
	})
	require.NoError(t, err)

	st := blob.PipelineSteps[model.StepTranscribe]
	require.NotNil(t, st)
	assert.Equal(t, model.StepCompleted, st.Status)
	assert.Equal(t, 1, st.Attempts)
	assert.Equal(t, "en", st.Meta["lang"])
	assert.Equal(t, 40, st.Meta["cues"])
}

func TestFindRecoverableSkipsTerminal(t *testing.T) {
	store := NewMemoryStore(nil)
	seedJob(t, store, "queued", model.StatusQueued)
	seedJob(t, store, "analyzing", model.StatusAnalyzing)
	seedJob(t, store, "done", model.StatusCompleted)
	seedJob(t, store, "dead", model.StatusFailed)

	jobs, err := store.FindRecoverable(context.Background(), 10)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, j := range jobs {
		ids[j.ID] = true
	}
	assert.True(t, ids["queued"])
	assert.True(t, ids["analyzing"])
	assert.False(t, ids["done"])
	assert.False(t, ids["dead"])
}

func TestListRecentCompletedOrderAndLimit(t *testing.T) {
	store := NewMemoryStore(nil)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		ts := base.Add(time.Duration(i) * time.Hour)
		store.SetClock(func() time.Time { return ts })
		job := &model.Job{
			ID: id, OwnerUserID: "u1", Status: model.StatusCompleted,
			Analysis: &model.Analysis{AppliedStrategy: "BASELINE", ContentStyle: "gaming"},
		}
		require.NoError(t, store.Create(context.Background(), job))
	}
	require.NoError(t, store.Create(context.Background(), &model.Job{
		ID: "other-owner", OwnerUserID: "u2", Status: model.StatusCompleted,
	}))

	out, err := store.ListRecentCompleted(context.Background(), "u1", 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "new", out[0].ID)
	assert.Equal(t, "mid", out[1].ID)
	assert.Equal(t, "BASELINE", out[0].Strategy)
}

func TestAppendFeedbackCapsHistory(t *testing.T) {
	store := NewMemoryStore(nil)
	seedJob(t, store, "j1", model.StatusCompleted)
	ctx := context.Background()

	for i := 0; i < model.FeedbackHistoryCap+5; i++ {
		require.NoError(t, store.AppendFeedback(ctx, "j1", model.RetentionFeedback{
			Source: model.FeedbackPlatform, WatchPercent: 0.5,
		}))
	}
	job, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Len(t, job.Analysis.Feedback, model.FeedbackHistoryCap)
}
