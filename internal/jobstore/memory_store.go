package jobstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/realtime"
)

// MemoryStore is an in-memory Store intended for tests and local iteration.
// Not durable.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*model.Job
	publisher realtime.Publisher
	clock     func() time.Time
}

func NewMemoryStore(pub realtime.Publisher) *MemoryStore {
	if pub == nil {
		pub = realtime.NopPublisher{}
	}
	return &MemoryStore{
		jobs:      make(map[string]*model.Job),
		publisher: pub,
		clock:     time.Now,
	}
}

// SetClock is a test seam for deterministic timestamps.
func (m *MemoryStore) SetClock(clock func() time.Time) { m.clock = clock }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Create(_ context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	cp := job.Clone()
	now := m.clock()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = now
	}
	if cp.Status == "" {
		cp.Status = model.StatusQueued
	}
	m.jobs[job.ID] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, jobID string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return job.Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, jobID string, patch model.JobPatch, opts UpdateOptions) (*model.Job, error) {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return nil, model.ErrNotFound
	}
	if opts.ExpectedUpdatedAt != nil && !job.UpdatedAt.Equal(*opts.ExpectedUpdatedAt) {
		m.mu.Unlock()
		return nil, model.ErrJobUpdateConflict
	}
	if err := applyJobPatch(job, patch, m.clock()); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	snapshot := job.Clone()
	m.mu.Unlock()

	m.publisher.Publish(ctx, snapshot.OwnerUserID, snapshot)
	return snapshot, nil
}

func (m *MemoryStore) UpdateStepState(_ context.Context, jobID string, step model.StepName, patch model.StepPatch) (*model.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if job.Analysis == nil {
		job.Analysis = &model.Analysis{MetadataVersion: model.CurrentMetadataVersion}
	}
	applyStepPatch(job.Analysis, step, patch)
	job.UpdatedAt = m.clock()
	return job.Analysis.Clone(), nil
}

func (m *MemoryStore) FindRecoverable(_ context.Context, limit int) ([]*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Job
	for _, job := range m.jobs {
		if job.Status == model.StatusQueued || job.Status == model.StatusUploading || job.Status.InProgress() {
			out = append(out, job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListRecentCompleted(_ context.Context, userID string, limit int) ([]model.JobSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.JobSummary
	for _, job := range m.jobs {
		if job.OwnerUserID == userID && job.Status == model.StatusCompleted {
			out = append(out, summaryFromJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) AppendFeedback(_ context.Context, jobID string, fb model.RetentionFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return model.ErrNotFound
	}
	if job.Analysis == nil {
		job.Analysis = &model.Analysis{MetadataVersion: model.CurrentMetadataVersion}
	}
	job.Analysis.Feedback = append(job.Analysis.Feedback, fb)
	if len(job.Analysis.Feedback) > model.FeedbackHistoryCap {
		job.Analysis.Feedback = job.Analysis.Feedback[len(job.Analysis.Feedback)-model.FeedbackHistoryCap:]
	}
	job.UpdatedAt = m.clock()
	return nil
}
