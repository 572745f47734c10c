package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/realtime"
	badger "github.com/dgraph-io/badger/v4"
)

const badgerJobPrefix = "job/"

// BadgerStore is the embedded KV backend. Jobs are JSON values under
// job/<id>; scans filter in memory, which is fine at the job counts a
// single node handles.
type BadgerStore struct {
	db        *badger.DB
	publisher realtime.Publisher
	clock     func() time.Time
}

func NewBadgerStore(dir string, pub realtime.Publisher) (*BadgerStore, error) {
	if pub == nil {
		pub = realtime.NopPublisher{}
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, publisher: pub, clock: time.Now}, nil
}

func (b *BadgerStore) Close() error { return b.db.Close() }

func jobKey(id string) []byte { return []byte(badgerJobPrefix + id) }

func (b *BadgerStore) Create(_ context.Context, job *model.Job) error {
	cp := job.Clone()
	now := b.clock()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = now
	}
	if cp.Status == "" {
		cp.Status = model.StatusQueued
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(jobKey(cp.ID)); err == nil {
			return fmt.Errorf("job %s already exists", cp.ID)
		}
		doc, err := json.Marshal(cp)
		if err != nil {
			return err
		}
		return txn.Set(jobKey(cp.ID), doc)
	})
}

func (b *BadgerStore) Get(_ context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(jobKey(jobID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &job)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (b *BadgerStore) mutate(jobID string, fn func(*model.Job) error) (*model.Job, error) {
	var snapshot *model.Job
	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(jobKey(jobID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return model.ErrNotFound
			}
			return err
		}
		var job model.Job
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &job) }); err != nil {
			return err
		}
		if err := fn(&job); err != nil {
			return err
		}
		doc, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		if err := txn.Set(jobKey(jobID), doc); err != nil {
			return err
		}
		snapshot = job.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (b *BadgerStore) Update(ctx context.Context, jobID string, patch model.JobPatch, opts UpdateOptions) (*model.Job, error) {
	snapshot, err := b.mutate(jobID, func(job *model.Job) error {
		if opts.ExpectedUpdatedAt != nil && !job.UpdatedAt.Equal(*opts.ExpectedUpdatedAt) {
			return model.ErrJobUpdateConflict
		}
		return applyJobPatch(job, patch, b.clock())
	})
	if err != nil {
		return nil, err
	}
	b.publisher.Publish(ctx, snapshot.OwnerUserID, snapshot)
	return snapshot, nil
}

func (b *BadgerStore) UpdateStepState(_ context.Context, jobID string, step model.StepName, patch model.StepPatch) (*model.Analysis, error) {
	snapshot, err := b.mutate(jobID, func(job *model.Job) error {
		if job.Analysis == nil {
			job.Analysis = &model.Analysis{MetadataVersion: model.CurrentMetadataVersion}
		}
		applyStepPatch(job.Analysis, step, patch)
		job.UpdatedAt = b.clock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot.Analysis, nil
}

func (b *BadgerStore) scan(filter func(*model.Job) bool) ([]*model.Job, error) {
	var out []*model.Job
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(badgerJobPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var job model.Job
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &job) }); err != nil {
				return err
			}
			if filter(&job) {
				cp := job
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}

func (b *BadgerStore) FindRecoverable(_ context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 200
	}
	out, err := b.scan(func(j *model.Job) bool {
		return j.Status == model.StatusQueued || j.Status == model.StatusUploading || j.Status.InProgress()
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *BadgerStore) ListRecentCompleted(_ context.Context, userID string, limit int) ([]model.JobSummary, error) {
	if limit <= 0 {
		limit = 24
	}
	jobs, err := b.scan(func(j *model.Job) bool {
		return j.OwnerUserID == userID && j.Status == model.StatusCompleted
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].UpdatedAt.After(jobs[j].UpdatedAt) })
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	out := make([]model.JobSummary, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, summaryFromJob(j))
	}
	return out, nil
}

func (b *BadgerStore) AppendFeedback(_ context.Context, jobID string, fb model.RetentionFeedback) error {
	_, err := b.mutate(jobID, func(job *model.Job) error {
		if job.Analysis == nil {
			job.Analysis = &model.Analysis{MetadataVersion: model.CurrentMetadataVersion}
		}
		job.Analysis.Feedback = append(job.Analysis.Feedback, fb)
		if len(job.Analysis.Feedback) > model.FeedbackHistoryCap {
			job.Analysis.Feedback = job.Analysis.Feedback[len(job.Analysis.Feedback)-model.FeedbackHistoryCap:]
		}
		job.UpdatedAt = b.clock()
		return nil
	})
	return err
}
