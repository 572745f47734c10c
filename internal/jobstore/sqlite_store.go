package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/realtime"
	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	status     TEXT NOT NULL,
	updated_ns INTEGER NOT NULL,
	doc        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_owner_status ON jobs(owner, status, updated_ns DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, updated_ns);
`

// SQLiteStore persists jobs as JSON documents with indexed columns for the
// recovery and calibration scans. Single-writer discipline is enforced by
// transactions; WAL keeps readers unblocked.
type SQLiteStore struct {
	db        *sql.DB
	publisher realtime.Publisher
	clock     func() time.Time
}

func NewSQLiteStore(path string, pub realtime.Publisher) (*SQLiteStore, error) {
	if pub == nil {
		pub = realtime.NopPublisher{}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY churn under load.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db, publisher: pub, clock: time.Now}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Create(ctx context.Context, job *model.Job) error {
	cp := job.Clone()
	now := s.clock()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = now
	}
	if cp.Status == "" {
		cp.Status = model.StatusQueued
	}
	doc, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, owner, status, updated_ns, doc) VALUES (?, ?, ?, ?, ?)`,
		cp.ID, cp.OwnerUserID, string(cp.Status), cp.UpdatedAt.UnixNano(), string(doc))
	if err != nil {
		return fmt.Errorf("insert job %s: %w", cp.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	return s.getRow(ctx, s.db.QueryRowContext(ctx, `SELECT doc FROM jobs WHERE id = ?`, jobID))
}

func (s *SQLiteStore) getRow(_ context.Context, row *sql.Row) (*model.Job, error) {
	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal([]byte(doc), &job); err != nil {
		return nil, fmt.Errorf("decode job doc: %w", err)
	}
	return &job, nil
}

// mutate runs fn against the stored job inside a transaction and persists
// the result. fn may return an error to abort.
func (s *SQLiteStore) mutate(ctx context.Context, jobID string, fn func(*model.Job) error) (*model.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var doc string
	if err := tx.QueryRowContext(ctx, `SELECT doc FROM jobs WHERE id = ?`, jobID).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal([]byte(doc), &job); err != nil {
		return nil, fmt.Errorf("decode job doc: %w", err)
	}
	if err := fn(&job); err != nil {
		return nil, err
	}
	next, err := json.Marshal(&job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET owner = ?, status = ?, updated_ns = ?, doc = ? WHERE id = ?`,
		job.OwnerUserID, string(job.Status), job.UpdatedAt.UnixNano(), string(next), jobID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

func (s *SQLiteStore) Update(ctx context.Context, jobID string, patch model.JobPatch, opts UpdateOptions) (*model.Job, error) {
	snapshot, err := s.mutate(ctx, jobID, func(job *model.Job) error {
		if opts.ExpectedUpdatedAt != nil && !job.UpdatedAt.Equal(*opts.ExpectedUpdatedAt) {
			return model.ErrJobUpdateConflict
		}
		return applyJobPatch(job, patch, s.clock())
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, snapshot.OwnerUserID, snapshot)
	return snapshot, nil
}

func (s *SQLiteStore) UpdateStepState(ctx context.Context, jobID string, step model.StepName, patch model.StepPatch) (*model.Analysis, error) {
	snapshot, err := s.mutate(ctx, jobID, func(job *model.Job) error {
		if job.Analysis == nil {
			job.Analysis = &model.Analysis{MetadataVersion: model.CurrentMetadataVersion}
		}
		applyStepPatch(job.Analysis, step, patch)
		job.UpdatedAt = s.clock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot.Analysis, nil
}

func (s *SQLiteStore) FindRecoverable(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM jobs
		WHERE status NOT IN ('completed', 'failed')
		ORDER BY updated_ns ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Job
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var job model.Job
		if err := json.Unmarshal([]byte(doc), &job); err != nil {
			return nil, fmt.Errorf("decode job doc: %w", err)
		}
		out = append(out, &job)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListRecentCompleted(ctx context.Context, userID string, limit int) ([]model.JobSummary, error) {
	if limit <= 0 {
		limit = 24
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM jobs
		WHERE owner = ? AND status = 'completed'
		ORDER BY updated_ns DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.JobSummary
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var job model.Job
		if err := json.Unmarshal([]byte(doc), &job); err != nil {
			return nil, fmt.Errorf("decode job doc: %w", err)
		}
		out = append(out, summaryFromJob(&job))
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendFeedback(ctx context.Context, jobID string, fb model.RetentionFeedback) error {
	_, err := s.mutate(ctx, jobID, func(job *model.Job) error {
		if job.Analysis == nil {
			job.Analysis = &model.Analysis{MetadataVersion: model.CurrentMetadataVersion}
		}
		job.Analysis.Feedback = append(job.Analysis.Feedback, fb)
		if len(job.Analysis.Feedback) > model.FeedbackHistoryCap {
			job.Analysis.Feedback = job.Analysis.Feedback[len(job.Analysis.Feedback)-model.FeedbackHistoryCap:]
		}
		job.UpdatedAt = s.clock()
		return nil
	})
	return err
}
