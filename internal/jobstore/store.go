// Package jobstore is the system-of-record for jobs and their per-step
// pipeline state. Three backends exist: memory (tests), sqlite (default)
// and badger (embedded KV). All backends share the patch/transition logic
// in patch.go so contracts hold identically.
package jobstore

import (
	"context"
	"time"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// UpdateOptions tunes a single Update call.
type UpdateOptions struct {
	// ExpectedUpdatedAt enables compare-and-swap: the update fails with
	// model.ErrJobUpdateConflict when the stored timestamp differs.
	ExpectedUpdatedAt *time.Time
}

// Store persists jobs and pipeline step state.
//
// Contracts:
//   - Update validates status changes against the adjacency table and
//     fails with InvalidTransitionError on an illegal edge.
//   - Every successful Update notifies the configured realtime publisher
//     with (ownerUserID, job), in wire order per user.
//   - UpdateStepState merges the patch into the analysis blob; only the
//     owning worker may call it for a given (job, step).
type Store interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
	Update(ctx context.Context, jobID string, patch model.JobPatch, opts UpdateOptions) (*model.Job, error)
	UpdateStepState(ctx context.Context, jobID string, step model.StepName, patch model.StepPatch) (*model.Analysis, error)
	FindRecoverable(ctx context.Context, limit int) ([]*model.Job, error)
	ListRecentCompleted(ctx context.Context, userID string, limit int) ([]model.JobSummary, error)
	AppendFeedback(ctx context.Context, jobID string, fb model.RetentionFeedback) error
	Close() error
}
