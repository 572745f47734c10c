// Package pipeline runs one job end to end: input staging, signal
// extraction, engagement fusion, hook selection, the quality-gate ladder,
// rendering and the final retention record. Each stage persists its
// PipelineStepState and advances the user-visible status trail.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Marquise34567/editor-backend-sub000/internal/calibration"
	"github.com/Marquise34567/editor-backend-sub000/internal/config"
	"github.com/Marquise34567/editor-backend-sub000/internal/jobstore"
	"github.com/Marquise34567/editor-backend-sub000/internal/log"
	"github.com/Marquise34567/editor-backend-sub000/internal/media"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/scheduler"
	"github.com/Marquise34567/editor-backend-sub000/internal/storage"
)

var stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "editor_step_duration_seconds",
	Help:    "Wall time per pipeline step",
	Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
}, []string{"step", "status"})

// Deps wires the collaborators a worker needs.
type Deps struct {
	Cfg     config.Config
	Jobs    jobstore.Store
	Storage *storage.Gateway
	Calib   *calibration.Store
	Caps    media.Capabilities
}

// Worker executes pipelines; one Worker serves all jobs, per-job state
// lives in jobRun.
type Worker struct {
	deps Deps
}

func New(deps Deps) *Worker {
	return &Worker{deps: deps}
}

// Run is the scheduler.PipelineFunc entrypoint.
func (w *Worker) Run(ctx context.Context, item scheduler.QueueItem, registry media.ProcessRegistry) error {
	job, err := w.deps.Jobs.Get(ctx, item.JobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	scratch := filepath.Join(w.deps.Cfg.WorkRoot, item.JobID)
	// Recreate on entry so a recovered job never sees a half-written dir.
	if err := os.RemoveAll(scratch); err != nil {
		return fmt.Errorf("clean scratch dir: %w", err)
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	run := &jobRun{
		deps:    w.deps,
		job:     job,
		runner:  media.NewRunner(item.JobID, registry),
		scratch: scratch,
		logger:  log.WithJob("pipeline", item.JobID),
	}
	if err := run.execute(ctx); err != nil {
		run.persistFailure(ctx, err)
		return err
	}
	return nil
}

// jobRun is the per-job mutable state threaded through the stages.
type jobRun struct {
	deps    Deps
	job     *model.Job
	runner  *media.Runner
	scratch string
	logger  zerolog.Logger

	analysis *model.Analysis
	probe    media.ProbeInfo
	rc       model.RenderConfig

	inputPath    string
	subtitlePath string
	styleState   styleState
	planState    planState
}

func (r *jobRun) execute(ctx context.Context) error {
	if err := r.stageInput(ctx); err != nil {
		return err
	}
	if err := r.setStatus(ctx, model.StatusAnalyzing, 12); err != nil {
		return err
	}
	if err := r.stageAnalysis(ctx); err != nil {
		return err
	}
	if err := r.setStatus(ctx, model.StatusCutting, 35); err != nil {
		return err
	}
	if err := r.stageTimeline(ctx); err != nil {
		return err
	}
	if err := r.setStatus(ctx, model.StatusHooking, 45); err != nil {
		return err
	}
	if err := r.stageHook(ctx); err != nil {
		return err
	}
	if err := r.setStatus(ctx, model.StatusPacing, 55); err != nil {
		return err
	}
	if err := r.stagePacing(ctx); err != nil {
		return err
	}
	if err := r.setStatus(ctx, model.StatusStory, 65); err != nil {
		return err
	}
	if err := r.stageQualityGate(ctx); err != nil {
		return err
	}
	if r.wantsCaptions() {
		if err := r.setStatus(ctx, model.StatusSubtitling, 72); err != nil {
			return err
		}
		if err := r.stageSubtitles(); err != nil {
			return err
		}
	}
	if err := r.setStatus(ctx, model.StatusAudio, 78); err != nil {
		return err
	}
	if err := r.setStatus(ctx, model.StatusRetention, 85); err != nil {
		return err
	}
	if err := r.setStatus(ctx, model.StatusRendering, 92); err != nil {
		return err
	}
	if err := r.stageRender(ctx); err != nil {
		return err
	}
	if err := r.stageRetention(ctx); err != nil {
		return err
	}
	return r.finish(ctx)
}

// step wraps one persisted pipeline step: running/completed/failed state,
// attempts, timing and meta.
func (r *jobRun) step(ctx context.Context, name model.StepName, fn func(context.Context) (map[string]interface{}, error)) error {
	if err := r.runner.CheckCanceled(); err != nil {
		return err
	}
	started := time.Now().UTC()
	running := model.StepRunning
	attempts := r.stepAttempts(name) + 1
	if _, err := r.deps.Jobs.UpdateStepState(ctx, r.job.ID, name, model.StepPatch{
		Status: &running, Attempts: &attempts, StartedAt: &started,
	}); err != nil {
		return fmt.Errorf("step %s start: %w", name, err)
	}

	meta, err := fn(ctx)
	completed := time.Now().UTC()
	patch := model.StepPatch{CompletedAt: &completed, Meta: meta}
	status := model.StepCompleted
	if err != nil {
		status = model.StepFailed
		lastErr := truncateErr(err)
		patch.LastError = &lastErr
	}
	patch.Status = &status

	blob, uerr := r.deps.Jobs.UpdateStepState(ctx, r.job.ID, name, patch)
	if uerr == nil {
		r.analysis = blob
	}
	stepDuration.WithLabelValues(string(name), string(status)).Observe(completed.Sub(started).Seconds())
	if err != nil {
		return fmt.Errorf("step %s: %w", name, err)
	}
	return uerr
}

func (r *jobRun) stepAttempts(name model.StepName) int {
	if r.analysis == nil || r.analysis.PipelineSteps == nil {
		return 0
	}
	if st, ok := r.analysis.PipelineSteps[name]; ok {
		return st.Attempts
	}
	return 0
}

func (r *jobRun) setStatus(ctx context.Context, status model.JobStatus, progress int) error {
	if err := r.runner.CheckCanceled(); err != nil {
		return err
	}
	job, err := r.deps.Jobs.Update(ctx, r.job.ID, model.JobPatch{Status: &status, Progress: &progress}, jobstore.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("status %s: %w", status, err)
	}
	r.job = job
	return nil
}

// patchAnalysis persists the local blob and refreshes it from the store.
func (r *jobRun) patchAnalysis(ctx context.Context) error {
	job, err := r.deps.Jobs.Update(ctx, r.job.ID, model.JobPatch{Analysis: r.analysis}, jobstore.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("persist analysis: %w", err)
	}
	r.job = job
	r.analysis = job.Analysis
	return nil
}

func (r *jobRun) ensureAnalysis() *model.Analysis {
	if r.analysis == nil {
		r.analysis = &model.Analysis{MetadataVersion: model.CurrentMetadataVersion}
	}
	return r.analysis
}

func (r *jobRun) wantsCaptions() bool {
	return r.rc.AutoCaptions && len(r.ensureAnalysis().TranscriptCues) > 0
}

func (r *jobRun) finish(ctx context.Context) error {
	status := model.StatusCompleted
	progress := 100
	clear := ""
	_, err := r.deps.Jobs.Update(ctx, r.job.ID, model.JobPatch{
		Status: &status, Progress: &progress, Error: &clear,
	}, jobstore.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	r.logger.Info().Float64("retention_score", r.job.RetentionScore).Msg("pipeline completed")
	return nil
}

// persistFailure writes the terminal failed state. Cancellation is left
// alone: the scheduler already persisted the canceled status.
func (r *jobRun) persistFailure(ctx context.Context, cause error) {
	if errors.Is(cause, media.ErrJobCanceled) {
		return
	}
	status := model.StatusFailed
	msg := errorCode(cause)
	if _, err := r.deps.Jobs.Update(ctx, r.job.ID, model.JobPatch{Status: &status, Error: &msg}, jobstore.UpdateOptions{}); err != nil {
		r.logger.Warn().Err(err).Msg("failed-status write lost")
	}
}

// errorCode maps an error onto the stable string persisted in Job.Error:
// gate errors carry their reason, sentinels their name, the rest pass
// through truncated.
func errorCode(err error) string {
	var gate *model.GateError
	if errors.As(err, &gate) {
		return gate.Error()
	}
	for _, sentinel := range []error{
		model.ErrDurationUnavailable,
		model.ErrDownloadFailed,
		model.ErrInputMissingAfterDownload,
		model.ErrInputEmptyAfterDownload,
		model.ErrOutputMissingAfterRender,
		model.ErrOutputEmptyAfterRender,
		model.ErrNoRenderableSegments,
		model.ErrFFmpegMissing,
		model.ErrFFprobeMissing,
		model.ErrRenderFailed,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return truncate(err.Error(), media.StderrTailChars)
}

func truncateErr(err error) string {
	return truncate(err.Error(), media.StderrTailChars)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
