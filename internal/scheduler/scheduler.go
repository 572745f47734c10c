// Package scheduler owns job admission: the priority queue, the bounded
// worker pool, cancellation (including SIGKILL of registered media
// children), queue-position/ETA snapshots and the stale-job recovery
// sweep. It implements media.ProcessRegistry so runners can register
// their children per job.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/Marquise34567/editor-backend-sub000/internal/jobstore"
	"github.com/Marquise34567/editor-backend-sub000/internal/log"
	"github.com/Marquise34567/editor-backend-sub000/internal/media"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

const (
	// slidingWindowSize bounds the recent-duration sample used for ETAs.
	slidingWindowSize = 25

	// defaultPipelineSeconds seeds the ETA before any job has finished.
	defaultPipelineSeconds = 210.0
	minPipelineSeconds     = 20.0
	maxPipelineSeconds     = 10800.0

	// recoveryBatchSize caps one sweep's job fetch.
	recoveryBatchSize = 200

	staleResetProgressMin = 1
	staleResetProgressMax = 90
)

var (
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "editor_queue_depth",
		Help: "Jobs currently queued or running",
	})
	pipelineSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "editor_pipeline_duration_seconds",
		Help:    "Wall time of completed pipeline runs",
		Buckets: prometheus.ExponentialBuckets(10, 2, 10),
	})
	pipelineOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_pipeline_outcomes_total",
		Help: "Pipeline completions by outcome",
	}, []string{"outcome"})
	recoverySweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_recovery_sweeps_total",
		Help: "Recovery sweep runs by result",
	}, []string{"result"})
)

// QueueItem is one admission request.
type QueueItem struct {
	JobID     string
	User      model.User
	Quality   string
	Priority  model.PriorityLevel
	RequestID string

	seq int64 // FIFO tiebreak among equal priorities
}

// QueuePosition is one row of the ETA snapshot.
type QueuePosition struct {
	JobID      string  `json:"jobId"`
	Running    bool    `json:"running"`
	Position   int     `json:"queuePosition"`
	EtaSeconds float64 `json:"queueEtaSeconds"`
}

// PipelineFunc runs one job to completion. The registry passed in is the
// scheduler itself; runners created inside the pipeline must use it so
// Cancel can reach their children.
type PipelineFunc func(ctx context.Context, item QueueItem, registry media.ProcessRegistry) error

// Scheduler is safe for concurrent use. All queue state is guarded by mu;
// snapshots take the same mutex so they observe a consistent view.
type Scheduler struct {
	jobs             jobstore.Store
	run              PipelineFunc
	maxPipelines     int
	recoveryInterval time.Duration
	staleAfter       time.Duration

	mu       sync.Mutex
	pq       itemHeap
	queued   map[string]*QueueItem
	running  map[string]bool
	canceled map[string]bool
	procs    map[string]map[*exec.Cmd]struct{}
	active   int
	window   []float64
	seq      int64

	wake    chan struct{}
	sweeps  singleflight.Group
	wg      sync.WaitGroup
	stopped chan struct{}
	now     func() time.Time
}

// New builds a scheduler over the given store and pipeline entrypoint.
func New(jobs jobstore.Store, run PipelineFunc, maxPipelines int, recoveryInterval, staleAfter time.Duration) *Scheduler {
	if maxPipelines <= 0 {
		maxPipelines = 1
	}
	if recoveryInterval <= 0 {
		recoveryInterval = 30 * time.Second
	}
	if staleAfter <= 0 {
		staleAfter = 90 * time.Minute
	}
	return &Scheduler{
		jobs:             jobs,
		run:              run,
		maxPipelines:     maxPipelines,
		recoveryInterval: recoveryInterval,
		staleAfter:       staleAfter,
		queued:           make(map[string]*QueueItem),
		running:          make(map[string]bool),
		canceled:         make(map[string]bool),
		procs:            make(map[string]map[*exec.Cmd]struct{}),
		wake:             make(chan struct{}, 1),
		stopped:          make(chan struct{}),
		now:              time.Now,
	}
}

// Start launches the dispatch loop and the recovery ticker. Both exit when
// ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.dispatchLoop(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.recoveryLoop(ctx)
	}()
}

// Stop waits for the loops and all in-flight pipelines to drain.
func (s *Scheduler) Stop() {
	close(s.stopped)
	s.wg.Wait()
}

// Enqueue admits an item. Already-queued and already-running jobs are
// no-ops; the return value reports whether the item was accepted.
func (s *Scheduler) Enqueue(item QueueItem) bool {
	s.mu.Lock()
	if _, ok := s.queued[item.JobID]; ok || s.running[item.JobID] {
		s.mu.Unlock()
		return false
	}
	if item.RequestID == "" {
		item.RequestID = uuid.NewString()
	}
	s.seq++
	item.seq = s.seq
	entry := item
	s.queued[item.JobID] = &entry
	heap.Push(&s.pq, &entry)
	depth := len(s.queued) + len(s.running)
	s.mu.Unlock()

	queueDepth.Set(float64(depth))
	s.kick()
	return true
}

func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopped:
			return
		case <-s.wake:
			s.dispatch(ctx)
		}
	}
}

// dispatch pops work while capacity remains. Items removed from the
// queued map by Cancel are skipped lazily at pop time.
func (s *Scheduler) dispatch(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.active < s.maxPipelines && s.pq.Len() > 0 {
		item := heap.Pop(&s.pq).(*QueueItem)
		if current, ok := s.queued[item.JobID]; !ok || current != item {
			continue // canceled or superseded while queued
		}
		delete(s.queued, item.JobID)
		s.running[item.JobID] = true
		s.active++
		s.wg.Add(1)
		go s.runJob(ctx, *item)
	}
}

func (s *Scheduler) runJob(ctx context.Context, item QueueItem) {
	defer s.wg.Done()
	logger := log.WithJob("scheduler", item.JobID)
	started := s.now()

	runCtx := log.ContextWithJobID(log.ContextWithRequestID(ctx, item.RequestID), item.JobID)
	err := s.run(runCtx, item, s)

	elapsed := s.now().Sub(started).Seconds()
	pipelineSeconds.Observe(elapsed)

	s.mu.Lock()
	delete(s.running, item.JobID)
	wasCanceled := s.canceled[item.JobID]
	delete(s.canceled, item.JobID)
	delete(s.procs, item.JobID)
	s.active--
	s.window = append(s.window, elapsed)
	if len(s.window) > slidingWindowSize {
		s.window = s.window[len(s.window)-slidingWindowSize:]
	}
	depth := len(s.queued) + len(s.running)
	s.mu.Unlock()
	queueDepth.Set(float64(depth))

	switch {
	case wasCanceled || errors.Is(err, media.ErrJobCanceled):
		pipelineOutcomes.WithLabelValues("canceled").Inc()
		logger.Info().Dur("elapsed", time.Duration(elapsed*float64(time.Second))).Msg("pipeline canceled")
	case err != nil:
		pipelineOutcomes.WithLabelValues("failed").Inc()
		logger.Warn().Err(err).Msg("pipeline failed")
		s.markFailed(ctx, item.JobID, err)
	default:
		pipelineOutcomes.WithLabelValues("completed").Inc()
	}

	s.kick()
}

// markFailed is the safety net for pipelines that error without having
// persisted a terminal status themselves. failed->failed is a legal no-op
// edge, so double-writes are harmless.
func (s *Scheduler) markFailed(ctx context.Context, jobID string, cause error) {
	status := model.StatusFailed
	msg := cause.Error()
	if _, err := s.jobs.Update(ctx, jobID, model.JobPatch{Status: &status, Error: &msg}, jobstore.UpdateOptions{}); err != nil {
		logger := log.WithJob("scheduler", jobID)
		logger.Warn().Err(err).Msg("failed-status write after pipeline error")
	}
}

// Cancel removes the job from the queue, sets the cancel flag, kills every
// registered child and persists the failed status. Requester must own the
// job; terminal jobs cannot be canceled.
func (s *Scheduler) Cancel(ctx context.Context, jobID, requesterID, reason string) error {
	if jobID == "" {
		return model.ErrInvalidJobID
	}
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if requesterID != "" && job.OwnerUserID != requesterID {
		return model.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: job is %s", model.ErrCannotCancel, job.Status)
	}
	if reason == "" {
		reason = model.ErrQueueCanceled.Error()
	}

	s.mu.Lock()
	s.canceled[jobID] = true
	wasQueued := false
	if _, ok := s.queued[jobID]; ok {
		delete(s.queued, jobID)
		wasQueued = true
	}
	var victims []*exec.Cmd
	for cmd := range s.procs[jobID] {
		victims = append(victims, cmd)
	}
	s.mu.Unlock()

	for _, cmd := range victims {
		if kerr := media.KillGroup(cmd, syscall.SIGKILL); kerr != nil {
			logger := log.WithJob("scheduler", jobID)
			logger.Warn().Err(kerr).Msg("kill of registered child failed")
		}
	}

	status := model.StatusFailed
	if _, uerr := s.jobs.Update(ctx, jobID, model.JobPatch{Status: &status, Error: &reason}, jobstore.UpdateOptions{}); uerr != nil {
		return uerr
	}

	// A queued job has no worker to clear its flag on exit.
	if wasQueued {
		s.mu.Lock()
		delete(s.canceled, jobID)
		s.mu.Unlock()
	}
	logger := log.WithJob("scheduler", jobID)
	logger.Info().Str("reason", reason).Bool("was_queued", wasQueued).Msg("job canceled")
	return nil
}

// RegisterProcess implements media.ProcessRegistry.
func (s *Scheduler) RegisterProcess(jobID string, cmd *exec.Cmd) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.procs[jobID] == nil {
		s.procs[jobID] = make(map[*exec.Cmd]struct{})
	}
	s.procs[jobID][cmd] = struct{}{}
}

// UnregisterProcess implements media.ProcessRegistry; idempotent.
func (s *Scheduler) UnregisterProcess(jobID string, cmd *exec.Cmd) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.procs[jobID], cmd)
}

// IsCanceled implements media.ProcessRegistry.
func (s *Scheduler) IsCanceled(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled[jobID]
}

// Snapshot returns the queue view: running jobs at position 0 / ETA 0,
// queued jobs in drain order with their wave-based ETA.
func (s *Scheduler) Snapshot() []QueuePosition {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]QueuePosition, 0, len(s.running)+len(s.queued))
	for jobID := range s.running {
		out = append(out, QueuePosition{JobID: jobID, Running: true})
	}

	avg := s.avgPipelineSecondsLocked()
	availableNow := s.maxPipelines - s.active
	for i, item := range s.pq.ordered(s.queued) {
		waitSlots := i - availableNow + 1
		if waitSlots < 0 {
			waitSlots = 0
		}
		waves := math.Ceil(float64(waitSlots) / float64(s.maxPipelines))
		out = append(out, QueuePosition{
			JobID:      item.JobID,
			Position:   i + 1,
			EtaSeconds: waves * avg,
		})
	}
	return out
}

func (s *Scheduler) avgPipelineSecondsLocked() float64 {
	if len(s.window) == 0 {
		return defaultPipelineSeconds
	}
	var sum float64
	for _, v := range s.window {
		sum += v
	}
	return model.Clamp(sum/float64(len(s.window)), minPipelineSeconds, maxPipelineSeconds)
}

func (s *Scheduler) recoveryLoop(ctx context.Context) {
	ticker := time.NewTicker(s.recoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopped:
			return
		case <-ticker.C:
			s.RecoverOnce(ctx)
		}
	}
}

// RecoverOnce runs one recovery sweep under a single-flight discipline:
// re-enqueue startable queued/uploading jobs and reset stale in-progress
// jobs back to queued.
func (s *Scheduler) RecoverOnce(ctx context.Context) {
	_, _, _ = s.sweeps.Do("sweep", func() (interface{}, error) {
		s.sweep(ctx)
		return nil, nil
	})
}

func (s *Scheduler) sweep(ctx context.Context) {
	logger := log.WithComponent("scheduler")
	jobs, err := s.jobs.FindRecoverable(ctx, recoveryBatchSize)
	if err != nil {
		recoverySweeps.WithLabelValues("error").Inc()
		logger.Warn().Err(err).Msg("recovery fetch failed")
		return
	}

	var recovered int
	for _, job := range jobs {
		switch {
		case (job.Status == model.StatusQueued || job.Status == model.StatusUploading) &&
			job.Progress >= 1 && job.InputPath != "":
			if s.Enqueue(itemFromJob(job)) {
				recovered++
			}

		case job.Status.InProgress() && s.now().Sub(job.UpdatedAt) > s.staleAfter:
			status := model.StatusQueued
			progress := clampInt(job.Progress, staleResetProgressMin, staleResetProgressMax)
			if _, uerr := s.jobs.Update(ctx, job.ID, model.JobPatch{Status: &status, Progress: &progress}, jobstore.UpdateOptions{}); uerr != nil {
				logger.Warn().Err(uerr).Str("job_id", job.ID).Msg("stale reset failed")
				continue
			}
			if s.Enqueue(itemFromJob(job)) {
				recovered++
			}
		}
	}
	recoverySweeps.WithLabelValues("ok").Inc()
	if recovered > 0 {
		logger.Info().Int("recovered", recovered).Msg("recovery sweep re-enqueued jobs")
	}
}

func itemFromJob(job *model.Job) QueueItem {
	return QueueItem{
		JobID:    job.ID,
		User:     model.User{ID: job.OwnerUserID},
		Quality:  job.RequestedQuality,
		Priority: job.PriorityLevel,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ media.ProcessRegistry = (*Scheduler)(nil)
