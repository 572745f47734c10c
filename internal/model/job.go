// Package model holds the domain types of the editing engine: jobs,
// pipeline steps, engagement windows, segments, hooks, edit plans and the
// judge report. Everything here is plain data; behavior lives in the
// owning packages.
package model

import (
	"time"
)

// JobStatus is the user-visible lifecycle state of a job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusUploading  JobStatus = "uploading"
	StatusAnalyzing  JobStatus = "analyzing"
	StatusHooking    JobStatus = "hooking"
	StatusCutting    JobStatus = "cutting"
	StatusPacing     JobStatus = "pacing"
	StatusStory      JobStatus = "story"
	StatusSubtitling JobStatus = "subtitling"
	StatusAudio      JobStatus = "audio"
	StatusRetention  JobStatus = "retention"
	StatusRendering  JobStatus = "rendering"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed except
// an explicit re-queue of a failed job.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// InProgress reports whether the status belongs to a running pipeline.
func (s JobStatus) InProgress() bool {
	switch s {
	case StatusAnalyzing, StatusHooking, StatusCutting, StatusPacing,
		StatusStory, StatusSubtitling, StatusAudio, StatusRetention, StatusRendering:
		return true
	}
	return false
}

// statusAdjacency is the legal transition table. Every edge not listed is
// rejected with ErrInvalidStatusTransition. "-> queued" edges exist for the
// stale-job recovery sweep; "-> failed" edges cover errors and cancellation.
var statusAdjacency = map[JobStatus][]JobStatus{
	StatusQueued:     {StatusUploading, StatusAnalyzing, StatusFailed},
	StatusUploading:  {StatusAnalyzing, StatusQueued, StatusFailed},
	StatusAnalyzing:  {StatusHooking, StatusCutting, StatusQueued, StatusFailed},
	StatusCutting:    {StatusHooking, StatusPacing, StatusQueued, StatusFailed},
	StatusHooking:    {StatusCutting, StatusPacing, StatusQueued, StatusFailed},
	StatusPacing:     {StatusStory, StatusQueued, StatusFailed},
	StatusStory:      {StatusSubtitling, StatusAudio, StatusQueued, StatusFailed},
	StatusSubtitling: {StatusAudio, StatusQueued, StatusFailed},
	StatusAudio:      {StatusRetention, StatusQueued, StatusFailed},
	StatusRetention:  {StatusRendering, StatusQueued, StatusFailed},
	StatusRendering:  {StatusCompleted, StatusQueued, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {StatusQueued},
}

// CanTransition reports whether from -> to is a legal status edge.
// A no-op transition (from == to) is always legal.
func CanTransition(from, to JobStatus) bool {
	if from == to {
		return true
	}
	for _, next := range statusAdjacency[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PriorityLevel orders the scheduler queue; lower drains first.
type PriorityLevel int

const (
	PriorityHigh   PriorityLevel = 1
	PriorityNormal PriorityLevel = 2
)

// User identifies the job owner; email is optional and only used for
// realtime addressing.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Job is a single video editing task.
type Job struct {
	ID                       string        `json:"id"`
	OwnerUserID              string        `json:"ownerUserId"`
	Status                   JobStatus     `json:"status"`
	Progress                 int           `json:"progress"` // 0..100, non-decreasing within a run
	Error                    string        `json:"error,omitempty"`
	InputObjectKey           string        `json:"inputObjectKey"`
	InputPath                string        `json:"inputPath,omitempty"`
	OutputObjectKey          string        `json:"outputObjectKey,omitempty"`
	VerticalOutputObjectKeys []string      `json:"verticalOutputObjectKeys,omitempty"`
	InputDurationSeconds     float64       `json:"inputDurationSeconds"`
	RequestedQuality         string        `json:"requestedQuality,omitempty"`
	FinalQuality             string        `json:"finalQuality,omitempty"`
	WatermarkApplied         bool          `json:"watermarkApplied"`
	RetentionScore           float64       `json:"retentionScore,omitempty"`
	OptimizationNotes        []string      `json:"optimizationNotes,omitempty"`
	RenderSettings           *RenderConfig `json:"renderSettings,omitempty"`
	Analysis                 *Analysis     `json:"analysis,omitempty"`
	PriorityLevel            PriorityLevel `json:"priorityLevel"`
	CreatedAt                time.Time     `json:"createdAt"`
	UpdatedAt                time.Time     `json:"updatedAt"`
}

// Clone returns a deep enough copy for handing across goroutines: slices
// and the analysis blob are copied, so mutations on the clone never leak
// back into the store.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.VerticalOutputObjectKeys = append([]string(nil), j.VerticalOutputObjectKeys...)
	cp.OptimizationNotes = append([]string(nil), j.OptimizationNotes...)
	if j.RenderSettings != nil {
		rs := *j.RenderSettings
		cp.RenderSettings = &rs
	}
	cp.Analysis = j.Analysis.Clone()
	return &cp
}

// JobSummary is the calibration-facing projection of a completed job.
type JobSummary struct {
	ID             string    `json:"id"`
	RetentionScore float64   `json:"retentionScore"`
	Strategy       string    `json:"strategy"`
	ContentStyle   string    `json:"contentStyle"`
	CompletedAt    time.Time `json:"completedAt"`
	Feedback       []RetentionFeedback
}

// JobPatch is a partial update applied by JobStore.Update. Nil fields are
// left untouched.
type JobPatch struct {
	Status                   *JobStatus
	Progress                 *int
	Error                    *string
	InputPath                *string
	OutputObjectKey          *string
	VerticalOutputObjectKeys *[]string
	InputDurationSeconds     *float64
	FinalQuality             *string
	WatermarkApplied         *bool
	RetentionScore           *float64
	AppendOptimizationNotes  []string
	RenderSettings           *RenderConfig
	Analysis                 *Analysis
}
