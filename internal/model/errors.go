package model

import (
	"errors"
	"fmt"
)

// Stable error kinds surfaced in Job.Error or step LastError. Three
// families exist: plan/limit errors raised by external collaborators,
// retriable I/O errors, and pipeline-gate errors carrying details.
var (
	ErrFFmpegMissing  = errors.New("ffmpeg_missing")
	ErrFFprobeMissing = errors.New("ffprobe_missing")

	ErrDownloadFailed            = errors.New("download_failed")
	ErrInputMissingAfterDownload = errors.New("input_file_missing_after_download")
	ErrInputEmptyAfterDownload   = errors.New("input_file_empty_after_download")
	ErrDurationUnavailable       = errors.New("duration_unavailable")

	ErrRenderFailed             = errors.New("render_failed")
	ErrOutputMissingAfterRender = errors.New("output_file_missing_after_render")
	ErrOutputEmptyAfterRender   = errors.New("output_file_empty_after_render")
	ErrOutputUploadMissing      = errors.New("output_upload_missing")
	ErrNoRenderableSegments     = errors.New("no_renderable_segments")

	ErrQueueCanceled = errors.New("queue_canceled_by_user")

	ErrJobUpdateConflict      = errors.New("job_update_conflict")
	ErrInvalidPreferredHook   = errors.New("invalid_preferred_hook")
	ErrHookStageComplete      = errors.New("hook_stage_complete")
	ErrHookCandidatesNotReady = errors.New("hook_candidates_not_ready")
	ErrHookUpdateConflict     = errors.New("hook_update_conflict")

	ErrInvalidJobID = errors.New("invalid_job_id")
	ErrNotFound     = errors.New("not_found")
	ErrCannotCancel = errors.New("cannot_cancel")
)

// InvalidTransitionError reports an illegal status edge.
type InvalidTransitionError struct {
	From JobStatus
	To   JobStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid_status_transition:%s->%s", e.From, e.To)
}

// GateKind labels the two pipeline gates.
type GateKind string

const (
	GateHook    GateKind = "FAILED_HOOK"
	GateQuality GateKind = "FAILED_QUALITY_GATE"
)

// GateError is a pipeline-gate failure with a reason and structured
// details, distinguishable from I/O errors by type.
type GateError struct {
	Gate    GateKind
	Reason  string
	Details map[string]interface{}
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Gate, e.Reason)
}

// NewHookGateError builds a FAILED_HOOK error.
func NewHookGateError(reason string, details map[string]interface{}) *GateError {
	return &GateError{Gate: GateHook, Reason: reason, Details: details}
}

// NewQualityGateError builds a FAILED_QUALITY_GATE error.
func NewQualityGateError(reason string, details map[string]interface{}) *GateError {
	return &GateError{Gate: GateQuality, Reason: reason, Details: details}
}

// PlanLimitError is a user-visible plan/limit rejection from the billing
// collaborator. The engine never constructs these itself beyond passing
// them through.
type PlanLimitError struct {
	Code         string // RENDER_LIMIT_REACHED, MINUTES_LIMIT_REACHED, PLAN_LIMIT_EXCEEDED
	Feature      string
	RequiredPlan string
}

func (e *PlanLimitError) Error() string {
	if e.Feature != "" {
		return fmt.Sprintf("%s: feature=%s requiredPlan=%s", e.Code, e.Feature, e.RequiredPlan)
	}
	return e.Code
}

// EditedRenderError wraps a render failure with the fallback reason chain.
func EditedRenderError(reason string) error {
	return fmt.Errorf("edited_render_failed:%s: %w", reason, ErrRenderFailed)
}
