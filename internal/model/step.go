package model

import "time"

// StepName identifies one pipeline stage. Values are persisted inside the
// analysis blob, so renames require a legacy alias below.
type StepName string

const (
	StepTranscribe          StepName = "TRANSCRIBE"
	StepFrameAnalysis       StepName = "FRAME_ANALYSIS"
	StepBestMomentScoring   StepName = "BEST_MOMENT_SCORING"
	StepHookSelectAndAudit  StepName = "HOOK_SELECT_AND_AUDIT"
	StepTimelineReorder     StepName = "TIMELINE_REORDER"
	StepPacingAndInterrupts StepName = "PACING_AND_INTERRUPTS"
	StepStoryQualityGate    StepName = "STORY_QUALITY_GATE"
	StepRenderFinal         StepName = "RENDER_FINAL"
	StepRetentionScore      StepName = "RETENTION_SCORE"
)

// PipelineSteps is the canonical execution order.
var PipelineSteps = []StepName{
	StepTranscribe,
	StepFrameAnalysis,
	StepBestMomentScoring,
	StepHookSelectAndAudit,
	StepTimelineReorder,
	StepPacingAndInterrupts,
	StepStoryQualityGate,
	StepRenderFinal,
	StepRetentionScore,
}

// legacyStepAliases maps step names written by earlier releases onto the
// current enum so old analysis blobs stay readable.
var legacyStepAliases = map[string]StepName{
	"ANALYZE":        StepFrameAnalysis,
	"SCORING":        StepBestMomentScoring,
	"HOOK":           StepHookSelectAndAudit,
	"CUT":            StepTimelineReorder,
	"PACING":         StepPacingAndInterrupts,
	"QUALITY_GATE":   StepStoryQualityGate,
	"RENDER":         StepRenderFinal,
	"RETENTION":      StepRetentionScore,
	"TRANSCRIPTION":  StepTranscribe,
	"FRAME_ANALYSIS": StepFrameAnalysis,
}

// CanonicalStep resolves a possibly-legacy step name. ok is false for
// unknown names.
func CanonicalStep(name string) (StepName, bool) {
	for _, s := range PipelineSteps {
		if string(s) == name {
			return s, true
		}
	}
	if s, ok := legacyStepAliases[name]; ok {
		return s, true
	}
	return "", false
}

// StepStatus is the lifecycle of a single pipeline step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// PipelineStepState is the persisted per-(job, step) record. Only the
// worker that owns the job writes it.
type PipelineStepState struct {
	Status      StepStatus             `json:"status"`
	Attempts    int                    `json:"attempts"`
	Retries     int                    `json:"retries"`
	StartedAt   *time.Time             `json:"startedAt,omitempty"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
	LastError   string                 `json:"lastError,omitempty"`
	Meta        map[string]interface{} `json:"meta,omitempty"`
}

// StepPatch is a partial update to a PipelineStepState.
type StepPatch struct {
	Status      *StepStatus
	Attempts    *int
	Retries     *int
	StartedAt   *time.Time
	CompletedAt *time.Time
	LastError   *string
	Meta        map[string]interface{} // merged key-by-key, not replaced
}
