package jobstore

import (
	"time"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// applyJobPatch mutates job in place after validating the status edge.
// Progress is monotone within a run: a smaller value is ignored unless the
// status is being reset to queued (recovery clamps it separately).
func applyJobPatch(job *model.Job, patch model.JobPatch, now time.Time) error {
	if patch.Status != nil && *patch.Status != job.Status {
		if !model.CanTransition(job.Status, *patch.Status) {
			return &model.InvalidTransitionError{From: job.Status, To: *patch.Status}
		}
		job.Status = *patch.Status
	}
	if patch.Progress != nil {
		next := *patch.Progress
		if next < 0 {
			next = 0
		}
		if next > 100 {
			next = 100
		}
		if next >= job.Progress || (patch.Status != nil && *patch.Status == model.StatusQueued) {
			job.Progress = next
		}
	}
	if patch.Error != nil {
		job.Error = *patch.Error
	}
	if patch.InputPath != nil {
		job.InputPath = *patch.InputPath
	}
	if patch.OutputObjectKey != nil {
		job.OutputObjectKey = *patch.OutputObjectKey
	}
	if patch.VerticalOutputObjectKeys != nil {
		job.VerticalOutputObjectKeys = append([]string(nil), (*patch.VerticalOutputObjectKeys)...)
	}
	if patch.InputDurationSeconds != nil {
		job.InputDurationSeconds = *patch.InputDurationSeconds
	}
	if patch.FinalQuality != nil {
		job.FinalQuality = *patch.FinalQuality
	}
	if patch.WatermarkApplied != nil {
		job.WatermarkApplied = *patch.WatermarkApplied
	}
	if patch.RetentionScore != nil {
		job.RetentionScore = *patch.RetentionScore
	}
	if len(patch.AppendOptimizationNotes) > 0 {
		job.OptimizationNotes = append(job.OptimizationNotes, patch.AppendOptimizationNotes...)
	}
	if patch.RenderSettings != nil {
		rs := *patch.RenderSettings
		rs.Normalize()
		job.RenderSettings = &rs
	}
	if patch.Analysis != nil {
		job.Analysis = normalizeAnalysis(patch.Analysis)
	}
	job.UpdatedAt = now
	return nil
}

// normalizeAnalysis coerces the blob before persistence: version stamped,
// scalar window fields clamped, unknown fields preserved as-is.
func normalizeAnalysis(a *model.Analysis) *model.Analysis {
	cp := a.Clone()
	if cp.MetadataVersion == 0 {
		cp.MetadataVersion = model.CurrentMetadataVersion
	}
	for i := range cp.Windows {
		w := &cp.Windows[i]
		w.AudioEnergy = model.Clamp01(w.AudioEnergy)
		w.SpeechIntensity = model.Clamp01(w.SpeechIntensity)
		w.MotionScore = model.Clamp01(w.MotionScore)
		w.FacePresence = model.Clamp01(w.FacePresence)
		w.TextDensity = model.Clamp01(w.TextDensity)
		w.EmotionIntensity = model.Clamp01(w.EmotionIntensity)
		w.BoredomScore = model.Clamp01(w.BoredomScore)
		w.HookScore = model.Clamp01(w.HookScore)
		w.Score = model.Clamp01(w.Score)
		if w.EmotionalSpike != 0 {
			w.EmotionalSpike = 1
		}
	}
	if len(cp.Feedback) > model.FeedbackHistoryCap {
		cp.Feedback = cp.Feedback[len(cp.Feedback)-model.FeedbackHistoryCap:]
	}
	return cp
}

// applyStepPatch merges a StepPatch into the analysis blob.
func applyStepPatch(a *model.Analysis, step model.StepName, patch model.StepPatch) {
	st := a.StepState(step)
	if patch.Status != nil {
		st.Status = *patch.Status
	}
	if patch.Attempts != nil {
		st.Attempts = *patch.Attempts
	}
	if patch.Retries != nil {
		st.Retries = *patch.Retries
	}
	if patch.StartedAt != nil {
		t := *patch.StartedAt
		st.StartedAt = &t
	}
	if patch.CompletedAt != nil {
		t := *patch.CompletedAt
		st.CompletedAt = &t
	}
	if patch.LastError != nil {
		st.LastError = *patch.LastError
	}
	if patch.Meta != nil {
		if st.Meta == nil {
			st.Meta = make(map[string]interface{}, len(patch.Meta))
		}
		for k, v := range patch.Meta {
			st.Meta[k] = v
		}
	}
}

// summaryFromJob projects a completed job for calibration reads.
func summaryFromJob(job *model.Job) model.JobSummary {
	s := model.JobSummary{
		ID:             job.ID,
		RetentionScore: job.RetentionScore,
		CompletedAt:    job.UpdatedAt,
	}
	if job.Analysis != nil {
		s.Strategy = job.Analysis.AppliedStrategy
		s.ContentStyle = job.Analysis.ContentStyle
		s.Feedback = append([]model.RetentionFeedback(nil), job.Analysis.Feedback...)
	}
	return s
}
