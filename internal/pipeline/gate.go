package pipeline

import (
	"context"
	"errors"

	"github.com/Marquise34567/editor-backend-sub000/internal/feedback"
	"github.com/Marquise34567/editor-backend-sub000/internal/judge"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/retry"
)

// planState carries the plans across the gate and render stages.
type planState struct {
	baseline *model.EditPlan
	final    *model.EditPlan
	report   model.RetentionJudgeReport
	override *model.QualityGateOverride
}

// stageQualityGate runs the strategy ladder. A gate rejection persists the
// attempt trail before failing the job.
func (r *jobRun) stageQualityGate(ctx context.Context) error {
	return r.step(ctx, model.StepStoryQualityGate, func(ctx context.Context) (map[string]interface{}, error) {
		calib := model.DefaultCalibration()
		if r.deps.Calib != nil {
			if profile, err := r.deps.Calib.ProfileFor(ctx, r.job.OwnerUserID); err == nil {
				calib = profile
			}
		}
		offset := r.feedbackOffset(ctx)
		in := r.plannerInputs(calib)

		orch := &retry.Orchestrator{
			Calibration: calib,
			JudgeInput: func(plan *model.EditPlan, thresholds model.JudgeThresholds, mode model.GateMode) judge.Input {
				return judge.Input{
					Plan:            plan,
					Windows:         r.styleState.windows,
					CaptionsEnabled: r.rc.AutoCaptions,
					InterruptTarget: interruptTargetPerMinute(r.styleState.runtime.PatternInterruptMinSec, r.styleState.runtime.PatternInterruptMaxSec),
					ContentFormat:   r.styleState.format,
					TargetPlatform:  r.rc.TargetPlatform,
					Mode:            mode,
					Thresholds:      thresholds,
					FeedbackOffset:  offset,
					HasTranscript:   len(r.styleState.cues) > 0,
					SignalStrength:  r.styleState.signal,
					Aggression:      r.styleState.aggression,
				}
			},
		}

		outcome, err := orch.Run(r.job.ID, in)
		if err != nil {
			var gate *model.GateError
			if errors.As(err, &gate) && outcome != nil {
				// Persist the attempt trail so the rejection is auditable.
				a := r.ensureAnalysis()
				a.Attempts = outcome.Attempts
				a.AppliedStrategy = string(model.StrategyRescue)
				if perr := r.patchAnalysis(ctx); perr != nil {
					return nil, perr
				}
			}
			return nil, err
		}

		r.planState.final = outcome.Plan
		r.planState.report = outcome.Report
		r.planState.override = outcome.Override

		a := r.ensureAnalysis()
		a.Attempts = outcome.Attempts
		a.AppliedStrategy = string(outcome.Plan.Strategy)
		a.QualityGateOverride = outcome.Override
		if err := r.patchAnalysis(ctx); err != nil {
			return nil, err
		}

		meta := map[string]interface{}{
			"strategy":        string(outcome.Plan.Strategy),
			"attempts":        len(outcome.Attempts),
			"retention_score": round2(outcome.Report.RetentionScore),
			"passed":          outcome.Report.Passed,
		}
		if outcome.Override != nil {
			meta["override_reason"] = outcome.Override.Reason
		}
		return meta, nil
	})
}

// feedbackOffset folds the owner's recent outcomes into the adaptive
// threshold offset: consistently good history raises the bar, poor history
// lowers it. The judge clamps the value to [-4,4].
func (r *jobRun) feedbackOffset(ctx context.Context) float64 {
	summaries, err := r.deps.Jobs.ListRecentCompleted(ctx, r.job.OwnerUserID, r.deps.Cfg.HookCalibrationLookback)
	if err != nil {
		return 0
	}
	var sum float64
	var n int
	for _, s := range summaries {
		for _, rec := range s.Feedback {
			sum += feedback.OutcomeSignal(rec)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return (sum/float64(n) - 0.5) * 8
}

func interruptTargetPerMinute(minSec, maxSec float64) float64 {
	mid := (minSec + maxSec) / 2
	if mid <= 0 {
		return 0
	}
	return 60 / mid
}
