// Package retry drives the quality-gate loop: it builds one edit-plan
// variant per strategy, judges each, and picks the winner or falls
// through to rescue with its override rules.
package retry

import (
	"fmt"

	"github.com/Marquise34567/editor-backend-sub000/internal/judge"
	"github.com/Marquise34567/editor-backend-sub000/internal/log"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/planner"
)

// MaxQualityGateRetries bounds the baseline ladder; the rescue attempt is
// additional, so at most 5 attempts are ever recorded.
const MaxQualityGateRetries = 3

// Rescue force-render minimums.
const (
	RescueMinRetention = 44.0
	RescueMinHook      = 52.0
	RescueMinPacing    = 50.0
)

const (
	predictedWeight = 0.8
	judgeWeight     = 0.2
	passBonus       = 3.5
)

// Outcome is the result of the full gate loop.
type Outcome struct {
	Plan     *model.EditPlan
	Report   model.RetentionJudgeReport
	Attempts []model.AttemptRecord
	Override *model.QualityGateOverride
}

// Orchestrator runs the strategy ladder for one job.
type Orchestrator struct {
	JudgeInput  func(plan *model.EditPlan, thresholds model.JudgeThresholds, mode model.GateMode) judge.Input
	Calibration model.CalibrationProfile
}

// Run evaluates the baseline strategies in order and returns the best
// passing variant; when none pass it applies the rescue ladder. A
// GateError means the quality gate rejected the job; the Outcome returned
// alongside it still carries the attempt trail for persistence.
func (o *Orchestrator) Run(jobID string, in planner.Inputs) (*Outcome, error) {
	logger := log.WithJob("retry", jobID)
	thresholds := judge.BaseThresholds(in.Aggression)

	var attempts []model.AttemptRecord
	type variant struct {
		plan   *model.EditPlan
		report model.RetentionJudgeReport
		score  float64
	}
	var best *variant

	strategies := model.BaselineStrategies
	if len(strategies) > MaxQualityGateRetries+1 {
		strategies = strategies[:MaxQualityGateRetries+1]
	}
	for _, strategy := range strategies {
		plan := planner.BuildPlan(variantInputs(in, strategy), strategy)
		report := judge.Evaluate(o.JudgeInput(plan, thresholds, model.GateAdaptive))
		predicted := o.predictedRetention(report, plan, strategy)
		score := variantScore(predicted, report)

		attempts = append(attempts, attemptRecord(strategy, plan, report, predicted))
		logger.Debug().
			Str("strategy", string(strategy)).
			Float64("predicted", predicted).
			Float64("variant_score", score).
			Bool("passed", report.Passed).
			Msg("gate attempt evaluated")

		if report.Passed && (best == nil || score > best.score) {
			best = &variant{plan: plan, report: report, score: score}
		}
	}
	if best != nil {
		return &Outcome{Plan: best.plan, Report: best.report, Attempts: attempts}, nil
	}

	// Rescue: relaxed thresholds, stronger pacing and interrupts.
	rescueIn := variantInputs(in, model.StrategyRescue)
	plan := planner.BuildPlan(rescueIn, model.StrategyRescue)
	report := judge.Evaluate(o.JudgeInput(plan, judge.RescueThresholds(in.Aggression), model.GateStrict))
	predicted := o.predictedRetention(report, plan, model.StrategyRescue)
	attempts = append(attempts, attemptRecord(model.StrategyRescue, plan, report, predicted))

	if override := o.overrideFor(report, in); override != nil {
		logger.Info().Str("reason", override.Reason).Msg("quality gate override applied")
		return &Outcome{Plan: plan, Report: report, Attempts: attempts, Override: override}, nil
	}
	if report.Passed {
		return &Outcome{Plan: plan, Report: report, Attempts: attempts}, nil
	}
	return &Outcome{Plan: plan, Report: report, Attempts: attempts}, model.NewQualityGateError(gateReason(report), map[string]interface{}{
		"retention_score": report.RetentionScore,
		"hook_strength":   report.HookStrength,
		"pacing_score":    report.PacingScore,
		"emotional_pull":  report.EmotionalPull,
		"attempts":        len(attempts),
	})
}

// overrideFor applies the two pass-anyway rules after a failed rescue.
func (o *Orchestrator) overrideFor(report model.RetentionJudgeReport, in planner.Inputs) *model.QualityGateOverride {
	if report.Passed {
		return nil
	}
	lowSignal := len(in.Cues) == 0 || signalWeakOrMedium(in)
	th := report.AppliedThresholds
	withinBuffers := report.HookStrength >= th.Hook-6 &&
		report.EmotionalPull >= th.Emotional-6 &&
		report.PacingScore >= th.Pacing-6 &&
		report.RetentionScore >= th.Retention-6
	if lowSignal && withinBuffers {
		reason := "low-signal override: scores within adaptive buffers"
		if len(in.Cues) == 0 {
			reason = "transcript unavailable"
		}
		return &model.QualityGateOverride{Applied: true, Reason: reason}
	}
	if report.RetentionScore >= RescueMinRetention &&
		report.HookStrength >= RescueMinHook &&
		report.PacingScore >= RescueMinPacing {
		return &model.QualityGateOverride{
			Applied: true,
			Reason:  "force-render: rescue attempt met publishable minimums",
		}
	}
	return nil
}

// predictedRetention blends the judge's retention with the calibrated
// strategy bias, a style bias and the hook confidence.
func (o *Orchestrator) predictedRetention(report model.RetentionJudgeReport, plan *model.EditPlan, strategy model.Strategy) float64 {
	predicted := report.RetentionScore
	predicted += o.Calibration.StrategyBias[strategy]
	if o.Calibration.DominantStyle != "" && o.Calibration.DominantStyle == plan.Meta.StyleSnapshot {
		predicted += 2
	}
	if plan.Hook != nil {
		predicted += (plan.Hook.Confidence() - 0.5) * 8
	}
	return model.Clamp(predicted, 0, 100)
}

func variantScore(predicted float64, report model.RetentionJudgeReport) float64 {
	score := predictedWeight*predicted + judgeWeight*report.RetentionScore
	if report.Passed {
		score += passBonus
	}
	return score
}

// variantInputs tweaks the planner inputs per strategy.
func variantInputs(in planner.Inputs, strategy model.Strategy) planner.Inputs {
	out := in
	switch strategy {
	case model.StrategyHookFirst:
		// Push the bar down so a bolder hook wins the faceoff.
		out.Runtime.BeatSnapToleranceSec *= 0.8
	case model.StrategyEmotionFirst:
		out.Runtime.AllowStoryReorder = true
	case model.StrategyPacingFirst, model.StrategyRescue:
		out.Pacing.EarlyTarget *= 0.85
		out.Pacing.MiddleTarget *= 0.85
		out.Pacing.LateTarget *= 0.85
		out.Runtime.PatternInterruptMinSec *= 0.8
		out.Runtime.PatternInterruptMaxSec *= 0.8
	}
	return out
}

func attemptRecord(strategy model.Strategy, plan *model.EditPlan, report model.RetentionJudgeReport, predicted float64) model.AttemptRecord {
	rec := model.AttemptRecord{
		Strategy:           strategy,
		Judge:              report,
		PredictedRetention: predicted,
	}
	if plan.Hook != nil {
		rec.HookStart = plan.Hook.Start
		rec.HookDuration = plan.Hook.Duration
	}
	return rec
}

func signalWeakOrMedium(in planner.Inputs) bool {
	if len(in.Windows) == 0 {
		return true
	}
	var mean float64
	for _, w := range in.Windows {
		mean += w.Score
	}
	return mean/float64(len(in.Windows)) < 0.45
}

func gateReason(report model.RetentionJudgeReport) string {
	fixes := report.RequiredFixes
	switch {
	case fixes.StrongerHook:
		return fmt.Sprintf("hook strength %.1f below threshold %.1f", report.HookStrength, report.AppliedThresholds.Hook)
	case fixes.ImprovePacing:
		return fmt.Sprintf("pacing score %.1f below threshold %.1f", report.PacingScore, report.AppliedThresholds.Pacing)
	case fixes.RaiseEmotion:
		return fmt.Sprintf("emotional pull %.1f below threshold %.1f", report.EmotionalPull, report.AppliedThresholds.Emotional)
	default:
		return fmt.Sprintf("retention score %.1f below threshold %.1f", report.RetentionScore, report.AppliedThresholds.Retention)
	}
}
