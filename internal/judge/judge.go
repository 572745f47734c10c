// Package judge scores an edit plan across retention, hook, pacing,
// clarity and emotional pull and gates it against adaptive thresholds.
package judge

import (
	"fmt"
	"math"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/planner"
)

// Format targets for the pacing distance term, seconds of average
// segment length.
var formatSegmentTarget = map[string]float64{
	"tiktok_short": 2.8,
	"youtube_long": 4.2,
	"podcast_clip": 4.8,
}

// Input bundles everything one evaluation needs.
type Input struct {
	Plan            *model.EditPlan
	Windows         []model.EngagementWindow
	CaptionsEnabled bool
	InterruptTarget float64 // interrupts per minute the profile asked for
	ContentFormat   string
	TargetPlatform  string
	Mode            model.GateMode
	Thresholds      model.JudgeThresholds
	FeedbackOffset  float64 // telemetry offset, clamped to [-4,4]
	HasTranscript   bool
	SignalStrength  planner.SignalStrength
	Aggression      model.Aggression
}

// Evaluate produces the full judge report for an edit plan.
func Evaluate(in Input) model.RetentionJudgeReport {
	report := model.RetentionJudgeReport{
		ContentFormat:   in.ContentFormat,
		TargetPlatform:  in.TargetPlatform,
		StrategyProfile: string(in.Plan.Strategy),
		GateMode:        in.Mode,
	}

	hookScore, auditScore, auditPassed, ctxPenalty := hookTerms(in.Plan)
	report.HookStrength = 100 * (0.65*hookScore + 0.35*auditScore)

	pacing := pacingTerm(in.Plan, in.ContentFormat)
	coverage := interruptCoverage(in.Plan, in.InterruptTarget)
	report.PacingScore = 100 * (0.7*pacing + 0.3*coverage)

	captionsFactor := 0.4
	if in.CaptionsEnabled {
		captionsFactor = 1.0
	}
	auditFactor := 0.6
	if auditPassed {
		auditFactor = 1.0
	}
	report.ClarityScore = 100 * (0.72*(1-ctxPenalty) + 0.14*captionsFactor + 0.14*auditFactor)

	emotion, vocal, spikeDensity := emotionTerms(in.Windows)
	report.EmotionalPull = 100 * model.Clamp01(0.4*emotion+0.25*vocal+0.2*spikeDensity+0.15*auditScore)

	report.RetentionScore = retentionScore(in, hookScore, pacing, coverage, spikeDensity)

	report.AppliedThresholds = in.Thresholds
	if in.Mode != model.GateStrict {
		report.AppliedThresholds = AdaptThresholds(in.Thresholds, in.Aggression, in.HasTranscript, in.SignalStrength, in.ContentFormat, in.TargetPlatform, in.FeedbackOffset)
	}
	th := report.AppliedThresholds
	report.Passed = report.RetentionScore >= th.Retention &&
		report.HookStrength >= th.Hook &&
		report.PacingScore >= th.Pacing &&
		report.EmotionalPull >= th.Emotional

	report.RequiredFixes = model.RequiredFixes{
		StrongerHook:       report.HookStrength < th.Hook,
		RaiseEmotion:       report.EmotionalPull < th.Emotional,
		ImprovePacing:      report.PacingScore < th.Pacing,
		IncreaseInterrupts: coverage < 0.7,
	}
	report.WhyKeepWatching, report.WhatIsGeneric = narrate(report, in.Plan)
	return report
}

// retentionScore fuses the component terms with format and platform
// weighting into the scalar 0-100 prediction.
func retentionScore(in Input, hook, pacing, coverage, spikeDensity float64) float64 {
	consistency := consistencyTerm(in.Windows)
	boredom := model.Clamp01(in.Plan.Meta.BoredomRatio / 0.35)
	captions := 0.0
	if in.CaptionsEnabled {
		captions = 1.0
	}
	audio := audioTerm(in.Windows)

	wHook, wPacing := 0.28, 0.18
	if in.ContentFormat == "tiktok_short" {
		wHook = 0.32
		wPacing = 0.2
	}
	if in.TargetPlatform == "youtube" {
		wHook -= 0.03
	}
	wRest := 1 - wHook - wPacing

	rest := 0.22*consistency + 0.18*boredom + 0.2*spikeDensity + 0.2*coverage + 0.1*captions + 0.1*audio
	score := wHook*hook + wPacing*pacing + wRest*model.Clamp01(rest)
	return math.Round(100*model.Clamp01(score)*100) / 100
}

func hookTerms(plan *model.EditPlan) (score, audit float64, passed bool, ctxPenalty float64) {
	if plan.Hook == nil {
		return 0, 0, false, 0.5
	}
	score = plan.Hook.Score
	audit = plan.Hook.AuditScore
	passed = plan.Hook.AuditPassed
	// The audit's context penalty is folded into the audit score; derive a
	// proxy for clarity from the gap between raw and audited score.
	ctxPenalty = model.Clamp01(score - audit)
	return score, audit, passed, ctxPenalty
}

// pacingTerm measures how close the average segment length sits to the
// format target; at 2x distance the term hits zero.
func pacingTerm(plan *model.EditPlan, format string) float64 {
	if len(plan.Segments) == 0 {
		return 0
	}
	target := formatSegmentTarget[format]
	if target == 0 {
		target = 3.5
	}
	avg := plan.OutputDuration() / float64(len(plan.Segments))
	return model.Clamp01(1 - math.Abs(avg-target)/target)
}

func interruptCoverage(plan *model.EditPlan, targetPerMinute float64) float64 {
	if targetPerMinute <= 0 {
		targetPerMinute = 3
	}
	return model.Clamp01(plan.Meta.InterruptDensity / targetPerMinute)
}

// consistencyTerm is the inverse coefficient of variation of audio energy.
func consistencyTerm(windows []model.EngagementWindow) float64 {
	if len(windows) == 0 {
		return 0.5
	}
	var mean float64
	for _, w := range windows {
		mean += w.AudioEnergy
	}
	mean /= float64(len(windows))
	if mean <= 0 {
		return 0
	}
	var variance float64
	for _, w := range windows {
		variance += (w.AudioEnergy - mean) * (w.AudioEnergy - mean)
	}
	std := math.Sqrt(variance / float64(len(windows)))
	return model.Clamp01(1 - std/mean)
}

func emotionTerms(windows []model.EngagementWindow) (emotion, vocal, spikeDensity float64) {
	if len(windows) == 0 {
		return 0, 0, 0
	}
	var spikes float64
	for _, w := range windows {
		emotion += w.EmotionIntensity
		vocal += w.VocalExcitement
		spikes += float64(w.EmotionalSpike)
	}
	n := float64(len(windows))
	// Spike density saturates at one spike per 10 seconds.
	return emotion / n, vocal / n, model.Clamp01(spikes / n * 10)
}

func audioTerm(windows []model.EngagementWindow) float64 {
	if len(windows) == 0 {
		return 0.5
	}
	var energy float64
	for _, w := range windows {
		energy += w.AudioEnergy
	}
	return model.Clamp01(energy / float64(len(windows)) * 1.6)
}

func narrate(report model.RetentionJudgeReport, plan *model.EditPlan) (keep, generic []string) {
	if report.HookStrength >= 70 {
		keep = append(keep, "strong opening hook")
	}
	if plan.Meta.InterruptCount > 0 {
		keep = append(keep, fmt.Sprintf("%d pattern interrupts hold attention", plan.Meta.InterruptCount))
	}
	if report.EmotionalPull >= 60 {
		keep = append(keep, "emotional peaks land throughout")
	}
	if report.HookStrength < 55 {
		generic = append(generic, "opening does not separate from a cold start")
	}
	if report.PacingScore < 55 {
		generic = append(generic, "cut rhythm drifts from the format target")
	}
	if plan.Meta.BoredomRatio < 0.05 {
		generic = append(generic, "little low-signal material was removed")
	}
	return keep, generic
}
