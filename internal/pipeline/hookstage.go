package pipeline

import (
	"context"
	"math"
	"time"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/planner"
	"github.com/Marquise34567/editor-backend-sub000/internal/signals"
	"github.com/Marquise34567/editor-backend-sub000/internal/style"
)

// styleState accumulates the analysis products the planner consumes.
type styleState struct {
	cues    []model.TranscriptCue
	set     signals.Set
	windows []model.EngagementWindow
	signal  planner.SignalStrength

	profile    planner.ContentProfiles
	runtime    style.RuntimeStyleProfile
	pacing     style.PacingProfile
	aggression model.Aggression
	format     string
}

// resolveStyle infers content style/niche and derives the runtime profile.
// Horizontal renders cap the aggression at medium; the capped value is
// what history records.
func (r *jobRun) resolveStyle() {
	s := &r.styleState
	s.profile = planner.ContentProfiles{
		Style: style.InferContentStyle(s.cues, s.windows),
		Niche: style.InferNiche(s.windows),
	}
	s.aggression = model.StrategyToAggression[r.rc.Strategy]
	if s.aggression == "" {
		s.aggression = model.AggressionMedium
	}
	if r.rc.Mode == model.RenderHorizontal &&
		(s.aggression == model.AggressionHigh || s.aggression == model.AggressionViral) {
		s.aggression = model.AggressionMedium
	}

	s.format = style.ContentFormatFor(r.probe.DurationSeconds, r.deps.Cfg.LongFormRuntimeThresholdSec, r.rc.TargetPlatform)
	s.runtime = style.ResolveRuntime(s.aggression, nil, s.format)
	s.pacing = style.BlendPacing(style.PacingForNiche(s.profile.Niche.Niche), s.profile.Style)
}

// plannerInputs assembles the shared planner input for every strategy
// variant.
func (r *jobRun) plannerInputs(calib model.CalibrationProfile) planner.Inputs {
	s := &r.styleState
	silences := make([]model.TimeRange, 0, len(s.set.Silences))
	for _, sil := range s.set.Silences {
		silences = append(silences, model.TimeRange{Start: sil.Start, End: sil.End})
	}
	in := planner.Inputs{
		JobID:                r.job.ID,
		Windows:              s.windows,
		Cues:                 s.cues,
		Silences:             silences,
		Duration:             r.probe.DurationSeconds,
		StyleProfile:         s.profile,
		Runtime:              s.runtime,
		Pacing:               s.pacing,
		Aggression:           s.aggression,
		Calibration:          calib,
		ContentFormat:        s.format,
		TargetPlatform:       r.rc.TargetPlatform,
		LongFormThresholdSec: r.deps.Cfg.LongFormRuntimeThresholdSec,
		LongFormWindowSec:    r.deps.Cfg.LongFormContextWindowSec,
	}
	if a := r.ensureAnalysis(); a.HookSelected != nil {
		in.PreferredHook = a.HookSelected
	}
	return in
}

// stageTimeline builds the baseline timeline: style resolution plus the
// first BuildPlan pass, persisted as TIMELINE_REORDER.
func (r *jobRun) stageTimeline(ctx context.Context) error {
	return r.step(ctx, model.StepTimelineReorder, func(ctx context.Context) (map[string]interface{}, error) {
		r.resolveStyle()
		a := r.ensureAnalysis()
		a.ContentStyle = string(r.styleState.profile.Style.Style)
		a.Niche = string(r.styleState.profile.Niche.Niche)
		a.ContentFormat = r.styleState.format
		a.RetentionTargetPlatform = r.rc.TargetPlatform
		a.PlatformProfile = r.rc.TargetPlatform
		a.RequestedStrategy = r.rc.Strategy
		if err := r.patchAnalysis(ctx); err != nil {
			return nil, err
		}

		plan := planner.BuildPlan(r.plannerInputs(model.DefaultCalibration()), model.StrategyBaseline)
		r.planState.baseline = plan
		return map[string]interface{}{
			"segments":      len(plan.Segments),
			"boredom_ratio": round2(plan.Meta.BoredomRatio),
			"style":         string(r.styleState.profile.Style.Style),
			"niche":         string(r.styleState.profile.Niche.Niche),
			"aggression":    string(r.styleState.aggression),
		}, nil
	})
}

// stageHook persists the candidate slate, waits the configured window for
// a preferred hook and records the effective selection.
func (r *jobRun) stageHook(ctx context.Context) error {
	return r.step(ctx, model.StepHookSelectAndAudit, func(ctx context.Context) (map[string]interface{}, error) {
		in := r.plannerInputs(model.DefaultCalibration())
		in.PreferredHook = nil
		selected, candidates := planner.SelectHook(in)

		a := r.ensureAnalysis()
		a.HookCandidates = candidates
		a.HookSelected = selected
		if err := r.patchAnalysis(ctx); err != nil {
			return nil, err
		}

		waited := r.awaitPreferredHook(ctx, candidates)

		a = r.ensureAnalysis()
		if a.PreferredHook != nil {
			if match := matchPreferredHook(*a.PreferredHook, candidates, r.deps.Cfg.HookSelectionStartToleranceSec, r.deps.Cfg.HookSelectionDurToleranceSec); match != nil {
				a.HookSelected = match
			} else {
				r.logger.Warn().
					Float64("start", a.PreferredHook.Start).
					Float64("duration", a.PreferredHook.Duration).
					Msg("preferred hook matched no candidate, keeping faceoff winner")
			}
		}
		a.HookStageComplete = true
		if err := r.patchAnalysis(ctx); err != nil {
			return nil, err
		}

		meta := map[string]interface{}{
			"candidates": len(candidates),
			"waited_ms":  waited.Milliseconds(),
		}
		if a.HookSelected != nil {
			meta["hook_start"] = a.HookSelected.Start
			meta["hook_duration"] = a.HookSelected.Duration
			meta["synthetic"] = a.HookSelected.Synthetic
		}
		return meta, nil
	})
}

// awaitPreferredHook polls the store for a user-chosen hook until the
// configured wait elapses or the choice arrives. Zero wait disables the
// window entirely.
func (r *jobRun) awaitPreferredHook(ctx context.Context, candidates []model.HookCandidate) time.Duration {
	wait := r.deps.Cfg.HookSelectionWait
	if wait <= 0 || len(candidates) == 0 {
		return 0
	}
	poll := r.deps.Cfg.HookSelectionPoll
	if poll <= 0 {
		poll = 1500 * time.Millisecond
	}

	started := time.Now()
	deadline := started.Add(wait)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return time.Since(started)
		case <-ticker.C:
		}
		if r.runner.CheckCanceled() != nil {
			return time.Since(started)
		}
		job, err := r.deps.Jobs.Get(ctx, r.job.ID)
		if err != nil {
			continue
		}
		if job.Analysis != nil && (job.Analysis.PreferredHook != nil || job.Analysis.HookStageComplete) {
			r.analysis = job.Analysis
			return time.Since(started)
		}
	}
	return time.Since(started)
}

// matchPreferredHook resolves a user choice against the candidate slate
// within the start/duration tolerances. Unmatched choices are ignored.
func matchPreferredHook(pref model.HookCandidate, candidates []model.HookCandidate, startTol, durTol float64) *model.HookCandidate {
	if startTol <= 0 {
		startTol = 1.25
	}
	if durTol <= 0 {
		durTol = 1.0
	}
	for i := range candidates {
		c := candidates[i]
		if math.Abs(c.Start-pref.Start) <= startTol && math.Abs(c.Duration-pref.Duration) <= durTol {
			return &c
		}
	}
	// An explicit in-bounds range is honored even off-slate.
	if pref.Duration >= model.HookMinSeconds && pref.Duration <= model.HookMaxSeconds && pref.Start >= 0 {
		chosen := pref
		chosen.Reason = "user_preferred"
		return &chosen
	}
	return nil
}

// stagePacing records the pacing/interrupt statistics of the baseline
// timeline as PACING_AND_INTERRUPTS.
func (r *jobRun) stagePacing(ctx context.Context) error {
	return r.step(ctx, model.StepPacingAndInterrupts, func(ctx context.Context) (map[string]interface{}, error) {
		plan := r.planState.baseline
		if plan == nil {
			plan = planner.BuildPlan(r.plannerInputs(model.DefaultCalibration()), model.StrategyBaseline)
			r.planState.baseline = plan
		}
		return map[string]interface{}{
			"interrupt_count":   plan.Meta.InterruptCount,
			"interrupt_density": round2(plan.Meta.InterruptDensity),
			"output_seconds":    round2(plan.OutputDuration()),
		}, nil
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
