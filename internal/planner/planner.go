// Package planner builds the edit plan: silence trim, boredom removal,
// pacing segmentation, hook selection, rhythm alignment, pattern
// interrupts, ending spike and story reorder.
package planner

import (
	"math"

	"github.com/Marquise34567/editor-backend-sub000/internal/log"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/style"
)

// Removal caps and limits.
const (
	SilencePaddingSec = 0.12
	MinSilenceSec     = 0.8
	MinCutRunSec      = 3.0
	MaxCutRatio       = 0.68
	MaxCutRatioHard   = 0.74 // high/viral aggression

	LongFormMinContextSec = 2.2
)

// Inputs collects everything the planner consumes for one attempt.
type Inputs struct {
	JobID    string
	Windows  []model.EngagementWindow
	Cues     []model.TranscriptCue
	Silences []model.TimeRange
	Duration float64

	StyleProfile ContentProfiles
	Runtime      style.RuntimeStyleProfile
	Pacing       style.PacingProfile
	Aggression   model.Aggression

	Calibration    model.CalibrationProfile
	ContentFormat  string
	TargetPlatform string

	// LongFormThresholdSec gates the context-floor rule; zero keeps the
	// default of 95.
	LongFormThresholdSec int
	LongFormWindowSec    int

	// PreferredHook, when set, overrides the faceoff winner.
	PreferredHook *model.HookCandidate
}

// ContentProfiles bundles the inferred style and niche.
type ContentProfiles struct {
	Style style.ContentStyleProfile
	Niche style.VideoNicheProfile
}

// BuildPlan runs the full planning pass and returns the edit plan for the
// given strategy.
func BuildPlan(in Inputs, strategy model.Strategy) *model.EditPlan {
	logger := log.WithJob("planner", in.JobID)
	if in.LongFormThresholdSec == 0 {
		in.LongFormThresholdSec = 95
	}
	if in.LongFormWindowSec == 0 {
		in.LongFormWindowSec = 18
	}

	plan := &model.EditPlan{
		SourceDuration: in.Duration,
		Strategy:       strategy,
		Aggression:     in.Aggression,
		Windows:        in.Windows,
		Silences:       append([]model.TimeRange(nil), in.Silences...),
	}
	plan.Meta.StyleSnapshot = string(in.StyleProfile.Style.Style)
	plan.Meta.NicheSnapshot = string(in.StyleProfile.Niche.Niche)
	plan.Meta.ContentFormat = in.ContentFormat
	plan.Meta.TargetPlatform = in.TargetPlatform

	removed := trimSilences(in.Silences, in.Duration)
	anchors := buildAnchors(in.Windows, in.Cues)
	boring := findBoringRanges(in.Windows, anchors, cutRatioFor(in.Aggression, strategy))
	removed = mergeRanges(append(removed, boring...))
	plan.RemovedRanges = removed
	if in.Duration > 0 {
		plan.Meta.BoredomRatio = totalDuration(removed) / in.Duration
	}

	kept := subtractRanges(model.TimeRange{Start: 0, End: in.Duration}, removed)
	segments := segmentForPacing(kept, in.Windows, in.Pacing, strategy)
	segments = alignToBeats(segments, in.Windows, in.Runtime)

	hook, candidates := SelectHook(in)
	plan.HookCandidates = candidates
	if hook != nil {
		plan.Hook = hook
		segments = placeHook(segments, *hook)
	}

	if shouldReorder(in, strategy) {
		segments, plan.ReorderMap = reorderStory(segments, in.Windows)
	} else {
		plan.ReorderMap = identityOrder(len(segments))
	}

	if in.Duration >= float64(in.LongFormThresholdSec) {
		segments = ensureContextFloor(segments, float64(in.LongFormWindowSec))
	}

	segments = injectInterrupts(segments, in.Windows, in.Runtime, &plan.Meta)
	segments = enforceEndingSpike(segments, in.Windows, &plan.Meta)

	plan.Segments = PrepareSegmentsForRender(segments)
	out := model.TotalOutputDuration(plan.Segments)
	if out > 0 {
		plan.Meta.InterruptDensity = float64(plan.Meta.InterruptCount) / (out / 60)
	}

	logger.Debug().
		Str("strategy", string(strategy)).
		Int("segments", len(plan.Segments)).
		Float64("output_sec", math.Round(out*100)/100).
		Float64("boredom_ratio", plan.Meta.BoredomRatio).
		Msg("edit plan built")
	return plan
}

func cutRatioFor(aggr model.Aggression, strategy model.Strategy) float64 {
	if aggr == model.AggressionHigh || aggr == model.AggressionViral ||
		strategy == model.StrategyPacingFirst || strategy == model.StrategyRescue {
		return MaxCutRatioHard
	}
	return MaxCutRatio
}

func shouldReorder(in Inputs, strategy model.Strategy) bool {
	if strategy == model.StrategyBaseline {
		return false
	}
	return in.Runtime.AllowStoryReorder && in.ContentFormat == "tiktok_short"
}

func identityOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func totalDuration(ranges []model.TimeRange) float64 {
	var total float64
	for _, r := range ranges {
		total += r.Duration()
	}
	return total
}
