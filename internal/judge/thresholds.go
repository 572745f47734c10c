package judge

import (
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/planner"
)

// Floor and ceiling for every adapted threshold. The long-form retention
// floor sits lower because long output trades hook density for depth.
const (
	thresholdFloor         = 40.0
	thresholdCeil          = 92.0
	longFormRetentionFloor = 36.0

	// Feedback telemetry may shift thresholds by at most this much.
	feedbackOffsetMax = 4.0
)

// BaseThresholds is the per-aggression starting table. Stricter aggression
// raises every bar.
func BaseThresholds(aggr model.Aggression) model.JudgeThresholds {
	switch aggr {
	case model.AggressionLow:
		return model.JudgeThresholds{Retention: 58, Hook: 55, Pacing: 52, Emotional: 45}
	case model.AggressionHigh:
		return model.JudgeThresholds{Retention: 66, Hook: 64, Pacing: 60, Emotional: 54}
	case model.AggressionViral:
		return model.JudgeThresholds{Retention: 70, Hook: 69, Pacing: 64, Emotional: 58}
	default: // medium
		return model.JudgeThresholds{Retention: 62, Hook: 60, Pacing: 56, Emotional: 50}
	}
}

// AdaptThresholds applies the adaptive offsets: transcript and signal
// strength relax the bars, format and platform shift them additively, and
// the feedback telemetry offset nudges everything within [-4,4]. Results
// are clamped to the floor/ceiling table.
func AdaptThresholds(base model.JudgeThresholds, aggr model.Aggression, hasTranscript bool, signal planner.SignalStrength, contentFormat, targetPlatform string, feedbackOffset float64) model.JudgeThresholds {
	out := base
	if out == (model.JudgeThresholds{}) {
		out = BaseThresholds(aggr)
	}

	if !hasTranscript {
		out.Hook -= 5
		out.Retention -= 3
	}
	switch signal {
	case planner.SignalWeak:
		out.Retention -= 4
		out.Hook -= 4
		out.Emotional -= 4
	case planner.SignalMedium:
		out.Retention -= 2
		out.Hook -= 2
		out.Emotional -= 2
	}

	switch contentFormat {
	case "podcast_clip":
		out.Hook -= 4
		out.Pacing -= 3
	case "youtube_long":
		out.Pacing -= 2
	}
	switch targetPlatform {
	case "tiktok":
		out.Hook += 2
	case "youtube":
		out.Retention += 1
	}

	offset := model.Clamp(feedbackOffset, -feedbackOffsetMax, feedbackOffsetMax)
	out.Retention += offset
	out.Hook += offset
	out.Pacing += offset
	out.Emotional += offset

	retFloor := thresholdFloor
	if contentFormat == "podcast_clip" || contentFormat == "youtube_long" {
		retFloor = longFormRetentionFloor
	}
	out.Retention = model.Clamp(out.Retention, retFloor, thresholdCeil)
	out.Hook = model.Clamp(out.Hook, thresholdFloor, thresholdCeil)
	out.Pacing = model.Clamp(out.Pacing, thresholdFloor, thresholdCeil)
	out.Emotional = model.Clamp(out.Emotional, thresholdFloor, thresholdCeil)
	return out
}

// RescueThresholds are the relaxed bars used by the rescue attempt.
func RescueThresholds(aggr model.Aggression) model.JudgeThresholds {
	base := BaseThresholds(aggr)
	return model.JudgeThresholds{
		Retention: model.Clamp(base.Retention-10, longFormRetentionFloor, thresholdCeil),
		Hook:      model.Clamp(base.Hook-10, thresholdFloor, thresholdCeil),
		Pacing:    model.Clamp(base.Pacing-8, thresholdFloor, thresholdCeil),
		Emotional: model.Clamp(base.Emotional-8, thresholdFloor, thresholdCeil),
	}
}
