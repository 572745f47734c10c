package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/planner"
)

func strongPlan() *model.EditPlan {
	plan := &model.EditPlan{
		Hook: &model.HookCandidate{Start: 10, Duration: 6, Score: 0.8, AuditScore: 0.72, AuditPassed: true},
		Segments: []model.Segment{
			{Start: 10, End: 16, Speed: 1, AudioGain: 1, IsHook: true},
			{Start: 0, End: 3, Speed: 1, AudioGain: 1},
			{Start: 3, End: 6, Speed: 1, AudioGain: 1},
			{Start: 20, End: 23, Speed: 1, AudioGain: 1},
		},
		SourceDuration: 45,
		Strategy:       model.StrategyBaseline,
		Aggression:     model.AggressionMedium,
	}
	plan.Meta.BoredomRatio = 0.2
	plan.Meta.InterruptCount = 3
	plan.Meta.InterruptDensity = 4
	return plan
}

func steadyWindows(n int) []model.EngagementWindow {
	windows := make([]model.EngagementWindow, n)
	for i := range windows {
		windows[i] = model.EngagementWindow{
			AudioEnergy:      0.55,
			EmotionIntensity: 0.5,
			VocalExcitement:  0.45,
		}
		if i%8 == 0 {
			windows[i].EmotionalSpike = 1
		}
	}
	return windows
}

func TestEvaluateScoreFormulas(t *testing.T) {
	in := Input{
		Plan:            strongPlan(),
		Windows:         steadyWindows(45),
		CaptionsEnabled: true,
		ContentFormat:   "tiktok_short",
		TargetPlatform:  "tiktok",
		Mode:            model.GateStrict,
		Thresholds:      BaseThresholds(model.AggressionMedium),
		Aggression:      model.AggressionMedium,
		HasTranscript:   true,
		SignalStrength:  planner.SignalStrong,
	}
	report := Evaluate(in)

	assert.InDelta(t, 100*(0.65*0.8+0.35*0.72), report.HookStrength, 1e-9)
	assert.Greater(t, report.RetentionScore, 0.0)
	assert.LessOrEqual(t, report.RetentionScore, 100.0)
	assert.Greater(t, report.ClarityScore, 70.0)
	assert.Equal(t, "tiktok_short", report.ContentFormat)
}

func TestEvaluateStrictUsesGivenThresholds(t *testing.T) {
	th := model.JudgeThresholds{Retention: 90, Hook: 90, Pacing: 90, Emotional: 90}
	report := Evaluate(Input{
		Plan:       strongPlan(),
		Windows:    steadyWindows(45),
		Mode:       model.GateStrict,
		Thresholds: th,
		Aggression: model.AggressionMedium,
	})
	assert.Equal(t, th, report.AppliedThresholds)
	assert.False(t, report.Passed)
	assert.True(t, report.RequiredFixes.StrongerHook || report.RequiredFixes.ImprovePacing || report.RequiredFixes.RaiseEmotion)
}

func TestThresholdMonotonicity(t *testing.T) {
	ordered := []model.Aggression{
		model.AggressionLow, model.AggressionMedium, model.AggressionHigh, model.AggressionViral,
	}
	for i := 1; i < len(ordered); i++ {
		lo := BaseThresholds(ordered[i-1])
		hi := BaseThresholds(ordered[i])
		assert.GreaterOrEqual(t, hi.Retention, lo.Retention)
		assert.GreaterOrEqual(t, hi.Hook, lo.Hook)
		assert.GreaterOrEqual(t, hi.Pacing, lo.Pacing)
		assert.GreaterOrEqual(t, hi.Emotional, lo.Emotional)
	}
}

func TestAdaptThresholdsOffsets(t *testing.T) {
	base := BaseThresholds(model.AggressionMedium)
	relaxed := AdaptThresholds(base, model.AggressionMedium, false, planner.SignalWeak, "tiktok_short", "", 0)
	require.Less(t, relaxed.Hook, base.Hook)
	require.Less(t, relaxed.Retention, base.Retention)

	// Feedback offset is additive and clamped.
	up := AdaptThresholds(base, model.AggressionMedium, true, planner.SignalStrong, "tiktok_short", "", 99)
	assert.InDelta(t, base.Pacing+feedbackOffsetMax, up.Pacing, 1e-9)

	// Everything stays inside the published floor/ceiling.
	floorCheck := AdaptThresholds(base, model.AggressionLow, false, planner.SignalWeak, "podcast_clip", "", -99)
	assert.GreaterOrEqual(t, floorCheck.Retention, longFormRetentionFloor)
	assert.GreaterOrEqual(t, floorCheck.Hook, thresholdFloor)
}

func TestRescueThresholdsRelaxed(t *testing.T) {
	base := BaseThresholds(model.AggressionHigh)
	rescue := RescueThresholds(model.AggressionHigh)
	assert.Less(t, rescue.Retention, base.Retention)
	assert.Less(t, rescue.Hook, base.Hook)
}
