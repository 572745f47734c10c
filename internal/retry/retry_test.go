package retry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marquise34567/editor-backend-sub000/internal/judge"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/planner"
	"github.com/Marquise34567/editor-backend-sub000/internal/style"
)

func gateInputs(seconds int, energy float64) planner.Inputs {
	windows := make([]model.EngagementWindow, seconds)
	for i := range windows {
		t := float64(i)
		windows[i] = model.EngagementWindow{
			Time:             t,
			AudioEnergy:      energy + 0.2*math.Sin(t/5),
			SpeechIntensity:  energy,
			EmotionIntensity: energy * 0.8,
			VocalExcitement:  energy * 0.7,
			HookScore:        energy,
			Score:            energy,
			FacePresence:     0.5,
		}
		if energy > 0.5 && i%7 == 0 {
			windows[i].EmotionalSpike = 1
		}
	}
	return planner.Inputs{
		JobID:         "job-1",
		Windows:       windows,
		Duration:      float64(seconds),
		Pacing:        style.PacingForNiche(style.NicheTalkingHead),
		Runtime:       style.ResolveRuntime(model.AggressionMedium, nil, "tiktok_short"),
		Aggression:    model.AggressionMedium,
		Calibration:   model.DefaultCalibration(),
		ContentFormat: "tiktok_short",
	}
}

func newOrchestrator(captions bool) *Orchestrator {
	return &Orchestrator{
		Calibration: model.DefaultCalibration(),
		JudgeInput: func(plan *model.EditPlan, thresholds model.JudgeThresholds, mode model.GateMode) judge.Input {
			return judge.Input{
				Plan:            plan,
				Windows:         plan.Windows,
				CaptionsEnabled: captions,
				ContentFormat:   "tiktok_short",
				Mode:            mode,
				Thresholds:      thresholds,
				Aggression:      model.AggressionMedium,
				HasTranscript:   false,
				SignalStrength:  planner.SignalMedium,
			}
		},
	}
}

func TestRunRecordsBoundedAttempts(t *testing.T) {
	o := newOrchestrator(true)
	outcome, err := o.Run("job-1", gateInputs(120, 0.7))
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.LessOrEqual(t, len(outcome.Attempts), 5)
	assert.NotEmpty(t, outcome.Plan.Segments)
}

func TestRunLowSignalEndsInRescueOrGateError(t *testing.T) {
	o := newOrchestrator(false)
	outcome, err := o.Run("job-1", gateInputs(90, 0.08))
	if err != nil {
		var gateErr *model.GateError
		require.True(t, errors.As(err, &gateErr))
		assert.Equal(t, model.GateQuality, gateErr.Gate)
		assert.NotEmpty(t, gateErr.Details)
		return
	}
	// Rescue path: either passed outright or an override was applied.
	require.NotNil(t, outcome)
	assert.LessOrEqual(t, len(outcome.Attempts), 5)
	if !outcome.Report.Passed {
		require.NotNil(t, outcome.Override)
		assert.True(t, outcome.Override.Applied)
		assert.NotEmpty(t, outcome.Override.Reason)
	}
}

func TestVariantScoreRewardsPassing(t *testing.T) {
	passing := model.RetentionJudgeReport{RetentionScore: 60, Passed: true}
	failing := model.RetentionJudgeReport{RetentionScore: 60, Passed: false}
	assert.InDelta(t, passBonus, variantScore(60, passing)-variantScore(60, failing), 1e-9)
}

func TestPredictedRetentionUsesStrategyBias(t *testing.T) {
	o := newOrchestrator(true)
	o.Calibration.StrategyBias = map[model.Strategy]float64{model.StrategyHookFirst: 6}
	plan := &model.EditPlan{Meta: model.EditPlanMeta{}}
	report := model.RetentionJudgeReport{RetentionScore: 50}
	base := o.predictedRetention(report, plan, model.StrategyBaseline)
	biased := o.predictedRetention(report, plan, model.StrategyHookFirst)
	assert.InDelta(t, 6, biased-base, 1e-9)
}

func TestOverrideRequiresRescueMinimums(t *testing.T) {
	o := newOrchestrator(true)
	in := gateInputs(90, 0.3)
	in.Cues = nil

	meets := model.RetentionJudgeReport{
		RetentionScore: 45, HookStrength: 55, PacingScore: 52, EmotionalPull: 30,
		AppliedThresholds: model.JudgeThresholds{Retention: 70, Hook: 80, Pacing: 75, Emotional: 70},
	}
	require.NotNil(t, o.overrideFor(meets, in))

	below := meets
	below.HookStrength = RescueMinHook - 1
	assert.Nil(t, o.overrideFor(below, in))
}
