package planner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/style"
)

func syntheticWindows(seconds int) []model.EngagementWindow {
	windows := make([]model.EngagementWindow, seconds)
	for i := range windows {
		t := float64(i)
		windows[i] = model.EngagementWindow{
			Time:             t,
			AudioEnergy:      0.4 + 0.3*math.Sin(t/5),
			SpeechIntensity:  0.5 + 0.2*math.Sin(t/7),
			MotionScore:      0.3,
			FacePresence:     0.6,
			EmotionIntensity: 0.3 + 0.3*math.Sin(t/11),
			HookScore:        0.4 + 0.2*math.Sin(t/9),
			Score:            0.45,
		}
	}
	// One clear peak to hang the hook on.
	windows[30].HookScore = 0.95
	windows[30].EmotionIntensity = 0.9
	windows[30].EmotionalSpike = 1
	return windows
}

func testInputs(seconds int) Inputs {
	return Inputs{
		JobID:    "job-1",
		Windows:  syntheticWindows(seconds),
		Duration: float64(seconds),
		Pacing:   style.PacingForNiche(style.NicheTalkingHead),
		Runtime:  style.ResolveRuntime(model.AggressionMedium, nil, "tiktok_short"),
		Aggression: model.AggressionMedium,
		Calibration: model.DefaultCalibration(),
		ContentFormat: "tiktok_short",
	}
}

func TestBuildPlanSegmentInvariants(t *testing.T) {
	plan := BuildPlan(testInputs(120), model.StrategyBaseline)
	require.NotEmpty(t, plan.Segments)

	for _, seg := range plan.Segments {
		assert.GreaterOrEqual(t, seg.Start, 0.0)
		assert.Less(t, seg.Start, seg.End)
		assert.LessOrEqual(t, seg.End, plan.SourceDuration)
		assert.GreaterOrEqual(t, seg.Speed, model.SpeedMin)
		assert.LessOrEqual(t, seg.Speed, model.SpeedMax)
		assert.GreaterOrEqual(t, seg.Zoom, 0.0)
		assert.LessOrEqual(t, seg.Zoom, model.ZoomMax)
		assert.GreaterOrEqual(t, seg.AudioGain, model.AudioGainMin)
		assert.LessOrEqual(t, seg.AudioGain, model.AudioGainMax)
	}
}

func TestBuildPlanHookBounds(t *testing.T) {
	plan := BuildPlan(testInputs(120), model.StrategyBaseline)
	require.NotNil(t, plan.Hook)
	assert.GreaterOrEqual(t, plan.Hook.Duration, model.HookMinSeconds)
	assert.LessOrEqual(t, plan.Hook.Duration, model.HookMaxSeconds)

	// The relocated hook range plays exactly once.
	hookRange := plan.Hook.Range()
	for i, seg := range plan.Segments {
		if seg.IsHook {
			continue
		}
		r := model.TimeRange{Start: seg.Start, End: seg.End}
		assert.False(t, r.Overlaps(hookRange), "segment %d overlaps hook range", i)
	}
}

func TestPrepareSegmentsForRenderIdempotent(t *testing.T) {
	segs := []model.Segment{
		{Start: 0, End: 4.2, Speed: 1.3, AudioGain: 1},
		{Start: 3.9, End: 8, Speed: 9, Zoom: 0.5}, // overlaps, out-of-range transforms
		{Start: 8, End: 8.1},                      // sliver
		{Start: 10, End: 15, Speed: 1},
	}
	once := PrepareSegmentsForRender(segs)
	twice := PrepareSegmentsForRender(once)
	assert.Equal(t, once, twice)

	for i := 1; i < len(once); i++ {
		assert.GreaterOrEqual(t, once[i].Start, once[i-1].End)
	}
	for _, seg := range once {
		assert.LessOrEqual(t, seg.Speed, model.SpeedMax)
		assert.LessOrEqual(t, seg.Zoom, model.ZoomMax)
	}
}

func TestRunHookAuditDeterministic(t *testing.T) {
	in := testInputs(90)
	cand := model.HookCandidate{Start: 28, Duration: 6}
	cues := []model.TranscriptCue{
		{Start: 28, End: 31, Text: "Here's why nobody talks about this."},
		{Start: 31, End: 34, Text: "It changed everything for me!"},
	}
	first := RunHookAudit(cand, cues, in.Windows)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, RunHookAudit(cand, cues, in.Windows))
	}
	assert.Greater(t, first.AuditScore, 0.0)
}

func TestRunHookAuditPenalizesContextDependence(t *testing.T) {
	in := testInputs(90)
	cand := model.HookCandidate{Start: 28, Duration: 6}
	standalone := RunHookAudit(cand, []model.TranscriptCue{
		{Start: 28, End: 33, Text: "This is the secret nobody tells you."},
	}, in.Windows)
	dependent := RunHookAudit(cand, []model.TranscriptCue{
		{Start: 28, End: 33, Text: "so then he said it was"},
	}, in.Windows)
	assert.Greater(t, standalone.AuditScore, dependent.AuditScore)
	assert.Greater(t, dependent.ContextPenalty, standalone.ContextPenalty)
}

func TestSelectionThreshold(t *testing.T) {
	base := SelectionThreshold(model.AggressionMedium, true, SignalStrong)
	assert.InDelta(t, 0.68, base, 1e-9)
	assert.InDelta(t, base-0.11, SelectionThreshold(model.AggressionMedium, false, SignalStrong), 1e-9)
	assert.InDelta(t, base-0.08, SelectionThreshold(model.AggressionMedium, true, SignalWeak), 1e-9)
	assert.InDelta(t, base-0.05, SelectionThreshold(model.AggressionMedium, true, SignalMedium), 1e-9)
	assert.Less(t, SelectionThreshold(model.AggressionLow, true, SignalStrong),
		SelectionThreshold(model.AggressionViral, true, SignalStrong))
}

func TestTrimSilencesSkipsShort(t *testing.T) {
	silences := []model.TimeRange{
		{Start: 1, End: 1.5},  // below the minimum
		{Start: 10, End: 13},  // removable
	}
	out := trimSilences(silences, 60)
	require.Len(t, out, 1)
	assert.InDelta(t, 10.12, out[0].Start, 1e-9)
	assert.InDelta(t, 12.88, out[0].End, 1e-9)
}

func TestSubtractRanges(t *testing.T) {
	total := model.TimeRange{Start: 0, End: 20}
	removed := []model.TimeRange{{Start: 3, End: 5}, {Start: 10, End: 12}}
	kept := subtractRanges(total, removed)
	assert.Equal(t, []model.TimeRange{
		{Start: 0, End: 3}, {Start: 5, End: 10}, {Start: 12, End: 20},
	}, kept)
}

func TestCapSegmentsKeepsHook(t *testing.T) {
	var segs []model.Segment
	for i := 0; i < 20; i++ {
		segs = append(segs, model.Segment{Start: float64(i * 3), End: float64(i*3 + 2), Speed: 1, AudioGain: 1})
	}
	segs[0].IsHook = true
	out := CapSegments(segs, 10)
	assert.LessOrEqual(t, len(out), 10)
	assert.True(t, out[0].IsHook)
}

func TestInjectInterruptsGuaranteesMinimum(t *testing.T) {
	in := testInputs(180)
	var segs []model.Segment
	for i := 0; i < 30; i++ {
		segs = append(segs, model.Segment{Start: float64(i * 6), End: float64(i*6 + 5), Speed: 1, AudioGain: 1})
	}
	var meta model.EditPlanMeta
	out := injectInterrupts(segs, in.Windows, in.Runtime, &meta)

	target := (in.Runtime.PatternInterruptMinSec + in.Runtime.PatternInterruptMaxSec) / 2
	minCount := int(math.Ceil(model.TotalOutputDuration(out) / target))
	assert.GreaterOrEqual(t, meta.InterruptCount, minCount)
}

func TestEnsureContextFloor(t *testing.T) {
	segs := []model.Segment{
		{Start: 30, End: 36, Speed: 1, IsHook: true},
		{Start: 0, End: 1.5, Speed: 2},
		{Start: 5, End: 40, Speed: 1.5},
	}
	out := ensureContextFloor(segs, 18)
	assert.Equal(t, 1.0, out[1].Speed)
	assert.GreaterOrEqual(t, out[1].SourceDuration(), LongFormMinContextSec)
}

func TestBuildPlanLongFormKeepsOrder(t *testing.T) {
	in := testInputs(300)
	in.ContentFormat = "podcast_clip"
	in.Runtime = style.ResolveRuntime(model.AggressionMedium, nil, "podcast_clip")
	plan := BuildPlan(in, model.StrategyEmotionFirst)
	for i, orig := range plan.ReorderMap {
		assert.Equal(t, i, orig)
	}
}
