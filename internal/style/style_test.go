package style

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

func cuesFromText(texts ...string) []model.TranscriptCue {
	cues := make([]model.TranscriptCue, len(texts))
	for i, t := range texts {
		cues[i] = model.TranscriptCue{Start: float64(i * 3), End: float64(i*3 + 3), Text: t}
	}
	return cues
}

func TestInferContentStyleKeywordVote(t *testing.T) {
	tutorial := InferContentStyle(cuesFromText(
		"how to edit faster", "first open the timeline", "next step is the cut", "this tutorial shows the guide",
	), nil)
	assert.Equal(t, StyleTutorial, tutorial.Style)
	assert.Greater(t, tutorial.Confidence, 0.5)

	gaming := InferContentStyle(cuesFromText(
		"the boss spawned early", "that clutch at level ten", "best loot in the game",
	), nil)
	assert.Equal(t, StyleGaming, gaming.Style)
}

func TestInferContentStyleSignalNudges(t *testing.T) {
	// No transcript: a steady face pushes toward vlog over the story default.
	windows := make([]model.EngagementWindow, 30)
	for i := range windows {
		windows[i].FacePresence = 0.9
	}
	got := InferContentStyle(nil, windows)
	assert.Equal(t, StyleVlog, got.Style)
}

func TestInferNiche(t *testing.T) {
	mk := func(speech, scene, emotion float64) []model.EngagementWindow {
		out := make([]model.EngagementWindow, 40)
		for i := range out {
			out[i] = model.EngagementWindow{SpeechIntensity: speech, SceneChangeRate: scene, EmotionIntensity: emotion}
		}
		return out
	}

	assert.Equal(t, NicheHighEnergy, InferNiche(mk(0.3, 0.5, 0.1)).Niche)
	assert.Equal(t, NicheStory, InferNiche(mk(0.7, 0.05, 0.5)).Niche)
	assert.Equal(t, NicheTalkingHead, InferNiche(mk(0.7, 0.05, 0.1)).Niche)
	assert.Equal(t, NicheEducation, InferNiche(mk(0.4, 0.2, 0.1)).Niche)
	assert.Equal(t, NicheTalkingHead, InferNiche(nil).Niche)
}

func TestBlendPacingTightensForReaction(t *testing.T) {
	base := PacingForNiche(NicheTalkingHead)
	blended := BlendPacing(base, ContentStyleProfile{Style: StyleReaction, Confidence: 1})
	assert.Less(t, blended.EarlyTarget, base.EarlyTarget)
	assert.Greater(t, blended.SpeedCap, base.SpeedCap)

	slower := BlendPacing(base, ContentStyleProfile{Style: StyleTutorial, Confidence: 1})
	assert.Greater(t, slower.MiddleTarget, base.MiddleTarget)
	assert.GreaterOrEqual(t, slower.SpeedCap, 1.05)
}

func TestResolveRuntimeAggressionLadder(t *testing.T) {
	low := ResolveRuntime(model.AggressionLow, nil, "tiktok_short")
	med := ResolveRuntime(model.AggressionMedium, nil, "tiktok_short")
	high := ResolveRuntime(model.AggressionHigh, nil, "tiktok_short")
	viral := ResolveRuntime(model.AggressionViral, nil, "tiktok_short")

	assert.Greater(t, low.AvgCutIntervalSec, med.AvgCutIntervalSec)
	assert.Greater(t, med.AvgCutIntervalSec, high.AvgCutIntervalSec)
	assert.Greater(t, high.AvgCutIntervalSec, viral.AvgCutIntervalSec)

	assert.False(t, low.AllowStoryReorder)
	assert.True(t, high.AllowStoryReorder)
	// Long-form never reorders story beats.
	assert.False(t, ResolveRuntime(model.AggressionViral, nil, "youtube_long").AllowStoryReorder)
}

func TestResolveRuntimeArchetypeBlend(t *testing.T) {
	base := ResolveRuntime(model.AggressionMedium, nil, "tiktok_short")
	rapid := ResolveRuntime(model.AggressionMedium, ArchetypeBlend{"rapid": 1}, "tiktok_short")
	cinematic := ResolveRuntime(model.AggressionMedium, ArchetypeBlend{"cinematic": 1}, "tiktok_short")

	assert.InDelta(t, base.AvgCutIntervalSec*0.8, rapid.AvgCutIntervalSec, 1e-9)
	assert.InDelta(t, base.AvgCutIntervalSec*1.2, cinematic.AvgCutIntervalSec, 1e-9)
	assert.Greater(t, cinematic.BeatSnapToleranceSec, base.BeatSnapToleranceSec)
}

func TestContentFormatFor(t *testing.T) {
	assert.Equal(t, "tiktok_short", ContentFormatFor(60, 95, "tiktok"))
	assert.Equal(t, "youtube_long", ContentFormatFor(120, 95, "youtube"))
	assert.Equal(t, "podcast_clip", ContentFormatFor(120, 95, "tiktok"))
	assert.Equal(t, "youtube_long", ContentFormatFor(95, 95, "youtube"))
}
