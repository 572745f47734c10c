// Package style infers content style, niche and pacing profiles from the
// transcript and the engagement windows, and resolves the runtime blend
// used by the planner.
package style

import (
	"strings"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// ContentStyle classifies the video's format.
type ContentStyle string

const (
	StyleReaction ContentStyle = "reaction"
	StyleVlog     ContentStyle = "vlog"
	StyleTutorial ContentStyle = "tutorial"
	StyleGaming   ContentStyle = "gaming"
	StyleStory    ContentStyle = "story"
)

// Niche classifies the delivery pattern.
type Niche string

const (
	NicheHighEnergy  Niche = "high_energy"
	NicheEducation   Niche = "education"
	NicheTalkingHead Niche = "talking_head"
	NicheStory       Niche = "story"
)

// ContentStyleProfile is the inferred style with its evidence.
type ContentStyleProfile struct {
	Style      ContentStyle `json:"style"`
	Confidence float64      `json:"confidence"`
	Rationale  string       `json:"rationale,omitempty"`
}

// VideoNicheProfile is the inferred niche.
type VideoNicheProfile struct {
	Niche      Niche   `json:"niche"`
	Confidence float64 `json:"confidence"`
}

// PacingProfile drives pacing segmentation: target segment lengths per
// video phase, boundary jitter and the per-segment speed cap.
type PacingProfile struct {
	EarlyTarget  float64 `json:"earlyTarget"`  // seconds
	MiddleTarget float64 `json:"middleTarget"`
	LateTarget   float64 `json:"lateTarget"`
	Jitter       float64 `json:"jitter"`   // +/- seconds
	SpeedCap     float64 `json:"speedCap"` // max per-segment speed
	MinSegment   float64 `json:"minSegment"`
	MaxSegment   float64 `json:"maxSegment"`
}

// RuntimeStyleProfile carries the behavior-driven pacing shifts resolved
// from the retention strategy and the archetype blend.
type RuntimeStyleProfile struct {
	AvgCutIntervalSec      float64          `json:"avgCutIntervalSec"`
	PatternInterruptMinSec float64          `json:"patternInterruptMinSec"`
	PatternInterruptMaxSec float64          `json:"patternInterruptMaxSec"`
	EscalationCurve        float64          `json:"escalationCurve"` // >1 accelerates toward the end
	BeatSnapToleranceSec   float64          `json:"beatSnapToleranceSec"`
	AllowStoryReorder      bool             `json:"allowStoryReorder"`
	Aggression             model.Aggression `json:"aggression"`
}

// ArchetypeBlend is supplied by an external collaborator; weights sum
// to 1 across named archetypes.
type ArchetypeBlend map[string]float64

var styleKeywords = map[ContentStyle][]string{
	StyleReaction: {"react", "reaction", "watch this", "no way", "oh my", "bro", "chat"},
	StyleVlog:     {"today", "morning", "my day", "vlog", "we went", "follow me"},
	StyleTutorial: {"how to", "step", "first", "next", "tutorial", "learn", "guide", "tip"},
	StyleGaming:   {"game", "level", "boss", "clutch", "spawn", "loot", "rank"},
	StyleStory:    {"story", "happened", "one day", "back then", "suddenly", "ended up"},
}

// InferContentStyle scores keyword hits plus window means into a style.
func InferContentStyle(cues []model.TranscriptCue, windows []model.EngagementWindow) ContentStyleProfile {
	scores := map[ContentStyle]float64{}
	var text strings.Builder
	for _, cue := range cues {
		text.WriteString(strings.ToLower(cue.Text))
		text.WriteByte(' ')
	}
	joined := text.String()
	for style, kws := range styleKeywords {
		for _, kw := range kws {
			scores[style] += float64(strings.Count(joined, kw))
		}
	}

	// Signal nudges: high motion favors gaming/reaction, steady face favors
	// vlog/tutorial.
	motion, face := windowMeans(windows)
	scores[StyleGaming] += motion * 3
	scores[StyleReaction] += motion * 2
	scores[StyleVlog] += face * 2
	scores[StyleTutorial] += face * 1.5

	best, second := StyleStory, StyleVlog
	for style, s := range scores {
		if s > scores[best] {
			second = best
			best = style
		} else if s > scores[second] && style != best {
			second = style
		}
	}
	total := scores[best] + scores[second]
	confidence := 0.5
	if total > 0 {
		confidence = model.Clamp01(scores[best] / total)
	}
	return ContentStyleProfile{
		Style:      best,
		Confidence: confidence,
		Rationale:  "keyword and signal vote",
	}
}

// InferNiche classifies delivery from speech/scene/emotion averages and
// the spike ratio.
func InferNiche(windows []model.EngagementWindow) VideoNicheProfile {
	if len(windows) == 0 {
		return VideoNicheProfile{Niche: NicheTalkingHead, Confidence: 0.3}
	}
	var speech, scene, emotion, spikes float64
	for _, w := range windows {
		speech += w.SpeechIntensity
		scene += w.SceneChangeRate
		emotion += w.EmotionIntensity
		spikes += float64(w.EmotionalSpike)
	}
	n := float64(len(windows))
	speech /= n
	scene /= n
	emotion /= n
	spikeRatio := spikes / n

	switch {
	case scene > 0.35 || spikeRatio > 0.12:
		return VideoNicheProfile{Niche: NicheHighEnergy, Confidence: model.Clamp01(scene + spikeRatio)}
	case speech > 0.5 && scene < 0.15:
		if emotion > 0.3 {
			return VideoNicheProfile{Niche: NicheStory, Confidence: model.Clamp01(speech*0.6 + emotion*0.4)}
		}
		return VideoNicheProfile{Niche: NicheTalkingHead, Confidence: model.Clamp01(speech)}
	case speech > 0.35:
		return VideoNicheProfile{Niche: NicheEducation, Confidence: model.Clamp01(speech*0.8)}
	default:
		return VideoNicheProfile{Niche: NicheTalkingHead, Confidence: 0.4}
	}
}

// PacingForNiche is the base pacing table.
func PacingForNiche(niche Niche) PacingProfile {
	switch niche {
	case NicheHighEnergy:
		return PacingProfile{EarlyTarget: 2.2, MiddleTarget: 2.8, LateTarget: 2.0, Jitter: 0.5, SpeedCap: 1.35, MinSegment: 1.2, MaxSegment: 6}
	case NicheEducation:
		return PacingProfile{EarlyTarget: 3.5, MiddleTarget: 4.5, LateTarget: 3.2, Jitter: 0.8, SpeedCap: 1.2, MinSegment: 2, MaxSegment: 8}
	case NicheStory:
		return PacingProfile{EarlyTarget: 3.0, MiddleTarget: 4.8, LateTarget: 2.8, Jitter: 0.7, SpeedCap: 1.15, MinSegment: 1.8, MaxSegment: 9}
	default: // talking_head
		return PacingProfile{EarlyTarget: 3.2, MiddleTarget: 4.8, LateTarget: 3.0, Jitter: 0.6, SpeedCap: 1.25, MinSegment: 1.6, MaxSegment: 8}
	}
}

// BlendPacing tilts the niche profile toward the content style.
func BlendPacing(base PacingProfile, styleProfile ContentStyleProfile) PacingProfile {
	out := base
	switch styleProfile.Style {
	case StyleReaction, StyleGaming:
		factor := 1 - 0.15*styleProfile.Confidence
		out.EarlyTarget *= factor
		out.MiddleTarget *= factor
		out.LateTarget *= factor
		out.SpeedCap += 0.05 * styleProfile.Confidence
	case StyleTutorial:
		factor := 1 + 0.12*styleProfile.Confidence
		out.MiddleTarget *= factor
		out.SpeedCap -= 0.05 * styleProfile.Confidence
	}
	if out.SpeedCap < 1.05 {
		out.SpeedCap = 1.05
	}
	if out.SpeedCap > 1.5 {
		out.SpeedCap = 1.5
	}
	return out
}

// ResolveRuntime derives the runtime profile from the aggression level and
// an optional archetype blend.
func ResolveRuntime(aggression model.Aggression, blend ArchetypeBlend, contentFormat string) RuntimeStyleProfile {
	p := RuntimeStyleProfile{Aggression: aggression}
	switch aggression {
	case model.AggressionLow:
		p.AvgCutIntervalSec = 5.5
		p.PatternInterruptMinSec = 18
		p.PatternInterruptMaxSec = 30
		p.EscalationCurve = 1.0
		p.BeatSnapToleranceSec = 0.8
	case model.AggressionHigh:
		p.AvgCutIntervalSec = 3.0
		p.PatternInterruptMinSec = 9
		p.PatternInterruptMaxSec = 16
		p.EscalationCurve = 1.25
		p.BeatSnapToleranceSec = 0.5
	case model.AggressionViral:
		p.AvgCutIntervalSec = 2.2
		p.PatternInterruptMinSec = 6
		p.PatternInterruptMaxSec = 12
		p.EscalationCurve = 1.4
		p.BeatSnapToleranceSec = 0.4
	default: // medium
		p.AvgCutIntervalSec = 4.0
		p.PatternInterruptMinSec = 12
		p.PatternInterruptMaxSec = 22
		p.EscalationCurve = 1.1
		p.BeatSnapToleranceSec = 0.6
	}
	p.AllowStoryReorder = contentFormat == "tiktok_short" &&
		(aggression == model.AggressionHigh || aggression == model.AggressionViral || aggression == model.AggressionMedium)

	// Archetype blend shifts cut cadence by up to +/-20%.
	if w := blend["rapid"]; w > 0 {
		p.AvgCutIntervalSec *= 1 - 0.2*w
	}
	if w := blend["cinematic"]; w > 0 {
		p.AvgCutIntervalSec *= 1 + 0.2*w
		p.BeatSnapToleranceSec += 0.2 * w
	}
	return p
}

func windowMeans(windows []model.EngagementWindow) (motion, face float64) {
	if len(windows) == 0 {
		return 0, 0
	}
	for _, w := range windows {
		motion += w.MotionScore
		face += w.FacePresence
	}
	n := float64(len(windows))
	return motion / n, face / n
}

// ContentFormatFor maps runtime and platform onto the judge's format tag.
func ContentFormatFor(outputSec float64, longFormThresholdSec int, targetPlatform string) string {
	if outputSec >= float64(longFormThresholdSec) {
		if targetPlatform == "youtube" {
			return "youtube_long"
		}
		return "podcast_clip"
	}
	return "tiktok_short"
}
