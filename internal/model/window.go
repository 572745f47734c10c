package model

// EngagementWindow is a one-second sampling unit of fused signal scores.
// All scalar fields are in [0,1] unless noted.
type EngagementWindow struct {
	Time            float64 `json:"time"`
	AudioEnergy     float64 `json:"audioEnergy"`
	SpeechIntensity float64 `json:"speechIntensity"`
	MotionScore     float64 `json:"motionScore"`
	FacePresence    float64 `json:"facePresence"`
	FaceIntensity   float64 `json:"faceIntensity"`
	FaceCenterX     float64 `json:"faceCenterX,omitempty"` // 0 when no face seen
	FaceCenterY     float64 `json:"faceCenterY,omitempty"`
	TextDensity     float64 `json:"textDensity"`
	SceneChangeRate float64 `json:"sceneChangeRate"`
	EmotionalSpike  int     `json:"emotionalSpike"` // 0 or 1
	VocalExcitement float64 `json:"vocalExcitement"`
	EmotionIntensity float64 `json:"emotionIntensity"`
	AudioVariance    float64 `json:"audioVariance"`
	KeywordIntensity float64 `json:"keywordIntensity"`
	CuriosityTrigger float64 `json:"curiosityTrigger"`
	FillerDensity    float64 `json:"fillerDensity"`
	BoredomScore     float64 `json:"boredomScore"`
	HookScore        float64 `json:"hookScore"`
	Score            float64 `json:"score"` // fused engagement
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamp bounds v to [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TimeRange is a half-open [Start,End) interval on the source timeline.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End-Start, never negative.
func (r TimeRange) Duration() float64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Overlaps reports whether two half-open ranges intersect.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start < o.End && o.Start < r.End
}
