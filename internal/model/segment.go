package model

// Transform bounds for segments. Values outside these ranges are clamped
// before rendering.
const (
	SpeedMin      = 0.25
	SpeedMax      = 4.0
	ZoomMax       = 0.15
	BrightnessMax = 0.45
	AudioGainMin  = 0.8
	AudioGainMax  = 1.24
)

// TransitionStyle selects the stitch used at a segment's leading edge.
type TransitionStyle string

const (
	TransitionJump   TransitionStyle = "jump"
	TransitionSmooth TransitionStyle = "smooth"
)

// Segment is a half-open time range on the source timeline with optional
// per-segment transforms applied at render time.
type Segment struct {
	Start           float64         `json:"start"`
	End             float64         `json:"end"`
	Speed           float64         `json:"speed"`      // [0.25,4], 1 = realtime
	Zoom            float64         `json:"zoom"`       // [0,0.15]
	Brightness      float64         `json:"brightness"` // [-0.45,0.45]
	AudioGain       float64         `json:"audioGain"`  // [0.8,1.24]
	FaceFocusX      float64         `json:"faceFocusX,omitempty"`
	FaceFocusY      float64         `json:"faceFocusY,omitempty"`
	TransitionStyle TransitionStyle `json:"transitionStyle,omitempty"`
	SoundFxLevel    float64         `json:"soundFxLevel,omitempty"` // [0,1]
	Emphasize       bool            `json:"emphasize,omitempty"`
	IsHook          bool            `json:"isHook,omitempty"`
}

// SourceDuration is the untransformed length of the segment.
func (s Segment) SourceDuration() float64 {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// OutputDuration is the on-screen length after the speed transform.
func (s Segment) OutputDuration() float64 {
	sp := s.Speed
	if sp <= 0 {
		sp = 1
	}
	return s.SourceDuration() / sp
}

// ClampTransforms bounds every transform field to its legal range and
// defaults zero-valued speed and gain.
func (s *Segment) ClampTransforms() {
	if s.Speed == 0 {
		s.Speed = 1
	}
	s.Speed = Clamp(s.Speed, SpeedMin, SpeedMax)
	s.Zoom = Clamp(s.Zoom, 0, ZoomMax)
	s.Brightness = Clamp(s.Brightness, -BrightnessMax, BrightnessMax)
	if s.AudioGain == 0 {
		s.AudioGain = 1
	}
	s.AudioGain = Clamp(s.AudioGain, AudioGainMin, AudioGainMax)
	s.SoundFxLevel = Clamp01(s.SoundFxLevel)
}

// TotalOutputDuration sums the on-screen length of a segment list.
func TotalOutputDuration(segs []Segment) float64 {
	var total float64
	for _, s := range segs {
		total += s.OutputDuration()
	}
	return total
}
