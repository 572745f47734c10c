package model

import "time"

// FeedbackHistoryCap bounds the per-job feedback history.
const FeedbackHistoryCap = 40

// FeedbackSource discriminates the three accepted payload shapes.
type FeedbackSource string

const (
	FeedbackPlatform FeedbackSource = "platform"
	FeedbackManual   FeedbackSource = "manual"
	FeedbackCreator  FeedbackSource = "creator"
)

// CreatorCorrection is the coarse category a creator can file.
type CreatorCorrection string

const (
	CorrectionBadHook    CreatorCorrection = "bad_hook"
	CorrectionTooFast    CreatorCorrection = "too_fast"
	CorrectionTooGeneric CreatorCorrection = "too_generic"
	CorrectionGreatEdit  CreatorCorrection = "great_edit"
)

// RetentionFeedback is the normalized feedback record. Metric fields are
// in [0,1]; ManualScore is in [0,100].
type RetentionFeedback struct {
	Source            FeedbackSource    `json:"source"`
	WatchPercent      float64           `json:"watchPercent,omitempty"`
	HookHoldPercent   float64           `json:"hookHoldPercent,omitempty"`
	CompletionPercent float64           `json:"completionPercent,omitempty"`
	First30Percent    float64           `json:"first30Percent,omitempty"`
	RewatchRate       float64           `json:"rewatchRate,omitempty"`
	CTR               float64           `json:"ctr,omitempty"`
	SharesPerView     float64           `json:"sharesPerView,omitempty"`
	LikesPerView      float64           `json:"likesPerView,omitempty"`
	CommentsPerView   float64           `json:"commentsPerView,omitempty"`
	ManualScore       float64           `json:"manualScore,omitempty"`
	Correction        CreatorCorrection `json:"correction,omitempty"`
	ReceivedAt        time.Time         `json:"receivedAt"`
}

// FaceoffWeights are the calibrated hook-faceoff component weights. They
// always sum to 1 after normalization; each is clamped to [0.05,0.7].
type FaceoffWeights struct {
	Hook       float64 `json:"hook"`
	Speech     float64 `json:"speech"`
	Transcript float64 `json:"transcript"`
	Visual     float64 `json:"visual"`
	Emotion    float64 `json:"emotion"`
}

// DefaultFaceoffWeights is the uncalibrated starting point.
func DefaultFaceoffWeights() FaceoffWeights {
	return FaceoffWeights{Hook: 0.34, Speech: 0.2, Transcript: 0.16, Visual: 0.15, Emotion: 0.15}
}

// CalibrationProfile is the per-user adaptive profile consumed by the hook
// faceoff and the retry orchestrator.
type CalibrationProfile struct {
	Weights       FaceoffWeights       `json:"weights"`
	StrategyBias  map[Strategy]float64 `json:"strategyBias"` // points, [-12,12]
	DominantStyle string               `json:"dominantStyle,omitempty"`
	SampleCount   int                  `json:"sampleCount"`
	Rationale     []string             `json:"rationale,omitempty"`
}

// DefaultCalibration is returned when fewer than the minimum samples exist.
func DefaultCalibration() CalibrationProfile {
	return CalibrationProfile{
		Weights:      DefaultFaceoffWeights(),
		StrategyBias: map[Strategy]float64{},
	}
}
