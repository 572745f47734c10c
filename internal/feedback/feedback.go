// Package feedback normalizes the three accepted retention-feedback
// payload shapes into the canonical record stored on the job.
package feedback

import (
	"fmt"
	"time"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// PlatformPayload is platform-analytics feedback.
type PlatformPayload struct {
	WatchPercent      float64 `json:"watchPercent"`
	HookHoldPercent   float64 `json:"hookHoldPercent"`
	CompletionPercent float64 `json:"completionPercent"`
	First30Percent    float64 `json:"first30Percent"`
	RewatchRate       float64 `json:"rewatchRate"`
	CTR               float64 `json:"ctr"`
	SharesPerView     float64 `json:"sharesPerView"`
	LikesPerView      float64 `json:"likesPerView"`
	CommentsPerView   float64 `json:"commentsPerView"`
}

// ManualPayload is an internal reviewer score.
type ManualPayload struct {
	Score float64 `json:"score"` // [0,100]
}

// CreatorPayload is a coarse creator correction.
type CreatorPayload struct {
	Correction model.CreatorCorrection `json:"correction"`
}

// correctionMetrics maps each correction category onto synthetic metrics.
var correctionMetrics = map[model.CreatorCorrection]model.RetentionFeedback{
	model.CorrectionBadHook:    {HookHoldPercent: 0.2, WatchPercent: 0.35, ManualScore: 35},
	model.CorrectionTooFast:    {WatchPercent: 0.4, CompletionPercent: 0.3, ManualScore: 45},
	model.CorrectionTooGeneric: {WatchPercent: 0.45, RewatchRate: 0.02, ManualScore: 40},
	model.CorrectionGreatEdit:  {WatchPercent: 0.85, HookHoldPercent: 0.8, CompletionPercent: 0.7, ManualScore: 88},
}

// FromPlatform normalizes analytics metrics, clamping everything to [0,1].
func FromPlatform(p PlatformPayload, at time.Time) model.RetentionFeedback {
	return model.RetentionFeedback{
		Source:            model.FeedbackPlatform,
		WatchPercent:      model.Clamp01(p.WatchPercent),
		HookHoldPercent:   model.Clamp01(p.HookHoldPercent),
		CompletionPercent: model.Clamp01(p.CompletionPercent),
		First30Percent:    model.Clamp01(p.First30Percent),
		RewatchRate:       model.Clamp01(p.RewatchRate),
		CTR:               model.Clamp01(p.CTR),
		SharesPerView:     model.Clamp01(p.SharesPerView),
		LikesPerView:      model.Clamp01(p.LikesPerView),
		CommentsPerView:   model.Clamp01(p.CommentsPerView),
		ReceivedAt:        at.UTC(),
	}
}

// FromManual normalizes a reviewer score to [0,100].
func FromManual(p ManualPayload, at time.Time) model.RetentionFeedback {
	return model.RetentionFeedback{
		Source:      model.FeedbackManual,
		ManualScore: model.Clamp(p.Score, 0, 100),
		ReceivedAt:  at.UTC(),
	}
}

// FromCreator maps a correction category to its synthetic metrics.
func FromCreator(p CreatorPayload, at time.Time) (model.RetentionFeedback, error) {
	base, ok := correctionMetrics[p.Correction]
	if !ok {
		return model.RetentionFeedback{}, fmt.Errorf("unknown correction %q", p.Correction)
	}
	base.Source = model.FeedbackCreator
	base.Correction = p.Correction
	base.ReceivedAt = at.UTC()
	return base, nil
}

// Append adds a record to a history, keeping the most recent
// FeedbackHistoryCap entries.
func Append(history []model.RetentionFeedback, rec model.RetentionFeedback) []model.RetentionFeedback {
	history = append(history, rec)
	if len(history) > model.FeedbackHistoryCap {
		history = history[len(history)-model.FeedbackHistoryCap:]
	}
	return history
}

// OutcomeSignal reduces one feedback record to a scalar in [0,1] for
// calibration.
func OutcomeSignal(rec model.RetentionFeedback) float64 {
	switch rec.Source {
	case model.FeedbackManual:
		return model.Clamp01(rec.ManualScore / 100)
	default:
		composite := 0.3*rec.WatchPercent +
			0.2*rec.HookHoldPercent +
			0.2*rec.CompletionPercent +
			0.1*rec.First30Percent +
			0.1*rec.RewatchRate +
			0.1*model.Clamp01(rec.SharesPerView*10+rec.LikesPerView*5+rec.CommentsPerView*10)
		if rec.ManualScore > 0 {
			composite = 0.7*composite + 0.3*(rec.ManualScore/100)
		}
		return model.Clamp01(composite)
	}
}
