package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

func TestFromPlatformClampsMetrics(t *testing.T) {
	rec := FromPlatform(PlatformPayload{
		WatchPercent: 1.7, HookHoldPercent: -0.2, CTR: 0.04,
	}, time.Now())
	assert.Equal(t, model.FeedbackPlatform, rec.Source)
	assert.Equal(t, 1.0, rec.WatchPercent)
	assert.Equal(t, 0.0, rec.HookHoldPercent)
	assert.Equal(t, 0.04, rec.CTR)
}

func TestFromManualClampsScore(t *testing.T) {
	assert.Equal(t, 100.0, FromManual(ManualPayload{Score: 250}, time.Now()).ManualScore)
	assert.Equal(t, 0.0, FromManual(ManualPayload{Score: -5}, time.Now()).ManualScore)
}

func TestFromCreatorUsesFixedTable(t *testing.T) {
	rec, err := FromCreator(CreatorPayload{Correction: model.CorrectionBadHook}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackCreator, rec.Source)
	assert.Equal(t, model.CorrectionBadHook, rec.Correction)
	assert.Equal(t, 0.2, rec.HookHoldPercent)

	_, err = FromCreator(CreatorPayload{Correction: "made_up"}, time.Now())
	assert.Error(t, err)
}

func TestAppendCapsHistory(t *testing.T) {
	var history []model.RetentionFeedback
	for i := 0; i < model.FeedbackHistoryCap+7; i++ {
		history = Append(history, model.RetentionFeedback{ManualScore: float64(i)})
	}
	require.Len(t, history, model.FeedbackHistoryCap)
	// Oldest entries dropped, newest kept.
	assert.Equal(t, float64(model.FeedbackHistoryCap+6), history[len(history)-1].ManualScore)
}

func TestOutcomeSignalRange(t *testing.T) {
	great, err := FromCreator(CreatorPayload{Correction: model.CorrectionGreatEdit}, time.Now())
	require.NoError(t, err)
	bad, err := FromCreator(CreatorPayload{Correction: model.CorrectionBadHook}, time.Now())
	require.NoError(t, err)
	assert.Greater(t, OutcomeSignal(great), OutcomeSignal(bad))
	assert.LessOrEqual(t, OutcomeSignal(great), 1.0)
	assert.GreaterOrEqual(t, OutcomeSignal(bad), 0.0)
}
