package calibration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marquise34567/editor-backend-sub000/internal/jobstore"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// summaryStore serves canned completed-job summaries.
type summaryStore struct {
	jobstore.Store
	summaries []model.JobSummary
}

func (s *summaryStore) ListRecentCompleted(ctx context.Context, userID string, limit int) ([]model.JobSummary, error) {
	if limit < len(s.summaries) {
		return s.summaries[:limit], nil
	}
	return s.summaries, nil
}

func summaryWith(strategy string, style string, watch, hookHold float64) model.JobSummary {
	return model.JobSummary{
		Strategy:     strategy,
		ContentStyle: style,
		Feedback: []model.RetentionFeedback{{
			Source:          model.FeedbackPlatform,
			WatchPercent:    watch,
			HookHoldPercent: hookHold,
		}},
	}
}

func TestProfileForDefaultsUnderMinSamples(t *testing.T) {
	store := NewStore(&summaryStore{summaries: []model.JobSummary{
		summaryWith("BASELINE", "reaction", 0.8, 0.7),
		summaryWith("BASELINE", "reaction", 0.7, 0.6),
	}}, 0)

	profile, err := store.ProfileFor(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultCalibration(), profile)
}

func TestProfileForWeightsStayNormalized(t *testing.T) {
	var summaries []model.JobSummary
	for i := 0; i < 8; i++ {
		summaries = append(summaries, summaryWith("HOOK_FIRST", "gaming", 0.9, 0.95))
	}
	store := NewStore(&summaryStore{summaries: summaries}, 0)

	profile, err := store.ProfileFor(context.Background(), "u1")
	require.NoError(t, err)

	w := profile.Weights
	sum := w.Hook + w.Speech + w.Transcript + w.Visual + w.Emotion
	assert.InDelta(t, 1.0, sum, 0.01)
	for _, v := range []float64{w.Hook, w.Speech, w.Transcript, w.Visual, w.Emotion} {
		assert.GreaterOrEqual(t, v, 0.05)
		assert.LessOrEqual(t, v, 0.7)
	}
	// Strong hook-hold history tilts weight toward the hook term.
	assert.Greater(t, w.Hook, model.DefaultFaceoffWeights().Hook-0.01)
	assert.Equal(t, "gaming", profile.DominantStyle)
	assert.Equal(t, 8, profile.SampleCount)
}

func TestStrategyBiasSignAndClamp(t *testing.T) {
	summaries := []model.JobSummary{
		summaryWith("HOOK_FIRST", "vlog", 0.95, 0.95),
		summaryWith("HOOK_FIRST", "vlog", 0.9, 0.9),
		summaryWith("BASELINE", "vlog", 0.1, 0.05),
		summaryWith("BASELINE", "vlog", 0.05, 0.1),
	}
	store := NewStore(&summaryStore{summaries: summaries}, 0)

	profile, err := store.ProfileFor(context.Background(), "u1")
	require.NoError(t, err)

	assert.Positive(t, profile.StrategyBias[model.StrategyHookFirst])
	assert.Negative(t, profile.StrategyBias[model.StrategyBaseline])
	for _, bias := range profile.StrategyBias {
		assert.GreaterOrEqual(t, bias, -12.0)
		assert.LessOrEqual(t, bias, 12.0)
	}
}

func TestProfileForSkipsJobsWithoutFeedback(t *testing.T) {
	summaries := []model.JobSummary{
		{Strategy: "BASELINE", ContentStyle: "story"}, // no feedback
		summaryWith("BASELINE", "story", 0.5, 0.5),
		summaryWith("BASELINE", "story", 0.5, 0.5),
	}
	store := NewStore(&summaryStore{summaries: summaries}, 0)

	profile, err := store.ProfileFor(context.Background(), "u1")
	require.NoError(t, err)
	// Only two usable samples: below the minimum, so defaults apply.
	assert.Equal(t, model.DefaultCalibration(), profile)
}
