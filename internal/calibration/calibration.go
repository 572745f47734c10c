// Package calibration derives per-user adaptive hook-faceoff weights and
// strategy biases from recent completed-job feedback.
package calibration

import (
	"context"
	"fmt"
	"sort"

	"github.com/Marquise34567/editor-backend-sub000/internal/feedback"
	"github.com/Marquise34567/editor-backend-sub000/internal/jobstore"
	"github.com/Marquise34567/editor-backend-sub000/internal/log"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

const (
	// DefaultLookback is the completed-job window per user.
	DefaultLookback = 24
	// MinSamples below which the default calibration is returned.
	MinSamples = 3

	weightMin = 0.05
	weightMax = 0.7

	biasMin = -12.0
	biasMax = 12.0
)

// Store derives calibration profiles from the job store.
type Store struct {
	Jobs     jobstore.Store
	Lookback int
}

func NewStore(jobs jobstore.Store, lookback int) *Store {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Store{Jobs: jobs, Lookback: lookback}
}

type sample struct {
	outcome  float64
	strategy model.Strategy
	style    string
	hookHeld float64
}

// ProfileFor computes the calibration profile over the user's most recent
// completed jobs. Fresh reads each call; the profile is read-mostly and
// cheap to rebuild.
func (s *Store) ProfileFor(ctx context.Context, userID string) (model.CalibrationProfile, error) {
	jobs, err := s.Jobs.ListRecentCompleted(ctx, userID, s.Lookback)
	if err != nil {
		return model.DefaultCalibration(), fmt.Errorf("list completed jobs: %w", err)
	}

	var samples []sample
	for _, job := range jobs {
		if len(job.Feedback) == 0 {
			continue
		}
		samples = append(samples, sampleFromJob(job))
	}
	if len(samples) < MinSamples {
		return model.DefaultCalibration(), nil
	}

	profile := model.CalibrationProfile{
		Weights:      adjustWeights(samples),
		StrategyBias: strategyBias(samples),
		SampleCount:  len(samples),
	}
	profile.DominantStyle, profile.Rationale = dominantStyle(samples), rationale(samples)

	logger := log.WithComponent("calibration")
	logger.Debug().
		Str("user_id", userID).
		Int("samples", len(samples)).
		Msg("calibration profile computed")
	return profile, nil
}

// sampleFromJob folds a job's feedback history into one outcome sample,
// blending the observed signals with the model's own retention score.
func sampleFromJob(job model.JobSummary) sample {
	var outcome, hookHeld float64
	for _, rec := range job.Feedback {
		outcome += feedback.OutcomeSignal(rec)
		hookHeld += rec.HookHoldPercent
	}
	n := float64(len(job.Feedback))
	outcome /= n
	if job.RetentionScore > 0 {
		outcome = 0.75*outcome + 0.25*model.Clamp01(job.RetentionScore/100)
	}
	return sample{
		outcome:  outcome,
		strategy: model.Strategy(job.Strategy),
		style:    job.ContentStyle,
		hookHeld: hookHeld / n,
	}
}

// adjustWeights tilts the faceoff weights toward the components that
// correlate with good outcomes: strong hook-hold pushes weight onto the
// hook term, weak hold spreads it to speech and emotion.
func adjustWeights(samples []sample) model.FaceoffWeights {
	w := model.DefaultFaceoffWeights()
	var hookHeld, outcome float64
	for _, s := range samples {
		hookHeld += s.hookHeld
		outcome += s.outcome
	}
	n := float64(len(samples))
	hookHeld /= n
	outcome /= n

	shift := (hookHeld - 0.5) * 0.2
	w.Hook += shift
	w.Speech -= shift / 2
	w.Emotion -= shift / 2
	if outcome < 0.4 {
		// Poor outcomes overall: lean harder on transcript evidence.
		w.Transcript += 0.05
		w.Visual -= 0.05
	}
	return normalizeWeights(w)
}

// normalizeWeights clamps each component to [0.05,0.7] and renormalizes
// to sum 1.
func normalizeWeights(w model.FaceoffWeights) model.FaceoffWeights {
	vals := []float64{w.Hook, w.Speech, w.Transcript, w.Visual, w.Emotion}
	var sum float64
	for i, v := range vals {
		vals[i] = model.Clamp(v, weightMin, weightMax)
		sum += vals[i]
	}
	if sum <= 0 {
		return model.DefaultFaceoffWeights()
	}
	for i := range vals {
		vals[i] /= sum
	}
	// Renormalization can push a component back outside its clamp; one
	// more clamp pass keeps the published bounds without iterating.
	for i := range vals {
		vals[i] = model.Clamp(vals[i], weightMin, weightMax)
	}
	return model.FaceoffWeights{
		Hook: vals[0], Speech: vals[1], Transcript: vals[2], Visual: vals[3], Emotion: vals[4],
	}
}

// strategyBias mean-centers per-strategy outcomes into bias points.
func strategyBias(samples []sample) map[model.Strategy]float64 {
	byStrategy := map[model.Strategy][]float64{}
	var grand float64
	for _, s := range samples {
		grand += s.outcome
		if s.strategy != "" {
			byStrategy[s.strategy] = append(byStrategy[s.strategy], s.outcome)
		}
	}
	grand /= float64(len(samples))

	bias := make(map[model.Strategy]float64, len(byStrategy))
	for strategy, outcomes := range byStrategy {
		var mean float64
		for _, o := range outcomes {
			mean += o
		}
		mean /= float64(len(outcomes))
		// One full outcome point of separation maps to 30 bias points
		// before the clamp.
		bias[strategy] = model.Clamp((mean-grand)*30, biasMin, biasMax)
	}
	return bias
}

func dominantStyle(samples []sample) string {
	counts := map[string]int{}
	for _, s := range samples {
		if s.style != "" {
			counts[s.style]++
		}
	}
	best, bestCount := "", 0
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}

func rationale(samples []sample) []string {
	var out []string
	var hookHeld float64
	for _, s := range samples {
		hookHeld += s.hookHeld
	}
	hookHeld /= float64(len(samples))
	switch {
	case hookHeld > 0.6:
		out = append(out, fmt.Sprintf("hook hold averages %.0f%%, weighting hook term up", hookHeld*100))
	case hookHeld < 0.35:
		out = append(out, fmt.Sprintf("hook hold averages %.0f%%, spreading weight to speech and emotion", hookHeld*100))
	}
	out = append(out, fmt.Sprintf("derived from %d recent completed jobs", len(samples)))
	return out
}
