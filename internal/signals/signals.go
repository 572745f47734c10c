// Package signals runs the media tool and the analysis sidecars to produce
// the per-second scalar tracks the engagement model fuses. Every extractor
// is best-effort: a failure yields an empty track and the engine degrades.
package signals

import (
	"context"
	"time"

	"github.com/Marquise34567/editor-backend-sub000/internal/log"
	"github.com/Marquise34567/editor-backend-sub000/internal/media"
	"golang.org/x/sync/errgroup"
)

// AnalyzeMaxSeconds caps the analysis horizon.
const DefaultAnalyzeMaxSeconds = 1800

// FaceSample is one second of face-detection output.
type FaceSample struct {
	Second    int
	Presence  float64 // [0,1]
	Intensity float64 // f(max box area)
	CenterX   float64 // area-weighted centroid, frame-relative
	CenterY   float64
}

// EmotionSample is one sidecar emotion reading.
type EmotionSample struct {
	Time      float64 `json:"time"`
	Intensity float64 `json:"intensity"`
}

// TextSample is one second of OCR text density.
type TextSample struct {
	Second  int
	Density float64 // [0,1]
}

// Set bundles every extracted track for one input.
type Set struct {
	AudioEnergy  []float64 // indexed by second, normalized [0,1]
	SceneChanges []float64 // pts seconds of detected cuts
	Silences     []SilenceRange
	Faces        []FaceSample
	Text         []TextSample
	Emotion      []EmotionSample
}

// Config selects binaries and sidecars for an extraction run.
type Config struct {
	FFmpegBin        string
	AnalyzeMax       int
	FrameFPS         int
	FrameWidth       int
	WorkDir          string
	FaceDetect       bool // requires the facedetect filter
	TextDensityBin   string
	TesseractBin     string
	EnableTesseract  bool
	EmotionBin       string
}

// cap bounds the analyzed duration.
func (c Config) horizon(durationSec float64) float64 {
	maxSec := float64(c.AnalyzeMax)
	if maxSec <= 0 {
		maxSec = DefaultAnalyzeMaxSeconds
	}
	if durationSec > maxSec {
		return maxSec
	}
	return durationSec
}

// ExtractAll fans the independent extractors out and gathers a Set. Only
// context cancellation aborts the group; individual extractor failures are
// logged and produce empty tracks.
func ExtractAll(ctx context.Context, runner *media.Runner, cfg Config, inputPath string, durationSec float64) (Set, error) {
	horizon := cfg.horizon(durationSec)
	logger := log.WithJob("signals", runner.JobID)
	started := time.Now()

	var set Set
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		energy, silences, err := ExtractAudio(gctx, runner, cfg, inputPath, horizon)
		if err != nil {
			logger.Warn().Err(err).Msg("audio extraction failed, continuing without")
			return ctxOnly(gctx)
		}
		set.AudioEnergy = energy
		set.Silences = silences
		return nil
	})
	g.Go(func() error {
		scenes, err := ExtractSceneChanges(gctx, runner, cfg, inputPath, horizon)
		if err != nil {
			logger.Warn().Err(err).Msg("scene extraction failed, continuing without")
			return ctxOnly(gctx)
		}
		set.SceneChanges = scenes
		return nil
	})
	if cfg.FaceDetect {
		g.Go(func() error {
			faces, err := ExtractFaces(gctx, runner, cfg, inputPath, horizon)
			if err != nil {
				logger.Warn().Err(err).Msg("face extraction failed, continuing without")
				return ctxOnly(gctx)
			}
			set.Faces = faces
			return nil
		})
	}
	if cfg.TextDensityBin != "" || cfg.EnableTesseract {
		g.Go(func() error {
			text, err := ExtractTextDensity(gctx, runner, cfg, inputPath, horizon)
			if err != nil {
				logger.Warn().Err(err).Msg("text density extraction failed, continuing without")
				return ctxOnly(gctx)
			}
			set.Text = text
			return nil
		})
	}
	if cfg.EmotionBin != "" {
		g.Go(func() error {
			emotion, err := ExtractEmotion(gctx, runner, cfg, inputPath, horizon)
			if err != nil {
				logger.Warn().Err(err).Msg("emotion extraction failed, continuing without")
				return ctxOnly(gctx)
			}
			set.Emotion = emotion
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return set, err
	}
	logger.Info().
		Dur("elapsed", time.Since(started)).
		Int("audio_seconds", len(set.AudioEnergy)).
		Int("scene_changes", len(set.SceneChanges)).
		Int("face_samples", len(set.Faces)).
		Msg("signal extraction complete")
	return set, nil
}

// ctxOnly propagates only cancellation, swallowing the extractor error.
func ctxOnly(ctx context.Context) error {
	return ctx.Err()
}
