package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Marquise34567/editor-backend-sub000/internal/engagement"
	"github.com/Marquise34567/editor-backend-sub000/internal/jobstore"
	"github.com/Marquise34567/editor-backend-sub000/internal/media"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/planner"
	"github.com/Marquise34567/editor-backend-sub000/internal/signals"
	"github.com/Marquise34567/editor-backend-sub000/internal/storage"
	"github.com/Marquise34567/editor-backend-sub000/internal/transcript"
)

// stageInput stages the source file into the scratch dir and probes it.
// The duration must be known before any analysis child is spawned.
func (r *jobRun) stageInput(ctx context.Context) error {
	r.analysis = r.job.Analysis
	r.rc = r.renderConfig()

	r.inputPath = r.job.InputPath
	if r.inputPath == "" || !fileExists(r.inputPath) {
		if r.job.InputObjectKey == "" {
			return model.ErrInputMissingAfterDownload
		}
		if err := r.setStatus(ctx, model.StatusUploading, 3); err != nil {
			return err
		}
		dest := filepath.Join(r.scratch, "input"+filepath.Ext(r.job.InputObjectKey))
		if err := r.deps.Storage.DownloadObjectToFile(ctx, r.job.InputObjectKey, dest); err != nil {
			return err
		}
		r.inputPath = dest
		if _, err := r.deps.Jobs.Update(ctx, r.job.ID, model.JobPatch{InputPath: &dest}, jobstore.UpdateOptions{}); err != nil {
			return fmt.Errorf("persist input path: %w", err)
		}
	}

	info, err := media.Probe(ctx, r.runner, r.deps.Caps.FFprobePath, r.inputPath)
	if err != nil {
		if errors.Is(err, model.ErrDurationUnavailable) {
			return model.ErrDurationUnavailable
		}
		return fmt.Errorf("probe input: %w", err)
	}
	r.probe = info
	if _, err := r.deps.Jobs.Update(ctx, r.job.ID, model.JobPatch{InputDurationSeconds: &info.DurationSeconds}, jobstore.UpdateOptions{}); err != nil {
		return fmt.Errorf("persist duration: %w", err)
	}
	return nil
}

func (r *jobRun) renderConfig() model.RenderConfig {
	if r.job.RenderSettings != nil {
		rc := *r.job.RenderSettings
		rc.Normalize()
		return rc
	}
	if r.job.Analysis != nil && r.job.Analysis.RenderSettings != nil {
		return model.ParseRenderConfig(r.job.Analysis.RenderSettings)
	}
	rc := model.RenderConfig{}
	rc.Normalize()
	return rc
}

// stageAnalysis runs TRANSCRIBE, FRAME_ANALYSIS and BEST_MOMENT_SCORING.
func (r *jobRun) stageAnalysis(ctx context.Context) error {
	if err := r.step(ctx, model.StepTranscribe, func(ctx context.Context) (map[string]interface{}, error) {
		cues, err := transcript.Transcribe(ctx, r.runner, transcript.SidecarConfig{
			Bin:   r.deps.Cfg.WhisperBin,
			Model: r.deps.Cfg.WhisperModel,
			Args:  r.deps.Cfg.WhisperArgs,
		}, r.inputPath, r.scratch)
		if err != nil {
			return nil, err
		}
		r.styleState.cues = cues
		return map[string]interface{}{"cues": len(cues)}, nil
	}); err != nil {
		return err
	}

	if err := r.step(ctx, model.StepFrameAnalysis, func(ctx context.Context) (map[string]interface{}, error) {
		set, err := signals.ExtractAll(ctx, r.runner, signals.Config{
			FFmpegBin:       r.deps.Caps.FFmpegPath,
			AnalyzeMax:      r.deps.Cfg.HookAnalyzeMaxSeconds,
			FrameFPS:        r.deps.Cfg.AnalysisFrameFPS,
			FrameWidth:      r.deps.Cfg.AnalysisFrameWidth,
			WorkDir:         r.scratch,
			FaceDetect:      r.deps.Caps.HasFaceDetect && !r.deps.Cfg.DisableFaceDetection,
			TextDensityBin:  r.textDensityBin(),
			TesseractBin:    r.deps.Cfg.TesseractBin,
			EnableTesseract: r.deps.Cfg.EnableTesseract && !r.deps.Cfg.DisableTextDensity,
			EmotionBin:      r.emotionBin(),
		}, r.inputPath, r.probe.DurationSeconds)
		if err != nil {
			return nil, err
		}
		r.styleState.set = set
		return map[string]interface{}{
			"audio_seconds": len(set.AudioEnergy),
			"scene_changes": len(set.SceneChanges),
			"silences":      len(set.Silences),
			"face_samples":  len(set.Faces),
		}, nil
	}); err != nil {
		return err
	}

	return r.step(ctx, model.StepBestMomentScoring, func(ctx context.Context) (map[string]interface{}, error) {
		windows := engagement.BuildWindows(r.styleState.set, r.styleState.cues, r.probe.DurationSeconds)
		r.styleState.windows = windows
		r.styleState.signal = planner.GradeSignal(windows)

		a := r.ensureAnalysis()
		a.Windows = windows
		a.TranscriptCues = r.styleState.cues
		if err := r.patchAnalysis(ctx); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"windows": len(windows),
			"signal":  string(r.styleState.signal),
		}, nil
	})
}

// uploadAnalysis pushes the blob to object storage; failures only log
// since the blob also lives in the job store.
func (r *jobRun) uploadAnalysis(ctx context.Context, data []byte) {
	key := storage.AnalysisKey(r.job.OwnerUserID, r.job.ID)
	if err := r.deps.Storage.UploadBuffer(ctx, key, data, "application/json"); err != nil {
		r.logger.Warn().Err(err).Msg("analysis blob upload failed")
	}
}

func (r *jobRun) textDensityBin() string {
	if r.deps.Cfg.DisableTextDensity {
		return ""
	}
	return r.deps.Cfg.TextDensityModelBin
}

func (r *jobRun) emotionBin() string {
	if r.deps.Cfg.DisableEmotionModel {
		return ""
	}
	return r.deps.Cfg.EmotionModelBin
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
