package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/Marquise34567/editor-backend-sub000/internal/jobstore"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/planner"
	"github.com/Marquise34567/editor-backend-sub000/internal/render"
	"github.com/Marquise34567/editor-backend-sub000/internal/storage"
	"github.com/Marquise34567/editor-backend-sub000/internal/transcript"
)

// stageSubtitles writes the burn-in subtitle file for the final timeline.
func (r *jobRun) stageSubtitles() error {
	cues := buildOutputCues(r.planState.final, r.styleState.cues)
	if len(cues) == 0 {
		return nil
	}
	targetW, targetH := r.rc.TargetDimensions(r.probe.Width, r.probe.Height)

	if r.rc.CaptionPreset == render.CaptionPresetAnimated {
		path := filepath.Join(r.scratch, "captions.ass")
		if err := render.WriteAnimatedASS(path, cues, targetW, targetH); err != nil {
			return fmt.Errorf("write animated captions: %w", err)
		}
		r.subtitlePath = path
		return nil
	}

	path := filepath.Join(r.scratch, "captions.srt")
	if err := renameio.WriteFile(path, []byte(transcript.FormatSRT(cues)), 0o644); err != nil {
		return fmt.Errorf("write captions: %w", err)
	}
	r.subtitlePath = path
	return nil
}

// stageRender runs RENDER_FINAL: the horizontal output, optional vertical
// clips, and the artifact uploads.
func (r *jobRun) stageRender(ctx context.Context) error {
	return r.step(ctx, model.StepRenderFinal, func(ctx context.Context) (map[string]interface{}, error) {
		plan := r.planState.final
		if plan == nil || len(plan.Segments) == 0 {
			return nil, model.ErrNoRenderableSegments
		}
		segments := planner.CapSegments(plan.Segments, r.deps.Cfg.MaxRenderSegments)
		targetW, targetH := r.rc.TargetDimensions(r.probe.Width, r.probe.Height)

		exec := render.NewExecutor(r.runner, r.deps.Caps, render.EncoderSettings{
			Preset:          r.deps.Cfg.FFmpegPreset,
			CRF:             r.deps.Cfg.FFmpegCRF,
			AudioBitrate:    r.deps.Cfg.FFmpegAudioBitrate,
			SampleRate:      r.deps.Cfg.FFmpegAudioSampleRate,
			FilterThreads:   r.deps.Cfg.FFmpegFilterThreads,
			ScriptThreshold: r.deps.Cfg.FilterComplexScriptThreshold,
		}, r.scratch)

		watermarkImage := r.rc.Watermark && r.deps.Cfg.WatermarkImagePath != ""
		opts := render.GraphOptions{
			Segments:      segments,
			SourceWidth:   r.probe.Width,
			SourceHeight:  r.probe.Height,
			TargetWidth:   targetW,
			TargetHeight:  targetH,
			Fit:           r.rc.Fit,
			HasAudio:      r.probe.HasAudio,
			Transitions:   r.rc.Transitions,
			SubtitlePath:  r.subtitlePath,
			SubtitleStyle: render.PlainSubtitleStyle,
			SampleRate:    r.deps.Cfg.FFmpegAudioSampleRate,
			FilterThreads: r.deps.Cfg.FFmpegFilterThreads,
		}
		if watermarkImage {
			opts.WatermarkImage = true
		} else if r.rc.Watermark {
			opts.WatermarkText = "made with editor"
		}
		if r.rc.AudioPolish {
			opts.AudioPolish = render.PolishForPlatform(r.rc.TargetPlatform)
		}

		outputPath := filepath.Join(r.scratch, "output.mp4")
		if err := exec.Render(ctx, r.inputPath, outputPath, opts, r.deps.Cfg.WatermarkImagePath); err != nil {
			return nil, err
		}

		outputKey := storage.OutputKey(r.job.OwnerUserID, r.job.ID)
		if err := r.deps.Storage.UploadFile(ctx, outputKey, outputPath, "video/mp4"); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrOutputUploadMissing, err)
		}
		outputPaths := []string{outputKey}

		var verticalKeys []string
		if r.rc.Mode == model.RenderVertical {
			keys, err := r.renderVerticalClips(ctx, exec)
			if err != nil {
				return nil, err
			}
			verticalKeys = keys
			outputPaths = append(outputPaths, keys...)
		}

		finalQuality := r.finalQuality(targetW, targetH)
		patch := model.JobPatch{
			OutputObjectKey:         &outputKey,
			FinalQuality:            &finalQuality,
			WatermarkApplied:        &r.rc.Watermark,
			AppendOptimizationNotes: exec.Notes,
		}
		if len(verticalKeys) > 0 {
			patch.VerticalOutputObjectKeys = &verticalKeys
		}
		job, err := r.deps.Jobs.Update(ctx, r.job.ID, patch, jobstore.UpdateOptions{})
		if err != nil {
			return nil, fmt.Errorf("persist render outputs: %w", err)
		}
		r.job = job

		if data, merr := json.Marshal(r.ensureAnalysis()); merr == nil {
			r.uploadAnalysis(ctx, data)
		}

		return map[string]interface{}{
			"outputPaths":   outputPaths,
			"finalQuality":  finalQuality,
			"fallbackNotes": len(exec.Notes),
		}, nil
	})
}

// renderVerticalClips picks the clip windows, renders each and uploads it.
// Per-clip subtitle files are persisted next to the clip; they burn in
// only when captions were explicitly enabled.
func (r *jobRun) renderVerticalClips(ctx context.Context, exec *render.Executor) ([]string, error) {
	clips := render.PickVerticalClips(r.styleState.windows, r.probe.DurationSeconds, r.rc.VerticalClipCount, r.rc.TargetPlatform)
	var keys []string
	for i, clip := range clips {
		var subPath string
		clipCues := transcript.RemapToWindow(r.styleState.cues, clip.Start, clip.End)
		if len(clipCues) > 0 {
			sidecar := filepath.Join(r.scratch, fmt.Sprintf("clip-%d.srt", i+1))
			if err := renameio.WriteFile(sidecar, []byte(transcript.FormatSRT(clipCues)), 0o644); err == nil && r.rc.AutoCaptions {
				subPath = sidecar
			}
		}

		graph := render.BuildVerticalGraph(clip, r.rc.VerticalLayout, r.rc.WebcamCrop, subPath, render.PlainSubtitleStyle, r.deps.Cfg.FFmpegAudioSampleRate)
		clipPath := filepath.Join(r.scratch, fmt.Sprintf("clip-%d.mp4", i+1))
		if err := exec.RenderVerticalClip(ctx, r.inputPath, clipPath, graph); err != nil {
			return nil, fmt.Errorf("vertical clip %d: %w", i+1, err)
		}

		key := storage.VerticalClipKey(r.job.OwnerUserID, r.job.ID, i+1)
		if err := r.deps.Storage.UploadFile(ctx, key, clipPath, "video/mp4"); err != nil {
			return nil, fmt.Errorf("upload vertical clip %d: %w", i+1, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (r *jobRun) finalQuality(w, h int) string {
	if r.rc.Mode == model.RenderVertical {
		return "vertical_1080x1920"
	}
	if r.rc.Horizontal.Kind == model.HorizontalQuality {
		return r.rc.Horizontal.Quality
	}
	return fmt.Sprintf("%dx%d", w, h)
}

// stageRetention persists the final retention record as RETENTION_SCORE.
func (r *jobRun) stageRetention(ctx context.Context) error {
	return r.step(ctx, model.StepRetentionScore, func(ctx context.Context) (map[string]interface{}, error) {
		report := r.planState.report
		score := report.RetentionScore
		patch := model.JobPatch{RetentionScore: &score}
		if len(report.WhyKeepWatching) > 0 {
			patch.AppendOptimizationNotes = report.WhyKeepWatching
		}
		job, err := r.deps.Jobs.Update(ctx, r.job.ID, patch, jobstore.UpdateOptions{})
		if err != nil {
			return nil, fmt.Errorf("persist retention score: %w", err)
		}
		r.job = job
		return map[string]interface{}{
			"retention_score": round2(report.RetentionScore),
			"hook_strength":   round2(report.HookStrength),
			"pacing_score":    round2(report.PacingScore),
			"clarity_score":   round2(report.ClarityScore),
			"emotional_pull":  round2(report.EmotionalPull),
			"passed":          report.Passed,
		}, nil
	})
}

// buildOutputCues maps source-timeline cues onto the output timeline:
// per-segment remap, speed compression and the accumulated offset.
func buildOutputCues(plan *model.EditPlan, cues []model.TranscriptCue) []model.TranscriptCue {
	if plan == nil || len(cues) == 0 {
		return nil
	}
	var out []model.TranscriptCue
	var offset float64
	for _, seg := range plan.Segments {
		speed := seg.Speed
		if speed <= 0 {
			speed = 1
		}
		for _, cue := range transcript.RemapToWindow(cues, seg.Start, seg.End) {
			cue.Start = offset + cue.Start/speed
			cue.End = offset + cue.End/speed
			out = append(out, cue)
		}
		offset += seg.OutputDuration()
	}
	return out
}
