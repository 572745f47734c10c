package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/Marquise34567/editor-backend-sub000/internal/log"
	"github.com/Marquise34567/editor-backend-sub000/internal/media"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// EncoderSettings carries the encode-side knobs.
type EncoderSettings struct {
	Preset          string
	CRF             int
	AudioBitrate    string
	SampleRate      int
	FilterThreads   int
	ScriptThreshold int // filter strings longer than this spill to a file
}

// Executor runs render graphs for one job with the full fallback ladder.
type Executor struct {
	Runner  *media.Runner
	Caps    media.Capabilities
	Enc     EncoderSettings
	WorkDir string

	logger zerolog.Logger
	// Notes documents every fallback taken, persisted as optimization notes.
	Notes []string
}

// NewExecutor builds an executor for one job.
func NewExecutor(runner *media.Runner, caps media.Capabilities, enc EncoderSettings, workDir string) *Executor {
	if enc.ScriptThreshold <= 0 {
		enc.ScriptThreshold = 16000
	}
	return &Executor{
		Runner:  runner,
		Caps:    caps,
		Enc:     enc,
		WorkDir: workDir,
		logger:  log.WithJob("render", runner.JobID),
	}
}

func (e *Executor) note(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	e.Notes = append(e.Notes, msg)
	e.logger.Info().Msg(msg)
}

// Render runs the graph against inputPath and writes outputPath, walking
// the ladder: full graph, reduced variants, segment-file fallback, then
// an emergency zero-effect render.
func (e *Executor) Render(ctx context.Context, inputPath, outputPath string, opts GraphOptions, watermarkPath string) error {
	if len(opts.Segments) == 0 {
		return model.ErrNoRenderableSegments
	}

	variants := e.graphVariants(opts)
	var lastErr error
	for i, variant := range variants {
		if err := e.Runner.CheckCanceled(); err != nil {
			return err
		}
		err := e.runGraph(ctx, inputPath, outputPath, variant.opts, watermarkPath)
		if err == nil {
			if i > 0 {
				e.note("render fallback used: %s", variant.label)
			}
			return e.verifyOutput(outputPath)
		}
		lastErr = err
		e.logger.Warn().Err(err).Str("variant", variant.label).Msg("filter-graph render failed")
	}

	e.note("all filter-graph variants failed, using segment-file fallback")
	if err := e.renderBySegments(ctx, inputPath, outputPath, opts); err == nil {
		return e.verifyOutput(outputPath)
	} else {
		lastErr = err
		e.logger.Warn().Err(err).Msg("segment-file fallback failed")
	}

	e.note("emergency render with zeroed effects")
	if err := e.renderEmergency(ctx, inputPath, outputPath, opts); err != nil {
		return model.EditedRenderError(fmt.Sprintf("emergency render failed after %v", lastErr))
	}
	return e.verifyOutput(outputPath)
}

type graphVariant struct {
	label string
	opts  GraphOptions
}

// graphVariants orders the reduced graphs: the full build first, then
// without xfade stitches, then without overlays.
func (e *Executor) graphVariants(opts GraphOptions) []graphVariant {
	full := opts
	full.HasXfade = e.Caps.HasXfade && opts.Transitions
	variants := []graphVariant{{label: "full graph", opts: full}}

	if full.HasXfade {
		noXfade := full
		noXfade.Transitions = false
		variants = append(variants, graphVariant{label: "xfade disabled", opts: noXfade})
	}
	if full.SubtitlePath != "" || full.WatermarkImage || full.WatermarkText != "" {
		bare := full
		bare.Transitions = false
		bare.SubtitlePath = ""
		bare.WatermarkImage = false
		bare.WatermarkText = ""
		variants = append(variants, graphVariant{label: "overlays dropped", opts: bare})
	}
	return variants
}

// runGraph executes one graph build, spilling long filter strings to a
// script file.
func (e *Executor) runGraph(ctx context.Context, inputPath, outputPath string, opts GraphOptions, watermarkPath string) error {
	graph := BuildGraph(opts)

	args := []string{"-hide_banner", "-y", "-i", inputPath}
	if opts.WatermarkImage && watermarkPath != "" {
		args = append(args, "-i", watermarkPath)
	}
	if opts.NoiseFxPath != "" {
		args = append(args, "-stream_loop", "-1", "-i", opts.NoiseFxPath)
	}
	if e.Enc.FilterThreads > 0 {
		args = append(args, "-filter_threads", strconv.Itoa(e.Enc.FilterThreads))
	}

	if len(graph.FilterComplex) > e.Enc.ScriptThreshold {
		scriptPath := filepath.Join(e.WorkDir, "filtergraph.txt")
		if err := renameio.WriteFile(scriptPath, []byte(graph.FilterComplex), 0o644); err != nil {
			return fmt.Errorf("write filter script: %w", err)
		}
		e.note("filter graph %d chars, spilled to script file", len(graph.FilterComplex))
		args = append(args, "-filter_complex_script", scriptPath)
	} else {
		args = append(args, "-filter_complex", graph.FilterComplex)
	}

	args = append(args, "-map", graph.VideoLabel)
	if opts.HasAudio && graph.AudioLabel != "" {
		args = append(args, "-map", graph.AudioLabel)
	}
	args = append(args, e.encodeArgs()...)
	args = append(args, outputPath)

	res, err := e.Runner.Run(ctx, e.Caps.FFmpegPath, args)
	if err != nil {
		return fmt.Errorf("%w: %s", err, res.StderrTail())
	}
	return nil
}

// renderBySegments renders every segment to its own file, then concats:
// stream copy first, transcode if the copy fails, and an optional second
// pass for subtitles/audio polish over the concat output.
func (e *Executor) renderBySegments(ctx context.Context, inputPath, outputPath string, opts GraphOptions) error {
	listPath := filepath.Join(e.WorkDir, "concat.txt")
	var list strings.Builder

	for i, seg := range opts.Segments {
		segPath := filepath.Join(e.WorkDir, fmt.Sprintf("seg-%03d.mp4", i))
		segOpts := opts
		segOpts.Segments = []model.Segment{seg}
		segOpts.Transitions = false
		segOpts.SubtitlePath = ""
		segOpts.WatermarkImage = false
		segOpts.WatermarkText = ""
		segOpts.NoiseFxPath = ""
		segOpts.AudioPolish = AudioPolishOptions{}
		if err := e.runGraph(ctx, inputPath, segPath, segOpts, ""); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		fmt.Fprintf(&list, "file '%s'\n", segPath)
	}
	if err := renameio.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	concatPath := outputPath
	needsSecondPass := opts.SubtitlePath != "" || opts.AudioPolish.Enabled
	if needsSecondPass {
		concatPath = filepath.Join(e.WorkDir, "concat-out.mp4")
	}

	copyArgs := []string{"-hide_banner", "-y", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", concatPath}
	if _, err := e.Runner.Run(ctx, e.Caps.FFmpegPath, copyArgs); err != nil {
		e.note("stream-copy concat failed, transcoding concat")
		args := []string{"-hide_banner", "-y", "-f", "concat", "-safe", "0", "-i", listPath}
		args = append(args, e.encodeArgs()...)
		args = append(args, concatPath)
		if _, err := e.Runner.Run(ctx, e.Caps.FFmpegPath, args); err != nil {
			return fmt.Errorf("transcode concat: %w", err)
		}
	}
	if !needsSecondPass {
		return nil
	}

	if err := e.secondPass(ctx, concatPath, outputPath, opts); err != nil {
		// Accept the concat result, recording the degradation.
		e.note("second pass failed, shipping concat output without post-processing")
		return os.Rename(concatPath, outputPath)
	}
	return nil
}

// secondPass applies subtitles and audio polish over an already-stitched
// file.
func (e *Executor) secondPass(ctx context.Context, inputPath, outputPath string, opts GraphOptions) error {
	var filters []string
	if opts.SubtitlePath != "" {
		filters = append(filters, fmt.Sprintf("subtitles='%s'%s", escapeFilterPath(opts.SubtitlePath), subtitleStyleArg(opts.SubtitleStyle)))
	}
	args := []string{"-hide_banner", "-y", "-i", inputPath}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	} else {
		args = append(args, "-c:v", "copy")
	}
	if opts.AudioPolish.Enabled {
		args = append(args, "-af", audioPolishChain(opts.AudioPolish))
	} else {
		args = append(args, "-c:a", "copy")
	}
	if len(filters) > 0 {
		args = append(args, e.encodeArgs()...)
	}
	args = append(args, outputPath)
	_, err := e.Runner.Run(ctx, e.Caps.FFmpegPath, args)
	return err
}

// renderEmergency preserves cut boundaries only: speed 1, no zoom, no
// overlays, plain concat.
func (e *Executor) renderEmergency(ctx context.Context, inputPath, outputPath string, opts GraphOptions) error {
	zeroed := opts
	zeroed.Transitions = false
	zeroed.SubtitlePath = ""
	zeroed.WatermarkImage = false
	zeroed.WatermarkText = ""
	zeroed.NoiseFxPath = ""
	zeroed.AudioPolish = AudioPolishOptions{}
	zeroed.Segments = make([]model.Segment, len(opts.Segments))
	for i, seg := range opts.Segments {
		seg.Speed = 1
		seg.Zoom = 0
		seg.Brightness = 0
		seg.AudioGain = 1
		seg.SoundFxLevel = 0
		zeroed.Segments[i] = seg
	}
	return e.runGraph(ctx, inputPath, outputPath, zeroed, "")
}

// verifyOutput enforces the non-empty regular file contract.
func (e *Executor) verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return model.ErrOutputMissingAfterRender
	}
	if info.Size() == 0 {
		return model.ErrOutputEmptyAfterRender
	}
	return nil
}

func (e *Executor) encodeArgs() []string {
	preset := e.Enc.Preset
	if preset == "" {
		preset = "veryfast"
	}
	crf := e.Enc.CRF
	if crf <= 0 {
		crf = 21
	}
	bitrate := e.Enc.AudioBitrate
	if bitrate == "" {
		bitrate = "160k"
	}
	return []string{
		"-c:v", "libx264", "-preset", preset, "-crf", strconv.Itoa(crf),
		"-pix_fmt", "yuv420p", "-movflags", "+faststart",
		"-c:a", "aac", "-b:a", bitrate,
	}
}
