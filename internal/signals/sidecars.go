package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Marquise34567/editor-backend-sub000/internal/media"
)

// ExtractFrames decodes analysis JPEGs at the configured fps/width into the
// working directory. These frames feed analysis-only sidecars, never the
// final render.
func ExtractFrames(ctx context.Context, runner *media.Runner, cfg Config, inputPath string, horizon float64) (string, error) {
	framesDir := filepath.Join(cfg.WorkDir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil { // #nosec G301
		return "", fmt.Errorf("create frames dir: %w", err)
	}
	fps := cfg.FrameFPS
	if fps <= 0 {
		fps = 2
	}
	width := cfg.FrameWidth
	if width <= 0 {
		width = 360
	}
	args := []string{
		"-hide_banner", "-nostats",
		"-t", formatSeconds(horizon),
		"-i", inputPath,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:-2", fps, width),
		"-q:v", "5",
		filepath.Join(framesDir, "frame-%06d.jpg"),
	}
	if _, err := runner.Run(ctx, cfg.FFmpegBin, args); err != nil {
		return "", fmt.Errorf("frame extraction: %w", err)
	}
	return framesDir, nil
}

// ExtractTextDensity invokes the OCR sidecar over extracted frames. The
// sidecar prints one "second density" pair per line; tesseract fallback
// derives density from recognized word count.
func ExtractTextDensity(ctx context.Context, runner *media.Runner, cfg Config, inputPath string, horizon float64) ([]TextSample, error) {
	framesDir, err := ExtractFrames(ctx, runner, cfg, inputPath, horizon)
	if err != nil {
		return nil, err
	}
	bin := cfg.TextDensityBin
	if bin == "" {
		if !cfg.EnableTesseract {
			return nil, nil
		}
		bin = cfg.TesseractBin
	}
	fps := cfg.FrameFPS
	if fps <= 0 {
		fps = 2
	}
	res, err := runner.Run(ctx, bin, []string{framesDir, "--fps", strconv.Itoa(fps)})
	if err != nil {
		return nil, fmt.Errorf("text density sidecar: %w", err)
	}
	return parseTextDensity(res.Stdout, horizon), nil
}

func parseTextDensity(out string, horizon float64) []TextSample {
	seconds := int(math.Floor(horizon))
	var samples []TextSample
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		sec, err1 := strconv.Atoi(fields[0])
		density, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil || sec < 0 || sec >= seconds {
			continue
		}
		samples = append(samples, TextSample{Second: sec, Density: clampF(density, 0, 1)})
	}
	return samples
}

// ExtractEmotion invokes the optional emotion sidecar, which prints a JSON
// list of {time, intensity} readings on stdout.
func ExtractEmotion(ctx context.Context, runner *media.Runner, cfg Config, inputPath string, horizon float64) ([]EmotionSample, error) {
	res, err := runner.Run(ctx, cfg.EmotionBin, []string{inputPath, "--max-seconds", formatSeconds(horizon)})
	if err != nil {
		return nil, fmt.Errorf("emotion sidecar: %w", err)
	}
	var samples []EmotionSample
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &samples); err != nil {
		return nil, fmt.Errorf("decode emotion output: %w", err)
	}
	out := samples[:0]
	for _, s := range samples {
		if s.Time >= 0 && s.Time <= horizon {
			s.Intensity = clampF(s.Intensity, 0, 1)
			out = append(out, s)
		}
	}
	return out, nil
}
