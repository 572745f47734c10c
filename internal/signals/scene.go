package signals

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Marquise34567/editor-backend-sub000/internal/media"
)

// SceneThreshold is the scene-change detection sensitivity.
const SceneThreshold = 0.45

// ExtractSceneChanges runs select/showinfo and collects the pts_time of
// every frame past the scene threshold.
func ExtractSceneChanges(ctx context.Context, runner *media.Runner, cfg Config, inputPath string, horizon float64) ([]float64, error) {
	args := []string{
		"-hide_banner", "-nostats",
		"-t", formatSeconds(horizon),
		"-i", inputPath,
		"-vf", fmt.Sprintf("select='gt(scene,%0.2f)',showinfo", SceneThreshold),
		"-f", "null", "-",
	}
	res, err := runner.Run(ctx, cfg.FFmpegBin, args)
	if err != nil {
		return nil, fmt.Errorf("scene detect: %w", err)
	}
	return ParseSceneTimes(res.Stderr, horizon), nil
}

// ParseSceneTimes pulls pts_time values out of showinfo lines.
func ParseSceneTimes(stderr string, horizon float64) []float64 {
	var out []float64
	for _, line := range strings.Split(stderr, "\n") {
		if !strings.Contains(line, "Parsed_showinfo") {
			continue
		}
		idx := strings.Index(line, "pts_time:")
		if idx < 0 {
			continue
		}
		val := line[idx+len("pts_time:"):]
		if end := strings.IndexAny(val, " \t"); end > 0 {
			val = val[:end]
		}
		if t, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil && t >= 0 && t <= horizon {
			out = append(out, t)
		}
	}
	return out
}
