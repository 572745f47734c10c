package signals

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Marquise34567/editor-backend-sub000/internal/media"
)

// SilenceRange marks a detected silence interval.
type SilenceRange struct {
	Start float64
	End   float64
}

// MinSilenceSeconds is the shortest silence worth trimming.
const MinSilenceSeconds = 0.8

// ExtractAudio runs the astats/ametadata filter and buckets RMS levels by
// integer second, keeping the per-second max. It also runs silencedetect
// over the same horizon.
func ExtractAudio(ctx context.Context, runner *media.Runner, cfg Config, inputPath string, horizon float64) ([]float64, []SilenceRange, error) {
	args := []string{
		"-hide_banner", "-nostats",
		"-t", formatSeconds(horizon),
		"-i", inputPath,
		"-af", "astats=metadata=1:reset=1,ametadata=print:key=lavfi.astats.Overall.RMS_level,silencedetect=noise=-37dB:d=" + formatSeconds(MinSilenceSeconds),
		"-f", "null", "-",
	}
	res, err := runner.Run(ctx, cfg.FFmpegBin, args)
	if err != nil {
		return nil, nil, fmt.Errorf("audio stats: %w", err)
	}
	energy := ParseRMSLevels(res.Stderr, horizon)
	silences := ParseSilences(res.Stderr, horizon)
	return energy, silences, nil
}

// ParseRMSLevels scans ametadata print output for pts_time/RMS_level pairs
// and normalizes dB into [0,1] via (clamp(rms,-60,0)+60)/60.
func ParseRMSLevels(stderr string, horizon float64) []float64 {
	seconds := int(math.Floor(horizon))
	if seconds <= 0 {
		return nil
	}
	energy := make([]float64, seconds)

	var lastPTS float64 = -1
	for _, line := range strings.Split(stderr, "\n") {
		if idx := strings.Index(line, "pts_time:"); idx >= 0 {
			val := strings.TrimSpace(line[idx+len("pts_time:"):])
			if end := strings.IndexAny(val, " \t"); end > 0 {
				val = val[:end]
			}
			if pts, err := strconv.ParseFloat(val, 64); err == nil {
				lastPTS = pts
			}
			continue
		}
		if idx := strings.Index(line, "RMS_level="); idx >= 0 && lastPTS >= 0 {
			val := strings.TrimSpace(line[idx+len("RMS_level="):])
			rms, err := strconv.ParseFloat(val, 64)
			if err != nil {
				// "-inf" on digital silence
				rms = -60
			}
			sec := int(lastPTS)
			if sec >= 0 && sec < seconds {
				norm := (clampF(rms, -60, 0) + 60) / 60
				if norm > energy[sec] {
					energy[sec] = norm
				}
			}
		}
	}
	return energy
}

// ParseSilences scans silencedetect output for silence_start/_end pairs.
// An unterminated trailing silence is closed at the horizon. Runs shorter
// than MinSilenceSeconds are dropped.
func ParseSilences(stderr string, horizon float64) []SilenceRange {
	var out []SilenceRange
	var openStart float64 = -1
	for _, line := range strings.Split(stderr, "\n") {
		if idx := strings.Index(line, "silence_start:"); idx >= 0 {
			if v, err := strconv.ParseFloat(strings.TrimSpace(line[idx+len("silence_start:"):]), 64); err == nil {
				openStart = v
			}
			continue
		}
		if idx := strings.Index(line, "silence_end:"); idx >= 0 && openStart >= 0 {
			rest := strings.TrimSpace(line[idx+len("silence_end:"):])
			if cut := strings.IndexAny(rest, " |"); cut > 0 {
				rest = rest[:cut]
			}
			if v, err := strconv.ParseFloat(rest, 64); err == nil && v > openStart {
				if v-openStart >= MinSilenceSeconds {
					out = append(out, SilenceRange{Start: openStart, End: v})
				}
			}
			openStart = -1
		}
	}
	if openStart >= 0 && horizon-openStart >= MinSilenceSeconds {
		out = append(out, SilenceRange{Start: openStart, End: horizon})
	}
	return out
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
