package signals

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Marquise34567/editor-backend-sub000/internal/media"
)

// faceBox is one detected box from the facedetect filter metadata.
type faceBox struct {
	t          float64
	x, y, w, h float64
}

// ExtractFaces runs the facedetect filter (when the media tool exposes it)
// and folds per-box metadata into per-second presence, intensity and an
// area-weighted centroid.
func ExtractFaces(ctx context.Context, runner *media.Runner, cfg Config, inputPath string, horizon float64) ([]FaceSample, error) {
	args := []string{
		"-hide_banner", "-nostats",
		"-t", formatSeconds(horizon),
		"-i", inputPath,
		"-vf", "fps=2,facedetect,metadata=print",
		"-f", "null", "-",
	}
	res, err := runner.Run(ctx, cfg.FFmpegBin, args)
	if err != nil {
		return nil, fmt.Errorf("face detect: %w", err)
	}
	boxes := parseFaceBoxes(res.Stderr)
	return FoldFaceBoxes(boxes, horizon), nil
}

// parseFaceBoxes reads metadata=print output: a pts_time line followed by
// lavfi.facedetect.N.{x,y,w,h} lines.
func parseFaceBoxes(stderr string) []faceBox {
	var out []faceBox
	var cur float64 = -1
	pending := map[string]*faceBox{}

	flush := func() {
		for _, b := range pending {
			if b.w > 0 && b.h > 0 {
				out = append(out, *b)
			}
		}
		pending = map[string]*faceBox{}
	}

	for _, line := range strings.Split(stderr, "\n") {
		if idx := strings.Index(line, "pts_time:"); idx >= 0 {
			flush()
			val := line[idx+len("pts_time:"):]
			if end := strings.IndexAny(val, " \t"); end > 0 {
				val = val[:end]
			}
			if t, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
				cur = t
			}
			continue
		}
		idx := strings.Index(line, "lavfi.facedetect.")
		if idx < 0 || cur < 0 {
			continue
		}
		rest := line[idx+len("lavfi.facedetect."):]
		eq := strings.Index(rest, "=")
		if eq < 0 {
			continue
		}
		keyParts := strings.SplitN(rest[:eq], ".", 2)
		if len(keyParts) != 2 {
			continue
		}
		boxID, field := keyParts[0], keyParts[1]
		val, err := strconv.ParseFloat(strings.TrimSpace(rest[eq+1:]), 64)
		if err != nil {
			continue
		}
		b, ok := pending[boxID]
		if !ok {
			b = &faceBox{t: cur}
			pending[boxID] = b
		}
		switch field {
		case "x":
			b.x = val
		case "y":
			b.y = val
		case "w":
			b.w = val
		case "h":
			b.h = val
		}
	}
	flush()
	return out
}

// FoldFaceBoxes buckets boxes by second. Intensity tracks the largest box
// area (relative to a nominal 640x360 analysis frame); the centroid is
// area-weighted.
func FoldFaceBoxes(boxes []faceBox, horizon float64) []FaceSample {
	seconds := int(math.Floor(horizon))
	if seconds <= 0 {
		return nil
	}
	const frameArea = 640.0 * 360.0
	type acc struct {
		maxArea   float64
		sumWX     float64
		sumWY     float64
		sumArea   float64
		boxCount  int
	}
	buckets := make(map[int]*acc)
	for _, b := range boxes {
		sec := int(b.t)
		if sec < 0 || sec >= seconds {
			continue
		}
		a, ok := buckets[sec]
		if !ok {
			a = &acc{}
			buckets[sec] = a
		}
		area := b.w * b.h
		if area > a.maxArea {
			a.maxArea = area
		}
		a.sumWX += (b.x + b.w/2) * area
		a.sumWY += (b.y + b.h/2) * area
		a.sumArea += area
		a.boxCount++
	}
	var out []FaceSample
	for sec, a := range buckets {
		s := FaceSample{
			Second:    sec,
			Presence:  1,
			Intensity: clampF(a.maxArea/(frameArea*0.35), 0, 1),
		}
		if a.sumArea > 0 {
			s.CenterX = clampF(a.sumWX/a.sumArea/640.0, 0, 1)
			s.CenterY = clampF(a.sumWY/a.sumArea/360.0, 0, 1)
		}
		out = append(out, s)
	}
	return out
}
