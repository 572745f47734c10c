package planner

import (
	"math"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/style"
)

// Beat alignment limits.
const (
	leadInTrimMaxSec = 1.2
	minSplitPieceSec = 1.0
)

// alignToBeats snaps segment boundaries onto nearby rhythm anchors, splits
// segments at strong emotional beats and trims low-signal lead-ins before
// emotional peaks.
func alignToBeats(segments []model.Segment, windows []model.EngagementWindow, runtime style.RuntimeStyleProfile) []model.Segment {
	if len(segments) == 0 || len(windows) == 0 {
		return segments
	}
	rhythm := rhythmAnchors(windows)
	beats := emotionalBeats(windows)
	tol := runtime.BeatSnapToleranceSec
	if tol <= 0 {
		tol = 0.6
	}

	out := make([]model.Segment, 0, len(segments))
	for _, seg := range segments {
		seg.Start = snapTo(seg.Start, rhythm, tol)
		seg.End = snapTo(seg.End, rhythm, tol)
		if seg.End-seg.Start < 0.4 {
			continue
		}
		seg = trimLeadIn(seg, beats, windows)
		out = append(out, splitAtBeats(seg, beats)...)
	}
	return out
}

// rhythmAnchors finds local maxima of a pulse built from audio, scene and
// emotion tracks.
func rhythmAnchors(windows []model.EngagementWindow) []float64 {
	pulse := make([]float64, len(windows))
	for i, w := range windows {
		pulse[i] = w.AudioEnergy*0.5 + w.SceneChangeRate*0.3 + w.EmotionIntensity*0.2
	}
	var anchors []float64
	for i := 1; i < len(pulse)-1; i++ {
		if pulse[i] > pulse[i-1] && pulse[i] >= pulse[i+1] && pulse[i] > 0.3 {
			anchors = append(anchors, float64(i))
		}
	}
	return anchors
}

// emotionalBeats are peaks above an adaptive threshold: mean + 0.8*stdev
// of the emotion track, floored so quiet videos do not over-split.
func emotionalBeats(windows []model.EngagementWindow) []float64 {
	var mean float64
	for _, w := range windows {
		mean += w.EmotionIntensity
	}
	mean /= float64(len(windows))
	var std float64
	for _, w := range windows {
		std += (w.EmotionIntensity - mean) * (w.EmotionIntensity - mean)
	}
	std = math.Sqrt(std / float64(len(windows)))

	threshold := math.Max(mean+0.8*std, 0.4)
	var beats []float64
	for i, w := range windows {
		if w.EmotionIntensity >= threshold || w.EmotionalSpike == 1 {
			beats = append(beats, float64(i))
		}
	}
	return beats
}

func snapTo(t float64, anchors []float64, tol float64) float64 {
	best := t
	bestDist := tol
	for _, a := range anchors {
		d := math.Abs(a - t)
		if d < bestDist {
			best = a
			bestDist = d
		}
	}
	return best
}

// trimLeadIn shaves up to leadInTrimMaxSec of low-signal material when an
// emotional beat sits just inside the segment head.
func trimLeadIn(seg model.Segment, beats []float64, windows []model.EngagementWindow) model.Segment {
	for _, b := range beats {
		if b <= seg.Start || b > seg.Start+leadInTrimMaxSec+1 {
			continue
		}
		sec := int(seg.Start)
		if sec < len(windows) && windows[sec].Score < 0.25 {
			trim := math.Min(b-seg.Start-0.2, leadInTrimMaxSec)
			if trim > 0 && seg.End-(seg.Start+trim) >= minSplitPieceSec {
				seg.Start += trim
			}
		}
		break
	}
	return seg
}

// splitAtBeats inserts a cut at strong beats inside the segment so the
// edit lands on the emotional moment.
func splitAtBeats(seg model.Segment, beats []float64) []model.Segment {
	out := []model.Segment{seg}
	for _, b := range beats {
		last := &out[len(out)-1]
		if b <= last.Start+minSplitPieceSec || b >= last.End-minSplitPieceSec {
			continue
		}
		tail := *last
		tail.Start = b
		tail.TransitionStyle = model.TransitionJump
		last.End = b
		out = append(out, tail)
	}
	return out
}
