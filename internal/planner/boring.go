package planner

import (
	"math"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// Boring-second predicates. A second is boring only when every low-signal
// predicate holds at once.
const (
	boringSpeechMax  = 0.25
	boringMotionMax  = 0.2
	boringFaceMax    = 0.2
	boringEnergyMax  = 0.3
	boringEmotionMax = 0.25

	// Long removal runs are broken into keep/cut stripes so the viewer
	// never loses more than breakCutSec of continuous material.
	breakCutSec  = 8.0
	breakKeepSec = 1.5
)

// anchorSet marks seconds protected from cutting: scene transitions,
// speech onsets and emotional peaks.
type anchorSet map[int]bool

func buildAnchors(windows []model.EngagementWindow, cues []model.TranscriptCue) anchorSet {
	anchors := anchorSet{}
	for i, w := range windows {
		if w.SceneChangeRate > 0.5 {
			anchors[i] = true
		}
		if w.EmotionalSpike == 1 || w.EmotionIntensity > 0.6 {
			anchors[i] = true
		}
	}
	// Speech onsets: the first second of every cue.
	for _, cue := range cues {
		sec := int(cue.Start)
		if sec >= 0 && sec < len(windows) {
			anchors[sec] = true
		}
	}
	return anchors
}

// findBoringRanges coalesces boring-second runs of at least MinCutRunSec
// into removal ranges, capping the removed share of each run at maxRatio
// and never cutting across an anchor.
func findBoringRanges(windows []model.EngagementWindow, anchors anchorSet, maxRatio float64) []model.TimeRange {
	var out []model.TimeRange
	runStart := -1
	flush := func(end int) {
		if runStart < 0 {
			return
		}
		runLen := float64(end - runStart)
		if runLen >= MinCutRunSec {
			out = append(out, capRun(model.TimeRange{Start: float64(runStart), End: float64(end)}, maxRatio)...)
		}
		runStart = -1
	}
	for i, w := range windows {
		boring := w.SpeechIntensity < boringSpeechMax &&
			w.MotionScore < boringMotionMax &&
			w.FacePresence < boringFaceMax &&
			w.AudioEnergy < boringEnergyMax &&
			w.EmotionIntensity < boringEmotionMax &&
			w.EmotionalSpike == 0
		if boring && !anchors[i] {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		flush(i)
	}
	flush(len(windows))
	return out
}

// capRun limits a removal run to maxRatio of its span and breaks long runs
// into a fixed cut/keep stripe pattern so jumps stay followable.
func capRun(run model.TimeRange, maxRatio float64) []model.TimeRange {
	span := run.Duration()
	budget := span * maxRatio
	if budget < MinCutRunSec {
		return nil
	}
	if budget >= span {
		budget = span
	}
	var out []model.TimeRange
	cursor := run.Start
	remaining := budget
	for remaining > 0 && cursor < run.End {
		cut := math.Min(breakCutSec, remaining)
		end := math.Min(cursor+cut, run.End)
		if end-cursor >= 0.5 {
			out = append(out, model.TimeRange{Start: cursor, End: end})
		}
		remaining -= end - cursor
		cursor = end + breakKeepSec
	}
	return out
}
