package planner

import (
	"math"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/style"
)

// Ending spike rule: the final 5 seconds must carry at least 95% of the
// overall average hook score, otherwise the strongest pre-tail segment is
// replayed as the closer.
const (
	endingWindowSec   = 5.0
	endingSpikeFactor = 0.95
	closerMaxSec      = 5.0
)

// injectInterrupts places zoom/brightness/emphasize markers along the
// edited runtime at the profile's interrupt cadence, guaranteeing at
// least ceil(runtime/targetInterval) interrupts.
func injectInterrupts(segments []model.Segment, windows []model.EngagementWindow, runtime style.RuntimeStyleProfile, meta *model.EditPlanMeta) []model.Segment {
	if len(segments) == 0 {
		return segments
	}
	minIv := runtime.PatternInterruptMinSec
	maxIv := runtime.PatternInterruptMaxSec
	if minIv <= 0 || maxIv < minIv {
		minIv, maxIv = 12, 22
	}
	target := (minIv + maxIv) / 2
	total := model.TotalOutputDuration(segments)
	minCount := int(math.Ceil(total / target))

	var elapsed, sinceLast float64
	count := 0
	for i := range segments {
		dur := segments[i].OutputDuration()
		sinceLast += dur
		elapsed += dur
		if sinceLast < minIv {
			continue
		}
		force := sinceLast >= maxIv
		remainingNeeded := minCount - count
		remainingTime := total - elapsed
		if !force && remainingNeeded > 0 && remainingTime/target < float64(remainingNeeded) {
			force = true
		}
		if force || interruptWorthy(segments[i], windows) {
			applyInterrupt(&segments[i], windows, count)
			count++
			sinceLast = 0
		}
	}
	// Top up from the tail if cadence alone fell short.
	for i := len(segments) - 1; i >= 0 && count < minCount; i-- {
		if segments[i].Zoom == 0 && !segments[i].Emphasize {
			applyInterrupt(&segments[i], windows, count)
			count++
		}
	}
	meta.InterruptCount = count
	return segments
}

// interruptWorthy favors seconds with a face or emotional content so the
// zoom lands on something.
func interruptWorthy(seg model.Segment, windows []model.EngagementWindow) bool {
	sec := int(seg.Start)
	if sec < 0 || sec >= len(windows) {
		return true
	}
	w := windows[sec]
	return w.FacePresence > 0.3 || w.EmotionIntensity > 0.35 || w.EmotionalSpike == 1
}

// applyInterrupt alternates zoom and brightness emphasis.
func applyInterrupt(seg *model.Segment, windows []model.EngagementWindow, n int) {
	sec := int(seg.Start)
	if n%2 == 0 {
		seg.Zoom = 0.08
		if sec >= 0 && sec < len(windows) && windows[sec].FacePresence > 0.2 {
			seg.FaceFocusX = windows[sec].FaceCenterX
			seg.FaceFocusY = windows[sec].FaceCenterY
			seg.Zoom = 0.11
		}
	} else {
		seg.Brightness = 0.06
	}
	seg.Emphasize = true
	if seg.SoundFxLevel == 0 && n%3 == 0 {
		seg.SoundFxLevel = 0.2
	}
}

// enforceEndingSpike appends a truncated replay of the strongest pre-tail
// segment when the ending sags below the spike factor.
func enforceEndingSpike(segments []model.Segment, windows []model.EngagementWindow, meta *model.EditPlanMeta) []model.Segment {
	if len(segments) < 2 || len(windows) == 0 {
		return segments
	}
	var overall float64
	for _, w := range windows {
		overall += w.HookScore
	}
	overall /= float64(len(windows))
	if overall <= 0 {
		return segments
	}

	tailScore := tailHookScore(segments, windows)
	if tailScore >= endingSpikeFactor*overall {
		return segments
	}

	bestIdx, bestScore := -1, -1.0
	for i := 0; i < len(segments)-1; i++ {
		if segments[i].IsHook {
			continue
		}
		s := windowStats(windows, segments[i].Start, segments[i].End).hook
		if s > bestScore {
			bestScore = s
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return segments
	}
	closer := segments[bestIdx]
	if closer.SourceDuration() > closerMaxSec {
		closer.End = closer.Start + closerMaxSec
	}
	closer.IsHook = false
	closer.TransitionStyle = model.TransitionJump
	meta.AutoEscalationEvents = append(meta.AutoEscalationEvents, "ending_spike_closer")
	return append(segments, closer)
}

// tailHookScore averages the hook score over the last endingWindowSec of
// edited output, walking segments back from the end.
func tailHookScore(segments []model.Segment, windows []model.EngagementWindow) float64 {
	var sum, weight float64
	remaining := endingWindowSec
	for i := len(segments) - 1; i >= 0 && remaining > 0; i-- {
		seg := segments[i]
		take := math.Min(remaining, seg.OutputDuration())
		srcTake := take * seg.Speed
		stats := windowStats(windows, seg.End-srcTake, seg.End)
		sum += stats.hook * take
		weight += take
		remaining -= take
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}
