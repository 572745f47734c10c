package planner

import (
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

const minRenderableSec = 0.25

// PrepareSegmentsForRender normalizes a segment list for the render graph:
// transforms are clamped, sub-renderable slivers are dropped and source
// overlaps between neighbors are trimmed away. The pass is idempotent;
// running it on its own output is a no-op.
func PrepareSegmentsForRender(segments []model.Segment) []model.Segment {
	out := make([]model.Segment, 0, len(segments))
	for _, seg := range segments {
		seg.ClampTransforms()
		if seg.End < seg.Start {
			seg.Start, seg.End = seg.End, seg.Start
		}
		if seg.Start < 0 {
			seg.Start = 0
		}
		if seg.SourceDuration() < minRenderableSec {
			continue
		}
		if n := len(out); n > 0 {
			prev := out[n-1]
			// Trim a neighbor that re-enters the previous segment's range;
			// a deliberate replay further along the timeline is left alone.
			if seg.Start < prev.End && seg.Start >= prev.Start {
				seg.Start = prev.End
				if seg.SourceDuration() < minRenderableSec {
					continue
				}
			}
		}
		out = append(out, seg)
	}
	return out
}

// CapSegments bounds the list length, dropping the lowest-impact
// non-hook segments first.
func CapSegments(segments []model.Segment, limit int) []model.Segment {
	if limit <= 0 || len(segments) <= limit {
		return segments
	}
	// Merge adjacent same-transform segments before dropping content.
	merged := mergeAdjacent(segments)
	if len(merged) <= limit {
		return merged
	}
	out := append([]model.Segment(nil), merged...)
	for len(out) > limit {
		idx := -1
		var shortest float64
		for i, seg := range out {
			if seg.IsHook {
				continue
			}
			d := seg.SourceDuration()
			if idx < 0 || d < shortest {
				idx = i
				shortest = d
			}
		}
		if idx < 0 {
			break
		}
		out = append(out[:idx], out[idx+1:]...)
	}
	return out
}

// mergeAdjacent fuses contiguous segments with identical transforms.
func mergeAdjacent(segments []model.Segment) []model.Segment {
	var out []model.Segment
	for _, seg := range segments {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if prev.End == seg.Start && sameTransforms(*prev, seg) {
				prev.End = seg.End
				continue
			}
		}
		out = append(out, seg)
	}
	return out
}

func sameTransforms(a, b model.Segment) bool {
	return a.Speed == b.Speed && a.Zoom == b.Zoom && a.Brightness == b.Brightness &&
		a.AudioGain == b.AudioGain && a.Emphasize == b.Emphasize && a.IsHook == b.IsHook &&
		a.SoundFxLevel == b.SoundFxLevel
}
