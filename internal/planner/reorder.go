package planner

import (
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// reorderStory lifts one strong mid-video beat to the front (right after
// the hook) and moves one strong late beat to the tail. Returns the new
// segment order and the permutation applied (new index -> original index).
func reorderStory(segments []model.Segment, windows []model.EngagementWindow) ([]model.Segment, []int) {
	n := len(segments)
	order := identityOrder(n)
	if n < 4 {
		return segments, order
	}

	// Lift lands at index 1 right after a hook, index 2 otherwise.
	insertAt := 2
	if segments[0].IsHook {
		insertAt = 1
	}

	midLo, midHi := n/3, 2*n/3
	liftIdx := strongestIn(segments, windows, midLo, midHi)
	lateIdx := strongestIn(segments, windows, 2*n/3, n-1)

	order = moveIndex(order, liftIdx, insertAt)
	// lateIdx shifts if the lift crossed it.
	pos := indexOf(order, lateIdx)
	if pos >= 0 {
		order = moveIndex(order, pos, len(order)-1)
	}

	out := make([]model.Segment, n)
	for newIdx, origIdx := range order {
		out[newIdx] = segments[origIdx]
	}
	return out, order
}

func strongestIn(segments []model.Segment, windows []model.EngagementWindow, lo, hi int) int {
	best, bestScore := lo, -1.0
	for i := lo; i < hi && i < len(segments); i++ {
		if segments[i].IsHook {
			continue
		}
		s := windowStats(windows, segments[i].Start, segments[i].End)
		score := s.hook*0.6 + s.emotion*0.4
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}

// moveIndex moves the element at from to position to, preserving the
// relative order of everything else.
func moveIndex(order []int, from, to int) []int {
	if from < 0 || from >= len(order) || to < 0 || to >= len(order) || from == to {
		return order
	}
	v := order[from]
	out := append(append([]int(nil), order[:from]...), order[from+1:]...)
	out = append(out[:to], append([]int{v}, out[to:]...)...)
	return out
}

func indexOf(order []int, v int) int {
	for i, o := range order {
		if o == v {
			return i
		}
	}
	return -1
}

// ensureContextFloor guarantees that long-form output keeps at least
// LongFormMinContextSec of in-order context inside the first windowSec
// after the hook, so a lifted beat never strands the viewer.
func ensureContextFloor(segments []model.Segment, windowSec float64) []model.Segment {
	if len(segments) == 0 {
		return segments
	}
	start := 0
	if segments[0].IsHook {
		start = 1
	}
	var covered float64
	budget := windowSec
	for i := start; i < len(segments) && budget > 0; i++ {
		d := segments[i].OutputDuration()
		take := d
		if take > budget {
			take = budget
		}
		if segments[i].SourceDuration() >= LongFormMinContextSec && segments[i].Speed <= 1.05 {
			covered += take
		}
		budget -= d
	}
	if covered >= LongFormMinContextSec {
		return segments
	}

	// Stretch the first post-hook segment into a proper context beat.
	idx := start
	if idx >= len(segments) {
		return segments
	}
	seg := &segments[idx]
	seg.Speed = 1
	if seg.SourceDuration() < LongFormMinContextSec {
		seg.End = seg.Start + LongFormMinContextSec
	}
	return segments
}
