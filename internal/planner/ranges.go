package planner

import (
	"sort"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// trimSilences converts silence ranges into removal ranges, keeping a small
// padding on both sides so speech onsets are not clipped. Silences shorter
// than MinSilenceSec stay in.
func trimSilences(silences []model.TimeRange, duration float64) []model.TimeRange {
	var out []model.TimeRange
	for _, s := range silences {
		if s.Duration() < MinSilenceSec {
			continue
		}
		r := model.TimeRange{Start: s.Start + SilencePaddingSec, End: s.End - SilencePaddingSec}
		if r.Start < 0 {
			r.Start = 0
		}
		if r.End > duration {
			r.End = duration
		}
		if r.Duration() <= 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// mergeRanges sorts and coalesces overlapping or touching ranges.
func mergeRanges(ranges []model.TimeRange) []model.TimeRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := append([]model.TimeRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := []model.TimeRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// subtractRanges returns the parts of total not covered by removed. The
// removed list must be merged and sorted.
func subtractRanges(total model.TimeRange, removed []model.TimeRange) []model.TimeRange {
	var out []model.TimeRange
	cursor := total.Start
	for _, r := range removed {
		if r.End <= cursor {
			continue
		}
		if r.Start > cursor {
			end := r.Start
			if end > total.End {
				end = total.End
			}
			if end > cursor {
				out = append(out, model.TimeRange{Start: cursor, End: end})
			}
		}
		if r.End > cursor {
			cursor = r.End
		}
		if cursor >= total.End {
			return out
		}
	}
	if cursor < total.End {
		out = append(out, model.TimeRange{Start: cursor, End: total.End})
	}
	return out
}
