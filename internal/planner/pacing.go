package planner

import (
	"math"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/style"
)

// segmentForPacing subdivides the kept ranges into segments whose lengths
// track the pacing profile: shorter cuts early and late, longer in the
// middle, with deterministic jitter derived from the boundary position.
func segmentForPacing(kept []model.TimeRange, windows []model.EngagementWindow, profile style.PacingProfile, strategy model.Strategy) []model.Segment {
	if len(kept) == 0 {
		return nil
	}
	total := kept[len(kept)-1].End
	var out []model.Segment
	for _, r := range kept {
		cursor := r.Start
		for cursor < r.End-0.05 {
			target := pacingTarget(cursor/math.Max(total, 1), profile)
			if strategy == model.StrategyPacingFirst || strategy == model.StrategyRescue {
				target *= 0.85
			}
			target += jitter(cursor, profile.Jitter)
			target = model.Clamp(target, profile.MinSegment, profile.MaxSegment)

			end := cursor + target
			if end > r.End {
				end = r.End
			}
			// Avoid a dangling sliver: absorb a short tail into this segment.
			if r.End-end < profile.MinSegment*0.5 {
				end = r.End
			}
			seg := model.Segment{Start: cursor, End: end, Speed: 1, AudioGain: 1}
			seg.Speed = speedFor(seg, windows, profile)
			out = append(out, seg)
			cursor = end
		}
	}
	return out
}

// pacingTarget interpolates the early/middle/late target lengths over the
// normalized position in the video.
func pacingTarget(pos float64, profile style.PacingProfile) float64 {
	switch {
	case pos < 0.2:
		t := pos / 0.2
		return profile.EarlyTarget + t*(profile.MiddleTarget-profile.EarlyTarget)
	case pos < 0.8:
		return profile.MiddleTarget
	default:
		t := (pos - 0.8) / 0.2
		return profile.MiddleTarget + t*(profile.LateTarget-profile.MiddleTarget)
	}
}

// jitter is deterministic in the boundary time so plans are reproducible.
func jitter(at, amplitude float64) float64 {
	return amplitude * math.Sin(at*7.13)
}

// speedFor assigns a per-segment speed in [1, profile.SpeedCap] from the
// local engagement: dull stretches speed up, scene spikes and excited
// vocals play out in real time. Openings and closings stay near 1x.
func speedFor(seg model.Segment, windows []model.EngagementWindow, profile style.PacingProfile) float64 {
	lo := int(seg.Start)
	hi := int(math.Ceil(seg.End))
	if hi > len(windows) {
		hi = len(windows)
	}
	if lo >= hi {
		return 1
	}
	var engagement, scene, vocal float64
	for i := lo; i < hi; i++ {
		engagement += windows[i].Score
		scene += windows[i].SceneChangeRate
		vocal += windows[i].VocalExcitement
	}
	n := float64(hi - lo)
	engagement /= n
	scene /= n
	vocal /= n

	speed := 1 + (1-engagement)*(profile.SpeedCap-1)
	if scene > 0.5 || vocal > 0.6 {
		speed = 1
	}
	// First and last 10 seconds get a modest cap.
	if len(windows) > 0 {
		total := float64(len(windows))
		if seg.Start < 10 || seg.End > total-10 {
			speed = math.Min(speed, 1.1)
		}
	}
	return model.Clamp(speed, 1, profile.SpeedCap)
}
