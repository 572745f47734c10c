package planner

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/transcript"
)

// Hook search shape: the analysis horizon is partitioned into sections and
// candidate windows of fixed durations are scored inside each one.
var hookDurations = []float64{5, 6, 7, 8}

const (
	hookSectionsMin = 3
	hookSectionsMax = 8
)

// SelectHook runs the full candidate search, audits every section winner
// and resolves the final hook through the calibrated faceoff. When no
// candidate clears the selection threshold a synthetic teaser is built
// from the strongest payoff window.
func SelectHook(in Inputs) (*model.HookCandidate, []model.HookCandidate) {
	if in.Duration < model.HookMinSeconds {
		return nil, nil
	}
	candidates := searchCandidates(in)
	if len(candidates) == 0 {
		teaser := synthesizeTeaser(in)
		if teaser == nil {
			return nil, nil
		}
		return teaser, []model.HookCandidate{*teaser}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return faceoffScore(candidates[i], in) > faceoffScore(candidates[j], in)
	})

	if in.PreferredHook != nil {
		return in.PreferredHook, candidates
	}

	winner := pickFaceoffWinner(candidates, in)
	threshold := SelectionThreshold(in.Aggression, len(in.Cues) > 0, GradeSignal(in.Windows))
	if winner.Confidence() < threshold {
		teaser := synthesizeTeaser(in)
		if teaser != nil {
			return teaser, append(candidates, *teaser)
		}
	}
	return &winner, candidates
}

// searchCandidates partitions [0,duration] into 3-8 sections and keeps the
// best audited candidate per section.
func searchCandidates(in Inputs) []model.HookCandidate {
	sections := int(in.Duration / 60)
	if sections < hookSectionsMin {
		sections = hookSectionsMin
	}
	if sections > hookSectionsMax {
		sections = hookSectionsMax
	}
	sectionLen := in.Duration / float64(sections)

	var out []model.HookCandidate
	for s := 0; s < sections; s++ {
		lo := float64(s) * sectionLen
		hi := lo + sectionLen
		best, ok := bestInSection(in, lo, hi)
		if ok {
			out = append(out, best)
		}
	}
	return out
}

func bestInSection(in Inputs, lo, hi float64) (model.HookCandidate, bool) {
	var best model.HookCandidate
	found := false
	starts := candidateStarts(in.Cues, lo, hi)
	for _, start := range starts {
		for _, dur := range hookDurations {
			if start+dur > in.Duration {
				continue
			}
			cand := scoreCandidate(in, start, dur)
			audit := RunHookAudit(cand, candidateCues(in.Cues, start, dur), in.Windows)
			cand.AuditScore = audit.AuditScore
			cand.AuditPassed = audit.Passed
			cand.Score = model.Clamp01(cand.Score + 0.15*audit.AuditScore - 0.2*audit.ContextPenalty)
			if !found || cand.Score+cand.AuditScore > best.Score+best.AuditScore {
				best = cand
				found = true
			}
		}
	}
	return best, found
}

// candidateStarts aligns starts to sentence boundaries when cues exist,
// otherwise samples the section every 2 seconds.
func candidateStarts(cues []model.TranscriptCue, lo, hi float64) []float64 {
	var starts []float64
	for _, cue := range cues {
		if cue.Start >= lo && cue.Start < hi {
			starts = append(starts, cue.Start)
		}
	}
	if len(starts) > 0 {
		return starts
	}
	for t := lo; t < hi; t += 2 {
		starts = append(starts, t)
	}
	return starts
}

func candidateCues(cues []model.TranscriptCue, start, dur float64) []model.TranscriptCue {
	var out []model.TranscriptCue
	for _, cue := range cues {
		if cue.End > start && cue.Start < start+dur {
			out = append(out, cue)
		}
	}
	return out
}

// scoreCandidate fuses the window averages over the candidate with the
// duration alignment bonus (8s windows carry the most retention).
func scoreCandidate(in Inputs, start, dur float64) model.HookCandidate {
	stats := windowStats(in.Windows, start, start+dur)
	durationAlignment := 1 - math.Abs(dur-8)/8

	score := 0.34*stats.hook +
		0.2*stats.speech +
		0.16*stats.keyword +
		0.15*stats.visual +
		0.15*stats.emotion
	score = model.Clamp01(score + 0.08*durationAlignment)

	var text strings.Builder
	for _, cue := range candidateCues(in.Cues, start, dur) {
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(cue.Text)
	}
	return model.HookCandidate{
		Start:    start,
		Duration: dur,
		Score:    score,
		Text:     text.String(),
		Reason:   fmt.Sprintf("section peak at %.1fs", start),
	}
}

// RunHookAudit is deterministic: identical inputs produce identical
// verdicts. It grades how standalone, curiosity-driving and paid-off the
// candidate is, with a penalty for context-dependent openings.
func RunHookAudit(cand model.HookCandidate, cues []model.TranscriptCue, windows []model.EngagementWindow) model.HookAudit {
	stats := windowStats(windows, cand.Start, cand.Start+cand.Duration)

	understandable := 0.6 + 0.4*stats.speech
	curiosity := stats.curiosity
	payoff := model.Clamp01(stats.emotion*0.5 + stats.hook*0.5)

	var contextPenalty float64
	if len(cues) > 0 {
		first := cues[0]
		last := cues[len(cues)-1]
		if transcript.StartsContextDependent(first.Text) {
			contextPenalty += 0.35
		}
		if !transcript.HasTerminalPunctuation(last.Text) {
			contextPenalty += 0.2
		}
		curiosity = model.Clamp01(curiosity + first.CuriosityTrigger*0.5)
	} else {
		// Non-verbal fallback: grade on signal alone.
		understandable = 0.5 + 0.5*stats.visual
		contextPenalty = 0.1
	}
	contextPenalty = model.Clamp01(contextPenalty)

	audit := model.HookAudit{
		Understandable: model.Clamp01(understandable),
		Curiosity:      model.Clamp01(curiosity),
		Payoff:         payoff,
		ContextPenalty: contextPenalty,
	}
	audit.AuditScore = model.Clamp01(0.35*audit.Understandable + 0.3*audit.Curiosity + 0.35*audit.Payoff - 0.4*contextPenalty)
	audit.Passed = audit.AuditScore >= 0.5 && contextPenalty < 0.45
	return audit
}

// pickFaceoffWinner prefers audit-passing candidates; the calibrated
// weights break ties among the rest.
func pickFaceoffWinner(candidates []model.HookCandidate, in Inputs) model.HookCandidate {
	for _, c := range candidates {
		if c.AuditPassed {
			return c
		}
	}
	return candidates[0]
}

// faceoffScore applies the calibrated component weights to a candidate.
func faceoffScore(cand model.HookCandidate, in Inputs) float64 {
	w := in.Calibration.Weights
	if w.Hook == 0 {
		w = model.DefaultFaceoffWeights()
	}
	stats := windowStats(in.Windows, cand.Start, cand.Start+cand.Duration)
	return w.Hook*stats.hook +
		w.Speech*stats.speech +
		w.Transcript*stats.keyword +
		w.Visual*stats.visual +
		w.Emotion*stats.emotion +
		0.1*cand.AuditScore
}

// SelectionThreshold is the confidence bar the winning candidate must
// clear: a per-aggression base, lowered when no transcript exists and for
// weak or medium content signal.
func SelectionThreshold(aggr model.Aggression, hasTranscript bool, signal SignalStrength) float64 {
	var base float64
	switch aggr {
	case model.AggressionLow:
		base = 0.62
	case model.AggressionMedium:
		base = 0.68
	case model.AggressionHigh:
		base = 0.74
	case model.AggressionViral:
		base = 0.80
	default:
		base = 0.68
	}
	if !hasTranscript {
		base -= 0.11
	}
	switch signal {
	case SignalWeak:
		base -= 0.08
	case SignalMedium:
		base -= 0.05
	}
	return base
}

// SignalStrength grades how much material the extractors produced.
type SignalStrength string

const (
	SignalWeak   SignalStrength = "weak"
	SignalMedium SignalStrength = "medium"
	SignalStrong SignalStrength = "strong"
)

// GradeSignal classifies the mean window score into the three bands the
// selection threshold and adaptive judge react to.
func GradeSignal(windows []model.EngagementWindow) SignalStrength {
	if len(windows) == 0 {
		return SignalWeak
	}
	var mean float64
	for _, w := range windows {
		mean += w.Score
	}
	mean /= float64(len(windows))
	switch {
	case mean < 0.25:
		return SignalWeak
	case mean < 0.45:
		return SignalMedium
	default:
		return SignalStrong
	}
}

// synthesizeTeaser builds a fallback hook from the strongest payoff window
// when no organic candidate passes.
func synthesizeTeaser(in Inputs) *model.HookCandidate {
	if len(in.Windows) == 0 || in.Duration < model.HookMinSeconds {
		return nil
	}
	bestSec, bestScore := 0, -1.0
	for i, w := range in.Windows {
		payoff := w.EmotionIntensity*0.5 + w.HookScore*0.5
		if payoff > bestScore {
			bestScore = payoff
			bestSec = i
		}
	}
	start := float64(bestSec) - 2
	if start < 0 {
		start = 0
	}
	dur := 6.0
	if start+dur > in.Duration {
		start = in.Duration - dur
		if start < 0 {
			start = 0
			dur = in.Duration
		}
	}
	cand := model.HookCandidate{
		Start:     start,
		Duration:  dur,
		Score:     model.Clamp01(bestScore),
		Synthetic: true,
		Reason:    "synthetic teaser from strongest payoff window",
	}
	audit := RunHookAudit(cand, candidateCues(in.Cues, start, dur), in.Windows)
	cand.AuditScore = audit.AuditScore
	cand.AuditPassed = audit.Passed
	return &cand
}

// placeHook moves the hook range to the front as its own segment and
// carves it out of any other segment so the range plays exactly once.
func placeHook(segments []model.Segment, hook model.HookCandidate) []model.Segment {
	hookRange := hook.Range()
	out := []model.Segment{{
		Start: hookRange.Start, End: hookRange.End,
		Speed: 1, AudioGain: 1, IsHook: true,
	}}
	for _, seg := range segments {
		segRange := model.TimeRange{Start: seg.Start, End: seg.End}
		if !segRange.Overlaps(hookRange) {
			out = append(out, seg)
			continue
		}
		for _, piece := range subtractRanges(segRange, []model.TimeRange{hookRange}) {
			if piece.Duration() < 0.3 {
				continue
			}
			part := seg
			part.Start = piece.Start
			part.End = piece.End
			out = append(out, part)
		}
	}
	return out
}

type windowAverages struct {
	hook, speech, keyword, curiosity, visual, emotion float64
}

func windowStats(windows []model.EngagementWindow, start, end float64) windowAverages {
	lo := int(start)
	hi := int(math.Ceil(end))
	if lo < 0 {
		lo = 0
	}
	if hi > len(windows) {
		hi = len(windows)
	}
	if lo >= hi {
		return windowAverages{}
	}
	var s windowAverages
	for i := lo; i < hi; i++ {
		w := windows[i]
		s.hook += w.HookScore
		s.speech += w.SpeechIntensity
		s.keyword += w.KeywordIntensity
		s.curiosity += w.CuriosityTrigger
		s.visual += model.Clamp01(w.SceneChangeRate*0.6 + w.TextDensity*0.4)
		s.emotion += w.EmotionIntensity
	}
	n := float64(hi - lo)
	s.hook /= n
	s.speech /= n
	s.keyword /= n
	s.curiosity /= n
	s.visual /= n
	s.emotion /= n
	return s
}
