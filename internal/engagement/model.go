// Package engagement fuses the per-second signal tracks into
// EngagementWindows with derived boredom and hook scores.
package engagement

import (
	"math"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
	"github.com/Marquise34567/editor-backend-sub000/internal/signals"
)

// Fusion weights. The sum over the base terms is 1.0.
const (
	wAudioEnergy  = 0.20
	wSpeech       = 0.20
	wMotion       = 0.14
	wFacePresence = 0.12
	wEmotion      = 0.15
	wTextDensity  = 0.09
	wVocal        = 0.06
	wVisual       = 0.04

	introBiasSeconds = 20
	introBias        = 0.05
	spikeSigma       = 1.5
)

// BuildWindows produces one window per second over [0, floor(duration)).
func BuildWindows(set signals.Set, cues []model.TranscriptCue, durationSec float64) []model.EngagementWindow {
	seconds := int(math.Floor(durationSec))
	if seconds <= 0 {
		return nil
	}

	windows := make([]model.EngagementWindow, seconds)

	energyMean, energyStd := meanStd(set.AudioEnergy)

	faceBySec := make(map[int]signals.FaceSample, len(set.Faces))
	for _, f := range set.Faces {
		faceBySec[f.Second] = f
	}
	textBySec := make(map[int]float64, len(set.Text))
	for _, t := range set.Text {
		textBySec[t.Second] = t.Density
	}
	emotionBySec := make(map[int]float64)
	for _, e := range set.Emotion {
		sec := int(e.Time)
		if e.Intensity > emotionBySec[sec] {
			emotionBySec[sec] = e.Intensity
		}
	}
	sceneRate := sceneRatePerSecond(set.SceneChanges, seconds)
	cueTracks := cueTracksPerSecond(cues, seconds)

	for sec := 0; sec < seconds; sec++ {
		w := &windows[sec]
		w.Time = float64(sec)
		if sec < len(set.AudioEnergy) {
			w.AudioEnergy = model.Clamp01(set.AudioEnergy[sec])
		}
		w.AudioVariance = localVariance(set.AudioEnergy, sec, 3)
		w.SceneChangeRate = sceneRate[sec]
		w.MotionScore = model.Clamp01(sceneRate[sec]*0.7 + w.AudioVariance*0.3)
		if f, ok := faceBySec[sec]; ok {
			w.FacePresence = f.Presence
			w.FaceIntensity = f.Intensity
			w.FaceCenterX = f.CenterX
			w.FaceCenterY = f.CenterY
		}
		w.TextDensity = model.Clamp01(textBySec[sec])
		w.EmotionIntensity = model.Clamp01(emotionBySec[sec])

		// Speech rides the audio track but is gated by cue coverage when a
		// transcript exists.
		w.SpeechIntensity = w.AudioEnergy
		if len(cues) > 0 {
			w.SpeechIntensity = w.AudioEnergy * cueTracks.coverage[sec]
		}
		w.KeywordIntensity = cueTracks.keyword[sec]
		w.CuriosityTrigger = cueTracks.curiosity[sec]
		w.FillerDensity = cueTracks.filler[sec]

		w.VocalExcitement = model.Clamp01(w.AudioVariance*0.6 + w.AudioEnergy*0.4)
		if w.AudioEnergy > energyMean+spikeSigma*energyStd && energyStd > 0 {
			w.EmotionalSpike = 1
		}

		visualImpact := model.Clamp01(w.SceneChangeRate*0.6 + w.TextDensity*0.4)
		score := wAudioEnergy*w.AudioEnergy +
			wSpeech*w.SpeechIntensity +
			wMotion*w.MotionScore +
			wFacePresence*w.FacePresence +
			wEmotion*w.EmotionIntensity +
			wTextDensity*w.TextDensity +
			wVocal*w.VocalExcitement +
			wVisual*visualImpact
		if sec < introBiasSeconds {
			score += introBias * (1 - float64(sec)/introBiasSeconds)
		}
		score += hookPotential(w) * 0.05
		w.Score = model.Clamp01(score)

		w.BoredomScore = boredomScore(w)
		w.HookScore = hookScore(w)
	}
	return windows
}

// hookPotential favors seconds that open loops: curiosity plus energy.
func hookPotential(w *model.EngagementWindow) float64 {
	return model.Clamp01(w.CuriosityTrigger*0.5 + w.KeywordIntensity*0.3 + w.VocalExcitement*0.2)
}

// boredomScore marks low-signal seconds, pushed up by filler speech.
func boredomScore(w *model.EngagementWindow) float64 {
	lowSignal := (1-w.SpeechIntensity)*0.3 +
		(1-w.MotionScore)*0.25 +
		(1-w.AudioEnergy)*0.25 +
		(1-w.EmotionIntensity)*0.1
	return model.Clamp01(lowSignal + w.FillerDensity*0.1)
}

// hookScore blends raw engagement with the transcript-aware hook terms.
func hookScore(w *model.EngagementWindow) float64 {
	return model.Clamp01(w.Score*0.55 +
		w.CuriosityTrigger*0.2 +
		w.KeywordIntensity*0.15 +
		float64(w.EmotionalSpike)*0.1)
}

type cueTrackSet struct {
	coverage  []float64
	keyword   []float64
	curiosity []float64
	filler    []float64
}

// cueTracksPerSecond maps per-cue transcript scores onto the second index.
func cueTracksPerSecond(cues []model.TranscriptCue, seconds int) cueTrackSet {
	ts := cueTrackSet{
		coverage:  make([]float64, seconds),
		keyword:   make([]float64, seconds),
		curiosity: make([]float64, seconds),
		filler:    make([]float64, seconds),
	}
	for _, cue := range cues {
		from := int(cue.Start)
		to := int(math.Ceil(cue.End))
		for sec := from; sec < to && sec < seconds; sec++ {
			if sec < 0 {
				continue
			}
			ts.coverage[sec] = 1
			if cue.KeywordIntensity > ts.keyword[sec] {
				ts.keyword[sec] = cue.KeywordIntensity
			}
			if cue.CuriosityTrigger > ts.curiosity[sec] {
				ts.curiosity[sec] = cue.CuriosityTrigger
			}
			if cue.FillerDensity > ts.filler[sec] {
				ts.filler[sec] = cue.FillerDensity
			}
		}
	}
	return ts
}

// sceneRatePerSecond counts scene changes in a +/-2s window, normalized so
// one cut per 2 seconds saturates.
func sceneRatePerSecond(changes []float64, seconds int) []float64 {
	rate := make([]float64, seconds)
	for _, t := range changes {
		center := int(t)
		for sec := center - 2; sec <= center+2; sec++ {
			if sec < 0 || sec >= seconds {
				continue
			}
			rate[sec] += 0.5
		}
	}
	for i := range rate {
		rate[i] = model.Clamp01(rate[i])
	}
	return rate
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std
}

// localVariance is the audio variance in a +/-radius window around sec.
func localVariance(values []float64, sec, radius int) float64 {
	if len(values) == 0 {
		return 0
	}
	lo := sec - radius
	if lo < 0 {
		lo = 0
	}
	hi := sec + radius
	if hi >= len(values) {
		hi = len(values) - 1
	}
	if hi <= lo {
		return 0
	}
	_, std := meanStd(values[lo : hi+1])
	return model.Clamp01(std * 3)
}
