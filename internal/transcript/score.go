package transcript

import (
	"strings"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// Keyword tables for per-cue scoring. Hits are counted per word, then
// normalized against cue length.
var (
	hookKeywords = []string{
		"secret", "nobody", "never", "always", "insane", "crazy", "shocking",
		"truth", "mistake", "wrong", "best", "worst", "free", "money",
		"finally", "revealed", "proof", "actually", "hack", "trick",
	}
	curiosityOpeners = []string{
		"what if", "here's why", "heres why", "the reason", "did you know",
		"wait until", "you won't believe", "you wont believe", "watch this",
		"how to", "why does", "guess what",
	}
	fillerWords = []string{
		"um", "uh", "like", "you know", "i mean", "basically", "literally",
		"sort of", "kind of", "right?", "so yeah", "anyway",
	}
)

// ScoreCues fills the keyword/curiosity/filler densities on each cue.
func ScoreCues(cues []model.TranscriptCue) []model.TranscriptCue {
	out := make([]model.TranscriptCue, len(cues))
	for i, cue := range cues {
		out[i] = cue
		out[i].KeywordIntensity, out[i].CuriosityTrigger, out[i].FillerDensity = scoreText(cue.Text)
	}
	return out
}

func scoreText(text string) (keyword, curiosity, filler float64) {
	lower := strings.ToLower(text)
	words := strings.Fields(lower)
	if len(words) == 0 {
		return 0, 0, 0
	}
	n := float64(len(words))

	var keywordHits float64
	for _, kw := range hookKeywords {
		keywordHits += float64(strings.Count(lower, kw))
	}
	keyword = model.Clamp01(keywordHits / (n * 0.25))

	for _, opener := range curiosityOpeners {
		if strings.Contains(lower, opener) {
			curiosity += 0.5
		}
	}
	if strings.HasSuffix(strings.TrimSpace(text), "?") {
		curiosity += 0.3
	}
	curiosity = model.Clamp01(curiosity)

	var fillerHits float64
	for _, fw := range fillerWords {
		fillerHits += float64(strings.Count(lower, fw))
	}
	filler = model.Clamp01(fillerHits / (n * 0.4))
	return keyword, curiosity, filler
}

// StartsContextDependent reports whether a cue opens with a pronoun or
// connective that needs prior context, which penalizes hook candidates.
func StartsContextDependent(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	openers := []string{
		"so ", "and ", "but ", "because ", "then ", "also ", "that's ",
		"thats ", "this is why", "he ", "she ", "they ", "it ", "which ",
	}
	for _, o := range openers {
		if strings.HasPrefix(lower, o) {
			return true
		}
	}
	return false
}

// HasTerminalPunctuation reports whether a cue ends a sentence.
func HasTerminalPunctuation(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	switch t[len(t)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
