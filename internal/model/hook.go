package model

// Hook duration bounds in seconds.
const (
	HookMinSeconds = 5.0
	HookMaxSeconds = 10.0
)

// HookAudit is the deterministic audit verdict for a hook candidate.
type HookAudit struct {
	Understandable float64 `json:"understandable"`
	Curiosity      float64 `json:"curiosity"`
	Payoff         float64 `json:"payoff"`
	ContextPenalty float64 `json:"contextPenalty"`
	AuditScore     float64 `json:"auditScore"`
	Passed         bool    `json:"passed"`
}

// HookCandidate is one scored opening-segment proposal.
type HookCandidate struct {
	Start       float64 `json:"start"`
	Duration    float64 `json:"duration"` // [HookMinSeconds, HookMaxSeconds]
	Score       float64 `json:"score"`
	AuditScore  float64 `json:"auditScore"`
	AuditPassed bool    `json:"auditPassed"`
	Text        string  `json:"text,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	Synthetic   bool    `json:"synthetic,omitempty"`
}

// Confidence is the selection confidence used against the aggression
// threshold: 0.7*score + 0.3*auditScore.
func (h HookCandidate) Confidence() float64 {
	return 0.7*h.Score + 0.3*h.AuditScore
}

// Range returns the candidate's source time range.
func (h HookCandidate) Range() TimeRange {
	return TimeRange{Start: h.Start, End: h.Start + h.Duration}
}

// TranscriptCue is one subtitle cue with per-cue transcript scores.
type TranscriptCue struct {
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Text             string  `json:"text"`
	KeywordIntensity float64 `json:"keywordIntensity"`
	CuriosityTrigger float64 `json:"curiosityTrigger"`
	FillerDensity    float64 `json:"fillerDensity"`
}
