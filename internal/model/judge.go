package model

// GateMode selects how thresholds are applied.
type GateMode string

const (
	GateStrict   GateMode = "strict"
	GateAdaptive GateMode = "adaptive"
)

// JudgeThresholds are the minimums each 0-100 score must meet.
type JudgeThresholds struct {
	Retention float64 `json:"retention"`
	Hook      float64 `json:"hook"`
	Pacing    float64 `json:"pacing"`
	Emotional float64 `json:"emotional"`
}

// RequiredFixes enumerates what a failing plan must improve.
type RequiredFixes struct {
	StrongerHook       bool `json:"stronger_hook"`
	RaiseEmotion       bool `json:"raise_emotion"`
	ImprovePacing      bool `json:"improve_pacing"`
	IncreaseInterrupts bool `json:"increase_interrupts"`
}

// RetentionJudgeReport is the multi-metric verdict on an edit plan.
type RetentionJudgeReport struct {
	RetentionScore    float64         `json:"retention_score"`
	HookStrength      float64         `json:"hook_strength"`
	PacingScore       float64         `json:"pacing_score"`
	ClarityScore      float64         `json:"clarity_score"`
	EmotionalPull     float64         `json:"emotional_pull"`
	ContentFormat     string          `json:"content_format"`
	TargetPlatform    string          `json:"target_platform"`
	StrategyProfile   string          `json:"strategy_profile"`
	WhyKeepWatching   []string        `json:"why_keep_watching,omitempty"`
	WhatIsGeneric     []string        `json:"what_is_generic,omitempty"`
	RequiredFixes     RequiredFixes   `json:"required_fixes"`
	AppliedThresholds JudgeThresholds `json:"applied_thresholds"`
	GateMode          GateMode        `json:"gate_mode"`
	Passed            bool            `json:"passed"`
}
