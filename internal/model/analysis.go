package model

import "encoding/json"

// CurrentMetadataVersion marks the analysis blob layout.
const CurrentMetadataVersion = 3

// AttemptRecord captures one quality-gate attempt.
type AttemptRecord struct {
	Strategy           Strategy             `json:"strategy"`
	Judge              RetentionJudgeReport `json:"judge"`
	HookStart          float64              `json:"hookStart"`
	HookDuration       float64              `json:"hookDuration"`
	PredictedRetention float64              `json:"predictedRetention"`
}

// QualityGateOverride records why a failing plan was shipped anyway.
type QualityGateOverride struct {
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

// Analysis is the structured per-job metadata blob. Unknown top-level
// fields written by other services are preserved in Extra across
// read-modify-write cycles.
type Analysis struct {
	MetadataVersion         int                             `json:"metadata_version"`
	PipelineSteps           map[StepName]*PipelineStepState `json:"pipelineSteps,omitempty"`
	Windows                 []EngagementWindow              `json:"windows,omitempty"`
	TranscriptCues          []TranscriptCue                 `json:"transcriptCues,omitempty"`
	HookCandidates          []HookCandidate                 `json:"hook_candidates,omitempty"`
	HookSelected            *HookCandidate                  `json:"hook_selected,omitempty"`
	HookStageComplete       bool                            `json:"hook_stage_complete,omitempty"`
	PreferredHook           *HookCandidate                  `json:"hook_preferred,omitempty"`
	PlatformProfile         string                          `json:"platformProfile,omitempty"`
	RetentionTargetPlatform string                          `json:"retentionTargetPlatform,omitempty"`
	ContentFormat           string                          `json:"contentFormat,omitempty"`
	ContentStyle            string                          `json:"contentStyle,omitempty"`
	Niche                   string                          `json:"niche,omitempty"`
	RequestedStrategy       string                          `json:"requestedStrategy,omitempty"`
	AppliedStrategy         string                          `json:"appliedStrategy,omitempty"`
	Attempts                []AttemptRecord                 `json:"attempts,omitempty"`
	QualityGateOverride     *QualityGateOverride            `json:"qualityGateOverride,omitempty"`
	Feedback                []RetentionFeedback             `json:"feedback,omitempty"`
	RenderSettings          map[string]interface{}          `json:"renderSettings,omitempty"`
	Extra                   map[string]json.RawMessage      `json:"-"`
}

// Clone deep-copies the blob.
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	cp := *a
	if a.PipelineSteps != nil {
		cp.PipelineSteps = make(map[StepName]*PipelineStepState, len(a.PipelineSteps))
		for k, v := range a.PipelineSteps {
			if v == nil {
				continue
			}
			sv := *v
			if v.Meta != nil {
				sv.Meta = make(map[string]interface{}, len(v.Meta))
				for mk, mv := range v.Meta {
					sv.Meta[mk] = mv
				}
			}
			cp.PipelineSteps[k] = &sv
		}
	}
	cp.Windows = append([]EngagementWindow(nil), a.Windows...)
	cp.TranscriptCues = append([]TranscriptCue(nil), a.TranscriptCues...)
	cp.HookCandidates = append([]HookCandidate(nil), a.HookCandidates...)
	cp.Attempts = append([]AttemptRecord(nil), a.Attempts...)
	cp.Feedback = append([]RetentionFeedback(nil), a.Feedback...)
	if a.HookSelected != nil {
		h := *a.HookSelected
		cp.HookSelected = &h
	}
	if a.PreferredHook != nil {
		h := *a.PreferredHook
		cp.PreferredHook = &h
	}
	if a.QualityGateOverride != nil {
		q := *a.QualityGateOverride
		cp.QualityGateOverride = &q
	}
	if a.RenderSettings != nil {
		cp.RenderSettings = make(map[string]interface{}, len(a.RenderSettings))
		for k, v := range a.RenderSettings {
			cp.RenderSettings[k] = v
		}
	}
	if a.Extra != nil {
		cp.Extra = make(map[string]json.RawMessage, len(a.Extra))
		for k, v := range a.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}

// StepState returns the state for a step, creating a pending record on
// first access.
func (a *Analysis) StepState(step StepName) *PipelineStepState {
	if a.PipelineSteps == nil {
		a.PipelineSteps = make(map[StepName]*PipelineStepState)
	}
	st, ok := a.PipelineSteps[step]
	if !ok {
		st = &PipelineStepState{Status: StepPending}
		a.PipelineSteps[step] = st
	}
	return st
}

type analysisAlias Analysis

// MarshalJSON folds preserved unknown fields back into the object.
func (a Analysis) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(analysisAlias(a))
	if err != nil {
		return nil, err
	}
	if len(a.Extra) == 0 {
		return known, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range a.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON captures unknown top-level fields into Extra.
func (a *Analysis) UnmarshalJSON(data []byte) error {
	var alias analysisAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	knownBytes, err := json.Marshal(alias)
	if err != nil {
		return err
	}
	var knownKeys map[string]json.RawMessage
	if err := json.Unmarshal(knownBytes, &knownKeys); err != nil {
		return err
	}
	*a = Analysis(alias)
	for k, v := range all {
		if _, known := knownKeys[k]; !known {
			if a.Extra == nil {
				a.Extra = make(map[string]json.RawMessage)
			}
			a.Extra[k] = v
		}
	}
	// Re-key legacy step names onto the current enum.
	if a.PipelineSteps != nil {
		rekeyed := make(map[StepName]*PipelineStepState, len(a.PipelineSteps))
		for k, v := range a.PipelineSteps {
			if canon, ok := CanonicalStep(string(k)); ok {
				if _, exists := rekeyed[canon]; !exists {
					rekeyed[canon] = v
				}
			} else {
				rekeyed[k] = v
			}
		}
		a.PipelineSteps = rekeyed
	}
	return nil
}
