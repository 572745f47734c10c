package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisRoundTripPreservesUnknownFields(t *testing.T) {
	blob := []byte(`{
  "metadata_version": 3,
  "contentStyle": "gaming",
  "appliedStrategy": "BASELINE",
  "uploaderNotes": {"source": "mobile-app", "batch": 7},
  "legacyFlag": true
}`)

	var a Analysis
	require.NoError(t, json.Unmarshal(blob, &a))
	assert.Equal(t, "gaming", a.ContentStyle)
	require.Contains(t, a.Extra, "uploaderNotes")
	require.Contains(t, a.Extra, "legacyFlag")

	out, err := json.Marshal(a)
	require.NoError(t, err)

	var got, want map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &got))
	require.NoError(t, json.Unmarshal(blob, &want))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalysisUnmarshalRekeysLegacySteps(t *testing.T) {
	blob := []byte(`{
  "metadata_version": 1,
  "pipelineSteps": {
    "ANALYZE": {"status": "completed", "attempts": 2},
    "QUALITY_GATE": {"status": "failed", "lastError": "retention below threshold"},
    "CUSTOM_STEP": {"status": "completed"}
  }
}`)

	var a Analysis
	require.NoError(t, json.Unmarshal(blob, &a))

	require.Contains(t, a.PipelineSteps, StepFrameAnalysis)
	assert.Equal(t, 2, a.PipelineSteps[StepFrameAnalysis].Attempts)
	require.Contains(t, a.PipelineSteps, StepStoryQualityGate)
	assert.Equal(t, StepFailed, a.PipelineSteps[StepStoryQualityGate].Status)
	assert.NotContains(t, a.PipelineSteps, StepName("ANALYZE"))
	// Names with no canonical mapping survive under their own key.
	assert.Contains(t, a.PipelineSteps, StepName("CUSTOM_STEP"))
}

func TestAnalysisCloneIsIndependent(t *testing.T) {
	a := &Analysis{
		MetadataVersion: CurrentMetadataVersion,
		Windows:         []EngagementWindow{{Time: 0, Score: 0.5}},
		HookSelected:    &HookCandidate{Start: 12, Duration: 7},
		RenderSettings:  map[string]interface{}{"mode": "horizontal"},
		Extra:           map[string]json.RawMessage{"uploaderNotes": json.RawMessage(`"x"`)},
	}
	a.StepState(StepTranscribe).Meta = map[string]interface{}{"lang": "en"}

	cp := a.Clone()
	if diff := cmp.Diff(a, cp); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	cp.Windows[0].Score = 0.9
	cp.HookSelected.Start = 40
	cp.RenderSettings["mode"] = "vertical"
	cp.StepState(StepTranscribe).Meta["lang"] = "de"

	assert.Equal(t, 0.5, a.Windows[0].Score)
	assert.Equal(t, 12.0, a.HookSelected.Start)
	assert.Equal(t, "horizontal", a.RenderSettings["mode"])
	assert.Equal(t, "en", a.StepState(StepTranscribe).Meta["lang"])
}
