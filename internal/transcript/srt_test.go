package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

const sampleSRT = `1
00:00:01,500 --> 00:00:04,000
the secret nobody tells you

2
00:00:04,200 --> 00:00:06,800
about editing videos

3
broken block without timing

4
00:00:10.000 --> 00:00:08,000
end before start is dropped

5
00:01:00,000 --> 00:01:02,250
multi line
cue text
`

func TestParseSRT(t *testing.T) {
	cues, err := ParseSRT(sampleSRT)
	require.NoError(t, err)
	require.Len(t, cues, 3)

	assert.InDelta(t, 1.5, cues[0].Start, 1e-9)
	assert.InDelta(t, 4.0, cues[0].End, 1e-9)
	assert.Equal(t, "the secret nobody tells you", cues[0].Text)

	// Multi-line text joins with a space; minute carry works.
	assert.InDelta(t, 60.0, cues[2].Start, 1e-9)
	assert.InDelta(t, 62.25, cues[2].End, 1e-9)
	assert.Equal(t, "multi line cue text", cues[2].Text)
}

func TestParseSRTWithoutIndexLines(t *testing.T) {
	cues, err := ParseSRT("00:00:00,000 --> 00:00:02,000\nno index line\n")
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, "no index line", cues[0].Text)
}

func TestParseSRTEmpty(t *testing.T) {
	cues, err := ParseSRT("")
	require.NoError(t, err)
	assert.Empty(t, cues)
}

func TestFormatSRTRoundTrip(t *testing.T) {
	in := []model.TranscriptCue{
		{Start: 1.5, End: 4, Text: "first"},
		{Start: 65.25, End: 70, Text: "second"},
	}
	out, err := ParseSRT(FormatSRT(in))
	require.NoError(t, err)
	require.Len(t, out, 2)
	for i := range in {
		assert.InDelta(t, in[i].Start, out[i].Start, 0.002)
		assert.InDelta(t, in[i].End, out[i].End, 0.002)
		assert.Equal(t, in[i].Text, out[i].Text)
	}
}

func TestRemapToWindow(t *testing.T) {
	cues := []model.TranscriptCue{
		{Start: 5, End: 8, Text: "before"},
		{Start: 12, End: 15, Text: "inside"},
		{Start: 18, End: 24, Text: "straddles"},
		{Start: 30, End: 33, Text: "after"},
	}
	out := RemapToWindow(cues, 10, 20)
	require.Len(t, out, 2)

	assert.InDelta(t, 2.0, out[0].Start, 1e-9)
	assert.InDelta(t, 5.0, out[0].End, 1e-9)

	// The straddling cue is clipped to the window edge.
	assert.InDelta(t, 8.0, out[1].Start, 1e-9)
	assert.InDelta(t, 10.0, out[1].End, 1e-9)
}

func TestScoreCues(t *testing.T) {
	cues := ScoreCues([]model.TranscriptCue{
		{Text: "here's why the secret money hack works"},
		{Text: "um like basically you know sort of"},
		{Text: ""},
	})

	assert.Greater(t, cues[0].KeywordIntensity, 0.0)
	assert.Greater(t, cues[0].CuriosityTrigger, 0.0)
	assert.Greater(t, cues[1].FillerDensity, cues[0].FillerDensity)
	assert.Zero(t, cues[2].KeywordIntensity)
}

func TestQuestionMarkTriggersCuriosity(t *testing.T) {
	_, curiosity, _ := scoreText("is this the best way to edit?")
	assert.GreaterOrEqual(t, curiosity, 0.3)
}

func TestStartsContextDependent(t *testing.T) {
	assert.True(t, StartsContextDependent("So then we went home"))
	assert.True(t, StartsContextDependent("and that was it"))
	assert.False(t, StartsContextDependent("The secret to retention"))
}

func TestHasTerminalPunctuation(t *testing.T) {
	assert.True(t, HasTerminalPunctuation("Done."))
	assert.True(t, HasTerminalPunctuation("Really?!"))
	assert.False(t, HasTerminalPunctuation("trailing clause,"))
	assert.False(t, HasTerminalPunctuation("  "))
}
