package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const astatsFixture = `[Parsed_ametadata_1 @ 0x55] frame:0    pts:0        pts_time:0
[Parsed_ametadata_1 @ 0x55] lavfi.astats.Overall.RMS_level=-30.000000
[Parsed_ametadata_1 @ 0x55] frame:1    pts:1024     pts_time:0.5
[Parsed_ametadata_1 @ 0x55] lavfi.astats.Overall.RMS_level=-12.000000
[Parsed_ametadata_1 @ 0x55] frame:2    pts:2048     pts_time:1.2
[Parsed_ametadata_1 @ 0x55] lavfi.astats.Overall.RMS_level=-inf
[Parsed_ametadata_1 @ 0x55] frame:3    pts:3072     pts_time:2.7
[Parsed_ametadata_1 @ 0x55] lavfi.astats.Overall.RMS_level=-75.000000
`

func TestParseRMSLevels(t *testing.T) {
	energy := ParseRMSLevels(astatsFixture, 3)
	require.Len(t, energy, 3)

	// Second 0 keeps the louder of its two readings: (-12+60)/60.
	assert.InDelta(t, 0.8, energy[0], 1e-9)
	// -inf parses as digital silence.
	assert.InDelta(t, 0.0, energy[1], 1e-9)
	// Readings below -60 dB clamp to the floor.
	assert.InDelta(t, 0.0, energy[2], 1e-9)
}

func TestParseRMSLevelsZeroHorizon(t *testing.T) {
	assert.Nil(t, ParseRMSLevels(astatsFixture, 0))
}

func TestParseSilences(t *testing.T) {
	stderr := `[silencedetect @ 0x55] silence_start: 4.25
[silencedetect @ 0x55] silence_end: 6.5 | silence_duration: 2.25
[silencedetect @ 0x55] silence_start: 10.0
[silencedetect @ 0x55] silence_end: 10.5 | silence_duration: 0.5
[silencedetect @ 0x55] silence_start: 18.0
`
	got := ParseSilences(stderr, 20)
	require.Len(t, got, 2)
	assert.Equal(t, SilenceRange{Start: 4.25, End: 6.5}, got[0])
	// The 0.5s run is below MinSilenceSeconds; the unterminated trailing
	// silence closes at the horizon.
	assert.Equal(t, SilenceRange{Start: 18, End: 20}, got[1])
}

func TestParseSilencesDropsShortTrailing(t *testing.T) {
	got := ParseSilences("[silencedetect @ 0x55] silence_start: 19.5\n", 20)
	assert.Empty(t, got)
}

func TestParseSceneTimes(t *testing.T) {
	stderr := `[Parsed_showinfo_1 @ 0x55] n:   0 pts:  12012 pts_time:12.012   duration:1
[Parsed_showinfo_1 @ 0x55] n:   1 pts:  30030 pts_time:30.03    duration:1
[Parsed_showinfo_1 @ 0x55] n:   2 pts:  99099 pts_time:99.099   duration:1
some unrelated stderr with pts_time:5.0
`
	got := ParseSceneTimes(stderr, 60)
	require.Len(t, got, 2)
	assert.InDelta(t, 12.012, got[0], 1e-9)
	assert.InDelta(t, 30.03, got[1], 1e-9)
}

func TestParseFaceBoxesAndFold(t *testing.T) {
	stderr := `[Parsed_metadata_2 @ 0x55] frame:0 pts:0 pts_time:3.0
[Parsed_metadata_2 @ 0x55] lavfi.facedetect.0.x=100
[Parsed_metadata_2 @ 0x55] lavfi.facedetect.0.y=50
[Parsed_metadata_2 @ 0x55] lavfi.facedetect.0.w=160
[Parsed_metadata_2 @ 0x55] lavfi.facedetect.0.h=160
[Parsed_metadata_2 @ 0x55] frame:1 pts:1 pts_time:3.5
[Parsed_metadata_2 @ 0x55] lavfi.facedetect.0.x=120
[Parsed_metadata_2 @ 0x55] lavfi.facedetect.0.y=60
[Parsed_metadata_2 @ 0x55] lavfi.facedetect.0.w=80
[Parsed_metadata_2 @ 0x55] lavfi.facedetect.0.h=80
`
	boxes := parseFaceBoxes(stderr)
	require.Len(t, boxes, 2)

	samples := FoldFaceBoxes(boxes, 10)
	require.Len(t, samples, 1)
	s := samples[0]
	assert.Equal(t, 3, s.Second)
	assert.Equal(t, 1.0, s.Presence)
	// Intensity tracks the largest box area against the analysis frame.
	assert.InDelta(t, 160.0*160.0/(640.0*360.0*0.35), s.Intensity, 1e-9)
	assert.Greater(t, s.CenterX, 0.0)
	assert.Less(t, s.CenterX, 1.0)
}

func TestParseFaceBoxesIgnoresZeroSizedBoxes(t *testing.T) {
	stderr := `pts_time:1.0
lavfi.facedetect.0.x=10
lavfi.facedetect.0.y=10
`
	assert.Empty(t, parseFaceBoxes(stderr))
}

func TestParseTextDensity(t *testing.T) {
	out := "0 0.25\n3 0.9\n3 garbage\n99 0.5\n-1 0.5\n7 1.8\n"
	got := parseTextDensity(out, 10)
	require.Len(t, got, 3)
	assert.Equal(t, TextSample{Second: 0, Density: 0.25}, got[0])
	assert.Equal(t, TextSample{Second: 3, Density: 0.9}, got[1])
	// Densities clamp into [0,1].
	assert.Equal(t, TextSample{Second: 7, Density: 1.0}, got[2])
}
