package render

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

func baseOpts(segs []model.Segment) GraphOptions {
	return GraphOptions{
		Segments:     segs,
		SourceWidth:  1920,
		SourceHeight: 1080,
		TargetWidth:  1920,
		TargetHeight: 1080,
		Fit:          model.FitCover,
		HasAudio:     true,
		SampleRate:   48000,
	}
}

func TestBuildGraphSharedBaseForNonZoom(t *testing.T) {
	graph := BuildGraph(baseOpts([]model.Segment{
		{Start: 0, End: 3, Speed: 1, AudioGain: 1},
		{Start: 5, End: 8, Speed: 1, AudioGain: 1},
	}))
	// One shared scale for both non-zoom segments.
	assert.Equal(t, 1, strings.Count(graph.FilterComplex, "force_original_aspect_ratio"))
	assert.Contains(t, graph.FilterComplex, "[base]trim=start=0:end=3")
	assert.Contains(t, graph.FilterComplex, "[base]trim=start=5:end=8")
	assert.Contains(t, graph.FilterComplex, "concat=n=2:v=1:a=1")
}

func TestBuildGraphZoomSegmentCropsSource(t *testing.T) {
	graph := BuildGraph(baseOpts([]model.Segment{
		{Start: 0, End: 3, Speed: 1, AudioGain: 1, Zoom: 0.1, FaceFocusX: 0.5, FaceFocusY: 0.4},
	}))
	assert.Contains(t, graph.FilterComplex, "[0:v]trim=start=0:end=3")
	assert.Contains(t, graph.FilterComplex, "crop=iw/1.1:ih/1.1")
	assert.NotContains(t, graph.FilterComplex, "[base]")
}

func TestBuildGraphSpeedAndAtempoChain(t *testing.T) {
	graph := BuildGraph(baseOpts([]model.Segment{
		{Start: 0, End: 10, Speed: 3, AudioGain: 1},
	}))
	assert.Contains(t, graph.FilterComplex, "setpts=(PTS-STARTPTS)/3")
	// 3x needs two atempo stages: 2.0 then 1.5.
	assert.Contains(t, graph.FilterComplex, "atempo=2,atempo=1.5")
}

func TestAtempoChainStaysInRange(t *testing.T) {
	for _, speed := range []float64{0.25, 0.4, 0.75, 1.5, 2.5, 4.0} {
		chain := atempoChain(speed)
		for _, part := range strings.Split(chain, ",") {
			if part == "" {
				continue
			}
			require.True(t, strings.HasPrefix(part, "atempo="), part)
			v := strings.TrimPrefix(part, "atempo=")
			assert.NotEmpty(t, v)
		}
		product := 1.0
		for _, part := range strings.Split(chain, ",") {
			if !strings.HasPrefix(part, "atempo=") {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimPrefix(part, "atempo="), 64)
			require.NoError(t, err)
			require.GreaterOrEqual(t, f, 0.5)
			require.LessOrEqual(t, f, 2.0)
			product *= f
		}
		assert.InDelta(t, speed, product, 1e-4)
	}
}

func TestBuildGraphXfadeStitch(t *testing.T) {
	opts := baseOpts([]model.Segment{
		{Start: 0, End: 4, Speed: 1, AudioGain: 1},
		{Start: 6, End: 10, Speed: 1, AudioGain: 1, TransitionStyle: model.TransitionJump},
	})
	opts.Transitions = true
	opts.HasXfade = true
	graph := BuildGraph(opts)
	assert.Contains(t, graph.FilterComplex, "xfade=transition=fade:duration=0.012")
	assert.Contains(t, graph.FilterComplex, "acrossfade")
	assert.NotContains(t, graph.FilterComplex, "concat=")
}

func TestBuildGraphSubtitleAndWatermark(t *testing.T) {
	opts := baseOpts([]model.Segment{{Start: 0, End: 4, Speed: 1, AudioGain: 1}})
	opts.SubtitlePath = "/tmp/subs.srt"
	opts.SubtitleStyle = PlainSubtitleStyle
	opts.WatermarkImage = true
	graph := BuildGraph(opts)
	assert.Contains(t, graph.FilterComplex, "subtitles=")
	assert.Contains(t, graph.FilterComplex, "force_style=")
	assert.Contains(t, graph.FilterComplex, "overlay=W-w-24:H-h-24")
	assert.Equal(t, "[vwm]", graph.VideoLabel)
}

func TestAudioPolishChainLoudnessClamped(t *testing.T) {
	chain := audioPolishChain(AudioPolishOptions{Enabled: true, LoudnessLUFS: -20})
	assert.Contains(t, chain, "loudnorm=I=-14.6")
	chain = audioPolishChain(AudioPolishOptions{Enabled: true, LoudnessLUFS: -10})
	assert.Contains(t, chain, "loudnorm=I=-13.4")
}

func TestPickVerticalClipsSpacingAndClamp(t *testing.T) {
	windows := make([]model.EngagementWindow, 300)
	for i := range windows {
		windows[i].Score = 0.3
	}
	windows[40].Score = 0.95
	windows[150].Score = 0.9
	windows[260].Score = 0.85

	clips := PickVerticalClips(windows, 300, 9, "tiktok")
	require.NotEmpty(t, clips)
	assert.LessOrEqual(t, len(clips), model.MaxVerticalClips)
	for i := 1; i < len(clips); i++ {
		assert.GreaterOrEqual(t, clips[i].Start, clips[i-1].End-1)
	}
	for _, c := range clips {
		assert.GreaterOrEqual(t, c.Start, 0.0)
		assert.LessOrEqual(t, c.End, 300.0)
	}
}

func TestBuildVerticalGraphStacked(t *testing.T) {
	crop := &model.WebcamCrop{X: 0.6, Y: 0, W: 0.4, H: 0.35}
	graph := BuildVerticalGraph(model.TimeRange{Start: 10, End: 40}, model.VerticalStacked, crop, "", "", 48000)
	assert.Contains(t, graph.FilterComplex, "vstack=inputs=2")
	assert.Contains(t, graph.FilterComplex, "crop=iw*0.4:ih*0.35:iw*0.6:ih*0")

	single := BuildVerticalGraph(model.TimeRange{Start: 10, End: 40}, model.VerticalSingle, nil, "", "", 48000)
	assert.NotContains(t, single.FilterComplex, "vstack")
	assert.Contains(t, single.FilterComplex, "1080:1920")
}
