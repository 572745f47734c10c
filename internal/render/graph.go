// Package render synthesizes the ffmpeg filter graph for an edit plan and
// executes it through the fallback ladder.
package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// Stitch and effect constants.
const (
	xfadeDuration   = 0.08
	jumpCutFade     = 0.012
	audioFade       = 0.04
	soundFxMinLevel = 0.16
	outputFPS       = 30
)

// GraphOptions parameterizes one graph build.
type GraphOptions struct {
	Segments     []model.Segment
	SourceWidth  int
	SourceHeight int
	TargetWidth  int
	TargetHeight int
	Fit          model.FitMode
	HasAudio     bool

	Transitions bool // xfade stitches; falls back to plain concat
	HasXfade    bool // capability probe result

	SubtitlePath   string // empty disables burn-in
	SubtitleStyle  string // force_style payload for the plain preset
	WatermarkImage bool   // second input is the watermark image
	WatermarkText  string // drawtext fallback when no image input
	NoiseFxPath    string // third input mixed under sound-fx segments

	AudioPolish    AudioPolishOptions
	SampleRate     int
	FilterThreads  int
}

// Graph is the synthesized filter description plus its output labels.
type Graph struct {
	FilterComplex string
	VideoLabel    string
	AudioLabel    string
}

// BuildGraph emits the full filter_complex for the segment list. Segment
// bounds are expected to be prepared already.
func BuildGraph(opts GraphOptions) Graph {
	var b strings.Builder

	fit := fitChain(opts)
	anyNonZoom := false
	for _, s := range opts.Segments {
		if s.Zoom == 0 {
			anyNonZoom = true
			break
		}
	}
	// Non-zoom segments trim from one shared pre-fitted stream so the graph
	// carries a single scale filter for them.
	if anyNonZoom {
		fmt.Fprintf(&b, "[0:v]%s,fps=%d[base];", fit, outputFPS)
	}

	for i, seg := range opts.Segments {
		writeVideoChain(&b, i, seg, opts, fit)
		if opts.HasAudio {
			writeAudioChain(&b, i, seg, opts)
		}
	}

	videoLabel, audioLabel := writeStitch(&b, opts)

	if opts.SubtitlePath != "" {
		next := "[vsub]"
		fmt.Fprintf(&b, "%ssubtitles='%s'%s%s;", videoLabel, escapeFilterPath(opts.SubtitlePath), subtitleStyleArg(opts.SubtitleStyle), next)
		videoLabel = next
	}
	if opts.WatermarkImage {
		fmt.Fprintf(&b, "%s[1:v]overlay=W-w-24:H-h-24[vwm];", videoLabel)
		videoLabel = "[vwm]"
	} else if opts.WatermarkText != "" {
		fmt.Fprintf(&b, "%sdrawtext=text='%s':x=w-tw-24:y=h-th-24:fontsize=28:fontcolor=white@0.6[vwm];", videoLabel, escapeFilterText(opts.WatermarkText))
		videoLabel = "[vwm]"
	}

	if opts.HasAudio && opts.AudioPolish.Enabled {
		next := "[apol]"
		fmt.Fprintf(&b, "%s%s%s;", audioLabel, audioPolishChain(opts.AudioPolish), next)
		audioLabel = next
	}

	graph := strings.TrimSuffix(b.String(), ";")
	return Graph{FilterComplex: graph, VideoLabel: videoLabel, AudioLabel: audioLabel}
}

// fitChain maps the source frame onto the target canvas.
func fitChain(opts GraphOptions) string {
	w, h := opts.TargetWidth, opts.TargetHeight
	if opts.Fit == model.FitContain {
		return fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,format=yuv420p",
			w, h, w, h)
	}
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,format=yuv420p",
		w, h, w, h)
}

func writeVideoChain(b *strings.Builder, i int, seg model.Segment, opts GraphOptions, fit string) {
	speed := seg.Speed
	if speed <= 0 {
		speed = 1
	}
	if seg.Zoom > 0 {
		// Zoomed segments crop the raw source around the face focus before
		// fitting, so the zoom does not soften an already-scaled frame.
		z := 1 + seg.Zoom
		cx := model.Clamp(seg.FaceFocusX, 0.2, 0.8)
		cy := model.Clamp(seg.FaceFocusY, 0.2, 0.8)
		fmt.Fprintf(b,
			"[0:v]trim=start=%s:end=%s,setpts=(PTS-STARTPTS)/%s,scale=iw*%s:ih*%s,crop=iw/%s:ih/%s:(iw-iw/%s)*%s:(ih-ih/%s)*%s%s,%s,fps=%d[v%d];",
			ffNum(seg.Start), ffNum(seg.End), ffNum(speed),
			ffNum(z), ffNum(z), ffNum(z), ffNum(z), ffNum(z), ffNum(cx), ffNum(z), ffNum(cy),
			eqFilter(seg), fit, outputFPS, i)
		return
	}
	fmt.Fprintf(b, "[base]trim=start=%s:end=%s,setpts=(PTS-STARTPTS)/%s%s[v%d];",
		ffNum(seg.Start), ffNum(seg.End), ffNum(speed), eqFilter(seg), i)
}

func eqFilter(seg model.Segment) string {
	if seg.Brightness == 0 {
		return ""
	}
	return fmt.Sprintf(",eq=brightness=%s", ffNum(seg.Brightness))
}

func writeAudioChain(b *strings.Builder, i int, seg model.Segment, opts GraphOptions) {
	speed := seg.Speed
	if speed <= 0 {
		speed = 1
	}
	outDur := seg.OutputDuration()
	fadeOutStart := math.Max(outDur-audioFade, 0)

	fmt.Fprintf(b, "[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS%s,volume=%s,afade=t=in:st=0:d=%s,afade=t=out:st=%s:d=%s,aresample=%d,aformat=channel_layouts=stereo",
		ffNum(seg.Start), ffNum(seg.End), atempoChain(speed), ffNum(seg.AudioGain),
		ffNum(audioFade), ffNum(fadeOutStart), ffNum(audioFade), sampleRate(opts))

	if opts.NoiseFxPath != "" && seg.SoundFxLevel >= soundFxMinLevel {
		fmt.Fprintf(b, "[asrc%d];[2:a]atrim=start=0:end=%s,asetpts=PTS-STARTPTS,volume=%s[afx%d];[asrc%d][afx%d]amix=inputs=2:duration=first[a%d];",
			i, ffNum(outDur), ffNum(seg.SoundFxLevel*0.5), i, i, i, i)
		return
	}
	fmt.Fprintf(b, "[a%d];", i)
}

// atempoChain keeps each atempo stage inside its legal [0.5,2.0] range by
// chaining stages for extreme speeds.
func atempoChain(speed float64) string {
	if speed == 1 {
		return ""
	}
	var stages []float64
	remaining := speed
	for remaining > 2.0 {
		stages = append(stages, 2.0)
		remaining /= 2.0
	}
	for remaining < 0.5 {
		stages = append(stages, 0.5)
		remaining /= 0.5
	}
	stages = append(stages, remaining)
	var b strings.Builder
	for _, s := range stages {
		fmt.Fprintf(&b, ",atempo=%s", ffNum(s))
	}
	return b.String()
}

// writeStitch joins the per-segment streams: xfade/acrossfade pairs when
// transitions are on and supported, a single concat otherwise.
func writeStitch(b *strings.Builder, opts GraphOptions) (video, audio string) {
	n := len(opts.Segments)
	if n == 1 {
		if opts.HasAudio {
			return "[v0]", "[a0]"
		}
		return "[v0]", ""
	}

	if opts.Transitions && opts.HasXfade {
		return writeXfade(b, opts)
	}

	for i := 0; i < n; i++ {
		fmt.Fprintf(b, "[v%d]", i)
		if opts.HasAudio {
			fmt.Fprintf(b, "[a%d]", i)
		}
	}
	if opts.HasAudio {
		fmt.Fprintf(b, "concat=n=%d:v=1:a=1[vcat][acat];", n)
		return "[vcat]", "[acat]"
	}
	fmt.Fprintf(b, "concat=n=%d:v=1:a=0[vcat];", n)
	return "[vcat]", ""
}

// writeXfade folds the streams pairwise. Fade length shrinks at jump-cut
// boundaries and is always bounded by half of either neighbor.
func writeXfade(b *strings.Builder, opts GraphOptions) (video, audio string) {
	n := len(opts.Segments)
	prevV := "[v0]"
	prevA := "[a0]"
	offset := opts.Segments[0].OutputDuration()
	for i := 1; i < n; i++ {
		seg := opts.Segments[i]
		fade := xfadeDuration
		if seg.TransitionStyle == model.TransitionJump {
			fade = jumpCutFade
		}
		fade = math.Min(fade, math.Min(opts.Segments[i-1].OutputDuration()/2, seg.OutputDuration()/2))

		outV := fmt.Sprintf("[vx%d]", i)
		fmt.Fprintf(b, "%s[v%d]xfade=transition=fade:duration=%s:offset=%s%s;",
			prevV, i, ffNum(fade), ffNum(math.Max(offset-fade, 0)), outV)
		prevV = outV

		if opts.HasAudio {
			outA := fmt.Sprintf("[ax%d]", i)
			fmt.Fprintf(b, "%s[a%d]acrossfade=d=%s:c1=tri:c2=tri%s;", prevA, i, ffNum(math.Max(fade, 0.01)), outA)
			prevA = outA
		}
		offset += seg.OutputDuration() - fade
	}
	if !opts.HasAudio {
		prevA = ""
	}
	return prevV, prevA
}

func sampleRate(opts GraphOptions) int {
	if opts.SampleRate > 0 {
		return opts.SampleRate
	}
	return 48000
}

// ffNum formats a float the way ffmpeg expects: plain decimal, no
// exponent, trimmed trailing zeros.
func ffNum(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, `:`, `\:`)
	return strings.ReplaceAll(p, `'`, `\'`)
}

func escapeFilterText(t string) string {
	t = strings.ReplaceAll(t, `\`, `\\`)
	t = strings.ReplaceAll(t, `:`, `\:`)
	t = strings.ReplaceAll(t, `'`, ``)
	return t
}

func subtitleStyleArg(style string) string {
	if style == "" {
		return ""
	}
	return fmt.Sprintf(":force_style='%s'", style)
}
