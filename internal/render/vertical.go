package render

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// Vertical canvas and clip bounds.
const (
	verticalWidth  = 1080
	verticalHeight = 1920

	verticalClipMinSec = 12.0
	verticalClipMaxSec = 45.0

	// Stacked layout split: webcam on top, fitted frame below.
	stackTopHeight = 760
)

// PickVerticalClips selects up to count best sub-ranges: engagement peaks
// expanded to a platform-preferred length, spaced so clips never overlap
// and never crowd the same beat.
func PickVerticalClips(windows []model.EngagementWindow, duration float64, count int, platform string) []model.TimeRange {
	if count <= 0 {
		count = 1
	}
	if count > model.MaxVerticalClips {
		count = model.MaxVerticalClips
	}
	if len(windows) == 0 || duration <= 0 {
		return nil
	}

	clipLen := preferredClipLength(platform)
	if clipLen > duration {
		clipLen = duration
	}
	minSpacing := clipLen * 0.75

	type peak struct {
		sec   int
		score float64
	}
	peaks := make([]peak, 0, len(windows))
	for i, w := range windows {
		peaks = append(peaks, peak{sec: i, score: w.Score*0.6 + w.HookScore*0.4})
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].score > peaks[j].score })

	var clips []model.TimeRange
	for _, p := range peaks {
		if len(clips) >= count {
			break
		}
		start := float64(p.sec) - clipLen/3
		if start < 0 {
			start = 0
		}
		end := start + clipLen
		if end > duration {
			end = duration
			start = math.Max(end-clipLen, 0)
		}
		if end-start < verticalClipMinSec && end-start < duration {
			continue
		}
		tooClose := false
		for _, c := range clips {
			center := (start + end) / 2
			existing := (c.Start + c.End) / 2
			if math.Abs(center-existing) < minSpacing {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		clips = append(clips, model.TimeRange{Start: start, End: end})
	}
	sort.Slice(clips, func(i, j int) bool { return clips[i].Start < clips[j].Start })
	return clips
}

func preferredClipLength(platform string) float64 {
	switch platform {
	case "youtube":
		return 40 // shorts run longer
	case "instagram":
		return 25
	default: // tiktok
		return 30
	}
}

// BuildVerticalGraph emits the filter chain for one vertical clip. The
// single layout fits the full frame onto the canvas; the stacked layout
// crops the webcam region on top and fits the full frame below it.
func BuildVerticalGraph(clip model.TimeRange, layout model.VerticalLayoutMode, crop *model.WebcamCrop, subtitlePath, subtitleStyle string, sampleRate int) Graph {
	var b strings.Builder
	bottomHeight := verticalHeight - stackTopHeight

	switch {
	case layout == model.VerticalStacked && crop != nil:
		fmt.Fprintf(&b,
			"[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS,split=2[cam][main];",
			ffNum(clip.Start), ffNum(clip.End))
		fmt.Fprintf(&b,
			"[cam]crop=iw*%s:ih*%s:iw*%s:ih*%s,scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1[top];",
			ffNum(crop.W), ffNum(crop.H), ffNum(crop.X), ffNum(crop.Y),
			verticalWidth, stackTopHeight, verticalWidth, stackTopHeight)
		fmt.Fprintf(&b,
			"[main]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1[bottom];",
			verticalWidth, bottomHeight, verticalWidth, bottomHeight)
		fmt.Fprintf(&b, "[top][bottom]vstack=inputs=2,format=yuv420p[vclip];")
	default:
		fmt.Fprintf(&b,
			"[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS,scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,format=yuv420p[vclip];",
			ffNum(clip.Start), ffNum(clip.End),
			verticalWidth, verticalHeight, verticalWidth, verticalHeight)
	}

	videoLabel := "[vclip]"
	if subtitlePath != "" {
		fmt.Fprintf(&b, "%ssubtitles='%s'%s[vsub];", videoLabel, escapeFilterPath(subtitlePath), subtitleStyleArg(subtitleStyle))
		videoLabel = "[vsub]"
	}

	if sampleRate <= 0 {
		sampleRate = 48000
	}
	fmt.Fprintf(&b,
		"[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS,aresample=%d,aformat=channel_layouts=stereo[aclip]",
		ffNum(clip.Start), ffNum(clip.End), sampleRate)

	return Graph{FilterComplex: b.String(), VideoLabel: videoLabel, AudioLabel: "[aclip]"}
}

// RenderVerticalClip runs one vertical clip graph through the executor's
// runner with the standard encode settings and output verification.
func (e *Executor) RenderVerticalClip(ctx context.Context, inputPath, outputPath string, graph Graph) error {
	args := []string{"-hide_banner", "-y", "-i", inputPath}
	if e.Enc.FilterThreads > 0 {
		args = append(args, "-filter_threads", strconv.Itoa(e.Enc.FilterThreads))
	}
	args = append(args, "-filter_complex", graph.FilterComplex,
		"-map", graph.VideoLabel, "-map", graph.AudioLabel)
	args = append(args, e.encodeArgs()...)
	args = append(args, outputPath)

	res, err := e.Runner.Run(ctx, e.Caps.FFmpegPath, args)
	if err != nil {
		return fmt.Errorf("%w: %s", err, res.StderrTail())
	}
	return e.verifyOutput(outputPath)
}
