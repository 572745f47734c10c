package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// ProbeInfo is the parsed subset of the probe tool's JSON output.
type ProbeInfo struct {
	DurationSeconds float64
	Width           int
	Height          int
	SampleAspect    string
	FPS             float64
	HasAudio        bool
	AudioChannels   int
	ChannelLayout   string
	SampleRate      int
	AudioBitRate    int
}

type probeJSON struct {
	Streams []struct {
		CodecType     string `json:"codec_type"`
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		SampleAspect  string `json:"sample_aspect_ratio"`
		AvgFrameRate  string `json:"avg_frame_rate"`
		Channels      int    `json:"channels"`
		ChannelLayout string `json:"channel_layout"`
		SampleRate    string `json:"sample_rate"`
		BitRate       string `json:"bit_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs the probe tool against path and parses stream/format info.
// A zero or non-finite duration yields model.ErrDurationUnavailable.
func Probe(ctx context.Context, runner *Runner, ffprobeBin, path string) (ProbeInfo, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	}
	res, err := runner.Run(ctx, ffprobeBin, args)
	if err != nil {
		return ProbeInfo{}, fmt.Errorf("probe %s: %w", path, err)
	}
	return parseProbeOutput(res.Stdout)
}

func parseProbeOutput(out string) (ProbeInfo, error) {
	var raw probeJSON
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return ProbeInfo{}, fmt.Errorf("decode probe output: %w", err)
	}
	info := ProbeInfo{}
	info.DurationSeconds, _ = strconv.ParseFloat(raw.Format.Duration, 64)
	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if info.Width == 0 {
				info.Width = s.Width
				info.Height = s.Height
				info.SampleAspect = s.SampleAspect
				info.FPS = parseFrameRate(s.AvgFrameRate)
			}
		case "audio":
			if !info.HasAudio {
				info.HasAudio = true
				info.AudioChannels = s.Channels
				info.ChannelLayout = s.ChannelLayout
				info.SampleRate, _ = strconv.Atoi(s.SampleRate)
				info.AudioBitRate, _ = strconv.Atoi(s.BitRate)
			}
		}
	}
	if info.DurationSeconds <= 0 || info.DurationSeconds != info.DurationSeconds {
		return info, model.ErrDurationUnavailable
	}
	return info, nil
}

// parseFrameRate handles the "num/den" shape of avg_frame_rate.
func parseFrameRate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 1 {
		f, _ := strconv.ParseFloat(parts[0], 64)
		return f
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
