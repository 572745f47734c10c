package render

import (
	"fmt"
	"strings"
)

// AudioPolishOptions selects the post-stitch audio cleanup stages.
type AudioPolishOptions struct {
	Enabled     bool
	Denoise     bool
	DeEss       bool
	MonoToStereo bool
	Limiter     bool
	LoudnessLUFS float64 // platform target, [-14.6, -13.4]
}

// PolishForPlatform returns the default polish settings per platform.
func PolishForPlatform(platform string) AudioPolishOptions {
	opts := AudioPolishOptions{Enabled: true, Limiter: true}
	switch platform {
	case "tiktok", "instagram":
		opts.LoudnessLUFS = -13.4
	case "youtube":
		opts.LoudnessLUFS = -14.6
	default:
		opts.LoudnessLUFS = -14.0
	}
	return opts
}

// audioPolishChain emits the polish filter sequence: band-limiting, tonal
// EQ, optional denoise and de-ess, dynamic normalization, multiband-style
// compression and loudness normalization to the platform target.
func audioPolishChain(opts AudioPolishOptions) string {
	var stages []string
	stages = append(stages,
		"highpass=f=70",
		"lowpass=f=15000",
		"equalizer=f=250:t=q:w=1:g=-1.5",
		"equalizer=f=3200:t=q:w=1.2:g=1.2",
	)
	if opts.Denoise {
		stages = append(stages, "afftdn=nf=-28")
	}
	if opts.DeEss {
		stages = append(stages, "deesser=i=0.28")
	}
	if opts.MonoToStereo {
		stages = append(stages, "aformat=channel_layouts=stereo", "stereotools=mlev=0.9")
	}
	stages = append(stages,
		"dynaudnorm=f=180:g=15",
		"acompressor=threshold=-18dB:ratio=2.6:attack=12:release=180",
		fmt.Sprintf("loudnorm=I=%s:TP=-1.2:LRA=9", ffNum(clampLUFS(opts.LoudnessLUFS))),
	)
	if opts.Limiter {
		stages = append(stages, "alimiter=limit=0.97")
	}
	return strings.Join(stages, ",")
}

func clampLUFS(v float64) float64 {
	if v == 0 {
		return -14.0
	}
	if v < -14.6 {
		return -14.6
	}
	if v > -13.4 {
		return -13.4
	}
	return v
}
