package model

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderMode is the user-facing shape choice.
type RenderMode string

const (
	RenderHorizontal RenderMode = "horizontal"
	RenderVertical   RenderMode = "vertical"
)

// VerticalLayoutMode selects the vertical composition.
type VerticalLayoutMode string

const (
	VerticalStacked VerticalLayoutMode = "stacked"
	VerticalSingle  VerticalLayoutMode = "single"
)

// MaxVerticalClips bounds the number of vertical sub-clips per job.
const MaxVerticalClips = 3

// HorizontalOutputKind discriminates the HorizontalOutput union.
type HorizontalOutputKind string

const (
	HorizontalQuality  HorizontalOutputKind = "quality"  // derive from requested quality tier
	HorizontalSource   HorizontalOutputKind = "source"   // keep source dimensions
	HorizontalExplicit HorizontalOutputKind = "explicit" // fixed {w,h}
)

// HorizontalOutput is the tagged union for horizontal output sizing.
type HorizontalOutput struct {
	Kind    HorizontalOutputKind `json:"kind"`
	Quality string               `json:"quality,omitempty"`
	Width   int                  `json:"width,omitempty"`
	Height  int                  `json:"height,omitempty"`
}

// FitMode controls how source frames map onto the target canvas.
type FitMode string

const (
	FitCover   FitMode = "cover"
	FitContain FitMode = "contain"
)

// WebcamCrop locates the webcam region for stacked vertical layouts,
// expressed as source-relative fractions.
type WebcamCrop struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// RenderConfig is the parsed, explicit form of the user's render settings.
type RenderConfig struct {
	Mode              RenderMode         `json:"mode"`
	Horizontal        HorizontalOutput   `json:"horizontal"`
	VerticalLayout    VerticalLayoutMode `json:"verticalLayout,omitempty"`
	VerticalClipCount int                `json:"verticalClipCount,omitempty"`
	WebcamCrop        *WebcamCrop        `json:"webcamCrop,omitempty"`
	Fit               FitMode            `json:"fit,omitempty"`
	AutoCaptions      bool               `json:"autoCaptions"`
	CaptionPreset     string             `json:"captionPreset,omitempty"` // "", "plain", "animated"
	Transitions       bool               `json:"transitions"`
	AudioPolish       bool               `json:"audioPolish"`
	Watermark         bool               `json:"watermark"`
	TargetPlatform    string             `json:"targetPlatform,omitempty"`
	Strategy          string             `json:"strategy,omitempty"` // conservative|balanced|dynamic|viral
}

// Normalize applies defaults and clamps. It is idempotent.
func (rc *RenderConfig) Normalize() {
	if rc.Mode == "" {
		rc.Mode = RenderHorizontal
	}
	if rc.Horizontal.Kind == "" {
		rc.Horizontal.Kind = HorizontalQuality
	}
	if rc.Horizontal.Kind == HorizontalQuality && rc.Horizontal.Quality == "" {
		rc.Horizontal.Quality = "1080p"
	}
	if rc.Mode == RenderVertical {
		if rc.VerticalLayout == "" {
			rc.VerticalLayout = VerticalSingle
		}
		if rc.VerticalClipCount <= 0 {
			rc.VerticalClipCount = 1
		}
		if rc.VerticalClipCount > MaxVerticalClips {
			rc.VerticalClipCount = MaxVerticalClips
		}
	}
	if rc.Fit == "" {
		rc.Fit = FitCover
	}
	if rc.Strategy == "" {
		rc.Strategy = "balanced"
	}
}

// TargetDimensions resolves the output canvas for horizontal renders and
// the fixed 1080x1920 canvas for vertical ones. Source dimensions are the
// probed input size.
func (rc *RenderConfig) TargetDimensions(srcW, srcH int) (int, int) {
	if rc.Mode == RenderVertical {
		return 1080, 1920
	}
	switch rc.Horizontal.Kind {
	case HorizontalSource:
		if srcW > 0 && srcH > 0 {
			return evenDim(srcW), evenDim(srcH)
		}
		return 1920, 1080
	case HorizontalExplicit:
		if rc.Horizontal.Width > 0 && rc.Horizontal.Height > 0 {
			return evenDim(rc.Horizontal.Width), evenDim(rc.Horizontal.Height)
		}
		return 1920, 1080
	default:
		switch strings.ToLower(rc.Horizontal.Quality) {
		case "720p":
			return 1280, 720
		case "1440p":
			return 2560, 1440
		case "4k", "2160p":
			return 3840, 2160
		default:
			return 1920, 1080
		}
	}
}

func evenDim(v int) int {
	if v%2 != 0 {
		return v + 1
	}
	return v
}

// ToPersisted flattens the config into the analysis-blob map shape.
func (rc *RenderConfig) ToPersisted() map[string]interface{} {
	rc.Normalize()
	out := map[string]interface{}{
		"mode":           string(rc.Mode),
		"fit":            string(rc.Fit),
		"autoCaptions":   rc.AutoCaptions,
		"captionPreset":  rc.CaptionPreset,
		"transitions":    rc.Transitions,
		"audioPolish":    rc.AudioPolish,
		"watermark":      rc.Watermark,
		"targetPlatform": rc.TargetPlatform,
		"strategy":       rc.Strategy,
	}
	switch rc.Horizontal.Kind {
	case HorizontalSource:
		out["horizontalMode"] = "source"
	case HorizontalExplicit:
		out["horizontalMode"] = fmt.Sprintf("%dx%d", rc.Horizontal.Width, rc.Horizontal.Height)
	default:
		out["horizontalMode"] = rc.Horizontal.Quality
	}
	if rc.Mode == RenderVertical {
		out["verticalLayout"] = string(rc.VerticalLayout)
		out["verticalClipCount"] = rc.VerticalClipCount
		if rc.WebcamCrop != nil {
			out["webcamCrop"] = map[string]interface{}{
				"x": rc.WebcamCrop.X, "y": rc.WebcamCrop.Y,
				"w": rc.WebcamCrop.W, "h": rc.WebcamCrop.H,
			}
		}
	}
	return out
}

// ParseRenderConfig rebuilds a RenderConfig from the persisted map shape.
// Unknown fields are ignored; absent fields default via Normalize.
func ParseRenderConfig(raw map[string]interface{}) RenderConfig {
	rc := RenderConfig{}
	if raw == nil {
		rc.Normalize()
		return rc
	}
	rc.Mode = RenderMode(asString(raw["mode"]))
	rc.Fit = FitMode(asString(raw["fit"]))
	rc.AutoCaptions = asBool(raw["autoCaptions"])
	rc.CaptionPreset = asString(raw["captionPreset"])
	rc.Transitions = asBool(raw["transitions"])
	rc.AudioPolish = asBool(raw["audioPolish"])
	rc.Watermark = asBool(raw["watermark"])
	rc.TargetPlatform = asString(raw["targetPlatform"])
	rc.Strategy = asString(raw["strategy"])

	switch hm := asString(raw["horizontalMode"]); {
	case hm == "source":
		rc.Horizontal = HorizontalOutput{Kind: HorizontalSource}
	case strings.Contains(hm, "x"):
		parts := strings.SplitN(hm, "x", 2)
		w, werr := strconv.Atoi(parts[0])
		h, herr := strconv.Atoi(parts[1])
		if werr == nil && herr == nil && w > 0 && h > 0 {
			rc.Horizontal = HorizontalOutput{Kind: HorizontalExplicit, Width: w, Height: h}
		} else {
			rc.Horizontal = HorizontalOutput{Kind: HorizontalQuality, Quality: "1080p"}
		}
	case hm != "":
		rc.Horizontal = HorizontalOutput{Kind: HorizontalQuality, Quality: hm}
	}

	rc.VerticalLayout = VerticalLayoutMode(asString(raw["verticalLayout"]))
	rc.VerticalClipCount = int(asFloat(raw["verticalClipCount"]))
	if crop, ok := raw["webcamCrop"].(map[string]interface{}); ok {
		rc.WebcamCrop = &WebcamCrop{
			X: asFloat(crop["x"]), Y: asFloat(crop["y"]),
			W: asFloat(crop["w"]), H: asFloat(crop["h"]),
		}
	}
	rc.Normalize()
	return rc
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err == nil {
			return f
		}
	}
	return 0
}
