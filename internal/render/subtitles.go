package render

import (
	"fmt"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// Subtitle presets.
const (
	CaptionPresetPlain    = "plain"
	CaptionPresetAnimated = "animated"
)

// PlainSubtitleStyle is the force_style payload for the plain preset.
const PlainSubtitleStyle = "FontName=Arial Black,FontSize=15,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000,Outline=2,Bold=1,Alignment=2,MarginV=40"

// WriteAnimatedASS renders the cues as an .ass file where each word pops
// in with a scale-interp transform, and writes it atomically.
func WriteAnimatedASS(path string, cues []model.TranscriptCue, playResX, playResY int) error {
	var b strings.Builder
	fmt.Fprintf(&b, `[Script Info]
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
WrapStyle: 0

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, OutlineColour, BackColour, Bold, Outline, Shadow, Alignment, MarginL, MarginR, MarginV
Style: Pop,Arial Black,64,&H00FFFFFF,&H00000000,&H80000000,-1,3,0,2,60,60,120

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`, playResX, playResY)

	for _, cue := range cues {
		words := strings.Fields(cue.Text)
		if len(words) == 0 {
			continue
		}
		perWord := (cue.End - cue.Start) / float64(len(words))
		for i, word := range words {
			start := cue.Start + float64(i)*perWord
			end := start + perWord
			// Scale pops from 60% to 100% over the first 120ms.
			text := fmt.Sprintf(`{\fscx60\fscy60\t(0,120,\fscx100\fscy100)}%s`, assEscape(word))
			fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Pop,,0,0,0,,%s\n", assTime(start), assTime(end), text)
		}
	}
	return renameio.WriteFile(path, []byte(b.String()), 0o644)
}

func assTime(t float64) string {
	if t < 0 {
		t = 0
	}
	h := int(t) / 3600
	m := (int(t) % 3600) / 60
	s := int(t) % 60
	cs := int((t - float64(int(t))) * 100)
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

func assEscape(s string) string {
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	return strings.ReplaceAll(s, "\n", " ")
}
