// Package transcript parses subtitle cues produced by the transcription
// sidecar and scores keyword, curiosity and filler density per cue.
package transcript

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// ParseSRT reads SRT-shaped text into cues. Malformed blocks are skipped;
// an empty input yields no cues and no error.
func ParseSRT(content string) ([]model.TranscriptCue, error) {
	var cues []model.TranscriptCue
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var block []string
	flush := func() {
		if cue, ok := parseBlock(block); ok {
			cues = append(cues, cue)
		}
		block = block[:0]
	}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	flush()
	if err := scanner.Err(); err != nil {
		return cues, fmt.Errorf("scan srt: %w", err)
	}
	return cues, nil
}

// parseBlock handles one SRT block: optional index line, timing line, text.
func parseBlock(lines []string) (model.TranscriptCue, bool) {
	if len(lines) < 2 {
		return model.TranscriptCue{}, false
	}
	timingIdx := 0
	if !strings.Contains(lines[0], "-->") {
		timingIdx = 1
		if len(lines) < 3 || !strings.Contains(lines[1], "-->") {
			return model.TranscriptCue{}, false
		}
	}
	parts := strings.SplitN(lines[timingIdx], "-->", 2)
	start, err1 := parseTimestamp(strings.TrimSpace(parts[0]))
	end, err2 := parseTimestamp(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || end <= start {
		return model.TranscriptCue{}, false
	}
	text := strings.TrimSpace(strings.Join(lines[timingIdx+1:], " "))
	if text == "" {
		return model.TranscriptCue{}, false
	}
	return model.TranscriptCue{Start: start, End: end, Text: text}, true
}

// parseTimestamp accepts "HH:MM:SS,mmm" and the "." millisecond variant.
func parseTimestamp(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("bad timestamp %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	return float64(h)*3600 + float64(m)*60 + sec, nil
}

// FormatSRT renders cues back into SRT text, used when remapping
// subtitles onto clip-relative timelines.
func FormatSRT(cues []model.TranscriptCue) string {
	var b strings.Builder
	for i, cue := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, formatTimestamp(cue.Start), formatTimestamp(cue.End), cue.Text)
	}
	return b.String()
}

func formatTimestamp(t float64) string {
	if t < 0 {
		t = 0
	}
	h := int(t) / 3600
	m := (int(t) % 3600) / 60
	s := int(t) % 60
	ms := int((t - float64(int(t))) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// RemapToWindow shifts cues into a clip window, clipping cue edges to the
// window and re-basing times at zero. Cues fully outside are dropped.
func RemapToWindow(cues []model.TranscriptCue, start, end float64) []model.TranscriptCue {
	var out []model.TranscriptCue
	for _, cue := range cues {
		if cue.End <= start || cue.Start >= end {
			continue
		}
		mapped := cue
		if mapped.Start < start {
			mapped.Start = start
		}
		if mapped.End > end {
			mapped.End = end
		}
		mapped.Start -= start
		mapped.End -= start
		out = append(out, mapped)
	}
	return out
}
