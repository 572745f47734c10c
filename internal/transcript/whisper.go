package transcript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Marquise34567/editor-backend-sub000/internal/log"
	"github.com/Marquise34567/editor-backend-sub000/internal/media"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// SidecarConfig selects the transcription sidecar.
type SidecarConfig struct {
	Bin   string // empty disables transcription
	Model string
	Args  string // extra args, space-separated
}

// Transcribe runs the whisper-like sidecar against inputPath and parses the
// SRT it writes next to the input (keyed by basename). A missing sidecar or
// missing output yields zero cues, not an error: the pipeline degrades to
// non-verbal scoring.
func Transcribe(ctx context.Context, runner *media.Runner, cfg SidecarConfig, inputPath, workDir string) ([]model.TranscriptCue, error) {
	logger := log.WithJob("transcript", runner.JobID)
	if cfg.Bin == "" {
		logger.Info().Msg("transcription sidecar not configured, continuing without cues")
		return nil, nil
	}

	args := []string{"-m", cfg.Model, "-f", inputPath, "--output-srt", "--output-dir", workDir}
	if cfg.Args != "" {
		args = append(args, strings.Fields(cfg.Args)...)
	}
	if _, err := runner.Run(ctx, cfg.Bin, args); err != nil {
		logger.Warn().Err(err).Msg("transcription sidecar failed, continuing without cues")
		return nil, nil
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	srtPath := filepath.Join(workDir, base+".srt")
	data, err := os.ReadFile(srtPath) // #nosec G304 -- path derived from job work dir
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("path", srtPath).Msg("sidecar produced no srt file")
			return nil, nil
		}
		return nil, fmt.Errorf("read srt: %w", err)
	}
	cues, err := ParseSRT(string(data))
	if err != nil {
		return nil, err
	}
	return ScoreCues(cues), nil
}
