package media

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/Marquise34567/editor-backend-sub000/internal/log"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// Capabilities describes what the installed media tool supports. Probed
// once per process.
type Capabilities struct {
	FFmpegPath  string
	FFprobePath string
	HasFaceDetect bool
	HasXfade      bool
	HasLoudnorm   bool
}

var (
	capsOnce sync.Once
	caps     Capabilities
	capsErr  error
)

// Detect resolves the ffmpeg/ffprobe binaries and probes filter support.
// Results are memoized process-wide. ffmpegBin/ffprobeBin default to the
// bare names when empty.
func Detect(ctx context.Context, ffmpegBin, ffprobeBin string) (Capabilities, error) {
	capsOnce.Do(func() {
		if ffmpegBin == "" {
			ffmpegBin = "ffmpeg"
		}
		if ffprobeBin == "" {
			ffprobeBin = "ffprobe"
		}
		ffmpegPath, err := exec.LookPath(ffmpegBin)
		if err != nil {
			capsErr = model.ErrFFmpegMissing
			return
		}
		ffprobePath, err := exec.LookPath(ffprobeBin)
		if err != nil {
			capsErr = model.ErrFFprobeMissing
			return
		}
		caps = Capabilities{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}

		out, err := exec.CommandContext(ctx, ffmpegPath, "-hide_banner", "-filters").Output() // #nosec G204
		if err == nil {
			filters := string(out)
			caps.HasFaceDetect = strings.Contains(filters, " facedetect ")
			caps.HasXfade = strings.Contains(filters, " xfade ")
			caps.HasLoudnorm = strings.Contains(filters, " loudnorm ")
		}
		logger := log.WithComponent("media")
		logger.Info().
			Str("ffmpeg", ffmpegPath).
			Bool("facedetect", caps.HasFaceDetect).
			Bool("xfade", caps.HasXfade).
			Bool("loudnorm", caps.HasLoudnorm).
			Msg("media tool capabilities detected")
	})
	return caps, capsErr
}
