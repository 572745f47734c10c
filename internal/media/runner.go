// Package media owns every interaction with the external media toolchain:
// binary discovery, capability probing, supervised one-shot process runs
// with bounded output capture, and stream probing.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/Marquise34567/editor-backend-sub000/internal/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	startTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_ffmpeg_start_total",
		Help: "Total number of media tool process starts",
	}, []string{"result"})

	exitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_ffmpeg_exit_total",
		Help: "Total number of media tool process exits",
	}, []string{"reason"})
)

// MaxCaptureBytes bounds stderr/stdout capture per run.
const MaxCaptureBytes = 10 << 20 // 10 MB

// StderrTailChars is the persisted stderr truncation limit.
const StderrTailChars = 3500

// ProcessRegistry lets the scheduler track live children per job so Cancel
// can SIGKILL them. Register must be cheap; Unregister must be idempotent.
type ProcessRegistry interface {
	RegisterProcess(jobID string, cmd *exec.Cmd)
	UnregisterProcess(jobID string, cmd *exec.Cmd)
	IsCanceled(jobID string) bool
}

// nopRegistry backs runs outside a scheduled pipeline (tests, CLIs).
type nopRegistry struct{}

func (nopRegistry) RegisterProcess(string, *exec.Cmd)   {}
func (nopRegistry) UnregisterProcess(string, *exec.Cmd) {}
func (nopRegistry) IsCanceled(string) bool              { return false }

// NopRegistry is a ProcessRegistry that tracks nothing.
var NopRegistry ProcessRegistry = nopRegistry{}

// Result captures one finished process run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string // full capture, bounded by MaxCaptureBytes
	Command  string
	Elapsed  time.Duration
}

// StderrTail returns the persisted-size suffix of stderr.
func (r Result) StderrTail() string {
	if len(r.Stderr) > StderrTailChars {
		return r.Stderr[len(r.Stderr)-StderrTailChars:]
	}
	return r.Stderr
}

// Runner executes media tool commands on behalf of one job, registering
// every child with the scheduler and honoring the cancel set at each
// launch boundary.
type Runner struct {
	JobID    string
	Registry ProcessRegistry
}

// NewRunner builds a Runner; registry may be nil outside the scheduler.
func NewRunner(jobID string, registry ProcessRegistry) *Runner {
	if registry == nil {
		registry = NopRegistry
	}
	return &Runner{JobID: jobID, Registry: registry}
}

// ErrJobCanceled is returned when the job's cancel flag is set at a
// suspension point.
var ErrJobCanceled = errors.New("job canceled")

// CheckCanceled raises ErrJobCanceled if the cancel flag is set.
func (r *Runner) CheckCanceled() error {
	if r.Registry.IsCanceled(r.JobID) {
		return ErrJobCanceled
	}
	return nil
}

// limitedBuffer stops growing past max but keeps counting.
type limitedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.buf.Len() < b.max {
		room := b.max - b.buf.Len()
		if room > len(p) {
			room = len(p)
		}
		b.buf.Write(p[:room])
	}
	return len(p), nil
}

// Run launches bin with args and waits for exit. The child runs in its own
// process group and is registered under the runner's job id for the whole
// run. A non-zero exit returns both the Result and an error.
func (r *Runner) Run(ctx context.Context, bin string, args []string) (Result, error) {
	if err := r.CheckCanceled(); err != nil {
		return Result{}, err
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	cmd := exec.CommandContext(ctx, bin, args...) // #nosec G204 -- argv built internally
	SetProcessGroup(cmd)
	cmd.Cancel = func() error {
		return KillGroup(cmd, syscall.SIGKILL)
	}

	stdout := &limitedBuffer{max: MaxCaptureBytes}
	stderr := &limitedBuffer{max: MaxCaptureBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger := log.WithJob("media", r.JobID)
	started := time.Now()
	if err := cmd.Start(); err != nil {
		startTotal.WithLabelValues("error").Inc()
		return Result{Command: cmd.String()}, fmt.Errorf("start %s: %w", bin, err)
	}
	startTotal.WithLabelValues("ok").Inc()
	r.Registry.RegisterProcess(r.JobID, cmd)
	defer r.Registry.UnregisterProcess(r.JobID, cmd)

	waitErr := cmd.Wait()
	elapsed := time.Since(started)

	res := Result{
		ExitCode: 0,
		Stdout:   stdout.buf.String(),
		Stderr:   stderr.buf.String(),
		Command:  cmd.String(),
		Elapsed:  elapsed,
	}
	if waitErr != nil {
		res.ExitCode = 1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
	}

	// Cancellation takes precedence over the raw exit error so the caller
	// sees queue_canceled rather than a SIGKILL exit code.
	if err := r.CheckCanceled(); err != nil {
		exitTotal.WithLabelValues("canceled").Inc()
		return res, err
	}
	if ctx.Err() != nil {
		exitTotal.WithLabelValues("ctx_cancel").Inc()
		return res, ctx.Err()
	}
	if waitErr != nil {
		exitTotal.WithLabelValues("error").Inc()
		logger.Debug().
			Int("exit_code", res.ExitCode).
			Dur("elapsed", elapsed).
			Str("bin", bin).
			Msg("media tool run failed")
		return res, fmt.Errorf("%s exited with code %d: %w", bin, res.ExitCode, waitErr)
	}
	exitTotal.WithLabelValues("clean").Inc()
	return res, nil
}

// RunStreaming launches bin and feeds each stderr line to onLine while the
// process runs; stdout is discarded. Used by extractors that parse
// progress-style filter output.
func (r *Runner) RunStreaming(ctx context.Context, bin string, args []string, onLine func(string)) error {
	res, err := r.Run(ctx, bin, args)
	if err != nil && res.Stderr == "" {
		return err
	}
	for _, line := range splitLines(res.Stderr) {
		onLine(line)
	}
	return err
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

var _ io.Writer = (*limitedBuffer)(nil)
