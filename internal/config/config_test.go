package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseString(t *testing.T) {
	assert.Equal(t, "fallback", ParseString("EDITOR_TEST_UNSET", "fallback"))

	t.Setenv("EDITOR_TEST_STR", "value")
	assert.Equal(t, "value", ParseString("EDITOR_TEST_STR", "fallback"))

	t.Setenv("EDITOR_TEST_EMPTY", "")
	assert.Equal(t, "fallback", ParseString("EDITOR_TEST_EMPTY", "fallback"))
}

func TestParseInt(t *testing.T) {
	t.Setenv("EDITOR_TEST_INT", "42")
	assert.Equal(t, 42, ParseInt("EDITOR_TEST_INT", 7))

	t.Setenv("EDITOR_TEST_INT", "not-a-number")
	assert.Equal(t, 7, ParseInt("EDITOR_TEST_INT", 7))

	assert.Equal(t, 7, ParseInt("EDITOR_TEST_INT_UNSET", 7))
}

func TestParseFloatAndBool(t *testing.T) {
	t.Setenv("EDITOR_TEST_FLOAT", "1.25")
	assert.Equal(t, 1.25, ParseFloat("EDITOR_TEST_FLOAT", 0))

	t.Setenv("EDITOR_TEST_BOOL", "true")
	assert.True(t, ParseBool("EDITOR_TEST_BOOL", false))
	t.Setenv("EDITOR_TEST_BOOL", "nope")
	assert.False(t, ParseBool("EDITOR_TEST_BOOL", false))
}

func TestParseMillis(t *testing.T) {
	t.Setenv("EDITOR_TEST_MS", "1500")
	assert.Equal(t, 1500*time.Millisecond, ParseMillis("EDITOR_TEST_MS", time.Second))

	// Negative values fall back to the default.
	t.Setenv("EDITOR_TEST_MS", "-20")
	assert.Equal(t, time.Second, ParseMillis("EDITOR_TEST_MS", time.Second))
}

func TestDefaultPipelineConcurrency(t *testing.T) {
	assert.Equal(t, 1, DefaultPipelineConcurrency(1))
	assert.Equal(t, 2, DefaultPipelineConcurrency(2))
	assert.Equal(t, 3, DefaultPipelineConcurrency(4))
	assert.Equal(t, 4, DefaultPipelineConcurrency(8))
	assert.Equal(t, 4, DefaultPipelineConcurrency(32))
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	assert.Equal(t, 180, cfg.MaxRenderSegments)
	assert.Equal(t, 95, cfg.LongFormRuntimeThresholdSec)
	assert.Equal(t, 16000, cfg.FilterComplexScriptThreshold)
	assert.Equal(t, 30*time.Second, cfg.QueueRecoveryInterval)
	assert.Equal(t, 90*time.Minute, cfg.StalePipelineAfter)
	assert.Equal(t, 24, cfg.HookCalibrationLookback)
	assert.Equal(t, 1.25, cfg.HookSelectionStartToleranceSec)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("JOB_CONCURRENCY", "2")
	t.Setenv("MAX_RENDER_SEGMENTS", "90")
	t.Setenv("STALE_PIPELINE_MS", "60000")
	t.Setenv("JOB_STORE_BACKEND", "badger")

	cfg := FromEnv()
	assert.Equal(t, 2, cfg.JobConcurrency)
	assert.Equal(t, 90, cfg.MaxRenderSegments)
	assert.Equal(t, time.Minute, cfg.StalePipelineAfter)
	assert.Equal(t, "badger", cfg.StoreBackend)
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("job_concurrency: 3\nwork_root: /tmp/editor-work\n"), 0o644))

	cfg := FromEnv()
	require.NoError(t, LoadFile(&cfg, path, false))
	assert.Equal(t, 3, cfg.JobConcurrency)
	assert.Equal(t, "/tmp/editor-work", cfg.WorkRoot)
	// Keys absent from the file keep their prior values.
	assert.Equal(t, 180, cfg.MaxRenderSegments)
}

func TestLoadFileMissing(t *testing.T) {
	var cfg Config
	assert.NoError(t, LoadFile(&cfg, "/nonexistent/config.yaml", true))
	assert.Error(t, LoadFile(&cfg, "/nonexistent/config.yaml", false))
}
