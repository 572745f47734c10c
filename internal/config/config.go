// Package config collects every runtime knob of the editing engine.
// All keys are environment-driven; an optional YAML file may overlay
// defaults before the environment is applied.
package config

import (
	"runtime"
	"time"
)

// Config is the full runtime configuration of the engine.
type Config struct {
	// Scheduling
	JobConcurrency          int           `yaml:"job_concurrency"`
	QueueRecoveryInterval   time.Duration `yaml:"queue_recovery_interval"`
	StalePipelineAfter      time.Duration `yaml:"stale_pipeline_after"`
	HookCalibrationLookback int           `yaml:"hook_calibration_lookback"`

	// Analysis
	HookAnalyzeMaxSeconds int  `yaml:"hook_analyze_max_seconds"`
	AnalysisFrameFPS      int  `yaml:"analysis_frame_fps"`
	AnalysisFrameWidth    int  `yaml:"analysis_frame_width"`
	DisableFaceDetection  bool `yaml:"disable_face_detection"`
	DisableTextDensity    bool `yaml:"disable_text_density"`
	DisableEmotionModel   bool `yaml:"disable_emotion_model"`

	// Rendering
	MaxRenderSegments            int    `yaml:"max_render_segments"`
	LongFormRuntimeThresholdSec  int    `yaml:"long_form_runtime_threshold_seconds"`
	LongFormContextWindowSec     int    `yaml:"long_form_context_window_seconds"`
	FilterComplexScriptThreshold int    `yaml:"filter_complex_script_threshold"`
	FFmpegBin                    string `yaml:"ffmpeg_bin"`
	FFprobeBin                   string `yaml:"ffprobe_bin"`
	FFmpegFilterThreads          int    `yaml:"ffmpeg_filter_threads"`
	FFmpegPreset                 string `yaml:"ffmpeg_preset"`
	FFmpegCRF                    int    `yaml:"ffmpeg_crf"`
	FFmpegAudioBitrate           string `yaml:"ffmpeg_audio_bitrate"`
	FFmpegAudioSampleRate        int    `yaml:"ffmpeg_audio_sample_rate"`
	WatermarkImagePath           string `yaml:"watermark_image_path"`

	// Sidecars
	WhisperBin          string `yaml:"whisper_bin"`
	WhisperModel        string `yaml:"whisper_model"`
	WhisperArgs         string `yaml:"whisper_args"`
	TextDensityModelBin string `yaml:"text_density_model_bin"`
	TesseractBin        string `yaml:"tesseract_bin"`
	EnableTesseract     bool   `yaml:"enable_tesseract"`
	EmotionModelBin     string `yaml:"emotion_model_bin"`

	// Hook selection
	HookSelectionWait              time.Duration `yaml:"hook_selection_wait"`
	HookSelectionPoll              time.Duration `yaml:"hook_selection_poll"`
	HookSelectionTopK              int           `yaml:"hook_selection_top_k"`
	HookSelectionStartToleranceSec float64       `yaml:"hook_selection_start_tolerance_sec"`
	HookSelectionDurToleranceSec   float64       `yaml:"hook_selection_duration_tolerance_sec"`

	// Storage
	WorkRoot         string `yaml:"work_root"`
	OutputMirrorRoot string `yaml:"output_mirror_root"`
	S3Endpoint       string `yaml:"s3_endpoint"`
	S3Region         string `yaml:"s3_region"`
	S3Bucket         string `yaml:"s3_bucket"`
	S3AccessKeyID    string `yaml:"s3_access_key_id"`
	S3SecretKey      string `yaml:"s3_secret_key"`

	// Job store
	StoreBackend string `yaml:"store_backend"` // memory | sqlite | badger
	SQLitePath   string `yaml:"sqlite_path"`
	BadgerDir    string `yaml:"badger_dir"`

	// Realtime
	RedisAddr    string `yaml:"redis_addr"`
	RedisChannel string `yaml:"redis_channel"`

	// Observability
	MetricsAddr string `yaml:"metrics_addr"` // empty disables the listener
}

// DefaultPipelineConcurrency derives the worker count from the CPU count:
// 1 core runs one pipeline, 2 cores run two, larger hosts cap at four.
func DefaultPipelineConcurrency(cpus int) int {
	switch {
	case cpus <= 1:
		return 1
	case cpus == 2:
		return 2
	default:
		if cpus-1 < 4 {
			return cpus - 1
		}
		return 4
	}
}

// FromEnv builds the configuration from the process environment.
func FromEnv() Config {
	return Config{
		JobConcurrency:          ParseInt("JOB_CONCURRENCY", DefaultPipelineConcurrency(runtime.NumCPU())),
		QueueRecoveryInterval:   ParseMillis("JOB_QUEUE_RECOVERY_INTERVAL_MS", 30*time.Second),
		StalePipelineAfter:      ParseMillis("STALE_PIPELINE_MS", 90*time.Minute),
		HookCalibrationLookback: ParseInt("HOOK_CALIBRATION_LOOKBACK_JOBS", 24),

		HookAnalyzeMaxSeconds: ParseInt("HOOK_ANALYZE_MAX_SECONDS", 1800),
		AnalysisFrameFPS:      ParseInt("ANALYSIS_FRAME_FPS", 2),
		AnalysisFrameWidth:    ParseInt("ANALYSIS_FRAME_SCALE_WIDTH", 360),
		DisableFaceDetection:  ParseBool("ANALYSIS_DISABLE_FACE_DETECTION", false),
		DisableTextDensity:    ParseBool("ANALYSIS_DISABLE_TEXT_DENSITY", false),
		DisableEmotionModel:   ParseBool("ANALYSIS_DISABLE_EMOTION_MODEL", false),

		MaxRenderSegments:            ParseInt("MAX_RENDER_SEGMENTS", 180),
		LongFormRuntimeThresholdSec:  ParseInt("LONG_FORM_RUNTIME_THRESHOLD_SECONDS", 95),
		LongFormContextWindowSec:     ParseInt("LONG_FORM_CONTEXT_WINDOW_SECONDS", 18),
		FilterComplexScriptThreshold: ParseInt("FILTER_COMPLEX_SCRIPT_THRESHOLD", 16000),
		FFmpegBin:                    ParseString("FFMPEG_BIN", "ffmpeg"),
		FFprobeBin:                   ParseString("FFPROBE_BIN", "ffprobe"),
		FFmpegFilterThreads:          ParseInt("FFMPEG_FILTER_THREADS", 1),
		FFmpegPreset:                 ParseString("FFMPEG_PRESET", "veryfast"),
		FFmpegCRF:                    ParseInt("FFMPEG_CRF", 21),
		FFmpegAudioBitrate:           ParseString("FFMPEG_AUDIO_BITRATE", "160k"),
		FFmpegAudioSampleRate:        ParseInt("FFMPEG_AUDIO_SAMPLE_RATE", 48000),
		WatermarkImagePath:           ParseString("WATERMARK_IMAGE_PATH", ""),

		WhisperBin:          ParseString("WHISPER_BIN", ""),
		WhisperModel:        ParseString("WHISPER_MODEL", "base"),
		WhisperArgs:         ParseString("WHISPER_ARGS", ""),
		TextDensityModelBin: ParseString("TEXT_DENSITY_MODEL_BIN", ""),
		TesseractBin:        ParseString("TEXT_DENSITY_TESSERACT_BIN", "tesseract"),
		EnableTesseract:     ParseBool("TEXT_DENSITY_ENABLE_TESSERACT", false),
		EmotionModelBin:     ParseString("EMOTION_MODEL_BIN", ""),

		HookSelectionWait:              ParseMillis("HOOK_SELECTION_WAIT_MS", 0),
		HookSelectionPoll:              ParseMillis("HOOK_SELECTION_POLL_MS", 1500*time.Millisecond),
		HookSelectionTopK:              ParseInt("HOOK_SELECTION_TOP_K", 5),
		HookSelectionStartToleranceSec: ParseFloat("HOOK_SELECTION_MATCH_START_TOLERANCE_SEC", 1.25),
		HookSelectionDurToleranceSec:   ParseFloat("HOOK_SELECTION_MATCH_DURATION_TOLERANCE_SEC", 1.0),

		WorkRoot:         ParseString("WORK_ROOT", "work"),
		OutputMirrorRoot: ParseString("OUTPUT_MIRROR_ROOT", "outputs"),
		S3Endpoint:       ParseString("S3_ENDPOINT", ""),
		S3Region:         ParseString("S3_REGION", "us-east-1"),
		S3Bucket:         ParseString("S3_BUCKET", "editor-media"),
		S3AccessKeyID:    ParseString("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:      ParseString("S3_SECRET_ACCESS_KEY", ""),

		StoreBackend: ParseString("JOB_STORE_BACKEND", "sqlite"),
		SQLitePath:   ParseString("JOB_STORE_SQLITE_PATH", "data/jobs.db"),
		BadgerDir:    ParseString("JOB_STORE_BADGER_DIR", "data/badger"),

		RedisAddr:    ParseString("REDIS_ADDR", ""),
		RedisChannel: ParseString("REDIS_CHANNEL", "job-events"),

		MetricsAddr: ParseString("METRICS_ADDR", ""),
	}
}
