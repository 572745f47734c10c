// The daemon runs the editing engine: it opens the job store, detects
// the ffmpeg toolchain, wires storage and calibration into the pipeline
// worker and hands the queue to the scheduler until SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Marquise34567/editor-backend-sub000/internal/calibration"
	"github.com/Marquise34567/editor-backend-sub000/internal/config"
	"github.com/Marquise34567/editor-backend-sub000/internal/jobstore"
	"github.com/Marquise34567/editor-backend-sub000/internal/log"
	"github.com/Marquise34567/editor-backend-sub000/internal/media"
	"github.com/Marquise34567/editor-backend-sub000/internal/pipeline"
	"github.com/Marquise34567/editor-backend-sub000/internal/realtime"
	"github.com/Marquise34567/editor-backend-sub000/internal/scheduler"
	"github.com/Marquise34567/editor-backend-sub000/internal/storage"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	log.Configure(log.Config{Service: "editor-backend"})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	path := *configPath
	optional := false
	if path == "" {
		path = config.ParseString("CONFIG_FILE", "")
		optional = true
	}
	if path != "" {
		if err := config.LoadFile(&cfg, path, optional); err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("load config file")
		}
	}

	for _, dir := range []string{cfg.WorkRoot, cfg.OutputMirrorRoot, filepath.Dir(cfg.SQLitePath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal().Err(err).Str("dir", dir).Msg("create data directory")
		}
	}

	caps, err := media.Detect(ctx, cfg.FFmpegBin, cfg.FFprobeBin)
	if err != nil {
		logger.Fatal().Err(err).Msg("ffmpeg toolchain unavailable")
	}
	logger.Info().
		Str("ffmpeg", caps.FFmpegPath).
		Bool("xfade", caps.HasXfade).
		Bool("loudnorm", caps.HasLoudnorm).
		Bool("face_detect", caps.HasFaceDetect).
		Msg("media capabilities detected")

	var pub realtime.Publisher = realtime.NopPublisher{}
	var redisPub *realtime.RedisPublisher
	if cfg.RedisAddr != "" {
		redisPub = realtime.NewRedisPublisher(cfg.RedisAddr, cfg.RedisChannel)
		pub = redisPub
		logger.Info().Str("addr", cfg.RedisAddr).Str("channel", cfg.RedisChannel).Msg("realtime events over redis")
	}

	store, err := openStore(cfg, pub)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("open job store")
	}
	defer store.Close()

	gateway, err := buildGateway(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("build storage gateway")
	}

	worker := pipeline.New(pipeline.Deps{
		Cfg:     cfg,
		Jobs:    store,
		Storage: gateway,
		Calib:   calibration.NewStore(store, cfg.HookCalibrationLookback),
		Caps:    caps,
	})
	sched := scheduler.New(store, worker.Run, cfg.JobConcurrency, cfg.QueueRecoveryInterval, cfg.StalePipelineAfter)
	sched.Start(ctx)
	sched.RecoverOnce(ctx)
	logger.Info().
		Int("concurrency", cfg.JobConcurrency).
		Str("store", cfg.StoreBackend).
		Msg("scheduler started")

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listener started")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	sched.Stop()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	if redisPub != nil {
		_ = redisPub.Close()
	}
	logger.Info().Msg("shutdown complete")
}

func openStore(cfg config.Config, pub realtime.Publisher) (jobstore.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		return jobstore.NewMemoryStore(pub), nil
	case "badger":
		s, err := jobstore.NewBadgerStore(cfg.BadgerDir, pub)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite", "":
		s, err := jobstore.NewSQLiteStore(cfg.SQLitePath, pub)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown job store backend %q", cfg.StoreBackend)
	}
}

// buildGateway wires the object-store gateway: S3 primary with a local
// secondary when S3 is configured, plain local storage otherwise.
func buildGateway(ctx context.Context, cfg config.Config) (*storage.Gateway, error) {
	local := storage.NewLocalBackend(filepath.Join(cfg.OutputMirrorRoot, "store"), "")
	if cfg.S3Endpoint == "" && cfg.S3AccessKeyID == "" {
		return storage.NewGateway(local, nil, ""), nil
	}
	primary, err := storage.NewS3Backend(ctx, storage.S3Options{
		Endpoint:    cfg.S3Endpoint,
		Region:      cfg.S3Region,
		Bucket:      cfg.S3Bucket,
		AccessKeyID: cfg.S3AccessKeyID,
		SecretKey:   cfg.S3SecretKey,
	})
	if err != nil {
		return nil, err
	}
	return storage.NewGateway(primary, local, cfg.OutputMirrorRoot), nil
}
