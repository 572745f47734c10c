package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Marquise34567/editor-backend-sub000/internal/log"
	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

// Retry policy for primary-store operations.
const (
	maxAttempts    = 3
	retryBaseDelay = 350 * time.Millisecond
)

// Gateway fronts the primary and secondary stores with the retry and
// fallback policy, the bucket memo and the local output mirror.
type Gateway struct {
	Primary   Backend
	Secondary Backend

	// MirrorRoot receives a local copy of every uploaded output so the
	// daemon can serve artifacts when the object store is unreachable.
	MirrorRoot string

	mu            sync.Mutex
	bucketsReady  map[string]bool
	bucketFlights singleflight.Group

	sleep func(time.Duration) // test seam
}

// NewGateway wires the gateway; secondary may be nil.
func NewGateway(primary, secondary Backend, mirrorRoot string) *Gateway {
	return &Gateway{
		Primary:      primary,
		Secondary:    secondary,
		MirrorRoot:   mirrorRoot,
		bucketsReady: make(map[string]bool),
		sleep:        time.Sleep,
	}
}

// ensureBucket memoizes the bucket check process-wide under a
// single-flight discipline.
func (g *Gateway) ensureBucket(ctx context.Context, backend Backend) error {
	name := backend.Name()
	g.mu.Lock()
	ready := g.bucketsReady[name]
	g.mu.Unlock()
	if ready {
		return nil
	}
	_, err, _ := g.bucketFlights.Do(name, func() (interface{}, error) {
		if err := backend.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.bucketsReady[name] = true
		g.mu.Unlock()
		return nil, nil
	})
	return err
}

// withRetries runs op up to maxAttempts with a linear backoff of
// retryBaseDelay*attempt.
func (g *Gateway) withRetries(ctx context.Context, what string, op func() error) error {
	logger := log.WithComponent("storage")
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = op(); lastErr == nil {
			return nil
		}
		logger.Warn().
			Err(lastErr).
			Str("op", what).
			Int("attempt", attempt).
			Msg("storage operation failed")
		if attempt < maxAttempts {
			g.sleep(retryBaseDelay * time.Duration(attempt))
		}
	}
	return lastErr
}

// DownloadObjectToFile fetches key into destPath: primary with retries,
// then the secondary, failing hard when both are exhausted.
func (g *Gateway) DownloadObjectToFile(ctx context.Context, key, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	try := func(backend Backend) error {
		if err := g.ensureBucket(ctx, backend); err != nil {
			return err
		}
		f, err := os.Create(destPath) // #nosec G304 -- dest under the job work dir
		if err != nil {
			return err
		}
		if err := backend.Download(ctx, key, f); err != nil {
			f.Close()
			os.Remove(destPath)
			return err
		}
		return f.Close()
	}

	err := g.withRetries(ctx, "download:"+key, func() error { return try(g.Primary) })
	if err == nil {
		return g.verifyDownload(destPath)
	}
	if g.Secondary != nil {
		if serr := try(g.Secondary); serr == nil {
			return g.verifyDownload(destPath)
		}
	}
	return fmt.Errorf("%w: %s: %v", model.ErrDownloadFailed, key, err)
}

func (g *Gateway) verifyDownload(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return model.ErrInputMissingAfterDownload
	}
	if info.Size() == 0 {
		return model.ErrInputEmptyAfterDownload
	}
	return nil
}

// UploadFile pushes path under key with the standard retry/fallback
// policy and mirrors the artifact locally. A total failure of both
// stores is reported but the caller may continue in local-fallback mode.
func (g *Gateway) UploadFile(ctx context.Context, key, path, contentType string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path under the job work dir
	if err != nil {
		return err
	}
	return g.UploadBuffer(ctx, key, data, contentType)
}

// UploadBuffer is UploadFile for in-memory artifacts.
func (g *Gateway) UploadBuffer(ctx context.Context, key string, data []byte, contentType string) error {
	g.mirror(key, data)

	try := func(backend Backend) error {
		if err := g.ensureBucket(ctx, backend); err != nil {
			return err
		}
		return backend.Upload(ctx, key, bytes.NewReader(data), contentType)
	}
	err := g.withRetries(ctx, "upload:"+key, func() error { return try(g.Primary) })
	if err == nil {
		return nil
	}
	if g.Secondary != nil {
		if serr := try(g.Secondary); serr == nil {
			return nil
		}
	}
	return fmt.Errorf("upload %s: %w", key, err)
}

// SignedGetURL prefers the primary; the secondary serves as the
// local-fallback streaming path.
func (g *Gateway) SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if g.Primary != nil {
		if url, err := g.Primary.SignedGetURL(ctx, key, ttl); err == nil {
			return url, nil
		}
	}
	if g.Secondary != nil {
		return g.Secondary.SignedGetURL(ctx, key, ttl)
	}
	return "", fmt.Errorf("no store can sign %s", key)
}

// DeleteObject is a single attempt against the primary.
func (g *Gateway) DeleteObject(ctx context.Context, key string) error {
	if err := g.ensureBucket(ctx, g.Primary); err != nil {
		return err
	}
	return g.Primary.Delete(ctx, key)
}

// mirror writes the local fallback copy; failures only log.
func (g *Gateway) mirror(key string, data []byte) {
	if g.MirrorRoot == "" {
		return
	}
	logger := log.WithComponent("storage")
	p := filepath.Join(g.MirrorRoot, filepath.Clean(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("mirror dir create failed")
		return
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("mirror write failed")
	}
}

// OutputKey and friends build the canonical output layout.
func OutputKey(userID, jobID string) string {
	return fmt.Sprintf("%s/%s/output.mp4", userID, jobID)
}

func VerticalClipKey(userID, jobID string, n int) string {
	return fmt.Sprintf("%s/%s/vertical/clip-%d.mp4", userID, jobID, n)
}

func AnalysisKey(userID, jobID string) string {
	return fmt.Sprintf("%s/%s/analysis.json", userID, jobID)
}
