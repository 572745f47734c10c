package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyBackend fails the first failCount calls of each operation.
type flakyBackend struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failCount int
	calls     int
	ensures   atomic.Int32
}

func newFlaky(failCount int) *flakyBackend {
	return &flakyBackend{objects: map[string][]byte{}, failCount: failCount}
}

func (f *flakyBackend) Name() string { return "flaky" }

func (f *flakyBackend) EnsureBucket(ctx context.Context) error {
	f.ensures.Add(1)
	return nil
}

func (f *flakyBackend) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failCount {
		return errors.New("transient failure")
	}
	return nil
}

func (f *flakyBackend) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	if err := f.fail(); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.objects[key] = data
	f.mu.Unlock()
	return nil
}

func (f *flakyBackend) Download(ctx context.Context, key string, dst io.Writer) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.mu.Lock()
	data, ok := f.objects[key]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("no such key %s", key)
	}
	_, err := dst.Write(data)
	return err
}

func (f *flakyBackend) SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := f.fail(); err != nil {
		return "", err
	}
	return "https://signed/" + key, nil
}

func (f *flakyBackend) Delete(ctx context.Context, key string) error {
	return f.fail()
}

func noSleepGateway(primary, secondary Backend, mirror string) *Gateway {
	g := NewGateway(primary, secondary, mirror)
	g.sleep = func(time.Duration) {}
	return g
}

func TestUploadRetriesThenSucceeds(t *testing.T) {
	backend := newFlaky(2)
	g := noSleepGateway(backend, nil, "")
	err := g.UploadBuffer(context.Background(), "u/j/output.mp4", []byte("data"), "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), backend.objects["u/j/output.mp4"])
}

func TestUploadFallsBackToSecondary(t *testing.T) {
	primary := newFlaky(99)
	secondary := newFlaky(0)
	g := noSleepGateway(primary, secondary, "")
	err := g.UploadBuffer(context.Background(), "k", []byte("x"), "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), secondary.objects["k"])
}

func TestUploadBothFail(t *testing.T) {
	g := noSleepGateway(newFlaky(99), newFlaky(99), "")
	err := g.UploadBuffer(context.Background(), "k", []byte("x"), "video/mp4")
	assert.Error(t, err)
}

func TestDownloadObjectToFileVerifiesContent(t *testing.T) {
	backend := newFlaky(0)
	backend.objects["in.mp4"] = []byte("payload")
	g := noSleepGateway(backend, nil, "")

	dest := filepath.Join(t.TempDir(), "in.mp4")
	require.NoError(t, g.DownloadObjectToFile(context.Background(), "in.mp4", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestDownloadEmptyObjectRejected(t *testing.T) {
	backend := newFlaky(0)
	backend.objects["empty"] = nil
	g := noSleepGateway(backend, nil, "")
	err := g.DownloadObjectToFile(context.Background(), "empty", filepath.Join(t.TempDir(), "e"))
	assert.Error(t, err)
}

func TestMirrorWritesLocalCopy(t *testing.T) {
	mirror := t.TempDir()
	g := noSleepGateway(newFlaky(0), nil, mirror)
	require.NoError(t, g.UploadBuffer(context.Background(), "u1/j1/output.mp4", []byte("vid"), "video/mp4"))

	data, err := os.ReadFile(filepath.Join(mirror, "u1", "j1", "output.mp4"))
	require.NoError(t, err)
	assert.Equal(t, []byte("vid"), data)
}

func TestEnsureBucketMemoized(t *testing.T) {
	backend := newFlaky(0)
	g := noSleepGateway(backend, nil, "")
	for i := 0; i < 5; i++ {
		require.NoError(t, g.UploadBuffer(context.Background(), fmt.Sprintf("k%d", i), []byte("x"), "text/plain"))
	}
	assert.Equal(t, int32(1), backend.ensures.Load())
}

func TestSignedGetURLFallsBack(t *testing.T) {
	primary := newFlaky(99)
	secondary := NewLocalBackend(t.TempDir(), "/files")
	require.NoError(t, secondary.Upload(context.Background(), "a/b.mp4", bytes.NewReader([]byte("x")), "video/mp4"))

	g := noSleepGateway(primary, secondary, "")
	url, err := g.SignedGetURL(context.Background(), "a/b.mp4", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "/files/")
}

func TestLocalBackendRejectsEscapingKeys(t *testing.T) {
	b := NewLocalBackend(t.TempDir(), "")
	err := b.Upload(context.Background(), "../outside", bytes.NewReader([]byte("x")), "text/plain")
	assert.Error(t, err)
}
