package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// LocalBackend is the filesystem secondary store. Keys map directly onto
// paths under the root; signed URLs resolve to the streaming endpoint the
// daemon serves for fallback delivery.
type LocalBackend struct {
	Root    string
	BaseURL string // e.g. "/files"; empty yields file paths
}

func NewLocalBackend(root, baseURL string) *LocalBackend {
	return &LocalBackend{Root: root, BaseURL: baseURL}
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(b.Root, 0o755)
}

func (b *LocalBackend) path(key string) (string, error) {
	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(b.Root, clean), nil
}

func (b *LocalBackend) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body for %s: %w", key, err)
	}
	return renameio.WriteFile(p, data, 0o644)
}

func (b *LocalBackend) Download(ctx context.Context, key string, dst io.Writer) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	f, err := os.Open(p) // #nosec G304 -- path validated against the root
	if err != nil {
		return fmt.Errorf("open %s: %w", key, err)
	}
	defer f.Close()
	_, err = io.Copy(dst, f)
	return err
}

// SignedGetURL returns a serving path; the secondary store has no real
// signing, so the ttl is advisory only.
func (b *LocalBackend) SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	p, err := b.path(key)
	if err != nil {
		return "", err
	}
	if b.BaseURL == "" {
		return p, nil
	}
	return strings.TrimSuffix(b.BaseURL, "/") + "/" + url.PathEscape(key), nil
}

func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
