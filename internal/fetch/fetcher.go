// ABOUTME: Resource fetcher for audio sources
// ABOUTME: Opens local paths, file:// and http(s):// URLs with an optional on-disk cache
package fetch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptySource is returned when no source is given
var ErrEmptySource = errors.New("empty source")

// Config holds fetcher configuration
type Config struct {
	// CacheDir stores downloaded resources; empty disables the disk cache
	CacheDir string

	// Client used for HTTP requests (default: http.DefaultClient)
	Client *http.Client
}

// Fetcher opens audio resources by URL or path
type Fetcher struct {
	cacheDir string
	client   *http.Client
}

// New creates a new fetcher
func New(cfg Config) (*Fetcher, error) {
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}

	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	return &Fetcher{
		cacheDir: cfg.CacheDir,
		client:   cfg.Client,
	}, nil
}

// IsRemote reports whether src must be fetched over HTTP
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Open returns a reader over the resource. Remote resources are streamed
// unless a cache directory is configured, in which case they are downloaded first.
func (f *Fetcher) Open(ctx context.Context, src string) (io.ReadCloser, error) {
	if src == "" {
		return nil, ErrEmptySource
	}

	if !IsRemote(src) {
		return os.Open(localPath(src))
	}

	if f.cacheDir != "" {
		path, err := f.Download(ctx, src)
		if err != nil {
			return nil, err
		}
		return os.Open(path)
	}

	resp, err := f.get(ctx, src)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Download fetches a remote resource into the cache and returns its path
func (f *Fetcher) Download(ctx context.Context, src string) (string, error) {
	if src == "" {
		return "", ErrEmptySource
	}
	if f.cacheDir == "" {
		return "", fmt.Errorf("no cache directory configured")
	}

	// Create a cache key from URL hash
	hash := sha256.Sum256([]byte(src))
	filename := fmt.Sprintf("%x%s", hash[:8], Extension(src))
	cachePath := filepath.Join(f.cacheDir, filename)

	if _, err := os.Stat(cachePath); err == nil {
		log.Debugf("Cache hit for %s: %s", src, cachePath)
		return cachePath, nil
	}

	log.Debugf("Downloading %s", src)
	resp, err := f.get(ctx, src)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// Write to a temp file so readers never see a partial download
	tmp, err := os.CreateTemp(f.cacheDir, filename+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save %s: %w", src, err)
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save %s: %w", src, err)
	}

	log.Debugf("Saved %s to %s", src, cachePath)
	return cachePath, nil
}

// Cleanup removes the cache directory
func (f *Fetcher) Cleanup() error {
	if f.cacheDir == "" {
		return nil
	}
	return os.RemoveAll(f.cacheDir)
}

func (f *Fetcher) get(ctx context.Context, src string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request for %s: %w", src, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", src, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s failed: HTTP %d", src, resp.StatusCode)
	}

	return resp, nil
}

// Extension extracts the file extension from a path or URL, ignoring any query
func Extension(src string) string {
	src = strings.Split(src, "?")[0]
	return strings.ToLower(filepath.Ext(src))
}

func localPath(src string) string {
	if strings.HasPrefix(src, "file://") {
		if u, err := url.Parse(src); err == nil {
			return u.Path
		}
		return strings.TrimPrefix(src, "file://")
	}
	return src
}
