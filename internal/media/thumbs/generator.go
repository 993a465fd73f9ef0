package thumbs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	// maxThumbSize limits download size to prevent memory exhaustion.
	maxThumbSize = 5 * 1024 * 1024 // 5MB

	// downloadTimeout is the maximum time for a thumbnail download.
	downloadTimeout = 15 * time.Second
)

// Generator downloads channel thumbnails and computes their BlurHash.
// Hashes are memoized by URL: channel lists are re-fetched on every full
// sync but thumbnails rarely change.
type Generator struct {
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// NewGenerator creates a thumbnail BlurHash generator.
func NewGenerator(logger *slog.Logger) *Generator {
	return &Generator{
		httpClient: &http.Client{
			Timeout: downloadTimeout,
		},
		logger: logger.With("component", "thumbs"),
		cache:  make(map[string]string),
	}
}

// BlurHash fetches the image at imageURL and returns its BlurHash string.
func (g *Generator) BlurHash(ctx context.Context, imageURL string) (string, error) {
	if imageURL == "" {
		return "", errors.New("empty thumbnail URL")
	}

	g.mu.Lock()
	if hash, ok := g.cache[imageURL]; ok {
		g.mu.Unlock()
		return hash, nil
	}
	g.mu.Unlock()

	data, err := g.download(ctx, imageURL)
	if err != nil {
		return "", err
	}

	hash, err := Encode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	g.cache[imageURL] = hash
	g.mu.Unlock()

	g.logger.Debug("computed thumbnail blurhash", "url", imageURL, "hash", hash)
	return hash, nil
}

func (g *Generator) download(ctx context.Context, url string) ([]byte, error) {
	downloadCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download thumbnail: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbSize+1))
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	if len(data) > maxThumbSize {
		return nil, fmt.Errorf("thumbnail exceeds %d bytes", maxThumbSize)
	}

	return data, nil
}
