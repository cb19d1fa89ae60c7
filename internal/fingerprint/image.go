package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrInvalidURL is returned for malformed or non-HTTP(S) image URLs.
	ErrInvalidURL = errors.New("invalid_url")
	// ErrFetchFailed is returned when the image cannot be downloaded.
	ErrFetchFailed = errors.New("fetch_failed")
	// ErrEmptyBody is returned when the downloaded image has no bytes.
	ErrEmptyBody = errors.New("empty_body")
)

const fetchTimeout = 10 * time.Second

// ImageFetcher downloads images and digests them incrementally so peak memory
// stays bounded regardless of image size.
type ImageFetcher struct {
	client *http.Client
	log    *zap.Logger
}

// NewImageFetcher creates a fetcher with the hard 10s fetch bound.
func NewImageFetcher(log *zap.Logger) *ImageFetcher {
	return &ImageFetcher{
		client: &http.Client{Timeout: fetchTimeout},
		log:    log.With(zap.String("module", "fingerprint")),
	}
}

// Hash fetches the image at rawURL and returns the hex SHA-256 of its bytes.
// The digest is computed over the streamed body, never a full in-memory copy.
func (f *ImageFetcher) Hash(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: only HTTP/HTTPS URLs are allowed", ErrInvalidURL)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.log.Warn("Failed to close image response body", zap.Error(err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	digest := sha256.New()
	n, err := io.Copy(digest, resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if n == 0 {
		return "", ErrEmptyBody
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}
