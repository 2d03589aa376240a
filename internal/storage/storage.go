package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/accounthub/apiserver/config"
)

// Avatars are written under unique keys and never overwritten.
const avatarCacheControl = "public, max-age=31536000, immutable"

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Bucket() string
	// URL returns the backend's direct URL for key.
	URL(key string) string
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend   ObjectStorage
	publicURL string
}

// NewStorage constructs a Storage wrapper for the provided backend. When
// publicURL is set (for example a CDN in front of the bucket), object URLs
// are built from it instead of the backend's own address.
func NewStorage(backend ObjectStorage, publicURL string) *Storage {
	return &Storage{backend: backend, publicURL: strings.TrimRight(strings.TrimSpace(publicURL), "/")}
}

// Open builds the backend named by cfg.Backend and makes sure its bucket
// exists. It returns nil, nil when storage is disabled ("none" or empty).
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var backend ObjectStorage
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "minio":
		client, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		backend = client
	case "gcs":
		client, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("gcs: %w", err)
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	s := NewStorage(backend, cfg.PublicURL)
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return s, nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// URL returns the public URL of key.
func (s *Storage) URL(key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + escapeKey(key)
	}
	return s.backend.URL(key)
}

// Key returns the object key behind a URL built by URL. It reports false
// for URLs that point anywhere else.
func (s *Storage) Key(rawURL string) (string, bool) {
	base := s.publicURL
	if base == "" {
		base = strings.TrimSuffix(s.backend.URL(""), "/")
	}
	prefix := base + "/"
	if base == "" || !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(rawURL, prefix))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

// escapeKey path-escapes each segment of an object key.
func escapeKey(key string) string {
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
