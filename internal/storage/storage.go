// Package storage keeps book PDFs and cover images in a blob store.
//
// Books only carry the blob key (or an absolute URL supplied by the client);
// readers receive a URL resolved through the configured store.
//
// # Backends
//
//   - LocalStore writes under a directory that the HTTP server exposes as
//     static files.
//   - MinioStore writes to an S3-compatible bucket and hands out presigned
//     GET URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/mrlokans/bookshelf/internal/config"
)

var (
	ErrInvalidKey = errors.New("invalid blob key")
	ErrNotFound   = errors.New("blob not found")
)

// BlobStore is the capability the catalog needs from a storage backend.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// URL returns an address a browser can fetch the blob from.
	URL(ctx context.Context, key string) (string, error)
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.Storage) (BlobStore, error) {
	switch cfg.Backend {
	case config.StorageBackendLocal, "":
		return NewLocalStore(cfg.LocalDir, cfg.PublicPrefix)
	case config.StorageBackendMinio:
		return NewMinioStore(ctx, MinioConfig{
			Endpoint:      cfg.Endpoint,
			AccessKey:     cfg.AccessKey,
			SecretKey:     cfg.SecretKey,
			Bucket:        cfg.Bucket,
			UseSSL:        cfg.UseSSL,
			PresignExpiry: cfg.PresignExpiry,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// NewBookKey returns a fresh key for a file attached to a book. The
// extension of filename is kept, lowercased.
func NewBookKey(bookID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return BookKeyPrefix(bookID) + uuid.NewString() + ext
}

// BookKeyPrefix is the key namespace holding the files of one book.
func BookKeyPrefix(bookID string) string {
	return path.Join("books", bookID) + "/"
}

// OwnsKey reports whether key lies inside the namespace of bookID.
func OwnsKey(bookID, key string) bool {
	if bookID == "" || key == "" {
		return false
	}
	cleaned, err := cleanKey(key)
	if err != nil {
		return false
	}
	return strings.HasPrefix(cleaned, BookKeyPrefix(bookID))
}

// IsExternal reports whether ref is already a URL rather than a blob key.
func IsExternal(ref string) bool {
	return strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "/")
}

// ResolveURL turns a stored reference into a fetchable URL. External
// references pass through untouched; empty references resolve to "".
func ResolveURL(ctx context.Context, store BlobStore, ref string) (string, error) {
	if ref == "" || IsExternal(ref) {
		return ref, nil
	}
	if store == nil {
		return "", fmt.Errorf("no blob store configured for %q", ref)
	}
	return store.URL(ctx, ref)
}

// cleanKey validates a key and returns its canonical form.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}
