// Package blob stores source photos and generated headshots by key.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/config"
)

var ErrNotFound = errors.New("blob not found")

// Store is an opaque key/value store for image bytes. Keys use forward
// slashes and never escape the store's root.
type Store interface {
	// Put writes data under key and returns the number of bytes stored.
	Put(ctx context.Context, key, contentType string, data []byte) (int64, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// New builds the Store selected by cfg.Driver.
func New(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch cfg.Driver {
	case "local":
		return NewLocalStore(cfg.LocalDir)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported blob driver: %q", cfg.Driver)
	}
}

// HeadshotKey is where the artifact for one headshot is stored.
func HeadshotKey(jobID, headshotID int64, ext string) string {
	return fmt.Sprintf("headshots/%d/%d%s", jobID, headshotID, ext)
}

// UploadKey is where a user's source photo is stored.
func UploadKey(userID int64, name string) string {
	return fmt.Sprintf("uploads/%d/%s", userID, name)
}

// ExtensionFor maps a supported image media type to a file extension.
func ExtensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".bin"
	}
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("blob: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("blob: invalid key %q", key)
	}
	return cleaned, nil
}
