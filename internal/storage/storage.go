package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	cfg "github.com/templui/imagevault/internal/config"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid storage key")
)

// Storage defines the interface for image file storage.
// Keys are slash-separated ("<id>/thumb.jpg"); locations are what Save
// returns and what gets recorded in the index.
type Storage interface {
	// Save stores r under key, replacing any previous content, and returns its location
	Save(key string, r io.Reader) (string, error)

	// Open returns a reader for a location previously returned by Save
	Open(location string) (io.ReadCloser, error)

	// Delete removes the object at location
	Delete(location string) error
}

// New creates the storage backend selected by STORAGE_DRIVER.
func New(c *cfg.Config) (Storage, error) {
	switch c.StorageDriver {
	case "", "local":
		slog.Info("initializing local storage", "root", c.ImagesDir)
		return NewLocalStorage(c.ImagesDir)
	case "s3":
		slog.Info("initializing S3 storage",
			"bucket", c.S3Bucket,
			"region", c.S3Region,
			"endpoint", c.S3Endpoint,
		)
		return NewS3Storage(S3Config{
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Endpoint:  c.S3Endpoint,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
}
