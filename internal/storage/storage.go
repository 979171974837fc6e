// Package storage archives completed generation results so they outlive the
// job platform's own links.
package storage

import (
	"context"
	"errors"
	"fmt"

	"highbid/internal/infra"
)

const (
	BackendNone       = "none"
	BackendFilesystem = "filesystem"
	BackendMinio      = "minio"
)

var ErrObjectNotFound = errors.New("storage: object not found")

// Store is an archive backend.
type Store interface {
	Name() string
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// Open builds the configured backend. BackendNone returns a nil Store.
func Open(ctx context.Context, cfg infra.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendFilesystem:
		fs, err := NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case BackendMinio:
		ms, err := NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, err
		}
		return ms, nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
