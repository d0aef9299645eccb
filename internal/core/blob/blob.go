// Package blob stores the raw bytes behind uploaded data files. Rows in the
// files table only keep the key.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"neurolab/internal/core/config"
)

const (
	DriverMemory = "memory"
	DriverS3     = "s3"
)

var ErrNotFound = errors.New("blob: not found")

type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Blob, l *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		l.Warn("blob store is in memory; uploads are lost on restart")
		return NewMemory(), nil
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			PathStyle:       cfg.PathStyle,
		})
	}
	return nil, fmt.Errorf("blob: unknown driver %q", cfg.Driver)
}
