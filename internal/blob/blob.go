// Package blob selects a blob storage driver from configuration.
package blob

import (
	"context"
	"fmt"
	"strings"

	"societycore/internal/blob/core"
	"societycore/internal/config"
	fsblob "societycore/internal/infra/blob/fs"
	memblob "societycore/internal/infra/blob/memory"
	s3blob "societycore/internal/infra/blob/s3"
)

// Store re-exports the driver contract so callers need a single import.
type Store = core.Store

// Open builds the store named by cfg.Driver. An empty driver means fs.
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	switch core.Driver(strings.ToLower(strings.TrimSpace(cfg.Driver))) {
	case "", core.DriverFilesystem:
		return fsblob.New(cfg.Root)
	case core.DriverMemory:
		return memblob.New(), nil
	case core.DriverS3:
		return s3blob.New(ctx, s3blob.Config{
			Region:          cfg.Region,
			Bucket:          cfg.Bucket,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			PathStyle:       cfg.UsePathStyle,
			PresignTTL:      cfg.PresignTTL,
		})
	default:
		return nil, fmt.Errorf("unsupported blob driver %q", cfg.Driver)
	}
}
