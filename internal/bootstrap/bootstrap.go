// Package bootstrap provides dependency initialization for the capture API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/homage/capture-api/internal/capture"
	"github.com/homage/capture-api/internal/config"
	"github.com/homage/capture-api/internal/media"
	"github.com/homage/capture-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Root    storage.Root
	Capture *capture.Service
}

// NewDependencies resolves the storage root, prepares its subdirectories,
// and wires the capture service. Subdirectory creation happens here, at
// startup, so a read-only filesystem fails the process immediately.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	root := storage.Resolve(storage.DefaultCandidates(cfg.DataDir))
	if err := root.EnsureSubdirs(); err != nil {
		return nil, fmt.Errorf("prepare storage root: %w", err)
	}
	logger.Info("storage root resolved",
		slog.String("data_dir", root.Dir()),
	)

	archiver, err := initArchiver(cfg, logger)
	if err != nil {
		return nil, err
	}

	svc := capture.NewService(root, media.NewJPEGNormalizer(), archiver, logger)

	return &Dependencies{
		Root:    root,
		Capture: svc,
	}, nil
}

// initArchiver creates the S3 archiver when configured, a no-op otherwise.
func initArchiver(cfg *config.Config, logger *slog.Logger) (storage.Archiver, error) {
	if !cfg.ArchiveEnabled() {
		return storage.NopArchiver{}, nil
	}

	archiver, err := storage.NewS3Archiver(storage.ArchiveConfig{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 archiver: %w", err)
	}
	logger.Info("S3 archive configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)
	return archiver, nil
}
