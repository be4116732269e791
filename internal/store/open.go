package store

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"call-intelligence-go/internal/config"
	"call-intelligence-go/internal/logger"
)

// Open builds the Repository selected by cfg. The choice is fixed for the process lifetime.
func Open(ctx context.Context, cfg config.Config) (Repository, error) {
	log := logger.New().WithComponent("store").WithField("backend", cfg.StorageBackend)

	var repo Repository
	switch cfg.StorageBackend {
	case config.BackendS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		repo = NewBlobRepository(NewS3Blob(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Key))
	case config.BackendSQLite:
		r, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo = r
	case config.BackendLocal:
		repo = NewBlobRepository(NewFileBlob(cfg.RecordsPath))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	log.WithField("location", repo.Location()).Info("record store ready")
	return repo, nil
}
