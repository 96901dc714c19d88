// Package storage uploads finished artifacts to S3 compatible object
// storage. It is optional, the pipeline works fully offline without it.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	apperrors "github.com/smarr68tmb-hash/meeting-transcriber/errors"
	"github.com/smarr68tmb-hash/meeting-transcriber/internal/output"
	"github.com/smarr68tmb-hash/meeting-transcriber/pkg/config"
)

// ArtifactStore wraps MinIO operations for transcript artifacts.
type ArtifactStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewArtifactStore creates the store and makes sure the bucket exists.
func NewArtifactStore(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (*ArtifactStore, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, apperrors.ErrStorageFailed("create client", err)
	}

	store := &ArtifactStore{
		client: minioClient,
		bucket: cfg.BucketName,
		logger: logger.With(zap.String("component", "storage")),
	}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *ArtifactStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return apperrors.ErrStorageFailed("check bucket", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return apperrors.ErrStorageFailed("create bucket", err)
		}
		s.logger.Info("bucket created", zap.String("bucket", s.bucket))
	}
	return nil
}

// UploadArtifacts pushes every artifact under a date prefixed key, retrying
// transient failures per file.
func (s *ArtifactStore) UploadArtifacts(ctx context.Context, artifacts []output.Artifact) error {
	prefix := time.Now().Format("2006/01/02")
	for _, art := range artifacts {
		objectName := prefix + "/" + filepath.Base(art.Path)
		if err := s.uploadFile(ctx, objectName, art.Path); err != nil {
			return err
		}
		s.logger.Info("artifact uploaded",
			zap.String("format", art.Format),
			zap.String("object", objectName),
		)
	}
	return nil
}

func (s *ArtifactStore) uploadFile(ctx context.Context, objectName, path string) error {
	operation := func() error {
		file, err := os.Open(path)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer file.Close()
		info, err := file.Stat()
		if err != nil {
			return backoff.Permanent(err)
		}
		_, err = s.client.PutObject(ctx, s.bucket, objectName, file, info.Size(), minio.PutObjectOptions{
			ContentType: contentTypeFor(path),
		})
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return apperrors.ErrStorageFailed(fmt.Sprintf("upload %s", objectName), err)
	}
	return nil
}

// ListArtifacts lists stored objects under a prefix.
func (s *ArtifactStore) ListArtifacts(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, apperrors.ErrStorageFailed("list objects", object.Err)
		}
		keys = append(keys, object.Key)
	}
	return keys, nil
}

// ArtifactURL returns a presigned download URL for a stored object.
func (s *ArtifactStore) ArtifactURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", apperrors.ErrStorageFailed("presign", err)
	}
	return url.String(), nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "application/json"
	case ".srt":
		return "application/x-subrip"
	default:
		return "text/plain; charset=utf-8"
	}
}
