package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aihub/paperqa-go/internal/config"
	"github.com/aihub/paperqa-go/internal/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOStore MinIO/S3对象存储
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore 创建MinIO存储并确保bucket存在
func NewMinIOStore(cfg config.ObjectStorageConfig) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint not configured")
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "paper-uploads"
	}

	// minio.New 不需要协议前缀
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			errStr := err.Error()
			// bucket可能被并发创建
			if !strings.Contains(errStr, "BucketAlreadyExists") && !strings.Contains(errStr, "BucketAlreadyOwnedByYou") {
				return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		logger.Info("created minio bucket", zap.String("bucket", bucket))
	}

	return &MinIOStore{client: client, bucket: bucket}, nil
}

func (s *MinIOStore) Put(ctx context.Context, key string, reader io.Reader, size int64) error {
	if key == "" {
		return fmt.Errorf("object key is empty")
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return nil
}

func (s *MinIOStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	// GetObject是惰性的，Stat确认对象真实存在
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("object %s not available: %w", key, err)
	}
	return obj, nil
}

func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}
