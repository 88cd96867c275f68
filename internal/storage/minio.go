// Package storage is the optional screenshot archive. Inline base64 in the
// report store is the source of truth; the archive exists so screenshots
// outlive the report TTL and can be fetched without pulling the whole report.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sitelens/sitelens/internal/config"
)

// Archive wraps the MinIO client for screenshot upload and retrieval.
type Archive struct {
	client *minio.Client
	bucket string
}

// NewArchive creates a MinIO-backed screenshot archive and ensures the
// bucket exists.
func NewArchive(cfg config.StorageConfig) (*Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	a := &Archive{client: client, bucket: cfg.Bucket}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket existence: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
	}
	return nil
}

// Archive uploads one screenshot and returns its S3-style URI.
func (a *Archive) Archive(ctx context.Context, key string, data []byte) (string, error) {
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return "", fmt.Errorf("uploading object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// Fetch downloads an archived screenshot.
func (a *Archive) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting object: %w", err)
	}
	defer obj.Close()

	return io.ReadAll(obj)
}

// Delete removes an archived screenshot.
func (a *Archive) Delete(ctx context.Context, key string) error {
	return a.client.RemoveObject(ctx, a.bucket, key, minio.RemoveObjectOptions{})
}

// PresignedURL returns a time-limited download URL for a screenshot.
func (a *Archive) PresignedURL(ctx context.Context, key string) (string, error) {
	url, err := a.client.PresignedGetObject(ctx, a.bucket, key, 24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("generating presigned URL: %w", err)
	}
	return url.String(), nil
}
