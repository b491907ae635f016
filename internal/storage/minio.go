package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/signflow/signflow-server/internal/config"
)

// ErrNotConfigured is returned when no MinIO endpoint is set.
var ErrNotConfigured = errors.New("minio config missing")

// MinIOStorage archives signed agreements in a bucket.
type MinIOStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIOStorage creates the client. It does not touch the network; call
// EnsureBucket before first use.
func NewMinIOStorage(cfg config.MinIOConfig) (*MinIOStorage, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNotConfigured
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	return &MinIOStorage{client: mc, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket unless it already exists.
func (s *MinIOStorage) EnsureBucket(ctx context.Context) error {
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := s.client.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return nil
}

func objectKey(docID string) string {
	return "signed/" + url.PathEscape(docID) + ".pdf"
}

// ArchiveSignedPDF stores the signed file under a key derived from docID.
func (s *MinIOStorage) ArchiveSignedPDF(ctx context.Context, docID string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(docID), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return fmt.Errorf("put %s: %w", objectKey(docID), err)
	}
	return nil
}

// OpenSignedPDF streams an archived file.
func (s *MinIOStorage) OpenSignedPDF(ctx context.Context, docID string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(docID), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// perform a stat to ensure object exists
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

// PresignedURL returns a GET URL for the archived file valid for expires.
func (s *MinIOStorage) PresignedURL(ctx context.Context, docID string, expires time.Duration) (string, error) {
	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", docID+"-signed.pdf"))
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey(docID), expires, reqParams)
	if err != nil {
		return "", err
	}
	return presigned.String(), nil
}

// Ping checks that the bucket is reachable.
func (s *MinIOStorage) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}
