package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"highway_monitor/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage keeps issue images in a public-read bucket
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStorage connects to MinIO and makes sure the bucket exists and is publicly readable
func NewMinioStorage(ctx context.Context, cfg config.MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	s := &MinioStorage{client: client, bucket: cfg.Bucket, publicURL: cfg.PublicBaseURL}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	if err := s.setPublicReadPolicy(ctx); err != nil {
		// Uploads still work; only public URLs will 403
		log.Printf("Failed to set public policy for %s bucket: %v", s.bucket, err)
	}

	log.Printf("MinIO storage ready at %s (bucket %s)", cfg.Endpoint, cfg.Bucket)
	return s, nil
}

func (s *MinioStorage) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("error creating bucket %s: %w", s.bucket, err)
	}
	log.Printf("Created bucket: %s", s.bucket)
	return nil
}

func (s *MinioStorage) setPublicReadPolicy(ctx context.Context) error {
	policy := fmt.Sprintf(`{
		"Version": "2012-10-17",
		"Statement": [
			{
				"Effect": "Allow",
				"Principal": {"AWS": "*"},
				"Action": ["s3:GetObject"],
				"Resource": ["arn:aws:s3:::%s/*"]
			}
		]
	}`, s.bucket)

	if err := s.client.SetBucketPolicy(ctx, s.bucket, policy); err != nil {
		return fmt.Errorf("error setting public read policy for bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put uploads r under objectPath and returns the object's public URL
func (s *MinioStorage) Put(ctx context.Context, objectPath, contentType string, r io.Reader, size int64) (string, error) {
	objectPath, err := CleanObjectPath(objectPath)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, s.bucket, objectPath, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", objectPath, s.bucket, err)
	}
	return s.PublicURL(objectPath), nil
}

// PublicURL is the anonymous-read URL of an object
func (s *MinioStorage) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, objectPath)
}
