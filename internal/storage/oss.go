// Package storage handles uploaded menu photos: resizing them for the
// synthesis provider and publishing them to object storage.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/ibrahimyu/promoreel/internal/config"
)

// ErrNotConfigured is returned when object storage credentials are missing.
var ErrNotConfigured = errors.New("storage: object storage not configured")

const signedURLExpiry = 3600 * 24 * 365 // one year, in seconds

// ObjectStore publishes local files and returns a URL the synthesis provider
// can fetch.
type ObjectStore interface {
	Upload(localPath string) (string, error)
}

// OSSStore uploads files to an Alibaba Cloud OSS bucket under images/.
type OSSStore struct {
	cfg      config.OSSConfig
	endpoint string
	bucket   *oss.Bucket
}

var _ ObjectStore = (*OSSStore)(nil)

// NewOSSStore connects to the configured bucket.
func NewOSSStore(cfg config.OSSConfig) (*OSSStore, error) {
	if cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" || cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	endpoint := fmt.Sprintf("https://%s.aliyuncs.com", cfg.Region)
	client, err := oss.New(endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("creating oss client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("opening bucket %s: %w", cfg.Bucket, err)
	}

	return &OSSStore{cfg: cfg, endpoint: endpoint, bucket: bucket}, nil
}

// Upload puts the file into the bucket and returns a long-lived signed URL.
// If signing fails the bucket's public URL is returned instead, which works
// for publicly readable buckets.
func (s *OSSStore) Upload(localPath string) (string, error) {
	objectKey := "images/" + filepath.Base(localPath)

	if err := s.bucket.PutObjectFromFile(objectKey, localPath); err != nil {
		return "", fmt.Errorf("uploading %s: %w", objectKey, err)
	}

	signedURL, err := s.bucket.SignURL(objectKey, oss.HTTPGet, signedURLExpiry)
	if err != nil {
		return fmt.Sprintf("https://%s.%s.aliyuncs.com/%s", s.cfg.Bucket, s.cfg.Region, objectKey), nil
	}
	return signedURL, nil
}
