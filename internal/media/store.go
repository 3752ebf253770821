package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"catalog/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	DiskPublic = "public"
	DiskS3     = "s3"
)

// Store persists downloaded media under a relative path.
type Store interface {
	// Put writes body to path and returns the disk name and, when the disk is
	// publicly served, the URL of the stored file.
	Put(ctx context.Context, path, contentType string, body []byte) (disk string, url string, err error)
}

// NewStore builds the store selected by cfg.Disk.
func NewStore(ctx context.Context, cfg config.MediaConfig) (Store, error) {
	switch cfg.Disk {
	case DiskS3:
		return NewMinioStore(ctx, cfg)
	case "", DiskPublic:
		return NewLocalStore(cfg.Root, cfg.PublicURL), nil
	default:
		return nil, fmt.Errorf("unknown media disk %q", cfg.Disk)
	}
}

// LocalStore writes files under a root directory.
type LocalStore struct {
	root      string
	publicURL string
}

func NewLocalStore(root, publicURL string) *LocalStore {
	if root == "" {
		root = "storage/public"
	}
	return &LocalStore{root: root, publicURL: strings.TrimRight(publicURL, "/")}
}

func (s *LocalStore) Put(ctx context.Context, path, contentType string, body []byte) (string, string, error) {
	clean := filepath.Clean("/" + path)
	target := filepath.Join(s.root, filepath.FromSlash(clean))

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create media directory: %w", err)
	}
	if err := os.WriteFile(target, body, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write media file: %w", err)
	}

	url := ""
	if s.publicURL != "" {
		url = s.publicURL + clean
	}
	return DiskPublic, url, nil
}

// objectPutter is the part of *minio.Client the store uses.
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioStore uploads files to an S3-compatible bucket.
type MinioStore struct {
	client    objectPutter
	bucket    string
	publicURL string
}

func NewMinioStore(ctx context.Context, cfg config.MediaConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
	}

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if cfg.MinioUseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.MinioEndpoint, cfg.MinioBucket)
	}

	return &MinioStore{client: client, bucket: cfg.MinioBucket, publicURL: publicURL}, nil
}

func (s *MinioStore) Put(ctx context.Context, path, contentType string, body []byte) (string, string, error) {
	key := strings.TrimLeft(path, "/")
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return DiskS3, s.publicURL + "/" + key, nil
}
