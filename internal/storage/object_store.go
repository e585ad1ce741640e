package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"vidtube/internal/config"
	"vidtube/internal/ids"
)

var ErrForeignURL = errors.New("url does not belong to the image bucket")

// Image is a validated upload ready to be stored.
type Image struct {
	Folder      string
	Ext         string
	ContentType string
	Data        []byte
}

type StoredImage struct {
	Key          string
	URL          string
	LastModified time.Time
}

// ObjectStore is the image host: uploads land in a single bucket and are
// addressed by public URL.
type ObjectStore struct {
	client  *minio.Client
	bucket  string
	region  string
	baseURL string
	now     func() time.Time
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	base := strings.TrimSuffix(cfg.PublicURL, "/")
	if base == "" {
		scheme := "http://"
		if useSSL {
			scheme = "https://"
		}
		base = scheme + endpoint
	}

	return &ObjectStore{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: base + "/" + cfg.Bucket,
		now:     time.Now,
	}, nil
}

const publicReadPolicy = `{
	"Version": "2012-10-17",
	"Statement": [{
		"Effect": "Allow",
		"Principal": {"AWS": ["*"]},
		"Action": ["s3:GetObject"],
		"Resource": ["arn:aws:s3:::%s/*"]
	}]
}`

// EnsureBucket creates the bucket on first start and makes its objects
// publicly readable, since users reference images by URL.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	if err := s.client.SetBucketPolicy(ctx, s.bucket, fmt.Sprintf(publicReadPolicy, s.bucket)); err != nil {
		return fmt.Errorf("set bucket policy %s: %w", s.bucket, err)
	}
	return nil
}

func (s *ObjectStore) PutImage(ctx context.Context, img Image) (string, error) {
	key := s.objectKey(img.Folder, img.Ext)

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(img.Data), int64(len(img.Data)), minio.PutObjectOptions{
		ContentType:  img.ContentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return s.URL(key), nil
}

// RemoveByURL deletes the object behind url. Removing an object that is
// already gone succeeds.
func (s *ObjectStore) RemoveByURL(ctx context.Context, rawURL string) error {
	key, ok := s.KeyFromURL(rawURL)
	if !ok {
		return ErrForeignURL
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// ListImages returns stored images last modified before cutoff.
func (s *ObjectStore) ListImages(ctx context.Context, cutoff time.Time) ([]StoredImage, error) {
	// Cancelling stops the lister goroutine when we return mid-listing.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var images []StoredImage
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		images = append(images, StoredImage{
			Key:          obj.Key,
			URL:          s.URL(obj.Key),
			LastModified: obj.LastModified,
		})
	}
	return images, nil
}

func (s *ObjectStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

func (s *ObjectStore) URL(key string) string {
	return s.baseURL + "/" + key
}

func (s *ObjectStore) KeyFromURL(rawURL string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(rawURL, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

func (s *ObjectStore) objectKey(folder, ext string) string {
	datePrefix := s.now().UTC().Format("2006/01/02")
	return path.Join(folder, datePrefix, fmt.Sprintf("%s.%s", ids.Sortable(), ext))
}
