package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/storage"
)

type minioBucket struct {
	client *minio.Client
	name   string
}

func dial(cfg config.ObjectStoreConfig) (*minio.Client, error) {
	host, secure, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

// splitEndpoint accepts a bare host[:port] or a URL. An explicit scheme
// decides TLS; otherwise useSSL does.
func splitEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("object store endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse object store endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("object store endpoint %q has no host", raw)
	}
	switch parsed.Scheme {
	case "https":
		return parsed.Host, true, nil
	case "http":
		return parsed.Host, false, nil
	default:
		return "", false, fmt.Errorf("unsupported object store scheme %q", parsed.Scheme)
	}
}

func (b *minioBucket) ensure(ctx context.Context, region string) error {
	exists, err := b.client.BucketExists(ctx, b.name)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", b.name, classify(err))
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.name, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", b.name, classify(err))
	}
	return nil
}

func (b *minioBucket) put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	upload, err := b.client.PutObject(ctx, b.name, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return storage.ObjectInfo{}, classify(err)
	}
	return storage.ObjectInfo{Key: upload.Key, Size: upload.Size, ETag: upload.ETag, LastModified: upload.LastModified}, nil
}

// open stats the object before returning it; GetObject is lazy and would
// otherwise report a missing key on the first Read.
func (b *minioBucket) open(ctx context.Context, key string) (io.ReadCloser, error) {
	object, err := b.client.GetObject(ctx, b.name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err)
	}
	if _, err := object.Stat(); err != nil {
		_ = object.Close()
		return nil, classify(err)
	}
	return object, nil
}

func (b *minioBucket) head(ctx context.Context, key string) (storage.ObjectInfo, error) {
	object, err := b.client.StatObject(ctx, b.name, key, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, classify(err)
	}
	return objectInfo(object), nil
}

func (b *minioBucket) walk(ctx context.Context, prefix string, visit func(storage.ObjectInfo) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for object := range b.client.ListObjects(ctx, b.name, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return classify(object.Err)
		}
		if err := visit(objectInfo(object)); err != nil {
			return err
		}
	}
	return nil
}

func (b *minioBucket) remove(ctx context.Context, key string) error {
	return classify(b.client.RemoveObject(ctx, b.name, key, minio.RemoveObjectOptions{}))
}

func objectInfo(object minio.ObjectInfo) storage.ObjectInfo {
	return storage.ObjectInfo{Key: object.Key, Size: object.Size, ETag: object.ETag, LastModified: object.LastModified}
}

// classify folds the S3 "missing" error codes into storage.ErrObjectNotFound
// and keeps the original message.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, err.Error())
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrObjectNotFound)
}
