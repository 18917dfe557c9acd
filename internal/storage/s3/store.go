// Package s3 keeps fixture snapshots in an S3-compatible bucket through the
// MinIO client. Keys passed to the Store are relative to the configured
// prefix, and keys it returns are relative again.
package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/storage"
)

// bucket is the slice of an S3 bucket the store drives. Keys are absolute
// within the bucket.
type bucket interface {
	put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error)
	open(ctx context.Context, key string) (io.ReadCloser, error)
	head(ctx context.Context, key string) (storage.ObjectInfo, error)
	walk(ctx context.Context, prefix string, visit func(storage.ObjectInfo) error) error
	remove(ctx context.Context, key string) error
}

type Store struct {
	bucket bucket
	keys   keyspace
}

func New(ctx context.Context, cfg config.ObjectStoreConfig) (*Store, error) {
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}
	client, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	b := &minioBucket{client: client, name: name}
	if cfg.AutoCreateBucket {
		if err := b.ensure(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return newStore(b, cfg.Prefix), nil
}

func newStore(b bucket, prefix string) *Store {
	return &Store{bucket: b, keys: newKeyspace(prefix)}
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	full, err := s.keys.object(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.bucket.put(ctx, full, body, size, opts.ContentType)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("put object %q: %w", full, err)
	}
	info.Key = s.keys.relative(full)
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	full, err := s.keys.object(key)
	if err != nil {
		return nil, err
	}
	reader, err := s.bucket.open(ctx, full)
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", full, err)
	}
	return reader, nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	full, err := s.keys.object(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.bucket.head(ctx, full)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("stat object %q: %w", full, err)
	}
	info.Key = s.keys.relative(info.Key)
	return info, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	full := s.keys.listing(prefix)
	var infos []storage.ObjectInfo
	err := s.bucket.walk(ctx, full, func(info storage.ObjectInfo) error {
		info.Key = s.keys.relative(info.Key)
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects %q: %w", full, err)
	}
	return infos, nil
}

// Delete treats a missing object as already deleted.
func (s *Store) Delete(ctx context.Context, key string) error {
	full, err := s.keys.object(key)
	if err != nil {
		return err
	}
	if err := s.bucket.remove(ctx, full); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete object %q: %w", full, err)
	}
	return nil
}

type keyspace struct {
	root string
}

func newKeyspace(prefix string) keyspace {
	root := strings.Trim(strings.TrimSpace(prefix), "/")
	if root != "" {
		root = path.Clean(root)
	}
	if root == "." {
		root = ""
	}
	return keyspace{root: root}
}

func (k keyspace) object(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", fmt.Errorf("object key %q escapes the store prefix", key)
		}
	}
	return path.Join(k.root, key), nil
}

// listing keeps a trailing slash so "fixtures/" does not match "fixtures-old".
func (k keyspace) listing(prefix string) string {
	prefix = strings.TrimPrefix(strings.TrimSpace(prefix), "/")
	if k.root == "" {
		return prefix
	}
	return k.root + "/" + prefix
}

func (k keyspace) relative(full string) string {
	if k.root == "" {
		return full
	}
	return strings.TrimPrefix(full, k.root+"/")
}
