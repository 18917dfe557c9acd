package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"

	"github.com/querypilot/querypilot/internal/storage"
)

func TestStoreKeepsKeysUnderPrefix(t *testing.T) {
	ctx := context.Background()
	objects := newMemoryBucket()
	store := newStore(objects, "/querypilot/prod/")

	info, err := store.Put(ctx, "/fixtures/students.parquet", strings.NewReader("abc"), 3, storage.PutOptions{})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if info.Key != "fixtures/students.parquet" {
		t.Fatalf("Put().Key = %q", info.Key)
	}
	if objects.lastKey != "querypilot/prod/fixtures/students.parquet" {
		t.Fatalf("bucket key = %q", objects.lastKey)
	}
	if _, err := store.Put(ctx, "fixtures-old/students.parquet", strings.NewReader("x"), 1, storage.PutOptions{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	listed, err := store.List(ctx, "fixtures/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listed) != 1 || listed[0].Key != "fixtures/students.parquet" {
		t.Fatalf("List() = %+v", listed)
	}

	stat, err := store.Stat(ctx, "fixtures/students.parquet")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if stat.Key != "fixtures/students.parquet" || stat.Size != 3 {
		t.Fatalf("Stat() = %+v", stat)
	}
}

func TestStoreRejectsEscapingKeys(t *testing.T) {
	store := newStore(newMemoryBucket(), "")
	for _, key := range []string{"", "  ", "../secrets.txt", "fixtures/../../x"} {
		if _, err := store.Get(context.Background(), key); err == nil {
			t.Fatalf("Get(%q) expected error", key)
		}
	}
}

func TestStoreReportsMissingObjects(t *testing.T) {
	ctx := context.Background()
	store := newStore(newMemoryBucket(), "qp")

	if _, err := store.Stat(ctx, "fixtures/courses.parquet"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v, want ErrObjectNotFound", err)
	}
	if _, err := store.Get(ctx, "fixtures/courses.parquet"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
	if err := store.Delete(ctx, "fixtures/courses.parquet"); err != nil {
		t.Fatalf("Delete() of missing object error = %v", err)
	}
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{raw: "minio:9000", useSSL: false, wantHost: "minio:9000"},
		{raw: "s3.example.com", useSSL: true, wantHost: "s3.example.com", wantSecure: true},
		{raw: "https://s3.example.com", wantHost: "s3.example.com", wantSecure: true},
		{raw: "http://minio:9000", useSSL: true, wantHost: "minio:9000"},
		{raw: "ftp://minio", wantErr: true},
		{raw: "http://", wantErr: true},
		{raw: " ", wantErr: true},
	}
	for _, tt := range tests {
		host, secure, err := splitEndpoint(tt.raw, tt.useSSL)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("splitEndpoint(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("splitEndpoint(%q) error = %v", tt.raw, err)
		}
		if host != tt.wantHost || secure != tt.wantSecure {
			t.Fatalf("splitEndpoint(%q) = %q/%v", tt.raw, host, secure)
		}
	}
}

func TestClassifyMapsMissingCodes(t *testing.T) {
	missing := classify(minio.ErrorResponse{Code: "NoSuchKey", Message: "gone"})
	if !errors.Is(missing, storage.ErrObjectNotFound) {
		t.Fatalf("classify(NoSuchKey) = %v", missing)
	}
	denied := classify(minio.ErrorResponse{Code: "AccessDenied", Message: "no"})
	if errors.Is(denied, storage.ErrObjectNotFound) {
		t.Fatalf("classify(AccessDenied) = %v", denied)
	}
	if classify(nil) != nil {
		t.Fatal("classify(nil) should be nil")
	}
}

// memoryBucket adapts storage.MemoryStore to the bucket interface.
type memoryBucket struct {
	objects *storage.MemoryStore
	lastKey string
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{objects: storage.NewMemoryStore()}
}

func (m *memoryBucket) put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	m.lastKey = key
	return m.objects.Put(ctx, key, body, size, storage.PutOptions{ContentType: contentType})
}

func (m *memoryBucket) open(ctx context.Context, key string) (io.ReadCloser, error) {
	return m.objects.Get(ctx, key)
}

func (m *memoryBucket) head(ctx context.Context, key string) (storage.ObjectInfo, error) {
	return m.objects.Stat(ctx, key)
}

func (m *memoryBucket) walk(ctx context.Context, prefix string, visit func(storage.ObjectInfo) error) error {
	infos, err := m.objects.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if err := visit(info); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryBucket) remove(ctx context.Context, key string) error {
	if _, err := m.objects.Stat(ctx, key); err != nil {
		return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}
	return m.objects.Delete(ctx, key)
}
