package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an ObjectStore kept in process memory. It backs the
// embedded fixture source and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	data []byte
	info ObjectInfo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]memoryObject{}, now: time.Now}
}

func (m *MemoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ PutOptions) (ObjectInfo, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return ObjectInfo{}, fmt.Errorf("object key is required")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("read object body: %w", err)
	}
	sum := md5.Sum(data)
	info := ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: m.now().UTC(),
	}
	m.mu.Lock()
	m.objects[key] = memoryObject{data: data, info: info}
	m.mu.Unlock()
	return info, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	object, ok := m.objects[strings.TrimPrefix(key, "/")]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(object.data)), nil
}

func (m *MemoryStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	m.mu.RLock()
	object, ok := m.objects[strings.TrimPrefix(key, "/")]
	m.mu.RUnlock()
	if !ok {
		return ObjectInfo{}, ErrObjectNotFound
	}
	return object.info, nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	m.mu.RLock()
	out := make([]ObjectInfo, 0, len(m.objects))
	for key, object := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, object.info)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, strings.TrimPrefix(key, "/"))
	m.mu.Unlock()
	return nil
}
