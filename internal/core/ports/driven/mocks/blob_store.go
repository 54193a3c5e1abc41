package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/zipsync/internal/core/domain"
)

// MockBlobStore is an in-memory BlobStore that records writes.
type MockBlobStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	public map[string]bool

	// Writes counts Put and Copy calls
	Writes int

	// PutFn overrides Put when set
	PutFn func(path string, data []byte) error
}

// NewMockBlobStore creates an empty blob store.
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{
		blobs:  make(map[string][]byte),
		public: make(map[string]bool),
	}
}

func (m *MockBlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MockBlobStore) Put(ctx context.Context, path string, data []byte) error {
	if m.PutFn != nil {
		if err := m.PutFn(path, data); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[path] = append([]byte(nil), data...)
	m.Writes++
	return nil
}

func (m *MockBlobStore) Copy(ctx context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[src]
	if !ok {
		return domain.ErrNotFound
	}
	m.blobs[dst] = append([]byte(nil), data...)
	m.Writes++
	return nil
}

func (m *MockBlobStore) MakePublic(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[path]; !ok {
		return domain.ErrNotFound
	}
	m.public[path] = true
	return nil
}

// IsPublic reports whether MakePublic was called for path.
func (m *MockBlobStore) IsPublic(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.public[path]
}

// Has reports whether a blob exists at path.
func (m *MockBlobStore) Has(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[path]
	return ok
}

// Paths returns all stored paths, sorted.
func (m *MockBlobStore) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.blobs))
	for p := range m.blobs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// WriteCount returns the number of Put and Copy calls so far.
func (m *MockBlobStore) WriteCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Writes
}
