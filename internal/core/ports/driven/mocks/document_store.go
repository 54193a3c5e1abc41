package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/custodia-labs/zipsync/internal/core/domain"
)

// MockDocumentStore is an in-memory DocumentStore that records writes.
type MockDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage

	// Writes counts Set and Update calls
	Writes int

	// GetFn overrides Get when set
	GetFn func(collection, id string) (json.RawMessage, error)
}

// NewMockDocumentStore creates an empty document store.
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{docs: make(map[string]json.RawMessage)}
}

func docKey(collection, id string) string {
	return collection + "/" + id
}

func (m *MockDocumentStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if m.GetFn != nil {
		return m.GetFn(collection, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[docKey(collection, id)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append(json.RawMessage(nil), doc...), nil
}

func (m *MockDocumentStore) Set(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[docKey(collection, id)] = data
	m.Writes++
	return nil
}

func (m *MockDocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docKey(collection, id)]
	if !ok {
		return domain.ErrNotFound
	}
	updated, err := domain.MergeFields(doc, fields)
	if err != nil {
		return err
	}
	m.docs[docKey(collection, id)] = updated
	m.Writes++
	return nil
}

func (m *MockDocumentStore) Ping(ctx context.Context) error {
	return nil
}

// Put stores a raw document without counting it as a write (test setup).
func (m *MockDocumentStore) Put(collection, id string, doc json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[docKey(collection, id)] = doc
}

// Has reports whether the document exists.
func (m *MockDocumentStore) Has(collection, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[docKey(collection, id)]
	return ok
}

// Count returns the number of documents in a collection.
func (m *MockDocumentStore) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	prefix := collection + "/"
	for k := range m.docs {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// WriteCount returns the number of Set and Update calls so far.
func (m *MockDocumentStore) WriteCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Writes
}
