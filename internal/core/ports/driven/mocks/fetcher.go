package mocks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/custodia-labs/zipsync/internal/core/domain"
)

// MockFetcher serves canned bodies by URL and records every request.
type MockFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error

	// Requests lists fetched URLs in call order
	Requests []string
}

// NewMockFetcher creates a fetcher with no resources.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		bodies: make(map[string][]byte),
		errs:   make(map[string]error),
	}
}

// SetBody serves body for url.
func (m *MockFetcher) SetBody(url string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies[url] = body
	delete(m.errs, url)
}

// SetError makes requests for url fail with err.
func (m *MockFetcher) SetError(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[url] = err
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (*domain.FetchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, url)
	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	body, ok := m.bodies[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: status 404", url)
	}
	sum := sha256.Sum256(body)
	return &domain.FetchResult{URL: url, Body: body, Hash: hex.EncodeToString(sum[:])}, nil
}

func (m *MockFetcher) ResolveArchiveURL(page *domain.FetchResult, fallback string) string {
	return fallback
}

// RequestCount returns how many times url was fetched.
func (m *MockFetcher) RequestCount(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.Requests {
		if u == url {
			n++
		}
	}
	return n
}

// Reset clears the recorded requests.
func (m *MockFetcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = nil
}
