package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/folio-labs/folio-core/internal/core/domain"
)

// MockObjectStore is an in-memory ObjectStore for testing.
type MockObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// DownloadErr makes every Download fail, for transient-error tests.
	DownloadErr error
	// UploadErr makes every Upload fail.
	UploadErr error
}

// NewMockObjectStore creates a new MockObjectStore.
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{
		objects: make(map[string][]byte),
	}
}

// Put seeds an object for tests.
func (m *MockObjectStore) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

func (m *MockObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.DownloadErr != nil {
		return nil, m.DownloadErr
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, domain.ErrNotFound)
	}
	return data, nil
}

func (m *MockObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	m.objects[key] = data
	return "https://storage.test/" + key, nil
}

func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Has reports whether an object exists, for assertions.
func (m *MockObjectStore) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}
