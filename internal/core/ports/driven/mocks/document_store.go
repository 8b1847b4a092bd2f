package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/folio-labs/folio-core/internal/core/domain"
)

// MockDocumentStore is an in-memory DocumentStore for testing.
type MockDocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*domain.Document
	pages     map[string][]*domain.Page // by document ID

	// FailReplacePages makes ReplacePages return this error, for
	// exercising the best-effort failure write.
	FailReplacePages error
	// FailUpdateIngest makes UpdateIngest fail for the given status.
	FailUpdateIngest map[domain.IngestStatus]error
}

// NewMockDocumentStore creates a new MockDocumentStore.
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		documents: make(map[string]*domain.Document),
		pages:     make(map[string][]*domain.Page),
	}
}

func (m *MockDocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[doc.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *doc
	m.documents[doc.ID] = &cp
	return nil
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *MockDocumentStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var docs []*domain.Document
	for _, doc := range m.documents {
		if doc.OwnerID == ownerID {
			cp := *doc
			docs = append(docs, &cp)
		}
	}
	if offset >= len(docs) {
		return []*domain.Document{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(docs) {
		end = len(docs)
	}
	return docs[offset:end], nil
}

func (m *MockDocumentStore) UpdateIngest(ctx context.Context, id string, status domain.IngestStatus, totalPages, totalWords int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailUpdateIngest[status]; ok && err != nil {
		return err
	}
	doc, ok := m.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.IngestStatus = status
	doc.TotalPages = totalPages
	doc.TotalWords = totalWords
	doc.UpdatedAt = time.Now()
	return nil
}

func (m *MockDocumentStore) UpdateConversion(ctx context.Context, id string, status domain.ConversionStatus, epubKey, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.ConversionStatus = status
	doc.ConversionError = reason
	if epubKey != "" {
		doc.EPUBKey = epubKey
	}
	doc.UpdatedAt = time.Now()
	return nil
}

func (m *MockDocumentStore) ReplacePages(ctx context.Context, documentID string, pages []*domain.Page, totalWords int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReplacePages != nil {
		return m.FailReplacePages
	}
	doc, ok := m.documents[documentID]
	if !ok {
		return domain.ErrNotFound
	}
	stored := make([]*domain.Page, len(pages))
	for i, p := range pages {
		cp := *p
		stored[i] = &cp
	}
	m.pages[documentID] = stored
	doc.IngestStatus = domain.IngestReady
	doc.TotalPages = len(pages)
	doc.TotalWords = totalWords
	doc.UpdatedAt = time.Now()
	return nil
}

func (m *MockDocumentStore) GetPage(ctx context.Context, documentID string, number int) (*domain.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pages[documentID] {
		if p.Number == number {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockDocumentStore) CountPages(ctx context.Context, documentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pages[documentID]), nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.documents, id)
	delete(m.pages, id)
	return nil
}

// Pages returns the stored page set for assertions.
func (m *MockDocumentStore) Pages(documentID string) []*domain.Page {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pages[documentID]
}
