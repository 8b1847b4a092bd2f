package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/folio-labs/folio-core/internal/core/domain"
	"github.com/folio-labs/folio-core/internal/core/ports/driven/mocks"
	"github.com/folio-labs/folio-core/internal/core/ports/driving"
	"github.com/folio-labs/folio-core/internal/ratelimit"
)

const testSecret = "test-secret"

// Mock document service for testing

type mockDocumentService struct {
	registerFn          func(ctx context.Context, ownerID string, req driving.RegisterRequest) (*domain.Document, bool, error)
	getFn               func(ctx context.Context, ownerID, id string) (*domain.Document, error)
	listFn              func(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Document, error)
	getPageFn           func(ctx context.Context, ownerID, id string, number int) (*domain.Page, error)
	reprocessFn         func(ctx context.Context, ownerID, id string) (bool, error)
	requestConversionFn func(ctx context.Context, ownerID, id string) (bool, error)
	deleteFn            func(ctx context.Context, ownerID, id string) error
}

func (m *mockDocumentService) Register(ctx context.Context, ownerID string, req driving.RegisterRequest) (*domain.Document, bool, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, ownerID, req)
	}
	return nil, false, errors.New("not implemented")
}

func (m *mockDocumentService) Get(ctx context.Context, ownerID, id string) (*domain.Document, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ownerID, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDocumentService) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Document, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID, limit, offset)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDocumentService) GetPage(ctx context.Context, ownerID, id string, number int) (*domain.Page, error) {
	if m.getPageFn != nil {
		return m.getPageFn(ctx, ownerID, id, number)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDocumentService) Reprocess(ctx context.Context, ownerID, id string) (bool, error) {
	if m.reprocessFn != nil {
		return m.reprocessFn(ctx, ownerID, id)
	}
	return false, errors.New("not implemented")
}

func (m *mockDocumentService) RequestConversion(ctx context.Context, ownerID, id string) (bool, error) {
	if m.requestConversionFn != nil {
		return m.requestConversionFn(ctx, ownerID, id)
	}
	return false, errors.New("not implemented")
}

func (m *mockDocumentService) Delete(ctx context.Context, ownerID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ownerID, id)
	}
	return errors.New("not implemented")
}

func newTestServer(svc *mockDocumentService) *Server {
	return NewServer(
		Config{Version: "test", JWTSecret: testSecret},
		svc,
		mocks.NewMockJobQueue(),
		ratelimit.NewLimiter(nil),
		nil,
		nil,
	)
}

func authToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, s *Server, method, path string, body []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(&mockDocumentService{})

	rr := doRequest(t, s, "GET", "/health", nil, "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %q", resp["status"])
	}
}

func TestVersionHandler(t *testing.T) {
	s := newTestServer(&mockDocumentService{})

	rr := doRequest(t, s, "GET", "/version", nil, "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp["version"] != "test" {
		t.Errorf("version = %q", resp["version"])
	}
}

func TestRegisterDocument_Accepted(t *testing.T) {
	var gotOwner string
	svc := &mockDocumentService{
		registerFn: func(ctx context.Context, ownerID string, req driving.RegisterRequest) (*domain.Document, bool, error) {
			gotOwner = ownerID
			doc := domain.NewDocument("doc-1", ownerID, req.Title, req.Author, req.Format, req.StorageKey)
			return doc, true, nil
		},
	}
	s := newTestServer(svc)

	body, _ := json.Marshal(driving.RegisterRequest{
		Title:      "My Book",
		Format:     domain.FormatPDF,
		StorageKey: "uploads/u-1/my-book.pdf",
	})
	rr := doRequest(t, s, "POST", "/api/v1/documents", body, authToken(t, "user-1"))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotOwner != "user-1" {
		t.Errorf("owner = %q, want token subject", gotOwner)
	}

	var resp registerResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Queued {
		t.Error("expected queued true")
	}
	if resp.Document == nil || resp.Document.ID != "doc-1" {
		t.Errorf("document = %+v", resp.Document)
	}
}

func TestRegisterDocument_InvalidBody(t *testing.T) {
	s := newTestServer(&mockDocumentService{})

	rr := doRequest(t, s, "POST", "/api/v1/documents", []byte("{not json"), authToken(t, "user-1"))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestRegisterDocument_InvalidInput(t *testing.T) {
	svc := &mockDocumentService{
		registerFn: func(ctx context.Context, ownerID string, req driving.RegisterRequest) (*domain.Document, bool, error) {
			return nil, false, domain.ErrInvalidInput
		},
	}
	s := newTestServer(svc)

	rr := doRequest(t, s, "POST", "/api/v1/documents", []byte("{}"), authToken(t, "user-1"))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestRegisterDocument_Unauthenticated(t *testing.T) {
	s := newTestServer(&mockDocumentService{})

	rr := doRequest(t, s, "POST", "/api/v1/documents", []byte("{}"), "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	svc := &mockDocumentService{
		getFn: func(ctx context.Context, ownerID, id string) (*domain.Document, error) {
			return nil, domain.ErrNotFound
		},
	}
	s := newTestServer(svc)

	rr := doRequest(t, s, "GET", "/api/v1/documents/nope", nil, authToken(t, "user-1"))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestGetDocument_Forbidden(t *testing.T) {
	svc := &mockDocumentService{
		getFn: func(ctx context.Context, ownerID, id string) (*domain.Document, error) {
			return nil, domain.ErrForbidden
		},
	}
	s := newTestServer(svc)

	rr := doRequest(t, s, "GET", "/api/v1/documents/doc-1", nil, authToken(t, "intruder"))
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
}

func TestListDocuments_Defaults(t *testing.T) {
	var gotLimit, gotOffset int
	svc := &mockDocumentService{
		listFn: func(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Document, error) {
			gotLimit, gotOffset = limit, offset
			return nil, nil
		},
	}
	s := newTestServer(svc)

	rr := doRequest(t, s, "GET", "/api/v1/documents", nil, authToken(t, "user-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotLimit != defaultListLimit || gotOffset != 0 {
		t.Errorf("limit=%d offset=%d, want defaults", gotLimit, gotOffset)
	}

	// Empty list serializes as [], not null
	var resp map[string]json.RawMessage
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if string(resp["documents"]) != "[]" {
		t.Errorf("documents = %s, want []", resp["documents"])
	}
}

func TestListDocuments_LimitCapped(t *testing.T) {
	var gotLimit int
	svc := &mockDocumentService{
		listFn: func(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Document, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	s := newTestServer(svc)

	doRequest(t, s, "GET", "/api/v1/documents?limit=9999", nil, authToken(t, "user-1"))
	if gotLimit != defaultListLimit {
		t.Errorf("limit = %d, want default when over cap", gotLimit)
	}
}

func TestGetPage_Success(t *testing.T) {
	svc := &mockDocumentService{
		getPageFn: func(ctx context.Context, ownerID, id string, number int) (*domain.Page, error) {
			return &domain.Page{DocumentID: id, Number: number, Content: "hello", WordCount: 1}, nil
		},
	}
	s := newTestServer(svc)

	rr := doRequest(t, s, "GET", "/api/v1/documents/doc-1/pages/3", nil, authToken(t, "user-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var page domain.Page
	if err := json.NewDecoder(rr.Body).Decode(&page); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if page.Number != 3 || page.Content != "hello" {
		t.Errorf("page = %+v", page)
	}
}

func TestGetPage_InvalidNumber(t *testing.T) {
	s := newTestServer(&mockDocumentService{})

	for _, n := range []string{"0", "-1", "abc"} {
		rr := doRequest(t, s, "GET", "/api/v1/documents/doc-1/pages/"+n, nil, authToken(t, "user-1"))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("page %q: expected status 400, got %d", n, rr.Code)
		}
	}
}

func TestReprocess_NoOpStillAccepted(t *testing.T) {
	svc := &mockDocumentService{
		reprocessFn: func(ctx context.Context, ownerID, id string) (bool, error) {
			return false, nil // already outstanding
		},
	}
	s := newTestServer(svc)

	rr := doRequest(t, s, "POST", "/api/v1/documents/doc-1/reprocess", nil, authToken(t, "user-1"))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 for no-op enqueue, got %d", rr.Code)
	}

	var resp queuedResponse
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Queued {
		t.Error("expected queued false when a job was outstanding")
	}
}

func TestRequestConversion_NotConvertible(t *testing.T) {
	svc := &mockDocumentService{
		requestConversionFn: func(ctx context.Context, ownerID, id string) (bool, error) {
			return false, domain.ErrNotConvertible
		},
	}
	s := newTestServer(svc)

	rr := doRequest(t, s, "POST", "/api/v1/documents/doc-1/convert", nil, authToken(t, "user-1"))
	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rr.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	var deleted string
	svc := &mockDocumentService{
		deleteFn: func(ctx context.Context, ownerID, id string) error {
			deleted = id
			return nil
		},
	}
	s := newTestServer(svc)

	rr := doRequest(t, s, "DELETE", "/api/v1/documents/doc-1", nil, authToken(t, "user-1"))
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if deleted != "doc-1" {
		t.Errorf("deleted = %q", deleted)
	}
}

func TestJobStats(t *testing.T) {
	s := newTestServer(&mockDocumentService{})

	rr := doRequest(t, s, "GET", "/api/v1/jobs/stats", nil, authToken(t, "user-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var stats map[string]int64
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, ok := stats["pending_count"]; !ok {
		t.Errorf("stats missing pending_count: %v", stats)
	}
}
