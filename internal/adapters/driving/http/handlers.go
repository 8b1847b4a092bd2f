package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/folio-labs/folio-core/internal/core/domain"
	"github.com/folio-labs/folio-core/internal/core/ports/driving"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "queue unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Document endpoints

// registerResponse carries the created document plus whether an ingest
// job was actually queued; queued false means one was already outstanding.
type registerResponse struct {
	Document *domain.Document `json:"document"`
	Queued   bool             `json:"queued"`
}

type queuedResponse struct {
	Queued bool `json:"queued"`
}

// handleRegisterDocument confirms a completed upload: it creates the
// document record and enqueues ingestion. Returns 202; processing is
// asynchronous.
func (s *Server) handleRegisterDocument(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req driving.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, queued, err := s.docService.Register(r.Context(), ident.UserID, req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "title, format, and storage_key are required")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to register document")
		return
	}

	writeJSON(w, http.StatusAccepted, registerResponse{Document: doc, Queued: queued})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := queryInt(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	docs, err := s.docService.List(r.Context(), ident.UserID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doc, err := s.docService.Get(r.Context(), ident.UserID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err, "failed to get document")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := s.docService.Delete(r.Context(), ident.UserID, r.PathValue("id")); err != nil {
		writeDomainError(w, err, "failed to delete document")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	number, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || number < 1 {
		writeError(w, http.StatusBadRequest, "page number must be a positive integer")
		return
	}

	page, err := s.docService.GetPage(r.Context(), ident.UserID, r.PathValue("id"), number)
	if err != nil {
		writeDomainError(w, err, "failed to get page")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// Pipeline triggers

func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	queued, err := s.docService.Reprocess(r.Context(), ident.UserID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err, "failed to reprocess document")
		return
	}

	writeJSON(w, http.StatusAccepted, queuedResponse{Queued: queued})
}

func (s *Server) handleRequestConversion(w http.ResponseWriter, r *http.Request) {
	ident := GetIdentity(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	queued, err := s.docService.RequestConversion(r.Context(), ident.UserID, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotConvertible) {
			writeError(w, http.StatusConflict, "document has no PDF source to convert")
			return
		}
		writeDomainError(w, err, "failed to request conversion")
		return
	}

	writeJSON(w, http.StatusAccepted, queuedResponse{Queued: queued})
}

// Queue observability

func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.jobQueue.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get queue stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps domain sentinels to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
