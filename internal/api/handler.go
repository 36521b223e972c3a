// Package api exposes the application wizard over HTTP: session-scoped
// step operations, document uploads, price quotes, submission, and the
// backend submissions endpoint itself.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	sessions   *SessionRegistry
	repo       *repository.ApplicationRepository
	bufferPool *sync.Pool // Pool of bytes.Buffer for JSON encoding
}

// New creates a new API Handler.
// repo can be nil (the submissions endpoint is then unavailable).
func New(sessions *SessionRegistry, repo *repository.ApplicationRepository) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("session registry is required")
	}
	return &Handler{
		sessions: sessions,
		repo:     repo,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}, nil
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sessions", h.CreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/draft", h.UpdateDraft)
	mux.HandleFunc("POST /api/v1/sessions/{id}/advance", h.Advance)
	mux.HandleFunc("POST /api/v1/sessions/{id}/retreat", h.Retreat)
	mux.HandleFunc("POST /api/v1/sessions/{id}/jump", h.Jump)
	mux.HandleFunc("POST /api/v1/sessions/{id}/documents", h.UploadDocuments)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}/documents/{role}", h.RemoveDocument)
	mux.HandleFunc("GET /api/v1/sessions/{id}/price", h.Price)
	mux.HandleFunc("POST /api/v1/sessions/{id}/submit", h.Submit)
	mux.HandleFunc("GET /api/v1/sessions/{id}/receipt", h.Receipt)

	mux.HandleFunc("POST /api/v1/submissions", h.CreateSubmission)
	mux.HandleFunc("GET /api/v1/submissions/{id}", h.GetSubmission)

	mux.HandleFunc("GET /health", h.Health)
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	buf := h.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		h.bufferPool.Put(buf)
	}()

	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, `{"error":"internal server error","code":500}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: msg,
		Code:  status,
	})
}

func (h *Handler) writeFieldErrors(w http.ResponseWriter, status int, msg string, fields map[string]string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:  msg,
		Code:   status,
		Fields: fields,
	})
}
