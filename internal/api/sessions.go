package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/document"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/store"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/submit"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/wizard"
)

// SessionRegistry creates and tracks wizard sessions.
type SessionRegistry struct {
	drafts    *store.DraftStore
	pipeline  *document.Pipeline
	submitter submit.Submitter

	mu       sync.RWMutex
	sessions map[string]*wizard.Wizard
}

// NewSessionRegistry creates a registry. Returns error on missing deps;
// submitter may be nil (submission then fails with a retryable error).
func NewSessionRegistry(drafts *store.DraftStore, pipeline *document.Pipeline, submitter submit.Submitter) (*SessionRegistry, error) {
	if drafts == nil {
		return nil, errors.New("draft store is required")
	}
	if pipeline == nil {
		return nil, errors.New("document pipeline is required")
	}
	return &SessionRegistry{
		drafts:    drafts,
		pipeline:  pipeline,
		submitter: submitter,
		sessions:  make(map[string]*wizard.Wizard),
	}, nil
}

// Open returns the wizard for id, creating and hydrating one when needed.
// An empty id allocates a fresh session.
func (r *SessionRegistry) Open(ctx context.Context, id string) (*wizard.Wizard, error) {
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.RLock()
	w, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return w, nil
	}

	w, err := wizard.New(id, r.drafts, r.pipeline, r.submitter)
	if err != nil {
		return nil, err
	}
	w.Resume(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[id]; ok {
		return existing, nil
	}
	r.sessions[id] = w
	return w, nil
}

// Get returns the in-memory wizard for id.
func (r *SessionRegistry) Get(id string) (*wizard.Wizard, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.sessions[id]
	return w, ok
}

// CreateSession starts a new wizard session or resumes a persisted one.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	wiz, err := h.sessions.Open(r.Context(), req.SessionID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to open session")
		return
	}
	h.writeJSON(w, http.StatusCreated, newSessionResponse(wiz))
}

// GetSession returns the full wizard state.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, newSessionResponse(wiz))
}

// UpdateDraft merges section updates into the draft.
func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}

	var u wizard.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	wiz.UpdateDraft(r.Context(), u)
	h.writeJSON(w, http.StatusOK, newSessionResponse(wiz))
}

// Advance attempts the validated forward transition. A validation failure
// is not an error: the response simply reports the unchanged step along
// with field-level messages.
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}
	wiz.Advance(r.Context())
	h.writeJSON(w, http.StatusOK, newSessionResponse(wiz))
}

// Retreat moves back one step.
func (h *Handler) Retreat(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}
	wiz.Retreat(r.Context())
	h.writeJSON(w, http.StatusOK, newSessionResponse(wiz))
}

// Jump sets the step directly for the review-step edit affordance.
func (h *Handler) Jump(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}

	var req JumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !wiz.JumpTo(r.Context(), req.Step) {
		h.writeError(w, http.StatusBadRequest, "step out of range")
		return
	}
	h.writeJSON(w, http.StatusOK, newSessionResponse(wiz))
}

// Price returns the itemized quote, optionally converted to a display
// currency via the ?currency query parameter.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}
	display := pricingCurrency(r.URL.Query().Get("currency"))
	h.writeJSON(w, http.StatusOK, newPriceResponse(wiz.Price(), display))
}

// session resolves the {id} path parameter to a live wizard, writing a 404
// when the session is unknown.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*wizard.Wizard, bool) {
	id := r.PathValue("id")
	wiz, ok := h.sessions.Get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return wiz, true
}
