package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/model"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/receipt"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/repository"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/submit"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/wizard"
)

// Submit finalizes the session's application: assembles the payload,
// delivers it to the backend, and on success moves the wizard to the
// confirmation step. Failures leave the draft intact for a retry.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := wiz.Submit(r.Context(), req.TermsAccepted)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, SubmissionResponse{
			ApplicationID: result.ApplicationID,
			Status:        result.Status,
		})
	case errors.Is(err, wizard.ErrSubmissionInFlight):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wizard.ErrNotAtReview), errors.Is(err, wizard.ErrTermsNotAccepted):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		var backendErr *submit.Error
		if errors.As(err, &backendErr) {
			h.writeFieldErrors(w, http.StatusBadGateway, backendErr.Message, backendErr.Fields)
			return
		}
		h.writeError(w, http.StatusBadGateway, "submission failed, please retry")
	}
}

// Receipt renders the confirmation receipt for a submitted application.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}
	draft := wiz.Draft()
	if draft.Status != model.StatusSubmitted {
		h.writeError(w, http.StatusConflict, "application has not been submitted")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(receipt.RenderHTML(draft)); err != nil {
		return
	}
}

// CreateSubmission is the backend boundary: it validates and persists an
// assembled payload. Client retries with an already-stored application id
// are answered idempotently.
func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, http.StatusServiceUnavailable, "submissions store is not configured")
		return
	}

	var p submit.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid submission payload")
		return
	}
	if fields := validatePayload(p); len(fields) > 0 {
		h.writeFieldErrors(w, http.StatusUnprocessableEntity, "submission is incomplete", fields)
		return
	}

	exists, err := h.repo.Exists(r.Context(), p.ApplicationID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to check submission")
		return
	}
	if exists {
		h.writeJSON(w, http.StatusOK, SubmissionResponse{ApplicationID: p.ApplicationID, Status: "pending"})
		return
	}

	id, err := h.repo.Create(r.Context(), p)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to store submission")
		return
	}
	h.writeJSON(w, http.StatusCreated, SubmissionResponse{ApplicationID: id, Status: "pending"})
}

// GetSubmission returns a stored application summary.
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, http.StatusServiceUnavailable, "submissions store is not configured")
		return
	}

	row, err := h.repo.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, repository.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "application not found")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load application")
		return
	}
	h.writeJSON(w, http.StatusOK, row)
}

func validatePayload(p submit.Payload) map[string]string {
	fields := make(map[string]string)
	if p.ApplicationID == "" {
		fields["applicationId"] = "application id is required"
	}
	if p.VisaType == "" {
		fields["visaType"] = "visa type is required"
	}
	if p.FullName == "" {
		fields["fullName"] = "full name is required"
	}
	if p.Email == "" {
		fields["email"] = "email is required"
	}
	if p.EntryDate == "" {
		fields["entryDate"] = "entry date is required"
	}
	return fields
}
