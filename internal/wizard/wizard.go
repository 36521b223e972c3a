// Package wizard owns the step state machine and the application draft for
// one intake session. The draft has exactly one writer: all operations are
// serialized through the wizard's mutex, and everything handed outward is
// a clone.
package wizard

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/document"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/model"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/pricing"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/store"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/submit"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/validate"
)

// Wizard steps. StepConfirmation is terminal for this subsystem.
const (
	StepServiceSelection = 1
	StepPersonalInfo     = 2
	StepTravelInfo       = 3
	StepDocumentUpload   = 4
	StepReview           = 5
	StepConfirmation     = 6
)

var (
	// ErrSubmissionInFlight is returned when a submit attempt overlaps an
	// outstanding one for the same draft.
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
	// ErrNotAtReview is returned when submit is attempted off the review step.
	ErrNotAtReview = errors.New("submission is only possible from the review step")
	// ErrTermsNotAccepted is returned when the terms checkbox is not set.
	ErrTermsNotAccepted = errors.New("terms must be accepted before submitting")
)

// Update carries a partial draft change. Only non-nil sections are merged;
// merging happens at section granularity, never replacing the whole draft.
type Update struct {
	VisaSelection      *model.VisaSelection `json:"visaSelection,omitempty"`
	PersonalInfo       *model.PersonalInfo  `json:"personalInfo,omitempty"`
	TravelInfo         *model.TravelInfo    `json:"travelInfo,omitempty"`
	AdditionalServices *[]string            `json:"additionalServices,omitempty"`
}

// Wizard is the state machine for one application session.
type Wizard struct {
	sessionID string
	drafts    *store.DraftStore
	pipeline  *document.Pipeline
	submitter submit.Submitter

	mu         sync.Mutex
	step       int
	draft      *model.Draft
	submitting bool
	uploadGen  map[model.DocumentRole]uint64
}

// New creates a wizard at step 1 with an empty draft. The submitter may be
// nil, in which case Submit fails; drafts and pipeline are required.
func New(sessionID string, drafts *store.DraftStore, pipeline *document.Pipeline, submitter submit.Submitter) (*Wizard, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	if drafts == nil {
		return nil, errors.New("draft store is required")
	}
	if pipeline == nil {
		return nil, errors.New("document pipeline is required")
	}
	return &Wizard{
		sessionID: sessionID,
		drafts:    drafts,
		pipeline:  pipeline,
		submitter: submitter,
		step:      StepServiceSelection,
		draft:     model.NewDraft(),
		uploadGen: make(map[model.DocumentRole]uint64),
	}, nil
}

// Resume hydrates step and draft from a persisted snapshot, if one exists
// and is structurally sound. Without one the wizard keeps its defaults.
func (w *Wizard) Resume(ctx context.Context) {
	snap := w.drafts.Load(ctx, w.sessionID)
	if snap == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = snap.Step
	w.draft = snap.Draft
	slog.Info("resumed draft from store", "session_id", w.sessionID, "step", snap.Step)
}

// SessionID returns the session identifier.
func (w *Wizard) SessionID() string { return w.sessionID }

// Step returns the current step.
func (w *Wizard) Step() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Draft returns a clone of the current draft.
func (w *Wizard) Draft() *model.Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.Clone()
}

// Advance moves forward one step if the current step validates. A failed
// validation is a silent no-op returning false; the field-level detail is
// available via StepErrors. The review step advances only through Submit.
func (w *Wizard) Advance(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step >= StepReview {
		return false
	}
	if !validate.Step(w.step, w.draft) {
		slog.Debug("step validation failed, advance ignored", "session_id", w.sessionID, "step", w.step)
		return false
	}
	w.step++
	w.persistLocked(ctx)
	return true
}

// Retreat moves back one step unconditionally, bounded at step 1.
func (w *Wizard) Retreat(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step <= StepServiceSelection {
		return false
	}
	w.step--
	w.persistLocked(ctx)
	return true
}

// JumpTo sets the step directly, bypassing forward validation. Used by the
// edit affordance on the review step; the user must re-advance through
// validated transitions afterwards.
func (w *Wizard) JumpTo(ctx context.Context, step int) bool {
	if step < StepServiceSelection || step > StepConfirmation {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = step
	w.persistLocked(ctx)
	return true
}

// StepErrors returns field-level messages for the current step.
func (w *Wizard) StepErrors() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return validate.StepErrors(w.step, w.draft)
}

// UpdateDraft merges the provided sections into the draft, re-normalizes
// it, and persists unless the wizard is on the terminal step.
func (w *Wizard) UpdateDraft(ctx context.Context, u Update) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if u.VisaSelection != nil {
		w.draft.VisaSelection = *u.VisaSelection
	}
	if u.PersonalInfo != nil {
		w.draft.PersonalInfo = *u.PersonalInfo
	}
	if u.TravelInfo != nil {
		w.draft.TravelInfo = *u.TravelInfo
	}
	if u.AdditionalServices != nil {
		w.draft.AdditionalServices = *u.AdditionalServices
	}
	w.draft.Normalize()
	w.persistLocked(ctx)
}

// UploadDocument validates and ingests a file for the role. Acceptance is
// synchronous; encoding and enrichment complete in the background, after
// which the record replaces any prior record for the role. A result
// arriving for a role removed in the meantime is discarded.
func (w *Wizard) UploadDocument(ctx context.Context, role model.DocumentRole, f document.File) error {
	w.mu.Lock()
	gen := w.uploadGen[role]
	w.mu.Unlock()

	return w.pipeline.Ingest(ctx, role, f, func(r model.DocumentRole, rec model.DocumentRecord) bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.uploadGen[r] != gen {
			return false
		}
		w.draft.Documents[r] = rec
		w.persistLocked(ctx)
		return true
	})
}

// UploadPending reports whether a conversion for the role is in flight.
func (w *Wizard) UploadPending(role model.DocumentRole) bool {
	return w.pipeline.Pending(role)
}

// RemoveDocument deletes the role's entry entirely and invalidates any
// in-flight conversion for it.
func (w *Wizard) RemoveDocument(ctx context.Context, role model.DocumentRole) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.draft.Documents, role)
	w.uploadGen[role]++
	w.persistLocked(ctx)
}

// Price computes the current itemized quote.
func (w *Wizard) Price() pricing.Breakdown {
	w.mu.Lock()
	defer w.mu.Unlock()
	return pricing.Compute(w.draft)
}

// Submit assembles and delivers the application. On success the wizard
// transitions to the confirmation step and clears the persisted draft; on
// failure the draft stays intact and persisted on the review step so the
// user can retry. The application id is generated once and reused across
// retries, and only one submission may be in flight at a time.
func (w *Wizard) Submit(ctx context.Context, termsAccepted bool) (*submit.Result, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if w.step != StepReview {
		w.mu.Unlock()
		return nil, ErrNotAtReview
	}
	if !termsAccepted {
		w.mu.Unlock()
		return nil, ErrTermsNotAccepted
	}
	if w.submitter == nil {
		w.mu.Unlock()
		return nil, errors.New("no submitter configured")
	}
	if w.draft.ApplicationID == "" {
		w.draft.ApplicationID = submit.NewApplicationID()
		w.persistLocked(ctx)
	}
	w.submitting = true
	payload := submit.Assemble(w.draft.Clone())
	w.mu.Unlock()

	result, err := w.submitter.Submit(ctx, payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false

	if err != nil {
		slog.Error("submission failed", "session_id", w.sessionID, "application_id", payload.ApplicationID, "error", err)
		return nil, err
	}

	if result.ApplicationID != "" {
		w.draft.ApplicationID = result.ApplicationID
	}
	w.draft.Status = model.StatusSubmitted
	w.step = StepConfirmation
	w.drafts.Clear(ctx, w.sessionID)
	slog.Info("application submitted", "session_id", w.sessionID, "application_id", w.draft.ApplicationID)
	return result, nil
}

// persistLocked saves the current snapshot while below the terminal step.
// Callers must hold w.mu.
func (w *Wizard) persistLocked(ctx context.Context) {
	if w.step >= StepConfirmation {
		return
	}
	w.drafts.Save(ctx, w.sessionID, store.Snapshot{Step: w.step, Draft: w.draft})
}
