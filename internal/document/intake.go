// Package document implements the upload intake pipeline: size and type
// enforcement per document role, portable inline encoding, and optional
// enrichment from the external recognition service.
package document

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/model"
)

const (
	// MaxPhotoSize is the ceiling for identity photo uploads.
	MaxPhotoSize = 5 << 20
	// MaxDocumentSize is the ceiling for every other document role.
	MaxDocumentSize = 10 << 20
)

var (
	allowedTypes      = []string{"image/jpeg", "image/jpg", "image/png", "application/pdf"}
	allowedPhotoTypes = []string{"image/jpeg", "image/jpg", "image/png"}
)

// File is an upload candidate handed to the pipeline.
type File struct {
	Name string
	Size int64
	Type string
	Data []byte
}

// RejectionError is a user-facing intake rejection. The draft is never
// mutated when one is returned.
type RejectionError struct {
	Role   model.DocumentRole
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("document %s rejected: %s", e.Role, e.Reason)
}

// MaxSizeFor returns the upload ceiling for a role.
func MaxSizeFor(role model.DocumentRole) int64 {
	if role.IsPhoto() {
		return MaxPhotoSize
	}
	return MaxDocumentSize
}

// AllowedTypesFor returns the MIME allow-list for a role. Photo roles accept
// images only; everything else also accepts PDF.
func AllowedTypesFor(role model.DocumentRole) []string {
	if role.IsPhoto() {
		return allowedPhotoTypes
	}
	return allowedTypes
}

// Validate checks a file against its role's constraints without touching
// any state.
func Validate(role model.DocumentRole, f File) error {
	max := MaxSizeFor(role)
	if f.Size > max {
		return &RejectionError{
			Role:   role,
			Reason: fmt.Sprintf("file exceeds the %dMB limit", max>>20),
		}
	}
	if !lo.Contains(AllowedTypesFor(role), f.Type) {
		return &RejectionError{
			Role:   role,
			Reason: fmt.Sprintf("file type %q is not allowed", f.Type),
		}
	}
	return nil
}

// EncodeDataURI converts file bytes into the portable inline representation
// stored on the draft and submitted to the backend.
func EncodeDataURI(f File) string {
	return "data:" + f.Type + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}

// Pipeline turns accepted files into document records. Encoding and
// recognition run asynchronously; the per-role pending flag is visible
// while a conversion is in flight.
type Pipeline struct {
	recognizer Recognizer
	verifier   PhotoVerifier

	mu      sync.Mutex
	pending map[model.DocumentRole]bool
}

// NewPipeline creates a pipeline. Both collaborators are optional: a nil
// recognizer skips passport extraction, a nil verifier skips photo checks.
func NewPipeline(recognizer Recognizer, verifier PhotoVerifier) *Pipeline {
	return &Pipeline{
		recognizer: recognizer,
		verifier:   verifier,
		pending:    make(map[model.DocumentRole]bool),
	}
}

// Pending reports whether a conversion for the role is in flight.
func (p *Pipeline) Pending(role model.DocumentRole) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending[role]
}

// Ingest validates the file synchronously and, on acceptance, converts and
// enriches it asynchronously. When the record is ready, commit is invoked;
// it must return false if the role is no longer wanted (removed while the
// conversion was in flight), in which case the result is discarded.
//
// Only one conversion per role runs at a time; uploads for different roles
// proceed independently.
func (p *Pipeline) Ingest(ctx context.Context, role model.DocumentRole, f File, commit func(model.DocumentRole, model.DocumentRecord) bool) error {
	if err := Validate(role, f); err != nil {
		return err
	}

	p.mu.Lock()
	if p.pending[role] {
		p.mu.Unlock()
		return &RejectionError{Role: role, Reason: "an upload for this document is already in progress"}
	}
	p.pending[role] = true
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.pending, role)
			p.mu.Unlock()
		}()

		rec := model.DocumentRecord{
			FileName:   f.Name,
			FileSize:   f.Size,
			FileType:   f.Type,
			FileData:   EncodeDataURI(f),
			UploadedAt: time.Now().UTC(),
		}
		p.enrich(ctx, role, f, &rec)

		if !commit(role, rec) {
			slog.Debug("discarding conversion result for removed role", "role", role)
		}
	}()

	return nil
}

// enrich attaches recognition output. Collaborator failures never block
// acceptance of the document itself.
func (p *Pipeline) enrich(ctx context.Context, role model.DocumentRole, f File, rec *model.DocumentRecord) {
	if role.IsPassport() && p.recognizer != nil {
		fields, err := p.recognizer.ExtractFields(ctx, f.Type, f.Data)
		if err != nil {
			slog.Warn("passport recognition failed", "role", role, "error", err)
		} else {
			rec.ExtractedInfo = NormalizeFields(fields)
		}
	}
	if role.IsPhoto() && p.verifier != nil {
		verdict, err := p.verifier.VerifyPhoto(ctx, f.Type, f.Data)
		if err != nil {
			slog.Warn("photo suitability check failed", "role", role, "error", err)
		} else {
			rec.ValidationResult = verdict
		}
	}
}
