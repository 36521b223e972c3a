package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/document"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/model"
)

// maxUploadBytes bounds a whole multipart request; individual files are
// additionally checked against their role's ceiling by the pipeline.
const maxUploadBytes = 64 << 20

// UploadDocuments accepts a multipart form whose file field names are
// document roles (passport, photo, passportPerson0, ...). Files for
// different roles are ingested concurrently; any rejection fails the
// request with per-role detail while accepted roles proceed.
func (h *Handler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File) == 0 {
		h.writeError(w, http.StatusBadRequest, "no files in request")
		return
	}

	var g errgroup.Group
	rejections := make(chan rejection, len(r.MultipartForm.File))

	for field, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		role := model.DocumentRole(field)
		header := headers[0]

		g.Go(func() error {
			src, err := header.Open()
			if err != nil {
				return fmt.Errorf("open upload %s: %w", role, err)
			}
			defer src.Close()

			data, err := io.ReadAll(src)
			if err != nil {
				return fmt.Errorf("read upload %s: %w", role, err)
			}

			f := document.File{
				Name: header.Filename,
				Size: header.Size,
				Type: header.Header.Get("Content-Type"),
				Data: data,
			}
			// Conversion continues after the response is written, so it
			// must not die with the request context.
			if err := wiz.UploadDocument(context.WithoutCancel(r.Context()), role, f); err != nil {
				var rej *document.RejectionError
				if errors.As(err, &rej) {
					rejections <- rejection{role: role, reason: rej.Reason}
					return nil
				}
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		h.writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}
	close(rejections)

	fields := make(map[string]string)
	for rej := range rejections {
		fields[string(rej.role)] = rej.reason
	}
	if len(fields) > 0 {
		h.writeFieldErrors(w, http.StatusUnprocessableEntity, "one or more documents were rejected", fields)
		return
	}

	h.writeJSON(w, http.StatusAccepted, newSessionResponse(wiz))
}

type rejection struct {
	role   model.DocumentRole
	reason string
}

// RemoveDocument deletes the role's entry from the draft.
func (h *Handler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.session(w, r)
	if !ok {
		return
	}
	role := model.DocumentRole(r.PathValue("role"))
	wiz.RemoveDocument(r.Context(), role)
	h.writeJSON(w, http.StatusOK, newSessionResponse(wiz))
}
