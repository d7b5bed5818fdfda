package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pontifexx/supplier-portal/internal/services"
	"github.com/pontifexx/supplier-portal/internal/store"
	"github.com/pontifexx/supplier-portal/internal/ultimo"
)

// maxUploadBytes caps a completion request's multipart body.
const maxUploadBytes = 32 << 20

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)

	jobs, err := h.Portal.JobsForEmail(session.Email)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// CompleteJob accepts a multipart form with customer_id, optional feedback,
// and up to four images under the "images" field.
func (h *Handler) CompleteJob(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	jobID := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "expected multipart form data")
		return
	}

	customerID, err := strconv.ParseInt(r.FormValue("customer_id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	feedback := r.FormValue("feedback")

	var images []ultimo.Image
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["images"] {
			f, err := fh.Open()
			if err != nil {
				h.writeError(w, http.StatusBadRequest, "failed to read uploaded image")
				return
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				h.writeError(w, http.StatusBadRequest, "failed to read uploaded image")
				return
			}
			images = append(images, ultimo.Image{Name: fh.Filename, Data: data})
		}
	}

	result, err := h.Portal.CompleteJob(r.Context(), session.Email, customerID, jobID, feedback, images)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, services.ErrNotAssigned):
		h.writeError(w, http.StatusForbidden, "job is not assigned to you")
	case errors.Is(err, services.ErrNoMapping):
		h.writeError(w, http.StatusConflict, "job cannot be completed in its current status")
	case err != nil:
		h.Logger.Error("job completion failed",
			"job_id", jobID, "customer_id", customerID, "error", err)
		h.writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.writeJSON(w, http.StatusOK, result)
	}
}

func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	ctl, err := h.Store.SyncControl()
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ctl)
}
