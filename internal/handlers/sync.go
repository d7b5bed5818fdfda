package handlers

import (
	"errors"
	"net/http"

	"github.com/pontifexx/supplier-portal/internal/syncer"
)

// ForceSync flags the poller to refresh on its next tick.
func (h *Handler) ForceSync(w http.ResponseWriter, r *http.Request) {
	err := h.Syncer.TriggerNow()
	if errors.Is(err, syncer.ErrSyncBusy) {
		h.writeError(w, http.StatusConflict, "a sync is already in progress")
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

type intervalRequest struct {
	Seconds int `json:"seconds"`
}

func (h *Handler) SetSyncInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Seconds <= 0 {
		h.writeError(w, http.StatusBadRequest, "seconds must be positive")
		return
	}

	if err := h.Store.SetSyncInterval(req.Seconds); err != nil {
		h.serverError(w, r, err)
		return
	}

	h.Logger.Info("sync interval updated", "seconds", req.Seconds)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
