package handlers

import (
	"net/http"
	"strings"

	"github.com/pontifexx/supplier-portal/internal/services"
)

type codeRequest struct {
	Email string `json:"email"`
}

// RequestCode issues a one-time login code. Email delivery is out of scope,
// so the code comes back in the response for the caller to relay.
func (h *Handler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decode(r, &req); err != nil || req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	code, err := h.Access.IssueCode(req.Email)
	if err == services.ErrUnknownEmail {
		h.writeError(w, http.StatusNotFound, "email is not a known supplier contact")
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.Logger.Info("login code issued", "email", req.Email)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "sent", "code": code})
}

type loginRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil || req.Email == "" || req.Code == "" {
		h.writeError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	session, err := h.Access.Login(req.Email, strings.ToUpper(strings.TrimSpace(req.Code)))
	if err == services.ErrInvalidCode {
		h.writeError(w, http.StatusUnauthorized, "invalid or expired login code")
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, session)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	if err := h.Access.Logout(session.Token); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
