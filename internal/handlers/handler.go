// Package handlers exposes the portal's HTTP API: code-based login, the
// supplier job list and completion endpoint, and the admin surface for
// customers, status mappings, and sync control.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pontifexx/supplier-portal/internal/logger"
	"github.com/pontifexx/supplier-portal/internal/models"
	"github.com/pontifexx/supplier-portal/internal/services"
	"github.com/pontifexx/supplier-portal/internal/store"
	"github.com/pontifexx/supplier-portal/internal/syncer"
	"github.com/pontifexx/supplier-portal/internal/ultimo"
)

type Handler struct {
	Store  *store.DB
	Client *ultimo.Client
	Access *services.AccessService
	Portal *services.PortalService
	Syncer *syncer.Syncer
	Logger *logger.Logger
}

func NewHandler(db *store.DB, client *ultimo.Client, access *services.AccessService, portal *services.PortalService, s *syncer.Syncer, log *logger.Logger) *Handler {
	return &Handler{
		Store:  db,
		Client: client,
		Access: access,
		Portal: portal,
		Syncer: s,
		Logger: log.WithComponent("http"),
	}
}

type contextKey string

const sessionKey contextKey = "session"

// sessionFrom returns the session placed on the context by RequireSession.
func sessionFrom(r *http.Request) *models.Session {
	s, _ := r.Context().Value(sessionKey).(*models.Session)
	return s
}

// RequireSession resolves the Bearer token and rejects requests without a
// live session.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			h.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		session, err := h.Access.Session(token)
		if err == store.ErrNotFound {
			h.writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		if err != nil {
			h.serverError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin sessions. It must run inside RequireSession.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := sessionFrom(r)
		if session == nil || !session.IsAdmin {
			h.writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
}

// decode reads a JSON request body into v.
func decode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
