package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/LeArcanist/personas/internal/api/middleware"
	"github.com/LeArcanist/personas/internal/auth"
	"github.com/LeArcanist/personas/internal/chat"
	"github.com/LeArcanist/personas/internal/session"
	"github.com/LeArcanist/personas/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store    store.DataStore
	sessions *middleware.SessionLoader
	sessStor session.Store
	auth     *auth.Provider
	rooms    *chat.RoomEngine
	threads  *chat.ThreadEngine
	logger   zerolog.Logger
}

// NewHandler creates a new Handler with the given collaborators.
func NewHandler(ds store.DataStore, loader *middleware.SessionLoader, sessStore session.Store, authProvider *auth.Provider, rooms *chat.RoomEngine, threads *chat.ThreadEngine, logger zerolog.Logger) *Handler {
	return &Handler{
		store:    ds,
		sessions: loader,
		sessStor: sessStore,
		auth:     authProvider,
		rooms:    rooms,
		threads:  threads,
		logger:   logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// Redirect issues the 303 redirect page flows use after form submissions.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// pageError maps engine errors to the page-flow redirect policy: access
// problems route the user to a safe default, never an error page.
func (h *Handler) pageError(w http.ResponseWriter, r *http.Request, err error, safeURL string) {
	switch {
	case errors.Is(err, chat.ErrUnauthenticated):
		h.Redirect(w, r, "/login")
	case errors.Is(err, chat.ErrNoActivePersona), errors.Is(err, chat.ErrValidation):
		h.Redirect(w, r, "/chats")
	case errors.Is(err, chat.ErrNotAllowed):
		h.Redirect(w, r, safeURL)
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// pollError maps engine errors to the poll-endpoint status contract:
// 401 without an account, 403 for everything the caller may not see.
func (h *Handler) pollError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrUnauthenticated):
		h.Error(w, http.StatusUnauthorized, "not_logged_in")
	case errors.Is(err, chat.ErrNoActivePersona):
		h.Error(w, http.StatusForbidden, "no_active_persona")
	case errors.Is(err, chat.ErrNotAllowed), errors.Is(err, chat.ErrValidation):
		h.Error(w, http.StatusForbidden, "not_allowed")
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("poll failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// parseInt64 parses a URL or form value as an id; 0 means absent/invalid.
func parseInt64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
