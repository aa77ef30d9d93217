package handlers

import (
	"errors"
	"net/http"

	"github.com/LeArcanist/personas/internal/api/middleware"
	"github.com/LeArcanist/personas/internal/auth"
	"github.com/LeArcanist/personas/internal/metrics"
	"github.com/LeArcanist/personas/internal/session"
)

// LoginRequired is the stand-in for the login page: clients hitting a
// redirect target land here.
func (h *Handler) LoginRequired(w http.ResponseWriter, r *http.Request) {
	h.Error(w, http.StatusUnauthorized, "login required")
}

// Register creates an account and logs it in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid form body")
		return
	}

	account, err := h.auth.Register(r.Context(),
		r.PostFormValue("username"),
		r.PostFormValue("email"),
		r.PostFormValue("password"),
	)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			h.Error(w, http.StatusBadRequest, "username, email and a password of at least 8 characters are required")
		case errors.Is(err, auth.ErrAccountExists):
			h.Error(w, http.StatusConflict, "account already exists")
		default:
			h.logger.Error().Err(err).Msg("registration failed")
			h.Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	metrics.AccountsRegistered.Inc()

	// Auto-login after registration
	sess := &session.Session{AccountID: account.ID}
	if err := h.sessions.Issue(w, r, sess); err != nil {
		h.logger.Error().Err(err).Msg("session issue failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.Redirect(w, r, "/chats")
}

// Login verifies credentials and issues a fresh session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid form body")
		return
	}

	account, err := h.auth.Login(r.Context(),
		r.PostFormValue("username"),
		r.PostFormValue("password"),
	)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.Error(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		h.logger.Error().Err(err).Msg("login failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Drop any prior session state: a login always starts clean, with no
	// active persona carried over.
	old := middleware.SessionFromContext(r.Context())
	h.sessions.Destroy(w, r, old)

	sess := &session.Session{AccountID: account.ID}
	if err := h.sessions.Issue(w, r, sess); err != nil {
		h.logger.Error().Err(err).Msg("session issue failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	metrics.Logins.Inc()
	h.Redirect(w, r, "/chats")
}

// Logout destroys the session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	h.sessions.Destroy(w, r, sess)
	h.Redirect(w, r, "/")
}
