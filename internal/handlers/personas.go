package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/LeArcanist/personas/internal/api/middleware"
	"github.com/LeArcanist/personas/internal/models"
)

// ListPersonas returns the authenticated account's personas in stable
// (category, name) order.
func (h *Handler) ListPersonas(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		h.Redirect(w, r, "/login")
		return
	}

	personas, err := h.store.ListPersonasByOwner(r.Context(), sess.AccountID)
	if err != nil {
		h.logger.Error().Err(err).Msg("persona list failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if personas == nil {
		personas = []models.Persona{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"personas": personas})
}

// CreatePersona creates a persona for the authenticated account. Duplicate
// names within the account are rejected.
func (h *Handler) CreatePersona(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		h.Redirect(w, r, "/login")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid form body")
		return
	}

	name := strings.TrimSpace(r.PostFormValue("name"))
	if name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	taken, err := h.store.HasPersonaNamed(r.Context(), sess.AccountID, name, 0)
	if err != nil {
		h.logger.Error().Err(err).Msg("persona name check failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if taken {
		h.Error(w, http.StatusConflict, "you already have a persona with that name")
		return
	}

	persona, err := h.store.CreatePersona(r.Context(),
		sess.AccountID,
		name,
		r.PostFormValue("category"),
		strings.TrimSpace(r.PostFormValue("description")),
		r.PostFormValue("is_public") == "1",
	)
	if err != nil {
		h.logger.Error().Err(err).Msg("persona create failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.JSON(w, http.StatusCreated, persona)
}

// UpdatePersona edits a persona's mutable fields, ownership-checked.
func (h *Handler) UpdatePersona(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		h.Redirect(w, r, "/login")
		return
	}

	personaID := parseInt64(chi.URLParam(r, "id"))
	persona, err := h.store.GetPersona(r.Context(), personaID)
	if err != nil {
		h.logger.Error().Err(err).Msg("persona lookup failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if persona == nil || persona.OwnerID != sess.AccountID {
		// Unknown and not-yours answer identically.
		h.Redirect(w, r, "/chats")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid form body")
		return
	}

	name := strings.TrimSpace(r.PostFormValue("name"))
	if name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	taken, err := h.store.HasPersonaNamed(r.Context(), sess.AccountID, name, persona.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("persona name check failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if taken {
		h.Error(w, http.StatusConflict, "you already have a persona with that name")
		return
	}

	persona.Name = name
	persona.Category = r.PostFormValue("category")
	persona.Description = strings.TrimSpace(r.PostFormValue("description"))
	persona.IsPublic = r.PostFormValue("is_public") == "1"

	if err := h.store.UpdatePersona(r.Context(), persona); err != nil {
		h.logger.Error().Err(err).Msg("persona update failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.JSON(w, http.StatusOK, persona)
}
