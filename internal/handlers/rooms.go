package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LeArcanist/personas/internal/api/middleware"
	"github.com/LeArcanist/personas/internal/metrics"
	"github.com/LeArcanist/personas/internal/models"
)

// ListRooms handles GET /chats: the account's personas and the categories
// they can enter.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	list, err := h.rooms.ListRooms(r.Context(), sess)
	if err != nil {
		h.pageError(w, r, err, "/chats")
		return
	}
	if list.Personas == nil {
		list.Personas = []models.Persona{}
	}

	h.JSON(w, http.StatusOK, list)
}

// EnterRoom handles POST /chats/enter: validates the persona against the
// submitted category and stores the selection. Validation failures route
// back to room selection, never an error page.
func (h *Handler) EnterRoom(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		h.Redirect(w, r, "/login")
		return
	}

	if err := r.ParseForm(); err != nil {
		h.Redirect(w, r, "/chats")
		return
	}

	category, err := h.rooms.Enter(r.Context(), sess,
		r.PostFormValue("category"),
		parseInt64(r.PostFormValue("persona_id")),
	)
	if err != nil {
		h.pageError(w, r, err, "/chats")
		return
	}

	metrics.RoomsEntered.Inc()
	h.Redirect(w, r, "/chats/"+category)
}

// RoomView handles GET /chats/{category}: recent history plus DM
// candidates for the room.
func (h *Handler) RoomView(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	view, err := h.rooms.Recent(r.Context(), sess, chi.URLParam(r, "category"))
	if err != nil {
		h.pageError(w, r, err, "/chats")
		return
	}

	h.JSON(w, http.StatusOK, view)
}

// SendRoomMessage handles POST /chats/{category}/send. Blank content is
// silently discarded; either way the client is sent back to the room.
func (h *Handler) SendRoomMessage(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	category := chi.URLParam(r, "category")

	if err := r.ParseForm(); err != nil {
		h.Redirect(w, r, "/chats")
		return
	}

	msg, err := h.rooms.Send(r.Context(), sess, category, r.PostFormValue("content"))
	if err != nil {
		h.pageError(w, r, err, "/chats")
		return
	}
	if msg != nil {
		metrics.MessagesPosted.WithLabelValues("room").Inc()
		category = msg.Category
	} else {
		category = models.NormalizeCategory(category)
	}

	h.Redirect(w, r, "/chats/"+category)
}

// PollRoomMessages handles GET /chats/{category}/messages?after_id=N: a
// stateless cursor poll answering 401/403 instead of redirects.
func (h *Handler) PollRoomMessages(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	afterID := parseInt64(r.URL.Query().Get("after_id"))
	views, err := h.rooms.Since(r.Context(), sess, chi.URLParam(r, "category"), afterID)
	if err != nil {
		h.pollError(w, r, err)
		return
	}
	if views == nil {
		views = []models.MessageView{}
	}

	h.JSON(w, http.StatusOK, views)
}
