package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LeArcanist/personas/internal/api/middleware"
	"github.com/LeArcanist/personas/internal/chat"
	"github.com/LeArcanist/personas/internal/metrics"
	"github.com/LeArcanist/personas/internal/models"
)

// StartDM handles POST /dm/start: resolves or creates the thread for the
// active persona and the submitted target, then redirects into it. Invalid
// targets route back to the active persona's room.
func (h *Handler) StartDM(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		h.Redirect(w, r, "/chats")
		return
	}

	thread, active, err := h.threads.StartOrResume(r.Context(), sess,
		parseInt64(r.PostFormValue("target_persona_id")))
	if err != nil {
		if errors.Is(err, chat.ErrValidation) && active != nil {
			h.Redirect(w, r, "/chats/"+models.NormalizeCategory(active.Category))
			return
		}
		h.pageError(w, r, err, "/chats")
		return
	}

	metrics.ThreadsStarted.Inc()
	h.Redirect(w, r, fmt.Sprintf("/dm/%d", thread.ID))
}

// Inbox handles GET /dm: threads where the active persona participates,
// newest first.
func (h *Handler) Inbox(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	items, active, err := h.threads.Inbox(r.Context(), sess)
	if err != nil {
		h.pageError(w, r, err, "/dm")
		return
	}
	if items == nil {
		items = []models.ThreadSummary{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"active_persona": active.Name,
		"threads":        items,
	})
}

// ThreadView handles GET /dm/{id}: the recent history window for a thread
// the active persona participates in.
func (h *Handler) ThreadView(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	view, err := h.threads.Recent(r.Context(), sess, parseInt64(chi.URLParam(r, "id")))
	if err != nil {
		h.pageError(w, r, err, "/dm")
		return
	}

	h.JSON(w, http.StatusOK, view)
}

// SendDM handles POST /dm/{id}/send with the same content policy as room
// messages.
func (h *Handler) SendDM(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	threadID := parseInt64(chi.URLParam(r, "id"))

	if err := r.ParseForm(); err != nil {
		h.Redirect(w, r, "/dm")
		return
	}

	msg, err := h.threads.Send(r.Context(), sess, threadID, r.PostFormValue("content"))
	if err != nil {
		h.pageError(w, r, err, "/dm")
		return
	}
	if msg != nil {
		metrics.MessagesPosted.WithLabelValues("dm").Inc()
	}

	h.Redirect(w, r, fmt.Sprintf("/dm/%d", threadID))
}

// PollThreadMessages handles GET /dm/{id}/messages?after_id=N.
func (h *Handler) PollThreadMessages(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	afterID := parseInt64(r.URL.Query().Get("after_id"))
	views, err := h.threads.Since(r.Context(), sess, parseInt64(chi.URLParam(r, "id")), afterID)
	if err != nil {
		h.pollError(w, r, err)
		return
	}
	if views == nil {
		views = []models.MessageView{}
	}

	h.JSON(w, http.StatusOK, views)
}
