package chat

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/LeArcanist/personas/internal/models"
	"github.com/LeArcanist/personas/internal/session"
	"github.com/LeArcanist/personas/internal/store"
)

// RoomEngine serves category-room operations: room selection, the
// append-only per-category log, and room membership discovery.
type RoomEngine struct {
	store    store.DataStore
	sessions session.Store
	resolver *Resolver
	logger   zerolog.Logger
}

// NewRoomEngine creates a RoomEngine.
func NewRoomEngine(ds store.DataStore, sessions session.Store, logger zerolog.Logger) *RoomEngine {
	return &RoomEngine{
		store:    ds,
		sessions: sessions,
		resolver: NewResolver(ds),
		logger:   logger,
	}
}

// Resolver exposes the engine's active-persona resolver.
func (e *RoomEngine) Resolver() *Resolver {
	return e.resolver
}

// RoomList is the room-selection view: an account's personas in stable
// (category, name) order plus the distinct categories they span.
type RoomList struct {
	Personas        []models.Persona `json:"personas"`
	Categories      []string         `json:"categories"`
	ActivePersonaID int64            `json:"active_persona_id,omitempty"`
}

// ListRooms returns the authenticated account's personas and the category
// set derived from them.
func (e *RoomEngine) ListRooms(ctx context.Context, sess *session.Session) (*RoomList, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}

	personas, err := e.store.ListPersonasByOwner(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}

	// Personas arrive (category, name) sorted, so distinct categories
	// fall out already ordered.
	categories := make([]string, 0, len(personas))
	seen := make(map[string]bool)
	for _, p := range personas {
		c := models.NormalizeCategory(p.Category)
		if !seen[c] {
			seen[c] = true
			categories = append(categories, c)
		}
	}

	return &RoomList{
		Personas:        personas,
		Categories:      categories,
		ActivePersonaID: sess.ActivePersonaID,
	}, nil
}

// Enter validates the persona against the submitted room category and, on
// success, stores the selection on the session. The submitted category is
// re-normalized before comparison so a persona cannot post under a category
// it does not own even when the ownership check passes. Returns the
// normalized category for redirecting into the room.
func (e *RoomEngine) Enter(ctx context.Context, sess *session.Session, category string, personaID int64) (string, error) {
	if err := e.resolver.Select(ctx, sess, category, personaID); err != nil {
		return "", err
	}
	if err := e.sessions.Put(ctx, sess); err != nil {
		return "", err
	}
	return sess.ActiveCategory, nil
}

// Send appends a message to the category's log under the session's active
// persona. Empty-after-trim content is a silent no-op and returns
// (nil, nil); overlong content is truncated, not rejected.
func (e *RoomEngine) Send(ctx context.Context, sess *session.Session, category, content string) (*models.CategoryMessage, error) {
	active, err := e.resolver.ResolveActive(ctx, sess, category)
	if err != nil {
		return nil, err
	}

	text, ok := PrepareContent(content)
	if !ok {
		return nil, nil
	}

	msg, err := e.store.InsertCategoryMessage(ctx, category, active.ID, text)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("category", msg.Category).
		Int64("persona_id", active.ID).
		Int64("message_id", msg.ID).
		Msg("room message stored")

	return msg, nil
}

// RoomView is what a client renders on room entry: the recent history
// window plus the public personas available as DM candidates.
type RoomView struct {
	Category      string               `json:"category"`
	ActivePersona models.Persona       `json:"active_persona"`
	Messages      []models.MessageView `json:"messages"`
	People        []models.Persona     `json:"people"`
}

// Recent returns the room-entry view: the newest RecentLimit messages in
// chronological order, annotated per viewer, plus the DM candidate list.
func (e *RoomEngine) Recent(ctx context.Context, sess *session.Session, category string) (*RoomView, error) {
	active, err := e.resolver.ResolveActive(ctx, sess, category)
	if err != nil {
		return nil, err
	}

	rows, err := e.store.ListRecentCategoryMessages(ctx, category, RecentLimit)
	if err != nil {
		return nil, err
	}
	reverseRows(rows)

	people, err := e.store.ListPublicPersonas(ctx, category, active.ID, PeerLimit)
	if err != nil {
		return nil, err
	}
	if people == nil {
		people = []models.Persona{}
	}

	return &RoomView{
		Category:      models.NormalizeCategory(category),
		ActivePersona: *active,
		Messages:      buildViews(rows, active.ID),
		People:        people,
	}, nil
}

// Since returns room messages with id > afterID, ascending, capped at
// PollLimit. An empty result is valid and means no new messages.
func (e *RoomEngine) Since(ctx context.Context, sess *session.Session, category string, afterID int64) ([]models.MessageView, error) {
	active, err := e.resolver.ResolveActive(ctx, sess, category)
	if err != nil {
		return nil, err
	}

	rows, err := e.store.ListCategoryMessagesAfter(ctx, category, afterID, PollLimit)
	if err != nil {
		return nil, err
	}
	return buildViews(rows, active.ID), nil
}
