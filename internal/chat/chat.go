// Package chat implements the persona-scoped messaging engines: active
// persona resolution, category rooms, and DM threads. Category rooms and
// threads share one message-log shape (append, recent window, cursor poll)
// specialized by log identifier and access check.
package chat

import (
	"errors"
	"strings"

	"github.com/LeArcanist/personas/internal/models"
	"github.com/LeArcanist/personas/internal/store"
)

const (
	// MaxContentLen is the anti-abuse ceiling on message length, in runes.
	// Longer content is truncated, not rejected.
	MaxContentLen = 500

	// RecentLimit is the bounded history window fetched on room or thread
	// entry.
	RecentLimit = 50

	// PollLimit caps a single cursor poll.
	PollLimit = 100

	// PeerLimit caps the DM-candidate listing for a room.
	PeerLimit = 50

	// InboxLimit caps the DM inbox listing.
	InboxLimit = 50
)

var (
	// ErrUnauthenticated means the session carries no account. Page flows
	// redirect to login; poll endpoints answer 401.
	ErrUnauthenticated = errors.New("chat: no authenticated account")

	// ErrNoActivePersona means no valid persona selection exists for the
	// requested context. Page flows redirect to the room list; poll
	// endpoints answer 403.
	ErrNoActivePersona = errors.New("chat: no active persona")

	// ErrNotAllowed covers participant checks and unknown ids alike, so
	// callers cannot distinguish "doesn't exist" from "not yours".
	ErrNotAllowed = errors.New("chat: not allowed")

	// ErrValidation means a submitted selection or DM target failed
	// validation. Callers route back to selection, never to an error page.
	ErrValidation = errors.New("chat: validation failed")
)

// PrepareContent applies the message content policy shared by rooms and
// threads: trim whitespace, discard empties, truncate past MaxContentLen.
// ok is false when the message should be silently dropped.
func PrepareContent(raw string) (content string, ok bool) {
	content = strings.TrimSpace(raw)
	if content == "" {
		return "", false
	}
	if runes := []rune(content); len(runes) > MaxContentLen {
		content = string(runes[:MaxContentLen])
	}
	return content, true
}

// buildViews converts store rows into wire-shaped message views, marking
// messages sent by the viewing persona.
func buildViews(rows []store.MessageRow, activePersonaID int64) []models.MessageView {
	views := make([]models.MessageView, len(rows))
	for i, row := range rows {
		views[i] = models.MessageView{
			ID:         row.ID,
			SenderName: row.SenderName,
			Content:    row.Content,
			CreatedAt:  models.FormatMessageTime(row.CreatedAt),
			IsMe:       row.SenderPersonaID == activePersonaID,
		}
	}
	return views
}

// reverseRows flips a newest-first window into chronological order.
func reverseRows(rows []store.MessageRow) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
