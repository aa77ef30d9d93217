package chat

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/LeArcanist/personas/internal/models"
	"github.com/LeArcanist/personas/internal/session"
	"github.com/LeArcanist/personas/internal/store"
)

// ThreadEngine serves DM operations: thread identity resolution with
// deduplication, the per-thread append-only log, participant gating, and
// the inbox listing.
type ThreadEngine struct {
	store    store.DataStore
	resolver *Resolver
	logger   zerolog.Logger
}

// NewThreadEngine creates a ThreadEngine.
func NewThreadEngine(ds store.DataStore, logger zerolog.Logger) *ThreadEngine {
	return &ThreadEngine{
		store:    ds,
		resolver: NewResolver(ds),
		logger:   logger,
	}
}

// StartOrResume returns the thread for the active persona and the target,
// creating it on first contact. The target must exist, be public, share the
// active persona's normalized category, and not be the active persona
// itself; violations return ErrValidation with the resolved active persona
// so callers can route back to its room.
//
// Lookup checks both orderings of the pair, since the persisted row records
// an arbitrary persona_a/persona_b assignment. A unique-index violation on
// insert means a concurrent request created the thread first; it is
// recovered by re-fetching, never surfaced.
func (e *ThreadEngine) StartOrResume(ctx context.Context, sess *session.Session, targetPersonaID int64) (*models.DMThread, *models.Persona, error) {
	active, err := e.resolver.ResolveAny(ctx, sess)
	if err != nil {
		return nil, nil, err
	}

	target, err := e.store.GetPersona(ctx, targetPersonaID)
	if err != nil {
		return nil, active, err
	}
	if target == nil || !target.IsPublic {
		return nil, active, ErrValidation
	}
	if !target.InCategory(active.Category) {
		return nil, active, ErrValidation
	}
	if target.ID == active.ID {
		return nil, active, ErrValidation
	}

	category := models.NormalizeCategory(active.Category)

	existing, err := e.store.FindThread(ctx, category, active.ID, target.ID)
	if err != nil {
		return nil, active, err
	}
	if existing != nil {
		return existing, active, nil
	}

	thread, err := e.store.CreateThread(ctx, active.ID, target.ID, category)
	if errors.Is(err, store.ErrThreadExists) {
		// Lost the creation race; the winner's row is the thread.
		e.logger.Debug().
			Int64("persona_id", active.ID).
			Int64("target_id", target.ID).
			Str("category", category).
			Msg("thread creation raced, re-fetching")
		thread, err = e.store.FindThread(ctx, category, active.ID, target.ID)
		if err == nil && thread == nil {
			// The winner's row should be visible here; its absence is a
			// storage anomaly, not an access problem.
			return nil, active, pkgerrors.Errorf(
				"dm thread for personas %d and %d in %s missing after duplicate insert",
				active.ID, target.ID, category)
		}
	}
	if err != nil {
		return nil, active, err
	}
	return thread, active, nil
}

// RequireParticipant resolves the session's active persona (category is not
// re-checked here) and verifies it participates in the thread. Unknown
// thread ids and non-participants fail identically with ErrNotAllowed.
func (e *ThreadEngine) RequireParticipant(ctx context.Context, sess *session.Session, threadID int64) (*models.Persona, *models.DMThread, error) {
	active, err := e.resolver.ResolveAny(ctx, sess)
	if err != nil {
		return nil, nil, err
	}

	thread, err := e.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, nil, err
	}
	if thread == nil || !thread.HasParticipant(active.ID) {
		return nil, nil, ErrNotAllowed
	}
	return active, thread, nil
}

// Send appends a message to the thread's log. Content policy matches room
// messages: trimmed, empties silently discarded, overlong truncated.
func (e *ThreadEngine) Send(ctx context.Context, sess *session.Session, threadID int64, content string) (*models.DMMessage, error) {
	active, thread, err := e.RequireParticipant(ctx, sess, threadID)
	if err != nil {
		return nil, err
	}

	text, ok := PrepareContent(content)
	if !ok {
		return nil, nil
	}

	msg, err := e.store.InsertDMMessage(ctx, thread.ID, active.ID, text)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Int64("thread_id", thread.ID).
		Int64("persona_id", active.ID).
		Int64("message_id", msg.ID).
		Msg("dm message stored")

	return msg, nil
}

// ThreadView is what a client renders on thread entry.
type ThreadView struct {
	ThreadID      int64                `json:"thread_id"`
	Category      string               `json:"category"`
	ActivePersona models.Persona       `json:"active_persona"`
	OtherName     string               `json:"other_name"`
	Messages      []models.MessageView `json:"messages"`
}

// Recent returns the thread-entry view: the newest RecentLimit messages in
// chronological order plus the other participant's display name.
func (e *ThreadEngine) Recent(ctx context.Context, sess *session.Session, threadID int64) (*ThreadView, error) {
	active, thread, err := e.RequireParticipant(ctx, sess, threadID)
	if err != nil {
		return nil, err
	}

	otherName := "Unknown"
	if other, err := e.store.GetPersona(ctx, thread.OtherParticipant(active.ID)); err != nil {
		return nil, err
	} else if other != nil {
		otherName = other.Name
	}

	rows, err := e.store.ListRecentDMMessages(ctx, thread.ID, RecentLimit)
	if err != nil {
		return nil, err
	}
	reverseRows(rows)

	return &ThreadView{
		ThreadID:      thread.ID,
		Category:      thread.Category,
		ActivePersona: *active,
		OtherName:     otherName,
		Messages:      buildViews(rows, active.ID),
	}, nil
}

// Since returns thread messages with id > afterID, ascending, capped at
// PollLimit.
func (e *ThreadEngine) Since(ctx context.Context, sess *session.Session, threadID, afterID int64) ([]models.MessageView, error) {
	active, thread, err := e.RequireParticipant(ctx, sess, threadID)
	if err != nil {
		return nil, err
	}

	rows, err := e.store.ListDMMessagesAfter(ctx, thread.ID, afterID, PollLimit)
	if err != nil {
		return nil, err
	}
	return buildViews(rows, active.ID), nil
}

// Inbox lists threads where the active persona is either participant,
// newest thread first, each annotated with the other participant's name.
func (e *ThreadEngine) Inbox(ctx context.Context, sess *session.Session) ([]models.ThreadSummary, *models.Persona, error) {
	active, err := e.resolver.ResolveAny(ctx, sess)
	if err != nil {
		return nil, nil, err
	}

	rows, err := e.store.ListThreadsForPersona(ctx, active.ID, InboxLimit)
	if err != nil {
		return nil, nil, err
	}

	items := make([]models.ThreadSummary, len(rows))
	for i, row := range rows {
		items[i] = models.ThreadSummary{
			ThreadID:  row.Thread.ID,
			Category:  row.Thread.Category,
			OtherName: row.OtherName,
		}
	}
	return items, active, nil
}
