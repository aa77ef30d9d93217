package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeArcanist/personas/internal/models"
	"github.com/LeArcanist/personas/internal/session"
	"github.com/LeArcanist/personas/internal/store"
)

// dmFixture seeds two accounts whose personas share the gaming room.
type dmFixture struct {
	*fixture
	alice     *models.Persona
	bob       *models.Persona
	aliceSess *session.Session
	bobSess   *session.Session
}

func newDMFixture(t *testing.T) *dmFixture {
	t.Helper()
	f := newFixture(t)
	aliceAcct, aliceSess := f.newAccount(t, "alice")
	bobAcct, bobSess := f.newAccount(t, "bob")
	alice := f.newPersona(t, aliceAcct.ID, "PixelMage", "gaming")
	bob := f.newPersona(t, bobAcct.ID, "RetroKing", "gaming")
	f.enter(t, aliceSess, "gaming", alice.ID)
	f.enter(t, bobSess, "gaming", bob.ID)
	return &dmFixture{
		fixture:   f,
		alice:     alice,
		bob:       bob,
		aliceSess: aliceSess,
		bobSess:   bobSess,
	}
}

func TestStartOrResume(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a thread on first contact", func(t *testing.T) {
		f := newDMFixture(t)

		thread, active, err := f.threads.StartOrResume(ctx, f.aliceSess, f.bob.ID)
		require.NoError(t, err)
		require.NotNil(t, thread)
		assert.Equal(t, f.alice.ID, active.ID)
		assert.Equal(t, "gaming", thread.Category)
		assert.True(t, thread.HasParticipant(f.alice.ID))
		assert.True(t, thread.HasParticipant(f.bob.ID))
	})

	t.Run("resumes the same thread regardless of who starts", func(t *testing.T) {
		f := newDMFixture(t)

		first, _, err := f.threads.StartOrResume(ctx, f.aliceSess, f.bob.ID)
		require.NoError(t, err)

		second, _, err := f.threads.StartOrResume(ctx, f.bobSess, f.alice.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		third, _, err := f.threads.StartOrResume(ctx, f.aliceSess, f.bob.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, third.ID)
	})

	t.Run("same pair in another category is a distinct thread", func(t *testing.T) {
		f := newDMFixture(t)
		aliceMusic := f.newPersona(t, f.alice.OwnerID, "SynthRider", "music")
		bobMusic := f.newPersona(t, f.bob.OwnerID, "BassDrop", "music")

		gaming, _, err := f.threads.StartOrResume(ctx, f.aliceSess, f.bob.ID)
		require.NoError(t, err)

		f.enter(t, f.aliceSess, "music", aliceMusic.ID)
		music, _, err := f.threads.StartOrResume(ctx, f.aliceSess, bobMusic.ID)
		require.NoError(t, err)
		assert.NotEqual(t, gaming.ID, music.ID)
	})

	t.Run("rejects messaging yourself", func(t *testing.T) {
		f := newDMFixture(t)

		_, active, err := f.threads.StartOrResume(ctx, f.aliceSess, f.alice.ID)
		assert.ErrorIs(t, err, ErrValidation)
		require.NotNil(t, active)
		assert.Equal(t, f.alice.ID, active.ID)
	})

	t.Run("rejects a target in another category", func(t *testing.T) {
		f := newDMFixture(t)
		other := f.newPersona(t, f.bob.OwnerID, "BassDrop", "music")

		_, _, err := f.threads.StartOrResume(ctx, f.aliceSess, other.ID)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects a non-public target", func(t *testing.T) {
		f := newDMFixture(t)
		hidden, err := f.store.CreatePersona(ctx, f.bob.OwnerID, "Lurker", "gaming", "", false)
		require.NoError(t, err)

		_, _, err = f.threads.StartOrResume(ctx, f.aliceSess, hidden.ID)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects an unknown target", func(t *testing.T) {
		f := newDMFixture(t)

		_, _, err := f.threads.StartOrResume(ctx, f.aliceSess, 9999)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("requires an active persona", func(t *testing.T) {
		f := newDMFixture(t)
		_, freshSess := f.newAccount(t, "carol")

		_, _, err := f.threads.StartOrResume(ctx, freshSess, f.bob.ID)
		assert.ErrorIs(t, err, ErrNoActivePersona)
	})
}

// blindLookupStore hides the first skips FindThread lookups, forcing
// StartOrResume past its existence check and into CreateThread. This is
// what a lookup racing a concurrent insert observes.
type blindLookupStore struct {
	store.DataStore
	skips int
}

func (s *blindLookupStore) FindThread(ctx context.Context, category string, personaX, personaY int64) (*models.DMThread, error) {
	if s.skips > 0 {
		s.skips--
		return nil, nil
	}
	return s.DataStore.FindThread(ctx, category, personaX, personaY)
}

// vanishingStore reports every insert as a duplicate while lookups find
// nothing, the storage anomaly recovery must not mask as access denial.
type vanishingStore struct {
	store.DataStore
}

func (s *vanishingStore) FindThread(ctx context.Context, category string, personaX, personaY int64) (*models.DMThread, error) {
	return nil, nil
}

func (s *vanishingStore) CreateThread(ctx context.Context, personaA, personaB int64, category string) (*models.DMThread, error) {
	return nil, store.ErrThreadExists
}

func TestStartOrResumeCreationRace(t *testing.T) {
	ctx := context.Background()

	t.Run("two racing starters end up on one thread", func(t *testing.T) {
		f := newDMFixture(t)
		// Neither caller's lookup sees the other's in-flight insert.
		engine := NewThreadEngine(&blindLookupStore{DataStore: f.store, skips: 2}, zerolog.Nop())

		first, _, err := engine.StartOrResume(ctx, f.aliceSess, f.bob.ID)
		require.NoError(t, err)
		second, _, err := engine.StartOrResume(ctx, f.bobSess, f.alice.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		rows, err := f.store.ListThreadsForPersona(ctx, f.alice.ID, 10)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("loser recovers the winner's thread by re-fetching", func(t *testing.T) {
		f := newDMFixture(t)
		existing, _, err := f.threads.StartOrResume(ctx, f.bobSess, f.alice.ID)
		require.NoError(t, err)

		engine := NewThreadEngine(&blindLookupStore{DataStore: f.store, skips: 1}, zerolog.Nop())
		thread, _, err := engine.StartOrResume(ctx, f.aliceSess, f.bob.ID)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, thread.ID)
	})

	t.Run("a duplicate insert with no row to recover is an internal error", func(t *testing.T) {
		f := newDMFixture(t)
		engine := NewThreadEngine(&vanishingStore{DataStore: f.store}, zerolog.Nop())

		_, _, err := engine.StartOrResume(ctx, f.aliceSess, f.bob.ID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotAllowed)
		assert.NotErrorIs(t, err, ErrValidation)
	})
}

func TestThreadAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("non-participant is denied like an unknown thread", func(t *testing.T) {
		f := newDMFixture(t)
		carolAcct, carolSess := f.newAccount(t, "carol")
		carol := f.newPersona(t, carolAcct.ID, "SneakyFox", "gaming")
		f.enter(t, carolSess, "gaming", carol.ID)

		thread, _, err := f.threads.StartOrResume(ctx, f.aliceSess, f.bob.ID)
		require.NoError(t, err)

		_, _, err = f.threads.RequireParticipant(ctx, carolSess, thread.ID)
		assert.ErrorIs(t, err, ErrNotAllowed)

		_, _, err = f.threads.RequireParticipant(ctx, carolSess, 9999)
		assert.ErrorIs(t, err, ErrNotAllowed)
	})

	t.Run("either participant reads and writes", func(t *testing.T) {
		f := newDMFixture(t)
		thread, _, err := f.threads.StartOrResume(ctx, f.aliceSess, f.bob.ID)
		require.NoError(t, err)

		_, err = f.threads.Send(ctx, f.aliceSess, thread.ID, "hi bob")
		require.NoError(t, err)
		_, err = f.threads.Send(ctx, f.bobSess, thread.ID, "hi alice")
		require.NoError(t, err)

		view, err := f.threads.Recent(ctx, f.bobSess, thread.ID)
		require.NoError(t, err)
		require.Len(t, view.Messages, 2)
		assert.False(t, view.Messages[0].IsMe)
		assert.True(t, view.Messages[1].IsMe)
		assert.Equal(t, "PixelMage", view.OtherName)
	})

	t.Run("denies a session without a selection", func(t *testing.T) {
		f := newDMFixture(t)
		thread, _, err := f.threads.StartOrResume(ctx, f.aliceSess, f.bob.ID)
		require.NoError(t, err)

		f.aliceSess.ClearSelection()
		_, _, err = f.threads.RequireParticipant(ctx, f.aliceSess, thread.ID)
		assert.ErrorIs(t, err, ErrNoActivePersona)
	})
}

func TestThreadSend(t *testing.T) {
	ctx := context.Background()

	t.Run("silently discards empty content", func(t *testing.T) {
		f := newDMFixture(t)
		thread, _, err := f.threads.StartOrResume(ctx, f.aliceSess, f.bob.ID)
		require.NoError(t, err)

		msg, err := f.threads.Send(ctx, f.aliceSess, thread.ID, "   ")
		require.NoError(t, err)
		assert.Nil(t, msg)

		view, err := f.threads.Recent(ctx, f.aliceSess, thread.ID)
		require.NoError(t, err)
		assert.Empty(t, view.Messages)
	})

	t.Run("messages land only in their thread", func(t *testing.T) {
		f := newDMFixture(t)
		carolAcct, carolSess := f.newAccount(t, "carol")
		carol := f.newPersona(t, carolAcct.ID, "SneakyFox", "gaming")
		f.enter(t, carolSess, "gaming", carol.ID)

		ab, _, err := f.threads.StartOrResume(ctx, f.aliceSess, f.bob.ID)
		require.NoError(t, err)
		ac, _, err := f.threads.StartOrResume(ctx, f.aliceSess, carol.ID)
		require.NoError(t, err)
		require.NotEqual(t, ab.ID, ac.ID)

		_, err = f.threads.Send(ctx, f.aliceSess, ab.ID, "for bob")
		require.NoError(t, err)

		view, err := f.threads.Recent(ctx, f.aliceSess, ac.ID)
		require.NoError(t, err)
		assert.Empty(t, view.Messages)
	})
}

func TestThreadSince(t *testing.T) {
	ctx := context.Background()

	f := newDMFixture(t)
	thread, _, err := f.threads.StartOrResume(ctx, f.aliceSess, f.bob.ID)
	require.NoError(t, err)

	var cursor int64
	for i := 0; i < 4; i++ {
		msg, err := f.threads.Send(ctx, f.aliceSess, thread.ID, fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
		if i == 1 {
			cursor = msg.ID
		}
	}

	views, err := f.threads.Since(ctx, f.bobSess, thread.ID, cursor)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "msg 2", views[0].Content)
	assert.Equal(t, "msg 3", views[1].Content)
	assert.False(t, views[0].IsMe)

	views, err = f.threads.Since(ctx, f.bobSess, thread.ID, views[1].ID)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestInbox(t *testing.T) {
	ctx := context.Background()

	t.Run("lists threads newest first with the other name", func(t *testing.T) {
		f := newDMFixture(t)
		carolAcct, _ := f.newAccount(t, "carol")
		carol := f.newPersona(t, carolAcct.ID, "SneakyFox", "gaming")

		_, _, err := f.threads.StartOrResume(ctx, f.aliceSess, f.bob.ID)
		require.NoError(t, err)
		_, _, err = f.threads.StartOrResume(ctx, f.aliceSess, carol.ID)
		require.NoError(t, err)

		items, active, err := f.threads.Inbox(ctx, f.aliceSess)
		require.NoError(t, err)
		assert.Equal(t, f.alice.ID, active.ID)
		require.Len(t, items, 2)
		assert.Equal(t, "SneakyFox", items[0].OtherName)
		assert.Equal(t, "RetroKing", items[1].OtherName)
	})

	t.Run("inbox is scoped to the active persona", func(t *testing.T) {
		f := newDMFixture(t)
		aliceMusic := f.newPersona(t, f.alice.OwnerID, "SynthRider", "music")

		_, _, err := f.threads.StartOrResume(ctx, f.aliceSess, f.bob.ID)
		require.NoError(t, err)

		f.enter(t, f.aliceSess, "music", aliceMusic.ID)
		items, _, err := f.threads.Inbox(ctx, f.aliceSess)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}
