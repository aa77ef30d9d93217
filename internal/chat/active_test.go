package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeArcanist/personas/internal/session"
)

func TestSelect(t *testing.T) {
	ctx := context.Background()

	t.Run("records the selection", func(t *testing.T) {
		f := newFixture(t)
		account, sess := f.newAccount(t, "alice")
		p := f.newPersona(t, account.ID, "PixelMage", "Gaming")

		require.NoError(t, f.rooms.Resolver().Select(ctx, sess, "Gaming", p.ID))
		assert.Equal(t, p.ID, sess.ActivePersonaID)
		assert.Equal(t, "gaming", sess.ActiveCategory)
	})

	t.Run("rejects a persona owned by someone else", func(t *testing.T) {
		f := newFixture(t)
		_, sess := f.newAccount(t, "alice")
		bob, _ := f.newAccount(t, "bob")
		theirs := f.newPersona(t, bob.ID, "BobBot", "gaming")

		err := f.rooms.Resolver().Select(ctx, sess, "gaming", theirs.ID)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Zero(t, sess.ActivePersonaID)
	})

	t.Run("rejects a category mismatch", func(t *testing.T) {
		f := newFixture(t)
		account, sess := f.newAccount(t, "alice")
		p := f.newPersona(t, account.ID, "PixelMage", "gaming")

		err := f.rooms.Resolver().Select(ctx, sess, "music", p.ID)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects an unknown persona", func(t *testing.T) {
		f := newFixture(t)
		_, sess := f.newAccount(t, "alice")

		err := f.rooms.Resolver().Select(ctx, sess, "gaming", 9999)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("failed selection leaves the prior one intact", func(t *testing.T) {
		f := newFixture(t)
		account, sess := f.newAccount(t, "alice")
		first := f.newPersona(t, account.ID, "PixelMage", "gaming")
		require.NoError(t, f.rooms.Resolver().Select(ctx, sess, "gaming", first.ID))

		err := f.rooms.Resolver().Select(ctx, sess, "gaming", 9999)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, first.ID, sess.ActivePersonaID)
		assert.Equal(t, "gaming", sess.ActiveCategory)
	})

	t.Run("requires an authenticated session", func(t *testing.T) {
		f := newFixture(t)
		err := f.rooms.Resolver().Select(ctx, &session.Session{}, "gaming", 1)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestResolveActive(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the active persona for its category", func(t *testing.T) {
		f := newFixture(t)
		account, sess := f.newAccount(t, "alice")
		p := f.newPersona(t, account.ID, "PixelMage", "gaming")
		f.enter(t, sess, "gaming", p.ID)

		got, err := f.rooms.Resolver().ResolveActive(ctx, sess, "gaming")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	})

	t.Run("normalizes the requested category before comparing", func(t *testing.T) {
		f := newFixture(t)
		account, sess := f.newAccount(t, "alice")
		p := f.newPersona(t, account.ID, "PixelMage", "gaming")
		f.enter(t, sess, "gaming", p.ID)

		_, err := f.rooms.Resolver().ResolveActive(ctx, sess, "  GAMING ")
		assert.NoError(t, err)
	})

	t.Run("fails closed without a selection", func(t *testing.T) {
		f := newFixture(t)
		_, sess := f.newAccount(t, "alice")

		_, err := f.rooms.Resolver().ResolveActive(ctx, sess, "gaming")
		assert.ErrorIs(t, err, ErrNoActivePersona)
	})

	t.Run("fails closed when the persona was reassigned to another category", func(t *testing.T) {
		f := newFixture(t)
		account, sess := f.newAccount(t, "alice")
		p := f.newPersona(t, account.ID, "PixelMage", "gaming")
		f.enter(t, sess, "gaming", p.ID)

		p.Category = "music"
		require.NoError(t, f.store.UpdatePersona(ctx, p))

		_, err := f.rooms.Resolver().ResolveActive(ctx, sess, "gaming")
		assert.ErrorIs(t, err, ErrNoActivePersona)
	})

	t.Run("fails closed when the selection points at a stale id", func(t *testing.T) {
		f := newFixture(t)
		_, sess := f.newAccount(t, "alice")
		sess.ActivePersonaID = 4242
		sess.ActiveCategory = "gaming"

		_, err := f.rooms.Resolver().ResolveActive(ctx, sess, "gaming")
		assert.ErrorIs(t, err, ErrNoActivePersona)
	})

	t.Run("fails closed without authentication", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.rooms.Resolver().ResolveActive(ctx, &session.Session{}, "gaming")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}
