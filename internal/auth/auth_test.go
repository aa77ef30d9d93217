package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeArcanist/personas/internal/store/storetest"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an account with a hashed password", func(t *testing.T) {
		provider := NewProvider(storetest.New())

		account, err := provider.Register(ctx, "alice", "Alice@Example.com", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, "alice", account.Username)
		assert.Equal(t, "alice@example.com", account.Email)
		assert.NotEmpty(t, account.PasswordHash)
		assert.NotEqual(t, "correct horse", account.PasswordHash)
	})

	t.Run("rejects a taken username", func(t *testing.T) {
		provider := NewProvider(storetest.New())

		_, err := provider.Register(ctx, "alice", "alice@example.com", "correct horse")
		require.NoError(t, err)

		_, err = provider.Register(ctx, "alice", "other@example.com", "another pass")
		assert.ErrorIs(t, err, ErrAccountExists)
	})

	t.Run("rejects short passwords and blank fields", func(t *testing.T) {
		provider := NewProvider(storetest.New())

		_, err := provider.Register(ctx, "alice", "alice@example.com", "short")
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = provider.Register(ctx, "  ", "alice@example.com", "correct horse")
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = provider.Register(ctx, "alice", "", "correct horse")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts correct credentials", func(t *testing.T) {
		provider := NewProvider(storetest.New())
		registered, err := provider.Register(ctx, "alice", "alice@example.com", "correct horse")
		require.NoError(t, err)

		account, err := provider.Login(ctx, "alice", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, account.ID)
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		provider := NewProvider(storetest.New())
		_, err := provider.Register(ctx, "alice", "alice@example.com", "correct horse")
		require.NoError(t, err)

		_, err = provider.Login(ctx, "alice", "wrong horse")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user fails the same as a wrong password", func(t *testing.T) {
		provider := NewProvider(storetest.New())

		_, err := provider.Login(ctx, "nobody", "whatever1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}
