package chat

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/LeArcanist/personas/internal/models"
	"github.com/LeArcanist/personas/internal/session"
	"github.com/LeArcanist/personas/internal/store/storetest"
)

// fixture wires both engines onto a shared in-memory store.
type fixture struct {
	store    *storetest.Memory
	sessions *session.MemoryStore
	rooms    *RoomEngine
	threads  *ThreadEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ds := storetest.New()
	sessions := session.NewMemoryStore(time.Hour)
	return &fixture{
		store:    ds,
		sessions: sessions,
		rooms:    NewRoomEngine(ds, sessions, zerolog.Nop()),
		threads:  NewThreadEngine(ds, zerolog.Nop()),
	}
}

// newAccount seeds an account and returns a logged-in session for it.
func (f *fixture) newAccount(t *testing.T, username string) (*models.Account, *session.Session) {
	t.Helper()
	account, err := f.store.CreateAccount(context.Background(), username, username+"@example.com", "x")
	require.NoError(t, err)

	sess := &session.Session{Token: session.NewToken(), AccountID: account.ID}
	require.NoError(t, f.sessions.Put(context.Background(), sess))
	return account, sess
}

// newPersona seeds a public persona for the account.
func (f *fixture) newPersona(t *testing.T, ownerID int64, name, category string) *models.Persona {
	t.Helper()
	p, err := f.store.CreatePersona(context.Background(), ownerID, name, category, "", true)
	require.NoError(t, err)
	return p
}

// enter selects the persona as active for the category on the session.
func (f *fixture) enter(t *testing.T, sess *session.Session, category string, personaID int64) {
	t.Helper()
	_, err := f.rooms.Enter(context.Background(), sess, category, personaID)
	require.NoError(t, err)
}
