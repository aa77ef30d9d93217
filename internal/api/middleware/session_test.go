package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeArcanist/personas/internal/session"
)

func TestSessionLoader(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	loader := NewSessionLoader(store, "personas_session", zerolog.Nop())

	capture := func(dst **session.Session) http.Handler {
		return loader.Load(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*dst = SessionFromContext(r.Context())
		}))
	}

	t.Run("no cookie yields an empty session", func(t *testing.T) {
		var got *session.Session
		capture(&got).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotNil(t, got)
		assert.False(t, got.Authenticated())
	})

	t.Run("issue then load restores the session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		sess := &session.Session{AccountID: 12, ActivePersonaID: 4, ActiveCategory: "gaming"}
		require.NoError(t, loader.Issue(rec, httptest.NewRequest(http.MethodPost, "/login", nil), sess))
		require.NotEmpty(t, sess.Token)

		cookies := rec.Result().Cookies()
		require.NotEmpty(t, cookies)
		assert.True(t, cookies[0].HttpOnly)

		req := httptest.NewRequest(http.MethodGet, "/chats", nil)
		req.AddCookie(cookies[0])
		var got *session.Session
		capture(&got).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, int64(12), got.AccountID)
		assert.Equal(t, int64(4), got.ActivePersonaID)
		assert.Equal(t, "gaming", got.ActiveCategory)
	})

	t.Run("stale token yields an empty session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/chats", nil)
		req.AddCookie(&http.Cookie{Name: "personas_session", Value: "gone"})
		var got *session.Session
		capture(&got).ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, got)
		assert.False(t, got.Authenticated())
	})

	t.Run("destroy expires the cookie and deletes the session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		sess := &session.Session{AccountID: 30}
		require.NoError(t, loader.Issue(rec, httptest.NewRequest(http.MethodPost, "/login", nil), sess))

		rec2 := httptest.NewRecorder()
		loader.Destroy(rec2, httptest.NewRequest(http.MethodGet, "/logout", nil), sess)

		cookies := rec2.Result().Cookies()
		require.NotEmpty(t, cookies)
		assert.Negative(t, cookies[0].MaxAge)

		stored, err := store.Get(context.Background(), sess.Token)
		require.NoError(t, err)
		assert.Nil(t, stored)
	})
}
