package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeArcanist/personas/internal/session"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionLoader resolves the session cookie on every request and attaches
// the session to the request context. Requests without a cookie (or with a
// stale token) carry a fresh unauthenticated session; handlers decide what
// that means for them.
type SessionLoader struct {
	sessions   session.Store
	cookieName string
	logger     zerolog.Logger
}

// NewSessionLoader creates the session middleware.
func NewSessionLoader(sessions session.Store, cookieName string, logger zerolog.Logger) *SessionLoader {
	return &SessionLoader{
		sessions:   sessions,
		cookieName: cookieName,
		logger:     logger,
	}
}

// Load is the middleware handler.
func (m *SessionLoader) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := &session.Session{}

		if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
			stored, err := m.sessions.Get(r.Context(), cookie.Value)
			if err != nil {
				m.logger.Error().Err(err).Msg("session lookup failed")
			} else if stored != nil {
				sess = stored
			}
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Issue stores the session and sets its cookie on the response.
func (m *SessionLoader) Issue(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	if sess.Token == "" {
		sess.Token = session.NewToken()
	}
	if err := m.sessions.Put(r.Context(), sess); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Destroy deletes the session and expires its cookie.
func (m *SessionLoader) Destroy(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess.Token != "" {
		if err := m.sessions.Delete(r.Context(), sess.Token); err != nil {
			m.logger.Error().Err(err).Msg("session delete failed")
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// Save persists mutations handlers made to the request's session.
func (m *SessionLoader) Save(r *http.Request, sess *session.Session) error {
	if sess.Token == "" {
		return nil // never issued; nothing to persist
	}
	return m.sessions.Put(r.Context(), sess)
}

// SessionFromContext retrieves the request's session. The session
// middleware guarantees one is always present.
func SessionFromContext(ctx context.Context) *session.Session {
	sess, ok := ctx.Value(sessionContextKey).(*session.Session)
	if !ok {
		return &session.Session{}
	}
	return sess
}
