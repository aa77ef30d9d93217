// Package session provides server-side session state keyed by an opaque
// cookie token. A session carries the authenticated account id and the
// active persona selection; it is never shared across tokens, so writes
// within one session are last-write-wins.
package session

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultTTL is how long an idle session survives.
const DefaultTTL = 24 * time.Hour

// Session is the per-login state the messaging engines consume. Zero
// AccountID means unauthenticated; zero ActivePersonaID means no selection.
type Session struct {
	Token           string `json:"-"`
	AccountID       int64  `json:"account_id"`
	ActivePersonaID int64  `json:"active_persona_id"`
	ActiveCategory  string `json:"active_category"`
}

// Authenticated reports whether the session carries an account.
func (s *Session) Authenticated() bool {
	return s != nil && s.AccountID != 0
}

// ClearSelection drops the active persona without touching the account.
func (s *Session) ClearSelection() {
	s.ActivePersonaID = 0
	s.ActiveCategory = ""
}

// Store persists sessions behind a get/put interface keyed by token.
// Get returns (nil, nil) for an unknown or expired token.
type Store interface {
	Get(ctx context.Context, token string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, token string) error
	Ping(ctx context.Context) error
	Close() error
}

// NewToken generates a fresh session token.
func NewToken() string {
	return ulid.Make().String()
}
