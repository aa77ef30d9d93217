package chat

import (
	"context"

	"github.com/LeArcanist/personas/internal/models"
	"github.com/LeArcanist/personas/internal/session"
	"github.com/LeArcanist/personas/internal/store"
)

// Resolver validates a session's active-persona selection against the
// persona directory. A selection that no longer holds (persona gone, owner
// changed, category mismatch) is treated as absent rather than an error,
// degrading the session back to account-only on the next access.
type Resolver struct {
	store store.DataStore
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(ds store.DataStore) *Resolver {
	return &Resolver{store: ds}
}

// ResolveActive returns the session's active persona, valid for
// requiredCategory. Fails closed with ErrUnauthenticated when the session
// has no account, and ErrNoActivePersona when the selection is absent or
// stale.
func (r *Resolver) ResolveActive(ctx context.Context, sess *session.Session, requiredCategory string) (*models.Persona, error) {
	persona, err := r.resolveOwned(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !persona.InCategory(requiredCategory) {
		return nil, ErrNoActivePersona
	}
	return persona, nil
}

// ResolveAny returns the session's active persona regardless of category.
// DM access is not category-gated beyond what thread creation enforced.
func (r *Resolver) ResolveAny(ctx context.Context, sess *session.Session) (*models.Persona, error) {
	return r.resolveOwned(ctx, sess)
}

func (r *Resolver) resolveOwned(ctx context.Context, sess *session.Session) (*models.Persona, error) {
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if sess.ActivePersonaID == 0 {
		return nil, ErrNoActivePersona
	}

	persona, err := r.store.GetPersona(ctx, sess.ActivePersonaID)
	if err != nil {
		return nil, err
	}
	if persona == nil || persona.OwnerID != sess.AccountID {
		return nil, ErrNoActivePersona
	}
	return persona, nil
}

// Select validates and records an active-persona selection on the session.
// The persona must exist, belong to the session's account, and live in the
// submitted category (normalized on both sides). On any validation failure
// the prior selection is left untouched and ErrValidation is returned.
// The caller persists the mutated session.
func (r *Resolver) Select(ctx context.Context, sess *session.Session, category string, personaID int64) error {
	if !sess.Authenticated() {
		return ErrUnauthenticated
	}

	persona, err := r.store.GetPersona(ctx, personaID)
	if err != nil {
		return err
	}
	if persona == nil || persona.OwnerID != sess.AccountID {
		return ErrValidation
	}
	if !persona.InCategory(category) {
		return ErrValidation
	}

	sess.ActivePersonaID = persona.ID
	sess.ActiveCategory = models.NormalizeCategory(category)
	return nil
}
