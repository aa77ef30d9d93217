// Package auth is the account collaborator the messaging core consumes
// through sessions: it verifies credentials and hands out account ids.
// Everything persona- or message-related lives elsewhere.
package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/LeArcanist/personas/internal/models"
	"github.com/LeArcanist/personas/internal/store"
)

var (
	// ErrInvalidCredentials covers unknown usernames and wrong passwords
	// alike.
	ErrInvalidCredentials = errors.New("auth: invalid username or password")

	// ErrAccountExists means the username or email is already registered.
	ErrAccountExists = errors.New("auth: account already exists")

	// ErrInvalidInput means a registration field failed validation.
	ErrInvalidInput = errors.New("auth: invalid registration input")
)

const minPasswordLen = 8

// Provider authenticates accounts against the data store.
type Provider struct {
	store store.DataStore
}

// NewProvider creates an auth provider backed by the given store.
func NewProvider(ds store.DataStore) *Provider {
	return &Provider{store: ds}
}

// Register creates an account with a bcrypt password hash.
func (p *Provider) Register(ctx context.Context, username, email, password string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" || email == "" || len(password) < minPasswordLen {
		return nil, ErrInvalidInput
	}

	existing, err := p.store.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAccountExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account, err := p.store.CreateAccount(ctx, username, email, string(hash))
	if err != nil {
		// A concurrent registration can still win the unique constraint.
		return nil, ErrAccountExists
	}
	return account, nil
}

// Login verifies credentials and returns the account.
func (p *Provider) Login(ctx context.Context, username, password string) (*models.Account, error) {
	account, err := p.store.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}
