package store

import (
	"context"
	"errors"
	"time"

	"github.com/LeArcanist/personas/internal/models"
)

// ErrThreadExists is returned by CreateThread when the canonicalized-pair
// unique index rejects the insert. Callers treat it as "someone else just
// created the thread" and re-fetch.
var ErrThreadExists = errors.New("store: dm thread already exists for pair and category")

// MessageRow is a message joined with its sender's display name, the shape
// every fetch/poll query returns.
type MessageRow struct {
	ID              int64
	SenderPersonaID int64
	SenderName      string
	Content         string
	CreatedAt       time.Time
}

// ThreadRow is a thread joined with the display name of the participant
// other than the querying persona.
type ThreadRow struct {
	Thread    models.DMThread
	OtherName string
}

// DataStore defines the interface for persistent storage of accounts,
// personas, room logs, and DM threads. Both PostgresStore and SQLiteStore
// implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Account operations
	CreateAccount(ctx context.Context, username, email, passwordHash string) (*models.Account, error)
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)

	// Persona operations
	CreatePersona(ctx context.Context, ownerID int64, name, category, description string, isPublic bool) (*models.Persona, error)
	UpdatePersona(ctx context.Context, p *models.Persona) error
	GetPersona(ctx context.Context, id int64) (*models.Persona, error)
	// ListPersonasByOwner returns the account's personas ordered by
	// (category, name) ascending.
	ListPersonasByOwner(ctx context.Context, ownerID int64) ([]models.Persona, error)
	// ListPublicPersonas returns public personas in the category excluding
	// excludeID, ordered by name ascending.
	ListPublicPersonas(ctx context.Context, category string, excludeID int64, limit int) ([]models.Persona, error)
	HasPersonaNamed(ctx context.Context, ownerID int64, name string, excludeID int64) (bool, error)

	// Category room log
	InsertCategoryMessage(ctx context.Context, category string, senderPersonaID int64, content string) (*models.CategoryMessage, error)
	// ListRecentCategoryMessages returns the newest messages first (id
	// descending); callers reverse for chronological display.
	ListRecentCategoryMessages(ctx context.Context, category string, limit int) ([]MessageRow, error)
	// ListCategoryMessagesAfter returns messages with id > afterID in
	// ascending id order, capped at limit.
	ListCategoryMessagesAfter(ctx context.Context, category string, afterID int64, limit int) ([]MessageRow, error)

	// DM threads
	// FindThread matches the unordered pair within a category; both
	// orderings of (personaX, personaY) are checked.
	FindThread(ctx context.Context, category string, personaX, personaY int64) (*models.DMThread, error)
	CreateThread(ctx context.Context, personaA, personaB int64, category string) (*models.DMThread, error)
	GetThread(ctx context.Context, id int64) (*models.DMThread, error)
	// ListThreadsForPersona returns threads where the persona is either
	// participant, thread id descending.
	ListThreadsForPersona(ctx context.Context, personaID int64, limit int) ([]ThreadRow, error)

	// DM thread log
	InsertDMMessage(ctx context.Context, threadID, senderPersonaID int64, content string) (*models.DMMessage, error)
	ListRecentDMMessages(ctx context.Context, threadID int64, limit int) ([]MessageRow, error)
	ListDMMessagesAfter(ctx context.Context, threadID, afterID int64, limit int) ([]MessageRow, error)
}
