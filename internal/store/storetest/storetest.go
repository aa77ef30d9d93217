// Package storetest provides an in-memory DataStore for engine and
// handler tests. It mirrors the SQL stores' contracts: monotonic ids per
// table, nil for missing rows, ordered listings, and unique-pair
// enforcement on thread creation.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/LeArcanist/personas/internal/models"
	"github.com/LeArcanist/personas/internal/store"
)

// Memory implements store.DataStore in memory.
type Memory struct {
	mu sync.Mutex

	accounts    map[int64]*models.Account
	personas    map[int64]*models.Persona
	roomLog     []models.CategoryMessage
	threads     map[int64]*models.DMThread
	threadLog   []models.DMMessage
	nextAccount int64
	nextPersona int64
	nextRoomMsg int64
	nextThread  int64
	nextDMMsg   int64
}

// New creates an empty in-memory store.
func New() *Memory {
	return &Memory{
		accounts: make(map[int64]*models.Account),
		personas: make(map[int64]*models.Persona),
		threads:  make(map[int64]*models.DMThread),
	}
}

// Close implements store.DataStore.
func (m *Memory) Close() {}

// Ping implements store.DataStore.
func (m *Memory) Ping(ctx context.Context) error { return nil }

// CreateAccount implements store.DataStore.
func (m *Memory) CreateAccount(ctx context.Context, username, email, passwordHash string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextAccount++
	account := &models.Account{
		ID:           m.nextAccount,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	m.accounts[account.ID] = account
	out := *account
	return &out, nil
}

// GetAccountByID implements store.DataStore.
func (m *Memory) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	out := *account
	return &out, nil
}

// GetAccountByUsername implements store.DataStore.
func (m *Memory) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.accounts {
		if account.Username == username {
			out := *account
			return &out, nil
		}
	}
	return nil, nil
}

// CreatePersona implements store.DataStore.
func (m *Memory) CreatePersona(ctx context.Context, ownerID int64, name, category, description string, isPublic bool) (*models.Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextPersona++
	persona := &models.Persona{
		ID:          m.nextPersona,
		OwnerID:     ownerID,
		Name:        name,
		Category:    models.NormalizeCategory(category),
		Description: description,
		IsPublic:    isPublic,
		CreatedAt:   time.Now().UTC(),
	}
	m.personas[persona.ID] = persona
	out := *persona
	return &out, nil
}

// UpdatePersona implements store.DataStore.
func (m *Memory) UpdatePersona(ctx context.Context, p *models.Persona) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.personas[p.ID]
	if !ok {
		return nil
	}
	existing.Name = p.Name
	existing.Category = models.NormalizeCategory(p.Category)
	existing.Description = p.Description
	existing.IsPublic = p.IsPublic
	return nil
}

// GetPersona implements store.DataStore.
func (m *Memory) GetPersona(ctx context.Context, id int64) (*models.Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	persona, ok := m.personas[id]
	if !ok {
		return nil, nil
	}
	out := *persona
	return &out, nil
}

// ListPersonasByOwner implements store.DataStore.
func (m *Memory) ListPersonasByOwner(ctx context.Context, ownerID int64) ([]models.Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var personas []models.Persona
	for _, p := range m.personas {
		if p.OwnerID == ownerID {
			personas = append(personas, *p)
		}
	}
	sort.Slice(personas, func(i, j int) bool {
		if personas[i].Category != personas[j].Category {
			return personas[i].Category < personas[j].Category
		}
		return personas[i].Name < personas[j].Name
	})
	return personas, nil
}

// ListPublicPersonas implements store.DataStore.
func (m *Memory) ListPublicPersonas(ctx context.Context, category string, excludeID int64, limit int) ([]models.Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	category = models.NormalizeCategory(category)
	var personas []models.Persona
	for _, p := range m.personas {
		if p.IsPublic && p.Category == category && p.ID != excludeID {
			personas = append(personas, *p)
		}
	}
	sort.Slice(personas, func(i, j int) bool {
		return personas[i].Name < personas[j].Name
	})
	if len(personas) > limit {
		personas = personas[:limit]
	}
	return personas, nil
}

// HasPersonaNamed implements store.DataStore.
func (m *Memory) HasPersonaNamed(ctx context.Context, ownerID int64, name string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.personas {
		if p.OwnerID == ownerID && p.Name == name && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// InsertCategoryMessage implements store.DataStore.
func (m *Memory) InsertCategoryMessage(ctx context.Context, category string, senderPersonaID int64, content string) (*models.CategoryMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRoomMsg++
	msg := models.CategoryMessage{
		ID:              m.nextRoomMsg,
		Category:        models.NormalizeCategory(category),
		SenderPersonaID: senderPersonaID,
		Content:         content,
		CreatedAt:       time.Now().UTC(),
	}
	m.roomLog = append(m.roomLog, msg)
	out := msg
	return &out, nil
}

// ListRecentCategoryMessages implements store.DataStore.
func (m *Memory) ListRecentCategoryMessages(ctx context.Context, category string, limit int) ([]store.MessageRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	category = models.NormalizeCategory(category)
	var rows []store.MessageRow
	for i := len(m.roomLog) - 1; i >= 0 && len(rows) < limit; i-- {
		msg := m.roomLog[i]
		if msg.Category == category {
			rows = append(rows, m.rowFor(msg.ID, msg.SenderPersonaID, msg.Content, msg.CreatedAt))
		}
	}
	return rows, nil
}

// ListCategoryMessagesAfter implements store.DataStore.
func (m *Memory) ListCategoryMessagesAfter(ctx context.Context, category string, afterID int64, limit int) ([]store.MessageRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	category = models.NormalizeCategory(category)
	var rows []store.MessageRow
	for _, msg := range m.roomLog {
		if msg.Category == category && msg.ID > afterID {
			rows = append(rows, m.rowFor(msg.ID, msg.SenderPersonaID, msg.Content, msg.CreatedAt))
			if len(rows) == limit {
				break
			}
		}
	}
	return rows, nil
}

func (m *Memory) rowFor(id, senderID int64, content string, createdAt time.Time) store.MessageRow {
	name := "Unknown"
	if p, ok := m.personas[senderID]; ok {
		name = p.Name
	}
	return store.MessageRow{
		ID:              id,
		SenderPersonaID: senderID,
		SenderName:      name,
		Content:         content,
		CreatedAt:       createdAt,
	}
}

// FindThread implements store.DataStore, checking both pair orderings.
func (m *Memory) FindThread(ctx context.Context, category string, personaX, personaY int64) (*models.DMThread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findThreadLocked(category, personaX, personaY), nil
}

func (m *Memory) findThreadLocked(category string, personaX, personaY int64) *models.DMThread {
	category = models.NormalizeCategory(category)
	for _, t := range m.threads {
		if t.Category != category {
			continue
		}
		if (t.PersonaAID == personaX && t.PersonaBID == personaY) ||
			(t.PersonaAID == personaY && t.PersonaBID == personaX) {
			out := *t
			return &out
		}
	}
	return nil
}

// CreateThread implements store.DataStore, enforcing pair uniqueness the
// way the SQL unique index does.
func (m *Memory) CreateThread(ctx context.Context, personaA, personaB int64, category string) (*models.DMThread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findThreadLocked(category, personaA, personaB) != nil {
		return nil, store.ErrThreadExists
	}

	m.nextThread++
	thread := &models.DMThread{
		ID:         m.nextThread,
		PersonaAID: personaA,
		PersonaBID: personaB,
		Category:   models.NormalizeCategory(category),
		CreatedAt:  time.Now().UTC(),
	}
	m.threads[thread.ID] = thread
	out := *thread
	return &out, nil
}

// GetThread implements store.DataStore.
func (m *Memory) GetThread(ctx context.Context, id int64) (*models.DMThread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	thread, ok := m.threads[id]
	if !ok {
		return nil, nil
	}
	out := *thread
	return &out, nil
}

// ListThreadsForPersona implements store.DataStore.
func (m *Memory) ListThreadsForPersona(ctx context.Context, personaID int64, limit int) ([]store.ThreadRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rows []store.ThreadRow
	for _, t := range m.threads {
		if !t.HasParticipant(personaID) {
			continue
		}
		name := "Unknown"
		if p, ok := m.personas[t.OtherParticipant(personaID)]; ok {
			name = p.Name
		}
		rows = append(rows, store.ThreadRow{Thread: *t, OtherName: name})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Thread.ID > rows[j].Thread.ID
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// InsertDMMessage implements store.DataStore.
func (m *Memory) InsertDMMessage(ctx context.Context, threadID, senderPersonaID int64, content string) (*models.DMMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextDMMsg++
	msg := models.DMMessage{
		ID:              m.nextDMMsg,
		ThreadID:        threadID,
		SenderPersonaID: senderPersonaID,
		Content:         content,
		CreatedAt:       time.Now().UTC(),
	}
	m.threadLog = append(m.threadLog, msg)
	out := msg
	return &out, nil
}

// ListRecentDMMessages implements store.DataStore.
func (m *Memory) ListRecentDMMessages(ctx context.Context, threadID int64, limit int) ([]store.MessageRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rows []store.MessageRow
	for i := len(m.threadLog) - 1; i >= 0 && len(rows) < limit; i-- {
		msg := m.threadLog[i]
		if msg.ThreadID == threadID {
			rows = append(rows, m.rowFor(msg.ID, msg.SenderPersonaID, msg.Content, msg.CreatedAt))
		}
	}
	return rows, nil
}

// ListDMMessagesAfter implements store.DataStore.
func (m *Memory) ListDMMessagesAfter(ctx context.Context, threadID, afterID int64, limit int) ([]store.MessageRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rows []store.MessageRow
	for _, msg := range m.threadLog {
		if msg.ThreadID == threadID && msg.ID > afterID {
			rows = append(rows, m.rowFor(msg.ID, msg.SenderPersonaID, msg.Content, msg.CreatedAt))
			if len(rows) == limit {
				break
			}
		}
	}
	return rows, nil
}

var _ store.DataStore = (*Memory)(nil)
