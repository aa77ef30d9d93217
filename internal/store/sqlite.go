package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"

	"github.com/LeArcanist/personas/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/personas.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/personas.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, pkgerrors.Wrap(err, "init sqlite schema")
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS personas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL REFERENCES accounts(id),
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'other',
		description TEXT NOT NULL DEFAULT '',
		is_public INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS category_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category TEXT NOT NULL,
		sender_persona_id INTEGER NOT NULL REFERENCES personas(id),
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS dm_threads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		persona_a_id INTEGER NOT NULL REFERENCES personas(id),
		persona_b_id INTEGER NOT NULL REFERENCES personas(id),
		category TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK (persona_a_id <> persona_b_id)
	);

	CREATE TABLE IF NOT EXISTS dm_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		thread_id INTEGER NOT NULL REFERENCES dm_threads(id),
		sender_persona_id INTEGER NOT NULL REFERENCES personas(id),
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_personas_owner ON personas(owner_id, category, name);
	CREATE INDEX IF NOT EXISTS idx_personas_category_public ON personas(category, is_public, name);
	CREATE INDEX IF NOT EXISTS idx_category_messages_category ON category_messages(category, id);
	CREATE INDEX IF NOT EXISTS idx_dm_messages_thread ON dm_messages(thread_id, id);
	CREATE INDEX IF NOT EXISTS idx_dm_threads_a ON dm_threads(persona_a_id);
	CREATE INDEX IF NOT EXISTS idx_dm_threads_b ON dm_threads(persona_b_id);

	-- One thread per unordered pair per category, enforced at the storage
	-- layer so concurrent start-or-resume requests cannot both insert.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_dm_threads_pair
		ON dm_threads(MIN(persona_a_id, persona_b_id), MAX(persona_a_id, persona_b_id), category);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateAccount creates a new account record.
func (s *SQLiteStore) CreateAccount(ctx context.Context, username, email, passwordHash string) (*models.Account, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, username, email, passwordHash, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Account{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

// GetAccountByID retrieves an account by ID.
func (s *SQLiteStore) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM accounts WHERE id = ?
	`, id))
}

// GetAccountByUsername retrieves an account by username.
func (s *SQLiteStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM accounts WHERE username = ?
	`, username))
}

func (s *SQLiteStore) scanAccount(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

// CreatePersona creates a new persona owned by the account.
func (s *SQLiteStore) CreatePersona(ctx context.Context, ownerID int64, name, category, description string, isPublic bool) (*models.Persona, error) {
	now := time.Now().UTC()
	category = models.NormalizeCategory(category)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO personas (owner_id, name, category, description, is_public, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ownerID, name, category, description, boolToInt(isPublic), now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Persona{
		ID:          id,
		OwnerID:     ownerID,
		Name:        name,
		Category:    category,
		Description: description,
		IsPublic:    isPublic,
		CreatedAt:   now,
	}, nil
}

// UpdatePersona saves mutable persona fields. OwnerID is never updated.
func (s *SQLiteStore) UpdatePersona(ctx context.Context, p *models.Persona) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE personas
		SET name = ?, category = ?, description = ?, is_public = ?
		WHERE id = ?
	`, p.Name, models.NormalizeCategory(p.Category), p.Description, boolToInt(p.IsPublic), p.ID)
	return err
}

// GetPersona retrieves a persona by ID.
func (s *SQLiteStore) GetPersona(ctx context.Context, id int64) (*models.Persona, error) {
	persona := &models.Persona{}
	var isPublicInt int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, category, description, is_public, created_at
		FROM personas WHERE id = ?
	`, id).Scan(
		&persona.ID,
		&persona.OwnerID,
		&persona.Name,
		&persona.Category,
		&persona.Description,
		&isPublicInt,
		&persona.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	persona.IsPublic = isPublicInt == 1
	return persona, nil
}

// ListPersonasByOwner retrieves an account's personas ordered by (category, name).
func (s *SQLiteStore) ListPersonasByOwner(ctx context.Context, ownerID int64) ([]models.Persona, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, name, category, description, is_public, created_at
		FROM personas
		WHERE owner_id = ?
		ORDER BY category ASC, name ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPersonas(rows)
}

// ListPublicPersonas retrieves public personas in a category, excluding one.
func (s *SQLiteStore) ListPublicPersonas(ctx context.Context, category string, excludeID int64, limit int) ([]models.Persona, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, name, category, description, is_public, created_at
		FROM personas
		WHERE category = ? AND is_public = 1 AND id != ?
		ORDER BY name ASC
		LIMIT ?
	`, models.NormalizeCategory(category), excludeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPersonas(rows)
}

func scanPersonas(rows *sql.Rows) ([]models.Persona, error) {
	var personas []models.Persona
	for rows.Next() {
		var p models.Persona
		var isPublicInt int
		err := rows.Scan(
			&p.ID,
			&p.OwnerID,
			&p.Name,
			&p.Category,
			&p.Description,
			&isPublicInt,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		p.IsPublic = isPublicInt == 1
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

// HasPersonaNamed reports whether the account already has another persona
// with the given name.
func (s *SQLiteStore) HasPersonaNamed(ctx context.Context, ownerID int64, name string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM personas
		WHERE owner_id = ? AND name = ? AND id != ?
	`, ownerID, name, excludeID).Scan(&count)
	return count > 0, err
}

// InsertCategoryMessage appends a message to a category room's log.
// The auto-increment primary key supplies the monotonic message id.
func (s *SQLiteStore) InsertCategoryMessage(ctx context.Context, category string, senderPersonaID int64, content string) (*models.CategoryMessage, error) {
	now := time.Now().UTC()
	category = models.NormalizeCategory(category)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO category_messages (category, sender_persona_id, content, created_at)
		VALUES (?, ?, ?, ?)
	`, category, senderPersonaID, content, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.CategoryMessage{
		ID:              id,
		Category:        category,
		SenderPersonaID: senderPersonaID,
		Content:         content,
		CreatedAt:       now,
	}, nil
}

// ListRecentCategoryMessages retrieves the newest messages in a category,
// id descending.
func (s *SQLiteStore) ListRecentCategoryMessages(ctx context.Context, category string, limit int) ([]MessageRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.sender_persona_id, p.name, m.content, m.created_at
		FROM category_messages m
		JOIN personas p ON p.id = m.sender_persona_id
		WHERE m.category = ?
		ORDER BY m.id DESC
		LIMIT ?
	`, models.NormalizeCategory(category), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRows(rows)
}

// ListCategoryMessagesAfter retrieves messages with id > afterID, ascending.
func (s *SQLiteStore) ListCategoryMessagesAfter(ctx context.Context, category string, afterID int64, limit int) ([]MessageRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.sender_persona_id, p.name, m.content, m.created_at
		FROM category_messages m
		JOIN personas p ON p.id = m.sender_persona_id
		WHERE m.category = ? AND m.id > ?
		ORDER BY m.id ASC
		LIMIT ?
	`, models.NormalizeCategory(category), afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRows(rows)
}

func scanMessageRows(rows *sql.Rows) ([]MessageRow, error) {
	var messages []MessageRow
	for rows.Next() {
		var m MessageRow
		err := rows.Scan(
			&m.ID,
			&m.SenderPersonaID,
			&m.SenderName,
			&m.Content,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// FindThread looks up the thread for an unordered persona pair in a
// category. Both column orderings are checked since the persisted row
// records whichever persona happened to initiate.
func (s *SQLiteStore) FindThread(ctx context.Context, category string, personaX, personaY int64) (*models.DMThread, error) {
	return s.scanThread(s.db.QueryRowContext(ctx, `
		SELECT id, persona_a_id, persona_b_id, category, created_at
		FROM dm_threads
		WHERE category = ?
		  AND ((persona_a_id = ? AND persona_b_id = ?) OR (persona_a_id = ? AND persona_b_id = ?))
	`, models.NormalizeCategory(category), personaX, personaY, personaY, personaX))
}

// CreateThread inserts a new thread row. Returns ErrThreadExists when the
// pair unique index rejects the insert.
func (s *SQLiteStore) CreateThread(ctx context.Context, personaA, personaB int64, category string) (*models.DMThread, error) {
	now := time.Now().UTC()
	category = models.NormalizeCategory(category)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO dm_threads (persona_a_id, persona_b_id, category, created_at)
		VALUES (?, ?, ?, ?)
	`, personaA, personaB, category, now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrThreadExists
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.DMThread{
		ID:         id,
		PersonaAID: personaA,
		PersonaBID: personaB,
		Category:   category,
		CreatedAt:  now,
	}, nil
}

// GetThread retrieves a thread by ID.
func (s *SQLiteStore) GetThread(ctx context.Context, id int64) (*models.DMThread, error) {
	return s.scanThread(s.db.QueryRowContext(ctx, `
		SELECT id, persona_a_id, persona_b_id, category, created_at
		FROM dm_threads WHERE id = ?
	`, id))
}

func (s *SQLiteStore) scanThread(row *sql.Row) (*models.DMThread, error) {
	thread := &models.DMThread{}
	err := row.Scan(
		&thread.ID,
		&thread.PersonaAID,
		&thread.PersonaBID,
		&thread.Category,
		&thread.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return thread, nil
}

// ListThreadsForPersona retrieves threads where the persona is either
// participant, newest thread first, with the other participant's name.
func (s *SQLiteStore) ListThreadsForPersona(ctx context.Context, personaID int64, limit int) ([]ThreadRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.persona_a_id, t.persona_b_id, t.category, t.created_at,
		       COALESCE(p.name, 'Unknown')
		FROM dm_threads t
		LEFT JOIN personas p
		       ON p.id = CASE WHEN t.persona_a_id = ? THEN t.persona_b_id ELSE t.persona_a_id END
		WHERE t.persona_a_id = ? OR t.persona_b_id = ?
		ORDER BY t.id DESC
		LIMIT ?
	`, personaID, personaID, personaID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []ThreadRow
	for rows.Next() {
		var tr ThreadRow
		err := rows.Scan(
			&tr.Thread.ID,
			&tr.Thread.PersonaAID,
			&tr.Thread.PersonaBID,
			&tr.Thread.Category,
			&tr.Thread.CreatedAt,
			&tr.OtherName,
		)
		if err != nil {
			return nil, err
		}
		threads = append(threads, tr)
	}
	return threads, rows.Err()
}

// InsertDMMessage appends a message to a thread's log.
func (s *SQLiteStore) InsertDMMessage(ctx context.Context, threadID, senderPersonaID int64, content string) (*models.DMMessage, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO dm_messages (thread_id, sender_persona_id, content, created_at)
		VALUES (?, ?, ?, ?)
	`, threadID, senderPersonaID, content, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.DMMessage{
		ID:              id,
		ThreadID:        threadID,
		SenderPersonaID: senderPersonaID,
		Content:         content,
		CreatedAt:       now,
	}, nil
}

// ListRecentDMMessages retrieves the newest messages in a thread, id descending.
func (s *SQLiteStore) ListRecentDMMessages(ctx context.Context, threadID int64, limit int) ([]MessageRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.sender_persona_id, p.name, m.content, m.created_at
		FROM dm_messages m
		JOIN personas p ON p.id = m.sender_persona_id
		WHERE m.thread_id = ?
		ORDER BY m.id DESC
		LIMIT ?
	`, threadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRows(rows)
}

// ListDMMessagesAfter retrieves thread messages with id > afterID, ascending.
func (s *SQLiteStore) ListDMMessagesAfter(ctx context.Context, threadID, afterID int64, limit int) ([]MessageRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.sender_persona_id, p.name, m.content, m.created_at
		FROM dm_messages m
		JOIN personas p ON p.id = m.sender_persona_id
		WHERE m.thread_id = ? AND m.id > ?
		ORDER BY m.id ASC
		LIMIT ?
	`, threadID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRows(rows)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
