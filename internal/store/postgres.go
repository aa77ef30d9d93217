package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"github.com/LeArcanist/personas/internal/models"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const pgUniqueViolation = "23505"

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool
// and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		return nil, pkgerrors.Wrap(err, "init postgres schema")
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS personas (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		owner_id BIGINT NOT NULL REFERENCES accounts(id),
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'other',
		description TEXT NOT NULL DEFAULT '',
		is_public BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS category_messages (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		category TEXT NOT NULL,
		sender_persona_id BIGINT NOT NULL REFERENCES personas(id),
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS dm_threads (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		persona_a_id BIGINT NOT NULL REFERENCES personas(id),
		persona_b_id BIGINT NOT NULL REFERENCES personas(id),
		category TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (persona_a_id <> persona_b_id)
	);

	CREATE TABLE IF NOT EXISTS dm_messages (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		thread_id BIGINT NOT NULL REFERENCES dm_threads(id),
		sender_persona_id BIGINT NOT NULL REFERENCES personas(id),
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
		ON dm_threads(LEAST(persona_a_id, persona_b_id), GREATEST(persona_a_id, persona_b_id), category);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateAccount creates a new account record.
func (s *PostgresStore) CreateAccount(ctx context.Context, username, email, passwordHash string) (*models.Account, error) {
	account := &models.Account{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, email, password_hash, created_at
	`, username, email, passwordHash).Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccountByID retrieves an account by ID.
func (s *PostgresStore) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM accounts WHERE id = $1
	`, id))
}

// GetAccountByUsername retrieves an account by username.
func (s *PostgresStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM accounts WHERE username = $1
	`, username))
}

func (s *PostgresStore) scanAccount(row pgx.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

// CreatePersona creates a new persona owned by the account.
func (s *PostgresStore) CreatePersona(ctx context.Context, ownerID int64, name, category, description string, isPublic bool) (*models.Persona, error) {
	persona := &models.Persona{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO personas (owner_id, name, category, description, is_public)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, owner_id, name, category, description, is_public, created_at
	`, ownerID, name, models.NormalizeCategory(category), description, isPublic).Scan(
		&persona.ID,
		&persona.OwnerID,
		&persona.Name,
		&persona.Category,
		&persona.Description,
		&persona.IsPublic,
		&persona.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return persona, nil
}

// UpdatePersona saves mutable persona fields. OwnerID is never updated.
func (s *PostgresStore) UpdatePersona(ctx context.Context, p *models.Persona) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE personas
		SET name = $1, category = $2, description = $3, is_public = $4
		WHERE id = $5
	`, p.Name, models.NormalizeCategory(p.Category), p.Description, p.IsPublic, p.ID)
	return err
}

// GetPersona retrieves a persona by ID.
func (s *PostgresStore) GetPersona(ctx context.Context, id int64) (*models.Persona, error) {
	persona := &models.Persona{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, category, description, is_public, created_at
		FROM personas WHERE id = $1
	`, id).Scan(
		&persona.ID,
		&persona.OwnerID,
		&persona.Name,
		&persona.Category,
		&persona.Description,
		&persona.IsPublic,
		&persona.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return persona, nil
}

// ListPersonasByOwner retrieves an account's personas ordered by (category, name).
func (s *PostgresStore) ListPersonasByOwner(ctx context.Context, ownerID int64) ([]models.Persona, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, category, description, is_public, created_at
		FROM personas
		WHERE owner_id = $1
		ORDER BY category ASC, name ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPgPersonas(rows)
}

// ListPublicPersonas retrieves public personas in a category, excluding one.
func (s *PostgresStore) ListPublicPersonas(ctx context.Context, category string, excludeID int64, limit int) ([]models.Persona, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, category, description, is_public, created_at
		FROM personas
		WHERE category = $1 AND is_public = TRUE AND id != $2
		ORDER BY name ASC
		LIMIT $3
	`, models.NormalizeCategory(category), excludeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPgPersonas(rows)
}

func scanPgPersonas(rows pgx.Rows) ([]models.Persona, error) {
	var personas []models.Persona
	for rows.Next() {
		var p models.Persona
		err := rows.Scan(
			&p.ID,
			&p.OwnerID,
			&p.Name,
			&p.Category,
			&p.Description,
			&p.IsPublic,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

// HasPersonaNamed reports whether the account already has another persona
// with the given name.
func (s *PostgresStore) HasPersonaNamed(ctx context.Context, ownerID int64, name string, excludeID int64) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM personas
		WHERE owner_id = $1 AND name = $2 AND id != $3
	`, ownerID, name, excludeID).Scan(&count)
	return count > 0, err
}

// InsertCategoryMessage appends a message to a category room's log.
// The identity column supplies the monotonic message id under a
// transactional insert, so ordering holds across service instances.
func (s *PostgresStore) InsertCategoryMessage(ctx context.Context, category string, senderPersonaID int64, content string) (*models.CategoryMessage, error) {
	msg := &models.CategoryMessage{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO category_messages (category, sender_persona_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, category, sender_persona_id, content, created_at
	`, models.NormalizeCategory(category), senderPersonaID, content).Scan(
		&msg.ID,
		&msg.Category,
		&msg.SenderPersonaID,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListRecentCategoryMessages retrieves the newest messages in a category,
// id descending.
func (s *PostgresStore) ListRecentCategoryMessages(ctx context.Context, category string, limit int) ([]MessageRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.sender_persona_id, p.name, m.content, m.created_at
		FROM category_messages m
		JOIN personas p ON p.id = m.sender_persona_id
		WHERE m.category = $1
		ORDER BY m.id DESC
		LIMIT $2
	`, models.NormalizeCategory(category), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPgMessageRows(rows)
}

// ListCategoryMessagesAfter retrieves messages with id > afterID, ascending.
func (s *PostgresStore) ListCategoryMessagesAfter(ctx context.Context, category string, afterID int64, limit int) ([]MessageRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.sender_persona_id, p.name, m.content, m.created_at
		FROM category_messages m
		JOIN personas p ON p.id = m.sender_persona_id
		WHERE m.category = $1 AND m.id > $2
		ORDER BY m.id ASC
		LIMIT $3
	`, models.NormalizeCategory(category), afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPgMessageRows(rows)
}

func scanPgMessageRows(rows pgx.Rows) ([]MessageRow, error) {
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
// category, checking both column orderings.
func (s *PostgresStore) FindThread(ctx context.Context, category string, personaX, personaY int64) (*models.DMThread, error) {
	return s.scanThread(s.pool.QueryRow(ctx, `
		SELECT id, persona_a_id, persona_b_id, category, created_at
		FROM dm_threads
		WHERE category = $1
		  AND ((persona_a_id = $2 AND persona_b_id = $3) OR (persona_a_id = $3 AND persona_b_id = $2))
	`, models.NormalizeCategory(category), personaX, personaY))
}

// CreateThread inserts a new thread row. Returns ErrThreadExists when the
// pair unique index rejects the insert.
func (s *PostgresStore) CreateThread(ctx context.Context, personaA, personaB int64, category string) (*models.DMThread, error) {
	thread := &models.DMThread{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO dm_threads (persona_a_id, persona_b_id, category)
		VALUES ($1, $2, $3)
		RETURNING id, persona_a_id, persona_b_id, category, created_at
	`, personaA, personaB, models.NormalizeCategory(category)).Scan(
		&thread.ID,
		&thread.PersonaAID,
		&thread.PersonaBID,
		&thread.Category,
		&thread.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrThreadExists
		}
		return nil, err
	}
	return thread, nil
}

// GetThread retrieves a thread by ID.
func (s *PostgresStore) GetThread(ctx context.Context, id int64) (*models.DMThread, error) {
	return s.scanThread(s.pool.QueryRow(ctx, `
		SELECT id, persona_a_id, persona_b_id, category, created_at
		FROM dm_threads WHERE id = $1
	`, id))
}

func (s *PostgresStore) scanThread(row pgx.Row) (*models.DMThread, error) {
	thread := &models.DMThread{}
	err := row.Scan(
		&thread.ID,
		&thread.PersonaAID,
		&thread.PersonaBID,
		&thread.Category,
		&thread.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return thread, nil
}

// ListThreadsForPersona retrieves threads where the persona is either
// participant, newest thread first, with the other participant's name.
func (s *PostgresStore) ListThreadsForPersona(ctx context.Context, personaID int64, limit int) ([]ThreadRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.persona_a_id, t.persona_b_id, t.category, t.created_at,
		       COALESCE(p.name, 'Unknown')
		FROM dm_threads t
		LEFT JOIN personas p
		       ON p.id = CASE WHEN t.persona_a_id = $1 THEN t.persona_b_id ELSE t.persona_a_id END
		WHERE t.persona_a_id = $1 OR t.persona_b_id = $1
		ORDER BY t.id DESC
		LIMIT $2
	`, personaID, limit)
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
func (s *PostgresStore) InsertDMMessage(ctx context.Context, threadID, senderPersonaID int64, content string) (*models.DMMessage, error) {
	msg := &models.DMMessage{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO dm_messages (thread_id, sender_persona_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, thread_id, sender_persona_id, content, created_at
	`, threadID, senderPersonaID, content).Scan(
		&msg.ID,
		&msg.ThreadID,
		&msg.SenderPersonaID,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListRecentDMMessages retrieves the newest messages in a thread, id descending.
func (s *PostgresStore) ListRecentDMMessages(ctx context.Context, threadID int64, limit int) ([]MessageRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.sender_persona_id, p.name, m.content, m.created_at
		FROM dm_messages m
		JOIN personas p ON p.id = m.sender_persona_id
		WHERE m.thread_id = $1
		ORDER BY m.id DESC
		LIMIT $2
	`, threadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPgMessageRows(rows)
}

// ListDMMessagesAfter retrieves thread messages with id > afterID, ascending.
func (s *PostgresStore) ListDMMessagesAfter(ctx context.Context, threadID, afterID int64, limit int) ([]MessageRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.sender_persona_id, p.name, m.content, m.created_at
		FROM dm_messages m
		JOIN personas p ON p.id = m.sender_persona_id
		WHERE m.thread_id = $1 AND m.id > $2
		ORDER BY m.id ASC
		LIMIT $3
	`, threadID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPgMessageRows(rows)
}
