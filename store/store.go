// Package store persists mapping tables in SQLite so a redaction performed
// in one process can be restored later in another. Each saved mapping gets
// a UUID session ID; the session is the caller's handle for restore.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Xaisr/redactor"
	redactorotel "github.com/Xaisr/redactor/internal/otel"
)

var tracer = redactorotel.Tracer("github.com/Xaisr/redactor/store")

// ErrNotFound is returned when a session ID has no stored mapping.
var ErrNotFound = errors.New("session not found")

// Store persists redaction sessions in SQLite.
type Store struct {
	db *sql.DB
}

// Session is a stored mapping with its metadata.
type Session struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Entries   int               `json:"entries"`
	Mapping   *redactor.Mapping `json:"mapping"`
}

// New opens (creating if needed) the session database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		entry_count INTEGER NOT NULL,
		mapping TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sessions schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Save stores a mapping and returns its new session ID.
func (s *Store) Save(ctx context.Context, mapping *redactor.Mapping) (string, error) {
	ctx, span := tracer.Start(ctx, "store.save")
	defer span.End()

	id := uuid.NewString()
	payload, err := json.Marshal(mapping)
	if err != nil {
		return "", fmt.Errorf("encoding mapping: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, entry_count, mapping) VALUES (?, ?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339Nano), mapping.Len(), string(payload),
	)
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}

	span.SetAttributes(
		attribute.String("session.id", id),
		attribute.Int("session.entries", mapping.Len()),
	)
	log.Debug().Str("session_id", id).Int("entries", mapping.Len()).Msg("session saved")

	return id, nil
}

// Load returns the stored session for id, or ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "store.load")
	defer span.End()

	var createdAt, payload string
	var entries int
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, entry_count, mapping FROM sessions WHERE id = ?`, id,
	).Scan(&createdAt, &entries, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session %s: %w", id, err)
	}

	mapping := redactor.NewMapping()
	if err := json.Unmarshal([]byte(payload), mapping); err != nil {
		return nil, fmt.Errorf("decoding mapping for session %s: %w", id, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at for session %s: %w", id, err)
	}

	span.SetAttributes(attribute.String("session.id", id))
	return &Session{ID: id, CreatedAt: ts, Entries: entries, Mapping: mapping}, nil
}

// Delete removes a stored session. Deleting an unknown ID is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// PurgeOlderThan removes sessions created before the cutoff and returns the
// number removed.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE created_at < ?`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("purged", n).Time("cutoff", cutoff).Msg("purged expired sessions")
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
