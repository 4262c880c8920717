package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"campus-assistant/internal/domain"
)

// SQLiteStore is a file-backed memory store for local runs. It mirrors the
// DynamoDB layout: one context row per user plus turn rows keyed by session.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLite opens or creates the database at path.
func NewSQLite(path string, ttl time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("repository: sqlite path must not be empty")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("repository: create db dir: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open sqlite: %w", err)
	}
	// One writer keeps WAL contention out of the REPL.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, ttl: ttl, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS memory (
	user_id    TEXT NOT NULL,
	memory_key TEXT NOT NULL,
	session_id TEXT,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, memory_key)
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("repository: init schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the unexpired attribute snapshot, or nil.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (domain.SessionAttributes, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM memory WHERE user_id = ? AND memory_key = ? AND expires_at > ?`,
		userID, contextKey, s.now().Unix(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: Get: %w", err)
	}
	attrs, err := decodeAttrs(data)
	if err != nil {
		return nil, fmt.Errorf("repository: Get: %w", err)
	}
	return attrs, nil
}

func (s *SQLiteStore) Put(ctx context.Context, userID string, attrs domain.SessionAttributes) error {
	data, err := encodeAttrs(attrs)
	if err != nil {
		return fmt.Errorf("repository: Put: %w", err)
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO memory (user_id, memory_key, data, updated_at, expires_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(user_id, memory_key) DO UPDATE SET
	data = excluded.data,
	updated_at = excluded.updated_at,
	expires_at = excluded.expires_at`,
		userID, contextKey, data, now.Unix(), now.Add(s.ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("repository: Put: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, userID, sessionID string, rec domain.TurnRecord) error {
	rec, ts := prepareTurn(rec, sessionID, s.now)
	data, err := encodeTurn(rec)
	if err != nil {
		return fmt.Errorf("repository: AppendTurn: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO memory (user_id, memory_key, session_id, data, updated_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		userID, turnKey(sessionID, ts, rec.TurnID), sessionID, data, ts.Unix(), ts.Add(s.ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("repository: AppendTurn: %w", err)
	}
	return nil
}

// QueryRecentTurns returns unexpired turns of the session, most recent first.
func (s *SQLiteStore) QueryRecentTurns(ctx context.Context, userID, sessionID string, limit int) ([]domain.TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT data FROM memory
WHERE user_id = ? AND substr(memory_key, 1, ?) = ? AND expires_at > ?
ORDER BY memory_key DESC
LIMIT ?`,
		userID, len(sessionPrefix(sessionID)), sessionPrefix(sessionID), s.now().Unix(), clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("repository: QueryRecentTurns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []domain.TurnRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("repository: QueryRecentTurns: %w", err)
		}
		rec, err := decodeTurn(data)
		if err != nil {
			return nil, fmt.Errorf("repository: QueryRecentTurns: %w", err)
		}
		turns = append(turns, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: QueryRecentTurns: %w", err)
	}
	return turns, nil
}
