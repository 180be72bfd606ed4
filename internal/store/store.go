// Package store persists per-server conversation snapshots and system
// prompts in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arin/lmchat/internal/ai"
	"github.com/arin/lmchat/internal/conversation"
)

// FileName is the database file inside the config directory.
const FileName = "lmchat.db"

// Blobs are stored as the JSON the conversation package encodes, so the
// database never needs to understand them.
const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    endpoint TEXT PRIMARY KEY,
    conversation TEXT,
    system TEXT,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_snapshots_updated_at ON snapshots(updated_at DESC);
`

// Store is a SQLite-backed snapshot store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// key normalises endpoint so "localhost:1234/" and "http://localhost:1234"
// share a row.
func key(endpoint string) string {
	if u, err := ai.NormalizeBaseURL(endpoint); err == nil {
		return ai.TrimBase(u)
	}
	return ai.TrimBase(endpoint)
}

// LoadSnapshot returns the saved transcript for endpoint. A missing row or
// an unreadable blob yields an empty snapshot.
func (s *Store) LoadSnapshot(ctx context.Context, endpoint string) (conversation.Snapshot, error) {
	blob, err := s.column(ctx, "conversation", endpoint)
	if err != nil {
		return conversation.Snapshot{}, err
	}
	return conversation.DecodeSnapshot(blob), nil
}

// SaveSnapshot replaces the saved transcript for endpoint.
func (s *Store) SaveSnapshot(ctx context.Context, endpoint string, snap conversation.Snapshot) error {
	blob, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (endpoint, conversation, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET conversation = excluded.conversation, updated_at = excluded.updated_at`,
		key(endpoint), string(blob), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSystem returns the saved system prompt for endpoint, or "".
func (s *Store) LoadSystem(ctx context.Context, endpoint string) (string, error) {
	blob, err := s.column(ctx, "system", endpoint)
	if err != nil {
		return "", err
	}
	return conversation.DecodeSystem(blob), nil
}

// SaveSystem replaces the saved system prompt for endpoint.
func (s *Store) SaveSystem(ctx context.Context, endpoint, system string) error {
	blob, err := conversation.EncodeSystem(system)
	if err != nil {
		return fmt.Errorf("encode system prompt: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (endpoint, system, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET system = excluded.system, updated_at = excluded.updated_at`,
		key(endpoint), string(blob), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save system prompt: %w", err)
	}
	return nil
}

// Delete forgets everything saved for endpoint.
func (s *Store) Delete(ctx context.Context, endpoint string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE endpoint = ?`, key(endpoint)); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Endpoints lists endpoints with saved data, most recently updated first.
func (s *Store) Endpoints(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT endpoint FROM snapshots ORDER BY updated_at DESC, endpoint`)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// column reads one blob column; the column name is never user input.
func (s *Store) column(ctx context.Context, col, endpoint string) ([]byte, error) {
	var v sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT `+col+` FROM snapshots WHERE endpoint = ?`, key(endpoint)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", col, err)
	}
	if !v.Valid {
		return nil, nil
	}
	return []byte(v.String), nil
}
