package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cart_kv (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);`

// SQLiteBackend persists values in a single SQLite table. Change
// notification is in-process only.
type SQLiteBackend struct {
	db  *sql.DB
	hub *hub
}

// OpenSQLite creates or opens the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteBackend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cart: creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cart: opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("cart: pinging sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cart: migrating sqlite: %w", err)
	}
	return &SQLiteBackend{db: db, hub: newHub(logger)}, nil
}

func (s *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cart_kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cart: sqlite get %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLiteBackend) Set(ctx context.Context, key string, value []byte) error {
	v := append([]byte{}, value...)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cart_kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, v, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cart: sqlite set %s: %w", key, err)
	}
	s.hub.publish(Change{Key: key, Value: v, Origin: Origin(ctx)})
	return nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("cart: sqlite delete %s: %w", key, err)
	}
	s.hub.publish(Change{Key: key, Origin: Origin(ctx)})
	return nil
}

func (s *SQLiteBackend) Subscribe(ctx context.Context, key string) (<-chan Change, func(), error) {
	ch, cancel := s.hub.subscribe(ctx, key)
	return ch, cancel, nil
}

func (s *SQLiteBackend) Close() error {
	s.hub.close()
	return s.db.Close()
}
