package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore keeps remote blobs and drafts in a single SQLite database.
//
// Tables:
//
//	blobs(name, content, version)  PRIMARY KEY (name)
//	drafts(key, value)             PRIMARY KEY (key)
//
// Conditional writes are a single UPDATE filtered on the expected version,
// so the check and the write cannot interleave with another writer.
type SqliteStore struct {
	db *sql.DB
}

// NewSqliteStore opens (creating if needed) the database at dbPath
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS blobs (
		name TEXT PRIMARY KEY,
		content BLOB NOT NULL,
		version INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS drafts (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{db: db}, nil
}

// Close closes the underlying database
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// ReadBlob implements Remote.ReadBlob
func (s *SqliteStore) ReadBlob(ctx context.Context, name string) (Blob, error) {
	var content []byte
	var version int64
	err := s.db.QueryRowContext(ctx,
		"SELECT content, version FROM blobs WHERE name = ?", name,
	).Scan(&content, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{}, nil
	}
	if err != nil {
		return Blob{}, fmt.Errorf("sqlite read %s: %w", name, err)
	}
	return Blob{Content: content, Version: strconv.FormatInt(version, 10)}, nil
}

// WriteBlob implements Remote.WriteBlob
func (s *SqliteStore) WriteBlob(ctx context.Context, name string, content []byte, expectedVersion string) (string, error) {
	var res sql.Result
	var next int64
	var err error

	if expectedVersion == "" {
		next = 1
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO blobs (name, content, version) VALUES (?, ?, 1)
			 ON CONFLICT(name) DO NOTHING`,
			name, content,
		)
	} else {
		expected, perr := strconv.ParseInt(expectedVersion, 10, 64)
		if perr != nil {
			return "", fmt.Errorf("blob %s: malformed version %q: %w", name, expectedVersion, ErrVersionConflict)
		}
		next = expected + 1
		res, err = s.db.ExecContext(ctx,
			"UPDATE blobs SET content = ?, version = ? WHERE name = ? AND version = ?",
			content, next, name, expected,
		)
	}
	if err != nil {
		return "", fmt.Errorf("sqlite write %s: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("sqlite write %s: %w", name, err)
	}
	if n == 0 {
		return "", fmt.Errorf("blob %s not at version %q: %w", name, expectedVersion, ErrVersionConflict)
	}
	return strconv.FormatInt(next, 10), nil
}

// Get implements Drafts.Get
func (s *SqliteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM drafts WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return value, nil
}

// Set implements Drafts.Set
func (s *SqliteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	return nil
}
